package viz

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/san-kum/verletsim/internal/config"
	"github.com/san-kum/verletsim/internal/emitter"
	"github.com/san-kum/verletsim/internal/sim"
	"github.com/san-kum/verletsim/internal/verlet"
)

const (
	width           = 80
	height          = 24
	historyCapacity = 600
	burstSize       = 20
	maxSubsteps     = 16
)

type TickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(time.Second/60, func(t time.Time) tea.Msg { return TickMsg(t) })
}

// Model is the live view. It owns nothing but display state; the particles
// live in the runner's System.
type Model struct {
	runner    *sim.Runner
	spray     *emitter.Fountain
	name      string
	dt        float64
	gravity   r2.Vec
	canvas    *Canvas
	view      Viewport
	running   bool
	showHelp  bool
	last      sim.FrameStats
	energy    []float64
	stepTimes []float64
	err       error
}

// NewModel wraps runner. Bursts use the runner's fountain, or one built
// from cfg's emitter settings when the runner has none.
func NewModel(runner *sim.Runner, cfg *config.Config) Model {
	spray := runner.Fountain()
	if spray == nil {
		spray = emitter.NewFountain(cfg.EmitterConfig())
	}
	canvas := NewCanvas(width, height)
	sys := runner.System()
	return Model{
		runner:    runner,
		spray:     spray,
		name:      cfg.Name,
		dt:        cfg.Dt,
		gravity:   sys.Config().Gravity,
		canvas:    canvas,
		view:      NewViewport(sys.Config().Boundary.Bounds(), canvas),
		running:   true,
		energy:    make([]float64, 0, historyCapacity),
		stepTimes: make([]float64, 0, historyCapacity),
	}
}

func (m Model) Init() tea.Cmd {
	return tick()
}

// Update handles input events and steps the simulation.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	sys := m.runner.System()
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case " ":
			m.running = !m.running
		case "s":
			if _, err := m.spray.Burst(sys, burstSize); err != nil {
				m.err = err
			}
		case "c":
			sys.Clear()
			m.energy = m.energy[:0]
		case "e":
			if f := m.runner.Fountain(); f != nil {
				f.SetPaused(!f.Paused())
			}
		case "g":
			g := m.gravity
			if sys.Config().Gravity != (r2.Vec{}) {
				g = r2.Vec{}
			}
			if err := sys.SetGravity(g); err != nil {
				m.err = err
			}
		case "+", "=":
			if n := sys.Config().Substeps; n < maxSubsteps {
				if err := sys.SetSubsteps(n + 1); err != nil {
					m.err = err
				}
			}
		case "-", "_":
			if n := sys.Config().Substeps; n > 1 {
				if err := sys.SetSubsteps(n - 1); err != nil {
					m.err = err
				}
			}
		case "t":
			NextTheme()
		case "?":
			m.showHelp = !m.showHelp
		}
	case TickMsg:
		if m.running {
			m.step()
		}
		return m, tick()
	}
	return m, nil
}

func (m *Model) step() {
	fs, err := m.runner.Frame(m.dt)
	if err != nil {
		m.err = err
		m.running = false
		return
	}
	m.last = fs
	m.energy = pushHistory(m.energy, fs.KineticEnergy)
	m.stepTimes = pushHistory(m.stepTimes, float64(fs.StepMicros))
}

func pushHistory(h []float64, v float64) []float64 {
	if len(h) == historyCapacity {
		copy(h, h[1:])
		h = h[:len(h)-1]
	}
	return append(h, v)
}

// draw renders the boundary and every particle onto the canvas.
func (m *Model) draw() {
	m.canvas.Clear()
	sys := m.runner.System()

	switch b := sys.Config().Boundary.(type) {
	case verlet.Circle:
		cx, cy := m.view.Project(b.Center)
		m.canvas.DrawCircle(cx, cy, m.view.Length(b.Radius))
	case verlet.Rect:
		x0, y0 := m.view.Project(b.Min)
		x1, y1 := m.view.Project(b.Max)
		m.canvas.DrawLine(x0, y0, x1, y0)
		m.canvas.DrawLine(x1, y0, x1, y1)
		m.canvas.DrawLine(x1, y1, x0, y1)
		m.canvas.DrawLine(x0, y1, x0, y0)
	}

	sys.Each(func(pos r2.Vec, radius float64) {
		x, y := m.view.Project(pos)
		if r := m.view.Length(radius); r > 1 {
			m.canvas.FillCircle(x, y, r)
		} else {
			m.canvas.Set(x, y)
		}
	})
}

// View renders the TUI interface.
func (m Model) View() string {
	m.draw()
	sys := m.runner.System()
	cfg := sys.Config()
	canvasView := canvasStyle.Render(particleStyle().Render(m.canvas.String()))

	var s strings.Builder
	s.WriteString(headerStyle().Render(strings.ToUpper(m.name)) + "\n\n")

	status := "RUNNING"
	switch {
	case m.err != nil && !m.running:
		status = "HALTED"
	case !m.running:
		status = "PAUSED"
	}
	if f := m.runner.Fountain(); f != nil && f.Paused() {
		status += " · emitter off"
	}
	s.WriteString(statusStyle(!m.running, m.err != nil).Render(status) + "\n\n")

	if len(m.energy) > 1 {
		chart := asciigraph.Plot(m.energy, asciigraph.Height(4), asciigraph.Width(30), asciigraph.Caption("Kinetic energy"))
		s.WriteString(graphStyle.Foreground(CurrentTheme.Secondary).Render(chart) + "\n\n")
	}

	count := sys.Len()
	s.WriteString(labelStyle.Render("Particles") + valueStyle.Render(fmt.Sprintf("%d", count)) + "\n")
	if cfg.MaxParticles > 0 {
		s.WriteString(labelStyle.Render("") + ProgressBar(float64(count)/float64(cfg.MaxParticles), 20) + "\n")
	}
	s.WriteString(labelStyle.Render("Time") + valueStyle.Render(fmt.Sprintf("%.2fs", m.runner.Time())) + "\n")
	s.WriteString(labelStyle.Render("Energy") + valueStyle.Render(fmt.Sprintf("%.2f", m.last.KineticEnergy)) + "\n")
	s.WriteString(labelStyle.Render("Overlap") + valueStyle.Render(fmt.Sprintf("%.3f", m.last.MaxOverlap)) + "\n")
	s.WriteString(labelStyle.Render("Substeps") + valueStyle.Render(fmt.Sprintf("%d × %d", cfg.Substeps, cfg.Iterations)) + "\n")
	s.WriteString(labelStyle.Render("Gravity") + valueStyle.Render(fmt.Sprintf("(%.0f, %.0f)", cfg.Gravity.X, cfg.Gravity.Y)) + "\n")
	s.WriteString(labelStyle.Render("Step µs") + SparklineChart(m.stepTimes, 20) + "\n")

	perf := m.runner.Perf().Stats()
	if len(perf.PhasePct) > 0 {
		names := make([]string, 0, len(perf.PhasePct))
		for name := range perf.PhasePct {
			names = append(names, name)
		}
		sort.Strings(names)
		s.WriteString("\n")
		for _, name := range names {
			s.WriteString(labelStyle.Render(name) + valueStyle.Render(fmt.Sprintf("%5.1f%%", perf.PhasePct[name])) + "\n")
		}
	}

	if m.err != nil {
		s.WriteString("\n" + lipgloss.NewStyle().Foreground(CurrentTheme.Error).Render(errorText(m.err)) + "\n")
	}

	s.WriteString(helpStyle.Render("SP:Pause S:Spray C:Clear Q:Quit\nE:Emitter G:Gravity +/-:Substeps ?:Help"))
	mainView := lipgloss.JoinHorizontal(lipgloss.Top, canvasView, panelStyle().Render(s.String()))
	if m.showHelp {
		return helpOverlay + "\n\n" + mainView
	}
	return mainView
}

func errorText(err error) string {
	var stepErr *verlet.StepError
	if errors.As(err, &stepErr) {
		return fmt.Sprintf("step %d failed: %v", stepErr.Step, stepErr.Wrapped)
	}
	return err.Error()
}

const helpOverlay = `
╔══════════════════════════════════════╗
║          KEYBOARD SHORTCUTS          ║
╠══════════════════════════════════════╣
║  Space    - Pause/Resume simulation  ║
║  S        - Spray a burst            ║
║  C        - Clear particles          ║
║  E        - Toggle emitter           ║
║  G        - Toggle gravity           ║
║  + / -    - Adjust substeps          ║
║  T        - Cycle themes             ║
║  ?        - Toggle this help         ║
║  Q        - Quit                     ║
╚══════════════════════════════════════╝`

// Run starts the live view on the alternate screen.
func Run(runner *sim.Runner, cfg *config.Config) error {
	_, err := tea.NewProgram(NewModel(runner, cfg), tea.WithAltScreen()).Run()
	return err
}
