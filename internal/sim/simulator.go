package sim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"time"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/san-kum/verletsim/internal/config"
	"github.com/san-kum/verletsim/internal/emitter"
	"github.com/san-kum/verletsim/internal/metrics"
	"github.com/san-kum/verletsim/internal/telemetry"
	"github.com/san-kum/verletsim/internal/verlet"
)

const (
	perfWindow   = 120
	scatterTries = 64
)

// Runner is the headless frame loop: it ticks the emitter, steps the
// system once per frame and records what happened.
type Runner struct {
	sys       *verlet.System
	fountain  *emitter.Fountain
	metrics   []metrics.Metric
	observers []Observer
	perf      *telemetry.PerfCollector
	logger    *slog.Logger
	logEvery  int

	frame int
	time  float64
}

// NewRunner wraps sys. fountain may be nil.
func NewRunner(sys *verlet.System, fountain *emitter.Fountain) *Runner {
	perf := telemetry.NewPerfCollector(perfWindow)
	sys.SetProfiler(perf)
	return &Runner{
		sys:       sys,
		fountain:  fountain,
		metrics:   make([]metrics.Metric, 0),
		observers: make([]Observer, 0),
		perf:      perf,
		logger:    slog.Default(),
	}
}

// Build creates a System from cfg, scatters its initial particles and
// attaches an emitter when one is enabled.
func Build(cfg *config.Config) (*Runner, error) {
	sc, err := cfg.SystemConfig()
	if err != nil {
		return nil, err
	}
	sys, err := verlet.New(sc)
	if err != nil {
		return nil, err
	}
	if _, err := Scatter(sys, cfg.Particles.Initial, cfg.Particles.Radius, cfg.Seed); err != nil {
		return nil, fmt.Errorf("scattering initial particles: %w", err)
	}

	var fountain *emitter.Fountain
	if cfg.Emitter.Enabled {
		fountain = emitter.NewFountain(cfg.EmitterConfig())
	}
	return NewRunner(sys, fountain), nil
}

// Scatter places up to n resting particles at seeded random positions
// inside the boundary and returns how many were added. It stops quietly
// once the system is full.
func Scatter(sys *verlet.System, n int, radius float64, seed int64) (int, error) {
	rng := rand.New(rand.NewSource(seed))
	b := sys.Config().Boundary
	box := b.Bounds()
	added := 0
	for i := 0; i < n; i++ {
		var pos r2.Vec
		for try := 0; try < scatterTries; try++ {
			pos = r2.Vec{
				X: box.Min.X + radius + rng.Float64()*math.Max(0, box.Max.X-box.Min.X-2*radius),
				Y: box.Min.Y + radius + rng.Float64()*math.Max(0, box.Max.Y-box.Min.Y-2*radius),
			}
			if b.Violation(pos, radius) == 0 {
				break
			}
		}
		pos = b.Clamp(pos, radius)

		err := sys.Spawn(pos, r2.Vec{}, radius)
		if errors.Is(err, verlet.ErrCapacityExceeded) {
			break
		}
		if err != nil {
			return added, err
		}
		added++
	}
	return added, nil
}

func (r *Runner) System() *verlet.System         { return r.sys }
func (r *Runner) Fountain() *emitter.Fountain    { return r.fountain }
func (r *Runner) Perf() *telemetry.PerfCollector { return r.perf }
func (r *Runner) AddMetric(ms ...metrics.Metric) { r.metrics = append(r.metrics, ms...) }
func (r *Runner) AddObserver(o Observer)         { r.observers = append(r.observers, o) }
func (r *Runner) Time() float64                  { return r.time }

// SetLogger sets the run logger. every > 0 logs progress every that many
// frames at debug level.
func (r *Runner) SetLogger(l *slog.Logger, every int) {
	r.logger = l
	r.logEvery = every
}

// Run executes rc.Frames frames of rc.Dt seconds each.
func (r *Runner) Run(ctx context.Context, rc RunConfig) (*Result, error) {
	if err := validateRunConfig(rc); err != nil {
		return nil, err
	}

	result := &Result{
		Frames:  make([]FrameStats, 0, rc.Frames),
		Metrics: make(map[string]float64),
		Errors:  make([]error, 0),
	}
	for _, m := range r.metrics {
		m.Reset()
	}
	r.perf.Reset()

	r.logger.Info("run started", "frames", rc.Frames, "dt", rc.Dt, "particles", r.sys.Len())
	start := time.Now()

	for i := 0; i < rc.Frames; i++ {
		select {
		case <-ctx.Done():
			r.finish(result)
			return result, ctx.Err()
		default:
		}

		fs, err := r.Frame(rc.Dt)
		if err != nil {
			result.Errors = append(result.Errors, err)
			r.finish(result)
			r.logger.Error("run aborted", "frame", r.frame, "err", err)
			return result, err
		}
		result.Frames = append(result.Frames, fs)
		result.StepsTaken++

		if r.logEvery > 0 && fs.Frame%r.logEvery == 0 {
			r.logger.Debug("progress", "frame", fs.Frame, "particles", fs.Count,
				"kinetic_energy", fs.KineticEnergy, "perf", r.perf.Stats())
		}
	}

	r.finish(result)
	r.logger.Info("run complete", "frames", result.StepsTaken, "particles", r.sys.Len(),
		"elapsed", time.Since(start), "perf", result.Perf)
	return result, nil
}

func (r *Runner) finish(result *Result) {
	for _, m := range r.metrics {
		result.Metrics[m.Name()] = m.Value()
	}
	result.Perf = r.perf.Stats()
	result.Particles = r.sys.Particles()
}

// Frame runs the emitter and a single Step of dt, then notifies metrics
// and observers.
func (r *Runner) Frame(dt float64) (FrameStats, error) {
	r.perf.StartTick()
	if r.fountain != nil {
		r.perf.StartPhase(PhaseEmit)
		if _, err := r.fountain.Tick(r.sys); err != nil {
			r.perf.EndTick()
			return FrameStats{}, fmt.Errorf("emitting at frame %d: %w", r.frame, err)
		}
	}
	stepStart := time.Now()
	err := r.sys.Step(dt)
	elapsed := time.Since(stepStart)
	r.perf.EndTick()
	if err != nil {
		return FrameStats{}, err
	}

	r.frame++
	r.time += dt
	st := r.sys.Stats()
	fs := FrameStats{
		Frame:         r.frame,
		Time:          r.time,
		Count:         st.Count,
		KineticEnergy: st.KineticEnergy,
		MaxOverlap:    st.MaxOverlap,
		MaxViolation:  st.MaxViolation,
		StepMicros:    elapsed.Microseconds(),
	}
	for _, m := range r.metrics {
		m.Observe(st, r.time)
	}
	for _, obs := range r.observers {
		obs.OnFrame(r.frame, r.time, r.sys)
	}
	return fs, nil
}

func validateRunConfig(rc RunConfig) error {
	if math.IsNaN(rc.Dt) || math.IsInf(rc.Dt, 0) || rc.Dt <= 0 {
		return fmt.Errorf("dt must be positive and finite, got %f", rc.Dt)
	}
	if rc.Frames <= 0 {
		return fmt.Errorf("frames must be positive, got %d", rc.Frames)
	}
	return nil
}
