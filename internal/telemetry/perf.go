// Package telemetry measures where simulation time is spent.
package telemetry

import (
	"log/slog"
	"sort"
	"time"
)

// PerfSample holds timing data for a single frame.
type PerfSample struct {
	TickDuration time.Duration
	Phases       map[string]time.Duration
}

// PerfCollector tracks per-phase timings over a rolling window of frames.
// It satisfies verlet.Profiler.
type PerfCollector struct {
	windowSize    int
	samples       []PerfSample
	writeIndex    int
	sampleCount   int
	currentPhases map[string]time.Duration
	tickStart     time.Time
	phaseStart    time.Time
	lastPhase     string
	now           func() time.Time
}

// NewPerfCollector creates a collector averaging over windowSize frames.
func NewPerfCollector(windowSize int) *PerfCollector {
	if windowSize < 1 {
		windowSize = 60
	}
	return &PerfCollector{
		windowSize:    windowSize,
		samples:       make([]PerfSample, windowSize),
		currentPhases: make(map[string]time.Duration),
		now:           time.Now,
	}
}

// StartTick begins timing a new frame.
func (p *PerfCollector) StartTick() {
	p.tickStart = p.now()
	p.currentPhases = make(map[string]time.Duration)
	p.lastPhase = ""
}

// StartPhase closes the running phase, if any, and opens name.
func (p *PerfCollector) StartPhase(name string) {
	now := p.now()
	p.closePhase(now)
	p.lastPhase = name
	p.phaseStart = now
}

func (p *PerfCollector) closePhase(now time.Time) {
	if p.lastPhase != "" {
		p.currentPhases[p.lastPhase] += now.Sub(p.phaseStart)
	}
}

// EndTick records the frame into the window.
func (p *PerfCollector) EndTick() {
	now := p.now()
	p.closePhase(now)
	p.lastPhase = ""

	p.samples[p.writeIndex] = PerfSample{
		TickDuration: now.Sub(p.tickStart),
		Phases:       p.currentPhases,
	}
	p.writeIndex = (p.writeIndex + 1) % p.windowSize
	if p.sampleCount < p.windowSize {
		p.sampleCount++
	}
}

// PerfStats aggregates the window.
type PerfStats struct {
	AvgTickDuration time.Duration
	MaxTickDuration time.Duration
	TicksPerSecond  float64
	PhaseAvg        map[string]time.Duration
	PhasePct        map[string]float64
	Samples         int
}

// Stats computes averages over the collected window.
func (p *PerfCollector) Stats() PerfStats {
	stats := PerfStats{
		PhaseAvg: make(map[string]time.Duration),
		PhasePct: make(map[string]float64),
		Samples:  p.sampleCount,
	}
	if p.sampleCount == 0 {
		return stats
	}

	var total time.Duration
	phaseTotals := make(map[string]time.Duration)
	for i := 0; i < p.sampleCount; i++ {
		s := p.samples[i]
		total += s.TickDuration
		stats.MaxTickDuration = max(stats.MaxTickDuration, s.TickDuration)
		for name, d := range s.Phases {
			phaseTotals[name] += d
		}
	}

	stats.AvgTickDuration = total / time.Duration(p.sampleCount)
	if stats.AvgTickDuration > 0 {
		stats.TicksPerSecond = float64(time.Second) / float64(stats.AvgTickDuration)
	}

	var phaseSum time.Duration
	for _, d := range phaseTotals {
		phaseSum += d
	}
	for name, d := range phaseTotals {
		stats.PhaseAvg[name] = d / time.Duration(p.sampleCount)
		if phaseSum > 0 {
			stats.PhasePct[name] = 100 * float64(d) / float64(phaseSum)
		}
	}
	return stats
}

// Reset discards all samples.
func (p *PerfCollector) Reset() {
	p.writeIndex = 0
	p.sampleCount = 0
	p.lastPhase = ""
	for i := range p.samples {
		p.samples[i] = PerfSample{}
	}
}

// LogValue implements slog.LogValuer.
func (s PerfStats) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.Duration("avg_tick", s.AvgTickDuration),
		slog.Duration("max_tick", s.MaxTickDuration),
		slog.Float64("ticks_per_sec", s.TicksPerSecond),
		slog.Int("samples", s.Samples),
	}
	names := make([]string, 0, len(s.PhaseAvg))
	for name := range s.PhaseAvg {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		attrs = append(attrs, slog.Duration(name, s.PhaseAvg[name]))
	}
	return slog.GroupValue(attrs...)
}
