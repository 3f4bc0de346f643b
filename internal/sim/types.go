package sim

import (
	"fmt"

	"github.com/san-kum/verletsim/internal/telemetry"
	"github.com/san-kum/verletsim/internal/verlet"
)

// PhaseEmit is the telemetry phase covering emitter work in a frame.
const PhaseEmit = "emit"

// Observer is notified after every completed frame.
type Observer interface {
	OnFrame(frame int, t float64, sys *verlet.System)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(frame int, t float64, sys *verlet.System)

func (f ObserverFunc) OnFrame(frame int, t float64, sys *verlet.System) { f(frame, t, sys) }

type RunConfig struct {
	Frames int
	Dt     float64
}

// FrameStats is one row of a run's per-frame history.
type FrameStats struct {
	Frame         int     `csv:"frame" json:"frame"`
	Time          float64 `csv:"time" json:"time"`
	Count         int     `csv:"count" json:"count"`
	KineticEnergy float64 `csv:"kinetic_energy" json:"kinetic_energy"`
	MaxOverlap    float64 `csv:"max_overlap" json:"max_overlap"`
	MaxViolation  float64 `csv:"max_violation" json:"max_violation"`
	StepMicros    int64   `csv:"step_us" json:"step_us"`
}

type Result struct {
	Frames     []FrameStats
	Metrics    map[string]float64
	StepsTaken int
	Errors     []error
	Perf       telemetry.PerfStats
	Particles  []verlet.Particle
}

// Series names accepted by Series.
var SeriesNames = []string{"energy", "count", "overlap", "violation", "step_us"}

// Series extracts one column of a frame history for plotting.
func Series(frames []FrameStats, name string) ([]float64, error) {
	var pick func(FrameStats) float64
	switch name {
	case "energy":
		pick = func(f FrameStats) float64 { return f.KineticEnergy }
	case "count":
		pick = func(f FrameStats) float64 { return float64(f.Count) }
	case "overlap":
		pick = func(f FrameStats) float64 { return f.MaxOverlap }
	case "violation":
		pick = func(f FrameStats) float64 { return f.MaxViolation }
	case "step_us":
		pick = func(f FrameStats) float64 { return float64(f.StepMicros) }
	default:
		return nil, fmt.Errorf("unknown series %q (want one of %v)", name, SeriesNames)
	}
	out := make([]float64, len(frames))
	for i, f := range frames {
		out[i] = pick(f)
	}
	return out, nil
}
