package metrics

import "github.com/san-kum/verletsim/internal/verlet"

// DefaultOverlapThreshold is the overlap Stability tolerates per frame.
const DefaultOverlapThreshold = 0.05

// Metric is implemented by every collector in this package.
type Metric interface {
	Name() string
	Observe(st verlet.Stats, t float64)
	Value() float64
	Reset()
}

// Defaults returns a fresh set of the standard run metrics.
func Defaults() []Metric {
	return []Metric{
		NewKineticEnergy(),
		NewEnergyGrowth(),
		NewMaxOverlap(),
		NewContainment(),
		NewPopulation(),
		NewStability(DefaultOverlapThreshold),
	}
}
