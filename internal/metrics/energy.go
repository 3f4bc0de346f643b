package metrics

import (
	"math"

	"github.com/san-kum/verletsim/internal/verlet"
)

// KineticEnergy averages the system's kinetic energy over observed frames.
type KineticEnergy struct {
	name    string
	samples int
	total   float64
}

func NewKineticEnergy() *KineticEnergy {
	return &KineticEnergy{name: "kinetic_energy"}
}

func (e *KineticEnergy) Name() string { return e.name }

func (e *KineticEnergy) Observe(st verlet.Stats, t float64) {
	e.total += st.KineticEnergy
	e.samples++
}

func (e *KineticEnergy) Value() float64 {
	if e.samples == 0 {
		return 0
	}
	return e.total / float64(e.samples)
}

func (e *KineticEnergy) Reset() {
	e.total = 0
	e.samples = 0
}

// EnergyGrowth reports the largest frame-to-frame kinetic energy increase
// relative to the energy the population already had. A settling system
// stays near zero; an exploding one grows without bound.
type EnergyGrowth struct {
	name     string
	prev     float64
	prevN    int
	samples  int
	maxRatio float64
}

func NewEnergyGrowth() *EnergyGrowth {
	return &EnergyGrowth{name: "energy_growth"}
}

func (e *EnergyGrowth) Name() string { return e.name }

func (e *EnergyGrowth) Observe(st verlet.Stats, t float64) {
	// frames that add particles inject energy; only compare like with like
	if e.samples > 0 && st.Count == e.prevN && e.prev > 0 {
		growth := (st.KineticEnergy - e.prev) / e.prev
		e.maxRatio = math.Max(e.maxRatio, growth)
	}
	e.prev = st.KineticEnergy
	e.prevN = st.Count
	e.samples++
}

func (e *EnergyGrowth) Value() float64 { return e.maxRatio }

func (e *EnergyGrowth) Reset() {
	e.prev = 0
	e.prevN = 0
	e.samples = 0
	e.maxRatio = 0
}
