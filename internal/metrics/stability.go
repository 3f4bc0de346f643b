package metrics

import (
	"math"

	"github.com/san-kum/verletsim/internal/verlet"
)

// Stability is the fraction of frames whose worst overlap stays within
// threshold.
type Stability struct {
	name       string
	threshold  float64
	violations int
	samples    int
}

func NewStability(threshold float64) *Stability {
	return &Stability{
		name:      "stability",
		threshold: threshold,
	}
}

func (s *Stability) Name() string {
	return s.name
}

func (s *Stability) Observe(st verlet.Stats, t float64) {
	s.samples++
	if st.MaxOverlap > s.threshold {
		s.violations++
	}
}

func (s *Stability) Value() float64 {
	if s.samples == 0 {
		return 1.0
	}
	return 1.0 - float64(s.violations)/float64(s.samples)
}

func (s *Stability) Reset() {
	s.violations = 0
	s.samples = 0
}

// MaxOverlap tracks the deepest particle interpenetration seen.
type MaxOverlap struct {
	worst float64
}

func NewMaxOverlap() *MaxOverlap { return &MaxOverlap{} }

func (m *MaxOverlap) Name() string { return "max_overlap" }

func (m *MaxOverlap) Observe(st verlet.Stats, t float64) {
	m.worst = math.Max(m.worst, st.MaxOverlap)
}

func (m *MaxOverlap) Value() float64 { return m.worst }
func (m *MaxOverlap) Reset()         { m.worst = 0 }

// Containment tracks the largest distance any particle sat outside the
// boundary after a frame. It should stay at zero.
type Containment struct {
	worst float64
}

func NewContainment() *Containment { return &Containment{} }

func (c *Containment) Name() string { return "max_violation" }

func (c *Containment) Observe(st verlet.Stats, t float64) {
	c.worst = math.Max(c.worst, st.MaxViolation)
}

func (c *Containment) Value() float64 { return c.worst }
func (c *Containment) Reset()         { c.worst = 0 }

// Population is the peak particle count.
type Population struct {
	peak int
}

func NewPopulation() *Population { return &Population{} }

func (p *Population) Name() string { return "population" }

func (p *Population) Observe(st verlet.Stats, t float64) {
	p.peak = max(p.peak, st.Count)
}

func (p *Population) Value() float64 { return float64(p.peak) }
func (p *Population) Reset()         { p.peak = 0 }
