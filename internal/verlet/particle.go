package verlet

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// Particle is a point mass. Its velocity is implicit: Position - Previous.
type Particle struct {
	Position r2.Vec
	Previous r2.Vec
	Radius   float64
}

// NewParticle places a particle at pos moving by vel per integration step.
func NewParticle(pos, vel r2.Vec, radius float64) Particle {
	return Particle{
		Position: pos,
		Previous: r2.Sub(pos, vel),
		Radius:   radius,
	}
}

// Velocity returns the displacement covered during the last step.
func (p Particle) Velocity() r2.Vec {
	return r2.Sub(p.Position, p.Previous)
}

// Mass is proportional to area; only ratios are ever used.
func (p Particle) Mass() float64 {
	return p.Radius * p.Radius
}

func (p Particle) IsFinite() bool {
	return finite(p.Position) && finite(p.Previous)
}

func finite(v r2.Vec) bool {
	return !math.IsNaN(v.X) && !math.IsNaN(v.Y) && !math.IsInf(v.X, 0) && !math.IsInf(v.Y, 0)
}
