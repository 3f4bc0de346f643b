package verlet

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// OverflowPolicy decides what Spawn does at MaxParticles.
type OverflowPolicy string

const (
	// OverflowReject refuses the spawn with ErrCapacityExceeded.
	OverflowReject OverflowPolicy = "reject"
	// OverflowEvict drops the oldest particle to make room.
	OverflowEvict OverflowPolicy = "evict"
)

// BoundaryMode decides how the boundary pass treats implicit velocity.
type BoundaryMode string

const (
	// BoundaryClamp only moves the position; Previous is untouched.
	BoundaryClamp BoundaryMode = "clamp"
	// BoundaryReflect mirrors the outward velocity about the wall normal.
	BoundaryReflect BoundaryMode = "reflect"
)

// SolverKind selects how pairwise corrections are applied.
type SolverKind string

const (
	// SolverGaussSeidel applies each pair correction immediately, in order.
	SolverGaussSeidel SolverKind = "gauss-seidel"
	// SolverJacobi accumulates corrections in parallel and applies them together.
	SolverJacobi SolverKind = "jacobi"
)

const (
	DefaultGravityY     = 750.0
	DefaultCenter       = 300.0
	DefaultRadius       = 250.0
	DefaultMaxParticles = 1000
	DefaultRestitution  = 0.999
)

// Config holds the parameters of a System.
type Config struct {
	Gravity      r2.Vec
	Boundary     Boundary
	Damping      float64 // fraction of implicit velocity lost per substep, [0, 1)
	Substeps     int
	Iterations   int // collision+boundary passes per substep
	MaxParticles int // 0 means unlimited
	Overflow     OverflowPolicy
	MassWeighted bool
	BoundaryMode BoundaryMode
	Restitution  float64 // only used by BoundaryReflect
	Solver       SolverKind
	Broadphase   Broadphase // nil means Naive
}

// DefaultConfig mirrors the fountain demo: a 250 unit circle centred in a
// 600x600 view with gravity pointing down the screen.
func DefaultConfig() Config {
	return Config{
		Gravity:      r2.Vec{X: 0, Y: DefaultGravityY},
		Boundary:     Circle{Center: r2.Vec{X: DefaultCenter, Y: DefaultCenter}, Radius: DefaultRadius},
		Damping:      0,
		Substeps:     1,
		Iterations:   1,
		MaxParticles: DefaultMaxParticles,
		Overflow:     OverflowReject,
		BoundaryMode: BoundaryClamp,
		Restitution:  DefaultRestitution,
		Solver:       SolverGaussSeidel,
	}
}

func (c Config) Validate() error {
	if c.Boundary == nil {
		return fmt.Errorf("%w: boundary is required", ErrInvalidConfig)
	}
	if !finite(c.Gravity) {
		return fmt.Errorf("%w: gravity must be finite, got %v", ErrInvalidConfig, c.Gravity)
	}
	if math.IsNaN(c.Damping) || c.Damping < 0 || c.Damping >= 1 {
		return fmt.Errorf("%w: damping must be in [0, 1), got %g", ErrInvalidConfig, c.Damping)
	}
	if c.Substeps < 1 {
		return fmt.Errorf("%w: substeps must be >= 1, got %d", ErrInvalidConfig, c.Substeps)
	}
	if c.Iterations < 1 {
		return fmt.Errorf("%w: iterations must be >= 1, got %d", ErrInvalidConfig, c.Iterations)
	}
	if c.MaxParticles < 0 {
		return fmt.Errorf("%w: max particles must be >= 0, got %d", ErrInvalidConfig, c.MaxParticles)
	}
	switch c.Overflow {
	case OverflowReject, OverflowEvict:
	default:
		return fmt.Errorf("%w: unknown overflow policy %q", ErrInvalidConfig, c.Overflow)
	}
	switch c.BoundaryMode {
	case BoundaryClamp, BoundaryReflect:
	default:
		return fmt.Errorf("%w: unknown boundary mode %q", ErrInvalidConfig, c.BoundaryMode)
	}
	if math.IsNaN(c.Restitution) || c.Restitution < 0 || c.Restitution > 1 {
		return fmt.Errorf("%w: restitution must be in [0, 1], got %g", ErrInvalidConfig, c.Restitution)
	}
	switch c.Solver {
	case SolverGaussSeidel, SolverJacobi:
	default:
		return fmt.Errorf("%w: unknown solver %q", ErrInvalidConfig, c.Solver)
	}
	return nil
}
