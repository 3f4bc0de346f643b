package verlet

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// Phase names reported to a Profiler during Step.
const (
	PhaseIntegrate = "integrate"
	PhaseCollide   = "collide"
	PhaseConstrain = "constrain"
)

// Profiler receives phase transitions from Step.
type Profiler interface {
	StartPhase(name string)
}

const (
	// separations below this use fallbackAxis instead of the centre line
	degenerateDist = 1e-12
	jacobiChunk    = 64
)

var fallbackAxis = r2.Vec{X: 1, Y: 0}

// System owns the particles and advances them.
type System struct {
	cfg         Config
	particles   []Particle
	broad       Broadphase
	profiler    Profiler
	steps       int
	neighbors   []int
	corrections []r2.Vec
}

// New validates cfg and returns an empty System.
func New(cfg Config) (*System, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	broad := cfg.Broadphase
	if broad == nil {
		broad = Naive{}
	}
	capacity := cfg.MaxParticles
	if capacity == 0 {
		capacity = 64
	}
	return &System{
		cfg:       cfg,
		particles: make([]Particle, 0, capacity),
		broad:     broad,
	}, nil
}

func (s *System) Config() Config { return s.cfg }

// Steps is the number of completed Step calls that advanced time.
func (s *System) Steps() int { return s.steps }

func (s *System) SetProfiler(p Profiler) { s.profiler = p }

func (s *System) SetGravity(g r2.Vec) error {
	return s.reconfigure(func(c *Config) { c.Gravity = g })
}

func (s *System) SetDamping(d float64) error {
	return s.reconfigure(func(c *Config) { c.Damping = d })
}

func (s *System) SetSubsteps(n int) error {
	return s.reconfigure(func(c *Config) { c.Substeps = n })
}

func (s *System) SetIterations(n int) error {
	return s.reconfigure(func(c *Config) { c.Iterations = n })
}

func (s *System) reconfigure(apply func(*Config)) error {
	next := s.cfg
	apply(&next)
	if err := next.Validate(); err != nil {
		return err
	}
	s.cfg = next
	return nil
}

// Spawn appends a particle at pos moving by vel per integration step.
// A position outside the boundary is clamped onto it first. At capacity it either fails with ErrCapacityExceeded or evicts the
// oldest particle, depending on Config.Overflow.
func (s *System) Spawn(pos, vel r2.Vec, radius float64) error {
	if !(radius > 0) || math.IsInf(radius, 0) {
		return fmt.Errorf("%w: radius must be positive and finite, got %g", ErrInvalidParticle, radius)
	}
	if !finite(pos) || !finite(vel) {
		return fmt.Errorf("%w: non-finite position %v or velocity %v", ErrInvalidParticle, pos, vel)
	}
	if !s.cfg.Boundary.Fits(radius) {
		return fmt.Errorf("%w: radius %g does not fit the boundary", ErrInvalidParticle, radius)
	}

	if s.cfg.MaxParticles > 0 && len(s.particles) >= s.cfg.MaxParticles {
		if s.cfg.Overflow == OverflowReject {
			return ErrCapacityExceeded
		}
		n := copy(s.particles, s.particles[len(s.particles)-s.cfg.MaxParticles+1:])
		s.particles = s.particles[:n]
	}

	pos = s.cfg.Boundary.Clamp(pos, radius)
	s.particles = append(s.particles, NewParticle(pos, vel, radius))
	return nil
}

// Clear removes every particle.
func (s *System) Clear() {
	s.particles = s.particles[:0]
}

func (s *System) Len() int { return len(s.particles) }

func (s *System) At(i int) Particle { return s.particles[i] }

// Particles returns a copy of the particles in insertion order.
func (s *System) Particles() []Particle {
	out := make([]Particle, len(s.particles))
	copy(out, s.particles)
	return out
}

// Each visits every particle's position and radius in insertion order.
func (s *System) Each(fn func(pos r2.Vec, radius float64)) {
	for _, p := range s.particles {
		fn(p.Position, p.Radius)
	}
}

// Step advances the simulation by dt seconds split into Config.Substeps
// substeps. A negative or non-finite dt is rejected without touching any
// particle; dt == 0 is a no-op.
func (s *System) Step(dt float64) error {
	if math.IsNaN(dt) || math.IsInf(dt, 0) || dt < 0 {
		return &StepError{Step: s.steps, Dt: dt, Wrapped: ErrInvalidTimestep}
	}
	if dt == 0 {
		return nil
	}

	h := dt / float64(s.cfg.Substeps)
	for sub := 0; sub < s.cfg.Substeps; sub++ {
		s.phase(PhaseIntegrate)
		s.integrate(h)
		for it := 0; it < s.cfg.Iterations; it++ {
			s.phase(PhaseCollide)
			s.collide()
			s.phase(PhaseConstrain)
			s.constrain()
		}
	}
	s.steps++

	for i := range s.particles {
		if !s.particles[i].IsFinite() {
			return &StepError{Step: s.steps - 1, Dt: dt, Wrapped: fmt.Errorf("%w: particle %d", ErrNonFinite, i)}
		}
	}
	return nil
}

func (s *System) phase(name string) {
	if s.profiler != nil {
		s.profiler.StartPhase(name)
	}
}

func (s *System) integrate(h float64) {
	keep := 1 - s.cfg.Damping
	accel := r2.Scale(h*h, s.cfg.Gravity)
	for i := range s.particles {
		p := &s.particles[i]
		vel := r2.Scale(keep, p.Velocity())
		p.Previous = p.Position
		p.Position = r2.Add(r2.Add(p.Position, vel), accel)
	}
}

func (s *System) collide() {
	if len(s.particles) < 2 {
		return
	}
	s.broad.Rebuild(s.particles)
	if s.cfg.Solver == SolverJacobi {
		s.collideJacobi()
		return
	}

	ps := s.particles
	for i := range ps {
		s.neighbors = s.broad.Neighbors(ps, i, s.neighbors[:0])
		for _, j := range s.neighbors {
			if j <= i {
				continue
			}
			ci, hit := correction(ps[i], ps[j], true, s.cfg.MassWeighted)
			if !hit {
				continue
			}
			cj, _ := correction(ps[j], ps[i], false, s.cfg.MassWeighted)
			ps[i].Position = r2.Add(ps[i].Position, ci)
			ps[j].Position = r2.Add(ps[j].Position, cj)
		}
	}
}

// collideJacobi evaluates every particle against the same snapshot of
// positions. Each worker writes only its own correction slots.
func (s *System) collideJacobi() {
	ps := s.particles
	if cap(s.corrections) < len(ps) {
		s.corrections = make([]r2.Vec, len(ps))
	}
	corr := s.corrections[:len(ps)]

	ParallelFor(len(ps), jacobiChunk, func(start, end int) {
		var nb []int
		for i := start; i < end; i++ {
			nb = s.broad.Neighbors(ps, i, nb[:0])
			var sum r2.Vec
			for _, j := range nb {
				if c, hit := correction(ps[i], ps[j], i < j, s.cfg.MassWeighted); hit {
					sum = r2.Add(sum, c)
				}
			}
			corr[i] = sum
		}
	})

	for i := range ps {
		ps[i].Position = r2.Add(ps[i].Position, corr[i])
	}
}

// correction is the displacement a must receive to stop overlapping b.
// first orients the fallback axis so the two halves of a coincident pair
// move in opposite directions.
func correction(a, b Particle, first, massWeighted bool) (r2.Vec, bool) {
	delta := r2.Sub(a.Position, b.Position)
	minDist := a.Radius + b.Radius
	dist2 := r2.Norm2(delta)
	if dist2 >= minDist*minDist {
		return r2.Vec{}, false
	}

	dist := math.Sqrt(dist2)
	var n r2.Vec
	if dist < degenerateDist {
		n = fallbackAxis
		if !first {
			n = r2.Scale(-1, n)
		}
	} else {
		n = r2.Scale(1/dist, delta)
	}

	share := 0.5
	if massWeighted {
		share = b.Mass() / (a.Mass() + b.Mass())
	}
	return r2.Scale((minDist-dist)*share, n), true
}

func (s *System) constrain() {
	b := s.cfg.Boundary
	reflect := s.cfg.BoundaryMode == BoundaryReflect
	for i := range s.particles {
		p := &s.particles[i]
		clamped := b.Clamp(p.Position, p.Radius)
		if clamped == p.Position {
			continue
		}
		normal := r2.Unit(r2.Sub(p.Position, clamped))
		p.Position = clamped
		if !reflect {
			continue
		}
		vel := p.Velocity()
		if along := r2.Dot(vel, normal); along > 0 {
			mirrored := r2.Sub(vel, r2.Scale(2*along, normal))
			p.Previous = r2.Sub(p.Position, r2.Scale(s.cfg.Restitution, mirrored))
		}
	}
}

// Stats summarises the current particle state.
type Stats struct {
	Count         int
	KineticEnergy float64 // sum of m|v|²/2 with v in displacement per step
	MaxOverlap    float64
	MaxViolation  float64
}

func (s *System) Stats() Stats {
	st := Stats{Count: len(s.particles)}
	b := s.cfg.Boundary
	for _, p := range s.particles {
		st.KineticEnergy += 0.5 * p.Mass() * r2.Norm2(p.Velocity())
		st.MaxViolation = math.Max(st.MaxViolation, b.Violation(p.Position, p.Radius))
	}
	st.MaxOverlap = s.maxOverlap()
	return st
}

func (s *System) maxOverlap() float64 {
	ps := s.particles
	if len(ps) < 2 {
		return 0
	}
	s.broad.Rebuild(ps)
	worst := 0.0
	for i := range ps {
		s.neighbors = s.broad.Neighbors(ps, i, s.neighbors[:0])
		for _, j := range s.neighbors {
			if j <= i {
				continue
			}
			d := r2.Norm(r2.Sub(ps[i].Position, ps[j].Position))
			worst = math.Max(worst, ps[i].Radius+ps[j].Radius-d)
		}
	}
	return worst
}
