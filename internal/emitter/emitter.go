// Package emitter spawns particles on a fixed frame cadence.
package emitter

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/san-kum/verletsim/internal/verlet"
)

const (
	DefaultSpeed    = 4.0
	DefaultInterval = 1
	// sprayPeriod is how many spawns one left/right sweep of the fountain takes.
	sprayPeriod = 40
)

// Spawner is the subset of verlet.System an Emitter needs.
type Spawner interface {
	Spawn(pos, vel r2.Vec, radius float64) error
	Len() int
}

type Config struct {
	Origin   r2.Vec
	Speed    float64 // displacement per integration step
	Radius   float64
	Interval int // frames between spawns
}

// Fountain sprays particles from Origin, sweeping between a rightward and
// a leftward fan as the population grows.
type Fountain struct {
	cfg    Config
	frame  int
	paused bool
}

func NewFountain(cfg Config) *Fountain {
	if cfg.Interval < 1 {
		cfg.Interval = DefaultInterval
	}
	return &Fountain{cfg: cfg}
}

// Direction is the spray angle in radians for a population of n particles.
func Direction(n int) float64 {
	k := n % sprayPeriod
	if k > sprayPeriod/2 {
		return float64(2*sprayPeriod-k) * 0.1
	}
	return float64(k+sprayPeriod) * 0.1
}

// Tick advances one frame and spawns when the cadence is due. It reports
// whether a particle was added. A full system is not an error.
func (f *Fountain) Tick(s Spawner) (bool, error) {
	f.frame++
	if f.paused || f.frame%f.cfg.Interval != 0 {
		return false, nil
	}

	angle := Direction(s.Len())
	vel := r2.Vec{X: f.cfg.Speed * math.Cos(angle), Y: f.cfg.Speed * math.Sin(angle)}
	err := s.Spawn(f.cfg.Origin, vel, f.cfg.Radius)
	if errors.Is(err, verlet.ErrCapacityExceeded) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Burst spawns n particles immediately, fanning them over the spray arc.
func (f *Fountain) Burst(s Spawner, n int) (int, error) {
	added := 0
	for i := 0; i < n; i++ {
		angle := Direction(s.Len())
		vel := r2.Vec{X: f.cfg.Speed * math.Cos(angle), Y: f.cfg.Speed * math.Sin(angle)}
		err := s.Spawn(f.cfg.Origin, vel, f.cfg.Radius)
		if errors.Is(err, verlet.ErrCapacityExceeded) {
			return added, nil
		}
		if err != nil {
			return added, err
		}
		added++
	}
	return added, nil
}

func (f *Fountain) SetPaused(p bool) { f.paused = p }

func (f *Fountain) Paused() bool { return f.paused }

func (f *Fountain) Config() Config { return f.cfg }
