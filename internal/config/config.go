package config

import (
	"fmt"
	"os"

	"gonum.org/v1/gonum/spatial/r2"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/verletsim/internal/emitter"
	"github.com/san-kum/verletsim/internal/verlet"
)

const (
	DefaultDt           = 1.0 / 60
	DefaultFrames       = 600
	DefaultWidth        = 600.0
	DefaultHeight       = 600.0
	DefaultGravityY     = verlet.DefaultGravityY
	DefaultBoundaryR    = verlet.DefaultRadius
	DefaultRadius       = 4.0
	DefaultMaxParticles = verlet.DefaultMaxParticles
	DefaultSubsteps     = 1
	DefaultIterations   = 1
	DefaultEmitterY     = 100.0
)

type Config struct {
	Name      string          `yaml:"name"`
	Dt        float64         `yaml:"dt"`
	Frames    int             `yaml:"frames"`
	Seed      int64           `yaml:"seed"`
	Physics   PhysicsConfig   `yaml:"physics"`
	Boundary  BoundaryConfig  `yaml:"boundary"`
	Particles ParticlesConfig `yaml:"particles"`
	Emitter   EmitterConfig   `yaml:"emitter"`
}

type Vec struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
}

func (v Vec) R2() r2.Vec { return r2.Vec{X: v.X, Y: v.Y} }

type PhysicsConfig struct {
	Gravity      Vec     `yaml:"gravity"`
	Damping      float64 `yaml:"damping"`
	Substeps     int     `yaml:"substeps"`
	Iterations   int     `yaml:"iterations"`
	MassWeighted bool    `yaml:"mass_weighted"`
	Solver       string  `yaml:"solver"`     // gauss-seidel | jacobi
	Broadphase   string  `yaml:"broadphase"` // naive | grid
}

type BoundaryConfig struct {
	Shape       string  `yaml:"shape"` // circle | rect
	Center      Vec     `yaml:"center"`
	Radius      float64 `yaml:"radius"`
	Min         Vec     `yaml:"min"`
	Max         Vec     `yaml:"max"`
	Mode        string  `yaml:"mode"` // clamp | reflect
	Restitution float64 `yaml:"restitution"`
}

type ParticlesConfig struct {
	Radius   float64 `yaml:"radius"`
	Max      int     `yaml:"max"`
	Overflow string  `yaml:"overflow"` // reject | evict
	Initial  int     `yaml:"initial"`  // scattered at random before the first frame
}

type EmitterConfig struct {
	Enabled  bool    `yaml:"enabled"`
	Origin   Vec     `yaml:"origin"`
	Speed    float64 `yaml:"speed"`
	Interval int     `yaml:"interval"`
}

// DefaultConfig reproduces the fountain demo: a 600x600 view, a 250 unit
// circular container and a spray of radius 4 particles capped at 1000.
func DefaultConfig() *Config {
	return &Config{
		Name:   "fountain",
		Dt:     DefaultDt,
		Frames: DefaultFrames,
		Physics: PhysicsConfig{
			Gravity:    Vec{X: 0, Y: DefaultGravityY},
			Substeps:   DefaultSubsteps,
			Iterations: DefaultIterations,
			Solver:     string(verlet.SolverGaussSeidel),
			Broadphase: "naive",
		},
		Boundary: BoundaryConfig{
			Shape:       "circle",
			Center:      Vec{X: DefaultWidth / 2, Y: DefaultHeight / 2},
			Radius:      DefaultBoundaryR,
			Max:         Vec{X: DefaultWidth, Y: DefaultHeight},
			Mode:        string(verlet.BoundaryClamp),
			Restitution: verlet.DefaultRestitution,
		},
		Particles: ParticlesConfig{
			Radius:   DefaultRadius,
			Max:      DefaultMaxParticles,
			Overflow: string(verlet.OverflowReject),
		},
		Emitter: EmitterConfig{
			Enabled:  true,
			Origin:   Vec{X: DefaultWidth / 2, Y: DefaultEmitterY},
			Speed:    emitter.DefaultSpeed,
			Interval: emitter.DefaultInterval,
		},
	}
}

func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if err := LoadInto(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadInto overlays the YAML file at path onto cfg, so keys the file
// omits keep their current values. cfg is validated afterwards.
func LoadInto(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Config) Validate() error {
	if c.Dt <= 0 {
		return fmt.Errorf("dt must be positive, got %f", c.Dt)
	}
	if c.Frames <= 0 {
		return fmt.Errorf("frames must be positive, got %d", c.Frames)
	}
	if c.Particles.Radius <= 0 {
		return fmt.Errorf("particle radius must be positive, got %f", c.Particles.Radius)
	}
	if c.Particles.Initial < 0 {
		return fmt.Errorf("initial particle count must be non-negative, got %d", c.Particles.Initial)
	}
	if c.Emitter.Enabled && c.Emitter.Interval < 1 {
		return fmt.Errorf("emitter interval must be >= 1, got %d", c.Emitter.Interval)
	}
	sc, err := c.SystemConfig()
	if err != nil {
		return err
	}
	return sc.Validate()
}

// BuildBoundary builds the verlet boundary described by the config.
func (c *Config) BuildBoundary() (verlet.Boundary, error) {
	switch c.Boundary.Shape {
	case "circle", "":
		if c.Boundary.Radius <= 0 {
			return nil, fmt.Errorf("circle radius must be positive, got %f", c.Boundary.Radius)
		}
		return verlet.Circle{Center: c.Boundary.Center.R2(), Radius: c.Boundary.Radius}, nil
	case "rect":
		if c.Boundary.Max.X <= c.Boundary.Min.X || c.Boundary.Max.Y <= c.Boundary.Min.Y {
			return nil, fmt.Errorf("rect max must exceed min, got min=%v max=%v", c.Boundary.Min, c.Boundary.Max)
		}
		return verlet.Rect{Min: c.Boundary.Min.R2(), Max: c.Boundary.Max.R2()}, nil
	default:
		return nil, fmt.Errorf("unknown boundary shape: %s", c.Boundary.Shape)
	}
}

// SystemConfig converts the file-level settings into a verlet.Config.
func (c *Config) SystemConfig() (verlet.Config, error) {
	b, err := c.BuildBoundary()
	if err != nil {
		return verlet.Config{}, err
	}

	var broad verlet.Broadphase
	switch c.Physics.Broadphase {
	case "naive", "":
		broad = verlet.Naive{}
	case "grid":
		broad = verlet.NewGrid()
	default:
		return verlet.Config{}, fmt.Errorf("unknown broadphase: %s", c.Physics.Broadphase)
	}

	return verlet.Config{
		Gravity:      c.Physics.Gravity.R2(),
		Boundary:     b,
		Damping:      c.Physics.Damping,
		Substeps:     c.Physics.Substeps,
		Iterations:   c.Physics.Iterations,
		MaxParticles: c.Particles.Max,
		Overflow:     verlet.OverflowPolicy(c.Particles.Overflow),
		MassWeighted: c.Physics.MassWeighted,
		BoundaryMode: verlet.BoundaryMode(c.Boundary.Mode),
		Restitution:  c.Boundary.Restitution,
		Solver:       verlet.SolverKind(c.Physics.Solver),
		Broadphase:   broad,
	}, nil
}

func (c *Config) EmitterConfig() emitter.Config {
	return emitter.Config{
		Origin:   c.Emitter.Origin.R2(),
		Speed:    c.Emitter.Speed,
		Radius:   c.Particles.Radius,
		Interval: c.Emitter.Interval,
	}
}

// Clone returns a copy of c.
func (c *Config) Clone() *Config {
	cp := *c
	return &cp
}
