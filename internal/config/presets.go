package config

import "sort"

var Presets = map[string]func() *Config{
	// six substeps and bouncing walls, as in the classic fountain demo
	"fountain": func() *Config {
		cfg := DefaultConfig()
		cfg.Physics.Substeps = 6
		cfg.Boundary.Mode = "reflect"
		return cfg
	},
	"box": func() *Config {
		cfg := DefaultConfig()
		cfg.Name = "box"
		cfg.Boundary.Shape = "rect"
		cfg.Boundary.Min = Vec{X: 50, Y: 50}
		cfg.Boundary.Max = Vec{X: 550, Y: 550}
		cfg.Physics.Substeps = 4
		cfg.Physics.Iterations = 2
		cfg.Physics.Broadphase = "grid"
		cfg.Emitter.Interval = 2
		return cfg
	},
	"drop": func() *Config {
		cfg := DefaultConfig()
		cfg.Name = "drop"
		cfg.Emitter.Enabled = false
		cfg.Particles.Initial = 300
		cfg.Physics.Substeps = 4
		cfg.Physics.Damping = 0.001
		return cfg
	},
	"still": func() *Config {
		cfg := DefaultConfig()
		cfg.Name = "still"
		cfg.Emitter.Enabled = false
		cfg.Physics.Gravity = Vec{}
		cfg.Particles.Initial = 100
		return cfg
	},
	"stream": func() *Config {
		cfg := DefaultConfig()
		cfg.Name = "stream"
		cfg.Particles.Max = 400
		cfg.Particles.Overflow = "evict"
		cfg.Physics.Substeps = 4
		cfg.Physics.Solver = "jacobi"
		cfg.Physics.Broadphase = "grid"
		return cfg
	},
}

// GetPreset returns a fresh copy of the named preset, or nil.
func GetPreset(name string) *Config {
	fn, ok := Presets[name]
	if !ok {
		return nil
	}
	cfg := fn()
	if cfg.Name == DefaultConfig().Name {
		cfg.Name = name
	}
	return cfg
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
