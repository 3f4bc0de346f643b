package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/san-kum/verletsim/internal/config"
)

func addSimFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&configFile, "config", "", "config file path (yaml)")
	f.StringVar(&preset, "preset", "", "use preset configuration")
	f.Float64Var(&dt, "dt", config.DefaultDt, "frame timestep in seconds")
	f.IntVar(&frames, "frames", config.DefaultFrames, "number of frames")
	f.Int64Var(&seed, "seed", 0, "random seed for initial particles")
	f.IntVar(&substeps, "substeps", config.DefaultSubsteps, "integration substeps per frame")
	f.IntVar(&iterations, "iterations", config.DefaultIterations, "collision passes per substep")
	f.Float64Var(&damping, "damping", 0, "fraction of velocity lost per substep")
	f.StringVar(&solver, "solver", "gauss-seidel", "collision solver (gauss-seidel, jacobi)")
	f.StringVar(&broadphase, "broadphase", "naive", "pair search (naive, grid)")
	f.IntVar(&maxCount, "max", config.DefaultMaxParticles, "particle capacity (0 = unlimited)")
	f.StringVar(&overflow, "overflow", "reject", "behaviour at capacity (reject, evict)")
	f.IntVar(&initial, "initial", 0, "particles scattered before the first frame")
	f.StringVar(&wallMode, "wall", "clamp", "boundary response (clamp, reflect)")
	f.BoolVar(&noEmitter, "no-emitter", false, "disable the fountain")
}

func resolveConfig(cmd *cobra.Command) (*config.Config, error) {
	return resolvePreset(cmd, preset)
}

// resolvePreset layers the configuration: defaults or the named preset,
// then the config file, then any flag given explicitly.
func resolvePreset(cmd *cobra.Command, name string) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if name != "" {
		cfg = config.GetPreset(name)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", name, config.ListPresets())
		}
	}

	if configFile != "" {
		if err := config.LoadInto(configFile, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}

	f := cmd.Flags()
	if f.Changed("dt") {
		cfg.Dt = dt
	}
	if f.Changed("frames") {
		cfg.Frames = frames
	}
	if f.Changed("seed") {
		cfg.Seed = seed
	}
	if f.Changed("substeps") {
		cfg.Physics.Substeps = substeps
	}
	if f.Changed("iterations") {
		cfg.Physics.Iterations = iterations
	}
	if f.Changed("damping") {
		cfg.Physics.Damping = damping
	}
	if f.Changed("solver") {
		cfg.Physics.Solver = solver
	}
	if f.Changed("broadphase") {
		cfg.Physics.Broadphase = broadphase
	}
	if f.Changed("max") {
		cfg.Particles.Max = maxCount
	}
	if f.Changed("overflow") {
		cfg.Particles.Overflow = overflow
	}
	if f.Changed("initial") {
		cfg.Particles.Initial = initial
	}
	if f.Changed("wall") {
		cfg.Boundary.Mode = wallMode
	}
	if noEmitter {
		cfg.Emitter.Enabled = false
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
