package verlet_test

import (
	"errors"
	"math"
	"math/rand"
	"sync/atomic"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/san-kum/verletsim/internal/verlet"
)

const eps = 1e-9

func zeroGravity() verlet.Config {
	cfg := verlet.DefaultConfig()
	cfg.Gravity = r2.Vec{}
	return cfg
}

func mustSystem(cfg verlet.Config) *verlet.System {
	sys, err := verlet.New(cfg)
	Expect(err).NotTo(HaveOccurred())
	return sys
}

func distance(a, b verlet.Particle) float64 {
	return r2.Norm(r2.Sub(a.Position, b.Position))
}

// scatter spawns n particles at random points of the default circle.
func scatter(sys *verlet.System, rng *rand.Rand, n int, radius, speed float64) {
	for sys.Len() < n {
		angle := rng.Float64() * 2 * math.Pi
		dist := rng.Float64() * 200
		pos := r2.Vec{X: 300 + dist*math.Cos(angle), Y: 300 + dist*math.Sin(angle)}
		vel := r2.Vec{X: (rng.Float64()*2 - 1) * speed, Y: (rng.Float64()*2 - 1) * speed}
		Expect(sys.Spawn(pos, vel, radius)).To(Succeed())
	}
}

var _ = Describe("System", func() {
	Describe("Step", func() {
		It("separates two overlapping particles to exactly the sum of radii", func() {
			sys := mustSystem(zeroGravity())
			Expect(sys.Spawn(r2.Vec{X: 299.75, Y: 300}, r2.Vec{}, 1)).To(Succeed())
			Expect(sys.Spawn(r2.Vec{X: 300.25, Y: 300}, r2.Vec{}, 1)).To(Succeed())

			Expect(sys.Step(1.0 / 60)).To(Succeed())

			a, b := sys.At(0), sys.At(1)
			Expect(distance(a, b)).To(BeNumerically("~", 2.0, eps))
			Expect(a.Position.X).To(BeNumerically("~", 299.0, eps))
			Expect(b.Position.X).To(BeNumerically("~", 301.0, eps))
			Expect(a.Position.Y).To(Equal(300.0))
			Expect(b.Position.Y).To(Equal(300.0))
		})

		It("pushes coincident particles apart along a fixed axis", func() {
			sys := mustSystem(zeroGravity())
			c := r2.Vec{X: 300, Y: 300}
			Expect(sys.Spawn(c, r2.Vec{}, 1)).To(Succeed())
			Expect(sys.Spawn(c, r2.Vec{}, 1)).To(Succeed())

			Expect(sys.Step(1.0 / 60)).To(Succeed())

			Expect(sys.At(0).Position).To(Equal(r2.Vec{X: 301, Y: 300}))
			Expect(sys.At(1).Position).To(Equal(r2.Vec{X: 299, Y: 300}))
		})

		It("splits corrections by area when mass weighting is enabled", func() {
			cfg := zeroGravity()
			cfg.MassWeighted = true
			sys := mustSystem(cfg)
			Expect(sys.Spawn(r2.Vec{X: 300, Y: 300}, r2.Vec{}, 1)).To(Succeed())
			Expect(sys.Spawn(r2.Vec{X: 302, Y: 300}, r2.Vec{}, 2)).To(Succeed())

			Expect(sys.Step(1.0 / 60)).To(Succeed())

			Expect(sys.At(0).Position.X).To(BeNumerically("~", 299.2, eps))
			Expect(sys.At(1).Position.X).To(BeNumerically("~", 302.2, eps))
		})

		It("keeps a particle at rest without gravity or neighbours", func() {
			sys := mustSystem(zeroGravity())
			Expect(sys.Spawn(r2.Vec{X: 250, Y: 300}, r2.Vec{}, 4)).To(Succeed())
			Expect(sys.Spawn(r2.Vec{X: 350, Y: 300}, r2.Vec{}, 4)).To(Succeed())
			before := sys.Particles()

			for i := 0; i < 500; i++ {
				Expect(sys.Step(1.0 / 60)).To(Succeed())
			}

			Expect(sys.Particles()).To(Equal(before))
		})

		It("settles a falling particle on the circular wall along gravity", func() {
			cfg := verlet.DefaultConfig()
			cfg.Boundary = verlet.Circle{Radius: 10}
			cfg.Gravity = r2.Vec{Y: -9.81}
			cfg.Damping = 0.05
			cfg.Substeps = 4
			sys := mustSystem(cfg)
			Expect(sys.Spawn(r2.Vec{}, r2.Vec{}, 1)).To(Succeed())

			for i := 0; i < 3000; i++ {
				Expect(sys.Step(1.0 / 60)).To(Succeed())
			}

			p := sys.At(0)
			Expect(p.Position.X).To(Equal(0.0))
			Expect(p.Position.Y).To(BeNumerically("~", -9.0, 1e-6))
		})

		It("keeps bouncing on a reflecting wall when undamped", func() {
			cfg := verlet.DefaultConfig()
			cfg.Boundary = verlet.Circle{Radius: 10}
			cfg.Gravity = r2.Vec{Y: -9.81}
			cfg.BoundaryMode = verlet.BoundaryReflect
			cfg.Restitution = 1
			cfg.Substeps = 4
			sys := mustSystem(cfg)
			Expect(sys.Spawn(r2.Vec{}, r2.Vec{}, 1)).To(Succeed())

			highest := math.Inf(-1)
			for i := 0; i < 1200; i++ {
				Expect(sys.Step(1.0 / 60)).To(Succeed())
				if i >= 600 {
					highest = math.Max(highest, sys.At(0).Position.Y)
				}
				Expect(sys.Stats().MaxViolation).To(BeNumerically("<=", eps))
			}

			Expect(highest).To(BeNumerically(">", -8.0))
		})

		It("damps bounces on a reflecting wall", func() {
			cfg := verlet.DefaultConfig()
			cfg.Boundary = verlet.Circle{Radius: 10}
			cfg.Gravity = r2.Vec{Y: -9.81}
			cfg.BoundaryMode = verlet.BoundaryReflect
			cfg.Damping = 0.05
			cfg.Substeps = 4
			sys := mustSystem(cfg)
			Expect(sys.Spawn(r2.Vec{}, r2.Vec{}, 1)).To(Succeed())

			for i := 0; i < 3000; i++ {
				Expect(sys.Step(1.0 / 60)).To(Succeed())
			}

			Expect(r2.Norm(sys.At(0).Position)).To(BeNumerically("~", 9.0, 1e-3))
		})

		It("clamps each axis of a rectangle without touching the previous position", func() {
			cfg := zeroGravity()
			cfg.Boundary = verlet.Rect{Min: r2.Vec{}, Max: r2.Vec{X: 100, Y: 100}}
			sys := mustSystem(cfg)
			Expect(sys.Spawn(r2.Vec{X: 2, Y: 98}, r2.Vec{X: -7, Y: 22}, 1)).To(Succeed())

			Expect(sys.Step(1.0 / 60)).To(Succeed())

			p := sys.At(0)
			Expect(p.Position).To(Equal(r2.Vec{X: 1, Y: 99}))
			Expect(p.Previous).To(Equal(r2.Vec{X: 2, Y: 98}))
		})

		It("aborts with a StepError when a particle stops being finite", func() {
			cfg := verlet.DefaultConfig()
			cfg.Gravity = r2.Vec{Y: 1e308}
			sys := mustSystem(cfg)
			Expect(sys.Spawn(r2.Vec{X: 300, Y: 300}, r2.Vec{}, 4)).To(Succeed())

			err := sys.Step(10)

			Expect(err).To(MatchError(verlet.ErrNonFinite))
			var stepErr *verlet.StepError
			Expect(errors.As(err, &stepErr)).To(BeTrue())
			Expect(stepErr.Step).To(Equal(0))
			Expect(stepErr.Dt).To(Equal(10.0))
		})

		It("mirrors outward velocity in reflect mode", func() {
			cfg := zeroGravity()
			cfg.Boundary = verlet.Rect{Min: r2.Vec{}, Max: r2.Vec{X: 100, Y: 100}}
			cfg.BoundaryMode = verlet.BoundaryReflect
			cfg.Restitution = 1
			sys := mustSystem(cfg)
			Expect(sys.Spawn(r2.Vec{X: 98.5, Y: 50}, r2.Vec{X: 1}, 1)).To(Succeed())

			Expect(sys.Step(1.0 / 60)).To(Succeed())

			p := sys.At(0)
			Expect(p.Position.X).To(BeNumerically("~", 99, eps))
			Expect(p.Velocity().X).To(BeNumerically("~", -0.5, eps))
		})

		DescribeTable("rejects invalid timesteps without mutating state",
			func(dt float64) {
				sys := mustSystem(verlet.DefaultConfig())
				Expect(sys.Spawn(r2.Vec{X: 300, Y: 300}, r2.Vec{X: 1}, 4)).To(Succeed())
				before := sys.Particles()

				err := sys.Step(dt)

				Expect(err).To(MatchError(verlet.ErrInvalidTimestep))
				var stepErr *verlet.StepError
				Expect(err).To(BeAssignableToTypeOf(stepErr))
				Expect(sys.Particles()).To(Equal(before))
				Expect(sys.Steps()).To(Equal(0))
			},
			Entry("negative", -0.01),
			Entry("NaN", math.NaN()),
			Entry("+Inf", math.Inf(1)),
			Entry("-Inf", math.Inf(-1)),
		)

		It("treats a zero timestep as a no-op", func() {
			sys := mustSystem(verlet.DefaultConfig())
			Expect(sys.Spawn(r2.Vec{X: 300, Y: 300}, r2.Vec{X: 1}, 4)).To(Succeed())
			before := sys.Particles()

			Expect(sys.Step(0)).To(Succeed())
			Expect(sys.Particles()).To(Equal(before))
			Expect(sys.Steps()).To(Equal(0))
		})

		It("never changes the particle count", func() {
			sys := mustSystem(verlet.DefaultConfig())
			scatter(sys, rand.New(rand.NewSource(7)), 50, 4, 2)
			for i := 0; i < 100; i++ {
				Expect(sys.Step(1.0 / 60)).To(Succeed())
			}
			Expect(sys.Len()).To(Equal(50))
		})
	})

	Describe("guarantees", func() {
		It("keeps positions finite and inside the boundary under a dense pile", func() {
			cfg := verlet.DefaultConfig()
			cfg.Substeps = 4
			cfg.Iterations = 2
			sys := mustSystem(cfg)
			scatter(sys, rand.New(rand.NewSource(42)), 200, 4, 3)

			for i := 0; i < 300; i++ {
				Expect(sys.Step(1.0 / 60)).To(Succeed())
				for _, p := range sys.Particles() {
					Expect(p.IsFinite()).To(BeTrue())
				}
				Expect(sys.Stats().MaxViolation).To(BeNumerically("<=", eps))
			}
			Expect(sys.Stats().MaxOverlap).To(BeNumerically("<", 4))
		})

		It("resolves isolated overlapping pairs completely", func() {
			cfg := zeroGravity()
			cfg.Boundary = verlet.Rect{Min: r2.Vec{}, Max: r2.Vec{X: 1000, Y: 1000}}
			sys := mustSystem(cfg)
			rng := rand.New(rand.NewSource(3))
			for row := 0; row < 5; row++ {
				for col := 0; col < 5; col++ {
					base := r2.Vec{X: 100 + float64(col)*150, Y: 100 + float64(row)*150}
					angle := rng.Float64() * 2 * math.Pi
					gap := rng.Float64() * 1.9
					offset := r2.Vec{X: gap * math.Cos(angle), Y: gap * math.Sin(angle)}
					Expect(sys.Spawn(base, r2.Vec{}, 1)).To(Succeed())
					Expect(sys.Spawn(r2.Add(base, offset), r2.Vec{}, 1)).To(Succeed())
				}
			}

			Expect(sys.Step(1.0 / 60)).To(Succeed())

			for i := 0; i < sys.Len(); i += 2 {
				Expect(distance(sys.At(i), sys.At(i+1))).To(BeNumerically(">=", 2-eps))
			}
			Expect(sys.Stats().MaxOverlap).To(BeNumerically("<=", eps))
		})

		It("is deterministic for identical inputs", func() {
			run := func() []verlet.Particle {
				cfg := verlet.DefaultConfig()
				cfg.Substeps = 3
				sys := mustSystem(cfg)
				scatter(sys, rand.New(rand.NewSource(11)), 120, 4, 2)
				for i := 0; i < 200; i++ {
					Expect(sys.Step(1.0 / 60)).To(Succeed())
				}
				return sys.Particles()
			}
			Expect(run()).To(Equal(run()))
		})
	})

	Describe("solvers", func() {
		It("gives the same single-pair result with the Jacobi solver", func() {
			cfg := zeroGravity()
			cfg.Solver = verlet.SolverJacobi
			sys := mustSystem(cfg)
			Expect(sys.Spawn(r2.Vec{X: 299.75, Y: 300}, r2.Vec{}, 1)).To(Succeed())
			Expect(sys.Spawn(r2.Vec{X: 300.25, Y: 300}, r2.Vec{}, 1)).To(Succeed())

			Expect(sys.Step(1.0 / 60)).To(Succeed())

			Expect(sys.At(0).Position.X).To(BeNumerically("~", 299.0, eps))
			Expect(sys.At(1).Position.X).To(BeNumerically("~", 301.0, eps))
		})

		It("is deterministic with the Jacobi solver and the grid broadphase", func() {
			run := func() []verlet.Particle {
				cfg := verlet.DefaultConfig()
				cfg.Solver = verlet.SolverJacobi
				cfg.Broadphase = verlet.NewGrid()
				cfg.Substeps = 2
				sys := mustSystem(cfg)
				scatter(sys, rand.New(rand.NewSource(5)), 300, 4, 2)
				for i := 0; i < 100; i++ {
					Expect(sys.Step(1.0 / 60)).To(Succeed())
				}
				return sys.Particles()
			}
			first := run()
			Expect(run()).To(Equal(first))
			for _, p := range first {
				Expect(p.IsFinite()).To(BeTrue())
			}
		})
	})

	Describe("Spawn", func() {
		It("rejects spawns at capacity under the reject policy", func() {
			cfg := verlet.DefaultConfig()
			cfg.MaxParticles = 2
			sys := mustSystem(cfg)
			Expect(sys.Spawn(r2.Vec{X: 200, Y: 300}, r2.Vec{}, 4)).To(Succeed())
			Expect(sys.Spawn(r2.Vec{X: 300, Y: 300}, r2.Vec{}, 4)).To(Succeed())

			err := sys.Spawn(r2.Vec{X: 400, Y: 300}, r2.Vec{}, 4)

			Expect(err).To(MatchError(verlet.ErrCapacityExceeded))
			Expect(sys.Len()).To(Equal(2))
			Expect(sys.At(1).Position.X).To(Equal(300.0))
		})

		It("evicts the oldest particle under the evict policy", func() {
			cfg := verlet.DefaultConfig()
			cfg.MaxParticles = 2
			cfg.Overflow = verlet.OverflowEvict
			sys := mustSystem(cfg)
			for _, x := range []float64{200, 300, 400} {
				Expect(sys.Spawn(r2.Vec{X: x, Y: 300}, r2.Vec{}, 4)).To(Succeed())
			}

			Expect(sys.Len()).To(Equal(2))
			Expect(sys.At(0).Position.X).To(Equal(300.0))
			Expect(sys.At(1).Position.X).To(Equal(400.0))
		})

		DescribeTable("clamps far-out spawns into the boundary",
			func(broad verlet.Broadphase, far r2.Vec) {
				cfg := verlet.DefaultConfig()
				cfg.Broadphase = broad
				sys := mustSystem(cfg)
				Expect(sys.Spawn(r2.Vec{X: 300, Y: 300}, r2.Vec{}, 4)).To(Succeed())
				Expect(sys.Spawn(far, r2.Vec{}, 4)).To(Succeed())

				Expect(sys.Step(1.0 / 60)).To(Succeed())

				Expect(sys.Len()).To(Equal(2))
				Expect(sys.Stats().MaxViolation).To(BeNumerically("<=", eps))
			},
			Entry("grid, far diagonal", verlet.NewGrid(), r2.Vec{X: 1e11, Y: 1e11}),
			Entry("grid, huge x", verlet.NewGrid(), r2.Vec{X: 1e300, Y: 300}),
			Entry("naive, huge x", verlet.Naive{}, r2.Vec{X: 1e300, Y: 300}),
		)

		It("encodes the initial velocity in the previous position", func() {
			sys := mustSystem(verlet.DefaultConfig())
			Expect(sys.Spawn(r2.Vec{X: 300, Y: 300}, r2.Vec{X: 2, Y: -1}, 4)).To(Succeed())
			p := sys.At(0)
			Expect(p.Previous).To(Equal(r2.Vec{X: 298, Y: 301}))
			Expect(p.Velocity()).To(Equal(r2.Vec{X: 2, Y: -1}))
		})

		DescribeTable("rejects invalid particles",
			func(pos r2.Vec, radius float64) {
				sys := mustSystem(verlet.DefaultConfig())
				Expect(sys.Spawn(pos, r2.Vec{}, radius)).To(MatchError(verlet.ErrInvalidParticle))
				Expect(sys.Len()).To(Equal(0))
			},
			Entry("zero radius", r2.Vec{X: 300, Y: 300}, 0.0),
			Entry("negative radius", r2.Vec{X: 300, Y: 300}, -1.0),
			Entry("NaN radius", r2.Vec{X: 300, Y: 300}, math.NaN()),
			Entry("radius larger than the boundary", r2.Vec{X: 300, Y: 300}, 300.0),
			Entry("NaN position", r2.Vec{X: math.NaN(), Y: 300}, 4.0),
		)

		It("clears every particle", func() {
			sys := mustSystem(verlet.DefaultConfig())
			scatter(sys, rand.New(rand.NewSource(1)), 10, 4, 0)
			sys.Clear()
			Expect(sys.Len()).To(BeZero())
			Expect(sys.Spawn(r2.Vec{X: 300, Y: 300}, r2.Vec{}, 4)).To(Succeed())
			Expect(sys.Len()).To(Equal(1))
		})
	})

	Describe("configuration", func() {
		It("rejects invalid setter values and keeps the previous config", func() {
			sys := mustSystem(verlet.DefaultConfig())
			Expect(sys.SetSubsteps(0)).To(MatchError(verlet.ErrInvalidConfig))
			Expect(sys.SetDamping(1)).To(MatchError(verlet.ErrInvalidConfig))
			Expect(sys.SetGravity(r2.Vec{X: math.Inf(1)})).To(MatchError(verlet.ErrInvalidConfig))
			Expect(sys.Config().Substeps).To(Equal(1))

			Expect(sys.SetSubsteps(8)).To(Succeed())
			Expect(sys.SetIterations(3)).To(Succeed())
			Expect(sys.Config().Substeps).To(Equal(8))
			Expect(sys.Config().Iterations).To(Equal(3))
		})

		It("refuses a config without a boundary", func() {
			cfg := verlet.DefaultConfig()
			cfg.Boundary = nil
			_, err := verlet.New(cfg)
			Expect(err).To(MatchError(verlet.ErrInvalidConfig))
		})
	})

	Describe("Stats", func() {
		It("reports kinetic energy from the implicit velocity", func() {
			sys := mustSystem(verlet.DefaultConfig())
			Expect(sys.Spawn(r2.Vec{X: 300, Y: 300}, r2.Vec{X: 3, Y: 4}, 1)).To(Succeed())
			st := sys.Stats()
			Expect(st.Count).To(Equal(1))
			Expect(st.KineticEnergy).To(BeNumerically("~", 12.5, eps))
			Expect(st.MaxOverlap).To(BeZero())
		})
	})
})

var _ = Describe("Grid", func() {
	It("returns every overlapping pair the naive broadphase finds", func() {
		rng := rand.New(rand.NewSource(9))
		ps := make([]verlet.Particle, 400)
		for i := range ps {
			pos := r2.Vec{X: rng.Float64() * 200, Y: rng.Float64() * 200}
			ps[i] = verlet.NewParticle(pos, r2.Vec{}, 1+rng.Float64()*3)
		}
		g := verlet.NewGrid()
		g.Rebuild(ps)

		var nb []int
		for i := range ps {
			nb = g.Neighbors(ps, i, nb[:0])
			seen := make(map[int]bool, len(nb))
			for _, j := range nb {
				seen[j] = true
			}
			for j := range ps {
				if j == i {
					continue
				}
				if distance(ps[i], ps[j]) < ps[i].Radius+ps[j].Radius {
					Expect(seen).To(HaveKey(j))
				}
			}
		}
	})
})

var _ = Describe("Grid extents", func() {
	DescribeTable("stays bounded for particles spread across huge distances",
		func(a, b r2.Vec) {
			ps := []verlet.Particle{
				verlet.NewParticle(a, r2.Vec{}, 1),
				verlet.NewParticle(b, r2.Vec{}, 1),
				verlet.NewParticle(r2.Add(b, r2.Vec{X: 1}), r2.Vec{}, 1),
			}
			g := verlet.NewGrid()
			Expect(func() { g.Rebuild(ps) }).NotTo(Panic())

			Expect(g.Neighbors(ps, 1, nil)).To(ContainElement(2))
			Expect(g.Neighbors(ps, 2, nil)).To(ContainElement(1))
		},
		Entry("far diagonal", r2.Vec{X: 300, Y: 300}, r2.Vec{X: 1e11, Y: 1e11}),
		Entry("huge x", r2.Vec{X: 300, Y: 300}, r2.Vec{X: 1e300, Y: 300}),
		Entry("span overflowing float64", r2.Vec{X: -1e308, Y: 0}, r2.Vec{X: 1e308, Y: 0}),
	)
})

var _ = Describe("ParallelFor", func() {
	It("visits every index exactly once", func() {
		const n = 1000
		var hits [n]int32
		var total atomic.Int64
		verlet.ParallelFor(n, 10, func(start, end int) {
			for i := start; i < end; i++ {
				atomic.AddInt32(&hits[i], 1)
				total.Add(1)
			}
		})
		Expect(total.Load()).To(Equal(int64(n)))
		for i := range hits {
			Expect(hits[i]).To(Equal(int32(1)))
		}
	})
})
