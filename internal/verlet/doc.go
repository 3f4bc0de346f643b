// Package verlet implements a 2D position-based particle simulation.
//
// Particles carry their current and previous position; velocity is never
// stored and is derived as Position - Previous. A [System] owns the
// particles and advances them with [System.Step]:
//
//   - integrate: move each particle by its implicit velocity plus gravity*h²
//   - collide: push overlapping pairs apart along their centre line
//   - constrain: clamp particles back inside the [Boundary]
//
// # Example
//
//	sys, _ := verlet.New(verlet.DefaultConfig())
//	_ = sys.Spawn(r2.Vec{X: 300, Y: 100}, r2.Vec{X: 2}, 4)
//	for frame := 0; frame < 600; frame++ {
//	    if err := sys.Step(1.0 / 60); err != nil {
//	        break
//	    }
//	}
//
// # Thread Safety
//
// A System is NOT safe for concurrent use. Step must complete before
// particles are read or mutated again. Independent systems may run on
// separate goroutines (see the sim package's Ensemble).
package verlet
