// Package viz draws a running particle system in the terminal.
//
// [Model] is a Bubble Tea program that advances a [sim.Runner] one frame
// per tick and renders the particles on a braille [Canvas], next to a
// stats panel with an energy plot.
//
// # Key Bindings
//
//	Space - Pause/Resume simulation
//	S     - Spray a burst of particles
//	C     - Clear all particles
//	E     - Pause/Resume the emitter
//	G     - Toggle gravity
//	+/-   - More/fewer substeps
//	T     - Cycle color themes
//	?     - Show help overlay
//	Q     - Quit
package viz
