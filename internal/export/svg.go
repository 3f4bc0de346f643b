// Package export renders particle snapshots for use outside the terminal.
package export

import (
	"bufio"
	"fmt"
	"io"
	"math"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/san-kum/verletsim/internal/verlet"
)

const (
	background  = "#0a0a0a"
	wallColor   = "#444466"
	svgPadding  = 10.0
	slowHue     = 210.0
	fastHue     = 0.0
	minSpeedCap = 1e-9
)

// ParticlesSVG writes an SVG picture of ps inside boundary b. Coordinates
// are world units times scale. Particles are coloured from blue (at rest)
// to red (fastest in the snapshot).
func ParticlesSVG(w io.Writer, ps []verlet.Particle, b verlet.Boundary, scale float64) error {
	if scale <= 0 {
		return fmt.Errorf("scale must be positive, got %f", scale)
	}
	box := b.Bounds()
	size := r2.Sub(box.Max, box.Min)
	width := size.X*scale + 2*svgPadding
	height := size.Y*scale + 2*svgPadding

	project := func(p r2.Vec) r2.Vec {
		q := r2.Scale(scale, r2.Sub(p, box.Min))
		return r2.Vec{X: q.X + svgPadding, Y: q.Y + svgPadding}
	}

	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%.0f" height="%.0f" viewBox="0 0 %.0f %.0f">
<rect width="100%%" height="100%%" fill="%s"/>
`, width, height, width, height, background)

	switch s := b.(type) {
	case verlet.Circle:
		c := project(s.Center)
		fmt.Fprintf(bw, `<circle cx="%.1f" cy="%.1f" r="%.1f" fill="none" stroke="%s" stroke-width="2"/>
`, c.X, c.Y, s.Radius*scale, wallColor)
	case verlet.Rect:
		lo := project(s.Min)
		fmt.Fprintf(bw, `<rect x="%.1f" y="%.1f" width="%.1f" height="%.1f" fill="none" stroke="%s" stroke-width="2"/>
`, lo.X, lo.Y, (s.Max.X-s.Min.X)*scale, (s.Max.Y-s.Min.Y)*scale, wallColor)
	}

	fastest := minSpeedCap
	for _, p := range ps {
		fastest = math.Max(fastest, r2.Norm(p.Velocity()))
	}

	bw.WriteString("<g>\n")
	for _, p := range ps {
		c := project(p.Position)
		t := r2.Norm(p.Velocity()) / fastest
		hue := slowHue + t*(fastHue-slowHue)
		fmt.Fprintf(bw, `<circle cx="%.2f" cy="%.2f" r="%.2f" fill="hsl(%.0f,80%%,55%%)"/>
`, c.X, c.Y, p.Radius*scale, hue)
	}
	bw.WriteString("</g>\n</svg>\n")
	return bw.Flush()
}
