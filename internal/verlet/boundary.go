package verlet

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// Boundary confines particle centres to a region shrunk by their radius.
type Boundary interface {
	// Clamp returns pos moved onto the nearest admissible point for a
	// particle of the given radius. Inside positions are returned unchanged.
	Clamp(pos r2.Vec, radius float64) r2.Vec
	// Violation is the distance by which the particle exceeds the region, or 0.
	Violation(pos r2.Vec, radius float64) float64
	// Fits reports whether a particle of the given radius can be placed at all.
	Fits(radius float64) bool
	// Bounds is the axis-aligned extent of the region.
	Bounds() r2.Box
}

// Circle is a round container.
type Circle struct {
	Center r2.Vec
	Radius float64
}

func (c Circle) Clamp(pos r2.Vec, radius float64) r2.Vec {
	d := r2.Sub(pos, c.Center)
	dist := r2.Norm(d)
	limit := c.Radius - radius
	if dist <= limit || dist == 0 {
		return pos
	}
	return r2.Add(c.Center, r2.Scale(limit/dist, d))
}

func (c Circle) Violation(pos r2.Vec, radius float64) float64 {
	return math.Max(0, r2.Norm(r2.Sub(pos, c.Center))-(c.Radius-radius))
}

func (c Circle) Fits(radius float64) bool {
	return radius < c.Radius
}

func (c Circle) Bounds() r2.Box {
	ext := r2.Vec{X: c.Radius, Y: c.Radius}
	return r2.Box{Min: r2.Sub(c.Center, ext), Max: r2.Add(c.Center, ext)}
}

// Rect is an axis-aligned box. Each axis is clamped independently.
type Rect struct {
	Min, Max r2.Vec
}

func (r Rect) Clamp(pos r2.Vec, radius float64) r2.Vec {
	return r2.Vec{
		X: clamp(pos.X, r.Min.X+radius, r.Max.X-radius),
		Y: clamp(pos.Y, r.Min.Y+radius, r.Max.Y-radius),
	}
}

func (r Rect) Violation(pos r2.Vec, radius float64) float64 {
	v := 0.0
	v = math.Max(v, r.Min.X+radius-pos.X)
	v = math.Max(v, pos.X-(r.Max.X-radius))
	v = math.Max(v, r.Min.Y+radius-pos.Y)
	v = math.Max(v, pos.Y-(r.Max.Y-radius))
	return v
}

func (r Rect) Fits(radius float64) bool {
	return 2*radius <= r.Max.X-r.Min.X && 2*radius <= r.Max.Y-r.Min.Y
}

func (r Rect) Bounds() r2.Box {
	return r2.Box{Min: r.Min, Max: r.Max}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
