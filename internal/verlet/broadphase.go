package verlet

import "math"

// Broadphase narrows the set of pairs the collision pass must test.
// Rebuild is called once per pass; Neighbors may then be called
// concurrently and must append indices in a deterministic order.
type Broadphase interface {
	Rebuild(ps []Particle)
	Neighbors(ps []Particle, i int, dst []int) []int
}

// Naive tests every pair.
type Naive struct{}

func (Naive) Rebuild([]Particle) {}

func (Naive) Neighbors(ps []Particle, i int, dst []int) []int {
	for j := range ps {
		if j != i {
			dst = append(dst, j)
		}
	}
	return dst
}

// maxGridCells bounds memory when particles are spread far apart.
const maxGridCells = 1 << 20

// Grid buckets particles into square cells twice the largest radius wide,
// so any overlapping pair lies in the same or an adjacent cell.
type Grid struct {
	cellSize   float64
	minX, minY float64
	cols, rows int
	cells      [][]int
	cellOf     []int
}

func NewGrid() *Grid {
	return &Grid{}
}

func (g *Grid) Rebuild(ps []Particle) {
	g.cellOf = g.cellOf[:0]
	if len(ps) == 0 {
		g.cols, g.rows = 0, 0
		return
	}

	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	maxR := 0.0
	for _, p := range ps {
		maxR = math.Max(maxR, p.Radius)
		if !finite(p.Position) {
			continue
		}
		minX = math.Min(minX, p.Position.X)
		minY = math.Min(minY, p.Position.Y)
		maxX = math.Max(maxX, p.Position.X)
		maxY = math.Max(maxY, p.Position.Y)
	}
	if minX > maxX {
		minX, minY, maxX, maxY = 0, 0, 0, 0
	}

	g.minX, g.minY = minX, minY
	g.cellSize = 2 * maxR
	spanX, spanY := maxX-minX, maxY-minY
	if math.IsInf(spanX, 0) || math.IsInf(spanY, 0) {
		// Extents this wide overflow; fall back to a single cell.
		g.cellSize = math.Inf(1)
		spanX, spanY = 0, 0
	}
	// Counted in float64 and converted only once the grid fits.
	fc := math.Floor(spanX/g.cellSize) + 1
	fr := math.Floor(spanY/g.cellSize) + 1
	for fc*fr > maxGridCells {
		g.cellSize *= 2
		fc = math.Floor(spanX/g.cellSize) + 1
		fr = math.Floor(spanY/g.cellSize) + 1
	}
	g.cols, g.rows = int(fc), int(fr)

	n := g.cols * g.rows
	if cap(g.cells) < n {
		g.cells = make([][]int, n)
	}
	g.cells = g.cells[:n]
	for i := range g.cells {
		g.cells[i] = g.cells[i][:0]
	}

	for i, p := range ps {
		idx := g.cellIndex(g.coords(p.Position.X, p.Position.Y))
		g.cells[idx] = append(g.cells[idx], i)
		g.cellOf = append(g.cellOf, idx)
	}
}

func (g *Grid) coords(x, y float64) (int, int) {
	col := int((x - g.minX) / g.cellSize)
	row := int((y - g.minY) / g.cellSize)
	return min(max(col, 0), g.cols-1), min(max(row, 0), g.rows-1)
}

func (g *Grid) cellIndex(col, row int) int {
	return row*g.cols + col
}

func (g *Grid) Neighbors(ps []Particle, i int, dst []int) []int {
	if i >= len(g.cellOf) {
		return dst
	}
	idx := g.cellOf[i]
	col, row := idx%g.cols, idx/g.cols
	for dr := -1; dr <= 1; dr++ {
		r := row + dr
		if r < 0 || r >= g.rows {
			continue
		}
		for dc := -1; dc <= 1; dc++ {
			c := col + dc
			if c < 0 || c >= g.cols {
				continue
			}
			for _, j := range g.cells[g.cellIndex(c, r)] {
				if j != i {
					dst = append(dst, j)
				}
			}
		}
	}
	return dst
}
