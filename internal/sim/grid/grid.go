package grid

import (
	"fmt"
	"sort"
	"strings"
)

// Coord identifies a single cell. It is comparable and used directly as a map key.
type Coord struct {
	X int
	Y int
}

func (c Coord) String() string { return fmt.Sprintf("(%d, %d)", c.X, c.Y) }

// Neighbors returns the 4-connected cells around c in a fixed order: left, right, up, down.
func (c Coord) Neighbors() [4]Coord {
	return [4]Coord{
		{X: c.X - 1, Y: c.Y},
		{X: c.X + 1, Y: c.Y},
		{X: c.X, Y: c.Y - 1},
		{X: c.X, Y: c.Y + 1},
	}
}

func Manhattan(a, b Coord) int {
	dx := a.X - b.X
	if dx < 0 {
		dx = -dx
	}
	dy := a.Y - b.Y
	if dy < 0 {
		dy = -dy
	}
	return dx + dy
}

// Grid is a per-tick snapshot of the terrain. It has no mutation methods and
// may be shared by concurrent readers.
type Grid struct {
	width     int
	height    int
	obstacles map[Coord]struct{}
}

// New builds a grid. Obstacles are kept as given; coordinates outside
// [0,width)x[0,height) are not rejected.
func New(width, height int, obstacles []Coord) (*Grid, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("grid: bad size %dx%d", width, height)
	}
	g := &Grid{
		width:     width,
		height:    height,
		obstacles: make(map[Coord]struct{}, len(obstacles)),
	}
	for _, o := range obstacles {
		g.obstacles[o] = struct{}{}
	}
	return g, nil
}

// MustNew is New for literals in tests and fixtures.
func MustNew(width, height int, obstacles ...Coord) *Grid {
	g, err := New(width, height, obstacles)
	if err != nil {
		panic(err)
	}
	return g
}

func (g *Grid) Width() int        { return g.width }
func (g *Grid) Height() int       { return g.height }
func (g *Grid) NumObstacles() int { return len(g.obstacles) }

// IsBlocked reports whether c is an obstacle. There is no bounds check.
func (g *Grid) IsBlocked(c Coord) bool {
	_, ok := g.obstacles[c]
	return ok
}

func (g *Grid) InBounds(c Coord) bool {
	return c.X >= 0 && c.Y >= 0 && c.X < g.width && c.Y < g.height
}

// Obstacles returns a copy of the obstacle set ordered by (y, x).
func (g *Grid) Obstacles() []Coord {
	out := make([]Coord, 0, len(g.obstacles))
	for c := range g.obstacles {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Y != out[j].Y {
			return out[i].Y < out[j].Y
		}
		return out[i].X < out[j].X
	})
	return out
}

func (g *Grid) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Grid{width: %d, height: %d, obstacles: [", g.width, g.height)
	for i, c := range g.Obstacles() {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(c.String())
	}
	b.WriteString("]}")
	return b.String()
}
