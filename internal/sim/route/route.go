package route

import (
	"fmt"

	"gridduel.ai/internal/sim/grid"
)

// Route is an ordered, 4-connected sequence of cells from start to goal
// inclusive. An empty Route means no route was found.
type Route []grid.Coord

func (r Route) Empty() bool { return len(r) == 0 }
func (r Route) Len() int    { return len(r) }

func (r Route) Index(c grid.Coord) int {
	for i, p := range r {
		if p == c {
			return i
		}
	}
	return -1
}

func (r Route) Contains(c grid.Coord) bool { return r.Index(c) >= 0 }

// From returns the suffix of r starting at the first occurrence of c, or nil
// if c is not on the route. The result shares the backing array.
func (r Route) From(c grid.Coord) Route {
	i := r.Index(c)
	if i < 0 {
		return nil
	}
	return r[i:]
}

// Goal returns the last cell. ok is false for an empty route.
func (r Route) Goal() (grid.Coord, bool) {
	if len(r) == 0 {
		return grid.Coord{}, false
	}
	return r[len(r)-1], true
}

// Next returns the waypoint after the first cell, if any.
func (r Route) Next() (grid.Coord, bool) {
	if len(r) < 2 {
		return grid.Coord{}, false
	}
	return r[1], true
}

// Validate checks that consecutive cells are 4-adjacent and that no cell is
// blocked in g. An empty route is valid.
func (r Route) Validate(g *grid.Grid) error {
	for i, c := range r {
		if g != nil && g.IsBlocked(c) {
			return fmt.Errorf("route: cell %d %v is blocked", i, c)
		}
		if i == 0 {
			continue
		}
		if d := grid.Manhattan(r[i-1], c); d != 1 {
			return fmt.Errorf("route: step %d %v->%v has distance %d", i, r[i-1], c, d)
		}
	}
	return nil
}
