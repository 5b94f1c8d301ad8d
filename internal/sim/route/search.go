package route

import (
	"container/heap"

	"gridduel.ai/internal/sim/grid"
)

// Result carries the route plus search bookkeeping for logs.
type Result struct {
	Route    Route
	Found    bool
	Expanded int
}

// Find is Search without the bookkeeping.
func Find(g *grid.Grid, start, goal grid.Coord) Route {
	return Search(g, start, goal).Route
}

// Search runs a greedy best-first search from start to goal. The frontier is
// ordered only by Manhattan distance to goal; there is no accumulated path
// cost, so a cell is never re-expanded once discovered and the route is not
// guaranteed to be shortest around obstacles.
//
// Neighbors outside the grid bounds are not generated, which keeps every
// search finite. start and goal themselves are not validated.
func Search(g *grid.Grid, start, goal grid.Coord) Result {
	open := &frontier{}
	heap.Init(open)

	visited := map[grid.Coord]struct{}{start: {}}
	parents := map[grid.Coord]grid.Coord{}

	var seq uint64
	push := func(c grid.Coord) {
		heap.Push(open, &frontierItem{pos: c, h: grid.Manhattan(c, goal), seq: seq})
		seq++
	}
	push(start)

	res := Result{}
	for open.Len() > 0 {
		cur := heap.Pop(open).(*frontierItem).pos
		res.Expanded++

		if cur == goal {
			res.Found = true
			break
		}

		for _, n := range cur.Neighbors() {
			if _, seen := visited[n]; seen {
				continue
			}
			if !g.InBounds(n) || g.IsBlocked(n) {
				continue
			}
			visited[n] = struct{}{}
			parents[n] = cur
			push(n)
		}
	}

	if !res.Found {
		return res
	}
	res.Route = reconstruct(parents, start, goal)
	return res
}

func reconstruct(parents map[grid.Coord]grid.Coord, start, goal grid.Coord) Route {
	path := make(Route, 0, grid.Manhattan(start, goal)+1)
	for cur := goal; cur != start; cur = parents[cur] {
		path = append(path, cur)
	}
	path = append(path, start)

	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

type frontierItem struct {
	pos   grid.Coord
	h     int
	seq   uint64
	index int
}

// frontier is a min-heap on h, FIFO among equal h.
type frontier []*frontierItem

func (f frontier) Len() int { return len(f) }
func (f frontier) Less(i, j int) bool {
	if f[i].h != f[j].h {
		return f[i].h < f[j].h
	}
	return f[i].seq < f[j].seq
}
func (f frontier) Swap(i, j int) {
	f[i], f[j] = f[j], f[i]
	f[i].index = i
	f[j].index = j
}
func (f *frontier) Push(x any) {
	item := x.(*frontierItem)
	item.index = len(*f)
	*f = append(*f, item)
}
func (f *frontier) Pop() any {
	old := *f
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*f = old[:n-1]
	return item
}
