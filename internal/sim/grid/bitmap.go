package grid

import "fmt"

// Bitmap returns a row-major width*height slice with 1 for blocked cells.
// Obstacles outside the grid are not representable and are skipped.
func (g *Grid) Bitmap() []uint16 {
	out := make([]uint16, g.width*g.height)
	for c := range g.obstacles {
		if !g.InBounds(c) {
			continue
		}
		out[c.Y*g.width+c.X] = 1
	}
	return out
}

// FromBitmap is the inverse of Bitmap. Any non-zero value is an obstacle.
func FromBitmap(width, height int, cells []uint16) (*Grid, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("grid: bad size %dx%d", width, height)
	}
	if len(cells) != width*height {
		return nil, fmt.Errorf("grid: bitmap has %d cells, want %d", len(cells), width*height)
	}
	var obstacles []Coord
	for i, v := range cells {
		if v == 0 {
			continue
		}
		obstacles = append(obstacles, Coord{X: i % width, Y: i / width})
	}
	return New(width, height, obstacles)
}
