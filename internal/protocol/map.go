package protocol

import (
	"fmt"

	"gridduel.ai/internal/sim/encoding"
	"gridduel.ai/internal/sim/grid"
)

// maxMapCells bounds RLE decoding of untrusted frames.
const maxMapCells = 1 << 20

// Grid decodes the map into a per-tick grid snapshot.
func (m MapObs) Grid() (*grid.Grid, error) {
	switch m.Encoding {
	case MapEncodingList, "":
		obs := make([]grid.Coord, 0, len(m.Obstacles))
		for _, o := range m.Obstacles {
			obs = append(obs, grid.Coord{X: o[0], Y: o[1]})
		}
		return grid.New(m.Width, m.Height, obs)
	case MapEncodingRLE:
		if m.Width <= 0 || m.Height <= 0 || m.Width > maxMapCells/m.Height {
			return nil, fmt.Errorf("map: bad size %dx%d", m.Width, m.Height)
		}
		cells, err := encoding.DecodeRLE(m.Data, m.Width*m.Height)
		if err != nil {
			return nil, fmt.Errorf("map: %w", err)
		}
		return grid.FromBitmap(m.Width, m.Height, cells)
	default:
		return nil, fmt.Errorf("map: unknown encoding %q", m.Encoding)
	}
}

// EncodeMap builds the wire form of g. RLE drops obstacles outside the grid.
func EncodeMap(g *grid.Grid, enc string) MapObs {
	m := MapObs{Width: g.Width(), Height: g.Height(), Encoding: enc}
	switch enc {
	case MapEncodingRLE:
		m.Data = encoding.EncodeRLE(g.Bitmap())
	default:
		m.Encoding = MapEncodingList
		for _, o := range g.Obstacles() {
			m.Obstacles = append(m.Obstacles, [2]int{o.X, o.Y})
		}
	}
	return m
}
