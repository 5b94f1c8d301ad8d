package grid

import "testing"

func TestIsBlockedNoBoundsCheck(t *testing.T) {
	g := MustNew(3, 3, Coord{X: 1, Y: 1}, Coord{X: 7, Y: -2})
	if !g.IsBlocked(Coord{X: 1, Y: 1}) {
		t.Fatalf("expected (1,1) blocked")
	}
	if !g.IsBlocked(Coord{X: 7, Y: -2}) {
		t.Fatalf("out-of-range obstacle should still be a member")
	}
	if g.IsBlocked(Coord{X: 0, Y: 0}) {
		t.Fatalf("(0,0) should be free")
	}
	if g.InBounds(Coord{X: 7, Y: -2}) {
		t.Fatalf("(7,-2) reported in bounds")
	}
	if g.NumObstacles() != 2 {
		t.Fatalf("NumObstacles=%d", g.NumObstacles())
	}
}

func TestNewRejectsBadSize(t *testing.T) {
	if _, err := New(0, 3, nil); err == nil {
		t.Fatalf("expected error for zero width")
	}
	if _, err := New(3, -1, nil); err == nil {
		t.Fatalf("expected error for negative height")
	}
}

func TestObstaclesIsSortedCopy(t *testing.T) {
	g := MustNew(4, 4, Coord{X: 2, Y: 1}, Coord{X: 0, Y: 1}, Coord{X: 3, Y: 0})
	obs := g.Obstacles()
	want := []Coord{{X: 3, Y: 0}, {X: 0, Y: 1}, {X: 2, Y: 1}}
	if len(obs) != len(want) {
		t.Fatalf("len=%d want %d", len(obs), len(want))
	}
	for i := range want {
		if obs[i] != want[i] {
			t.Fatalf("obs[%d]=%v want %v", i, obs[i], want[i])
		}
	}
	obs[0] = Coord{X: 9, Y: 9}
	if g.IsBlocked(Coord{X: 9, Y: 9}) {
		t.Fatalf("mutating the copy leaked into the grid")
	}
}

func TestManhattanAndNeighbors(t *testing.T) {
	if d := Manhattan(Coord{X: -1, Y: 2}, Coord{X: 3, Y: -1}); d != 7 {
		t.Fatalf("Manhattan=%d", d)
	}
	n := Coord{X: 5, Y: 5}.Neighbors()
	want := [4]Coord{{X: 4, Y: 5}, {X: 6, Y: 5}, {X: 5, Y: 4}, {X: 5, Y: 6}}
	if n != want {
		t.Fatalf("Neighbors=%v", n)
	}
}

func TestBitmapRoundTrip(t *testing.T) {
	g := MustNew(3, 2, Coord{X: 0, Y: 0}, Coord{X: 2, Y: 1}, Coord{X: 5, Y: 5})
	bm := g.Bitmap()
	if len(bm) != 6 || bm[0] != 1 || bm[5] != 1 || bm[1] != 0 {
		t.Fatalf("bitmap=%v", bm)
	}
	back, err := FromBitmap(3, 2, bm)
	if err != nil {
		t.Fatalf("FromBitmap: %v", err)
	}
	if back.NumObstacles() != 2 || !back.IsBlocked(Coord{X: 2, Y: 1}) {
		t.Fatalf("decoded=%s", back)
	}
	if _, err := FromBitmap(3, 2, bm[:5]); err == nil {
		t.Fatalf("expected size mismatch error")
	}
}

func TestString(t *testing.T) {
	g := MustNew(2, 2, Coord{X: 1, Y: 0})
	if got := g.String(); got != "Grid{width: 2, height: 2, obstacles: [(1, 0)]}" {
		t.Fatalf("String=%q", got)
	}
}
