package agent

import (
	"testing"

	"gridduel.ai/internal/sim/grid"
)

func snapAt(g *grid.Grid, self, opp [2]float64) Snapshot {
	return Snapshot{Grid: g, Self: self, Opponent: opp}
}

func TestCellOfTruncatesTowardZero(t *testing.T) {
	if got := CellOf([2]float64{2.99, 0.01}); got != (grid.Coord{X: 2, Y: 0}) {
		t.Fatalf("CellOf=%v", got)
	}
	if got := CellOf([2]float64{-0.5, 1.9}); got != (grid.Coord{X: 0, Y: 1}) {
		t.Fatalf("CellOf(negative)=%v", got)
	}
	if got := CellCenter(grid.Coord{X: 3, Y: 1}); got != [2]float64{3.5, 1.5} {
		t.Fatalf("CellCenter=%v", got)
	}
}

func TestDecide_WalksRouteThenAttacks(t *testing.T) {
	g := grid.MustNew(5, 5)
	s := NewSession(Policy{})
	opp := [2]float64{2.5, 0.5}

	d := Decide(s, snapAt(g, [2]float64{0.2, 0.7}, opp))
	if d.Kind != KindMove || d.Target != [2]float64{1.5, 0.5} || !d.Replanned || d.RouteLen != 3 {
		t.Fatalf("tick1: %+v", d)
	}

	d = Decide(s, snapAt(g, [2]float64{1.1, 0.5}, opp))
	if d.Kind != KindMove || d.Target != [2]float64{2.5, 0.5} || d.Replanned || d.RouteLen != 2 {
		t.Fatalf("tick2: %+v", d)
	}

	d = Decide(s, snapAt(g, [2]float64{2.3, 0.4}, opp))
	if d.Kind != KindAttack || d.Target != opp || d.Replanned {
		t.Fatalf("tick3: %+v", d)
	}
	if s.Replans != 1 {
		t.Fatalf("replans=%d want 1", s.Replans)
	}
}

func TestDecide_ReplansWhenOffRoute(t *testing.T) {
	g := grid.MustNew(5, 5)
	s := NewSession(Policy{})
	opp := [2]float64{4.5, 0.5}

	Decide(s, snapAt(g, [2]float64{0.5, 0.5}, opp))
	// Knocked off the row.
	d := Decide(s, snapAt(g, [2]float64{1.5, 3.5}, opp))
	if !d.Replanned || d.Kind != KindMove {
		t.Fatalf("expected replan: %+v", d)
	}
	if s.Route[0] != (grid.Coord{X: 1, Y: 3}) {
		t.Fatalf("route should start at the new cell: %v", s.Route)
	}
	if err := s.Route.Validate(g); err != nil {
		t.Fatalf("route invalid: %v", err)
	}
}

func TestDecide_KeepsRouteWhileOpponentMoves(t *testing.T) {
	g := grid.MustNew(8, 3)
	s := NewSession(Policy{})

	Decide(s, snapAt(g, [2]float64{0.5, 0.5}, [2]float64{6.5, 0.5}))
	d := Decide(s, snapAt(g, [2]float64{1.5, 0.5}, [2]float64{6.5, 2.5}))
	if d.Replanned {
		t.Fatalf("default policy should keep the cached route: %+v", d)
	}
	if goal, _ := s.Route.Goal(); goal != (grid.Coord{X: 6, Y: 0}) {
		t.Fatalf("goal=%v", goal)
	}
}

func TestDecide_ReplanOnGoalChangePolicy(t *testing.T) {
	g := grid.MustNew(8, 3)
	s := NewSession(Policy{ReplanOnGoalChange: true})

	Decide(s, snapAt(g, [2]float64{0.5, 0.5}, [2]float64{6.5, 0.5}))
	d := Decide(s, snapAt(g, [2]float64{1.5, 0.5}, [2]float64{6.5, 2.5}))
	if !d.Replanned {
		t.Fatalf("expected replan on goal change: %+v", d)
	}
	if goal, _ := s.Route.Goal(); goal != (grid.Coord{X: 6, Y: 2}) {
		t.Fatalf("goal=%v", goal)
	}
}

func TestDecide_ExhaustedRouteFollowsOpponent(t *testing.T) {
	g := grid.MustNew(5, 5)
	s := NewSession(Policy{})

	d := Decide(s, snapAt(g, [2]float64{1.5, 1.5}, [2]float64{1.7, 1.2}))
	if d.Kind != KindAttack || s.Route.Len() != 1 {
		t.Fatalf("same cell should attack: %+v route=%v", d, s.Route)
	}
	d = Decide(s, snapAt(g, [2]float64{1.5, 1.5}, [2]float64{3.5, 1.5}))
	if !d.Replanned || d.Kind != KindMove || d.Target != [2]float64{2.5, 1.5} {
		t.Fatalf("expected replan toward moved opponent: %+v", d)
	}
}

func TestDecide_NoRouteIsIdleAndRetries(t *testing.T) {
	g := grid.MustNew(3, 3, grid.Coord{X: 1, Y: 0}, grid.Coord{X: 1, Y: 1}, grid.Coord{X: 1, Y: 2})
	s := NewSession(Policy{})

	for i := 0; i < 2; i++ {
		d := Decide(s, snapAt(g, [2]float64{0.5, 1.5}, [2]float64{2.5, 1.5}))
		if d.Kind != KindIdle || d.Reason != "no path found" || !d.Replanned {
			t.Fatalf("tick %d: %+v", i, d)
		}
	}
	if s.NoRoutes != 2 || s.Replans != 2 {
		t.Fatalf("noRoutes=%d replans=%d", s.NoRoutes, s.Replans)
	}
}
