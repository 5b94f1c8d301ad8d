package agent

import (
	"gridduel.ai/internal/sim/grid"
	"gridduel.ai/internal/sim/route"
)

type Kind string

const (
	KindIdle   Kind = "IDLE"
	KindMove   Kind = "MOVE"
	KindAttack Kind = "ATTACK"
)

// Decision is the outcome of one tick.
type Decision struct {
	Kind   Kind
	Target [2]float64
	Reason string

	Replanned bool
	Expanded  int
	RouteLen  int
}

// Snapshot is what Decide needs from one observation.
type Snapshot struct {
	Grid     *grid.Grid
	Self     [2]float64
	Opponent [2]float64
}

type Policy struct {
	ReplanOnGoalChange bool
}

// Session is the navigation state carried between ticks by its owner.
// It is not safe for concurrent use.
type Session struct {
	Policy Policy

	Route route.Route
	Goal  grid.Coord

	Replans  int
	NoRoutes int
}

func NewSession(p Policy) *Session { return &Session{Policy: p} }

// CellOf truncates a continuous position toward zero.
func CellOf(p [2]float64) grid.Coord {
	return grid.Coord{X: int(p[0]), Y: int(p[1])}
}

// CellCenter is the continuous target used to walk into c.
func CellCenter(c grid.Coord) [2]float64 {
	return [2]float64{float64(c.X) + 0.5, float64(c.Y) + 0.5}
}

// Decide advances the session by one tick. The cached route is reused while
// the agent stays on it; an empty route yields an idle decision and the next
// tick tries again.
func Decide(s *Session, snap Snapshot) Decision {
	self := CellOf(snap.Self)
	opp := CellOf(snap.Opponent)

	replan := !s.Route.Contains(self)
	if !replan && s.Policy.ReplanOnGoalChange && opp != s.Goal {
		replan = true
	}
	if !replan && s.Route.From(self).Len() == 1 && opp != s.Goal {
		// Route exhausted but the opponent moved on.
		replan = true
	}

	var d Decision
	if replan {
		res := route.Search(snap.Grid, self, opp)
		s.Route = res.Route
		s.Goal = opp
		s.Replans++
		d.Replanned = true
		d.Expanded = res.Expanded
		if s.Route.Empty() {
			s.NoRoutes++
			d.Kind = KindIdle
			d.Reason = "no path found"
			return d
		}
	}

	s.Route = s.Route.From(self)
	d.RouteLen = s.Route.Len()

	if next, ok := s.Route.Next(); ok {
		d.Kind = KindMove
		d.Target = CellCenter(next)
		return d
	}
	d.Kind = KindAttack
	d.Target = snap.Opponent
	return d
}
