package agent

import (
	"io"
	"log"
	"testing"

	"gridduel.ai/internal/protocol"
	"gridduel.ai/internal/sim/grid"
)

type memSink struct{ entries []LogEntry }

func (m *memSink) WriteDecision(e LogEntry) error {
	m.entries = append(m.entries, e)
	return nil
}

func obsFor(tick uint64, self, opp [2]float64, g *grid.Grid) *protocol.ObsMsg {
	return &protocol.ObsMsg{
		Type:            protocol.TypeObs,
		ProtocolVersion: protocol.Version,
		Tick:            tick,
		AgentID:         "A1",
		Players: []protocol.PlayerObs{
			{ID: "A2", Index: 1, Position: opp, HP: 100},
			{ID: "A1", Index: 0, Position: self, HP: 100},
		},
		Map: protocol.EncodeMap(g, protocol.MapEncodingRLE),
	}
}

func TestAgent_HandleObs(t *testing.T) {
	sink := &memSink{}
	a := New(Policy{}, log.New(io.Discard, "", 0), sink)
	g := grid.MustNew(4, 4, grid.Coord{X: 1, Y: 0})

	act, err := a.HandleObs(obsFor(7, [2]float64{0.5, 0.5}, [2]float64{2.5, 0.5}, g))
	if err != nil {
		t.Fatalf("HandleObs: %v", err)
	}
	if act == nil || act.Action.Kind != protocol.ActionMove || act.Tick != 7 || act.AgentID != "A1" {
		t.Fatalf("act=%+v", act)
	}
	if act.Action.Target == [2]float64{1.5, 0.5} {
		t.Fatalf("moved into obstacle: %+v", act.Action)
	}

	if len(sink.entries) != 1 {
		t.Fatalf("entries=%d", len(sink.entries))
	}
	e := sink.entries[0]
	if !e.Replanned || e.Map == nil || len(e.Route) != e.RouteLen || e.RouteLen == 0 {
		t.Fatalf("entry=%+v", e)
	}

	act, err = a.HandleObs(obsFor(8, [2]float64{2.4, 0.6}, [2]float64{2.5, 0.5}, g))
	if err != nil {
		t.Fatalf("HandleObs: %v", err)
	}
	if act == nil || act.Action.Kind != protocol.ActionAttack {
		t.Fatalf("expected attack, got %+v", act)
	}
}

func TestAgent_HandleObsIdleSendsNothing(t *testing.T) {
	a := New(Policy{}, log.New(io.Discard, "", 0))
	g := grid.MustNew(3, 1, grid.Coord{X: 1, Y: 0})
	act, err := a.HandleObs(obsFor(1, [2]float64{0.5, 0.5}, [2]float64{2.5, 0.5}, g))
	if err != nil || act != nil {
		t.Fatalf("act=%+v err=%v", act, err)
	}
}

func TestSnapshotFromObsErrors(t *testing.T) {
	g := grid.MustNew(2, 2)
	obs := obsFor(1, [2]float64{0.5, 0.5}, [2]float64{1.5, 1.5}, g)
	obs.AgentID = "ghost"
	if _, err := SnapshotFromObs(obs); err == nil {
		t.Fatalf("expected missing self error")
	}

	obs = obsFor(1, [2]float64{0.5, 0.5}, [2]float64{1.5, 1.5}, g)
	obs.Players = obs.Players[1:]
	if _, err := SnapshotFromObs(obs); err == nil {
		t.Fatalf("expected missing opponent error")
	}

	obs = obsFor(1, [2]float64{0.5, 0.5}, [2]float64{1.5, 1.5}, g)
	obs.Map.Data = "!!"
	if _, err := SnapshotFromObs(obs); err == nil {
		t.Fatalf("expected map decode error")
	}
}
