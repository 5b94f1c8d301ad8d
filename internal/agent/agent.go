package agent

import (
	"fmt"
	"log"

	"gridduel.ai/internal/protocol"
)

// LogEntry is one decision record. Map and Route are only filled on ticks
// that replanned, which is enough to re-validate every computed route.
type LogEntry struct {
	Tick     uint64     `json:"tick"`
	AgentID  string     `json:"agent_id"`
	Self     [2]float64 `json:"self"`
	Opponent [2]float64 `json:"opponent"`

	Kind   Kind       `json:"kind"`
	Target [2]float64 `json:"target"`
	Reason string     `json:"reason,omitempty"`

	Replanned bool             `json:"replanned,omitempty"`
	Expanded  int              `json:"expanded,omitempty"`
	RouteLen  int              `json:"route_len"`
	Route     [][2]int         `json:"route,omitempty"`
	Map       *protocol.MapObs `json:"map,omitempty"`
}

type DecisionLogger interface {
	WriteDecision(e LogEntry) error
}

// Agent turns observations into actions. It owns one navigation session.
type Agent struct {
	sess  *Session
	log   *log.Logger
	sinks []DecisionLogger
}

func New(p Policy, logger *log.Logger, sinks ...DecisionLogger) *Agent {
	return &Agent{sess: NewSession(p), log: logger, sinks: sinks}
}

func (a *Agent) Session() *Session { return a.sess }

// SnapshotFromObs picks the agent and its opponent out of obs and decodes the map.
func SnapshotFromObs(obs *protocol.ObsMsg) (Snapshot, error) {
	var (
		snap             Snapshot
		haveSelf, haveOp bool
	)
	for _, p := range obs.Players {
		if p.ID == obs.AgentID {
			snap.Self = p.Position
			haveSelf = true
		} else if !haveOp {
			snap.Opponent = p.Position
			haveOp = true
		}
	}
	if !haveSelf {
		return snap, fmt.Errorf("obs tick=%d: self %q not in players", obs.Tick, obs.AgentID)
	}
	if !haveOp {
		return snap, fmt.Errorf("obs tick=%d: no opponent", obs.Tick)
	}
	g, err := obs.Map.Grid()
	if err != nil {
		return snap, fmt.Errorf("obs tick=%d: %w", obs.Tick, err)
	}
	snap.Grid = g
	return snap, nil
}

// HandleObs decides for one tick. It returns nil when there is nothing to send.
func (a *Agent) HandleObs(obs *protocol.ObsMsg) (*protocol.ActMsg, error) {
	snap, err := SnapshotFromObs(obs)
	if err != nil {
		return nil, err
	}
	d := Decide(a.sess, snap)

	switch {
	case d.Kind == KindIdle:
		a.log.Printf("tick=%d %s", obs.Tick, d.Reason)
	case d.Replanned:
		a.log.Printf("tick=%d path: %v", obs.Tick, a.sess.Route)
	}

	a.record(obs, snap, d)

	var act *protocol.ActMsg
	switch d.Kind {
	case KindMove:
		act = newAct(obs, protocol.ActionMove, d.Target)
		a.log.Printf("tick=%d move to (%.1f, %.1f)", obs.Tick, d.Target[0], d.Target[1])
	case KindAttack:
		act = newAct(obs, protocol.ActionAttack, d.Target)
	}
	return act, nil
}

func (a *Agent) record(obs *protocol.ObsMsg, snap Snapshot, d Decision) {
	if len(a.sinks) == 0 {
		return
	}
	e := LogEntry{
		Tick:      obs.Tick,
		AgentID:   obs.AgentID,
		Self:      snap.Self,
		Opponent:  snap.Opponent,
		Kind:      d.Kind,
		Target:    d.Target,
		Reason:    d.Reason,
		Replanned: d.Replanned,
		Expanded:  d.Expanded,
		RouteLen:  d.RouteLen,
	}
	if d.Replanned {
		m := obs.Map
		e.Map = &m
		for _, c := range a.sess.Route {
			e.Route = append(e.Route, [2]int{c.X, c.Y})
		}
	}
	for _, s := range a.sinks {
		if err := s.WriteDecision(e); err != nil {
			a.log.Printf("tick=%d decision log: %v", obs.Tick, err)
		}
	}
}

func newAct(obs *protocol.ObsMsg, kind string, target [2]float64) *protocol.ActMsg {
	return &protocol.ActMsg{
		Type:            protocol.TypeAct,
		ProtocolVersion: protocol.Version,
		Tick:            obs.Tick,
		AgentID:         obs.AgentID,
		Action:          protocol.ActionReq{Kind: kind, Target: target},
	}
}
