package arena

import (
	"encoding/json"
	"math"

	"github.com/google/uuid"
	"github.com/ungerik/go3d/float64/vec2"

	"gridduel.ai/internal/protocol"
	"gridduel.ai/internal/sim/grid"
)

// moveSubstep is the largest distance covered between two blocked-cell checks.
const moveSubstep = 0.1

func (a *Arena) step(joins []JoinRequest, leaves []string, actions []ActionEnvelope, g *grid.Grid) {
	for _, id := range leaves {
		a.handleLeave(id)
	}
	if g != nil {
		a.grid = g
		a.log.Printf("tick=%d map reloaded: %dx%d obstacles=%d", a.tick, g.Width(), g.Height(), g.NumObstacles())
	}
	for _, req := range joins {
		resp := a.handleJoin(req)
		if req.Resp != nil {
			req.Resp <- resp
		}
	}

	if !a.started {
		if a.seats[0] == nil || a.seats[1] == nil {
			return
		}
		a.started = true
		a.log.Printf("session=%s match start: %s vs %s", a.sessionID, a.seats[0].ID, a.seats[1].ID)
	}
	if a.over {
		for _, env := range actions {
			a.ack(env, false, protocol.ErrGameOver, "match is over")
		}
		return
	}

	acted := map[string]bool{}
	for _, env := range actions {
		if acted[env.AgentID] {
			a.ack(env, false, protocol.ErrBadRequest, "one action per tick")
			continue
		}
		code, msg := a.apply(env)
		if code == "" {
			acted[env.AgentID] = true
		}
		a.ack(env, code == "", code, msg)
	}

	a.tick++

	winner, done := a.outcome()
	if done {
		a.endMatch(winner)
		return
	}
	a.broadcastObs()
}

func (a *Arena) handleJoin(req JoinRequest) JoinResponse {
	idx := -1
	for i, p := range a.seats {
		if p == nil {
			idx = i
			break
		}
	}
	if idx < 0 || a.started {
		return JoinResponse{Code: protocol.ErrBadRequest, Message: "arena full"}
	}
	name := req.Name
	if name == "" {
		name = "agent"
	}
	spawn := a.cfg.Spawns[idx]
	p := &Player{
		ID:    uuid.NewString(),
		Name:  name,
		Index: idx,
		Pos:   vec2.T{spawn[0], spawn[1]},
		HP:    a.cfg.MaxHP,
		out:   req.Out,
	}
	a.seats[idx] = p
	a.log.Printf("join seat=%d id=%s name=%s", idx, p.ID, name)

	return JoinResponse{Welcome: protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       a.sessionID,
		AgentID:         p.ID,
		PlayerIndex:     idx,
		TickRateHz:      a.cfg.TickRateHz,
		Map:             protocol.EncodeMap(a.grid, a.cfg.MapEncoding),
	}}
}

func (a *Arena) handleLeave(id string) {
	for i, p := range a.seats {
		if p == nil || p.ID != id {
			continue
		}
		a.seats[i] = nil
		a.log.Printf("leave seat=%d id=%s", i, id)
		if a.started && !a.over {
			// Forfeit.
			a.endMatch(a.seats[1-i].idOrEmpty())
		}
		return
	}
}

func (p *Player) idOrEmpty() string {
	if p == nil {
		return ""
	}
	return p.ID
}

func (a *Arena) seatOf(id string) (self, opp *Player) {
	for i, p := range a.seats {
		if p != nil && p.ID == id {
			return p, a.seats[1-i]
		}
	}
	return nil, nil
}

// apply validates and executes one action. It returns a non-empty code on rejection.
func (a *Arena) apply(env ActionEnvelope) (code, msg string) {
	self, opp := a.seatOf(env.AgentID)
	if self == nil {
		return protocol.ErrBadRequest, "not seated"
	}
	act := env.Act
	if act.AgentID != "" && act.AgentID != env.AgentID {
		return protocol.ErrBadRequest, "agent_id mismatch"
	}
	if act.Tick > a.tick {
		return protocol.ErrBadRequest, "tick in the future"
	}
	if act.Tick+maxActLag < a.tick {
		return protocol.ErrStale, "tick too old"
	}
	target := act.Action.Target
	if !finite(target[0]) || !finite(target[1]) {
		return protocol.ErrInvalidTarget, "target is not finite"
	}
	if target[0] < 0 || target[1] < 0 || target[0] >= float64(a.grid.Width()) || target[1] >= float64(a.grid.Height()) {
		return protocol.ErrInvalidTarget, "target outside map"
	}

	switch act.Action.Kind {
	case protocol.ActionMove:
		a.move(self, vec2.T{target[0], target[1]})
		return "", ""
	case protocol.ActionAttack:
		if a.tick < self.NextAttack {
			return protocol.ErrCooldown, "attack on cooldown"
		}
		if opp == nil {
			return protocol.ErrInvalidTarget, "no opponent"
		}
		if d := vec2.Sub(&self.Pos, &opp.Pos); d.Length() > a.cfg.AttackRange {
			return protocol.ErrInvalidTarget, "opponent out of range"
		}
		opp.HP -= a.cfg.AttackDamage
		if opp.HP < 0 {
			opp.HP = 0
		}
		self.NextAttack = a.tick + uint64(a.cfg.AttackCooldownTicks)
		return "", ""
	default:
		return protocol.ErrBadRequest, "unknown action kind"
	}
}

// move walks p toward target by at most MoveSpeed, stopping before the first
// blocked or out-of-bounds cell.
func (a *Arena) move(p *Player, target vec2.T) {
	delta := vec2.Sub(&target, &p.Pos)
	dist := delta.Length()
	if dist == 0 {
		return
	}
	travel := math.Min(dist, a.cfg.MoveSpeed)
	steps := int(math.Ceil(travel / moveSubstep))
	stepVec := delta.Scaled(travel / dist / float64(steps))

	for i := 0; i < steps; i++ {
		next := vec2.Add(&p.Pos, &stepVec)
		if !a.walkable(next) {
			return
		}
		p.Pos = next
	}
	if travel == dist {
		p.Pos = target
	}
}

func (a *Arena) walkable(pos vec2.T) bool {
	c := grid.Coord{X: int(math.Floor(pos[0])), Y: int(math.Floor(pos[1]))}
	return a.grid.InBounds(c) && !a.grid.IsBlocked(c)
}

// outcome reports whether the match is decided. winner is empty on a draw.
func (a *Arena) outcome() (winner string, done bool) {
	p0, p1 := a.seats[0], a.seats[1]
	switch {
	case p0.HP <= 0 && p1.HP <= 0:
		return "", true
	case p0.HP <= 0:
		return p1.ID, true
	case p1.HP <= 0:
		return p0.ID, true
	}
	if a.cfg.MaxTicks > 0 && a.tick >= uint64(a.cfg.MaxTicks) {
		switch {
		case p0.HP > p1.HP:
			return p0.ID, true
		case p1.HP > p0.HP:
			return p1.ID, true
		}
		return "", true
	}
	return "", false
}

func (a *Arena) endMatch(winner string) {
	a.over = true
	a.log.Printf("session=%s match over tick=%d winner=%q", a.sessionID, a.tick, winner)
	b, err := json.Marshal(protocol.GameEndMsg{
		Type:            protocol.TypeGameEnd,
		ProtocolVersion: protocol.Version,
		Tick:            a.tick,
		Winner:          winner,
	})
	if err != nil {
		return
	}
	for _, p := range a.seats {
		if p != nil && p.out != nil {
			sendLatest(p.out, b)
		}
	}
}

func (a *Arena) broadcastObs() {
	m := protocol.EncodeMap(a.grid, a.cfg.MapEncoding)
	players := make([]protocol.PlayerObs, 0, numSeats)
	for _, p := range a.seats {
		players = append(players, protocol.PlayerObs{
			ID:       p.ID,
			Index:    p.Index,
			Position: [2]float64{p.Pos[0], p.Pos[1]},
			HP:       p.HP,
		})
	}
	for _, p := range a.seats {
		if p.out == nil {
			continue
		}
		b, err := json.Marshal(protocol.ObsMsg{
			Type:            protocol.TypeObs,
			ProtocolVersion: protocol.Version,
			Tick:            a.tick,
			AgentID:         p.ID,
			Players:         players,
			Map:             m,
		})
		if err != nil {
			a.log.Printf("tick=%d marshal obs: %v", a.tick, err)
			continue
		}
		sendLatest(p.out, b)
	}
}

func (a *Arena) ack(env ActionEnvelope, ok bool, code, msg string) {
	self, _ := a.seatOf(env.AgentID)
	if self == nil || self.out == nil {
		return
	}
	b, err := json.Marshal(protocol.AckMsg{
		Type:            protocol.TypeAck,
		ProtocolVersion: protocol.Version,
		AckFor:          env.Act.Tick,
		Accepted:        ok,
		Code:            code,
		Message:         msg,
		ServerTick:      a.tick,
	})
	if err != nil {
		return
	}
	sendLatest(self.out, b)
}

func finite(f float64) bool { return !math.IsNaN(f) && !math.IsInf(f, 0) }

// sendLatest never blocks the tick loop; on a full queue the oldest frame is dropped.
func sendLatest(ch chan []byte, b []byte) {
	select {
	case ch <- b:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- b:
	default:
	}
}
