package protocol_test

import (
	"encoding/json"
	"strings"
	"testing"

	"gridduel.ai/internal/protocol"
	"gridduel.ai/internal/sim/grid"
)

func newValidator(t *testing.T) *protocol.Validator {
	t.Helper()
	v, err := protocol.NewValidator()
	if err != nil {
		t.Fatalf("NewValidator: %v", err)
	}
	return v
}

func TestSchemas_ValidateSamples(t *testing.T) {
	v := newValidator(t)

	samples := []string{
		`{"type":"HELLO","protocol_version":"1.0","agent_name":"bot1"}`,
		`{
		  "type":"WELCOME","protocol_version":"1.0","session_id":"s","agent_id":"A1",
		  "player_index":0,"tick_rate_hz":10,
		  "map":{"width":5,"height":5,"encoding":"LIST","obstacles":[[1,1],[2,2]]}
		}`,
		`{
		  "type":"OBS","protocol_version":"1.0","tick":3,"agent_id":"A1",
		  "players":[{"id":"A1","index":0,"position":[0.5,0.5],"hp":100},{"id":"A2","index":1,"position":[4.2,3.9],"hp":80}],
		  "map":{"width":5,"height":5,"encoding":"RLE","data":"AAE="}
		}`,
		`{"type":"ACT","protocol_version":"1.0","tick":3,"agent_id":"A1","action":{"kind":"MOVE","target":[1.5,0.5]}}`,
		`{"type":"ACK","protocol_version":"1.0","ack_for":3,"accepted":false,"code":"E_STALE"}`,
		`{"type":"GAME_END","protocol_version":"1.0","tick":99,"winner":"A1"}`,
	}
	for _, s := range samples {
		if _, err := v.Validate([]byte(s)); err != nil {
			t.Fatalf("validate %.40s: %v", s, err)
		}
	}
}

func TestSchemas_RejectsBadFrames(t *testing.T) {
	v := newValidator(t)

	bad := []string{
		`{"type":"ACT","protocol_version":"1.0","tick":3,"agent_id":"A1","action":{"kind":"JUMP","target":[1,1]}}`,
		`{"type":"ACT","protocol_version":"1.0","tick":3,"agent_id":"A1","action":{"kind":"MOVE","target":[1]}}`,
		`{"type":"OBS","protocol_version":"1.0","tick":-1,"agent_id":"A1","players":[],"map":{"width":1,"height":1,"encoding":"LIST"}}`,
		`{"type":"WELCOME","protocol_version":"1.0","session_id":"s","agent_id":"A1","player_index":0,"tick_rate_hz":10,"map":{"width":0,"height":5,"encoding":"LIST"}}`,
		`{"type":"NOPE"}`,
		`not json`,
	}
	for _, s := range bad {
		if _, err := v.Validate([]byte(s)); err == nil {
			t.Fatalf("expected rejection: %s", s)
		}
	}
}

func TestSchemas_MarshaledMessagesValidate(t *testing.T) {
	v := newValidator(t)
	g := grid.MustNew(4, 3, grid.Coord{X: 1, Y: 2})

	msgs := []any{
		protocol.HelloMsg{Type: protocol.TypeHello, ProtocolVersion: protocol.Version, AgentName: "x"},
		protocol.ObsMsg{
			Type:            protocol.TypeObs,
			ProtocolVersion: protocol.Version,
			Tick:            1,
			AgentID:         "A1",
			Players:         []protocol.PlayerObs{{ID: "A1", Position: [2]float64{1, 2}, HP: 10}},
			Map:             protocol.EncodeMap(g, protocol.MapEncodingRLE),
		},
		protocol.ActMsg{
			Type:            protocol.TypeAct,
			ProtocolVersion: protocol.Version,
			Tick:            1,
			AgentID:         "A1",
			Action:          protocol.ActionReq{Kind: protocol.ActionAttack, Target: [2]float64{3, 3}},
		},
		protocol.GameEndMsg{Type: protocol.TypeGameEnd, ProtocolVersion: protocol.Version, Tick: 5},
	}
	for _, m := range msgs {
		b, err := json.Marshal(m)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		if _, err := v.Validate(b); err != nil {
			t.Fatalf("validate %s: %v", b, err)
		}
	}
}

func TestMapObs_GridBothEncodings(t *testing.T) {
	g := grid.MustNew(5, 4, grid.Coord{X: 0, Y: 0}, grid.Coord{X: 4, Y: 3}, grid.Coord{X: 2, Y: 1})
	for _, enc := range []string{protocol.MapEncodingList, protocol.MapEncodingRLE} {
		back, err := protocol.EncodeMap(g, enc).Grid()
		if err != nil {
			t.Fatalf("%s: %v", enc, err)
		}
		if back.Width() != 5 || back.Height() != 4 || back.NumObstacles() != 3 {
			t.Fatalf("%s: decoded %s", enc, back)
		}
		if !back.IsBlocked(grid.Coord{X: 2, Y: 1}) {
			t.Fatalf("%s: lost obstacle (2,1)", enc)
		}
	}

	_, err := protocol.MapObs{Width: 2, Height: 2, Encoding: "PNG"}.Grid()
	if err == nil || !strings.Contains(err.Error(), "unknown encoding") {
		t.Fatalf("expected unknown encoding error, got %v", err)
	}
}

func TestSchemas_RejectsOversizeMap(t *testing.T) {
	v := newValidator(t)
	raw := `{"type":"OBS","protocol_version":"1.0","tick":1,"agent_id":"A1","players":[],` +
		`"map":{"width":4611686018427387905,"height":4,"encoding":"RLE","data":""}}`
	if _, err := v.Validate([]byte(raw)); err == nil {
		t.Fatalf("expected oversize map to be rejected")
	}
}
