package protocol

type ObsMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Tick            uint64 `json:"tick"`
	AgentID         string `json:"agent_id"`

	Players []PlayerObs `json:"players"`
	Map     MapObs      `json:"map"`
}

type PlayerObs struct {
	ID       string     `json:"id"`
	Index    int        `json:"index"`
	Position [2]float64 `json:"position"`
	HP       int        `json:"hp"`
}

// Map encodings.
const (
	MapEncodingList = "LIST"
	MapEncodingRLE  = "RLE"
)

type MapObs struct {
	Width     int      `json:"width"`
	Height    int      `json:"height"`
	Encoding  string   `json:"encoding"`            // "LIST" or "RLE"
	Obstacles [][2]int `json:"obstacles,omitempty"` // LIST: [x, y] per obstacle
	Data      string   `json:"data,omitempty"`      // RLE: row-major blocked bitmap
}

// ACT (agent -> arena)
type ActMsg struct {
	Type            string    `json:"type"`
	ProtocolVersion string    `json:"protocol_version"`
	Tick            uint64    `json:"tick"`
	AgentID         string    `json:"agent_id"`
	Action          ActionReq `json:"action"`
}

type ActionReq struct {
	Kind   string     `json:"kind"`
	Target [2]float64 `json:"target"`
}
