package tuning

import (
	"errors"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"gridduel.ai/internal/sim/grid"
)

type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version"`

	Agent AgentTuning `yaml:"agent"`
	Arena ArenaTuning `yaml:"arena"`
	Map   MapTuning   `yaml:"map"`
}

type AgentTuning struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`

	// Replan whenever the opponent changes cell instead of only when the
	// agent leaves its cached route.
	ReplanOnGoalChange bool `yaml:"replan_on_goal_change"`

	LogDir  string `yaml:"log_dir"`
	IndexDB string `yaml:"index_db"` // empty disables the sqlite index
}

type ArenaTuning struct {
	Addr                string  `yaml:"addr"`
	TickRateHz          int     `yaml:"tick_rate_hz"`
	MaxTicks            int     `yaml:"max_ticks"` // 0 = unlimited
	MaxHP               int     `yaml:"max_hp"`
	MoveSpeed           float64 `yaml:"move_speed"` // cells per tick
	AttackRange         float64 `yaml:"attack_range"`
	AttackDamage        int     `yaml:"attack_damage"`
	AttackCooldownTicks int     `yaml:"attack_cooldown_ticks"`
	MapEncoding         string  `yaml:"map_encoding"`
}

type MapTuning struct {
	Width     int          `yaml:"width"`
	Height    int          `yaml:"height"`
	Obstacles [][2]int     `yaml:"obstacles"`
	Spawns    [][2]float64 `yaml:"spawns"`
}

func Defaults() Tuning {
	return Tuning{
		ProtocolVersion: "1.0",
		Agent: AgentTuning{
			Name:   "agent",
			URL:    "ws://localhost:8080/v1/ws",
			LogDir: "./data/agent",
		},
		Arena: ArenaTuning{
			Addr:                ":8080",
			TickRateHz:          10,
			MaxHP:               100,
			MoveSpeed:           0.5,
			AttackRange:         1.5,
			AttackDamage:        10,
			AttackCooldownTicks: 5,
			MapEncoding:         "LIST",
		},
		Map: MapTuning{
			Width:  16,
			Height: 16,
			Spawns: [][2]float64{{1.5, 1.5}, {14.5, 14.5}},
		},
	}
}

// Load reads a YAML file over Defaults, so omitted keys keep their default.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t Tuning) Validate() error {
	var errs []error
	if t.Map.Width <= 0 || t.Map.Height <= 0 {
		errs = append(errs, fmt.Errorf("map size %dx%d", t.Map.Width, t.Map.Height))
	}
	if t.Arena.TickRateHz <= 0 || t.Arena.TickRateHz > 1000 {
		errs = append(errs, fmt.Errorf("tick_rate_hz %d out of range", t.Arena.TickRateHz))
	}
	if t.Arena.MaxHP <= 0 {
		errs = append(errs, fmt.Errorf("max_hp must be positive"))
	}
	if t.Arena.MoveSpeed <= 0 || t.Arena.MoveSpeed > 1 {
		errs = append(errs, fmt.Errorf("move_speed %v must be in (0,1]", t.Arena.MoveSpeed))
	}
	if t.Arena.AttackRange <= 0 {
		errs = append(errs, fmt.Errorf("attack_range must be positive"))
	}
	switch t.Arena.MapEncoding {
	case "LIST", "RLE":
	default:
		errs = append(errs, fmt.Errorf("map_encoding %q", t.Arena.MapEncoding))
	}
	if len(t.Map.Spawns) < 2 {
		errs = append(errs, fmt.Errorf("need 2 spawns, have %d", len(t.Map.Spawns)))
	}
	blocked := make(map[[2]int]bool, len(t.Map.Obstacles))
	for _, o := range t.Map.Obstacles {
		blocked[o] = true
	}
	for i, s := range t.Map.Spawns {
		if math.IsNaN(s[0]) || math.IsNaN(s[1]) || s[0] < 0 || s[1] < 0 ||
			s[0] >= float64(t.Map.Width) || s[1] >= float64(t.Map.Height) {
			errs = append(errs, fmt.Errorf("spawn %d %v outside map", i, s))
			continue
		}
		if blocked[[2]int{int(s[0]), int(s[1])}] {
			errs = append(errs, fmt.Errorf("spawn %d %v on obstacle", i, s))
		}
	}
	return errors.Join(errs...)
}

// Grid builds the obstacle map described by the map section.
func (m MapTuning) Grid() (*grid.Grid, error) {
	obs := make([]grid.Coord, 0, len(m.Obstacles))
	for _, o := range m.Obstacles {
		obs = append(obs, grid.Coord{X: o[0], Y: o[1]})
	}
	return grid.New(m.Width, m.Height, obs)
}
