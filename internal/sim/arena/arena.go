package arena

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ungerik/go3d/float64/vec2"

	"gridduel.ai/internal/protocol"
	"gridduel.ai/internal/sim/grid"
	"gridduel.ai/internal/sim/tuning"
)

const (
	numSeats = 2

	// maxActLag is how many ticks an ACT may trail the current tick.
	maxActLag = 2
)

type Config struct {
	TickRateHz          int
	MaxTicks            int
	MaxHP               int
	MoveSpeed           float64
	AttackRange         float64
	AttackDamage        int
	AttackCooldownTicks int
	MapEncoding         string
	Spawns              [numSeats][2]float64
}

// ConfigFromTuning builds the arena config and initial map.
func ConfigFromTuning(t tuning.Tuning) (Config, *grid.Grid, error) {
	g, err := t.Map.Grid()
	if err != nil {
		return Config{}, nil, err
	}
	if len(t.Map.Spawns) < numSeats {
		return Config{}, nil, fmt.Errorf("arena: need %d spawns, got %d", numSeats, len(t.Map.Spawns))
	}
	cfg := Config{
		TickRateHz:          t.Arena.TickRateHz,
		MaxTicks:            t.Arena.MaxTicks,
		MaxHP:               t.Arena.MaxHP,
		MoveSpeed:           t.Arena.MoveSpeed,
		AttackRange:         t.Arena.AttackRange,
		AttackDamage:        t.Arena.AttackDamage,
		AttackCooldownTicks: t.Arena.AttackCooldownTicks,
		MapEncoding:         t.Arena.MapEncoding,
	}
	copy(cfg.Spawns[:], t.Map.Spawns)
	return cfg, g, nil
}

type Player struct {
	ID    string
	Name  string
	Index int
	Pos   vec2.T
	HP    int

	// NextAttack is the first tick an attack is allowed again.
	NextAttack uint64

	out chan []byte
}

type JoinRequest struct {
	Name string
	Out  chan []byte
	Resp chan JoinResponse
}

// JoinResponse carries WELCOME on success. Code is set when the seat was refused.
type JoinResponse struct {
	Welcome protocol.WelcomeMsg
	Code    string
	Message string
}

type ActionEnvelope struct {
	AgentID string
	Act     protocol.ActMsg
}

// Arena is a two-seat sparring match. All state is owned by the Run goroutine.
type Arena struct {
	cfg Config
	log *log.Logger

	sessionID string
	grid      *grid.Grid
	tick      uint64
	seats     [numSeats]*Player
	started   bool
	over      bool

	join   chan JoinRequest
	leave  chan string
	inbox  chan ActionEnvelope
	mapSet chan *grid.Grid
	stop   chan struct{}

	stopOnce sync.Once
}

func New(cfg Config, g *grid.Grid, logger *log.Logger) (*Arena, error) {
	if g == nil {
		return nil, fmt.Errorf("arena: nil map")
	}
	if cfg.TickRateHz <= 0 {
		return nil, fmt.Errorf("arena: tick rate must be > 0")
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[arena] ", log.LstdFlags|log.Lmicroseconds)
	}
	return &Arena{
		cfg:       cfg,
		log:       logger,
		sessionID: uuid.NewString(),
		grid:      g,
		join:      make(chan JoinRequest, 8),
		leave:     make(chan string, 8),
		inbox:     make(chan ActionEnvelope, 256),
		mapSet:    make(chan *grid.Grid, 1),
		stop:      make(chan struct{}),
	}, nil
}

func (a *Arena) Join() chan<- JoinRequest     { return a.join }
func (a *Arena) Leave() chan<- string         { return a.leave }
func (a *Arena) Inbox() chan<- ActionEnvelope { return a.inbox }
func (a *Arena) SessionID() string            { return a.sessionID }

// SetMap queues g to replace the map before the next tick. A reload that is
// still pending is replaced.
func (a *Arena) SetMap(g *grid.Grid) {
	if g == nil {
		return
	}
	for {
		select {
		case a.mapSet <- g:
			return
		default:
		}
		select {
		case <-a.mapSet:
		default:
		}
	}
}

// Run drives the tick loop until ctx is done, Stop is called, or the match ends.
func (a *Arena) Run(ctx context.Context) error {
	ticker := time.NewTicker(time.Second / time.Duration(a.cfg.TickRateHz))
	defer ticker.Stop()

	var (
		pendingJoins   []JoinRequest
		pendingLeaves  []string
		pendingActions []ActionEnvelope
	)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-a.stop:
			return nil
		case req := <-a.join:
			pendingJoins = append(pendingJoins, req)
		case id := <-a.leave:
			pendingLeaves = append(pendingLeaves, id)
		case env := <-a.inbox:
			pendingActions = append(pendingActions, env)
		case <-ticker.C:
			var g *grid.Grid
			select {
			case g = <-a.mapSet:
			default:
			}
			a.step(pendingJoins, pendingLeaves, pendingActions, g)
			pendingJoins = pendingJoins[:0]
			pendingLeaves = pendingLeaves[:0]
			pendingActions = pendingActions[:0]
			if a.over {
				return nil
			}
		}
	}
}

// Stop ends Run. It is safe to call more than once.
func (a *Arena) Stop() { a.stopOnce.Do(func() { close(a.stop) }) }

// StepOnce advances one tick with the same ordering as Run. It must not be
// called while Run is active.
func (a *Arena) StepOnce(joins []JoinRequest, leaves []string, actions []ActionEnvelope, g *grid.Grid) {
	a.step(joins, leaves, actions, g)
}

func (a *Arena) Tick() uint64 { return a.tick }
func (a *Arena) Over() bool   { return a.over }

// Player returns a copy of the player in seat i, if seated.
func (a *Arena) Player(i int) (Player, bool) {
	if i < 0 || i >= numSeats || a.seats[i] == nil {
		return Player{}, false
	}
	return *a.seats[i], true
}
