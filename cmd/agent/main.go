package main

import (
	"context"
	"errors"
	"flag"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"gridduel.ai/internal/agent"
	"gridduel.ai/internal/persistence/indexdb"
	persistlog "gridduel.ai/internal/persistence/log"
	"gridduel.ai/internal/protocol"
	"gridduel.ai/internal/sim/tuning"
	"gridduel.ai/internal/transport/ws"
)

func main() {
	var (
		tuningPath = flag.String("tuning", "./configs/tuning.yaml", "path to tuning.yaml (missing file uses defaults)")
		url        = flag.String("url", "", "arena ws url (overrides tuning)")
		name       = flag.String("name", "", "agent name (overrides tuning)")
		token      = flag.String("token", "", "auth token sent in HELLO")
		logDir     = flag.String("log_dir", "", "decision log dir (overrides tuning)")
		indexPath  = flag.String("index_db", "", "sqlite decision index (overrides tuning)")
		noLog      = flag.Bool("disable_log", false, "disable the decision log")
		goalReplan = flag.Bool("replan_on_goal_change", false, "replan whenever the opponent changes cell")
		noValidate = flag.Bool("skip_validate", false, "skip schema validation of inbound frames")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[agent] ", log.LstdFlags|log.Lmicroseconds)

	tune, err := tuning.Load(*tuningPath)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			logger.Fatalf("load tuning: %v", err)
		}
		logger.Printf("tuning not found (%s); using defaults", *tuningPath)
		tune = tuning.Defaults()
	}
	cfg := tune.Agent
	if s := strings.TrimSpace(*url); s != "" {
		cfg.URL = s
	}
	if s := strings.TrimSpace(*name); s != "" {
		cfg.Name = s
	}
	if s := strings.TrimSpace(*logDir); s != "" {
		cfg.LogDir = s
	}
	if s := strings.TrimSpace(*indexPath); s != "" {
		cfg.IndexDB = s
	}
	if *goalReplan {
		cfg.ReplanOnGoalChange = true
	}

	var sinks []agent.DecisionLogger
	if !*noLog && cfg.LogDir != "" {
		dl := persistlog.NewDecisionLogger(cfg.LogDir)
		defer dl.Close()
		sinks = append(sinks, dl)
	}
	var idx *indexdb.SQLiteIndex
	if cfg.IndexDB != "" {
		idx, err = indexdb.OpenSQLite(cfg.IndexDB)
		if err != nil {
			logger.Fatalf("open index: %v", err)
		}
		defer idx.Close()
		sinks = append(sinks, idx)
	}

	var v *protocol.Validator
	if !*noValidate {
		v, err = protocol.NewValidator()
		if err != nil {
			logger.Fatalf("schemas: %v", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ag := agent.New(agent.Policy{ReplanOnGoalChange: cfg.ReplanOnGoalChange}, logger, sinks...)

	var agentID string
	client, err := ws.Dial(ctx, ws.ClientConfig{
		URL:       cfg.URL,
		AgentName: cfg.Name,
		Token:     *token,
		Validator: v,
		OnGameEnd: func(m protocol.GameEndMsg) {
			result := "draw"
			switch m.Winner {
			case "":
			case agentID:
				result = "win"
			default:
				result = "loss"
			}
			logger.Printf("GAME_END tick=%d result=%s", m.Tick, result)
			idx.RecordGameEnd(agentID, m.Tick, m.Winner, ag.Session())
		},
	}, logger)
	if err != nil {
		logger.Fatalf("connect: %v", err)
	}
	defer client.Close()

	w := client.Welcome()
	agentID = w.AgentID
	logger.Printf("WELCOME session=%s agent_id=%s seat=%d tick_rate=%d map=%dx%d",
		w.SessionID, w.AgentID, w.PlayerIndex, w.TickRateHz, w.Map.Width, w.Map.Height)

	err = client.Run(ctx, ag.HandleObs)
	s := ag.Session()
	logger.Printf("session done: replans=%d no_routes=%d", s.Replans, s.NoRoutes)
	switch {
	case err == nil, errors.Is(err, ws.ErrGameOver), errors.Is(err, context.Canceled):
	default:
		logger.Printf("run: %v", err)
	}
}
