package main

import (
	"context"
	"errors"
	"flag"
	"io/fs"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"gridduel.ai/internal/protocol"
	"gridduel.ai/internal/sim/arena"
	"gridduel.ai/internal/sim/tuning"
	"gridduel.ai/internal/transport/ws"
)

func main() {
	var (
		tuningPath = flag.String("tuning", "./configs/tuning.yaml", "path to tuning.yaml (missing file uses defaults)")
		addr       = flag.String("addr", "", "http listen address (overrides tuning)")
		watch      = flag.Bool("watch", true, "reload the map when tuning.yaml changes")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[arena] ", log.LstdFlags|log.Lmicroseconds)

	tune, err := tuning.Load(*tuningPath)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			logger.Fatalf("load tuning: %v", err)
		}
		logger.Printf("tuning not found (%s); using defaults", *tuningPath)
		tune = tuning.Defaults()
		*watch = false
	}
	if s := strings.TrimSpace(*addr); s != "" {
		tune.Arena.Addr = s
	}

	cfg, g, err := arena.ConfigFromTuning(tune)
	if err != nil {
		logger.Fatalf("arena config: %v", err)
	}
	a, err := arena.New(cfg, g, logger)
	if err != nil {
		logger.Fatalf("arena: %v", err)
	}
	v, err := protocol.NewValidator()
	if err != nil {
		logger.Fatalf("schemas: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *watch {
		go func() {
			err := tuning.Watch(ctx, *tuningPath, func(t tuning.Tuning) {
				ng, err := t.Map.Grid()
				if err != nil {
					logger.Printf("reload map: %v", err)
					return
				}
				a.SetMap(ng)
			}, func(err error) {
				logger.Printf("watch tuning: %v", err)
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Printf("watch tuning: %v", err)
			}
		}()
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/ws", ws.NewServer(a, v, logger).Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	srv := &http.Server{
		Addr:              tune.Arena.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Printf("listening on %s session=%s map=%dx%d", tune.Arena.Addr, a.SessionID(), g.Width(), g.Height())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("listen: %v", err)
		}
	}()

	if err := a.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Printf("arena: %v", err)
	}

	// Give writers a moment to flush GAME_END.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	logger.Printf("stopped at tick=%d", a.Tick())
}
