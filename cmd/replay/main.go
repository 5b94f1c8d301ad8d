package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gridduel.ai/internal/agent"
	"gridduel.ai/internal/persistence/indexdb"
	persistlog "gridduel.ai/internal/persistence/log"
	"gridduel.ai/internal/sim/grid"
	"gridduel.ai/internal/sim/route"
)

func main() {
	var (
		logDir   = flag.String("log_dir", "./data/agent", "agent log dir (contains decisions/)")
		agentID  = flag.String("agent", "", "only replay this agent id (optional)")
		fromTick = flag.Uint64("from_tick", 0, "start at tick (inclusive, optional)")
		toTick   = flag.Uint64("to_tick", 0, "stop at tick (inclusive, optional)")
		indexDB  = flag.String("index_db", "", "also print kind counts from this sqlite index (optional)")
	)
	flag.Parse()

	dir := filepath.Join(*logDir, "decisions")
	files, err := persistlog.ListFiles(dir, "decisions")
	if err != nil {
		fmt.Fprintln(os.Stderr, "list decisions:", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "no decision files found in", dir)
		os.Exit(1)
	}

	r := newReplayer(*agentID, *fromTick, *toTick)
	for _, path := range files {
		if err := persistlog.ReadDecisions(path, r.check); err != nil {
			fmt.Fprintln(os.Stderr, "replay:", err)
			os.Exit(1)
		}
	}
	r.report(os.Stdout)

	if *indexDB != "" {
		idx, err := indexdb.OpenSQLite(*indexDB)
		if err != nil {
			fmt.Fprintln(os.Stderr, "open index:", err)
			os.Exit(1)
		}
		counts, err := idx.KindCounts(context.Background())
		_ = idx.Close()
		if err != nil {
			fmt.Fprintln(os.Stderr, "index:", err)
			os.Exit(1)
		}
		fmt.Printf("index: %s\n", formatCounts(counts))
	}

	if len(r.failures) > 0 {
		os.Exit(1)
	}
}

// replayer re-checks every recorded route against the map it was planned on.
type replayer struct {
	agentID          string
	fromTick, toTick uint64

	entries  int
	kinds    map[agent.Kind]int
	replans  int
	verified int
	failures []string
}

func newReplayer(agentID string, from, to uint64) *replayer {
	return &replayer{agentID: agentID, fromTick: from, toTick: to, kinds: map[agent.Kind]int{}}
}

func (r *replayer) check(e agent.LogEntry) error {
	if r.agentID != "" && e.AgentID != r.agentID {
		return nil
	}
	if e.Tick < r.fromTick || (r.toTick != 0 && e.Tick > r.toTick) {
		return nil
	}
	r.entries++
	r.kinds[e.Kind]++
	if !e.Replanned {
		return nil
	}
	r.replans++
	if e.Map == nil {
		return nil
	}

	g, err := e.Map.Grid()
	if err != nil {
		return fmt.Errorf("tick %d: map: %w", e.Tick, err)
	}
	start, goal := agent.CellOf(e.Self), agent.CellOf(e.Opponent)
	recorded := make(route.Route, 0, len(e.Route))
	for _, c := range e.Route {
		recorded = append(recorded, grid.Coord{X: c[0], Y: c[1]})
	}

	if err := recorded.Validate(g); err != nil {
		r.fail("tick %d: %v", e.Tick, err)
		return nil
	}
	again := route.Find(g, start, goal)
	if again.Len() != recorded.Len() {
		r.fail("tick %d: recorded route has %d cells, recomputed %d", e.Tick, recorded.Len(), again.Len())
		return nil
	}
	for i := range again {
		if again[i] != recorded[i] {
			r.fail("tick %d: routes diverge at step %d: %v vs %v", e.Tick, i, recorded[i], again[i])
			return nil
		}
	}
	r.verified++
	return nil
}

func (r *replayer) fail(format string, args ...any) {
	r.failures = append(r.failures, fmt.Sprintf(format, args...))
}

func (r *replayer) report(w *os.File) {
	fmt.Fprintf(w, "decisions=%d %s replans=%d routes_verified=%d failures=%d\n",
		r.entries, formatCounts(r.kinds), r.replans, r.verified, len(r.failures))
	for _, f := range r.failures {
		fmt.Fprintln(w, "  ", f)
	}
}

func formatCounts(m map[agent.Kind]int) string {
	kinds := make([]string, 0, len(m))
	for k := range m {
		kinds = append(kinds, string(k))
	}
	sort.Strings(kinds)
	out := ""
	for i, k := range kinds {
		if i > 0 {
			out += " "
		}
		out += fmt.Sprintf("%s=%d", k, m[agent.Kind(k)])
	}
	return out
}
