package indexdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"gridduel.ai/internal/agent"
)

// SQLiteIndex is a read model of agent decisions. Writes are queued to a
// single writer goroutine and dropped when the queue is full; the JSONL logs
// remain the source of truth.
type SQLiteIndex struct {
	db *sql.DB

	insertDecision *sql.Stmt
	insertRoute    *sql.Stmt
	insertGame     *sql.Stmt

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed  atomic.Bool
	dropped atomic.Uint64
}

type reqKind int

const (
	reqDecision reqKind = iota + 1
	reqGameEnd
)

type req struct {
	kind reqKind

	decision agent.LogEntry
	game     gameRow
}

type gameRow struct {
	AgentID    string
	EndTick    uint64
	Winner     string
	Replans    int
	NoRoutes   int
	RecordedAt string
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	return openSQLite(path, 65536)
}

func openSQLite(path string, queue int) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		ch: make(chan req, queue),
	}
	if err := s.prepare(); err != nil {
		s.closeStmts()
		_ = db.Close()
		return nil, err
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS decisions (
			agent_id TEXT NOT NULL,
			tick INTEGER NOT NULL,
			kind TEXT NOT NULL,
			target_x REAL NOT NULL,
			target_y REAL NOT NULL,
			replanned INTEGER NOT NULL,
			expanded INTEGER NOT NULL,
			route_len INTEGER NOT NULL,
			reason TEXT,
			PRIMARY KEY (agent_id, tick)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_decisions_kind ON decisions(kind, tick);`,
		`CREATE TABLE IF NOT EXISTS routes (
			agent_id TEXT NOT NULL,
			tick INTEGER NOT NULL,
			start_x INTEGER NOT NULL,
			start_y INTEGER NOT NULL,
			goal_x INTEGER NOT NULL,
			goal_y INTEGER NOT NULL,
			route_len INTEGER NOT NULL,
			route_json TEXT NOT NULL,
			PRIMARY KEY (agent_id, tick)
		);`,
		`CREATE TABLE IF NOT EXISTS games (
			agent_id TEXT NOT NULL,
			end_tick INTEGER NOT NULL,
			winner TEXT NOT NULL,
			replans INTEGER NOT NULL,
			no_routes INTEGER NOT NULL,
			recorded_at TEXT NOT NULL,
			PRIMARY KEY (agent_id, end_tick)
		);`,
		`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1');`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

// Dropped is the number of writes discarded because the queue was full.
func (s *SQLiteIndex) Dropped() uint64 { return s.dropped.Load() }

func (s *SQLiteIndex) WriteDecision(e agent.LogEntry) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	s.enqueue(req{kind: reqDecision, decision: e})
	return nil
}

func (s *SQLiteIndex) RecordGameEnd(agentID string, endTick uint64, winner string, sess *agent.Session) {
	if s == nil || s.closed.Load() {
		return
	}
	r := gameRow{
		AgentID:    agentID,
		EndTick:    endTick,
		Winner:     winner,
		RecordedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}
	if sess != nil {
		r.Replans = sess.Replans
		r.NoRoutes = sess.NoRoutes
	}
	s.enqueue(req{kind: reqGameEnd, game: r})
}

func (s *SQLiteIndex) enqueue(r req) {
	select {
	case s.ch <- r:
	default:
		s.dropped.Add(1)
	}
}

// KindCounts returns how many decisions of each kind are indexed.
func (s *SQLiteIndex) KindCounts(ctx context.Context) (map[agent.Kind]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT kind, COUNT(*) FROM decisions GROUP BY kind`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[agent.Kind]int{}
	for rows.Next() {
		var (
			kind string
			n    int
		)
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, err
		}
		out[agent.Kind(kind)] = n
	}
	return out, rows.Err()
}

// prepare fails the open when the on-disk schema does not match, instead of
// letting the writer skip every row.
func (s *SQLiteIndex) prepare() error {
	var err error
	if s.insertDecision, err = s.db.Prepare(`INSERT OR REPLACE INTO decisions(agent_id,tick,kind,target_x,target_y,replanned,expanded,route_len,reason) VALUES(?,?,?,?,?,?,?,?,?)`); err != nil {
		return fmt.Errorf("prepare decisions insert: %w", err)
	}
	if s.insertRoute, err = s.db.Prepare(`INSERT OR REPLACE INTO routes(agent_id,tick,start_x,start_y,goal_x,goal_y,route_len,route_json) VALUES(?,?,?,?,?,?,?,?)`); err != nil {
		return fmt.Errorf("prepare routes insert: %w", err)
	}
	if s.insertGame, err = s.db.Prepare(`INSERT OR REPLACE INTO games(agent_id,end_tick,winner,replans,no_routes,recorded_at) VALUES(?,?,?,?,?,?)`); err != nil {
		return fmt.Errorf("prepare games insert: %w", err)
	}
	return nil
}

func (s *SQLiteIndex) closeStmts() {
	for _, st := range []*sql.Stmt{s.insertDecision, s.insertRoute, s.insertGame} {
		if st != nil {
			_ = st.Close()
		}
	}
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()
	defer s.closeStmts()
	insertDecision, insertRoute, insertGame := s.insertDecision, s.insertRoute, s.insertGame

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 500
		commitMaxWait = 2 * time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}

	for r := range s.ch {
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqDecision:
			d := r.decision
			if insertDecision != nil {
				if _, err := tx.Stmt(insertDecision).Exec(
					d.AgentID,
					int64(d.Tick),
					string(d.Kind),
					d.Target[0], d.Target[1],
					boolInt(d.Replanned),
					d.Expanded,
					d.RouteLen,
					d.Reason,
				); err != nil {
					rollback()
					continue
				}
				opCount++
			}
			if len(d.Route) > 0 && insertRoute != nil {
				b, _ := json.Marshal(d.Route)
				first, last := d.Route[0], d.Route[len(d.Route)-1]
				if _, err := tx.Stmt(insertRoute).Exec(
					d.AgentID,
					int64(d.Tick),
					first[0], first[1],
					last[0], last[1],
					len(d.Route),
					string(b),
				); err != nil {
					rollback()
					continue
				}
				opCount++
			}

		case reqGameEnd:
			g := r.game
			if insertGame != nil {
				if _, err := tx.Stmt(insertGame).Exec(
					g.AgentID,
					int64(g.EndTick),
					g.Winner,
					g.Replans,
					g.NoRoutes,
					g.RecordedAt,
				); err != nil {
					rollback()
					continue
				}
				opCount++
			}
		}
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
			commit()
		}
	}

	commit()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
