package replay

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	_ "modernc.org/sqlite"
)

// MatchRow is one recorded match in the index.
type MatchRow struct {
	ID         string
	Round      string
	Path       string
	FirstTick  uint64
	LastTick   uint64
	FinalScore int
	Cycles     int
	RecordedAt string
}

// Index is the sqlite summary of recorded matches. Writes go through a
// buffered goroutine so match teardown never stalls on the database; the
// JSONL files stay the source of truth.
type Index struct {
	db *sql.DB

	ch     chan MatchRow
	wg     sync.WaitGroup
	once   sync.Once
	closed atomic.Bool
}

func OpenIndex(path string) (*Index, error) {
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
	ix := &Index{db: db, ch: make(chan MatchRow, 64)}
	ix.wg.Add(1)
	go func() {
		defer ix.wg.Done()
		ix.loop()
	}()
	return ix, nil
}

func initPragmas(db *sql.DB) error {
	// WAL suits the append-only write pattern; NORMAL is enough durability
	// for a secondary index.
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
		`CREATE TABLE IF NOT EXISTS matches (
			id TEXT PRIMARY KEY,
			round TEXT NOT NULL,
			path TEXT NOT NULL,
			first_tick INTEGER NOT NULL,
			last_tick INTEGER NOT NULL,
			final_score INTEGER NOT NULL,
			cycles INTEGER NOT NULL,
			recorded_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_matches_recorded_at ON matches(recorded_at);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

// Put queues a match row. Safe on a nil index.
func (ix *Index) Put(row MatchRow) {
	if ix == nil || ix.closed.Load() {
		return
	}
	select {
	case ix.ch <- row:
	default:
		// Drop if the writer is wedged; the JSONL file is still on disk.
	}
}

func (ix *Index) loop() {
	insert, err := ix.db.Prepare(`INSERT OR REPLACE INTO matches(id,round,path,first_tick,last_tick,final_score,cycles,recorded_at) VALUES(?,?,?,?,?,?,?,?)`)
	if err != nil {
		for range ix.ch {
		}
		return
	}
	defer insert.Close()
	for row := range ix.ch {
		_, _ = insert.Exec(row.ID, row.Round, row.Path, row.FirstTick, row.LastTick, row.FinalScore, row.Cycles, row.RecordedAt)
	}
}

// Matches lists recorded matches, newest first.
func (ix *Index) Matches(ctx context.Context, limit int) ([]MatchRow, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := ix.db.QueryContext(ctx,
		`SELECT id,round,path,first_tick,last_tick,final_score,cycles,recorded_at
		 FROM matches ORDER BY recorded_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []MatchRow
	for rows.Next() {
		var r MatchRow
		if err := rows.Scan(&r.ID, &r.Round, &r.Path, &r.FirstTick, &r.LastTick, &r.FinalScore, &r.Cycles, &r.RecordedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Match fetches one row by match id.
func (ix *Index) Match(ctx context.Context, id string) (MatchRow, error) {
	var r MatchRow
	err := ix.db.QueryRowContext(ctx,
		`SELECT id,round,path,first_tick,last_tick,final_score,cycles,recorded_at
		 FROM matches WHERE id = ?`, id).
		Scan(&r.ID, &r.Round, &r.Path, &r.FirstTick, &r.LastTick, &r.FinalScore, &r.Cycles, &r.RecordedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return r, fmt.Errorf("match %s not found", id)
	}
	return r, err
}

func (ix *Index) Close() error {
	var err error
	ix.once.Do(func() {
		ix.closed.Store(true)
		close(ix.ch)
		ix.wg.Wait()
		err = ix.db.Close()
	})
	return err
}
