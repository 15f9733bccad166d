// Package indexdb maintains a sqlite read-model of finished episodes for
// offline analysis. Writes go through a single writer goroutine so the
// environment loop never blocks on the database.
package indexdb

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"marioenv.ai/internal/persistence/episodelog"
)

type SQLiteIndex struct {
	db *sql.DB

	ch   chan episodeRow
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool
}

type episodeRow struct {
	Episode     int
	Stage       string
	Steps       int
	TotalReward float64
	FlagGet     bool
	MaxUnlocked int
	Seed        sql.NullInt64
	RecordedAt  string
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
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
		// Buffered so bursty episode ends never stall the env loop.
		ch: make(chan episodeRow, 4096),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	// WAL is much faster for append-style workloads. NORMAL is a decent
	// durability/perf tradeoff for a secondary index.
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
		`CREATE TABLE IF NOT EXISTS episodes (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			episode INTEGER NOT NULL,
			stage TEXT NOT NULL,
			steps INTEGER NOT NULL,
			total_reward REAL NOT NULL,
			flag_get INTEGER NOT NULL,
			max_unlocked INTEGER NOT NULL,
			seed INTEGER,
			recorded_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_episodes_stage ON episodes(stage, episode);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	if _, err := db.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`); err != nil {
		return err
	}
	return nil
}

// Close drains pending rows and closes the database.
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

// RecordEpisode queues one finished episode. Drops the row if the indexer
// falls behind; the JSONL episode logs remain the source of truth.
func (s *SQLiteIndex) RecordEpisode(rec episodelog.Record) {
	if s == nil || s.closed.Load() {
		return
	}
	row := episodeRow{
		Episode:     rec.Episode,
		Stage:       rec.Stage,
		Steps:       rec.Steps,
		TotalReward: rec.TotalReward,
		FlagGet:     rec.FlagGet,
		MaxUnlocked: rec.MaxUnlocked,
		RecordedAt:  rec.RecordedAt,
	}
	if row.RecordedAt == "" {
		row.RecordedAt = time.Now().UTC().Format(time.RFC3339Nano)
	}
	if rec.Seed != nil {
		row.Seed = sql.NullInt64{Int64: *rec.Seed, Valid: true}
	}
	select {
	case s.ch <- row:
	default:
	}
}

func (s *SQLiteIndex) loop() {
	insert, err := s.db.Prepare(`INSERT INTO episodes(episode,stage,steps,total_reward,flag_get,max_unlocked,seed,recorded_at) VALUES(?,?,?,?,?,?,?,?)`)
	if err != nil {
		for range s.ch {
		}
		return
	}
	defer insert.Close()

	for row := range s.ch {
		flag := 0
		if row.FlagGet {
			flag = 1
		}
		_, _ = insert.Exec(row.Episode, row.Stage, row.Steps, row.TotalReward, flag, row.MaxUnlocked, row.Seed, row.RecordedAt)
	}
}
