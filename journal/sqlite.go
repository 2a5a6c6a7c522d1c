package journal

import (
	"bytes"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

// SQLite persists entries through a single writer goroutine so Record never
// blocks a scheduling loop on disk I/O.
type SQLite struct {
	db *sql.DB

	ch   chan Entry
	wg   sync.WaitGroup
	once sync.Once
}

// OpenSQLite opens (creating if needed) the journal database at path.
func OpenSQLite(path string) (*SQLite, error) {
	if path == "" {
		return nil, fmt.Errorf("empty journal path")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
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

	s := &SQLite{
		db: db,
		// Buffered so a burst of short cycles doesn't stall a batcher.
		ch: make(chan Entry, 4096),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	// WAL suits the append-only write pattern here.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("pragma %q: %w", p, err)
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	const schema = `
CREATE TABLE IF NOT EXISTS entries (
	id        INTEGER NOT NULL,
	run_id    TEXT    NOT NULL,
	seq       INTEGER NOT NULL,
	at_ms     INTEGER NOT NULL,
	kind      TEXT    NOT NULL,
	target    TEXT    NOT NULL,
	action    TEXT    NOT NULL,
	threads   INTEGER NOT NULL,
	workers   INTEGER NOT NULL,
	wait_ms   INTEGER NOT NULL,
	payload   BLOB    NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_entries_run ON entries(run_id, seq);
CREATE INDEX IF NOT EXISTS idx_entries_target ON entries(target);
`
	_, err := db.Exec(schema)
	return err
}

// Record queues the entry for the writer goroutine. Entries are dropped,
// with a warning, if the queue is full or the journal is closed.
func (s *SQLite) Record(e Entry) {
	defer func() {
		// Send on closed channel after Close; a dropped tail entry is
		// preferable to crashing a batcher during shutdown.
		if recover() != nil {
			log.Warn().Str("target", e.Target).Msg("journal closed, entry dropped")
		}
	}()
	select {
	case s.ch <- e:
	default:
		log.Warn().Str("target", e.Target).Msg("journal queue full, entry dropped")
	}
}

func (s *SQLite) loop() {
	for e := range s.ch {
		blob, err := e.EncodedBytes()
		if err != nil {
			log.Error().Err(err).Msg("journal encode failed")
			continue
		}
		_, err = s.db.Exec(
			`INSERT INTO entries
			 (id, run_id, seq, at_ms, kind, target, action, threads, workers, wait_ms, payload)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			int64(e.ID), e.RunID, e.Seq, e.At.UnixMilli(), e.Kind, e.Target, e.Action,
			e.Threads, e.Workers, e.Wait.Milliseconds(), blob,
		)
		if err != nil {
			log.Error().Err(err).Msg("journal insert failed")
		}
	}
}

// Entries loads every entry for a run, in sequence order.
func (s *SQLite) Entries(runID string) ([]Entry, error) {
	rows, err := s.db.Query(`SELECT payload FROM entries WHERE run_id = ? ORDER BY rowid`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var blob []byte
		if err := rows.Scan(&blob); err != nil {
			return nil, err
		}
		var e Entry
		if err := e.Decode(bytes.NewReader(blob)); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Close drains the queue and closes the database.
func (s *SQLite) Close() error {
	s.once.Do(func() {
		close(s.ch)
	})
	s.wg.Wait()
	return s.db.Close()
}
