package journal

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

// SQLiteJournal persists fetch diagnostics to a SQLite database.
type SQLiteJournal struct {
	db     *sql.DB
	mu     sync.Mutex
	logger zerolog.Logger
}

// NewSQLiteJournal opens (or creates) the database and runs migrations.
func NewSQLiteJournal(dbPath string, logger zerolog.Logger) (*SQLiteJournal, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	j := &SQLiteJournal{db: db, logger: logger}
	if err := j.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	logger.Info().Str("path", dbPath).Msg("sqlite journal opened")
	return j, nil
}

func (j *SQLiteJournal) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS fetches (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp   INTEGER NOT NULL,
			symbol      TEXT,
			function    TEXT,
			period      TEXT,
			outcome     TEXT,
			cache_hit   INTEGER,
			attempts    INTEGER,
			rows        INTEGER,
			duration_ms INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_fetches_ts ON fetches(timestamp)`,

		`CREATE TABLE IF NOT EXISTS runs (
			id               INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp        INTEGER NOT NULL,
			symbol           TEXT,
			period           TEXT,
			years            INTEGER,
			empty_statements INTEGER,
			prices_resolved  INTEGER,
			duration_ms      INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_ts ON runs(timestamp)`,
	}

	for _, s := range stmts {
		if _, err := j.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:32], err)
		}
	}
	return nil
}

func (j *SQLiteJournal) RecordFetch(rec *FetchRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	_, err := j.db.Exec(`INSERT INTO fetches
		(timestamp, symbol, function, period, outcome, cache_hit, attempts, rows, duration_ms)
		VALUES (?,?,?,?,?,?,?,?,?)`,
		time.Now().Unix(), rec.Symbol, rec.Function, rec.Period,
		rec.Outcome, rec.CacheHit, rec.Attempts, rec.Rows,
		rec.Duration.Milliseconds(),
	)
	return err
}

func (j *SQLiteJournal) RecordRun(rec *RunRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	_, err := j.db.Exec(`INSERT INTO runs
		(timestamp, symbol, period, years, empty_statements, prices_resolved, duration_ms)
		VALUES (?,?,?,?,?,?,?)`,
		time.Now().Unix(), rec.Symbol, rec.Period, rec.Years,
		rec.EmptyStatements, rec.PricesResolved, rec.Duration.Milliseconds(),
	)
	return err
}

func (j *SQLiteJournal) Close() error {
	j.logger.Info().Msg("closing sqlite journal")
	return j.db.Close()
}
