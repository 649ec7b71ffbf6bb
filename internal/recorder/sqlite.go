package recorder

import (
	"database/sql"
	"fmt"
	"log"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteRecorder persists run history to a SQLite database.
type SQLiteRecorder struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL mode so external tools can read while a run is writing.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Printf("[INFO] sqlite recorder opened: %s", dbPath)
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id              INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id          TEXT NOT NULL,
			timestamp       INTEGER NOT NULL,
			total_value_eur REAL,
			asset_count     INTEGER,
			analysis_chars  INTEGER,
			delivered       INTEGER,
			error           TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_ts ON runs(timestamp)`,

		`CREATE TABLE IF NOT EXISTS candle_syncs (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id      TEXT,
			timestamp   INTEGER NOT NULL,
			pair        TEXT,
			timeframe   TEXT,
			rows_before INTEGER,
			rows_added  INTEGER,
			rows_after  INTEGER,
			duration_ms INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_syncs_ts ON candle_syncs(timestamp)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func (r *SQLiteRecorder) RecordRun(rec *RunRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`INSERT INTO runs
		(run_id, timestamp, total_value_eur, asset_count, analysis_chars, delivered, error)
		VALUES (?,?,?,?,?,?,?)`,
		rec.RunID, time.Now().Unix(), rec.TotalValueEUR, rec.AssetCount,
		rec.AnalysisChars, rec.Delivered, rec.ErrorMsg,
	)
	return err
}

func (r *SQLiteRecorder) RecordSync(rec *SyncRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`INSERT INTO candle_syncs
		(run_id, timestamp, pair, timeframe, rows_before, rows_added, rows_after, duration_ms)
		VALUES (?,?,?,?,?,?,?,?)`,
		rec.RunID, time.Now().Unix(), rec.Pair, rec.Timeframe,
		rec.RowsBefore, rec.RowsAdded, rec.RowsAfter, rec.Duration.Milliseconds(),
	)
	return err
}

func (r *SQLiteRecorder) Close() error {
	log.Println("[INFO] closing sqlite recorder")
	return r.db.Close()
}
