// Package persistence provides SQLite-based run history storage, one run
// per uuid with per-step stats, the transfer log, and a final unit
// snapshot.
package persistence

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/domacity/internal/agents"
	"github.com/talgya/domacity/internal/city"
	"github.com/talgya/domacity/internal/stats"
)

// DB wraps a SQLite connection for run history persistence.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		city TEXT NOT NULL,
		seed INTEGER NOT NULL,
		steps INTEGER NOT NULL,
		started_at TEXT NOT NULL,
		finished_at TEXT
	);

	CREATE TABLE IF NOT EXISTS run_steps (
		run_id TEXT NOT NULL,
		month INTEGER NOT NULL,
		stats_json TEXT NOT NULL,
		PRIMARY KEY (run_id, month)
	);

	CREATE TABLE IF NOT EXISTS transfers (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		month INTEGER NOT NULL,
		unit_id INTEGER NOT NULL,
		buyer_type TEXT NOT NULL,
		buyer_id INTEGER NOT NULL,
		amount REAL NOT NULL
	);

	CREATE TABLE IF NOT EXISTS final_units (
		run_id TEXT NOT NULL,
		unit_id INTEGER NOT NULL,
		rent REAL NOT NULL,
		value REAL NOT NULL,
		condition REAL NOT NULL,
		occupants INTEGER NOT NULL,
		owner_type TEXT NOT NULL,
		owner_id INTEGER NOT NULL,
		PRIMARY KEY (run_id, unit_id)
	);

	CREATE INDEX IF NOT EXISTS idx_transfers_run ON transfers(run_id, month);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// BeginRun records run metadata and returns the run id.
func (db *DB) BeginRun(cityName string, seed int64, steps int) (uuid.UUID, error) {
	id := uuid.New()
	_, err := db.conn.Exec(
		"INSERT INTO runs (id, city, seed, steps, started_at) VALUES (?, ?, ?, ?, ?)",
		id.String(), cityName, seed, steps, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("begin run: %w", err)
	}
	return id, nil
}

// FinishRun stamps the run's completion time.
func (db *DB) FinishRun(runID uuid.UUID) error {
	_, err := db.conn.Exec(
		"UPDATE runs SET finished_at = ? WHERE id = ?",
		time.Now().UTC().Format(time.RFC3339), runID.String(),
	)
	return err
}

// SaveStep writes one month's snapshot and transfer log.
func (db *DB) SaveStep(runID uuid.UUID, snap stats.Snapshot, transfers []agents.Transfer) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	statsJSON, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal stats: %w", err)
	}
	if _, err := tx.Exec(
		"INSERT OR REPLACE INTO run_steps (run_id, month, stats_json) VALUES (?, ?, ?)",
		runID.String(), snap.Month, string(statsJSON),
	); err != nil {
		return err
	}

	for _, tr := range transfers {
		if _, err := tx.Exec(
			"INSERT INTO transfers (run_id, month, unit_id, buyer_type, buyer_id, amount) VALUES (?, ?, ?, ?, ?, ?)",
			runID.String(), snap.Month, tr.UnitID, tr.Buyer.Type.String(), tr.Buyer.ID, tr.Amount,
		); err != nil {
			return fmt.Errorf("insert transfer unit %d: %w", tr.UnitID, err)
		}
	}

	return tx.Commit()
}

// SaveFinalUnits writes the end-of-run unit snapshot (full replace for
// the run).
func (db *DB) SaveFinalUnits(runID uuid.UUID, units []*city.Unit) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM final_units WHERE run_id = ?", runID.String()); err != nil {
		return err
	}

	stmt, err := tx.Preparex(`INSERT INTO final_units
		(run_id, unit_id, rent, value, condition, occupants, owner_type, owner_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, u := range units {
		if _, err := stmt.Exec(
			runID.String(), u.ID, u.Rent, u.Value, u.Condition,
			len(u.Tenants), u.Owner.Type.String(), u.Owner.ID,
		); err != nil {
			return fmt.Errorf("insert unit %d: %w", u.ID, err)
		}
	}

	slog.Info("final units saved", "run", runID, "units", len(units))
	return tx.Commit()
}

// StepStats loads a saved snapshot back from the run history.
func (db *DB) StepStats(runID uuid.UUID, month int) (stats.Snapshot, error) {
	var raw string
	err := db.conn.Get(&raw,
		"SELECT stats_json FROM run_steps WHERE run_id = ? AND month = ?",
		runID.String(), month,
	)
	if err != nil {
		return stats.Snapshot{}, err
	}
	var snap stats.Snapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		return stats.Snapshot{}, fmt.Errorf("unmarshal stats: %w", err)
	}
	return snap, nil
}
