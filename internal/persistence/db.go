// Package persistence provides SQLite-based storage of sweep runs and their
// per-year trajectories.
package persistence

import (
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/citysim/internal/city"
	"github.com/talgya/citysim/internal/sweep"
)

// DB wraps a SQLite connection for run storage.
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
		scenario TEXT NOT NULL,
		edu_rate REAL NOT NULL,
		tax_rate REAL NOT NULL,
		seed INTEGER NOT NULL,
		years INTEGER NOT NULL,
		extinct INTEGER NOT NULL,
		created_at TEXT NOT NULL DEFAULT (datetime('now'))
	);

	CREATE TABLE IF NOT EXISTS periods (
		run_id TEXT NOT NULL REFERENCES runs(id),
		year INTEGER NOT NULL,
		population INTEGER NOT NULL,
		gini REAL NOT NULL,
		mean_wealth REAL NOT NULL,
		morale REAL NOT NULL,
		migration REAL NOT NULL,
		logistic_growth REAL NOT NULL,
		gross_yield REAL NOT NULL,
		productivity REAL NOT NULL,
		PRIMARY KEY (run_id, year)
	);

	CREATE INDEX IF NOT EXISTS idx_runs_scenario ON runs(scenario);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// SaveRun writes a run header and its full trajectory in one transaction.
func (db *DB) SaveRun(run sweep.Run) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	extinct := 0
	if run.Extinct {
		extinct = 1
	}

	_, err = tx.Exec(`INSERT INTO runs (id, scenario, edu_rate, tax_rate, seed, years, extinct)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID.String(), run.Scenario, run.EduRate, run.TaxRate, run.Seed, run.Years, extinct,
	)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", run.ID, err)
	}

	stmt, err := tx.Preparex(`INSERT INTO periods
		(run_id, year, population, gini, mean_wealth, morale, migration,
		 logistic_growth, gross_yield, productivity)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, res := range run.Results {
		_, err := stmt.Exec(
			run.ID.String(), res.Year, res.Population, res.Gini, res.MeanWealth,
			res.Morale, res.Migration, res.LogisticGrowth, res.GrossYield, res.Productivity,
		)
		if err != nil {
			return fmt.Errorf("insert period %s/%d: %w", run.ID, res.Year, err)
		}
	}

	return tx.Commit()
}

// SaveRuns writes a batch of runs.
func (db *DB) SaveRuns(runs []sweep.Run) error {
	for _, run := range runs {
		if err := db.SaveRun(run); err != nil {
			return err
		}
	}
	slog.Info("runs saved", "count", len(runs))
	return nil
}

// RunRow is a stored run header.
type RunRow struct {
	ID       string  `db:"id" json:"id"`
	Scenario string  `db:"scenario" json:"scenario"`
	EduRate  float64 `db:"edu_rate" json:"edu_rate"`
	TaxRate  float64 `db:"tax_rate" json:"tax_rate"`
	Seed     uint64  `db:"seed" json:"seed"`
	Years    int     `db:"years" json:"years"`
	Extinct  bool    `db:"extinct" json:"extinct"`
}

// ListRuns returns stored run headers, most recent first.
func (db *DB) ListRuns(limit int) ([]RunRow, error) {
	var rows []RunRow
	err := db.conn.Select(&rows,
		`SELECT id, scenario, edu_rate, tax_rate, seed, years, extinct
		 FROM runs ORDER BY rowid DESC LIMIT ?`, limit)
	return rows, err
}

// LoadTrajectory returns the per-year results of one run in year order.
func (db *DB) LoadTrajectory(runID uuid.UUID, limit int) ([]city.Result, error) {
	var rows []city.Result
	err := db.conn.Select(&rows,
		`SELECT year, population, gini, mean_wealth, morale, migration,
		        logistic_growth, gross_yield, productivity
		 FROM periods WHERE run_id = ? ORDER BY year LIMIT ?`,
		runID.String(), limit)
	return rows, err
}

// CountRuns returns the number of stored runs.
func (db *DB) CountRuns() (int, error) {
	var n int
	err := db.conn.Get(&n, "SELECT COUNT(*) FROM runs")
	return n, err
}
