package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
)

// Database records login run history in SQLite
type Database struct {
	db     *sql.DB
	logger *logrus.Logger
}

// RunRecord is one account's outcome from a past run
type RunRecord struct {
	ID         int       `json:"id"`
	Email      string    `json:"email"`
	Success    bool      `json:"success"`
	Message    string    `json:"message"`
	DurationMS int64     `json:"duration_ms"`
	RanAt      time.Time `json:"ran_at"`
}

// NewDatabase creates a new database connection
func NewDatabase(dbPath string, logger *logrus.Logger) (*Database, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	database := &Database{
		db:     db,
		logger: logger,
	}

	if err := database.initTables(); err != nil {
		return nil, fmt.Errorf("failed to initialize tables: %w", err)
	}

	logger.Debug("Database initialized")
	return database, nil
}

func (d *Database) initTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS login_runs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			email TEXT NOT NULL,
			success INTEGER NOT NULL,
			message TEXT,
			duration_ms INTEGER DEFAULT 0,
			ran_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_login_runs_email ON login_runs(email)`,
		`CREATE INDEX IF NOT EXISTS idx_login_runs_ran_at ON login_runs(ran_at)`,
	}

	for _, query := range queries {
		if _, err := d.db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute query: %s, error: %w", query, err)
		}
	}

	return nil
}

// Close closes the database connection
func (d *Database) Close() error {
	return d.db.Close()
}

// SaveOutcome records one account's outcome
func (d *Database) SaveOutcome(email string, success bool, message string, duration time.Duration) error {
	query := `INSERT INTO login_runs (email, success, message, duration_ms) VALUES (?, ?, ?, ?)`

	if _, err := d.db.Exec(query, email, success, message, duration.Milliseconds()); err != nil {
		return fmt.Errorf("failed to save run outcome: %w", err)
	}

	d.logger.WithFields(logrus.Fields{
		"email":   email,
		"success": success,
	}).Debug("Run outcome saved")
	return nil
}

// RecentRuns returns the most recent run records, newest first
func (d *Database) RecentRuns(limit int) ([]*RunRecord, error) {
	query := `SELECT id, email, success, message, duration_ms, ran_at
			  FROM login_runs ORDER BY ran_at DESC, id DESC LIMIT ?`

	rows, err := d.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent runs: %w", err)
	}
	defer rows.Close()

	var records []*RunRecord
	for rows.Next() {
		var record RunRecord
		err := rows.Scan(&record.ID, &record.Email, &record.Success, &record.Message, &record.DurationMS, &record.RanAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run record: %w", err)
		}
		records = append(records, &record)
	}

	return records, nil
}

// DailyStats returns run counts for a given day
func (d *Database) DailyStats(date time.Time) (map[string]int, error) {
	query := `
		SELECT
			(SELECT COUNT(*) FROM login_runs WHERE DATE(ran_at) = DATE(?)) as runs,
			(SELECT COUNT(*) FROM login_runs WHERE success = 1 AND DATE(ran_at) = DATE(?)) as successes,
			(SELECT COUNT(*) FROM login_runs WHERE success = 0 AND DATE(ran_at) = DATE(?)) as failures
	`

	row := d.db.QueryRow(query, date, date, date)
	var runs, successes, failures int
	if err := row.Scan(&runs, &successes, &failures); err != nil {
		return nil, fmt.Errorf("failed to get daily stats: %w", err)
	}

	return map[string]int{
		"runs":      runs,
		"successes": successes,
		"failures":  failures,
	}, nil
}
