// Package repository provides data access implementations
package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/abelzeko/waterwatch/internal/entities"
	_ "github.com/mattn/go-sqlite3"
)

// RiverRepository defines the persistence operations for reading history
type RiverRepository interface {
	SaveReadings(ctx context.Context, snap *entities.Snapshot) error
	GetLatestReadings(ctx context.Context) (*entities.Snapshot, error)
	GetStationHistory(ctx context.Context, location string, limit int) ([]entities.LevelRecord, error)
}

// SQLiteRepository implements RiverRepository and AlertRepository on one SQLite database
type SQLiteRepository struct {
	db     *sql.DB
	DBPath string
	logger *slog.Logger
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS river_data (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	river TEXT NOT NULL,
	station TEXT NOT NULL,
	water_level INTEGER NOT NULL,
	flow_rate TEXT,
	water_temp TEXT,
	timestamp DATETIME NOT NULL,
	UNIQUE(river, station, timestamp)
);
CREATE INDEX IF NOT EXISTS idx_station ON river_data(station);
CREATE INDEX IF NOT EXISTS idx_timestamp ON river_data(timestamp);

CREATE TABLE IF NOT EXISTS users (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	username TEXT NOT NULL UNIQUE,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS thresholds (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	station TEXT NOT NULL,
	threshold_cm INTEGER NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_thresholds_user ON thresholds(user_id);

CREATE TABLE IF NOT EXISTS recipients (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	email TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE(user_id, email)
);`

// NewSQLiteRepository opens the database and creates the schema
func NewSQLiteRepository(dbPath string, logger *slog.Logger) (*SQLiteRepository, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if dbPath == "" {
		dbPath = filepath.Join("data", "waterwatch.db")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	logger.Info("opening database", "path", dbPath)
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return &SQLiteRepository{
		db:     db,
		DBPath: dbPath,
		logger: logger,
	}, nil
}

// Close closes the database connection
func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// SaveReadings stores every reading of a snapshot under its fetch time
func (r *SQLiteRepository) SaveReadings(ctx context.Context, snap *entities.Snapshot) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO river_data(river, station, water_level, flow_rate, water_temp, timestamp)
		VALUES(?, ?, ?, ?, ?, ?)
		ON CONFLICT(river, station, timestamp) DO UPDATE SET
		water_level=excluded.water_level,
		flow_rate=excluded.flow_rate,
		water_temp=excluded.water_temp
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	ts := snap.FetchedAt.UTC()
	for _, rd := range snap.Readings {
		if _, err := stmt.ExecContext(ctx, rd.River, rd.Location, rd.WaterLevelCm, rd.FlowRate, rd.Temperature, ts); err != nil {
			return fmt.Errorf("failed to insert data for %s at %s: %w", rd.River, rd.Location, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	r.logger.Debug("saved river data records", "count", len(snap.Readings))
	return nil
}

// GetLatestReadings rebuilds the most recently stored snapshot. It returns
// nil when nothing has been stored yet.
func (r *SQLiteRepository) GetLatestReadings(ctx context.Context) (*entities.Snapshot, error) {
	query := `
		SELECT river, station, water_level, COALESCE(flow_rate, ''), COALESCE(water_temp, ''), timestamp
		FROM river_data
		WHERE timestamp = (SELECT MAX(timestamp) FROM river_data)
		ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query latest readings: %w", err)
	}
	defer rows.Close()

	var snap *entities.Snapshot
	for rows.Next() {
		var rd entities.StationReading
		var ts time.Time
		if err := rows.Scan(&rd.River, &rd.Location, &rd.WaterLevelCm, &rd.FlowRate, &rd.Temperature, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		if snap == nil {
			snap = &entities.Snapshot{FetchedAt: ts.UTC()}
		}
		snap.Readings = append(snap.Readings, rd)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return snap, nil
}

// GetStationHistory returns up to limit stored levels of a station, newest first
func (r *SQLiteRepository) GetStationHistory(ctx context.Context, location string, limit int) ([]entities.LevelRecord, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT station, water_level, timestamp
		FROM river_data
		WHERE station = ? COLLATE NOCASE
		ORDER BY timestamp DESC
		LIMIT ?`, location, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history for %s: %w", location, err)
	}
	defer rows.Close()

	var result []entities.LevelRecord
	for rows.Next() {
		var rec entities.LevelRecord
		if err := rows.Scan(&rec.Location, &rec.WaterLevelCm, &rec.RecordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		rec.RecordedAt = rec.RecordedAt.UTC()
		result = append(result, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return result, nil
}
