package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/abelzeko/waterwatch/internal/entities"
)

// AlertRepository stores users, their thresholds and alert recipients
type AlertRepository interface {
	ListUsersWithThresholds(ctx context.Context) ([]int64, error)
	GetUserThresholds(ctx context.Context, userID int64) (entities.UserThresholds, error)
	GetRecipients(ctx context.Context, userID int64) ([]string, error)

	AddUser(ctx context.Context, username string) (int64, error)
	GetUserByName(ctx context.Context, username string) (int64, error)
	AddThreshold(ctx context.Context, userID int64, station string, thresholdCm int) error
	AddRecipient(ctx context.Context, userID int64, email string) error
	RemoveRecipient(ctx context.Context, userID int64, email string) error
}

// ListUsersWithThresholds returns the ids of users with at least one threshold
func (r *SQLiteRepository) ListUsersWithThresholds(ctx context.Context) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT DISTINCT user_id FROM thresholds ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query users with thresholds: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return ids, nil
}

// GetUserThresholds returns every threshold row of a user grouped by station
func (r *SQLiteRepository) GetUserThresholds(ctx context.Context, userID int64) (entities.UserThresholds, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT station, threshold_cm
		FROM thresholds
		WHERE user_id = ?
		ORDER BY id`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query thresholds for user %d: %w", userID, err)
	}
	defer rows.Close()

	thresholds := entities.UserThresholds{}
	for rows.Next() {
		var station string
		var cm int
		if err := rows.Scan(&station, &cm); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		thresholds[station] = append(thresholds[station], cm)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return thresholds, nil
}

// GetRecipients returns a user's alert addresses in the order they were added
func (r *SQLiteRepository) GetRecipients(ctx context.Context, userID int64) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT email
		FROM recipients
		WHERE user_id = ?
		ORDER BY id`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query recipients for user %d: %w", userID, err)
	}
	defer rows.Close()

	var emails []string
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		emails = append(emails, email)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return emails, nil
}

// AddUser creates a user and returns its id
func (r *SQLiteRepository) AddUser(ctx context.Context, username string) (int64, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return 0, errors.New("username is required")
	}

	res, err := r.db.ExecContext(ctx, `INSERT INTO users(username) VALUES(?)`, username)
	if err != nil {
		return 0, fmt.Errorf("failed to insert user %s: %w", username, err)
	}
	return res.LastInsertId()
}

// GetUserByName returns the id of a user, or ErrNotFound
func (r *SQLiteRepository) GetUserByName(ctx context.Context, username string) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(ctx, `SELECT id FROM users WHERE username = ?`, username).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("user %s: %w", username, entities.ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to query user %s: %w", username, err)
	}
	return id, nil
}

// AddThreshold records a threshold row. Earlier rows for the same station are kept.
func (r *SQLiteRepository) AddThreshold(ctx context.Context, userID int64, station string, thresholdCm int) error {
	station = strings.TrimSpace(station)
	if station == "" {
		return errors.New("station is required")
	}
	if thresholdCm <= 0 {
		return fmt.Errorf("threshold must be positive, got %d", thresholdCm)
	}

	if _, err := r.db.ExecContext(ctx,
		`INSERT INTO thresholds(user_id, station, threshold_cm) VALUES(?, ?, ?)`,
		userID, station, thresholdCm,
	); err != nil {
		return fmt.Errorf("failed to insert threshold for user %d: %w", userID, err)
	}
	return nil
}

// AddRecipient adds an alert address. Adding the same address twice is a no-op.
func (r *SQLiteRepository) AddRecipient(ctx context.Context, userID int64, email string) error {
	email = strings.TrimSpace(email)
	if !strings.Contains(email, "@") {
		return fmt.Errorf("invalid email address %q", email)
	}

	if _, err := r.db.ExecContext(ctx,
		`INSERT INTO recipients(user_id, email) VALUES(?, ?) ON CONFLICT(user_id, email) DO NOTHING`,
		userID, email,
	); err != nil {
		return fmt.Errorf("failed to insert recipient for user %d: %w", userID, err)
	}
	return nil
}

// RemoveRecipient deletes an alert address of a user
func (r *SQLiteRepository) RemoveRecipient(ctx context.Context, userID int64, email string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM recipients WHERE user_id = ? AND email = ?`, userID, email)
	if err != nil {
		return fmt.Errorf("failed to delete recipient for user %d: %w", userID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete recipient for user %d: %w", userID, err)
	}
	if n == 0 {
		return fmt.Errorf("recipient %s: %w", email, entities.ErrNotFound)
	}
	return nil
}
