package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"watchlist-compare/models"
)

// RecordComparison stores a finished comparison and its per-user results
// in one transaction
func (db *DB) RecordComparison(ctx context.Context, rec models.ComparisonRecord) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO comparisons (id, usernames, status, error_kind, message, result_count, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, rec.ID, pq.Array(rec.Usernames), string(rec.Status), nullString(string(rec.ErrorKind)), nullString(rec.Message),
		rec.ResultCount, rec.StartedAt, rec.FinishedAt)
	if err != nil {
		return fmt.Errorf("failed to insert comparison: %w", err)
	}

	for _, u := range rec.Users {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO comparison_users (comparison_id, username, cached, film_count, error_kind, message)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, rec.ID, u.Username, u.Cached, u.FilmCount, nullString(string(u.ErrorKind)), nullString(u.Message))
		if err != nil {
			return fmt.Errorf("failed to insert result for %s: %w", u.Username, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit comparison: %w", err)
	}
	return nil
}

// RecentComparisons returns the latest comparisons, newest first, without
// their per-user rows
func (db *DB) RecentComparisons(ctx context.Context, limit int) ([]models.ComparisonRecord, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, usernames, status, error_kind, message, result_count, started_at, finished_at
		FROM comparisons
		ORDER BY finished_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query comparisons: %w", err)
	}
	defer rows.Close()

	var records []models.ComparisonRecord
	for rows.Next() {
		var (
			rec       models.ComparisonRecord
			status    string
			errorKind sql.NullString
			message   sql.NullString
		)
		if err := rows.Scan(&rec.ID, pq.Array(&rec.Usernames), &status, &errorKind, &message,
			&rec.ResultCount, &rec.StartedAt, &rec.FinishedAt); err != nil {
			return nil, fmt.Errorf("failed to scan comparison: %w", err)
		}
		rec.Status = models.ComparisonStatus(status)
		rec.ErrorKind = models.ErrorKind(errorKind.String)
		rec.Message = message.String
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read comparisons: %w", err)
	}
	return records, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
