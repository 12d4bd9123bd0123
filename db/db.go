package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"watchlist-compare/logger"
)

const pingTimeout = 5 * time.Second

// DB wraps the database connection
type DB struct {
	conn *sql.DB
	log  logger.Logger
}

// NewDB opens the PostgreSQL database at connStr and creates the schema
func NewDB(connStr string, log logger.Logger) (*DB, error) {
	if strings.TrimSpace(connStr) == "" {
		return nil, fmt.Errorf("database URL is empty")
	}

	conn, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db, err := NewWithConn(conn, log)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

// NewWithConn wraps an open connection and creates the schema
func NewWithConn(conn *sql.DB, log logger.Logger) (*DB, error) {
	if log == nil {
		log = logger.NewNop()
	}
	db := &DB{conn: conn, log: log}
	if err := db.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return db, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// initSchema creates the necessary tables if they don't exist
func (db *DB) initSchema() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS comparisons (
			id TEXT PRIMARY KEY,
			usernames TEXT[] NOT NULL,
			status VARCHAR(20) NOT NULL,
			error_kind VARCHAR(32),
			message TEXT,
			result_count INTEGER NOT NULL DEFAULT 0,
			started_at TIMESTAMPTZ NOT NULL,
			finished_at TIMESTAMPTZ NOT NULL,
			created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP,
			CONSTRAINT valid_status CHECK (status IN ('done', 'failed'))
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create comparisons table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS comparison_users (
			id SERIAL PRIMARY KEY,
			comparison_id TEXT NOT NULL REFERENCES comparisons(id) ON DELETE CASCADE,
			username TEXT NOT NULL,
			cached BOOLEAN NOT NULL DEFAULT FALSE,
			film_count INTEGER NOT NULL DEFAULT 0,
			error_kind VARCHAR(32),
			message TEXT
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create comparison_users table: %w", err)
	}

	_, err = db.conn.Exec(`CREATE INDEX IF NOT EXISTS idx_comparisons_finished_at ON comparisons(finished_at)`)
	if err != nil {
		db.log.Warn("Failed to create index on comparisons.finished_at", logger.Error(err))
	}

	_, err = db.conn.Exec(`CREATE INDEX IF NOT EXISTS idx_comparison_users_comparison_id ON comparison_users(comparison_id)`)
	if err != nil {
		db.log.Warn("Failed to create index on comparison_users.comparison_id", logger.Error(err))
	}

	db.log.Info("Database schema initialized successfully")
	return nil
}
