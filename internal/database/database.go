package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// MetadataLastScoresUpdate is the app_metadata key holding the instant
// results were last recorded.
const MetadataLastScoresUpdate = "last_scores_update"

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when a write violates a uniqueness constraint.
	ErrConflict = errors.New("record conflicts with an existing row")
)

// Service is the central struct for managing all database interactions.
// Reads go straight to the pool; writes are serialised through
// WriteToMainDB so SQLite never sees two concurrent writers.
type Service struct {
	dbPath string
	mainDB *sql.DB
	mu     sync.Mutex
}

// NewService opens the database file at dbPath and verifies the connection.
func NewService(dbPath string) (*Service, error) {
	dsn := dbPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_time_format=sqlite"
	mainDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("could not open %s: %w", dbPath, err)
	}

	if err := mainDB.Ping(); err != nil {
		mainDB.Close()
		return nil, fmt.Errorf("could not connect to %s: %w", dbPath, err)
	}

	return &Service{
		dbPath: dbPath,
		mainDB: mainDB,
	}, nil
}

// WriteToMainDB executes a write operation (INSERT, UPDATE, DELETE) within a
// transaction, protected by a mutex to ensure serial access.
func (s *Service) WriteToMainDB(ctx context.Context, writeFunc func(tx *sql.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.mainDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := writeFunc(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("transaction error: %v, rollback error: %v", err, rbErr)
		}
		return translateError(err)
	}

	return translateError(tx.Commit())
}

// GetMainDB provides a direct connection for read queries.
func (s *Service) GetMainDB() *sql.DB {
	return s.mainDB
}

// Close closes the underlying connection pool.
func (s *Service) Close() {
	if err := s.mainDB.Close(); err != nil {
		log.WithError(err).Warn("closing database")
		return
	}
	log.WithField("path", s.dbPath).Info("database connection closed")
}

// InitMainDB sets up the schema if the tables don't exist.
// This is idempotent and safe to run on every application start.
func (s *Service) InitMainDB(ctx context.Context) error {
	return s.WriteToMainDB(ctx, func(tx *sql.Tx) error {
		for _, stmt := range schema {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("applying schema: %w", err)
			}
		}
		return nil
	})
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS app_metadata (
		key TEXT PRIMARY KEY,
		value TEXT,
		updated_at DATETIME NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS profiles (
		id TEXT PRIMARY KEY,
		email TEXT UNIQUE NOT NULL,
		display_name TEXT,
		created_at DATETIME NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS pools (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		invite_code TEXT NOT NULL UNIQUE,
		created_by TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		FOREIGN KEY (created_by) REFERENCES profiles (id) ON DELETE CASCADE
	);`,
	`CREATE TABLE IF NOT EXISTS pool_members (
		id TEXT PRIMARY KEY,
		pool_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		joined_at DATETIME NOT NULL,
		UNIQUE (pool_id, user_id),
		FOREIGN KEY (pool_id) REFERENCES pools (id) ON DELETE CASCADE,
		FOREIGN KEY (user_id) REFERENCES profiles (id) ON DELETE CASCADE
	);`,
	`CREATE INDEX IF NOT EXISTS idx_pool_members_user ON pool_members (user_id);`,
	`CREATE TABLE IF NOT EXISTS games (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		team1 TEXT NOT NULL,
		team2 TEXT NOT NULL,
		game_time DATETIME NOT NULL,
		location TEXT,
		tv_channel TEXT,
		winner TEXT CHECK (winner IN ('team1', 'team2')),
		team1_score INTEGER,
		team2_score INTEGER,
		is_final BOOLEAN NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		CHECK (winner IS NULL OR is_final = 1)
	);`,
	`CREATE TABLE IF NOT EXISTS picks (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		game_id TEXT NOT NULL,
		picked_team TEXT NOT NULL CHECK (picked_team IN ('team1', 'team2')),
		created_at DATETIME NOT NULL,
		UNIQUE (user_id, game_id),
		FOREIGN KEY (user_id) REFERENCES profiles (id) ON DELETE CASCADE,
		FOREIGN KEY (game_id) REFERENCES games (id) ON DELETE CASCADE
	);`,
	`CREATE INDEX IF NOT EXISTS idx_picks_user ON picks (user_id);`,
	`CREATE TABLE IF NOT EXISTS sign_in_tokens (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL,
		token_hash TEXT NOT NULL UNIQUE,
		expires_at DATETIME NOT NULL,
		consumed_at DATETIME,
		created_at DATETIME NOT NULL
	);`,
}

// translateError maps driver errors onto the package sentinels.
func translateError(err error) error {
	if err == nil || errors.Is(err, ErrNotFound) || errors.Is(err, ErrConflict) {
		return err
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %v", ErrConflict, err)
	}
	return err
}

func isUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		}
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
