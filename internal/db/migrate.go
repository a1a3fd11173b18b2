// Package db provides database schema migration management.
package db

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"
)

// Migration represents a database schema migration.
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// AppliedMigration is a migration row recorded in schema_migrations.
type AppliedMigration struct {
	Version     int
	AppliedAt   time.Time
	Description string
	Checksum    string
}

// migrations is the ordered list of schema versions. SQL is embedded
// rather than read from disk so the binary stays self-contained on
// every platform the client ships to.
var migrations = []Migration{
	{
		Version:     1,
		Description: "queue_and_kv",
		SQL: `
CREATE TABLE IF NOT EXISTS sync_queue (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	id TEXT NOT NULL UNIQUE,
	action TEXT NOT NULL CHECK(length(action) > 0),
	payload TEXT NOT NULL,
	status TEXT NOT NULL CHECK(status IN ('pending', 'done', 'failed')),
	created_at INTEGER NOT NULL CHECK(created_at > 0),
	last_error TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_sync_queue_status ON sync_queue(status, seq);

CREATE TABLE IF NOT EXISTS kv (
	key TEXT PRIMARY KEY CHECK(length(key) > 0),
	value TEXT NOT NULL,
	updated_at INTEGER NOT NULL CHECK(updated_at > 0)
);`,
	},
}

// Migrator handles database schema migrations.
type Migrator struct {
	db *sql.DB
}

// NewMigrator creates a new Migrator instance.
func NewMigrator(db *sql.DB) *Migrator {
	return &Migrator{db: db}
}

// Initialize creates the schema_migrations table if it doesn't exist.
func (m *Migrator) Initialize() error {
	query := `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY CHECK(version > 0),
		applied_at INTEGER NOT NULL CHECK(applied_at > 0),
		description TEXT NOT NULL CHECK(length(description) > 0),
		checksum TEXT NOT NULL CHECK(length(checksum) = 64)
	);`
	_, err := m.db.Exec(query)
	return err
}

// CurrentVersion returns the current schema version.
func (m *Migrator) CurrentVersion() (int, error) {
	var version int
	err := m.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version)
	return version, err
}

// GetAppliedMigrations returns all applied migrations.
func (m *Migrator) GetAppliedMigrations() ([]AppliedMigration, error) {
	rows, err := m.db.Query("SELECT version, applied_at, description, checksum FROM schema_migrations ORDER BY version")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var applied []AppliedMigration
	for rows.Next() {
		var a AppliedMigration
		var appliedAt int64
		if err := rows.Scan(&a.Version, &appliedAt, &a.Description, &a.Checksum); err != nil {
			return nil, err
		}
		a.AppliedAt = time.Unix(appliedAt, 0)
		applied = append(applied, a)
	}
	return applied, rows.Err()
}

// Up applies all pending migrations. A checksum mismatch on an
// already-applied version means the embedded SQL changed after ship,
// which is a deploy error and fails loudly.
func (m *Migrator) Up() error {
	applied, err := m.GetAppliedMigrations()
	if err != nil {
		return fmt.Errorf("failed to get applied migrations: %w", err)
	}
	appliedByVersion := make(map[int]AppliedMigration)
	for _, a := range applied {
		appliedByVersion[a.Version] = a
	}

	for _, mig := range migrations {
		if prior, ok := appliedByVersion[mig.Version]; ok {
			if prior.Checksum != checksum(mig.SQL) {
				return fmt.Errorf("migration V%d checksum mismatch: applied %s", mig.Version, prior.Checksum)
			}
			continue
		}

		if err := m.applyMigration(mig); err != nil {
			return fmt.Errorf("failed to apply migration V%d: %w", mig.Version, err)
		}
	}

	return nil
}

// applyMigration applies a single migration in one transaction.
func (m *Migrator) applyMigration(mig Migration) error {
	tx, err := m.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(mig.SQL); err != nil {
		return fmt.Errorf("failed to execute migration SQL: %w", err)
	}

	query := `INSERT INTO schema_migrations (version, applied_at, description, checksum)
			  VALUES (?, ?, ?, ?)`
	if _, err := tx.Exec(query, mig.Version, time.Now().Unix(), mig.Description, checksum(mig.SQL)); err != nil {
		return fmt.Errorf("failed to record migration: %w", err)
	}

	return tx.Commit()
}

// checksum computes the SHA-256 hex digest of migration SQL.
func checksum(sqlText string) string {
	hash := sha256.Sum256([]byte(sqlText))
	return hex.EncodeToString(hash[:])
}

// OpenAndMigrate opens the database and brings the schema current.
// Every entry point goes through this so a restart never sees a
// half-created schema.
func OpenAndMigrate(dataDir string) (*DB, error) {
	database, err := Open(dataDir)
	if err != nil {
		return nil, err
	}

	migrator := NewMigrator(database.DB)
	if err := migrator.Initialize(); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to initialize migrations: %w", err)
	}
	if err := migrator.Up(); err != nil {
		database.Close()
		return nil, err
	}

	return database, nil
}
