package database

import (
	"context"
	"fmt"
	"log"
	"strings"
)

// createTableStatements is the baseline schema. Every statement is
// IF NOT EXISTS so that InitSchema is safe against any existing install.
var createTableStatements = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT,
		email TEXT UNIQUE NOT NULL,
		full_name TEXT,
		is_admin BOOLEAN DEFAULT FALSE,
		supabase_id TEXT UNIQUE NOT NULL,
		last_login TIMESTAMP,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		last_activity TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS shopping_items (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		item_name TEXT NOT NULL,
		completed BOOLEAN DEFAULT FALSE,
		added_by INTEGER NOT NULL,
		completed_by INTEGER,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		completed_at TIMESTAMP,
		FOREIGN KEY (added_by) REFERENCES users (id),
		FOREIGN KEY (completed_by) REFERENCES users (id)
	)`,
	`CREATE TABLE IF NOT EXISTS chores (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		chore_name TEXT NOT NULL,
		assigned_to INTEGER,
		completed BOOLEAN DEFAULT FALSE,
		added_by INTEGER NOT NULL,
		completed_by INTEGER,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		completed_at TIMESTAMP,
		FOREIGN KEY (assigned_to) REFERENCES users (id),
		FOREIGN KEY (added_by) REFERENCES users (id),
		FOREIGN KEY (completed_by) REFERENCES users (id)
	)`,
	`CREATE TABLE IF NOT EXISTS expiry_items (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		item_name TEXT NOT NULL,
		expiry_date DATE NOT NULL,
		added_by INTEGER NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (added_by) REFERENCES users (id)
	)`,
	`CREATE TABLE IF NOT EXISTS bills (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		bill_name TEXT NOT NULL,
		amount DECIMAL(10,2) NOT NULL,
		due_day INTEGER NOT NULL,
		added_by INTEGER NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (added_by) REFERENCES users (id)
	)`,
	`CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS user_features (
		user_id INTEGER NOT NULL,
		feature_name TEXT NOT NULL,
		visible BOOLEAN NOT NULL DEFAULT TRUE,
		PRIMARY KEY (user_id, feature_name),
		FOREIGN KEY (user_id) REFERENCES users (id)
	)`,
	`CREATE TABLE IF NOT EXISTS schema_migrations (
		name TEXT PRIMARY KEY,
		applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`,
}

// migration is a named, idempotent schema alteration for installs that
// predate the current baseline schema.
type migration struct {
	name string
	stmt string
}

// migrations run in order at startup, once each, tracked in the
// schema_migrations ledger.
var migrations = []migration{
	{"shopping_items_completed", "ALTER TABLE shopping_items ADD COLUMN completed BOOLEAN DEFAULT FALSE"},
	{"shopping_items_completed_by", "ALTER TABLE shopping_items ADD COLUMN completed_by INTEGER"},
	{"shopping_items_completed_at", "ALTER TABLE shopping_items ADD COLUMN completed_at TIMESTAMP"},
	{"users_supabase_id", "ALTER TABLE users ADD COLUMN supabase_id TEXT"},
	{"users_last_activity", "ALTER TABLE users ADD COLUMN last_activity TIMESTAMP"},
}

// InitSchema creates all required tables and applies pending migrations.
// It must run to completion before the server accepts traffic.
//
// A migration that fails with a duplicate-column class error is treated as
// already applied: installations older than the ledger applied alterations
// by attempting them and swallowing that error, so the ledger has to accept
// their schema as-is. Any other failure is logged as a warning and skipped;
// a degraded schema keeps an old install running, a refusal to start does
// not.
func (db *DB) InitSchema(ctx context.Context) error {
	for _, stmt := range createTableStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	for _, m := range migrations {
		applied, err := db.migrationApplied(ctx, m.name)
		if err != nil {
			return fmt.Errorf("failed to read migration ledger: %w", err)
		}
		if applied {
			continue
		}

		if _, err := db.ExecContext(ctx, m.stmt); err != nil {
			if !isAlreadyAppliedError(err) {
				log.Printf("WARNING: migration %s failed: %v", m.name, err)
				continue
			}
		} else {
			log.Printf("applied migration: %s", m.name)
		}

		if err := db.recordMigration(ctx, m.name); err != nil {
			return fmt.Errorf("failed to record migration %s: %w", m.name, err)
		}
	}

	return nil
}

func (db *DB) migrationApplied(ctx context.Context, name string) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE name = ?)`
	var exists bool
	err := db.QueryRowContext(ctx, query, name).Scan(&exists)
	return exists, err
}

func (db *DB) recordMigration(ctx context.Context, name string) error {
	const query = `INSERT INTO schema_migrations (name) VALUES (?) ON CONFLICT (name) DO NOTHING`
	_, err := db.ExecContext(ctx, query, name)
	return err
}

// isAlreadyAppliedError reports whether err indicates the schema change is
// already in place (duplicate column, existing table or index).
func isAlreadyAppliedError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate column name") || strings.Contains(msg, "already exists")
}
