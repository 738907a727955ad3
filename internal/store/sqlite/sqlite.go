// Package sqlite implements the credential stores on an embedded SQLite
// database (standalone mode).
package sqlite

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/nextlevelbuilder/keyproxy/internal/store"
)

// DefaultPath is the database file used when none is configured.
const DefaultPath = "./data/keyproxy.db"

// OpenDB opens (or creates) the SQLite database at path and initializes the schema.
func OpenDB(path string) (*sqlx.DB, error) {
	if path == "" {
		path = DefaultPath
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	slog.Info("sqlite store opened", "path", path)
	return db, nil
}

// NewStores opens the database and returns the bot and key stores sharing it.
func NewStores(cfg store.StoreConfig) (*store.Stores, error) {
	db, err := OpenDB(cfg.SQLitePath)
	if err != nil {
		return nil, err
	}
	bots := store.NewCachedBotStore(NewBotStore(db), cfg.BotCacheSize, cfg.BotCacheTTL)
	return store.NewStores(bots, NewAPIKeyStore(db), db.Close), nil
}

func migrate(db *sqlx.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS bots (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			hashed_token TEXT NOT NULL UNIQUE,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
		`DROP INDEX IF EXISTS idx_bots_hashed_token`,
		`CREATE TABLE IF NOT EXISTS api_keys (
			id TEXT PRIMARY KEY,
			vendor TEXT NOT NULL,
			ciphertext TEXT NOT NULL,
			label TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_api_keys_vendor ON api_keys(vendor)`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:min(len(stmt), 60)], err)
		}
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
