// Package pg implements the credential stores on Postgres (managed mode).
package pg

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/nextlevelbuilder/keyproxy/internal/store"
)

const (
	maxOpenConns    = 25
	maxIdleConns    = 10
	connMaxLifetime = 30 * time.Minute
	pingTimeout     = 10 * time.Second
)

// OpenDB opens a pgx-backed database/sql pool and verifies it with a ping.
func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(connMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	slog.Info("store.postgres_connected", "max_open_conns", maxOpenConns)
	return db, nil
}

// NewStores opens Postgres and returns the bot and key stores sharing the
// pool. The schema must already be migrated (keyproxy migrate up).
func NewStores(cfg store.StoreConfig) (*store.Stores, error) {
	db, err := OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}
	bots := store.NewCachedBotStore(NewPGBotStore(db), cfg.BotCacheSize, cfg.BotCacheTTL)
	return store.NewStores(bots, NewPGAPIKeyStore(db), db.Close), nil
}
