package store

import (
	"time"

	"github.com/google/uuid"
)

// BaseModel provides common fields for all database models.
type BaseModel struct {
	ID        uuid.UUID `json:"id" db:"id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// GenNewID generates a new UUID v7 (time-ordered).
func GenNewID() uuid.UUID {
	return uuid.Must(uuid.NewV7())
}

// StoreConfig configures the store layer.
type StoreConfig struct {
	// PostgresDSN is the Postgres connection string. If empty, standalone (SQLite) mode is used.
	PostgresDSN string

	// Mode: "standalone" (default) or "managed".
	Mode string

	// SQLitePath is the database file for standalone mode (default: ./data/keyproxy.db).
	SQLitePath string

	// BotCacheSize bounds the hashed-token lookup cache. 0 disables caching.
	BotCacheSize int

	// BotCacheTTL is how long a cached bot lookup stays valid.
	BotCacheTTL time.Duration
}

// IsManaged returns true if the system is in managed (Postgres) mode.
func (c StoreConfig) IsManaged() bool {
	return c.PostgresDSN != "" && c.Mode == "managed"
}

// Stores bundles the credential stores used by the gateway and the CLI.
type Stores struct {
	Bots BotStore
	Keys APIKeyStore

	closer func() error
}

// NewStores wraps the given stores; closer releases the shared database handle.
func NewStores(bots BotStore, keys APIKeyStore, closer func() error) *Stores {
	return &Stores{Bots: bots, Keys: keys, closer: closer}
}

// Close releases the underlying database connection.
func (s *Stores) Close() error {
	if s == nil || s.closer == nil {
		return nil
	}
	return s.closer()
}
