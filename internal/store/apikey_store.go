package store

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// APIKeyData is one encrypted upstream vendor key. Keys are shared by all
// bots; Ciphertext is only meaningful under the process master key.
type APIKeyData struct {
	ID         uuid.UUID `json:"id" db:"id"`
	Vendor     string    `json:"vendor" db:"vendor"`
	Ciphertext string    `json:"-" db:"ciphertext"`
	Label      string    `json:"label,omitempty" db:"label"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// APIKeyStore manages the vendor key pool.
type APIKeyStore interface {
	AddKey(ctx context.Context, k *APIKeyData) error
	// ListKeysForVendor returns the vendor's keys in a stable order
	// (created_at, then id) so rotation indices are meaningful.
	ListKeysForVendor(ctx context.Context, vendor string) ([]APIKeyData, error)
	ListKeys(ctx context.Context) ([]APIKeyData, error)
	DeleteKey(ctx context.Context, id uuid.UUID) error
}
