package pg

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/keyproxy/internal/store"
)

// PGAPIKeyStore implements store.APIKeyStore backed by Postgres.
// Values are stored as ciphertext; decryption happens only in the keyring.
type PGAPIKeyStore struct {
	db *sql.DB
}

func NewPGAPIKeyStore(db *sql.DB) *PGAPIKeyStore {
	return &PGAPIKeyStore{db: db}
}

const apiKeyColumns = `id, vendor, ciphertext, label, created_at`

func (s *PGAPIKeyStore) AddKey(ctx context.Context, k *store.APIKeyData) error {
	if k.ID == uuid.Nil {
		k.ID = store.GenNewID()
	}
	if k.CreatedAt.IsZero() {
		k.CreatedAt = nowUTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO api_keys (`+apiKeyColumns+`) VALUES ($1, $2, $3, $4, $5)`,
		k.ID, k.Vendor, k.Ciphertext, k.Label, k.CreatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("add key %s: %w", k.ID, store.ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("add key: %w", err)
	}
	return nil
}

func (s *PGAPIKeyStore) ListKeysForVendor(ctx context.Context, vendor string) ([]store.APIKeyData, error) {
	return s.list(ctx, `SELECT `+apiKeyColumns+` FROM api_keys WHERE vendor = $1 ORDER BY created_at, id`, vendor)
}

func (s *PGAPIKeyStore) ListKeys(ctx context.Context) ([]store.APIKeyData, error) {
	return s.list(ctx, `SELECT `+apiKeyColumns+` FROM api_keys ORDER BY vendor, created_at, id`)
}

func (s *PGAPIKeyStore) list(ctx context.Context, query string, args ...any) ([]store.APIKeyData, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []store.APIKeyData{}
	for rows.Next() {
		var k store.APIKeyData
		if err := rows.Scan(&k.ID, &k.Vendor, &k.Ciphertext, &k.Label, &k.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, k)
	}
	return result, rows.Err()
}

func (s *PGAPIKeyStore) DeleteKey(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM api_keys WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}
