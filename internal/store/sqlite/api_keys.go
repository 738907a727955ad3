package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/nextlevelbuilder/keyproxy/internal/store"
)

// APIKeyStore implements store.APIKeyStore backed by SQLite.
type APIKeyStore struct {
	db *sqlx.DB
}

func NewAPIKeyStore(db *sqlx.DB) *APIKeyStore {
	return &APIKeyStore{db: db}
}

type apiKeyRow struct {
	ID         string `db:"id"`
	Vendor     string `db:"vendor"`
	Ciphertext string `db:"ciphertext"`
	Label      string `db:"label"`
	CreatedAt  int64  `db:"created_at"`
}

const apiKeyColumns = `id, vendor, ciphertext, label, created_at`

func (s *APIKeyStore) AddKey(ctx context.Context, k *store.APIKeyData) error {
	if k.ID == uuid.Nil {
		k.ID = store.GenNewID()
	}
	if k.CreatedAt.IsZero() {
		k.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO api_keys (`+apiKeyColumns+`) VALUES (?, ?, ?, ?, ?)`,
		k.ID.String(), k.Vendor, k.Ciphertext, k.Label, k.CreatedAt.UnixMilli(),
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("add key %s: %w", k.ID, store.ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("add key: %w", err)
	}
	return nil
}

func (s *APIKeyStore) ListKeysForVendor(ctx context.Context, vendor string) ([]store.APIKeyData, error) {
	return s.list(ctx, `SELECT `+apiKeyColumns+` FROM api_keys WHERE vendor = ? ORDER BY created_at, id`, vendor)
}

func (s *APIKeyStore) ListKeys(ctx context.Context) ([]store.APIKeyData, error) {
	return s.list(ctx, `SELECT `+apiKeyColumns+` FROM api_keys ORDER BY vendor, created_at, id`)
}

func (s *APIKeyStore) list(ctx context.Context, query string, args ...any) ([]store.APIKeyData, error) {
	var rows []apiKeyRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	result := make([]store.APIKeyData, 0, len(rows))
	for _, r := range rows {
		id, err := uuid.Parse(r.ID)
		if err != nil {
			return nil, fmt.Errorf("api key row has invalid id %q: %w", r.ID, err)
		}
		result = append(result, store.APIKeyData{
			ID:         id,
			Vendor:     r.Vendor,
			Ciphertext: r.Ciphertext,
			Label:      r.Label,
			CreatedAt:  time.UnixMilli(r.CreatedAt).UTC(),
		})
	}
	return result, nil
}

func (s *APIKeyStore) DeleteKey(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM api_keys WHERE id = ?`, id.String())
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}
