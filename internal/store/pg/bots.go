package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/keyproxy/internal/store"
)

// PGBotStore implements store.BotStore backed by Postgres.
type PGBotStore struct {
	db *sql.DB
}

func NewPGBotStore(db *sql.DB) *PGBotStore {
	return &PGBotStore{db: db}
}

const botColumns = `id, name, hashed_token, created_at, updated_at`

func (s *PGBotStore) AddBot(ctx context.Context, b *store.BotData) error {
	if b.ID == uuid.Nil {
		b.ID = store.GenNewID()
	}
	now := nowUTC()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	b.UpdatedAt = now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO bots (`+botColumns+`) VALUES ($1, $2, $3, $4, $5)`,
		b.ID, b.Name, b.HashedToken, b.CreatedAt, b.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("add bot %s: %w", b.ID, store.ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("add bot: %w", err)
	}
	return nil
}

func (s *PGBotStore) FindBotByHashedToken(ctx context.Context, hash string) (*store.BotData, error) {
	return s.scanOne(s.db.QueryRowContext(ctx,
		`SELECT `+botColumns+` FROM bots WHERE hashed_token = $1`, hash))
}

func (s *PGBotStore) GetBot(ctx context.Context, id uuid.UUID) (*store.BotData, error) {
	return s.scanOne(s.db.QueryRowContext(ctx,
		`SELECT `+botColumns+` FROM bots WHERE id = $1`, id))
}

func (s *PGBotStore) scanOne(row *sql.Row) (*store.BotData, error) {
	var b store.BotData
	err := row.Scan(&b.ID, &b.Name, &b.HashedToken, &b.CreatedAt, &b.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (s *PGBotStore) ListBots(ctx context.Context) ([]store.BotData, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+botColumns+` FROM bots ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []store.BotData
	for rows.Next() {
		var b store.BotData
		if err := rows.Scan(&b.ID, &b.Name, &b.HashedToken, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, b)
	}
	if result == nil {
		return []store.BotData{}, rows.Err()
	}
	return result, rows.Err()
}

func (s *PGBotStore) DeleteBot(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM bots WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}
