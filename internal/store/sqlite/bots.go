package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/nextlevelbuilder/keyproxy/internal/store"
)

// BotStore implements store.BotStore backed by SQLite.
type BotStore struct {
	db *sqlx.DB
}

func NewBotStore(db *sqlx.DB) *BotStore {
	return &BotStore{db: db}
}

type botRow struct {
	ID          string `db:"id"`
	Name        string `db:"name"`
	HashedToken string `db:"hashed_token"`
	CreatedAt   int64  `db:"created_at"`
	UpdatedAt   int64  `db:"updated_at"`
}

func (r botRow) toData() (*store.BotData, error) {
	id, err := uuid.Parse(r.ID)
	if err != nil {
		return nil, fmt.Errorf("bot row has invalid id %q: %w", r.ID, err)
	}
	return &store.BotData{
		BaseModel: store.BaseModel{
			ID:        id,
			CreatedAt: time.UnixMilli(r.CreatedAt).UTC(),
			UpdatedAt: time.UnixMilli(r.UpdatedAt).UTC(),
		},
		Name:        r.Name,
		HashedToken: r.HashedToken,
	}, nil
}

const botColumns = `id, name, hashed_token, created_at, updated_at`

func (s *BotStore) AddBot(ctx context.Context, b *store.BotData) error {
	if b.ID == uuid.Nil {
		b.ID = store.GenNewID()
	}
	now := time.Now().UTC()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	b.UpdatedAt = now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO bots (`+botColumns+`) VALUES (?, ?, ?, ?, ?)`,
		b.ID.String(), b.Name, b.HashedToken, b.CreatedAt.UnixMilli(), b.UpdatedAt.UnixMilli(),
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("add bot %s: %w", b.ID, store.ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("add bot: %w", err)
	}
	return nil
}

func (s *BotStore) FindBotByHashedToken(ctx context.Context, hash string) (*store.BotData, error) {
	return s.getOne(ctx, `SELECT `+botColumns+` FROM bots WHERE hashed_token = ?`, hash)
}

func (s *BotStore) GetBot(ctx context.Context, id uuid.UUID) (*store.BotData, error) {
	return s.getOne(ctx, `SELECT `+botColumns+` FROM bots WHERE id = ?`, id.String())
}

func (s *BotStore) getOne(ctx context.Context, query string, arg any) (*store.BotData, error) {
	var row botRow
	if err := s.db.GetContext(ctx, &row, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return row.toData()
}

func (s *BotStore) ListBots(ctx context.Context) ([]store.BotData, error) {
	var rows []botRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT `+botColumns+` FROM bots ORDER BY created_at, id`); err != nil {
		return nil, err
	}
	result := make([]store.BotData, 0, len(rows))
	for _, r := range rows {
		b, err := r.toData()
		if err != nil {
			return nil, err
		}
		result = append(result, *b)
	}
	return result, nil
}

func (s *BotStore) DeleteBot(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM bots WHERE id = ?`, id.String())
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}
