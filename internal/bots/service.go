// Package bots provisions and removes gateway tenants. It is the only place
// that touches both the credential store and the per-bot secret store, so
// deleting a bot always removes its secrets too.
package bots

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/keyproxy/internal/crypto"
	"github.com/nextlevelbuilder/keyproxy/internal/secrets"
	"github.com/nextlevelbuilder/keyproxy/internal/store"
)

// Service manages bot lifecycle.
type Service struct {
	bots    store.BotStore
	secrets *secrets.Store
}

func NewService(bots store.BotStore, sec *secrets.Store) *Service {
	return &Service{bots: bots, secrets: sec}
}

// Provision creates a bot and its secrets directory. The returned token is
// the only copy of the plaintext; it cannot be recovered later.
func (s *Service) Provision(ctx context.Context, name string) (*store.BotData, string, error) {
	if err := store.ValidateName("bot name", name); err != nil {
		return nil, "", err
	}
	token, err := crypto.GenerateToken()
	if err != nil {
		return nil, "", fmt.Errorf("generate token: %w", err)
	}

	b := &store.BotData{
		BaseModel:   store.BaseModel{ID: store.GenNewID()},
		Name:        name,
		HashedToken: crypto.HashToken(token),
	}
	if err := s.bots.AddBot(ctx, b); err != nil {
		return nil, "", err
	}
	if _, err := s.secrets.CreateDir(b.ID.String()); err != nil {
		if derr := s.bots.DeleteBot(ctx, b.ID); derr != nil {
			slog.Error("bots.provision_rollback_failed", "bot", b.ID, "error", derr)
		}
		return nil, "", err
	}

	slog.Info("bots.provisioned", "bot", b.ID, "name", name)
	return b, token, nil
}

// Delete removes the bot row and its secrets directory. The directory is
// removed even when the row is already gone; ErrNotFound is still reported.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := secrets.ValidateBotID(id); err != nil {
		return err
	}
	botID, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("%w: %v", secrets.ErrInvalidBotID, err)
	}

	dbErr := s.bots.DeleteBot(ctx, botID)
	if dbErr != nil && !errors.Is(dbErr, store.ErrNotFound) {
		return fmt.Errorf("delete bot: %w", dbErr)
	}
	if err := s.secrets.Delete(botID.String()); err != nil {
		return err
	}

	slog.Info("bots.deleted", "bot", botID)
	return dbErr
}

// List returns all bots.
func (s *Service) List(ctx context.Context) ([]store.BotData, error) {
	return s.bots.ListBots(ctx)
}
