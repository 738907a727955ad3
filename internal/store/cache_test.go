package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

type countingBotStore struct {
	bots    map[string]BotData
	lookups int
}

func (s *countingBotStore) AddBot(_ context.Context, b *BotData) error {
	s.bots[b.HashedToken] = *b
	return nil
}

func (s *countingBotStore) FindBotByHashedToken(_ context.Context, hash string) (*BotData, error) {
	s.lookups++
	b, ok := s.bots[hash]
	if !ok {
		return nil, ErrNotFound
	}
	return &b, nil
}

func (s *countingBotStore) GetBot(_ context.Context, id uuid.UUID) (*BotData, error) {
	for _, b := range s.bots {
		if b.ID == id {
			return &b, nil
		}
	}
	return nil, ErrNotFound
}

func (s *countingBotStore) ListBots(context.Context) ([]BotData, error) { return nil, nil }

func (s *countingBotStore) DeleteBot(_ context.Context, id uuid.UUID) error {
	for h, b := range s.bots {
		if b.ID == id {
			delete(s.bots, h)
			return nil
		}
	}
	return ErrNotFound
}

func TestCachedBotStoreCachesHits(t *testing.T) {
	inner := &countingBotStore{bots: map[string]BotData{}}
	id := GenNewID()
	inner.AddBot(context.Background(), &BotData{BaseModel: BaseModel{ID: id}, Name: "b1", HashedToken: "h1"})

	s := NewCachedBotStore(inner, 16, time.Minute)
	for i := 0; i < 3; i++ {
		b, err := s.FindBotByHashedToken(context.Background(), "h1")
		if err != nil {
			t.Fatalf("lookup %d: %v", i, err)
		}
		if b.ID != id {
			t.Fatalf("unexpected bot %v", b.ID)
		}
	}
	if inner.lookups != 1 {
		t.Errorf("expected 1 inner lookup, got %d", inner.lookups)
	}
}

func TestCachedBotStoreDoesNotCacheMisses(t *testing.T) {
	inner := &countingBotStore{bots: map[string]BotData{}}
	s := NewCachedBotStore(inner, 16, time.Minute)

	if _, err := s.FindBotByHashedToken(context.Background(), "h1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	inner.AddBot(context.Background(), &BotData{BaseModel: BaseModel{ID: GenNewID()}, HashedToken: "h1"})
	if _, err := s.FindBotByHashedToken(context.Background(), "h1"); err != nil {
		t.Fatalf("bot added after a miss should be found: %v", err)
	}
}

func TestCachedBotStoreDeletePurges(t *testing.T) {
	inner := &countingBotStore{bots: map[string]BotData{}}
	id := GenNewID()
	inner.AddBot(context.Background(), &BotData{BaseModel: BaseModel{ID: id}, HashedToken: "h1"})
	s := NewCachedBotStore(inner, 16, time.Minute)

	if _, err := s.FindBotByHashedToken(context.Background(), "h1"); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteBot(context.Background(), id); err != nil {
		t.Fatal(err)
	}
	if _, err := s.FindBotByHashedToken(context.Background(), "h1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("deleted bot must not authenticate from cache, got %v", err)
	}
}

func TestNewCachedBotStoreDisabled(t *testing.T) {
	inner := &countingBotStore{bots: map[string]BotData{}}
	if s := NewCachedBotStore(inner, 0, time.Minute); s != BotStore(inner) {
		t.Error("size 0 should return the inner store")
	}
}
