package messages

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
)

type DB interface {
	InsertMessage(ctx context.Context, m Message) (Message, error)
	GetMessage(ctx context.Context, id string) (*Message, error)
	GetMessages(ctx context.Context) ([]Message, error)
}

type Store struct {
	db DB
}

type Configuration struct {
	DB DB
}

func NewStore(cfg Configuration) *Store {
	return &Store{
		db: cfg.DB,
	}
}

// Create persists m, assigning an ID and receive time when they are unset.
// The returned message carries whatever the backend filled in.
func (s *Store) Create(ctx context.Context, m Message) (Message, error) {
	if m.ID == "" {
		m.ID = GenerateID()
	}
	if m.ReceivedAt.IsZero() {
		m.ReceivedAt = time.Now()
	}

	return s.db.InsertMessage(ctx, m)
}

func (s *Store) Get(ctx context.Context, id string) (*Message, error) {
	return s.db.GetMessage(ctx, id)
}

// List returns all messages, oldest first.
func (s *Store) List(ctx context.Context) ([]Message, error) {
	ms, err := s.db.GetMessages(ctx)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(ms, func(i, j int) bool {
		return ms[i].ReceivedAt.Before(ms[j].ReceivedAt)
	})
	return ms, nil
}

func GenerateID() string {
	return uuid.New().String()
}
