package fake

import (
	"context"
	"sync"

	"github.com/OliverSchlueter/smteepee/internal/messages"
)

type DB struct {
	Messages []messages.Message
	mu       sync.Mutex
}

func NewDB() *DB {
	return &DB{
		Messages: []messages.Message{},
		mu:       sync.Mutex{},
	}
}

func (db *DB) InsertMessage(ctx context.Context, m messages.Message) (messages.Message, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, existing := range db.Messages {
		if existing.ID == m.ID {
			return messages.Message{}, messages.ErrMessageAlreadyExists
		}
	}

	db.Messages = append(db.Messages, m)
	return m, nil
}

func (db *DB) GetMessage(ctx context.Context, id string) (*messages.Message, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, m := range db.Messages {
		if m.ID == id {
			return &m, nil
		}
	}
	return nil, messages.ErrMessageNotFound
}

func (db *DB) GetMessages(ctx context.Context) ([]messages.Message, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	out := make([]messages.Message, len(db.Messages))
	copy(out, db.Messages)
	return out, nil
}
