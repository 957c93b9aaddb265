package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/OliverSchlueter/smteepee/internal/messages"
	backend "github.com/redis/go-redis/v9"
)

const defaultPrefix = "smteepee:message:"

// DB keeps every message as a JSON value and indexes the IDs in a sorted
// set scored by receive time.
type DB struct {
	client *backend.Client
	prefix string
}

type Option func(*DB)

// WithPrefix sets the key prefix for messages.
func WithPrefix(prefix string) Option {
	return func(db *DB) {
		db.prefix = prefix
	}
}

func NewDB(address, password string, database int, opts ...Option) *DB {
	return NewDBFromClient(backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       database,
	}), opts...)
}

func NewDBFromClient(client *backend.Client, opts ...Option) *DB {
	db := &DB{
		client: client,
		prefix: defaultPrefix,
	}

	for _, opt := range opts {
		opt(db)
	}

	return db
}

// Ping checks that the server is reachable.
func (db *DB) Ping(ctx context.Context) error {
	if err := db.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

func (db *DB) Close() error {
	return db.client.Close()
}

func (db *DB) key(id string) string {
	return db.prefix + id
}

func (db *DB) indexKey() string {
	return db.prefix + "index"
}

func (db *DB) InsertMessage(ctx context.Context, m messages.Message) (messages.Message, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return messages.Message{}, fmt.Errorf("failed to marshal message: %w", err)
	}

	created, err := db.client.SetNX(ctx, db.key(m.ID), data, 0).Result()
	if err != nil {
		return messages.Message{}, fmt.Errorf("failed to save message to redis: %w", err)
	}
	if !created {
		return messages.Message{}, messages.ErrMessageAlreadyExists
	}

	err = db.client.ZAdd(ctx, db.indexKey(), backend.Z{
		Score:  float64(m.ReceivedAt.UnixMilli()),
		Member: m.ID,
	}).Err()
	if err != nil {
		// an unindexed value would never be listed
		if derr := db.client.Del(ctx, db.key(m.ID)).Err(); derr != nil {
			err = errors.Join(err, derr)
		}
		return messages.Message{}, fmt.Errorf("failed to index message in redis: %w", err)
	}

	return m, nil
}

func (db *DB) GetMessage(ctx context.Context, id string) (*messages.Message, error) {
	val, err := db.client.Get(ctx, db.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return nil, messages.ErrMessageNotFound
		}
		return nil, fmt.Errorf("failed to load message from redis: %w", err)
	}

	var m messages.Message
	if err := json.Unmarshal(val, &m); err != nil {
		return nil, fmt.Errorf("failed to unmarshal message: %w", err)
	}
	return &m, nil
}

func (db *DB) GetMessages(ctx context.Context) ([]messages.Message, error) {
	ids, err := db.client.ZRange(ctx, db.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list messages from redis: %w", err)
	}

	out := make([]messages.Message, 0, len(ids))
	for _, id := range ids {
		m, err := db.GetMessage(ctx, id)
		if err != nil {
			if errors.Is(err, messages.ErrMessageNotFound) {
				// index entry outlived its value
				continue
			}
			return nil, err
		}
		out = append(out, *m)
	}
	return out, nil
}
