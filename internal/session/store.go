package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Store persists sessions as JSON documents in Redis with a sliding TTL.
type Store struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewStore constructs a session store. TTL at or below zero disables expiry.
func NewStore(client *redis.Client, ttl time.Duration, prefix string) *Store {
	if prefix == "" {
		prefix = "session"
	}
	return &Store{client: client, ttl: ttl, prefix: prefix}
}

func (st *Store) key(id string) string { return st.prefix + ":" + id }

// Load fetches the session for id, or returns a fresh empty session when the
// id is unknown or empty.
func (st *Store) Load(ctx context.Context, id string) (*Session, error) {
	if id == "" {
		return newSession(uuid.NewString(), true), nil
	}
	data, err := st.client.Get(ctx, st.key(id)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return newSession(id, true), nil
		}
		return nil, fmt.Errorf("session load: %w", err)
	}
	values := map[string]json.RawMessage{}
	if err := json.Unmarshal(data, &values); err != nil {
		// A corrupt document starts the visitor over rather than failing.
		return newSession(id, true), nil
	}
	return &Session{ID: id, values: values}, nil
}

// Save persists the session document and refreshes its TTL.
func (st *Store) Save(ctx context.Context, s *Session) error {
	if s == nil {
		return nil
	}
	data, err := json.Marshal(s.values)
	if err != nil {
		return fmt.Errorf("session marshal: %w", err)
	}
	if err := st.client.Set(ctx, st.key(s.ID), data, st.ttl).Err(); err != nil {
		return fmt.Errorf("session save: %w", err)
	}
	s.dirty = false
	return nil
}

// Destroy removes the session document.
func (st *Store) Destroy(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	return st.client.Del(ctx, st.key(id)).Err()
}
