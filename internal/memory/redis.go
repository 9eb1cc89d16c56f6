// Package memory stores ordered per-session conversation history in Redis.
// The whole history lives as one JSON value under the session key; eviction
// is delegated to a TTL configured on the store, not implemented here.
package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Turn is one message in a session's history.
type Turn struct {
	Role    string `json:"role"`
	Message string `json:"message"`
}

// Store reads and appends session history.
//
// Append is a read-modify-write of the full history and is not atomic
// across concurrent requests on the same session: two simultaneous turns
// can race and one append can be lost (last write wins). Sessions are
// driven serially by a single user, so this is accepted rather than locked.
type Store struct {
	client *redis.Client
}

// New creates a Store from a Redis URL (redis://host:port/db). It does not
// dial; connections are established on first use.
func New(redisURL string) (*Store, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("memory: parse redis url: %w", err)
	}
	return &Store{client: redis.NewClient(opts)}, nil
}

// NewWithClient wraps an existing client. Used by tests.
func NewWithClient(client *redis.Client) *Store {
	return &Store{client: client}
}

// History returns the session's ordered turns, oldest first. An unknown
// session yields an empty history, not an error.
func (s *Store) History(ctx context.Context, sessionID string) ([]Turn, error) {
	data, err := s.client.Get(ctx, sessionID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("memory: get history: %w", err)
	}

	var turns []Turn
	if err := json.Unmarshal(data, &turns); err != nil {
		return nil, fmt.Errorf("memory: decode history: %w", err)
	}
	return turns, nil
}

// Append adds one turn to the end of the session's history.
func (s *Store) Append(ctx context.Context, sessionID, role, message string) error {
	turns, err := s.History(ctx, sessionID)
	if err != nil {
		return err
	}
	turns = append(turns, Turn{Role: role, Message: message})

	data, err := json.Marshal(turns)
	if err != nil {
		return fmt.Errorf("memory: encode history: %w", err)
	}
	if err := s.client.Set(ctx, sessionID, data, 0).Err(); err != nil {
		return fmt.Errorf("memory: set history: %w", err)
	}
	return nil
}

// Close releases the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}
