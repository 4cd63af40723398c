package liveness

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Store keeps last-seen timestamps of nodes in redis for fast liveness
// checks. The database keeps the durable copy; this one expires, so a
// missing key means "not seen within the TTL".
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

// NewStore returns redis-backed liveness store.
func NewStore(client *redis.Client, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Store{client: client, ttl: ttl}
}

func (s *Store) key(nodeID uuid.UUID) string {
	return fmt.Sprintf("node:lastseen:%s", nodeID)
}

// Touch records that the node reported at the given time.
func (s *Store) Touch(ctx context.Context, nodeID uuid.UUID, at time.Time) error {
	return s.client.Set(ctx, s.key(nodeID), at.UTC().Format(time.RFC3339Nano), s.ttl).Err()
}

// LastSeen returns the recorded timestamp, or nil when the node has not
// reported within the TTL.
func (s *Store) LastSeen(ctx context.Context, nodeID uuid.UUID) (*time.Time, error) {
	result, err := s.client.Get(ctx, s.key(nodeID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	t, err := time.Parse(time.RFC3339Nano, result)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
