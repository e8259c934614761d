package goSession

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	errOAuthStateNotFound = errors.New("oauth state not found")
	errOAuthStateExpired  = errors.New("oauth state expired")
	errOAuthStateBackend  = errors.New("oauth state backend unavailable")
)

// oauthState is the pending authorization request keyed by its state value.
type oauthState struct {
	Provider    string `json:"p"`
	Verifier    string `json:"v"`
	CallbackURL string `json:"c,omitempty"`
	ExpiresAt   int64  `json:"e"`
}

type oauthStateStore struct {
	redis  redis.UniversalClient
	prefix string
}

func newOAuthStateStore(redisClient redis.UniversalClient, prefix string) *oauthStateStore {
	return &oauthStateStore{redis: redisClient, prefix: prefix}
}

func (s *oauthStateStore) key(state string) string {
	return s.prefix + ":" + state
}

func (s *oauthStateStore) Save(ctx context.Context, state string, record *oauthState, ttl time.Duration) error {
	encoded, err := json.Marshal(record)
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, s.key(state), encoded, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", errOAuthStateBackend, err)
	}
	return nil
}

// Consume returns the record for state and deletes it in the same round
// trip, so a state can be used at most once.
func (s *oauthStateStore) Consume(ctx context.Context, state string) (*oauthState, error) {
	data, err := s.redis.GetDel(ctx, s.key(state)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, errOAuthStateNotFound
		}
		return nil, fmt.Errorf("%w: %v", errOAuthStateBackend, err)
	}

	var record oauthState
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, errOAuthStateNotFound
	}
	if time.Now().Unix() > record.ExpiresAt {
		return nil, errOAuthStateExpired
	}
	return &record, nil
}
