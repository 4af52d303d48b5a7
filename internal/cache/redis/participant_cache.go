package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/phetrusrodrigues1997/predictionpot/internal/domain"
)

// defaultParticipantTTL bounds how stale a cached participant list may get
// when the caller passes a zero TTL.
const defaultParticipantTTL = 2 * time.Minute

// ParticipantCache implements domain.ParticipantCache using Redis string
// values with JSON-serialized wallet lists.
//
// Key schema:
//
//	participants:{contract} - JSON array of wallet addresses
type ParticipantCache struct {
	rdb *redis.Client
}

// NewParticipantCache creates a ParticipantCache backed by the given Client.
func NewParticipantCache(c *Client) *ParticipantCache {
	return &ParticipantCache{rdb: c.rdb}
}

func participantKey(contract string) string {
	return "participants:" + contract
}

// Set stores the live participant list for a contract with the given TTL.
func (pc *ParticipantCache) Set(ctx context.Context, contract string, wallets []string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = defaultParticipantTTL
	}

	data, err := json.Marshal(wallets)
	if err != nil {
		return fmt.Errorf("redis: marshal participants for %s: %w", contract, err)
	}

	if err := pc.rdb.Set(ctx, participantKey(contract), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis: set participants for %s: %w", contract, err)
	}
	return nil
}

// Get retrieves the cached participant list for a contract. It returns
// domain.ErrNotFound when no cached list exists.
func (pc *ParticipantCache) Get(ctx context.Context, contract string) ([]string, error) {
	data, err := pc.rdb.Get(ctx, participantKey(contract)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("redis: get participants for %s: %w", contract, err)
	}

	var wallets []string
	if err := json.Unmarshal(data, &wallets); err != nil {
		return nil, fmt.Errorf("redis: unmarshal participants for %s: %w", contract, err)
	}
	return wallets, nil
}

// Invalidate drops the cached list, forcing the next read through to the
// chain. Called after re-entry payments are confirmed.
func (pc *ParticipantCache) Invalidate(ctx context.Context, contract string) error {
	if err := pc.rdb.Del(ctx, participantKey(contract)).Err(); err != nil {
		return fmt.Errorf("redis: invalidate participants for %s: %w", contract, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.ParticipantCache = (*ParticipantCache)(nil)
