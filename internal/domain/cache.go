package domain

import (
	"context"
	"time"
)

// LockManager provides distributed locking.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// SignalBus provides pub/sub messaging between the engine and its consumers
// (websocket hub, notification dispatch).
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}

// RateLimiter limits how often a keyed action may occur within a window.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// ParticipantCache caches the live on-chain participant list per contract so
// repeated winner or eligibility queries within a short window do not hammer
// the RPC endpoint.
type ParticipantCache interface {
	Set(ctx context.Context, contract string, wallets []string, ttl time.Duration) error
	Get(ctx context.Context, contract string) ([]string, error)
	Invalidate(ctx context.Context, contract string) error
}
