package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/phetrusrodrigues1997/predictionpot/internal/domain"
)

// releaseScript drops the lock key only when it still carries the holder's
// token, so a holder whose TTL already expired cannot release a lock that
// someone else has since acquired.
var releaseScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('DEL', KEYS[1])
end
return 0
`)

// LockManager is the Redis-backed settlement lock. A settlement run holds
// the lock for its (market, question, date) tuple for the duration of the
// pipeline; a second operator hitting the same tuple gets ErrLockHeld
// instead of a double elimination.
type LockManager struct {
	c *Client
}

// NewLockManager returns a LockManager sharing the given client's pool.
func NewLockManager(c *Client) *LockManager {
	return &LockManager{c: c}
}

// Acquire takes the lock named by key for at most ttl. On success the
// returned release func must be called; calling it more than once is safe.
// If another holder has the lock, Acquire returns domain.ErrLockHeld.
func (lm *LockManager) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	name := "lock:" + key
	token := uuid.NewString()

	ok, err := lm.c.rdb.SetNX(ctx, name, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, domain.ErrLockHeld
	}

	var once sync.Once
	release := func() {
		once.Do(func() {
			// Detach from the caller's context: the lock must come off
			// even when the settlement was cancelled mid-run.
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = releaseScript.Run(ctx, lm.c.rdb, []string{name}, token).Err()
		})
	}
	return release, nil
}

var _ domain.LockManager = (*LockManager)(nil)
