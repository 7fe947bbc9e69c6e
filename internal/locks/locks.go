// Package locks provides the cluster-wide mutual exclusion used to
// serialize playlist writes across server processes. Locks are Redis
// leases acquired with SET NX; a playlist lock is retried until it is
// held, deliberately without a timeout, because a playlist write must
// eventually happen rather than silently skip.
package locks

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/skylark-radio/skylark/internal/redis"
)

// DefaultLease bounds how long a crashed holder can wedge a key.
const DefaultLease = 30 * time.Second

const retryInterval = 100 * time.Millisecond

// releaseScript deletes the key only if this guard still owns it, so
// an expired lease that another process has since re-acquired is
// never released out from under them.
var releaseScript = goredis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// Guard represents a held lock. Release is idempotent.
type Guard struct {
	key   string
	token string
	once  sync.Once
}

// Acquire blocks until the lock for key is held or ctx is cancelled.
func Acquire(ctx context.Context, key string, lease time.Duration) (*Guard, error) {
	if lease <= 0 {
		lease = DefaultLease
	}
	token := newToken()
	for {
		ok, err := redis.Rdb.SetNX(ctx, key, token, lease).Result()
		if err != nil {
			log.Error().Err(err).Str("key", key).Msg("lock acquire attempt failed")
		} else if ok {
			return &Guard{key: key, token: token}, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(retryInterval):
		}
	}
}

// TryAcquire attempts the lock once without blocking.
func TryAcquire(ctx context.Context, key string, lease time.Duration) (*Guard, bool, error) {
	if lease <= 0 {
		lease = DefaultLease
	}
	token := newToken()
	ok, err := redis.Rdb.SetNX(ctx, key, token, lease).Result()
	if err != nil || !ok {
		return nil, false, err
	}
	return &Guard{key: key, token: token}, true, nil
}

// Release gives the lock up. Safe to call more than once.
func (g *Guard) Release() {
	g.once.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := releaseScript.Run(ctx, redis.Rdb, []string{g.key}, g.token).Err(); err != nil {
			log.Error().Err(err).Str("key", g.key).Msg("lock release failed")
		}
	})
}

func newToken() string {
	return uuid.NewString()
}

// Manager satisfies the small Acquire interface the playlist layer
// consumes, binding every acquisition to one lease duration.
type Manager struct {
	Lease time.Duration
}

func (m Manager) Acquire(ctx context.Context, key string) (func(), error) {
	g, err := Acquire(ctx, key, m.Lease)
	if err != nil {
		return nil, err
	}
	return g.Release, nil
}

func (m Manager) TryAcquire(ctx context.Context, key string) (func(), bool, error) {
	g, ok, err := TryAcquire(ctx, key, m.Lease)
	if err != nil || !ok {
		return nil, false, err
	}
	return g.Release, true, nil
}
