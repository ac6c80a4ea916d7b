package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/crficbm-ui/nightcrawler-ds-pipeline-sub000/core/port/out"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLockHeld is returned when another process holds the lock past the wait budget.
var ErrLockHeld = errors.New("lock held by another process")

var releaseScript = redis.NewScript(`
	if redis.call('GET', KEYS[1]) == ARGV[1] then
		return redis.call('DEL', KEYS[1])
	end
	return 0
`)

// RedisSaveLock serializes registry saves across processes with SET NX and a
// token-checked release, so a holder whose lock expired cannot free someone else's.
type RedisSaveLock struct {
	client *redis.Client
	wait   time.Duration
	poll   time.Duration
}

var _ out.SaveLocker = (*RedisSaveLock)(nil)

// NewRedisSaveLock waits up to wait for a held lock to be released.
func NewRedisSaveLock(client *redis.Client, wait time.Duration) *RedisSaveLock {
	return &RedisSaveLock{client: client, wait: wait, poll: 100 * time.Millisecond}
}

func (l *RedisSaveLock) Lock(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error) {
	if ttl <= 0 {
		ttl = time.Minute
	}
	key = "lock:" + key
	token := uuid.NewString()
	deadline := time.Now().Add(l.wait)

	for {
		ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			break
		}
		if time.Now().After(deadline) {
			return nil, ErrLockHeld
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.poll):
		}
	}

	return func(ctx context.Context) error {
		return releaseScript.Run(ctx, l.client, []string{key}, token).Err()
	}, nil
}
