package lock

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker holds keys with SET NX PX so that several API instances share one lock space.
type RedisLocker struct {
	client *redis.Client
	prefix string
	retry  time.Duration
}

func NewRedis(client *redis.Client, prefix string) *RedisLocker {
	return &RedisLocker{client: client, prefix: prefix, retry: 50 * time.Millisecond}
}

func (l *RedisLocker) Acquire(ctx context.Context, keys []string, ttl time.Duration) (func(), error) {
	keys = normalizeKeys(keys)
	token := uuid.NewString()
	held := make([]string, 0, len(keys))

	releaseAll := func() {
		relCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		for _, k := range held {
			_ = releaseScript.Run(relCtx, l.client, []string{k}, token).Err()
		}
		held = held[:0]
	}

	for _, key := range keys {
		full := l.prefix + key
		for {
			ok, err := l.client.SetNX(ctx, full, token, ttl).Result()
			if err != nil {
				releaseAll()
				if ctx.Err() != nil {
					return nil, ErrNotAcquired
				}
				return nil, err
			}
			if ok {
				held = append(held, full)
				break
			}
			select {
			case <-ctx.Done():
				releaseAll()
				return nil, ErrNotAcquired
			case <-time.After(l.retry):
			}
		}
	}

	var once sync.Once
	return func() { once.Do(releaseAll) }, nil
}
