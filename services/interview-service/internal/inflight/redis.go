package inflight

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only while it still holds our token, so an expired
// lock re-acquired by another replica is never released by us.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis shares the guard across replicas with SET NX PX. The ttl bounds how long a
// crashed holder can block commits for its submission.
type Redis struct {
	rdb    redis.UniversalClient
	prefix string
	ttl    time.Duration
}

func NewRedis(rdb redis.UniversalClient, prefix string, ttl time.Duration) *Redis {
	if prefix == "" {
		prefix = "inflight:"
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Redis{rdb: rdb, prefix: prefix, ttl: ttl}
}

func (g *Redis) Acquire(ctx context.Context, key string) (Release, error) {
	redisKey := g.prefix + key
	token := uuid.NewString()
	ok, err := g.rdb.SetNX(ctx, redisKey, token, g.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire %s: %w", redisKey, err)
	}
	if !ok {
		return nil, ErrInFlight
	}

	var once sync.Once
	return func(ctx context.Context) {
		once.Do(func() {
			_ = releaseScript.Run(context.WithoutCancel(ctx), g.rdb, []string{redisKey}, token).Err()
		})
	}, nil
}
