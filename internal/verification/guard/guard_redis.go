package guard

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	id "medverify/pkg/domain"
)

const keyPrefix = "medverify:verification:inflight:"

// releaseScript deletes the key only if it still holds our token, so an
// expired hold taken over by another attempt is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisGuard shares holds across processes with SET NX and a TTL.
type RedisGuard struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisGuard(client *redis.Client, ttl time.Duration) *RedisGuard {
	return &RedisGuard{client: client, ttl: ttl}
}

func (g *RedisGuard) Acquire(ctx context.Context, entryID id.LogEntryID) (Release, error) {
	key := keyPrefix + entryID.String()
	token := uuid.NewString()

	ok, err := g.client.SetNX(ctx, key, token, g.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire verification guard: %w", err)
	}
	if !ok {
		return nil, ErrInFlight
	}
	return func(ctx context.Context) error {
		if err := releaseScript.Run(ctx, g.client, []string{key}, token).Err(); err != nil && err != redis.Nil {
			return fmt.Errorf("release verification guard: %w", err)
		}
		return nil
	}, nil
}
