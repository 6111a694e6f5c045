package storage

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ltran/shopfulfill/internal/port"
)

const (
	lockKeyPrefix = "cartlock:"
	seqKeyPrefix  = "ordseq:"

	// Sequence keys outlive the day they count so late writers near midnight
	// never restart the counter, then expire.
	seqKeyTTL = 48 * time.Hour
)

// releaseLockScript deletes the lock only when it still holds the caller's
// token. A blind DEL could release a lock acquired by a later holder after
// this holder's TTL expired.
var releaseLockScript = redis.NewScript(`
local current = redis.call('GET', KEYS[1])
if current == ARGV[1] then
	return redis.call('DEL', KEYS[1])
end
return 0
`)

type RedisAdapter struct {
	client *redis.Client
}

var (
	_ port.LockRepository     = (*RedisAdapter)(nil)
	_ port.SequenceRepository = (*RedisAdapter)(nil)
)

func NewRedisAdapter(client *redis.Client) *RedisAdapter {
	return &RedisAdapter{client: client}
}

func (r *RedisAdapter) Acquire(ctx context.Context, key, token string, ttl time.Duration) (bool, error) {
	return r.client.SetNX(ctx, lockKeyPrefix+key, token, ttl).Result()
}

func (r *RedisAdapter) Release(ctx context.Context, key, token string) error {
	return releaseLockScript.Run(ctx, r.client, []string{lockKeyPrefix + key}, token).Err()
}

func (r *RedisAdapter) NextOrderSequence(ctx context.Context, day string) (int64, error) {
	key := seqKeyPrefix + day
	n, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if n == 1 {
		r.client.Expire(ctx, key, seqKeyTTL)
	}
	return n, nil
}
