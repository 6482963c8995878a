package redisx

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

func New(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
}

// BlobStore keeps session carts as plain string values with a sliding TTL.
type BlobStore struct {
	Client *redis.Client
	TTL    time.Duration
}

func (s *BlobStore) Load(ctx context.Context, key string) ([]byte, error) {
	b, err := s.Client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	return b, err
}

func (s *BlobStore) Save(ctx context.Context, key string, blob []byte) error {
	return s.Client.Set(ctx, key, blob, s.TTL).Err()
}

func (s *BlobStore) Delete(ctx context.Context, key string) error {
	return s.Client.Del(ctx, key).Err()
}

// unlockScript deletes the key only if it still holds our token.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

type Locker struct{ Client *redis.Client }

func (l *Locker) TryLock(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, bool, error) {
	token := uuid.NewString()
	ok, err := l.Client.SetNX(ctx, key, token, ttl).Result()
	if err != nil || !ok {
		return nil, false, err
	}
	return func(ctx context.Context) error {
		return unlockScript.Run(ctx, l.Client, []string{key}, token).Err()
	}, true, nil
}

// CountCache holds the cart badge count per owner.
type CountCache struct{ Client *redis.Client }

func (c *CountCache) Set(ctx context.Context, owner string, n int) error {
	return c.Client.Set(ctx, fmt.Sprintf(KeyCartCount, owner), n, TTLCartCount).Err()
}

// Get reports ok=false on a cache miss.
func (c *CountCache) Get(ctx context.Context, owner string) (n int, ok bool, err error) {
	n, err = c.Client.Get(ctx, fmt.Sprintf(KeyCartCount, owner)).Int()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return n, true, nil
}
