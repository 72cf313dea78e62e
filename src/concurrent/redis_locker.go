package concurrent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// unlockScript deletes the key only while it still holds our token.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// renewScript extends the key's TTL (ARGV[2], milliseconds) while it still
// holds our token.
var renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// RedisLockerOptions tunes a RedisLocker.
type RedisLockerOptions struct {
	Prefix     string
	TTL        time.Duration
	RetryEvery time.Duration
	// RenewEvery is how often a held lock's TTL is extended. Defaults to TTL/3.
	RenewEvery time.Duration
	Logger     *zap.Logger
}

func (o RedisLockerOptions) withDefaults() RedisLockerOptions {
	if o.Prefix == "" {
		o.Prefix = "memory:lock:"
	}
	if o.TTL <= 0 {
		o.TTL = 2 * time.Minute
	}
	if o.RetryEvery <= 0 {
		o.RetryEvery = 50 * time.Millisecond
	}
	if o.RenewEvery <= 0 || o.RenewEvery >= o.TTL {
		o.RenewEvery = o.TTL / 3
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// RedisLocker is a Locker shared across processes through Redis SET NX.
// The TTL bounds how long a crashed holder can block others; a live holder
// keeps extending it until unlock.
type RedisLocker struct {
	client redis.UniversalClient
	opts   RedisLockerOptions
}

func NewRedisLocker(client redis.UniversalClient, opts RedisLockerOptions) *RedisLocker {
	return &RedisLocker{client: client, opts: opts.withDefaults()}
}

// NewRedisLockerFromURL parses a redis:// URL and pings the server.
func NewRedisLockerFromURL(ctx context.Context, url string, opts RedisLockerOptions) (*RedisLocker, error) {
	parsed, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(parsed)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewRedisLocker(client, opts), nil
}

func (r *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	redisKey := r.opts.Prefix + key
	token := uuid.NewString()

	ticker := time.NewTicker(r.opts.RetryEvery)
	defer ticker.Stop()
	for {
		ok, err := r.client.SetNX(ctx, redisKey, token, r.opts.TTL).Result()
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("acquire lock %s: %w", key, err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, errors.Join(ErrLockTimeout, ctx.Err())
		case <-ticker.C:
		}
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go r.renew(redisKey, token, stop, done)

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-done
			// The caller's context may already be done; release on a fresh one.
			relCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := unlockScript.Run(relCtx, r.client, []string{redisKey}, token).Err(); err != nil {
				r.opts.Logger.Warn("release lock failed", zap.String("key", key), zap.Error(err))
			}
		})
	}, nil
}

// renew extends the TTL of a held lock until stop is closed. It gives up once
// the key no longer carries token.
func (r *RedisLocker) renew(redisKey, token string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(r.opts.RenewEvery)
	defer ticker.Stop()
	ttl := r.opts.TTL.Milliseconds()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}
		ctx, cancel := context.WithTimeout(context.Background(), r.opts.TTL)
		n, err := renewScript.Run(ctx, r.client, []string{redisKey}, token, ttl).Int()
		cancel()
		switch {
		case err != nil:
			r.opts.Logger.Warn("renew lock failed", zap.String("key", redisKey), zap.Error(err))
		case n == 0:
			r.opts.Logger.Warn("lock lost before release", zap.String("key", redisKey))
			return
		}
	}
}

// Close closes the underlying client.
func (r *RedisLocker) Close() error {
	return r.client.Close()
}
