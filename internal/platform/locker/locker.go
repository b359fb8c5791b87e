// Package locker provides short-lived exclusive locks used to keep two
// schedulers from generating the same payer batch at once.
package locker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

var (
	// ErrNotAcquired is returned by WithLock when another holder owns the key.
	ErrNotAcquired = errors.New("lock held by another owner")
	// ErrNotOwner is returned when releasing a lock whose token does not match.
	ErrNotOwner = errors.New("lock not owned by this client")
)

// Locker acquires and releases named locks. The token returned by TryLock
// must be presented to Unlock.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, acquired bool, err error)
	Unlock(ctx context.Context, key, token string) error
}

// WithLock runs fn while holding key. It returns ErrNotAcquired without
// calling fn when the lock is taken.
func WithLock(ctx context.Context, l Locker, key string, ttl time.Duration, fn func(ctx context.Context) error) error {
	token, ok, err := l.TryLock(ctx, key, ttl)
	if err != nil {
		return fmt.Errorf("acquire lock %s: %w", key, err)
	}
	if !ok {
		return fmt.Errorf("%s: %w", key, ErrNotAcquired)
	}
	defer func() {
		// Release on a fresh context so a cancelled run still frees the key.
		_ = l.Unlock(context.WithoutCancel(ctx), key, token)
	}()
	return fn(ctx)
}

// ---------------------------------------------------------------------------
// Redis implementation
// ---------------------------------------------------------------------------

// unlockScript deletes the key only when it still holds the caller's token.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

type RedisLocker struct {
	client *redis.Client
	prefix string
	logger zerolog.Logger
}

// NewRedisLocker returns a Locker backed by SET NX with expiry. Keys are
// namespaced with prefix.
func NewRedisLocker(client *redis.Client, prefix string, logger zerolog.Logger) *RedisLocker {
	return &RedisLocker{
		client: client,
		prefix: prefix,
		logger: logger.With().Str("component", "locker").Logger(),
	}
}

func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.prefix+key, token, ttl).Result()
	if err != nil {
		l.logger.Error().Err(err).Str("lock_key", key).Msg("try lock failed")
		return "", false, err
	}
	if !ok {
		l.logger.Info().Str("lock_key", key).Msg("lock not acquired")
		return "", false, nil
	}
	l.logger.Debug().Str("lock_key", key).Dur("ttl", ttl).Msg("lock acquired")
	return token, true, nil
}

func (l *RedisLocker) Unlock(ctx context.Context, key, token string) error {
	n, err := unlockScript.Run(ctx, l.client, []string{l.prefix + key}, token).Int()
	if err != nil {
		l.logger.Error().Err(err).Str("lock_key", key).Msg("unlock failed")
		return err
	}
	if n == 0 {
		l.logger.Warn().Str("lock_key", key).Msg("lock expired or owned by another client")
		return ErrNotOwner
	}
	return nil
}

// NewRedisClient parses a redis:// URL and pings the server.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// ---------------------------------------------------------------------------
// In-process implementation
// ---------------------------------------------------------------------------

type memLock struct {
	token   string
	expires time.Time
}

// MemoryLocker is a process-local Locker for tests and single-instance runs.
type MemoryLocker struct {
	mu    sync.Mutex
	locks map[string]memLock
	now   func() time.Time
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{locks: make(map[string]memLock), now: time.Now}
}

func (l *MemoryLocker) TryLock(_ context.Context, key string, ttl time.Duration) (string, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if cur, ok := l.locks[key]; ok && l.now().Before(cur.expires) {
		return "", false, nil
	}
	token := uuid.NewString()
	l.locks[key] = memLock{token: token, expires: l.now().Add(ttl)}
	return token, true, nil
}

func (l *MemoryLocker) Unlock(_ context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	cur, ok := l.locks[key]
	if !ok || cur.token != token {
		return ErrNotOwner
	}
	delete(l.locks, key)
	return nil
}
