// Package redislock provides distributed locking using Redis.
//
// The implementation is the single-instance SET NX PX pattern from
// https://redis.io/docs/latest/develop/use/patterns/distributed-locks/ and
// carries that pattern's caveats: under rare conditions two nodes can hold the
// lock at once. The only caller, the queue monitor, tolerates that: promotion
// and reclaim sweeps are atomic per job, so a double sweep does duplicate work
// but never corrupts the queue. Schema migrations coordinate separately
// through golang-migrate's Postgres advisory lock.
//
// Do NOT use this for locking where duplicate execution would corrupt data.
package redislock

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/hookfreight/hookfreight/internal/redis"
)

type Lock interface {
	AttemptLock(ctx context.Context) (bool, error)
	Unlock(ctx context.Context) (bool, error)
}

type redisLock struct {
	client redis.Cmdable
	key    string
	value  string
	ttl    time.Duration
}

type Option func(*redisLock)

func WithKey(key string) Option {
	return func(l *redisLock) {
		l.key = key
	}
}

func WithTTL(ttl time.Duration) Option {
	return func(l *redisLock) {
		l.ttl = ttl
	}
}

func New(client redis.Cmdable, opts ...Option) Lock {
	lock := &redisLock{
		client: client,
		key:    "hookfreight:lock",
		value:  generateRandomValue(),
		ttl:    10 * time.Second,
	}

	for _, opt := range opts {
		opt(lock)
	}

	return lock
}

// AttemptLock acquires the lock with SET NX PX. It returns false when another
// process holds the lock.
func (l *redisLock) AttemptLock(ctx context.Context) (bool, error) {
	result := l.client.SetNX(ctx, l.key, l.value, l.ttl)
	if result.Err() != nil {
		return false, result.Err()
	}
	return result.Val(), nil
}

// Unlock releases the lock only if this instance still owns it, so an expired
// lock reacquired by another process is left alone.
func (l *redisLock) Unlock(ctx context.Context) (bool, error) {
	script := `
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("del", KEYS[1])
		else
			return 0
		end
	`
	result := l.client.Eval(ctx, script, []string{l.key}, l.value)
	if result.Err() != nil {
		return false, result.Err()
	}

	val, err := result.Int()
	if err != nil {
		return false, err
	}

	return val == 1, nil
}

// generateRandomValue returns a per-instance lock value so Unlock can tell its
// own lock apart from one acquired by another process.
func generateRandomValue() string {
	b := make([]byte, 20)
	if _, err := rand.Read(b); err == nil {
		return hex.EncodeToString(b)
	}

	if id, err := uuid.NewRandom(); err == nil {
		return id.String()
	}

	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "unknown"
	}
	return fmt.Sprintf("%d-%s-%d", time.Now().UnixNano(), hostname, os.Getpid())
}
