package inventory

import (
	"context"
	"errors"
	"time"

	"github.com/bsm/redislock"

	pkgerrors "github.com/angelmondragon/readcycle-backend/pkg/errors"
	"github.com/angelmondragon/readcycle-backend/pkg/logger"
)

const lockRetryBackoff = 50 * time.Millisecond

// RedisLocker holds per-key locks in redis so several API processes sharing
// one database still take turns on a book.
type RedisLocker struct {
	client *redislock.Client
	keyFn  func(string) string
	ttl    time.Duration
	wait   time.Duration
	logg   *logger.Logger
}

// NewRedisLocker builds a locker. keyFn namespaces the raw key; ttl bounds how
// long a crashed holder can block others; wait bounds how long Acquire retries.
func NewRedisLocker(rdb redislock.RedisClient, keyFn func(string) string, ttl, wait time.Duration, logg *logger.Logger) *RedisLocker {
	if keyFn == nil {
		keyFn = func(key string) string { return key }
	}
	return &RedisLocker{
		client: redislock.New(rdb),
		keyFn:  keyFn,
		ttl:    ttl,
		wait:   wait,
		logg:   logg,
	}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string) (func(), error) {
	obtainCtx, cancel := context.WithTimeout(ctx, l.wait)
	defer cancel()

	lock, err := l.client.Obtain(obtainCtx, l.keyFn(key), l.ttl, &redislock.Options{
		RetryStrategy: redislock.LinearBackoff(lockRetryBackoff),
	})
	if err != nil {
		if errors.Is(err, redislock.ErrNotObtained) || errors.Is(err, context.DeadlineExceeded) {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "book is busy, try again")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "obtain book lock")
	}

	return func() {
		releaseLock(ctx, l.logg, l.keyFn(key), l.ttl, lock.Release)
	}, nil
}

// releaseLock frees the key on a fresh context so a cancelled request still
// releases it. A failed release leaves the key held until its TTL runs out.
func releaseLock(ctx context.Context, logg *logger.Logger, key string, ttl time.Duration, release func(context.Context) error) {
	releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
	defer cancel()
	err := release(releaseCtx)
	if err == nil || logg == nil {
		return
	}
	logCtx := logg.WithFields(ctx, map[string]any{"lock_key": key, "lock_ttl": ttl.String()})
	if errors.Is(err, redislock.ErrLockNotHeld) {
		logg.Warn(logCtx, "book lock expired before release")
		return
	}
	logg.Error(logCtx, "release book lock", err)
}
