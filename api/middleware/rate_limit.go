package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/angelmondragon/readcycle-backend/api/responses"
	pkgerrors "github.com/angelmondragon/readcycle-backend/pkg/errors"
	"github.com/angelmondragon/readcycle-backend/pkg/logger"
)

// Limiter decides whether one more request for key fits its budget.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// LocalLimiter keeps one token bucket per key in process memory.
type LocalLimiter struct {
	mu      sync.Mutex
	every   rate.Limit
	burst   int
	buckets map[string]*rate.Limiter
}

// NewLocalLimiter allows limit requests per window with a burst of limit.
func NewLocalLimiter(limit int, window time.Duration) *LocalLimiter {
	if limit <= 0 || window <= 0 {
		return nil
	}
	return &LocalLimiter{
		every:   rate.Every(window / time.Duration(limit)),
		burst:   limit,
		buckets: make(map[string]*rate.Limiter),
	}
}

func (l *LocalLimiter) Allow(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	bucket, ok := l.buckets[key]
	if !ok {
		bucket = rate.NewLimiter(l.every, l.burst)
		l.buckets[key] = bucket
	}
	l.mu.Unlock()
	return bucket.Allow(), nil
}

type fixedWindowStore interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// RedisLimiter shares a fixed window counter across instances.
type RedisLimiter struct {
	store  fixedWindowStore
	name   string
	limit  int64
	window time.Duration
}

func NewRedisLimiter(store fixedWindowStore, name string, limit int, window time.Duration) *RedisLimiter {
	if store == nil || limit <= 0 || window <= 0 {
		return nil
	}
	return &RedisLimiter{store: store, name: name, limit: int64(limit), window: window}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	allowed, _, err := l.store.FixedWindowAllow(ctx, l.name+":"+key, l.limit, l.window)
	return allowed, err
}

// KeyFunc picks the bucket a request is charged to. "" skips limiting.
type KeyFunc func(r *http.Request) string

// ByActor charges the authenticated actor.
func ByActor(r *http.Request) string {
	return strings.ToLower(ActorEmail(r.Context()))
}

// ByClientIP charges the caller's address.
func ByClientIP(r *http.Request) string {
	return clientIP(r)
}

// RateLimit rejects requests over budget with RATE_LIMIT_EXCEEDED. A nil
// limiter disables the middleware.
func RateLimit(name string, limiter Limiter, key KeyFunc, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if isNilLimiter(limiter) {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			k := key(r)
			if k == "" {
				next.ServeHTTP(w, r)
				return
			}
			allowed, err := limiter.Allow(ctx, k)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limiting"))
				return
			}
			if !allowed {
				if logg != nil {
					logg.Warn(logg.WithFields(ctx, map[string]any{"policy": name, "key": k}), "rate_limit.blocked")
				}
				responses.WriteError(ctx, nil, w, pkgerrors.New(pkgerrors.CodeRateLimit, "rate limit exceeded"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func isNilLimiter(l Limiter) bool {
	switch v := l.(type) {
	case nil:
		return true
	case *LocalLimiter:
		return v == nil
	case *RedisLimiter:
		return v == nil
	}
	return false
}

func clientIP(r *http.Request) string {
	if header := r.Header.Get("X-Forwarded-For"); header != "" {
		for _, part := range strings.Split(header, ",") {
			if ip := strings.TrimSpace(part); ip != "" {
				return ip
			}
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}
