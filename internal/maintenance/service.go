package maintenance

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/angelmondragon/readcycle-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/readcycle-backend/pkg/errors"
	"github.com/angelmondragon/readcycle-backend/pkg/logger"
	"github.com/angelmondragon/readcycle-backend/pkg/redis"
)

// FlagName is the system_configs row holding the maintenance switch.
const FlagName = "maintenance_mode"

type store interface {
	Get(ctx context.Context, name string) (*models.SystemConfig, error)
	Put(ctx context.Context, name, value, actor string, at time.Time) error
}

// Cache is the shared cache for the flag, normally redis.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	ConfigKey(name string) string
}

// Service answers whether the library is in maintenance mode.
//
// With a shared cache every instance sees a toggle within ttl. Without one the
// value is memoized in process for ttl.
type Service struct {
	store     store
	cache     Cache
	ttl       time.Duration
	defaultOn bool
	logg      *logger.Logger
	now       func() time.Time

	mu      sync.Mutex
	local   bool
	expires time.Time
}

// NewService builds the flag service. cache may be nil.
func NewService(st store, cache Cache, ttl time.Duration, defaultOn bool, logg *logger.Logger) (*Service, error) {
	if st == nil {
		return nil, fmt.Errorf("config store required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Service{
		store:     st,
		cache:     cache,
		ttl:       ttl,
		defaultOn: defaultOn,
		logg:      logg,
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

// IsEnabled reports the current flag. Cache errors fall through to the store.
func (s *Service) IsEnabled(ctx context.Context) (bool, error) {
	if s.cache != nil {
		raw, err := s.cache.Get(ctx, s.cache.ConfigKey(FlagName))
		switch {
		case err == nil:
			if enabled, perr := strconv.ParseBool(raw); perr == nil {
				return enabled, nil
			}
		case !redis.IsNil(err):
			s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "maintenance cache read failed")
		}
	} else if enabled, ok := s.memo(); ok {
		return enabled, nil
	}

	enabled, err := s.load(ctx)
	if err != nil {
		return false, err
	}
	s.remember(ctx, enabled)
	return enabled, nil
}

// Set persists the flag and refreshes the cache.
func (s *Service) Set(ctx context.Context, actor string, enabled bool) error {
	if strings.TrimSpace(actor) == "" {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "actor identity required")
	}
	if err := s.store.Put(ctx, FlagName, strconv.FormatBool(enabled), actor, s.now()); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "save maintenance flag")
	}
	s.remember(ctx, enabled)

	logCtx := s.logg.WithFields(ctx, map[string]any{"maintenance": enabled, "actor_email": actor})
	s.logg.Info(logCtx, "maintenance mode changed")
	return nil
}

func (s *Service) load(ctx context.Context) (bool, error) {
	row, err := s.store.Get(ctx, FlagName)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load maintenance flag")
	}
	if row == nil {
		return s.defaultOn, nil
	}
	enabled, err := strconv.ParseBool(row.Value)
	if err != nil {
		return s.defaultOn, nil
	}
	return enabled, nil
}

func (s *Service) remember(ctx context.Context, enabled bool) {
	if s.cache != nil {
		if err := s.cache.Set(ctx, s.cache.ConfigKey(FlagName), strconv.FormatBool(enabled), s.ttl); err != nil {
			s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "maintenance cache write failed")
		}
		return
	}
	s.mu.Lock()
	s.local = enabled
	s.expires = s.now().Add(s.ttl)
	s.mu.Unlock()
}

func (s *Service) memo() (bool, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.expires.IsZero() || !s.now().Before(s.expires) {
		return false, false
	}
	return s.local, true
}
