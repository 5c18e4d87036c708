package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"

	"github.com/angelmondragon/readcycle-backend/api/routes"
	"github.com/angelmondragon/readcycle-backend/internal/activity"
	"github.com/angelmondragon/readcycle-backend/internal/books"
	"github.com/angelmondragon/readcycle-backend/internal/borrows"
	"github.com/angelmondragon/readcycle-backend/internal/cart"
	"github.com/angelmondragon/readcycle-backend/internal/dashboard"
	"github.com/angelmondragon/readcycle-backend/internal/inventory"
	"github.com/angelmondragon/readcycle-backend/internal/maintenance"
	"github.com/angelmondragon/readcycle-backend/internal/users"
	"github.com/angelmondragon/readcycle-backend/pkg/config"
	"github.com/angelmondragon/readcycle-backend/pkg/db"
	"github.com/angelmondragon/readcycle-backend/pkg/logger"
	"github.com/angelmondragon/readcycle-backend/pkg/metrics"
	"github.com/angelmondragon/readcycle-backend/pkg/migrate"
	"github.com/angelmondragon/readcycle-backend/pkg/outbox"
	"github.com/angelmondragon/readcycle-backend/pkg/redis"
	"github.com/angelmondragon/readcycle-backend/pkg/security"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, cfg.FeatureFlags.UseSQLite, logg)
	requireResource(ctx, logg, "database", err)

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run dev migrations", err)
		os.Exit(1)
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled() {
		redisClient, err = redis.New(ctx, cfg.Redis, logg)
		requireResource(ctx, logg, "redis", err)
	} else {
		logg.Warn(ctx, "redis not configured; using in-process locks and flag memo")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	conn := dbClient.DB()
	var locker inventory.Locker = inventory.NewLocalLocker()
	var flagCache maintenance.Cache
	if redisClient != nil {
		locker = inventory.NewRedisLocker(
			redisClient.Raw(),
			func(bookID string) string { return redisClient.LockKey("book", bookID) },
			cfg.Loans.LockTTL,
			cfg.Loans.LockWait,
			logg,
		)
		flagCache = redisClient
	}

	auditor, err := activity.NewAuditor(activity.NewRepository(conn), metrics.NewAuditMetrics(reg), logg)
	requireResource(ctx, logg, "activity auditor", err)

	workflow, err := borrows.NewService(
		dbClient,
		borrows.NewRepository(conn),
		inventory.NewLedger(conn),
		locker,
		outbox.NewService(outbox.NewRepository(conn), logg),
		metrics.NewLoanMetrics(reg),
		logg,
	)
	requireResource(ctx, logg, "borrow workflow", err)

	cartService, err := cart.NewService(cart.NewRepository(conn), workflow, logg)
	requireResource(ctx, logg, "cart service", err)

	bookService, err := books.NewService(dbClient, books.NewRepository(conn), locker, auditor, logg)
	requireResource(ctx, logg, "book service", err)

	userService, err := users.NewService(dbClient, users.NewRepository(conn), security.NewHasher(cfg.Password), auditor, logg)
	requireResource(ctx, logg, "user service", err)

	feed, err := activity.NewFeed(activity.NewRepository(conn))
	requireResource(ctx, logg, "activity feed", err)

	stats, err := dashboard.NewService(conn)
	requireResource(ctx, logg, "dashboard", err)

	flag, err := maintenance.NewService(
		maintenance.NewRepository(conn),
		flagCache,
		cfg.Loans.MaintenanceCacheTTL,
		cfg.FeatureFlags.MaintenanceDefault,
		logg,
	)
	requireResource(ctx, logg, "maintenance flag", err)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	logCtx := logg.WithFields(ctx, map[string]any{
		"env":   cfg.App.Env,
		"addr":  addr,
		"redis": redisClient != nil,
	})

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(cfg, logg, dbClient, redisClient, reg, routes.Services{
			Books:       bookService,
			Users:       userService,
			Cart:        cartService,
			Borrows:     workflow,
			Activity:    feed,
			Dashboard:   stats,
			Maintenance: flag,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logg.Info(logCtx, "starting api server")
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(logCtx, "api server stopped unexpectedly", err)
		}
	case <-ctx.Done():
		logg.Info(logCtx, "shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var closeErr error
	closeErr = multierr.Append(closeErr, server.Shutdown(shutdownCtx))
	if redisClient != nil {
		closeErr = multierr.Append(closeErr, redisClient.Close())
	}
	closeErr = multierr.Append(closeErr, dbClient.Close())
	if closeErr != nil {
		logg.Error(logCtx, "shutdown finished with errors", closeErr)
		os.Exit(1)
	}
	logg.Info(logCtx, "api server stopped")
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, "failed to bootstrap "+resource, err)
	os.Exit(1)
}
