package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/readcycle-backend/api/controllers"
	"github.com/angelmondragon/readcycle-backend/api/middleware"
	"github.com/angelmondragon/readcycle-backend/internal/books"
	"github.com/angelmondragon/readcycle-backend/internal/borrows"
	"github.com/angelmondragon/readcycle-backend/internal/cart"
	"github.com/angelmondragon/readcycle-backend/internal/users"
	"github.com/angelmondragon/readcycle-backend/pkg/config"
	"github.com/angelmondragon/readcycle-backend/pkg/db"
	"github.com/angelmondragon/readcycle-backend/pkg/logger"
	"github.com/angelmondragon/readcycle-backend/pkg/redis"
)

// Services bundles what the HTTP layer calls into.
type Services struct {
	Books       books.Service
	Users       users.Service
	Cart        cart.Service
	Borrows     borrows.Service
	Activity    controllers.ActivityFeed
	Dashboard   controllers.StatsProvider
	Maintenance controllers.MaintenanceSwitch
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	gatherer prometheus.Gatherer,
	svc Services,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	var cachePinger controllers.Pinger
	var borrowLimiter, loginLimiter middleware.Limiter
	if redisClient != nil {
		cachePinger = redisClient
		borrowLimiter = middleware.NewRedisLimiter(redisClient, "borrow", cfg.Loans.BorrowsPerMinute, time.Minute)
		loginLimiter = middleware.NewRedisLimiter(redisClient, "login", cfg.App.LoginsPerMinute, time.Minute)
	} else {
		borrowLimiter = middleware.NewLocalLimiter(cfg.Loans.BorrowsPerMinute, time.Minute)
		loginLimiter = middleware.NewLocalLimiter(cfg.App.LoginsPerMinute, time.Minute)
	}
	borrowLimit := middleware.RateLimit("borrow", borrowLimiter, middleware.ByActor, logg)

	var directory controllers.PatronDirectory
	if svc.Users != nil {
		directory = svc.Users
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, cachePinger))
	})
	if gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(middleware.RateLimit("login", loginLimiter, middleware.ByClientIP, logg)).
			Post("/login", controllers.AuthLogin(svc.Users, cfg.JWT, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Maintenance(svc.Maintenance, logg))

		r.Get("/books", controllers.BooksList(svc.Books, logg))
		r.Get("/books/{id}", controllers.BookGet(svc.Books, logg))

		r.Route("/cart", func(r chi.Router) {
			r.Post("/", controllers.CartAdd(svc.Cart, directory, logg))
			r.Get("/", controllers.CartList(svc.Cart, directory, logg))
			r.Post("/remove", controllers.CartRemove(svc.Cart, directory, logg))
			r.Delete("/{id}", controllers.CartDelete(svc.Cart, directory, logg))
		})
		r.With(borrowLimit).Post("/checkout", controllers.Checkout(svc.Cart, directory, logg))

		r.Route("/loans", func(r chi.Router) {
			r.With(borrowLimit).Post("/", controllers.LoanCreate(svc.Borrows, directory, logg))
			r.Put("/return", controllers.LoanReturn(svc.Borrows, directory, logg))
			r.Get("/history", controllers.LoanHistory(svc.Borrows, directory, logg))
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireAdmin(logg))

		r.Route("/books", func(r chi.Router) {
			r.Get("/", controllers.AdminBooksList(svc.Books, logg))
			r.Post("/", controllers.AdminBookCreate(svc.Books, logg))
			r.Post("/bulk", controllers.AdminBookBulkCreate(svc.Books, logg))
			r.Get("/{id}", controllers.AdminBookGet(svc.Books, logg))
			r.Patch("/{id}", controllers.AdminBookUpdate(svc.Books, logg))
			r.Delete("/{id}", controllers.AdminBookDelete(svc.Books, logg))
			r.Post("/{id}/toggle-active", controllers.AdminBookToggleActive(svc.Books, logg))
		})

		r.Route("/users", func(r chi.Router) {
			r.Post("/", controllers.AdminUserCreate(svc.Users, logg))
			r.Get("/{id}", controllers.AdminUserGet(svc.Users, logg))
			r.Patch("/{id}", controllers.AdminUserUpdate(svc.Users, logg))
			r.Delete("/{id}", controllers.AdminUserDelete(svc.Users, logg))
		})

		r.Get("/activity", controllers.AdminActivityList(svc.Activity, logg))
		r.Get("/dashboard", controllers.AdminDashboard(svc.Dashboard, logg))
		r.Get("/maintenance", controllers.AdminMaintenanceGet(svc.Maintenance, logg))
		r.Put("/maintenance", controllers.AdminMaintenanceSet(svc.Maintenance, logg))
	})

	return r
}
