package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/readcycle-backend/internal/activity"
	"github.com/angelmondragon/readcycle-backend/internal/books"
	"github.com/angelmondragon/readcycle-backend/internal/borrows"
	"github.com/angelmondragon/readcycle-backend/internal/cart"
	"github.com/angelmondragon/readcycle-backend/internal/dashboard"
	"github.com/angelmondragon/readcycle-backend/internal/inventory"
	"github.com/angelmondragon/readcycle-backend/internal/maintenance"
	"github.com/angelmondragon/readcycle-backend/internal/users"
	pkgAuth "github.com/angelmondragon/readcycle-backend/pkg/auth"
	"github.com/angelmondragon/readcycle-backend/pkg/config"
	dbpkg "github.com/angelmondragon/readcycle-backend/pkg/db"
	"github.com/angelmondragon/readcycle-backend/pkg/db/dbtest"
	"github.com/angelmondragon/readcycle-backend/pkg/enums"
	"github.com/angelmondragon/readcycle-backend/pkg/logger"
	"github.com/angelmondragon/readcycle-backend/pkg/metrics"
	"github.com/angelmondragon/readcycle-backend/pkg/outbox"
	"github.com/angelmondragon/readcycle-backend/pkg/security"
)

const (
	adminEmail  = "admin@example.com"
	patronEmail = "reader@example.com"
	patronPass  = "correct-horse"
)

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type testServer struct {
	handler    http.Handler
	adminToken string
	users      users.Service
}

func testConfig() *config.Config {
	return &config.Config{
		App:  config.AppConfig{Env: "test", Port: "0", CORSOrigins: []string{"http://localhost:3000"}, LoginsPerMinute: 10},
		JWT:  config.JWTConfig{Secret: "secret", Issuer: "readcycle", ExpirationMinutes: 60},
		Loans: config.LoansConfig{
			LockTTL:          time.Second,
			LockWait:         time.Second,
			BorrowsPerMinute: 30,
		},
	}
}

func newTestServer(t *testing.T) testServer {
	t.Helper()
	cfg := testConfig()
	logg := logger.Nop()
	db := dbtest.Open(t)
	client := dbpkg.FromGorm(db)
	reg := prometheus.NewRegistry()
	locker := inventory.NewLocalLocker()

	auditor, err := activity.NewAuditor(activity.NewRepository(db), metrics.NewAuditMetrics(reg), logg)
	require.NoError(t, err)
	workflow, err := borrows.NewService(client, borrows.NewRepository(db), inventory.NewLedger(db), locker,
		outbox.NewService(outbox.NewRepository(db), logg), metrics.NewLoanMetrics(reg), logg)
	require.NoError(t, err)
	cartSvc, err := cart.NewService(cart.NewRepository(db), workflow, logg)
	require.NoError(t, err)
	bookSvc, err := books.NewService(client, books.NewRepository(db), locker, auditor, logg)
	require.NoError(t, err)
	hasher := security.NewHasher(config.PasswordConfig{ArgonMemoryKB: 8192, ArgonTime: 1, ArgonParallelism: 1, ArgonSaltLen: 16, ArgonKeyLen: 32})
	userSvc, err := users.NewService(client, users.NewRepository(db), hasher, auditor, logg)
	require.NoError(t, err)
	feed, err := activity.NewFeed(activity.NewRepository(db))
	require.NoError(t, err)
	stats, err := dashboard.NewService(db)
	require.NoError(t, err)
	flag, err := maintenance.NewService(maintenance.NewRepository(db), nil, time.Minute, false, logg)
	require.NoError(t, err)

	ctx := context.Background()
	adminUser, err := userSvc.Create(ctx, "bootstrap@example.com", users.CreateUserInput{
		Name: "Admin", Email: adminEmail, Password: "admin-password", Role: "ADMIN",
	})
	require.NoError(t, err)
	_, err = userSvc.Create(ctx, adminEmail, users.CreateUserInput{
		Name: "Reader", Email: patronEmail, Password: patronPass,
	})
	require.NoError(t, err)

	token, err := pkgAuth.MintAccessToken(cfg.JWT, time.Now(), pkgAuth.Identity{
		UserID: adminUser.ID, Email: adminUser.Email, Role: enums.UserRoleAdmin,
	})
	require.NoError(t, err)

	handler := NewRouter(cfg, logg, client, nil, reg, Services{
		Books:       bookSvc,
		Users:       userSvc,
		Cart:        cartSvc,
		Borrows:     workflow,
		Activity:    feed,
		Dashboard:   stats,
		Maintenance: flag,
	})
	return testServer{handler: handler, adminToken: token, users: userSvc}
}

func (s testServer) do(t *testing.T, method, path, token string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body == nil {
		req = httptest.NewRequest(method, path, nil)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp := httptest.NewRecorder()
	s.handler.ServeHTTP(resp, req)

	var env envelope
	if resp.Header().Get("Content-Type") == "application/json" {
		require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &env))
	}
	return resp, env
}

func (s testServer) login(t *testing.T) string {
	t.Helper()
	resp, env := s.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": patronEmail, "password": patronPass})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	var out struct {
		AccessToken string `json:"access_token"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &out))
	require.NotEmpty(t, out.AccessToken)
	return out.AccessToken
}

func (s testServer) createBook(t *testing.T, category, title string, qty int) string {
	t.Helper()
	resp, env := s.do(t, http.MethodPost, "/api/admin/v1/books", s.adminToken, map[string]any{
		"category": category, "title": title, "quantity": qty,
	})
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	var book struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &book))
	return book.ID
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)

	resp, _ := s.do(t, http.MethodGet, "/health/live", "", nil)
	assert.Equal(t, http.StatusOK, resp.Code)
	resp, _ = s.do(t, http.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, http.StatusOK, resp.Code)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLoginRejectsBadPassword(t *testing.T) {
	s := newTestServer(t)

	resp, env := s.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": patronEmail, "password": "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "UNAUTHORIZED", env.Error.Code)
}

func TestCartCheckoutReturnFlow(t *testing.T) {
	s := newTestServer(t)
	patron := s.login(t)
	bookID := s.createBook(t, "Fiction", "Dune", 1)

	resp, _ := s.do(t, http.MethodPost, "/api/v1/cart", patron, map[string]string{"book_id": bookID})
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())

	resp, env := s.do(t, http.MethodGet, "/api/v1/cart", patron, nil)
	require.Equal(t, http.StatusOK, resp.Code)
	var items []map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &items))
	assert.Len(t, items, 1)

	resp, env = s.do(t, http.MethodPost, "/api/v1/checkout", patron, nil)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	var results []struct {
		Borrowed bool   `json:"borrowed"`
		LoanID   string `json:"loan_id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &results))
	require.Len(t, results, 1)
	assert.True(t, results[0].Borrowed)
	assert.NotEmpty(t, results[0].LoanID)

	resp, env = s.do(t, http.MethodGet, "/api/admin/v1/books/"+bookID, s.adminToken, nil)
	require.Equal(t, http.StatusOK, resp.Code)
	var book struct {
		Quantity int    `json:"quantity"`
		Status   string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &book))
	assert.Equal(t, 0, book.Quantity)
	assert.Equal(t, "UNAVAILABLE", book.Status)

	resp, env = s.do(t, http.MethodPost, "/api/v1/loans", patron, map[string]string{"book_id": bookID})
	assert.Equal(t, http.StatusConflict, resp.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "ALREADY_BORROWED", env.Error.Code)

	resp, _ = s.do(t, http.MethodPut, "/api/v1/loans/return", patron, map[string]string{"book_id": bookID})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	resp, env = s.do(t, http.MethodGet, "/api/v1/loans/history", patron, nil)
	require.Equal(t, http.StatusOK, resp.Code)
	var history struct {
		Loans []struct {
			Status string `json:"status"`
		} `json:"loans"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &history))
	require.Len(t, history.Loans, 1)
	assert.Equal(t, "RETURNED", history.Loans[0].Status)

	resp, _ = s.do(t, http.MethodPut, "/api/v1/loans/return", patron, map[string]string{"book_id": bookID})
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestDirectBorrowOutOfStock(t *testing.T) {
	s := newTestServer(t)
	patron := s.login(t)
	bookID := s.createBook(t, "Poetry", "Odes", 0)

	resp, env := s.do(t, http.MethodPost, "/api/v1/loans", patron, map[string]string{"book_id": bookID})
	assert.Equal(t, http.StatusConflict, resp.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "OUT_OF_STOCK", env.Error.Code)
}

func TestAdminRoutesRequireAdmin(t *testing.T) {
	s := newTestServer(t)
	patron := s.login(t)

	resp, _ := s.do(t, http.MethodGet, "/api/admin/v1/dashboard", patron, nil)
	assert.Equal(t, http.StatusForbidden, resp.Code)

	resp, _ = s.do(t, http.MethodGet, "/api/admin/v1/dashboard", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.Code)

	resp, env := s.do(t, http.MethodGet, "/api/admin/v1/dashboard", s.adminToken, nil)
	require.Equal(t, http.StatusOK, resp.Code)
	var stats struct {
		Users  int64 `json:"users"`
		Admins int64 `json:"admins"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &stats))
	assert.Equal(t, int64(1), stats.Users)
	assert.Equal(t, int64(1), stats.Admins)
}

func TestActivityFeedListsCatalogChanges(t *testing.T) {
	s := newTestServer(t)
	s.createBook(t, "History", "SPQR", 2)

	resp, env := s.do(t, http.MethodGet, "/api/admin/v1/activity?group=BOOK", s.adminToken, nil)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	var page struct {
		Entries []struct {
			ActivityType string `json:"activityType"`
			Username     string `json:"username"`
		} `json:"entries"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &page))
	require.Len(t, page.Entries, 1)
	assert.Equal(t, "CREATE_BOOK", page.Entries[0].ActivityType)
	assert.Equal(t, adminEmail, page.Entries[0].Username)

	resp, _ = s.do(t, http.MethodGet, "/api/admin/v1/activity?type=NOPE", s.adminToken, nil)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestMaintenanceBlocksPatronsOnly(t *testing.T) {
	s := newTestServer(t)
	patron := s.login(t)

	resp, _ := s.do(t, http.MethodPut, "/api/admin/v1/maintenance", s.adminToken, map[string]bool{"enabled": true})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	resp, env := s.do(t, http.MethodGet, "/api/v1/books", patron, nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "Maintenance mode, we will be back soon", env.Error.Message)

	resp, _ = s.do(t, http.MethodGet, "/api/v1/books", s.adminToken, nil)
	assert.Equal(t, http.StatusOK, resp.Code)

	resp, _ = s.do(t, http.MethodPut, "/api/admin/v1/maintenance", s.adminToken, map[string]bool{"enabled": false})
	require.Equal(t, http.StatusOK, resp.Code)
	resp, _ = s.do(t, http.MethodGet, "/api/v1/books", patron, nil)
	assert.Equal(t, http.StatusOK, resp.Code)
}

func TestValidationErrorsSurfaceAsBadRequest(t *testing.T) {
	s := newTestServer(t)
	patron := s.login(t)

	resp, env := s.do(t, http.MethodPost, "/api/v1/cart", patron, map[string]string{"book_id": "not-a-uuid"})
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)

	resp, _ = s.do(t, http.MethodDelete, "/api/v1/cart/not-a-uuid", patron, nil)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}
