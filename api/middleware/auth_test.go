package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/readcycle-backend/pkg/auth"
	"github.com/angelmondragon/readcycle-backend/pkg/config"
	"github.com/angelmondragon/readcycle-backend/pkg/enums"
)

var testJWT = config.JWTConfig{Secret: "secret", Issuer: "readcycle", ExpirationMinutes: 60}

func mintTestToken(t *testing.T, role enums.UserRole) (string, auth.Identity) {
	t.Helper()
	id := auth.Identity{UserID: uuid.New(), Email: "reader@example.com", Role: role}
	token, err := auth.MintAccessToken(testJWT, time.Now(), id)
	require.NoError(t, err)
	return token, id
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthRejectsMissingToken(t *testing.T) {
	handler := Auth(testJWT, nil)(okHandler())

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestAuthRejectsInvalidToken(t *testing.T) {
	handler := Auth(testJWT, nil)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer invalid")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestAuthRejectsForeignSecret(t *testing.T) {
	other := testJWT
	other.Secret = "other"
	token, err := auth.MintAccessToken(other, time.Now(), auth.Identity{Email: "a@b.co", Role: enums.UserRoleUser})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	Auth(testJWT, nil)(okHandler()).ServeHTTP(resp, req)
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestAuthSeedsIdentity(t *testing.T) {
	token, want := mintTestToken(t, enums.UserRoleUser)

	var got auth.Identity
	handler := Auth(testJWT, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, want, got)
}

func TestRequireAdmin(t *testing.T) {
	handler := RequireAdmin(nil)(okHandler())

	cases := []struct {
		name   string
		ctx    context.Context
		status int
	}{
		{"anonymous", context.Background(), http.StatusUnauthorized},
		{"patron", WithIdentity(context.Background(), auth.Identity{Email: "p@x.io", Role: enums.UserRoleUser}), http.StatusForbidden},
		{"admin", WithIdentity(context.Background(), auth.Identity{Email: "a@x.io", Role: enums.UserRoleAdmin}), http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil).WithContext(tc.ctx)
			resp := httptest.NewRecorder()
			handler.ServeHTTP(resp, req)
			assert.Equal(t, tc.status, resp.Code)
		})
	}
}
