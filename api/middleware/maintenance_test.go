package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/angelmondragon/readcycle-backend/pkg/auth"
	"github.com/angelmondragon/readcycle-backend/pkg/enums"
)

type stubFlag struct {
	enabled bool
	err     error
}

func (s stubFlag) IsEnabled(context.Context) (bool, error) { return s.enabled, s.err }

func TestMaintenance(t *testing.T) {
	patron := auth.Identity{Email: "p@x.io", Role: enums.UserRoleUser}
	admin := auth.Identity{Email: "a@x.io", Role: enums.UserRoleAdmin}

	cases := []struct {
		name   string
		flag   stubFlag
		id     auth.Identity
		status int
	}{
		{"off", stubFlag{}, patron, http.StatusOK},
		{"on blocks patron", stubFlag{enabled: true}, patron, http.StatusServiceUnavailable},
		{"on lets admin through", stubFlag{enabled: true}, admin, http.StatusOK},
		{"read error fails open", stubFlag{err: errors.New("down")}, patron, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			handler := Maintenance(tc.flag, nil)(okHandler())
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req = req.WithContext(WithIdentity(req.Context(), tc.id))
			resp := httptest.NewRecorder()
			handler.ServeHTTP(resp, req)
			assert.Equal(t, tc.status, resp.Code)
		})
	}
}
