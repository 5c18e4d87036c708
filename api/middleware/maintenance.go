package middleware

import (
	"context"
	"net/http"

	"github.com/angelmondragon/readcycle-backend/api/responses"
	pkgerrors "github.com/angelmondragon/readcycle-backend/pkg/errors"
	"github.com/angelmondragon/readcycle-backend/pkg/logger"
)

type maintenanceFlag interface {
	IsEnabled(ctx context.Context) (bool, error)
}

// Maintenance turns non-admin traffic away while the flag is on. It must run
// after Auth. A flag read error lets the request through.
func Maintenance(flag maintenanceFlag, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if flag == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if id, ok := IdentityFromContext(ctx); ok && id.IsAdmin() {
				next.ServeHTTP(w, r)
				return
			}
			enabled, err := flag.IsEnabled(ctx)
			if err != nil {
				if logg != nil {
					logg.Error(ctx, "maintenance.check_failed", err)
				}
				next.ServeHTTP(w, r)
				return
			}
			if enabled {
				responses.WriteError(ctx, nil, w, pkgerrors.New(pkgerrors.CodeUnavailable, "Maintenance mode, we will be back soon"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
