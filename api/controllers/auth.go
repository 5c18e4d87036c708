package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/angelmondragon/readcycle-backend/api/responses"
	"github.com/angelmondragon/readcycle-backend/api/validators"
	"github.com/angelmondragon/readcycle-backend/internal/users"
	pkgAuth "github.com/angelmondragon/readcycle-backend/pkg/auth"
	"github.com/angelmondragon/readcycle-backend/pkg/config"
	"github.com/angelmondragon/readcycle-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/readcycle-backend/pkg/errors"
	"github.com/angelmondragon/readcycle-backend/pkg/logger"
)

type authenticator interface {
	Authenticate(ctx context.Context, email, password string) (*models.User, error)
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	AccessToken string        `json:"access_token"`
	TokenType   string        `json:"token_type"`
	ExpiresIn   int           `json:"expires_in"`
	User        users.UserDTO `json:"user"`
}

// AuthLogin exchanges credentials for a bearer token.
func AuthLogin(svc authenticator, cfg config.JWTConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "auth service unavailable"))
			return
		}

		var body loginRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		user, err := svc.Authenticate(ctx, body.Email, body.Password)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		token, err := pkgAuth.MintAccessToken(cfg, time.Now().UTC(), pkgAuth.Identity{
			UserID: user.ID,
			Email:  user.Email,
			Role:   user.Role,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "issue access token"))
			return
		}

		responses.WriteSuccess(w, loginResponse{
			AccessToken: token,
			TokenType:   "Bearer",
			ExpiresIn:   cfg.ExpirationMinutes * 60,
			User:        users.FromModel(*user),
		})
	}
}
