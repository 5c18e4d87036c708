package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/readcycle-backend/api/middleware"
	"github.com/angelmondragon/readcycle-backend/api/validators"
	"github.com/angelmondragon/readcycle-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/readcycle-backend/pkg/errors"
	"github.com/angelmondragon/readcycle-backend/pkg/pagination"
)

// PatronDirectory resolves the authenticated email to a patron record.
type PatronDirectory interface {
	LookupPatronByEmail(ctx context.Context, email string) (*models.User, error)
}

// currentPatron returns the patron behind the request and the actor email to
// stamp on writes.
func currentPatron(ctx context.Context, dir PatronDirectory) (*models.User, string, error) {
	if dir == nil {
		return nil, "", pkgerrors.New(pkgerrors.CodeInternal, "patron directory unavailable")
	}
	email := middleware.ActorEmail(ctx)
	if email == "" {
		return nil, "", pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials")
	}
	patron, err := dir.LookupPatronByEmail(ctx, email)
	if err != nil {
		return nil, "", err
	}
	return patron, email, nil
}

func adminActor(ctx context.Context) (string, error) {
	email := middleware.ActorEmail(ctx)
	if email == "" {
		return "", pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials")
	}
	return email, nil
}

func uuidParam(r *http.Request, name string) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, name))
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+name).WithDetails(map[string]any{"field": name})
	}
	return id, nil
}

func pageParams(r *http.Request) (pagination.Params, error) {
	limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
	if err != nil {
		return pagination.Params{}, err
	}
	return pagination.Params{Limit: limit, Cursor: strings.TrimSpace(r.URL.Query().Get("cursor"))}, nil
}

func parseID(value, field string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(value))
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+field).WithDetails(map[string]any{"field": field, "value": value})
	}
	return id, nil
}

func parseIDs(raw []string, field string) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(raw))
	for _, value := range raw {
		id, err := parseID(value, field)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
