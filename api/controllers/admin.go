package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/angelmondragon/readcycle-backend/api/responses"
	"github.com/angelmondragon/readcycle-backend/api/validators"
	"github.com/angelmondragon/readcycle-backend/internal/activity"
	"github.com/angelmondragon/readcycle-backend/internal/dashboard"
	"github.com/angelmondragon/readcycle-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/readcycle-backend/pkg/errors"
	"github.com/angelmondragon/readcycle-backend/pkg/logger"
	"github.com/angelmondragon/readcycle-backend/pkg/pagination"
)

// ActivityFeed pages the audit trail.
type ActivityFeed interface {
	List(ctx context.Context, filter activity.Filter, params pagination.Params) (*activity.Page, error)
}

// StatsProvider computes the admin dashboard.
type StatsProvider interface {
	Stats(ctx context.Context) (*dashboard.Stats, error)
}

// MaintenanceSwitch reads and flips the maintenance flag.
type MaintenanceSwitch interface {
	IsEnabled(ctx context.Context) (bool, error)
	Set(ctx context.Context, actor string, enabled bool) error
}

type maintenanceRequest struct {
	Enabled *bool `json:"enabled" validate:"required"`
}

// AdminActivityList pages the audit trail, newest first.
func AdminActivityList(feed ActivityFeed, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if feed == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "activity feed unavailable"))
			return
		}
		params, err := pageParams(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		q := r.URL.Query()
		filter := activity.Filter{
			Group: enums.ActivityGroup(strings.ToUpper(strings.TrimSpace(q.Get("group")))),
			Type:  enums.ActivityType(strings.ToUpper(strings.TrimSpace(q.Get("type")))),
			Actor: strings.TrimSpace(q.Get("actor")),
		}
		page, err := feed.List(ctx, filter, params)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

func AdminDashboard(svc StatsProvider, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "dashboard unavailable"))
			return
		}
		stats, err := svc.Stats(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, stats)
	}
}

func AdminMaintenanceGet(svc MaintenanceSwitch, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "maintenance unavailable"))
			return
		}
		enabled, err := svc.IsEnabled(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]bool{"enabled": enabled})
	}
}

// AdminMaintenanceSet turns maintenance mode on or off.
func AdminMaintenanceSet(svc MaintenanceSwitch, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "maintenance unavailable"))
			return
		}
		actor, err := adminActor(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		var body maintenanceRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if err := svc.Set(ctx, actor, *body.Enabled); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]bool{"enabled": *body.Enabled})
	}
}
