package controllers

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/readcycle-backend/api/responses"
	"github.com/angelmondragon/readcycle-backend/api/validators"
	"github.com/angelmondragon/readcycle-backend/internal/books"
	pkgerrors "github.com/angelmondragon/readcycle-backend/pkg/errors"
	"github.com/angelmondragon/readcycle-backend/pkg/logger"
)

type bulkBooksRequest struct {
	Books []books.CreateBookInput `json:"books" validate:"required,min=1,max=500"`
}

func listParams(r *http.Request, activeOnly bool) (books.ListParams, error) {
	page, err := pageParams(r)
	if err != nil {
		return books.ListParams{}, err
	}
	q := r.URL.Query()
	return books.ListParams{
		Category:   strings.TrimSpace(q.Get("category")),
		Search:     strings.TrimSpace(q.Get("search")),
		ActiveOnly: activeOnly,
		Limit:      page.Limit,
		Cursor:     page.Cursor,
	}, nil
}

// BooksList is the patron catalog: active books only.
func BooksList(svc books.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "book service unavailable"))
			return
		}
		params, err := listParams(r, true)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		result, err := svc.List(ctx, params)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func BookGet(svc books.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "book service unavailable"))
			return
		}
		id, err := uuidParam(r, "id")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		book, err := svc.GetActive(ctx, id)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, books.ToDTO(*book))
	}
}

// AdminBooksList includes inactive books unless ?active=true.
func AdminBooksList(svc books.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "book service unavailable"))
			return
		}
		activeOnly, err := validators.ParseQueryBool(r, "active", false)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		params, err := listParams(r, activeOnly)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		result, err := svc.List(ctx, params)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func AdminBookGet(svc books.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "book service unavailable"))
			return
		}
		id, err := uuidParam(r, "id")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		book, err := svc.Get(ctx, id)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, books.ToDTO(*book))
	}
}

func AdminBookCreate(svc books.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "book service unavailable"))
			return
		}
		actor, err := adminActor(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		var body books.CreateBookInput
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		book, err := svc.Create(ctx, actor, body)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, books.ToDTO(*book))
	}
}

// AdminBookBulkCreate imports many books; each row succeeds or fails alone.
func AdminBookBulkCreate(svc books.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "book service unavailable"))
			return
		}
		actor, err := adminActor(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		var body bulkBooksRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		result, err := svc.BulkCreate(ctx, actor, body.Books)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func AdminBookUpdate(svc books.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "book service unavailable"))
			return
		}
		actor, err := adminActor(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		id, err := uuidParam(r, "id")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		var body books.UpdateBookInput
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		book, err := svc.Update(ctx, actor, id, body)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, books.ToDTO(*book))
	}
}

// AdminBookToggleActive flips the soft delete flag.
func AdminBookToggleActive(svc books.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "book service unavailable"))
			return
		}
		actor, err := adminActor(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		id, err := uuidParam(r, "id")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		book, err := svc.ToggleActive(ctx, actor, id)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, books.ToDTO(*book))
	}
}

func AdminBookDelete(svc books.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "book service unavailable"))
			return
		}
		actor, err := adminActor(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		id, err := uuidParam(r, "id")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if err := svc.Delete(ctx, actor, id); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"id": id.String(), "status": "deleted"})
	}
}
