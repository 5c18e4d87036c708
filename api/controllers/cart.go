package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/readcycle-backend/api/responses"
	"github.com/angelmondragon/readcycle-backend/api/validators"
	"github.com/angelmondragon/readcycle-backend/internal/cart"
	"github.com/angelmondragon/readcycle-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/readcycle-backend/pkg/errors"
	"github.com/angelmondragon/readcycle-backend/pkg/logger"
)

type bookRef struct {
	BookID string `json:"book_id" validate:"required,uuid"`
}

type cartIDsRequest struct {
	IDs []string `json:"ids" validate:"required,min=1,max=100"`
}

type checkoutRequest struct {
	CartItemIDs []string `json:"cart_item_ids" validate:"max=100"`
}

type cartItemDTO struct {
	ID        uuid.UUID `json:"id"`
	BookID    uuid.UUID `json:"book_id"`
	Sum       int       `json:"sum"`
	CreatedAt time.Time `json:"created_at"`
}

type checkoutResultDTO struct {
	CartItemID uuid.UUID  `json:"cart_item_id"`
	BookID     uuid.UUID  `json:"book_id"`
	LoanID     *uuid.UUID `json:"loan_id,omitempty"`
	Borrowed   bool       `json:"borrowed"`
	Reason     string     `json:"reason,omitempty"`
}

func toCartItemDTO(item models.CartItem) cartItemDTO {
	return cartItemDTO{ID: item.ID, BookID: item.BookID, Sum: item.Sum, CreatedAt: item.CreatedAt}
}

// CartAdd records the intent to borrow a book. Inventory is untouched.
func CartAdd(svc cart.Service, dir PatronDirectory, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}
		patron, _, err := currentPatron(ctx, dir)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var body bookRef
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		bookID, err := parseID(body.BookID, "book_id")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		item, err := svc.AddToCart(ctx, patron.ID, bookID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, toCartItemDTO(*item))
	}
}

func CartList(svc cart.Service, dir PatronDirectory, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}
		patron, _, err := currentPatron(ctx, dir)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		items, err := svc.ListCarts(ctx, patron.ID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		out := make([]cartItemDTO, 0, len(items))
		for _, item := range items {
			out = append(out, toCartItemDTO(item))
		}
		responses.WriteSuccess(w, out)
	}
}

// CartDelete removes one cart item owned by the caller.
func CartDelete(svc cart.Service, dir PatronDirectory, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}
		patron, _, err := currentPatron(ctx, dir)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		id, err := uuidParam(r, "id")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		removed, err := svc.RemoveCarts(ctx, patron.ID, []uuid.UUID{id})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if removed == 0 {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found"))
			return
		}
		responses.WriteSuccess(w, map[string]int64{"removed": removed})
	}
}

// CartRemove drops several cart items; ids the caller does not own are ignored.
func CartRemove(svc cart.Service, dir PatronDirectory, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}
		patron, _, err := currentPatron(ctx, dir)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var body cartIDsRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		ids, err := parseIDs(body.IDs, "ids")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		removed, err := svc.RemoveCarts(ctx, patron.ID, ids)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]int64{"removed": removed})
	}
}

// Checkout turns cart items into loans. An empty list checks out the whole cart.
func Checkout(svc cart.Service, dir PatronDirectory, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}
		patron, actor, err := currentPatron(ctx, dir)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var body checkoutRequest
		if r.ContentLength != 0 {
			if err := validators.DecodeJSONBody(r, &body); err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}
		}
		ids, err := parseIDs(body.CartItemIDs, "cart_item_ids")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		results, err := svc.Checkout(ctx, actor, patron.ID, ids)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		out := make([]checkoutResultDTO, 0, len(results))
		for _, res := range results {
			dto := checkoutResultDTO{CartItemID: res.CartItemID, BookID: res.BookID, Borrowed: res.Borrowed, Reason: res.Reason}
			if res.Borrowed {
				loanID := res.LoanID
				dto.LoanID = &loanID
			}
			out = append(out, dto)
		}
		responses.WriteSuccess(w, out)
	}
}
