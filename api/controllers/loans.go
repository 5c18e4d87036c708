package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/readcycle-backend/api/responses"
	"github.com/angelmondragon/readcycle-backend/api/validators"
	"github.com/angelmondragon/readcycle-backend/internal/borrows"
	"github.com/angelmondragon/readcycle-backend/pkg/db/models"
	"github.com/angelmondragon/readcycle-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/readcycle-backend/pkg/errors"
	"github.com/angelmondragon/readcycle-backend/pkg/logger"
)

type loanDTO struct {
	ID         uuid.UUID        `json:"id"`
	BookID     uuid.UUID        `json:"book_id"`
	Category   string           `json:"category"`
	Status     enums.LoanStatus `json:"status"`
	ReturnedAt *time.Time       `json:"returned_at,omitempty"`
	CreatedAt  time.Time        `json:"created_at"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

type loanHistoryDTO struct {
	Loans      []loanDTO `json:"loans"`
	NextCursor string    `json:"next_cursor,omitempty"`
}

func toLoanDTO(loan models.Loan) loanDTO {
	return loanDTO{
		ID:         loan.ID,
		BookID:     loan.BookID,
		Category:   loan.Category,
		Status:     loan.Status,
		ReturnedAt: loan.ReturnedAt,
		CreatedAt:  loan.CreatedAt,
		UpdatedAt:  loan.UpdatedAt,
	}
}

// LoanCreate borrows a book directly, without going through the cart.
func LoanCreate(svc borrows.Service, dir PatronDirectory, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "borrow service unavailable"))
			return
		}
		patron, actor, err := currentPatron(ctx, dir)
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

		loan, err := svc.CreateLoan(ctx, actor, patron.ID, bookID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, toLoanDTO(*loan))
	}
}

// LoanReturn closes the caller's active loan for a book.
func LoanReturn(svc borrows.Service, dir PatronDirectory, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "borrow service unavailable"))
			return
		}
		patron, actor, err := currentPatron(ctx, dir)
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

		loan, err := svc.ReturnLoan(ctx, actor, patron.ID, bookID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, toLoanDTO(*loan))
	}
}

func LoanHistory(svc borrows.Service, dir PatronDirectory, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "borrow service unavailable"))
			return
		}
		patron, _, err := currentPatron(ctx, dir)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		params, err := pageParams(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		page, err := svc.HistoryForPatron(ctx, patron.ID, params)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		out := loanHistoryDTO{Loans: make([]loanDTO, 0, len(page.Loans)), NextCursor: page.NextCursor}
		for _, loan := range page.Loans {
			out.Loans = append(out.Loans, toLoanDTO(loan))
		}
		responses.WriteSuccess(w, out)
	}
}
