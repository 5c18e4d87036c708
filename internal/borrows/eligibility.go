package borrows

import (
	"context"

	"github.com/google/uuid"

	"github.com/angelmondragon/readcycle-backend/internal/inventory"
	pkgerrors "github.com/angelmondragon/readcycle-backend/pkg/errors"
)

// IneligibleReason explains why a patron may not borrow a book right now.
type IneligibleReason string

const (
	ReasonSameBook     IneligibleReason = "same_book"
	ReasonSameCategory IneligibleReason = "same_category"
)

const alreadyBorrowedMessage = "Sorry, you have to return the book is borrowed before you borrow the other one."

// Eligibility is the outcome of the borrow rules for one (patron, book) pair.
type Eligibility struct {
	Eligible       bool
	Reason         IneligibleReason
	BlockingLoanID uuid.UUID
}

// Err converts an ineligible result into an ALREADY_BORROWED error.
func (e Eligibility) Err() error {
	if e.Eligible {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeAlreadyBorrowed, alreadyBorrowedMessage).
		WithDetails(map[string]any{
			"reason":  string(e.Reason),
			"loan_id": e.BlockingLoanID.String(),
		})
}

// evaluate applies both rules against repo's view. Callers that go on to
// create a loan pass a transaction-bound repo so the check and the insert see
// the same state.
func evaluate(ctx context.Context, repo LoanRepository, patronID uuid.UUID, book inventory.State) (Eligibility, error) {
	same, err := repo.FindActive(ctx, patronID, book.BookID)
	if err != nil {
		return Eligibility{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check active loan")
	}
	if same != nil {
		return Eligibility{Reason: ReasonSameBook, BlockingLoanID: same.ID}, nil
	}

	// Category is compared as a literal string.
	sibling, err := repo.FindActiveInCategory(ctx, patronID, book.Category)
	if err != nil {
		return Eligibility{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check category loan")
	}
	if sibling != nil {
		return Eligibility{Reason: ReasonSameCategory, BlockingLoanID: sibling.ID}, nil
	}
	return Eligibility{Eligible: true}, nil
}
