package cart

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/readcycle-backend/internal/borrows"
	"github.com/angelmondragon/readcycle-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/readcycle-backend/pkg/errors"
	"github.com/angelmondragon/readcycle-backend/pkg/logger"
)

// Service stages intended borrows before they become loans. Adding to the cart
// never touches inventory; the ledger decides at checkout.
type Service interface {
	AddToCart(ctx context.Context, patronID, bookID uuid.UUID) (*models.CartItem, error)
	ListCarts(ctx context.Context, patronID uuid.UUID) ([]models.CartItem, error)
	RemoveCarts(ctx context.Context, patronID uuid.UUID, ids []uuid.UUID) (int64, error)
	Checkout(ctx context.Context, actor string, patronID uuid.UUID, ids []uuid.UUID) ([]CheckoutResult, error)
}

// CheckoutResult reports what happened to one cart item.
type CheckoutResult struct {
	CartItemID uuid.UUID
	BookID     uuid.UUID
	LoanID     uuid.UUID
	Borrowed   bool
	Reason     string
}

type service struct {
	repo    CartRepository
	borrows borrowWorkflow
	logg    *logger.Logger
}

// NewService builds a cart service.
func NewService(repo CartRepository, workflow borrowWorkflow, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if workflow == nil {
		return nil, fmt.Errorf("borrow workflow required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, borrows: workflow, logg: logg}, nil
}

func (s *service) AddToCart(ctx context.Context, patronID, bookID uuid.UUID) (*models.CartItem, error) {
	if patronID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "patron id required")
	}
	if bookID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "book id required")
	}

	eligibility, err := s.borrows.CheckEligibility(ctx, patronID, bookID)
	if err != nil {
		return nil, err
	}
	if !eligibility.Eligible {
		return nil, eligibility.Err()
	}

	item := &models.CartItem{PatronID: patronID, BookID: bookID, Sum: 1}
	if err := s.repo.Create(ctx, item); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create cart item")
	}
	return item, nil
}

func (s *service) ListCarts(ctx context.Context, patronID uuid.UUID) ([]models.CartItem, error) {
	if patronID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "patron id required")
	}
	items, err := s.repo.ListByPatron(ctx, patronID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list cart items")
	}
	return items, nil
}

func (s *service) RemoveCarts(ctx context.Context, patronID uuid.UUID, ids []uuid.UUID) (int64, error) {
	if patronID == uuid.Nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "patron id required")
	}
	removed, err := s.repo.DeleteOwned(ctx, patronID, dedupe(ids))
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "remove cart items")
	}
	return removed, nil
}

// Checkout turns cart items into loans one at a time. Each item is its own
// atomic borrow; a failed item is reported and the rest still run. An empty
// id list checks out the whole cart.
func (s *service) Checkout(ctx context.Context, actor string, patronID uuid.UUID, ids []uuid.UUID) ([]CheckoutResult, error) {
	if strings.TrimSpace(actor) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "actor identity required")
	}
	if patronID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "patron id required")
	}

	var (
		items []models.CartItem
		err   error
	)
	ids = dedupe(ids)
	if len(ids) == 0 {
		items, err = s.repo.ListByPatron(ctx, patronID)
		for i := len(items) - 1; i >= 0; i-- {
			ids = append(ids, items[i].ID)
		}
	} else {
		items, err = s.repo.FindOwned(ctx, patronID, ids)
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart items")
	}
	if len(ids) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}

	owned := make(map[uuid.UUID]models.CartItem, len(items))
	for _, item := range items {
		owned[item.ID] = item
	}

	results := make([]CheckoutResult, 0, len(ids))
	for _, id := range ids {
		item, ok := owned[id]
		if !ok {
			results = append(results, CheckoutResult{CartItemID: id, Reason: reasonFor(pkgerrors.CodeNotFound)})
			continue
		}

		result := CheckoutResult{CartItemID: id, BookID: item.BookID}
		loan, err := s.borrows.CreateLoan(ctx, actor, patronID, item.BookID, s.consumeItem(patronID, id))
		if err != nil {
			if !isItemFailure(err) {
				return nil, err
			}
			result.Reason = reasonFor(pkgerrors.As(err).Code())
			results = append(results, result)
			continue
		}

		result.Borrowed = true
		result.LoanID = loan.ID
		results = append(results, result)
	}

	borrowed := 0
	for _, result := range results {
		if result.Borrowed {
			borrowed++
		}
	}
	logCtx := s.logg.WithFields(ctx, map[string]any{"patron_id": patronID.String(), "items": len(results), "borrowed": borrowed})
	s.logg.Info(logCtx, "cart checked out")
	return results, nil
}

// consumeItem deletes the cart item in the same transaction that creates its
// loan, so a committed loan never leaves its cart item behind.
func (s *service) consumeItem(patronID, itemID uuid.UUID) borrows.LoanHook {
	return func(ctx context.Context, tx *gorm.DB, loan *models.Loan) error {
		if _, err := s.repo.WithTx(tx).DeleteOwned(ctx, patronID, []uuid.UUID{itemID}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "remove checked out cart item").
				WithDetails(map[string]any{"cart_item_id": itemID.String(), "loan_id": loan.ID.String()})
		}
		return nil
	}
}

func isItemFailure(err error) bool {
	switch pkgerrors.As(err).Code() {
	case pkgerrors.CodeOutOfStock, pkgerrors.CodeAlreadyBorrowed, pkgerrors.CodeNotFound, pkgerrors.CodeConflict:
		return true
	default:
		return false
	}
}

func reasonFor(code pkgerrors.Code) string {
	return strings.ToLower(string(code))
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
