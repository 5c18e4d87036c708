package borrows

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/readcycle-backend/internal/activity"
	"github.com/angelmondragon/readcycle-backend/internal/books"
	"github.com/angelmondragon/readcycle-backend/internal/inventory"
	dbpkg "github.com/angelmondragon/readcycle-backend/pkg/db"
	"github.com/angelmondragon/readcycle-backend/pkg/db/dbtest"
	"github.com/angelmondragon/readcycle-backend/pkg/db/models"
	"github.com/angelmondragon/readcycle-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/readcycle-backend/pkg/errors"
	"github.com/angelmondragon/readcycle-backend/pkg/logger"
	"github.com/angelmondragon/readcycle-backend/pkg/outbox"
	"github.com/angelmondragon/readcycle-backend/pkg/pagination"
)

const actor = "librarian@example.com"

type harness struct {
	db     *gorm.DB
	svc    Service
	ledger inventory.Ledger
	events *outbox.Repository
}

func newHarness(t *testing.T) harness {
	t.Helper()
	return newHarnessWithPublisher(t, nil)
}

func newHarnessWithPublisher(t *testing.T, publisher outboxPublisher) harness {
	t.Helper()
	db := dbtest.Open(t)
	events := outbox.NewRepository(db)
	if publisher == nil {
		publisher = outbox.NewService(events, logger.Nop())
	}
	ledger := inventory.NewLedger(db)
	svc, err := NewService(dbpkg.FromGorm(db), NewRepository(db), ledger, inventory.NewLocalLocker(), publisher, nil, logger.Nop())
	require.NoError(t, err)
	return harness{db: db, svc: svc, ledger: ledger, events: events}
}

func (h harness) book(t *testing.T, category string, qty int) models.Book {
	t.Helper()
	book := models.Book{Category: category, Title: category + " " + uuid.NewString(), Quantity: qty, IsActive: true}
	require.NoError(t, h.db.Create(&book).Error)
	return book
}

func (h harness) quantity(t *testing.T, bookID uuid.UUID) inventory.State {
	t.Helper()
	state, err := h.ledger.CurrentState(context.Background(), nil, bookID)
	require.NoError(t, err)
	return state
}

func (h harness) borrowedCount(t *testing.T, patronID, bookID uuid.UUID) int64 {
	t.Helper()
	var count int64
	require.NoError(t, h.db.Model(&models.Loan{}).
		Where("patron_id = ? AND book_id = ? AND status = ?", patronID, bookID, enums.LoanStatusBorrowed).
		Count(&count).Error)
	return count
}

func TestCreateLoanDecrementsQuantity(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	book := h.book(t, "Fiction", 3)
	patron := uuid.New()

	loan, err := h.svc.CreateLoan(ctx, actor, patron, book.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.LoanStatusBorrowed, loan.Status)
	assert.Equal(t, "Fiction", loan.Category)
	assert.Equal(t, actor, loan.CreatedBy)

	state := h.quantity(t, book.ID)
	assert.Equal(t, 2, state.Quantity)
	assert.Equal(t, enums.BookStatusAvailable, state.Status)

	events, err := h.events.ListByAggregate(ctx, enums.AggregateLoan, loan.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, enums.EventLoanCreated, events[0].EventType)
}

func TestConcurrentLoansOnLastCopy(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	book := h.book(t, "Fiction", 1)

	patrons := []uuid.UUID{uuid.New(), uuid.New()}
	errs := make([]error, len(patrons))
	var wg sync.WaitGroup
	for i, patron := range patrons {
		wg.Add(1)
		go func(i int, patron uuid.UUID) {
			defer wg.Done()
			_, errs[i] = h.svc.CreateLoan(ctx, actor, patron, book.ID)
		}(i, patron)
	}
	wg.Wait()

	var ok, outOfStock int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case pkgerrors.Is(err, pkgerrors.CodeOutOfStock):
			outOfStock++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, outOfStock)

	state := h.quantity(t, book.ID)
	assert.Equal(t, 0, state.Quantity)
	assert.Equal(t, enums.BookStatusUnavailable, state.Status)

	var loans int64
	require.NoError(t, h.db.Model(&models.Loan{}).Where("book_id = ?", book.ID).Count(&loans).Error)
	assert.EqualValues(t, 1, loans)

	stock, err := h.events.ListByAggregate(ctx, enums.AggregateBook, book.ID)
	require.NoError(t, err)
	require.Len(t, stock, 1)
	assert.Equal(t, enums.EventBookOutOfStock, stock[0].EventType)
}

func TestSameBookTwiceIsAlreadyBorrowed(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	book := h.book(t, "History", 5)
	patron := uuid.New()

	_, err := h.svc.CreateLoan(ctx, actor, patron, book.ID)
	require.NoError(t, err)

	_, err = h.svc.CreateLoan(ctx, actor, patron, book.ID)
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeAlreadyBorrowed), "got %v", err)
	assert.Equal(t, 4, h.quantity(t, book.ID).Quantity)
	assert.EqualValues(t, 1, h.borrowedCount(t, patron, book.ID))
}

func TestCategoryRuleBlocksUntilReturn(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	bookA := h.book(t, "Fiction", 2)
	bookB := h.book(t, "Fiction", 2)
	patron := uuid.New()

	_, err := h.svc.CreateLoan(ctx, actor, patron, bookA.ID)
	require.NoError(t, err)

	eligibility, err := h.svc.CheckEligibility(ctx, patron, bookB.ID)
	require.NoError(t, err)
	assert.False(t, eligibility.Eligible)
	assert.Equal(t, ReasonSameCategory, eligibility.Reason)

	_, err = h.svc.CreateLoan(ctx, actor, patron, bookB.ID)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeAlreadyBorrowed), "got %v", err)

	_, err = h.svc.ReturnLoan(ctx, actor, patron, bookA.ID)
	require.NoError(t, err)

	eligibility, err = h.svc.CheckEligibility(ctx, patron, bookB.ID)
	require.NoError(t, err)
	assert.True(t, eligibility.Eligible)

	_, err = h.svc.CreateLoan(ctx, actor, patron, bookB.ID)
	require.NoError(t, err)
}

func TestCategoryRuleFollowsRecategorizedBook(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	bookA := h.book(t, "Fiction", 2)
	bookB := h.book(t, "History", 2)
	bookC := h.book(t, "Fiction", 2)
	patron := uuid.New()

	_, err := h.svc.CreateLoan(ctx, actor, patron, bookA.ID)
	require.NoError(t, err)

	auditor, err := activity.NewAuditor(activity.NewRepository(h.db), nil, logger.Nop())
	require.NoError(t, err)
	catalog, err := books.NewService(dbpkg.FromGorm(h.db), books.NewRepository(h.db), inventory.NewLocalLocker(), auditor, logger.Nop())
	require.NoError(t, err)
	history := "History"
	_, err = catalog.Update(ctx, actor, bookA.ID, books.UpdateBookInput{Category: &history})
	require.NoError(t, err)

	eligibility, err := h.svc.CheckEligibility(ctx, patron, bookB.ID)
	require.NoError(t, err)
	assert.False(t, eligibility.Eligible)
	assert.Equal(t, ReasonSameCategory, eligibility.Reason)

	_, err = h.svc.CreateLoan(ctx, actor, patron, bookB.ID)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeAlreadyBorrowed), "got %v", err)
	assert.EqualValues(t, 0, h.borrowedCount(t, patron, bookB.ID))

	// The old category is free again.
	_, err = h.svc.CreateLoan(ctx, actor, patron, bookC.ID)
	require.NoError(t, err)
}

func TestCategoryMatchIsLiteral(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	lower := h.book(t, "fiction", 1)
	upper := h.book(t, "Fiction", 1)
	patron := uuid.New()

	_, err := h.svc.CreateLoan(ctx, actor, patron, lower.ID)
	require.NoError(t, err)
	_, err = h.svc.CreateLoan(ctx, actor, patron, upper.ID)
	require.NoError(t, err)
}

func TestReturnLoanTwiceIncrementsOnce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	book := h.book(t, "Science", 1)
	patron := uuid.New()

	_, err := h.svc.CreateLoan(ctx, actor, patron, book.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, h.quantity(t, book.ID).Quantity)

	returned, err := h.svc.ReturnLoan(ctx, actor, patron, book.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.LoanStatusReturned, returned.Status)
	require.NotNil(t, returned.ReturnedAt)

	_, err = h.svc.ReturnLoan(ctx, actor, patron, book.ID)
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound), "got %v", err)

	state := h.quantity(t, book.ID)
	assert.Equal(t, 1, state.Quantity)
	assert.Equal(t, enums.BookStatusAvailable, state.Status)

	stock, err := h.events.ListByAggregate(ctx, enums.AggregateBook, book.ID)
	require.NoError(t, err)
	require.Len(t, stock, 2)
	assert.Equal(t, enums.EventBookBackInStock, stock[1].EventType)
}

func TestReturnWithoutLoanIsNotFound(t *testing.T) {
	h := newHarness(t)
	book := h.book(t, "Science", 1)

	_, err := h.svc.ReturnLoan(context.Background(), actor, uuid.New(), book.ID)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound), "got %v", err)
	assert.Equal(t, 1, h.quantity(t, book.ID).Quantity)
}

func TestInactiveBookCannotBeBorrowed(t *testing.T) {
	h := newHarness(t)
	book := h.book(t, "Poetry", 2)
	require.NoError(t, h.db.Model(&models.Book{}).Where("id = ?", book.ID).Update("is_active", false).Error)

	_, err := h.svc.CreateLoan(context.Background(), actor, uuid.New(), book.ID)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound), "got %v", err)
	assert.Equal(t, 2, h.quantity(t, book.ID).Quantity)
}

func TestMissingActorIsUnauthenticated(t *testing.T) {
	h := newHarness(t)
	book := h.book(t, "Poetry", 2)

	_, err := h.svc.CreateLoan(context.Background(), "  ", uuid.New(), book.ID)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeUnauthorized), "got %v", err)
	_, err = h.svc.ReturnLoan(context.Background(), "", uuid.New(), book.ID)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeUnauthorized), "got %v", err)
}

type failingPublisher struct{}

func (failingPublisher) Emit(context.Context, *gorm.DB, outbox.DomainEvent) error {
	return errors.New("outbox down")
}

func TestCreateLoanIsAllOrNothing(t *testing.T) {
	h := newHarnessWithPublisher(t, failingPublisher{})
	book := h.book(t, "Drama", 2)
	patron := uuid.New()

	_, err := h.svc.CreateLoan(context.Background(), actor, patron, book.ID)
	require.Error(t, err)

	assert.Equal(t, 2, h.quantity(t, book.ID).Quantity)
	assert.EqualValues(t, 0, h.borrowedCount(t, patron, book.ID))
}

func TestLoanHookFailureRollsBackBorrow(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	book := h.book(t, "Poetry", 2)
	patron := uuid.New()

	var seen uuid.UUID
	hook := func(_ context.Context, tx *gorm.DB, loan *models.Loan) error {
		seen = loan.ID
		var count int64
		require.NoError(t, tx.Model(&models.Loan{}).Where("id = ?", loan.ID).Count(&count).Error)
		require.EqualValues(t, 1, count)
		return pkgerrors.New(pkgerrors.CodeInternal, "hook failed")
	}

	_, err := h.svc.CreateLoan(ctx, actor, patron, book.ID, hook)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeInternal), "got %v", err)
	assert.NotEqual(t, uuid.Nil, seen)
	assert.EqualValues(t, 0, h.borrowedCount(t, patron, book.ID))
	assert.Equal(t, 2, h.quantity(t, book.ID).Quantity)
}

func TestHistoryForPatronPagesNewestFirst(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	patron := uuid.New()
	other := uuid.New()

	for _, category := range []string{"A", "B", "C"} {
		book := h.book(t, category, 2)
		_, err := h.svc.CreateLoan(ctx, actor, patron, book.ID)
		require.NoError(t, err)
		_, err = h.svc.CreateLoan(ctx, actor, other, book.ID)
		require.NoError(t, err)
	}

	first, err := h.svc.HistoryForPatron(ctx, patron, pagination.Params{Limit: 2})
	require.NoError(t, err)
	require.Len(t, first.Loans, 2)
	require.NotEmpty(t, first.NextCursor)

	second, err := h.svc.HistoryForPatron(ctx, patron, pagination.Params{Limit: 2, Cursor: first.NextCursor})
	require.NoError(t, err)
	require.Len(t, second.Loans, 1)
	assert.Empty(t, second.NextCursor)

	all := append(append([]models.Loan{}, first.Loans...), second.Loans...)
	seen := map[uuid.UUID]bool{}
	for i, loan := range all {
		assert.Equal(t, patron, loan.PatronID)
		assert.False(t, seen[loan.ID], "loan %s listed twice", loan.ID)
		seen[loan.ID] = true
		if i > 0 {
			prev := all[i-1]
			newer := prev.CreatedAt.After(loan.CreatedAt) ||
				(prev.CreatedAt.Equal(loan.CreatedAt) && prev.ID.String() > loan.ID.String())
			assert.True(t, newer, "history not ordered newest first at %d", i)
		}
	}
}

func TestHistoryRejectsBadCursor(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.HistoryForPatron(context.Background(), uuid.New(), pagination.Params{Cursor: "not-base64!"})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation), "got %v", err)
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	db := dbtest.Open(t)
	if _, err := NewService(nil, NewRepository(db), inventory.NewLedger(db), inventory.NewLocalLocker(), outbox.NewService(outbox.NewRepository(db), nil), nil, logger.Nop()); err == nil {
		t.Fatalf("expected error without tx runner")
	}
	if _, err := NewService(dbpkg.FromGorm(db), NewRepository(db), inventory.NewLedger(db), nil, outbox.NewService(outbox.NewRepository(db), nil), nil, logger.Nop()); err == nil {
		t.Fatalf("expected error without locker")
	}
}
