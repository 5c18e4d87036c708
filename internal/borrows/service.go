package borrows

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/angelmondragon/readcycle-backend/internal/inventory"
	dbpkg "github.com/angelmondragon/readcycle-backend/pkg/db"
	"github.com/angelmondragon/readcycle-backend/pkg/db/models"
	"github.com/angelmondragon/readcycle-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/readcycle-backend/pkg/errors"
	"github.com/angelmondragon/readcycle-backend/pkg/logger"
	"github.com/angelmondragon/readcycle-backend/pkg/metrics"
	"github.com/angelmondragon/readcycle-backend/pkg/outbox"
	"github.com/angelmondragon/readcycle-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/readcycle-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// LoanHook runs inside the loan creation transaction after the loan row is
// written. An error rolls the whole borrow back.
type LoanHook func(ctx context.Context, tx *gorm.DB, loan *models.Loan) error

// Service runs the loan lifecycle: BORROWED -> RETURNED.
type Service interface {
	CheckEligibility(ctx context.Context, patronID, bookID uuid.UUID) (Eligibility, error)
	CreateLoan(ctx context.Context, actor string, patronID, bookID uuid.UUID, hooks ...LoanHook) (*models.Loan, error)
	ReturnLoan(ctx context.Context, actor string, patronID, bookID uuid.UUID) (*models.Loan, error)
	HistoryForPatron(ctx context.Context, patronID uuid.UUID, params pagination.Params) (*HistoryPage, error)
}

// HistoryPage is one page of a patron's loans, newest first.
type HistoryPage struct {
	Loans      []models.Loan
	NextCursor string
}

type service struct {
	tx      txRunner
	repo    LoanRepository
	ledger  inventory.Ledger
	locker  inventory.Locker
	outbox  outboxPublisher
	metrics *metrics.LoanMetrics
	logg    *logger.Logger
	tracer  trace.Tracer
	now     func() time.Time
}

// NewService builds the borrow workflow. metrics may be nil.
func NewService(
	tx txRunner,
	repo LoanRepository,
	ledger inventory.Ledger,
	locker inventory.Locker,
	publisher outboxPublisher,
	loanMetrics *metrics.LoanMetrics,
	logg *logger.Logger,
) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("loan repository required")
	}
	if ledger == nil {
		return nil, fmt.Errorf("inventory ledger required")
	}
	if locker == nil {
		return nil, fmt.Errorf("book locker required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		tx:      tx,
		repo:    repo,
		ledger:  ledger,
		locker:  locker,
		outbox:  publisher,
		metrics: loanMetrics,
		logg:    logg,
		tracer:  otel.Tracer("readcycle/borrows"),
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) CheckEligibility(ctx context.Context, patronID, bookID uuid.UUID) (Eligibility, error) {
	if err := validateIDs(patronID, bookID); err != nil {
		return Eligibility{}, err
	}
	book, err := s.ledger.CurrentState(ctx, nil, bookID)
	if err != nil {
		return Eligibility{}, err
	}
	if !book.IsActive {
		return Eligibility{}, inactiveBook(bookID)
	}
	return evaluate(ctx, s.repo, patronID, book)
}

func (s *service) CreateLoan(ctx context.Context, actor string, patronID, bookID uuid.UUID, hooks ...LoanHook) (loan *models.Loan, err error) {
	started := time.Now()
	ctx, span := s.startSpan(ctx, "borrows.CreateLoan", patronID, bookID)
	defer func() {
		s.finish(span, "create", started, err)
	}()

	if err := validateActor(actor); err != nil {
		return nil, err
	}
	if err := validateIDs(patronID, bookID); err != nil {
		return nil, err
	}

	release, err := s.locker.Acquire(ctx, bookID.String())
	if err != nil {
		return nil, err
	}
	defer release()

	var remaining inventory.State
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		book, err := s.ledger.Lock(ctx, tx, bookID)
		if err != nil {
			return err
		}
		if !book.IsActive {
			return inactiveBook(bookID)
		}

		eligibility, err := evaluate(ctx, repo, patronID, book)
		if err != nil {
			return err
		}
		if !eligibility.Eligible {
			return eligibility.Err()
		}

		remaining, err = s.ledger.Decrement(ctx, tx, bookID)
		if err != nil {
			return err
		}

		loan = &models.Loan{
			PatronID:  patronID,
			BookID:    bookID,
			Category:  book.Category,
			Status:    enums.LoanStatusBorrowed,
			CreatedBy: actor,
			UpdatedBy: actor,
		}
		if err := repo.Create(ctx, loan); err != nil {
			if dbpkg.IsUniqueViolation(err, "") {
				return pkgerrors.Wrap(pkgerrors.CodeAlreadyBorrowed, err, alreadyBorrowedMessage)
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create loan")
		}

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventLoanCreated,
			AggregateType: enums.AggregateLoan,
			AggregateID:   loan.ID,
			Actor:         &outbox.ActorRef{Email: actor},
			Data: payloads.LoanCreatedEvent{
				LoanID:            loan.ID,
				PatronID:          patronID,
				BookID:            bookID,
				Category:          book.Category,
				RemainingQuantity: remaining.Quantity,
			},
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit loan created")
		}
		for _, hook := range hooks {
			if err := hook(ctx, tx, loan); err != nil {
				return err
			}
		}
		if remaining.Quantity == 0 {
			return s.emitStock(ctx, tx, enums.EventBookOutOfStock, actor, remaining)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"loan_id":            loan.ID.String(),
		"book_id":            bookID.String(),
		"patron_id":          patronID.String(),
		"remaining_quantity": remaining.Quantity,
	})
	s.logg.Info(logCtx, "loan created")
	return loan, nil
}

func (s *service) ReturnLoan(ctx context.Context, actor string, patronID, bookID uuid.UUID) (loan *models.Loan, err error) {
	started := time.Now()
	ctx, span := s.startSpan(ctx, "borrows.ReturnLoan", patronID, bookID)
	defer func() {
		s.finish(span, "return", started, err)
	}()

	if err := validateActor(actor); err != nil {
		return nil, err
	}
	if err := validateIDs(patronID, bookID); err != nil {
		return nil, err
	}

	release, err := s.locker.Acquire(ctx, bookID.String())
	if err != nil {
		return nil, err
	}
	defer release()

	var remaining inventory.State
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		active, err := repo.FindActive(ctx, patronID, bookID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load active loan")
		}
		if active == nil {
			return noActiveLoan(patronID, bookID)
		}

		now := s.now()
		updated, err := repo.MarkReturned(ctx, active.ID, actor, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mark loan returned")
		}
		if !updated {
			return noActiveLoan(patronID, bookID)
		}

		remaining, err = s.ledger.Increment(ctx, tx, bookID)
		if err != nil {
			return err
		}

		active.Status = enums.LoanStatusReturned
		active.ReturnedAt = &now
		active.UpdatedBy = actor
		active.UpdatedAt = now
		loan = active

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventLoanReturned,
			AggregateType: enums.AggregateLoan,
			AggregateID:   loan.ID,
			Actor:         &outbox.ActorRef{Email: actor},
			Data: payloads.LoanReturnedEvent{
				LoanID:            loan.ID,
				PatronID:          patronID,
				BookID:            bookID,
				RemainingQuantity: remaining.Quantity,
			},
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit loan returned")
		}
		if remaining.Quantity == 1 {
			return s.emitStock(ctx, tx, enums.EventBookBackInStock, actor, remaining)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"loan_id":            loan.ID.String(),
		"book_id":            bookID.String(),
		"patron_id":          patronID.String(),
		"remaining_quantity": remaining.Quantity,
	})
	s.logg.Info(logCtx, "loan returned")
	return loan, nil
}

func (s *service) HistoryForPatron(ctx context.Context, patronID uuid.UUID, params pagination.Params) (*HistoryPage, error) {
	if patronID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "patron id required")
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	limit := pagination.NormalizeLimit(params.Limit)

	loans, err := s.repo.ListByPatron(ctx, patronID, cursor, limit+1)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list loan history")
	}

	page := &HistoryPage{Loans: loans}
	if len(loans) > limit {
		page.Loans = loans[:limit]
		last := page.Loans[limit-1]
		page.NextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return page, nil
}

func (s *service) emitStock(ctx context.Context, tx *gorm.DB, eventType enums.OutboxEventType, actor string, state inventory.State) error {
	err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateBook,
		AggregateID:   state.BookID,
		Actor:         &outbox.ActorRef{Email: actor},
		Data:          payloads.BookStockEvent{BookID: state.BookID, Quantity: state.Quantity},
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit stock event")
	}
	return nil
}

func (s *service) startSpan(ctx context.Context, name string, patronID, bookID uuid.UUID) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("patron.id", patronID.String()),
		attribute.String("book.id", bookID.String()),
	))
}

func (s *service) finish(span trace.Span, operation string, started time.Time, err error) {
	outcome := outcomeFor(err)
	span.SetAttributes(attribute.String("loan.outcome", outcome))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
	s.metrics.Observe(operation, outcome, time.Since(started))
}

func outcomeFor(err error) string {
	if err == nil {
		return metrics.OutcomeOK
	}
	switch pkgerrors.As(err).Code() {
	case pkgerrors.CodeOutOfStock:
		return metrics.OutcomeOutOfStock
	case pkgerrors.CodeAlreadyBorrowed:
		return metrics.OutcomeAlreadyBorrowed
	case pkgerrors.CodeNotFound:
		return metrics.OutcomeNotFound
	default:
		return metrics.OutcomeError
	}
}

func validateActor(actor string) error {
	if strings.TrimSpace(actor) == "" {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "actor identity required")
	}
	return nil
}

func validateIDs(patronID, bookID uuid.UUID) error {
	if patronID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "patron id required")
	}
	if bookID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "book id required")
	}
	return nil
}

func inactiveBook(bookID uuid.UUID) error {
	return pkgerrors.New(pkgerrors.CodeNotFound, "book not found").
		WithDetails(map[string]any{"book_id": bookID.String()})
}

func noActiveLoan(patronID, bookID uuid.UUID) error {
	return pkgerrors.New(pkgerrors.CodeNotFound, "no borrowed loan for this book").
		WithDetails(map[string]any{
			"patron_id": patronID.String(),
			"book_id":   bookID.String(),
		})
}
