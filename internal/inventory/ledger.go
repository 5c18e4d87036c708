package inventory

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	dbpkg "github.com/angelmondragon/readcycle-backend/pkg/db"
	"github.com/angelmondragon/readcycle-backend/pkg/db/models"
	"github.com/angelmondragon/readcycle-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/readcycle-backend/pkg/errors"
)

// State is a read-only snapshot of the inventory fields of a book.
type State struct {
	BookID   uuid.UUID
	Category string
	Quantity int
	Status   enums.BookStatus
	IsActive bool
}

// Ledger is the only writer of Book.quantity outside catalog edits.
//
// Every method accepts an optional transaction. Pass the transaction that also
// writes the loan so the quantity change and the loan commit together.
type Ledger interface {
	// Decrement removes one copy from the shelf. It fails with OUT_OF_STOCK when
	// no copy is left and NOT_FOUND when the book does not exist.
	Decrement(ctx context.Context, tx *gorm.DB, bookID uuid.UUID) (State, error)
	// Increment puts one copy back on the shelf.
	Increment(ctx context.Context, tx *gorm.DB, bookID uuid.UUID) (State, error)
	// CurrentState reads quantity, status and the active flag.
	CurrentState(ctx context.Context, tx *gorm.DB, bookID uuid.UUID) (State, error)
	// Lock reads the book row and, on databases that support it, holds a row
	// lock on it until tx ends.
	Lock(ctx context.Context, tx *gorm.DB, bookID uuid.UUID) (State, error)
}

type ledger struct {
	db *gorm.DB
}

// NewLedger binds the ledger to the shared connection used when no
// transaction is supplied.
func NewLedger(db *gorm.DB) Ledger {
	return &ledger{db: db}
}

func (l *ledger) conn(ctx context.Context, tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx.WithContext(ctx)
	}
	return l.db.WithContext(ctx)
}

func (l *ledger) Decrement(ctx context.Context, tx *gorm.DB, bookID uuid.UUID) (State, error) {
	conn := l.conn(ctx, tx)

	// The quantity guard lives in the WHERE clause so the read and the write are
	// a single statement; a concurrent decrement can never push below zero.
	res := conn.Model(&models.Book{}).
		Where("id = ? AND quantity > 0", bookID).
		Updates(map[string]any{
			"quantity":   gorm.Expr("quantity - 1"),
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return State{}, pkgerrors.Wrap(pkgerrors.CodeInternal, res.Error, "decrement book quantity")
	}
	if res.RowsAffected == 0 {
		if _, err := l.CurrentState(ctx, tx, bookID); err != nil {
			return State{}, err
		}
		return State{}, pkgerrors.New(pkgerrors.CodeOutOfStock, "Sorry the book you borrow is unavailable").
			WithDetails(map[string]any{"book_id": bookID.String()})
	}
	return l.CurrentState(ctx, tx, bookID)
}

func (l *ledger) Increment(ctx context.Context, tx *gorm.DB, bookID uuid.UUID) (State, error) {
	conn := l.conn(ctx, tx)

	res := conn.Model(&models.Book{}).
		Where("id = ?", bookID).
		Updates(map[string]any{
			"quantity":   gorm.Expr("quantity + 1"),
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return State{}, pkgerrors.Wrap(pkgerrors.CodeInternal, res.Error, "increment book quantity")
	}
	if res.RowsAffected == 0 {
		return State{}, bookNotFound(bookID)
	}
	return l.CurrentState(ctx, tx, bookID)
}

func (l *ledger) CurrentState(ctx context.Context, tx *gorm.DB, bookID uuid.UUID) (State, error) {
	return l.load(l.conn(ctx, tx), bookID)
}

func (l *ledger) Lock(ctx context.Context, tx *gorm.DB, bookID uuid.UUID) (State, error) {
	conn := l.conn(ctx, tx)
	if dbpkg.SupportsRowLocks(conn) {
		conn = conn.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return l.load(conn, bookID)
}

func (l *ledger) load(conn *gorm.DB, bookID uuid.UUID) (State, error) {
	var book models.Book
	err := conn.
		Select("id", "category", "quantity", "is_active").
		Where("id = ?", bookID).
		Take(&book).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return State{}, bookNotFound(bookID)
		}
		return State{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load book inventory")
	}
	return stateOf(book), nil
}

func stateOf(book models.Book) State {
	return State{
		BookID:   book.ID,
		Category: book.Category,
		Quantity: book.Quantity,
		Status:   book.Status(),
		IsActive: book.IsActive,
	}
}

func bookNotFound(bookID uuid.UUID) error {
	return pkgerrors.New(pkgerrors.CodeNotFound, "book not found").
		WithDetails(map[string]any{"book_id": bookID.String()})
}
