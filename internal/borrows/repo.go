package borrows

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
	"github.com/angelmondragon/readcycle-backend/pkg/pagination"
)

// Repository persists loans.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a loan repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) LoanRepository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// Create inserts a loan.
func (r *Repository) Create(ctx context.Context, loan *models.Loan) error {
	return r.db.WithContext(ctx).Create(loan).Error
}

// FindActive returns the BORROWED loan for the pair, or nil when there is none.
// Inside a postgres transaction the row stays locked until commit.
func (r *Repository) FindActive(ctx context.Context, patronID, bookID uuid.UUID) (*models.Loan, error) {
	return r.findOne(r.lockable(ctx).
		Where("patron_id = ? AND book_id = ? AND status = ?", patronID, bookID, enums.LoanStatusBorrowed))
}

// FindActiveInCategory returns any BORROWED loan of the patron whose book is
// currently filed under category.
func (r *Repository) FindActiveInCategory(ctx context.Context, patronID uuid.UUID, category string) (*models.Loan, error) {
	return r.findOne(r.db.WithContext(ctx).
		Select("loans.*").
		Joins("JOIN books ON books.id = loans.book_id").
		Where("loans.patron_id = ? AND books.category = ? AND loans.status = ?", patronID, category, enums.LoanStatusBorrowed))
}

// MarkReturned flips a BORROWED loan to RETURNED. It reports false when the
// loan was not in BORROWED anymore.
func (r *Repository) MarkReturned(ctx context.Context, loanID uuid.UUID, actor string, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Loan{}).
		Where("id = ? AND status = ?", loanID, enums.LoanStatusBorrowed).
		Updates(map[string]any{
			"status":      enums.LoanStatusReturned,
			"returned_at": at,
			"updated_by":  actor,
			"updated_at":  at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ListByPatron returns one keyset page of loans, newest first, ties broken by id.
func (r *Repository) ListByPatron(ctx context.Context, patronID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.Loan, error) {
	query := r.db.WithContext(ctx).Where("patron_id = ?", patronID)
	if cursor != nil {
		query = query.Where("((created_at < ?) OR (created_at = ? AND id < ?))", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}
	var loans []models.Loan
	err := query.
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&loans).Error
	return loans, err
}

func (r *Repository) lockable(ctx context.Context) *gorm.DB {
	conn := r.db.WithContext(ctx)
	if dbpkg.SupportsRowLocks(conn) {
		conn = conn.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return conn
}

func (r *Repository) findOne(query *gorm.DB) (*models.Loan, error) {
	var loan models.Loan
	if err := query.Take(&loan).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &loan, nil
}
