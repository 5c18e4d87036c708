package borrows

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/readcycle-backend/pkg/db/models"
	"github.com/angelmondragon/readcycle-backend/pkg/pagination"
)

// LoanRepository defines the persistence surface required by the borrow workflow.
type LoanRepository interface {
	WithTx(tx *gorm.DB) LoanRepository
	Create(ctx context.Context, loan *models.Loan) error
	FindActive(ctx context.Context, patronID, bookID uuid.UUID) (*models.Loan, error)
	FindActiveInCategory(ctx context.Context, patronID uuid.UUID, category string) (*models.Loan, error)
	MarkReturned(ctx context.Context, loanID uuid.UUID, actor string, at time.Time) (bool, error)
	ListByPatron(ctx context.Context, patronID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.Loan, error)
}
