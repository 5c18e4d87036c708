package cart

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/readcycle-backend/internal/borrows"
	"github.com/angelmondragon/readcycle-backend/pkg/db/models"
)

// CartRepository defines the persistence surface required by the cart service.
type CartRepository interface {
	WithTx(tx *gorm.DB) CartRepository
	Create(ctx context.Context, item *models.CartItem) error
	ListByPatron(ctx context.Context, patronID uuid.UUID) ([]models.CartItem, error)
	FindOwned(ctx context.Context, patronID uuid.UUID, ids []uuid.UUID) ([]models.CartItem, error)
	DeleteOwned(ctx context.Context, patronID uuid.UUID, ids []uuid.UUID) (int64, error)
}

// borrowWorkflow is the slice of borrows.Service the cart depends on.
type borrowWorkflow interface {
	CheckEligibility(ctx context.Context, patronID, bookID uuid.UUID) (borrows.Eligibility, error)
	CreateLoan(ctx context.Context, actor string, patronID, bookID uuid.UUID, hooks ...borrows.LoanHook) (*models.Loan, error)
}
