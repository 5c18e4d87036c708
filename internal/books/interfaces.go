package books

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/readcycle-backend/internal/activity"
	"github.com/angelmondragon/readcycle-backend/pkg/db/models"
	"github.com/angelmondragon/readcycle-backend/pkg/enums"
	"github.com/angelmondragon/readcycle-backend/pkg/pagination"
)

// BookRepository captures the catalog persistence used by the service.
type BookRepository interface {
	WithTx(tx *gorm.DB) BookRepository
	Create(ctx context.Context, book *models.Book) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Book, error)
	FindForUpdate(ctx context.Context, id uuid.UUID) (*models.Book, error)
	TitleExists(ctx context.Context, title string, excludeID uuid.UUID) (bool, error)
	Save(ctx context.Context, book *models.Book) error
	HasLoans(ctx context.Context, bookID uuid.UUID) (bool, error)
	ActiveLoanCategoryClashes(ctx context.Context, bookID uuid.UUID, category string) (int64, error)
	SyncActiveLoanCategory(ctx context.Context, bookID uuid.UUID, category string) error
	Delete(ctx context.Context, bookID uuid.UUID) (int64, error)
	List(ctx context.Context, params ListParams, cursor *pagination.Cursor, limit int) ([]models.Book, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type auditor interface {
	RecordCreate(ctx context.Context, group enums.ActivityGroup, kind enums.ActivityType, snap activity.Snapshot, actor string)
	RecordUpdate(ctx context.Context, group enums.ActivityGroup, kind enums.ActivityType, before, after activity.Snapshot, actor string)
	RecordDelete(ctx context.Context, group enums.ActivityGroup, kind enums.ActivityType, identity activity.Field, actor string)
}
