package users

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/readcycle-backend/internal/activity"
	"github.com/angelmondragon/readcycle-backend/pkg/db/models"
	"github.com/angelmondragon/readcycle-backend/pkg/enums"
)

// UserRepository captures the persistence used by the user service.
type UserRepository interface {
	WithTx(tx *gorm.DB) UserRepository
	Create(ctx context.Context, user *models.User) error
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	EmailTaken(ctx context.Context, email string, excludeID uuid.UUID) (bool, error)
	Save(ctx context.Context, user *models.User) error
	HasActiveLoans(ctx context.Context, userID uuid.UUID) (bool, error)
	Delete(ctx context.Context, userID uuid.UUID) (int64, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type passwordHasher interface {
	Hash(password string) (string, error)
	Verify(password, encoded string) (bool, error)
}

type auditor interface {
	RecordCreate(ctx context.Context, group enums.ActivityGroup, kind enums.ActivityType, snap activity.Snapshot, actor string)
	RecordUpdate(ctx context.Context, group enums.ActivityGroup, kind enums.ActivityType, before, after activity.Snapshot, actor string)
	RecordDelete(ctx context.Context, group enums.ActivityGroup, kind enums.ActivityType, identity activity.Field, actor string)
}
