package users

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/readcycle-backend/internal/activity"
	"github.com/angelmondragon/readcycle-backend/pkg/config"
	dbpkg "github.com/angelmondragon/readcycle-backend/pkg/db"
	"github.com/angelmondragon/readcycle-backend/pkg/db/dbtest"
	"github.com/angelmondragon/readcycle-backend/pkg/db/models"
	"github.com/angelmondragon/readcycle-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/readcycle-backend/pkg/errors"
	"github.com/angelmondragon/readcycle-backend/pkg/logger"
	"github.com/angelmondragon/readcycle-backend/pkg/security"
)

const admin = "admin@example.com"

func newTestService(t *testing.T) (Service, *gorm.DB) {
	t.Helper()
	db := dbtest.Open(t)
	auditor, err := activity.NewAuditor(activity.NewRepository(db), nil, logger.Nop())
	require.NoError(t, err)
	hasher := security.NewHasher(config.PasswordConfig{ArgonMemoryKB: 8192, ArgonTime: 1, ArgonParallelism: 1, ArgonSaltLen: 16, ArgonKeyLen: 32})
	svc, err := NewService(dbpkg.FromGorm(db), NewRepository(db), hasher, auditor, logger.Nop())
	require.NoError(t, err)
	return svc, db
}

func auditRows(t *testing.T, db *gorm.DB, kind enums.ActivityType) []models.ActivityLog {
	t.Helper()
	var rows []models.ActivityLog
	require.NoError(t, db.Where("activity_type = ?", kind).Find(&rows).Error)
	return rows
}

func strPtr(v string) *string { return &v }

func TestCreateUserHashesPasswordAndAudits(t *testing.T) {
	svc, db := newTestService(t)

	user, err := svc.Create(context.Background(), admin, CreateUserInput{
		Name:        "Ann Reader",
		Email:       " Ann@Example.com ",
		Password:    "correct-horse",
		DateOfBirth: "1990-04-02",
	})
	require.NoError(t, err)
	assert.Equal(t, "ann@example.com", user.Email)
	assert.Equal(t, enums.UserRoleUser, user.Role)
	assert.NotContains(t, user.PasswordHash, "correct-horse")
	require.NotNil(t, user.DateOfBirth)

	rows := auditRows(t, db, enums.ActivityCreateUser)
	require.Len(t, rows, 1)
	descriptors, err := activity.DecodeDescription(rows[0].Description)
	require.NoError(t, err)
	keys := []string{}
	for _, d := range descriptors {
		keys = append(keys, d.Key)
	}
	assert.Equal(t, []string{"userId", "name", "email", "dateOfBirth", "role"}, keys)
}

func TestCreateUserRejectsDuplicateEmail(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	input := CreateUserInput{Name: "Ann", Email: "ann@example.com", Password: "correct-horse"}

	_, err := svc.Create(ctx, admin, input)
	require.NoError(t, err)
	_, err = svc.Create(ctx, admin, input)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeConflict), "got %v", err)

	input.Email = "bob@example.com"
	input.Role = "LIBRARIAN"
	_, err = svc.Create(ctx, admin, input)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation), "got %v", err)
}

func TestLookupPatronByEmail(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	created, err := svc.Create(ctx, admin, CreateUserInput{Name: "Ann", Email: "ann@example.com", Password: "correct-horse"})
	require.NoError(t, err)

	found, err := svc.LookupPatronByEmail(ctx, "ANN@example.com")
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)

	_, err = svc.LookupPatronByEmail(ctx, "ghost@example.com")
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound), "got %v", err)

	_, err = svc.LookupPatronByEmail(ctx, "")
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeUnauthorized), "got %v", err)
}

func TestUpdateUserAuditsOnlyChangedFields(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	user, err := svc.Create(ctx, admin, CreateUserInput{Name: "Ann", Email: "ann@example.com", Password: "correct-horse"})
	require.NoError(t, err)

	_, err = svc.Update(ctx, admin, user.ID, UpdateUserInput{Name: strPtr("Ann")})
	require.NoError(t, err)
	assert.Empty(t, auditRows(t, db, enums.ActivityUpdateUser))

	updated, err := svc.Update(ctx, admin, user.ID, UpdateUserInput{Role: strPtr("admin"), DateOfBirth: strPtr("1985-12-31")})
	require.NoError(t, err)
	assert.Equal(t, enums.UserRoleAdmin, updated.Role)

	rows := auditRows(t, db, enums.ActivityUpdateUser)
	require.Len(t, rows, 1)
	descriptors, err := activity.DecodeDescription(rows[0].Description)
	require.NoError(t, err)
	assert.Equal(t, []activity.Descriptor{
		{Key: "userId", Value: user.ID.String(), Label: "User id"},
		{Key: "dateOfBirth", Value: "none → 1985-12-31", Label: "Date of birth"},
		{Key: "role", Value: "USER → ADMIN", Label: "Role"},
	}, descriptors)
}

func TestDeleteUser(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	self, err := svc.Create(ctx, admin, CreateUserInput{Name: "Admin", Email: admin, Password: "correct-horse", Role: "ADMIN"})
	require.NoError(t, err)
	patron, err := svc.Create(ctx, admin, CreateUserInput{Name: "Ann", Email: "ann@example.com", Password: "correct-horse"})
	require.NoError(t, err)

	err = svc.Delete(ctx, admin, self.ID)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeForbidden), "got %v", err)

	loan := models.Loan{PatronID: patron.ID, BookID: uuid.New(), Category: "Fiction", Status: enums.LoanStatusBorrowed}
	require.NoError(t, db.Create(&loan).Error)
	err = svc.Delete(ctx, admin, patron.ID)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeStateConflict), "got %v", err)

	require.NoError(t, db.Model(&models.Loan{}).Where("id = ?", loan.ID).Update("status", enums.LoanStatusReturned).Error)
	require.NoError(t, svc.Delete(ctx, admin, patron.ID))

	_, err = svc.Get(ctx, patron.ID)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound), "got %v", err)
	require.Len(t, auditRows(t, db, enums.ActivityDeleteUser), 1)

	err = svc.Delete(ctx, admin, uuid.New())
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound), "got %v", err)
}

func TestAuthenticate(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	created, err := svc.Create(ctx, admin, CreateUserInput{Name: "Ann", Email: "ann@example.com", Password: "correct-horse"})
	require.NoError(t, err)

	user, err := svc.Authenticate(ctx, "ann@example.com", "correct-horse")
	require.NoError(t, err)
	assert.Equal(t, created.ID, user.ID)

	_, err = svc.Authenticate(ctx, "ann@example.com", "wrong-horse")
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeUnauthorized), "got %v", err)
	_, err = svc.Authenticate(ctx, "ghost@example.com", "correct-horse")
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeUnauthorized), "got %v", err)
}
