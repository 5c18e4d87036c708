package users

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/readcycle-backend/internal/activity"
	dbpkg "github.com/angelmondragon/readcycle-backend/pkg/db"
	"github.com/angelmondragon/readcycle-backend/pkg/db/models"
	"github.com/angelmondragon/readcycle-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/readcycle-backend/pkg/errors"
	"github.com/angelmondragon/readcycle-backend/pkg/logger"
)

// Service is the patron directory plus audited account management.
type Service interface {
	LookupPatronByEmail(ctx context.Context, email string) (*models.User, error)
	Authenticate(ctx context.Context, email, password string) (*models.User, error)
	Get(ctx context.Context, id uuid.UUID) (*models.User, error)
	Create(ctx context.Context, actor string, input CreateUserInput) (*models.User, error)
	Update(ctx context.Context, actor string, id uuid.UUID, input UpdateUserInput) (*models.User, error)
	Delete(ctx context.Context, actor string, id uuid.UUID) error
}

type service struct {
	tx      txRunner
	repo    UserRepository
	hasher  passwordHasher
	auditor auditor
	logg    *logger.Logger
	now     func() time.Time
}

func NewService(tx txRunner, repo UserRepository, hasher passwordHasher, audit auditor, logg *logger.Logger) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("user repository required")
	}
	if hasher == nil {
		return nil, fmt.Errorf("password hasher required")
	}
	if audit == nil {
		return nil, fmt.Errorf("auditor required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		tx:      tx,
		repo:    repo,
		hasher:  hasher,
		auditor: audit,
		logg:    logg,
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) LookupPatronByEmail(ctx context.Context, email string) (*models.User, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "actor identity required")
	}
	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load user")
	}
	if user == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found").
			WithDetails(map[string]any{"email": email})
	}
	return user, nil
}

// Authenticate checks credentials. Unknown emails and wrong passwords give the
// same error.
func (s *service) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	badCredentials := pkgerrors.New(pkgerrors.CodeUnauthorized, "Bad credentials")
	user, err := s.repo.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load user")
	}
	if user == nil {
		return nil, badCredentials
	}
	ok, err := s.hasher.Verify(password, user.PasswordHash)
	if err != nil || !ok {
		return nil, badCredentials
	}
	return user, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load user")
	}
	if user == nil {
		return nil, userNotFound(id)
	}
	return user, nil
}

func (s *service) Create(ctx context.Context, actor string, input CreateUserInput) (*models.User, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(input.Name)
	email := normalizeEmail(input.Email)
	if name == "" || email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name and email are required")
	}
	role, err := parseRole(input.Role)
	if err != nil {
		return nil, err
	}
	dob, err := parseDate(input.DateOfBirth)
	if err != nil {
		return nil, err
	}
	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, err.Error())
	}

	taken, err := s.repo.EmailTaken(ctx, email, uuid.Nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check email")
	}
	if taken {
		return nil, emailTaken(email)
	}

	user := &models.User{Name: name, Email: email, PasswordHash: hash, DateOfBirth: dob, Role: role}
	if err := s.repo.Create(ctx, user); err != nil {
		if dbpkg.IsUniqueViolation(err, "idx_users_email") {
			return nil, emailTaken(email)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create user")
	}

	s.auditor.RecordCreate(ctx, enums.ActivityGroupUser, enums.ActivityCreateUser, activity.UserSnapshot(*user), actor)
	logCtx := s.logg.WithFields(ctx, map[string]any{"user_id": user.ID.String(), "role": user.Role.String()})
	s.logg.Info(logCtx, "user created")
	return user, nil
}

func (s *service) Update(ctx context.Context, actor string, id uuid.UUID, input UpdateUserInput) (*models.User, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	var (
		before models.User
		after  *models.User
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		user, err := repo.FindByID(ctx, id)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load user")
		}
		if user == nil {
			return userNotFound(id)
		}
		before = *user
		if before.DateOfBirth != nil {
			dob := *before.DateOfBirth
			before.DateOfBirth = &dob
		}

		if err := s.apply(ctx, repo, user, input); err != nil {
			return err
		}
		user.UpdatedAt = s.now()
		if err := repo.Save(ctx, user); err != nil {
			if dbpkg.IsUniqueViolation(err, "idx_users_email") {
				return emailTaken(user.Email)
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "save user")
		}
		after = user
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.auditor.RecordUpdate(ctx, enums.ActivityGroupUser, enums.ActivityUpdateUser, activity.UserSnapshot(before), activity.UserSnapshot(*after), actor)
	return after, nil
}

func (s *service) apply(ctx context.Context, repo UserRepository, user *models.User, input UpdateUserInput) error {
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "name cannot be blank")
		}
		user.Name = name
	}
	if input.Email != nil {
		email := normalizeEmail(*input.Email)
		if email == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "email cannot be blank")
		}
		if email != user.Email {
			taken, err := repo.EmailTaken(ctx, email, user.ID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check email")
			}
			if taken {
				return emailTaken(email)
			}
		}
		user.Email = email
	}
	if input.DateOfBirth != nil {
		dob, err := parseDate(*input.DateOfBirth)
		if err != nil {
			return err
		}
		user.DateOfBirth = dob
	}
	if input.Role != nil {
		role, err := parseRole(*input.Role)
		if err != nil {
			return err
		}
		user.Role = role
	}
	return nil
}

// Delete removes an account. Admins cannot delete themselves and patrons
// holding borrowed books cannot be removed.
func (s *service) Delete(ctx context.Context, actor string, id uuid.UUID) error {
	if err := requireActor(actor); err != nil {
		return err
	}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		user, err := repo.FindByID(ctx, id)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load user")
		}
		if user == nil {
			return userNotFound(id)
		}
		if user.Email == normalizeEmail(actor) {
			return pkgerrors.New(pkgerrors.CodeForbidden, "You can not delete yourself")
		}
		active, err := repo.HasActiveLoans(ctx, id)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check user loans")
		}
		if active {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "user still has borrowed books").
				WithDetails(map[string]any{"user_id": id.String()})
		}
		if _, err := repo.Delete(ctx, id); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete user")
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.auditor.RecordDelete(ctx, enums.ActivityGroupUser, enums.ActivityDeleteUser, activity.UserIdentity(id), actor)
	return nil
}

func parseRole(value string) (enums.UserRole, error) {
	if strings.TrimSpace(value) == "" {
		return enums.UserRoleUser, nil
	}
	role, err := enums.ParseUserRole(value)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid role")
	}
	return role, nil
}

func parseDate(value string) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation(dateLayout, value, time.UTC)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "date_of_birth must be YYYY-MM-DD")
	}
	return &t, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func requireActor(actor string) error {
	if strings.TrimSpace(actor) == "" {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "actor identity required")
	}
	return nil
}

func userNotFound(id uuid.UUID) error {
	return pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("User with id: %s does not exists", id)).
		WithDetails(map[string]any{"user_id": id.String()})
}

func emailTaken(email string) error {
	return pkgerrors.New(pkgerrors.CodeConflict, "Email already exists").
		WithDetails(map[string]any{"email": email})
}
