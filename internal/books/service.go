package books

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/readcycle-backend/internal/activity"
	"github.com/angelmondragon/readcycle-backend/internal/inventory"
	dbpkg "github.com/angelmondragon/readcycle-backend/pkg/db"
	"github.com/angelmondragon/readcycle-backend/pkg/db/models"
	"github.com/angelmondragon/readcycle-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/readcycle-backend/pkg/errors"
	"github.com/angelmondragon/readcycle-backend/pkg/logger"
	"github.com/angelmondragon/readcycle-backend/pkg/pagination"
)

// Service manages the catalog. Every mutation is audited after it commits.
type Service interface {
	Create(ctx context.Context, actor string, input CreateBookInput) (*models.Book, error)
	BulkCreate(ctx context.Context, actor string, inputs []CreateBookInput) (BulkResult, error)
	Update(ctx context.Context, actor string, id uuid.UUID, input UpdateBookInput) (*models.Book, error)
	ToggleActive(ctx context.Context, actor string, id uuid.UUID) (*models.Book, error)
	Delete(ctx context.Context, actor string, id uuid.UUID) error
	Get(ctx context.Context, id uuid.UUID) (*models.Book, error)
	GetActive(ctx context.Context, id uuid.UUID) (*models.Book, error)
	List(ctx context.Context, params ListParams) (*ListResult, error)
}

type service struct {
	tx      txRunner
	repo    BookRepository
	locker  inventory.Locker
	auditor auditor
	logg    *logger.Logger
	now     func() time.Time
}

// NewService builds the catalog service. The locker must be the one the borrow
// workflow uses so quantity edits serialize with borrows and returns.
func NewService(tx txRunner, repo BookRepository, locker inventory.Locker, audit auditor, logg *logger.Logger) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("book repository required")
	}
	if locker == nil {
		return nil, fmt.Errorf("book locker required")
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
		locker:  locker,
		auditor: audit,
		logg:    logg,
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) Create(ctx context.Context, actor string, input CreateBookInput) (*models.Book, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	book, err := s.create(ctx, actor, input)
	if err != nil {
		return nil, err
	}
	s.auditor.RecordCreate(ctx, enums.ActivityGroupBook, enums.ActivityCreateBook, activity.BookSnapshot(*book), actor)
	return book, nil
}

func (s *service) create(ctx context.Context, actor string, input CreateBookInput) (*models.Book, error) {
	input = input.normalized()
	if err := validateCreate(input); err != nil {
		return nil, err
	}
	exists, err := s.repo.TitleExists(ctx, input.Title, uuid.Nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check book title")
	}
	if exists {
		return nil, titleTaken(input.Title)
	}

	book := &models.Book{
		Category:    input.Category,
		Title:       input.Title,
		Author:      input.Author,
		Publisher:   input.Publisher,
		Thumb:       input.Thumb,
		Description: input.Description,
		Quantity:    input.Quantity,
		IsActive:    true,
		CreatedBy:   actor,
		UpdatedBy:   actor,
	}
	if err := s.repo.Create(ctx, book); err != nil {
		if dbpkg.IsUniqueViolation(err, "idx_books_title") {
			return nil, titleTaken(input.Title)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create book")
	}
	return book, nil
}

// BulkCreate creates each title independently. Titles already in the catalog
// and invalid rows are counted as errors; infrastructure failures abort.
func (s *service) BulkCreate(ctx context.Context, actor string, inputs []CreateBookInput) (BulkResult, error) {
	if err := requireActor(actor); err != nil {
		return BulkResult{}, err
	}
	var result BulkResult
	for _, input := range inputs {
		book, err := s.create(ctx, actor, input)
		if err != nil {
			switch pkgerrors.As(err).Code() {
			case pkgerrors.CodeValidation, pkgerrors.CodeConflict:
				result.Error++
				continue
			default:
				return result, err
			}
		}
		result.Success++
		s.auditor.RecordCreate(ctx, enums.ActivityGroupBook, enums.ActivityCreateBook, activity.BookSnapshot(*book), actor)
	}
	logCtx := s.logg.WithFields(ctx, map[string]any{"success": result.Success, "error": result.Error})
	s.logg.Info(logCtx, "bulk book import finished")
	return result, nil
}

func (s *service) Update(ctx context.Context, actor string, id uuid.UUID, input UpdateBookInput) (*models.Book, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if err := validateUpdate(input); err != nil {
		return nil, err
	}
	before, after, err := s.mutate(ctx, actor, id, func(ctx context.Context, repo BookRepository, book *models.Book) error {
		previousCategory := book.Category
		input.apply(book)
		if input.Title != nil {
			exists, err := repo.TitleExists(ctx, book.Title, book.ID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check book title")
			}
			if exists {
				return titleTaken(book.Title)
			}
		}
		if book.Category != previousCategory {
			return recategorize(ctx, repo, book)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.auditor.RecordUpdate(ctx, enums.ActivityGroupBook, enums.ActivityUpdateBook, activity.BookSnapshot(before), activity.BookSnapshot(*after), actor)
	return after, nil
}

// recategorize carries a category change onto the book's borrowed loans. It is
// refused while a borrower of this book already holds another loan in the new
// category, since the move would give that patron two loans in one category.
func recategorize(ctx context.Context, repo BookRepository, book *models.Book) error {
	clashes, err := repo.ActiveLoanCategoryClashes(ctx, book.ID, book.Category)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check borrowed loans in category")
	}
	if clashes > 0 {
		return categoryClash(book.ID, book.Category)
	}
	if err := repo.SyncActiveLoanCategory(ctx, book.ID, book.Category); err != nil {
		if dbpkg.IsUniqueViolation(err, "idx_loans_active_patron_category") {
			return categoryClash(book.ID, book.Category)
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update borrowed loan category")
	}
	return nil
}

// ToggleActive flips the soft delete flag. Quantity and loans are untouched.
func (s *service) ToggleActive(ctx context.Context, actor string, id uuid.UUID) (*models.Book, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	before, after, err := s.mutate(ctx, actor, id, func(_ context.Context, _ BookRepository, book *models.Book) error {
		book.IsActive = !book.IsActive
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.auditor.RecordUpdate(ctx, enums.ActivityGroupBook, enums.ActivitySoftDeleteBook, activity.BookSnapshot(before), activity.BookSnapshot(*after), actor)
	return after, nil
}

// mutate loads the book under the per-book lock, applies change and saves it
// in one transaction. It returns a value copy taken before the change.
func (s *service) mutate(
	ctx context.Context,
	actor string,
	id uuid.UUID,
	change func(ctx context.Context, repo BookRepository, book *models.Book) error,
) (models.Book, *models.Book, error) {
	if id == uuid.Nil {
		return models.Book{}, nil, pkgerrors.New(pkgerrors.CodeValidation, "book id required")
	}
	release, err := s.locker.Acquire(ctx, id.String())
	if err != nil {
		return models.Book{}, nil, err
	}
	defer release()

	var (
		before models.Book
		after  *models.Book
	)
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		book, err := repo.FindForUpdate(ctx, id)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load book")
		}
		if book == nil {
			return bookNotFound(id)
		}
		before = *book
		if err := change(ctx, repo, book); err != nil {
			return err
		}
		book.UpdatedBy = actor
		book.UpdatedAt = s.now()
		if err := repo.Save(ctx, book); err != nil {
			if dbpkg.IsUniqueViolation(err, "idx_books_title") {
				return titleTaken(book.Title)
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "save book")
		}
		after = book
		return nil
	})
	if err != nil {
		return models.Book{}, nil, err
	}
	return before, after, nil
}

// Delete removes a book that no loan has ever referenced. Books with loan
// history can only be soft deleted.
func (s *service) Delete(ctx context.Context, actor string, id uuid.UUID) error {
	if err := requireActor(actor); err != nil {
		return err
	}
	if id == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "book id required")
	}
	release, err := s.locker.Acquire(ctx, id.String())
	if err != nil {
		return err
	}
	defer release()

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		book, err := repo.FindForUpdate(ctx, id)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load book")
		}
		if book == nil {
			return bookNotFound(id)
		}
		referenced, err := repo.HasLoans(ctx, id)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check book loans")
		}
		if referenced {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "book has loans; deactivate it instead").
				WithDetails(map[string]any{"book_id": id.String()})
		}
		if _, err := repo.Delete(ctx, id); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete book")
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.auditor.RecordDelete(ctx, enums.ActivityGroupBook, enums.ActivityDeleteBook, activity.BookIdentity(id), actor)
	return nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Book, error) {
	book, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load book")
	}
	if book == nil {
		return nil, bookNotFound(id)
	}
	return book, nil
}

// GetActive hides soft deleted books.
func (s *service) GetActive(ctx context.Context, id uuid.UUID) (*models.Book, error) {
	book, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !book.IsActive {
		return nil, bookNotFound(id)
	}
	return book, nil
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	limit := pagination.NormalizeLimit(params.Limit)
	rows, err := s.repo.List(ctx, params, cursor, limit+1)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list books")
	}

	result := &ListResult{}
	if len(rows) > limit {
		rows = rows[:limit]
		last := rows[limit-1]
		result.NextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	result.Books = make([]BookDTO, 0, len(rows))
	for _, row := range rows {
		result.Books = append(result.Books, ToDTO(row))
	}
	return result, nil
}

func validateCreate(input CreateBookInput) error {
	details := map[string]string{}
	if input.Category == "" {
		details["category"] = "is required"
	}
	if input.Title == "" {
		details["title"] = "is required"
	}
	if input.Quantity < 0 {
		details["quantity"] = "must be at least 0"
	}
	if len(details) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(details)
	}
	return nil
}

func validateUpdate(input UpdateBookInput) error {
	details := map[string]string{}
	if input.Category != nil && strings.TrimSpace(*input.Category) == "" {
		details["category"] = "cannot be blank"
	}
	if input.Title != nil && strings.TrimSpace(*input.Title) == "" {
		details["title"] = "cannot be blank"
	}
	if input.Quantity != nil && *input.Quantity < 0 {
		details["quantity"] = "must be at least 0"
	}
	if len(details) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(details)
	}
	return nil
}

func requireActor(actor string) error {
	if strings.TrimSpace(actor) == "" {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "actor identity required")
	}
	return nil
}

func bookNotFound(id uuid.UUID) error {
	return pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("Book with id: %s does not exists", id)).
		WithDetails(map[string]any{"book_id": id.String()})
}

func categoryClash(id uuid.UUID, category string) error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, "a borrower of this book already has a loan in that category").
		WithDetails(map[string]any{"book_id": id.String(), "category": category})
}

func titleTaken(title string) error {
	return pkgerrors.New(pkgerrors.CodeConflict, "book title already exists").
		WithDetails(map[string]any{"title": title})
}
