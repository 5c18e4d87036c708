package books

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/readcycle-backend/internal/repo"
	dbpkg "github.com/angelmondragon/readcycle-backend/pkg/db"
	"github.com/angelmondragon/readcycle-backend/pkg/db/models"
	"github.com/angelmondragon/readcycle-backend/pkg/enums"
	"github.com/angelmondragon/readcycle-backend/pkg/pagination"
)

// Repository exposes catalog persistence.
type Repository struct {
	base repo.Base
}

// NewRepository constructs a catalog repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{base: repo.NewBase(db)}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) BookRepository {
	return &Repository{base: r.base.WithTx(tx)}
}

func (r *Repository) Create(ctx context.Context, book *models.Book) error {
	return r.base.DB(ctx).Create(book).Error
}

// FindByID returns nil when the book does not exist.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Book, error) {
	return repo.Take[models.Book](ctx, r.base, "id = ?", id)
}

// FindForUpdate loads the book and row locks it where the database allows.
func (r *Repository) FindForUpdate(ctx context.Context, id uuid.UUID) (*models.Book, error) {
	base := r.base
	if conn := base.DB(ctx); dbpkg.SupportsRowLocks(conn) {
		base = base.WithTx(conn.Clauses(clause.Locking{Strength: "UPDATE"}))
	}
	return repo.Take[models.Book](ctx, base, "id = ?", id)
}

func (r *Repository) TitleExists(ctx context.Context, title string, excludeID uuid.UUID) (bool, error) {
	if excludeID == uuid.Nil {
		return r.base.Exists(ctx, &models.Book{}, "title = ?", title)
	}
	return r.base.Exists(ctx, &models.Book{}, "title = ? AND id <> ?", title, excludeID)
}

// Save writes every catalog column of book.
func (r *Repository) Save(ctx context.Context, book *models.Book) error {
	return r.base.DB(ctx).Model(&models.Book{}).
		Where("id = ?", book.ID).
		Updates(map[string]any{
			"category":    book.Category,
			"title":       book.Title,
			"author":      book.Author,
			"publisher":   book.Publisher,
			"thumb":       book.Thumb,
			"description": book.Description,
			"quantity":    book.Quantity,
			"is_active":   book.IsActive,
			"updated_by":  book.UpdatedBy,
			"updated_at":  book.UpdatedAt,
		}).Error
}

func (r *Repository) HasLoans(ctx context.Context, bookID uuid.UUID) (bool, error) {
	return r.base.Exists(ctx, &models.Loan{}, "book_id = ?", bookID)
}

// ActiveLoanCategoryClashes counts borrowed loans on bookID whose patron also
// borrows another book filed under category.
func (r *Repository) ActiveLoanCategoryClashes(ctx context.Context, bookID uuid.UUID, category string) (int64, error) {
	var count int64
	err := r.base.DB(ctx).
		Table("loans AS held").
		Joins("JOIN loans AS other ON other.patron_id = held.patron_id AND other.status = ? AND other.book_id <> held.book_id", enums.LoanStatusBorrowed).
		Joins("JOIN books AS other_book ON other_book.id = other.book_id").
		Where("held.book_id = ? AND held.status = ? AND other_book.category = ?", bookID, enums.LoanStatusBorrowed, category).
		Count(&count).Error
	return count, err
}

// SyncActiveLoanCategory rewrites the category copied onto borrowed loans of bookID.
func (r *Repository) SyncActiveLoanCategory(ctx context.Context, bookID uuid.UUID, category string) error {
	return r.base.DB(ctx).Model(&models.Loan{}).
		Where("book_id = ? AND status = ?", bookID, enums.LoanStatusBorrowed).
		Update("category", category).Error
}

// Delete removes the book and any cart items pointing at it.
func (r *Repository) Delete(ctx context.Context, bookID uuid.UUID) (int64, error) {
	db := r.base.DB(ctx)
	if err := db.Where("book_id = ?", bookID).Delete(&models.CartItem{}).Error; err != nil {
		return 0, err
	}
	res := db.Where("id = ?", bookID).Delete(&models.Book{})
	return res.RowsAffected, res.Error
}

// List returns one keyset page of books, newest first.
func (r *Repository) List(ctx context.Context, params ListParams, cursor *pagination.Cursor, limit int) ([]models.Book, error) {
	query := r.base.DB(ctx).Model(&models.Book{})
	if params.ActiveOnly {
		query = query.Where("is_active = ?", true)
	}
	if category := strings.TrimSpace(params.Category); category != "" {
		query = query.Where("category = ?", category)
	}
	if search := strings.TrimSpace(params.Search); search != "" {
		like := "%" + strings.ToLower(search) + "%"
		query = query.Where("(LOWER(title) LIKE ? OR LOWER(author) LIKE ?)", like, like)
	}
	if cursor != nil {
		query = query.Where("((created_at < ?) OR (created_at = ? AND id < ?))", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}
	var books []models.Book
	err := query.
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&books).Error
	return books, err
}
