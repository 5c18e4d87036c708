package books

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/readcycle-backend/pkg/db/models"
	"github.com/angelmondragon/readcycle-backend/pkg/enums"
)

// CreateBookInput is the catalog payload for a new title.
type CreateBookInput struct {
	Category    string `json:"category" validate:"required,max=120"`
	Title       string `json:"title" validate:"required,max=255"`
	Author      string `json:"author" validate:"max=255"`
	Publisher   string `json:"publisher" validate:"max=255"`
	Thumb       string `json:"thumb" validate:"max=1024"`
	Description string `json:"description" validate:"max=10000"`
	Quantity    int    `json:"quantity" validate:"min=0"`
}

func (in CreateBookInput) normalized() CreateBookInput {
	in.Category = strings.TrimSpace(in.Category)
	in.Title = strings.TrimSpace(in.Title)
	in.Author = strings.TrimSpace(in.Author)
	in.Publisher = strings.TrimSpace(in.Publisher)
	in.Thumb = strings.TrimSpace(in.Thumb)
	return in
}

// UpdateBookInput is a partial update; nil fields are left alone.
type UpdateBookInput struct {
	Category    *string `json:"category" validate:"omitempty,max=120"`
	Title       *string `json:"title" validate:"omitempty,max=255"`
	Author      *string `json:"author" validate:"omitempty,max=255"`
	Publisher   *string `json:"publisher" validate:"omitempty,max=255"`
	Thumb       *string `json:"thumb" validate:"omitempty,max=1024"`
	Description *string `json:"description" validate:"omitempty,max=10000"`
	Quantity    *int    `json:"quantity" validate:"omitempty,min=0"`
}

func (in UpdateBookInput) apply(book *models.Book) {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = strings.TrimSpace(*src)
		}
	}
	set(&book.Category, in.Category)
	set(&book.Title, in.Title)
	set(&book.Author, in.Author)
	set(&book.Publisher, in.Publisher)
	set(&book.Thumb, in.Thumb)
	if in.Description != nil {
		book.Description = *in.Description
	}
	if in.Quantity != nil {
		book.Quantity = *in.Quantity
	}
}

// BulkResult counts the outcome of a bulk create.
type BulkResult struct {
	Success int `json:"success"`
	Error   int `json:"error"`
}

// ListParams filters catalog listings.
type ListParams struct {
	Category   string
	Search     string
	ActiveOnly bool
	Limit      int
	Cursor     string
}

// BookDTO is the catalog view of a book.
type BookDTO struct {
	ID          uuid.UUID        `json:"id"`
	Category    string           `json:"category"`
	Title       string           `json:"title"`
	Author      string           `json:"author"`
	Publisher   string           `json:"publisher"`
	Thumb       string           `json:"thumb"`
	Description string           `json:"description"`
	Quantity    int              `json:"quantity"`
	Status      enums.BookStatus `json:"status"`
	IsActive    bool             `json:"is_active"`
	CreatedBy   string           `json:"created_by,omitempty"`
	UpdatedBy   string           `json:"updated_by,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// ListResult is one page of books.
type ListResult struct {
	Books      []BookDTO `json:"books"`
	NextCursor string    `json:"next_cursor,omitempty"`
}

// ToDTO maps a book row to its API shape.
func ToDTO(book models.Book) BookDTO {
	return BookDTO{
		ID:          book.ID,
		Category:    book.Category,
		Title:       book.Title,
		Author:      book.Author,
		Publisher:   book.Publisher,
		Thumb:       book.Thumb,
		Description: book.Description,
		Quantity:    book.Quantity,
		Status:      book.Status(),
		IsActive:    book.IsActive,
		CreatedBy:   book.CreatedBy,
		UpdatedBy:   book.UpdatedBy,
		CreatedAt:   book.CreatedAt,
		UpdatedAt:   book.UpdatedAt,
	}
}
