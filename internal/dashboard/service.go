package dashboard

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/angelmondragon/readcycle-backend/internal/repo"
	"github.com/angelmondragon/readcycle-backend/pkg/db/models"
	"github.com/angelmondragon/readcycle-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/readcycle-backend/pkg/errors"
)

// BookStat is the shelf view of one title.
type BookStat struct {
	BookID     uuid.UUID `json:"book_id" gorm:"column:book_id"`
	Category   string    `json:"category" gorm:"column:category"`
	Title      string    `json:"title" gorm:"column:title"`
	TotalQty   int       `json:"total_qty" gorm:"-"`
	CurrentQty int       `json:"current_qty" gorm:"column:current_qty"`
	BorrowQty  int       `json:"borrow_qty" gorm:"column:borrow_qty"`
}

// Stats is the admin dashboard payload.
type Stats struct {
	Users       int64      `json:"users"`
	Admins      int64      `json:"admins"`
	Books       int64      `json:"books"`
	ActiveLoans int64      `json:"active_loans"`
	BookStats   []BookStat `json:"book_stats"`
}

// Service aggregates library statistics.
type Service struct {
	base repo.Base
}

func NewService(db *gorm.DB) (*Service, error) {
	if db == nil {
		return nil, fmt.Errorf("db required")
	}
	return &Service{base: repo.NewBase(db)}, nil
}

// Stats runs the independent counts concurrently.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	var out Stats
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return s.base.DB(gctx).Model(&models.User{}).Where("role = ?", enums.UserRoleUser).Count(&out.Users).Error
	})
	g.Go(func() error {
		return s.base.DB(gctx).Model(&models.User{}).Where("role = ?", enums.UserRoleAdmin).Count(&out.Admins).Error
	})
	g.Go(func() error {
		return s.base.DB(gctx).Model(&models.Book{}).Count(&out.Books).Error
	})
	g.Go(func() error {
		return s.base.DB(gctx).Model(&models.Loan{}).Where("status = ?", enums.LoanStatusBorrowed).Count(&out.ActiveLoans).Error
	})
	g.Go(func() error {
		stats, err := s.bookStats(gctx)
		out.BookStats = stats
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load dashboard stats")
	}
	return &out, nil
}

func (s *Service) bookStats(ctx context.Context) ([]BookStat, error) {
	var stats []BookStat
	err := s.base.DB(ctx).
		Table("books").
		Select("books.id AS book_id, books.category, books.title, books.quantity AS current_qty, COUNT(loans.id) AS borrow_qty").
		Joins("LEFT JOIN loans ON loans.book_id = books.id AND loans.status = ?", enums.LoanStatusBorrowed).
		Group("books.id, books.category, books.title, books.quantity").
		Order("books.category ASC, books.title ASC").
		Scan(&stats).Error
	if err != nil {
		return nil, err
	}
	for i := range stats {
		stats[i].TotalQty = stats[i].CurrentQty + stats[i].BorrowQty
	}
	return stats, nil
}
