package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/rl1809/book-catalog/internal/core/domain"
	"github.com/rl1809/book-catalog/internal/port"
)

var (
	ErrNotFound   = errors.New("book not found")
	ErrOutOfStock = errors.New("out of stock")
)

// StockService serializes concurrent borrows per book. All stock
// mutations go through the repository's exclusive per-book lock, so two
// borrows racing for the last unit resolve to one success and one
// ErrOutOfStock, never two successes.
type StockService struct {
	books port.BookRepository
}

func NewStockService(books port.BookRepository) *StockService {
	return &StockService{books: books}
}

// Borrow decrements a book's stock by exactly one. The stock check runs
// under the lock, after acquisition, so a value read before the lock is
// never trusted.
func (s *StockService) Borrow(ctx context.Context, bookID int64) (*domain.Book, error) {
	book, err := s.books.Update(ctx, bookID, func(b *domain.Book) error {
		if b.Stock <= 0 {
			return ErrOutOfStock
		}
		b.Stock--
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrOutOfStock) {
			log.Warn().Int64("book_id", bookID).Msg("borrow rejected: out of stock")
			return nil, fmt.Errorf("book %d: %w", bookID, ErrOutOfStock)
		}
		return nil, fmt.Errorf("borrow book %d: %w", bookID, err)
	}
	if book == nil {
		return nil, fmt.Errorf("book %d: %w", bookID, ErrNotFound)
	}

	log.Info().Int64("book_id", bookID).Int("stock", book.Stock).Msg("book borrowed")
	return book, nil
}
