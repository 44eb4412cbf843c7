package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/rl1809/book-catalog/internal/core/domain"
	"github.com/rl1809/book-catalog/internal/port"
)

var ErrInvalidBook = errors.New("invalid book")

// CatalogService is a thin orchestrator over the book store, the stock
// coordinator and the pricing client. It holds no book state of its own.
type CatalogService struct {
	books  port.BookRepository
	stock  *StockService
	prices port.PriceClient
}

func NewCatalogService(books port.BookRepository, stock *StockService, prices port.PriceClient) *CatalogService {
	return &CatalogService{
		books:  books,
		stock:  stock,
		prices: prices,
	}
}

func (s *CatalogService) CreateBook(ctx context.Context, book domain.Book) (*domain.Book, error) {
	if strings.TrimSpace(book.Title) == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidBook)
	}
	if book.Stock < 0 {
		return nil, fmt.Errorf("%w: stock must not be negative", ErrInvalidBook)
	}

	created, err := s.books.Create(ctx, book)
	if err != nil {
		return nil, fmt.Errorf("create book: %w", err)
	}

	log.Info().Int64("book_id", created.ID).Str("title", created.Title).Msg("book created")
	return created, nil
}

func (s *CatalogService) ListBooks(ctx context.Context) ([]*domain.Book, error) {
	books, err := s.books.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	return books, nil
}

func (s *CatalogService) GetBook(ctx context.Context, id int64) (*domain.Book, error) {
	book, err := s.books.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get book %d: %w", id, err)
	}
	if book == nil {
		return nil, fmt.Errorf("book %d: %w", id, ErrNotFound)
	}
	return book, nil
}

func (s *CatalogService) Borrow(ctx context.Context, id int64) (*domain.Book, error) {
	return s.stock.Borrow(ctx, id)
}

// GetBookWithPrice fetches a book and overwrites its price with the live
// value from the pricing dependency. The enriched price is never written
// back to the store.
func (s *CatalogService) GetBookWithPrice(ctx context.Context, id int64) (*domain.Book, error) {
	book, err := s.GetBook(ctx, id)
	if err != nil {
		return nil, err
	}
	book.Price = s.prices.GetPrice(ctx, id)
	return book, nil
}

// GetPrice exposes the raw price lookup. It never fails; the pricing
// client degrades to its fallback value on dependency outage.
func (s *CatalogService) GetPrice(ctx context.Context, id int64) float64 {
	return s.prices.GetPrice(ctx, id)
}
