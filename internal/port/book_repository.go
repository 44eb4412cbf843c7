package port

import (
	"context"

	"github.com/rl1809/book-catalog/internal/core/domain"
)

type BookRepository interface {
	// Create persists a new book and assigns its ID
	Create(ctx context.Context, book domain.Book) (*domain.Book, error)

	// List returns all books ordered by ID
	List(ctx context.Context) ([]*domain.Book, error)

	// Get retrieves a book by ID, returns (nil, nil) when absent
	Get(ctx context.Context, id int64) (*domain.Book, error)

	// Update acquires an exclusive per-book lock, calls mutate with the
	// current record, and persists it only if mutate returns nil. The lock
	// is released on every path. Returns (nil, nil) when the book does not
	// exist; a mutate error is returned unchanged with nothing persisted.
	Update(ctx context.Context, id int64, mutate func(*domain.Book) error) (*domain.Book, error)
}
