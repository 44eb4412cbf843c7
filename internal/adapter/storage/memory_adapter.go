package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/rl1809/book-catalog/internal/core/domain"
)

// MemoryAdapter keeps books in a map guarded by one mutex and serializes
// borrows with a channel-based lock per book ID. The per-book lock makes
// lock acquisition cancellable via ctx, which a sync.Mutex cannot do.
type MemoryAdapter struct {
	mu     sync.Mutex
	nextID int64
	books  map[int64]domain.Book
	locks  map[int64]chan struct{}
}

func NewMemoryAdapter() *MemoryAdapter {
	return &MemoryAdapter{
		books: make(map[int64]domain.Book),
		locks: make(map[int64]chan struct{}),
	}
}

func (m *MemoryAdapter) Create(_ context.Context, book domain.Book) (*domain.Book, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	book.ID = m.nextID
	m.books[book.ID] = book

	out := book
	return &out, nil
}

func (m *MemoryAdapter) List(_ context.Context) ([]*domain.Book, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*domain.Book, 0, len(m.books))
	for _, b := range m.books {
		book := b
		out = append(out, &book)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryAdapter) Get(_ context.Context, id int64) (*domain.Book, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.books[id]
	if !ok {
		return nil, nil
	}
	out := b
	return &out, nil
}

func (m *MemoryAdapter) Update(ctx context.Context, id int64, mutate func(*domain.Book) error) (*domain.Book, error) {
	lock := m.lockFor(id)

	select {
	case lock <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-lock }()

	// Re-read under the lock; a previous holder may have changed it.
	m.mu.Lock()
	b, ok := m.books[id]
	m.mu.Unlock()
	if !ok {
		return nil, nil
	}

	if err := mutate(&b); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.books[id] = b
	m.mu.Unlock()

	out := b
	return &out, nil
}

// lockFor returns the lock channel for a book, creating it on first use.
// Locks for different IDs are independent, so borrows on different books
// never block each other.
func (m *MemoryAdapter) lockFor(id int64) chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()

	lock, ok := m.locks[id]
	if !ok {
		lock = make(chan struct{}, 1)
		m.locks[id] = lock
	}
	return lock
}
