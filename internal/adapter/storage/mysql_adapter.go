package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rl1809/book-catalog/internal/core/domain"
)

type MySQLAdapter struct {
	db *sql.DB
}

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db}
}

// EnsureSchema creates the books table if it does not exist yet.
func (m *MySQLAdapter) EnsureSchema(ctx context.Context) error {
	_, err := m.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS books (
			id     BIGINT AUTO_INCREMENT PRIMARY KEY,
			title  VARCHAR(255) NOT NULL,
			author VARCHAR(255) NOT NULL,
			stock  INT NOT NULL,
			price  DOUBLE NOT NULL
		)`)
	if err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (m *MySQLAdapter) Create(ctx context.Context, book domain.Book) (*domain.Book, error) {
	result, err := m.db.ExecContext(ctx, `
		INSERT INTO books (title, author, stock, price)
		VALUES (?, ?, ?, ?)`,
		book.Title, book.Author, book.Stock, book.Price,
	)
	if err != nil {
		return nil, fmt.Errorf("insert book: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	book.ID = id
	return &book, nil
}

func (m *MySQLAdapter) List(ctx context.Context) ([]*domain.Book, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, title, author, stock, price
		FROM books ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query books: %w", err)
	}
	defer rows.Close()

	var out []*domain.Book
	for rows.Next() {
		var b domain.Book
		if err := rows.Scan(&b.ID, &b.Title, &b.Author, &b.Stock, &b.Price); err != nil {
			return nil, fmt.Errorf("scan book: %w", err)
		}
		out = append(out, &b)
	}
	return out, rows.Err()
}

func (m *MySQLAdapter) Get(ctx context.Context, id int64) (*domain.Book, error) {
	var b domain.Book
	err := m.db.QueryRowContext(ctx, `
		SELECT id, title, author, stock, price
		FROM books WHERE id = ?`, id,
	).Scan(&b.ID, &b.Title, &b.Author, &b.Stock, &b.Price)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query book: %w", err)
	}
	return &b, nil
}

// Update takes the row lock with SELECT ... FOR UPDATE, so concurrent
// borrows of the same book serialize on the database row. The deferred
// rollback releases the lock on every path; commit is the release on
// success.
func (m *MySQLAdapter) Update(ctx context.Context, id int64, mutate func(*domain.Book) error) (*domain.Book, error) {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var b domain.Book
	err = tx.QueryRowContext(ctx, `
		SELECT id, title, author, stock, price
		FROM books WHERE id = ? FOR UPDATE`, id,
	).Scan(&b.ID, &b.Title, &b.Author, &b.Stock, &b.Price)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select for update: %w", err)
	}

	if err := mutate(&b); err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE books SET title = ?, author = ?, stock = ?, price = ?
		WHERE id = ?`,
		b.Title, b.Author, b.Stock, b.Price, b.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("update book: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return &b, nil
}
