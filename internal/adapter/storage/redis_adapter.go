package storage

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/rl1809/book-catalog/internal/core/domain"
)

const (
	bookKeyPrefix = "book:"
	bookIndexKey  = "books"
	nextIDKey     = "book:next_id"
	lockKeyPrefix = "lock:book:"

	lockTTL       = 5 * time.Second
	lockRetryWait = 10 * time.Millisecond
)

// releaseLockScript deletes the lock only when it still holds our token,
// so an expired lock taken over by another borrower is never released by
// the old holder.
var releaseLockScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
	return redis.call('DEL', KEYS[1])
end
return 0
`)

type RedisAdapter struct {
	client *redis.Client
}

func NewRedisAdapter(client *redis.Client) *RedisAdapter {
	return &RedisAdapter{client: client}
}

func (r *RedisAdapter) Create(ctx context.Context, book domain.Book) (*domain.Book, error) {
	id, err := r.client.Incr(ctx, nextIDKey).Result()
	if err != nil {
		return nil, fmt.Errorf("allocate book id: %w", err)
	}
	book.ID = id

	if err := r.writeBook(ctx, book); err != nil {
		return nil, err
	}
	if err := r.client.SAdd(ctx, bookIndexKey, id).Err(); err != nil {
		return nil, fmt.Errorf("index book: %w", err)
	}
	return &book, nil
}

func (r *RedisAdapter) List(ctx context.Context) ([]*domain.Book, error) {
	members, err := r.client.SMembers(ctx, bookIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list book ids: %w", err)
	}

	ids := make([]int64, 0, len(members))
	for _, m := range members {
		id, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse book id %q: %w", m, err)
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]*domain.Book, 0, len(ids))
	for _, id := range ids {
		book, err := r.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if book != nil {
			out = append(out, book)
		}
	}
	return out, nil
}

func (r *RedisAdapter) Get(ctx context.Context, id int64) (*domain.Book, error) {
	fields, err := r.client.HGetAll(ctx, bookKeyPrefix+strconv.FormatInt(id, 10)).Result()
	if err != nil {
		return nil, fmt.Errorf("read book %d: %w", id, err)
	}
	if len(fields) == 0 {
		return nil, nil
	}
	return bookFromFields(id, fields)
}

// Update serializes borrows of the same book on a lock key taken with
// SET NX. The TTL bounds how long a crashed holder can block others.
func (r *RedisAdapter) Update(ctx context.Context, id int64, mutate func(*domain.Book) error) (*domain.Book, error) {
	lockKey := lockKeyPrefix + strconv.FormatInt(id, 10)
	token := uuid.NewString()

	if err := r.acquireLock(ctx, lockKey, token); err != nil {
		return nil, err
	}
	defer releaseLockScript.Run(context.WithoutCancel(ctx), r.client, []string{lockKey}, token)

	book, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if book == nil {
		return nil, nil
	}

	if err := mutate(book); err != nil {
		return nil, err
	}

	if err := r.writeBook(ctx, *book); err != nil {
		return nil, err
	}
	return book, nil
}

func (r *RedisAdapter) acquireLock(ctx context.Context, lockKey, token string) error {
	for {
		ok, err := r.client.SetNX(ctx, lockKey, token, lockTTL).Result()
		if err != nil {
			return fmt.Errorf("acquire lock %s: %w", lockKey, err)
		}
		if ok {
			return nil
		}

		select {
		case <-time.After(lockRetryWait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (r *RedisAdapter) writeBook(ctx context.Context, book domain.Book) error {
	key := bookKeyPrefix + strconv.FormatInt(book.ID, 10)
	err := r.client.HSet(ctx, key,
		"title", book.Title,
		"author", book.Author,
		"stock", book.Stock,
		"price", book.Price,
	).Err()
	if err != nil {
		return fmt.Errorf("write book %d: %w", book.ID, err)
	}
	return nil
}

func bookFromFields(id int64, fields map[string]string) (*domain.Book, error) {
	stock, err := strconv.Atoi(fields["stock"])
	if err != nil {
		return nil, fmt.Errorf("parse stock for book %d: %w", id, err)
	}
	price, err := strconv.ParseFloat(fields["price"], 64)
	if err != nil {
		return nil, fmt.Errorf("parse price for book %d: %w", id, err)
	}

	return &domain.Book{
		ID:     id,
		Title:  fields["title"],
		Author: fields["author"],
		Stock:  stock,
		Price:  price,
	}, nil
}
