package port

import "context"

type PriceClient interface {
	// GetPrice returns the current price for a book. It never fails: when
	// the pricing dependency is unreachable a fallback value is returned
	// instead of an error.
	GetPrice(ctx context.Context, bookID int64) float64
}
