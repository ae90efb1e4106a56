package book

import (
	"context"
	"time"
)

// Repository defines the contract for persistent book storage.
//
// Implementations normalize ISBN input on their side, independent of any
// normalization the caller performed. The repository offers no protection
// against cross-provider duplicates; collapsing those is Dedupe's job.
type Repository interface {
	GetByID(ctx context.Context, id string) (Book, error)
	GetByISBN(ctx context.Context, isbn string) (Book, error)
	Search(ctx context.Context, text string) ([]Book, error)
	Save(ctx context.Context, b Book) (Book, error)
	GetAll(ctx context.Context) ([]Book, error)
}

// Provider is an external bibliographic source.
//
// SearchByISBN reports a miss with found == false and a nil error. A
// non-nil error from either method means the provider itself failed
// (network, auth, rate limit); callers log it and move on, it is never
// fatal to the overall operation.
type Provider interface {
	Name() string
	SearchByISBN(ctx context.Context, isbn string) (b Book, found bool, err error)
	SearchByText(ctx context.Context, query string) ([]Book, error)
}

// Cache is an optional TTL key-value store used to memoize provider
// responses. Get reports a miss with ok == false and a nil error.
type Cache interface {
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}
