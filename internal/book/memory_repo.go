package book

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"bookfinder/internal/isbn"
)

// MemoryRepo is a mutex-guarded in-memory Repository. It backs tests and
// cache-warm deployments that run without Postgres.
type MemoryRepo struct {
	mu    sync.RWMutex
	books map[string]Book
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{books: make(map[string]Book)}
}

func (r *MemoryRepo) GetByID(ctx context.Context, id string) (Book, error) {
	if err := ctx.Err(); err != nil {
		return Book{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.books[id]
	if !ok {
		return Book{}, ErrNotFound
	}
	return b, nil
}

func (r *MemoryRepo) GetByISBN(ctx context.Context, rawISBN string) (Book, error) {
	if err := ctx.Err(); err != nil {
		return Book{}, err
	}
	want := isbn.Normalize(rawISBN)
	if want == "" {
		return Book{}, ErrNotFound
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, b := range r.books {
		if b.NormalizedISBN() == want {
			return b, nil
		}
	}
	return Book{}, ErrNotFound
}

func (r *MemoryRepo) Search(ctx context.Context, text string) ([]Book, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	needle := strings.ToLower(text)

	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Book
	for _, b := range r.books {
		if matchesBook(b, needle) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	return out, nil
}

func matchesBook(b Book, needle string) bool {
	if strings.Contains(strings.ToLower(b.Title), needle) {
		return true
	}
	if strings.Contains(strings.ToLower(b.Publisher), needle) {
		return true
	}
	for _, a := range b.Authors {
		if strings.Contains(strings.ToLower(a), needle) {
			return true
		}
	}
	return false
}

func (r *MemoryRepo) Save(ctx context.Context, b Book) (Book, error) {
	if err := ctx.Err(); err != nil {
		return Book{}, err
	}
	if b.ID == "" {
		b.ID = uuid.NewString()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.books[b.ID] = b
	return b, nil
}

func (r *MemoryRepo) GetAll(ctx context.Context) ([]Book, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Book, 0, len(r.books))
	for _, b := range r.books {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	return out, nil
}
