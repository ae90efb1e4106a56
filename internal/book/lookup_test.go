package book

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestLookupService_LookupByISBN(t *testing.T) {
	ctx := context.Background()

	stored := Book{
		ID:     "id-1",
		ISBN:   "978-0-13-468599-1",
		Title:  "The Go Programming Language",
		Source: SourceLocal,
	}

	t.Run("blank isbn is rejected before any io", func(t *testing.T) {
		repo := new(mockRepo)
		s := NewLookupService(repo, nil, nil)

		_, err := s.LookupByISBN(ctx, "   ")

		assert.ErrorIs(t, err, ErrBlankISBN)
		repo.AssertNotCalled(t, "GetByISBN", mock.Anything, mock.Anything)
	})

	t.Run("repository hit short-circuits with zero provider calls", func(t *testing.T) {
		repo := new(mockRepo)
		p := newMockProvider("openlibrary")
		s := NewLookupService(repo, []Provider{p}, nil)

		repo.On("GetByISBN", ctx, "9780134685991").Return(stored, nil)

		got, err := s.LookupByISBN(ctx, "978-0-13-468599-1")

		assert.NoError(t, err)
		assert.Equal(t, stored, got)
		p.AssertNotCalled(t, "SearchByISBN", mock.Anything, mock.Anything)
		repo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	})

	t.Run("all raw forms normalize to the same key", func(t *testing.T) {
		for _, raw := range []string{"978-0-13-468599-1", "978 0 13 468599 1", "9780134685991"} {
			repo := new(mockRepo)
			s := NewLookupService(repo, nil, nil)

			repo.On("GetByISBN", ctx, "9780134685991").Return(stored, nil)

			got, err := s.LookupByISBN(ctx, raw)

			assert.NoError(t, err)
			assert.Equal(t, stored, got)
			repo.AssertExpectations(t)
		}
	})

	t.Run("first provider hit is persisted and returned", func(t *testing.T) {
		repo := new(mockRepo)
		p1 := newMockProvider("openlibrary")
		p2 := newMockProvider("googlebooks")
		s := NewLookupService(repo, []Provider{p1, p2}, nil)

		resolved := Book{ISBN: "9780134685991", Title: "The Go Programming Language", Source: "openlibrary"}
		persisted := resolved
		persisted.ID = "new-id"

		repo.On("GetByISBN", ctx, "9780134685991").Return(Book{}, ErrNotFound)
		p1.On("SearchByISBN", ctx, "9780134685991").Return(resolved, true, nil)
		repo.On("Save", ctx, resolved).Return(persisted, nil)

		got, err := s.LookupByISBN(ctx, "9780134685991")

		assert.NoError(t, err)
		assert.Equal(t, "new-id", got.ID)
		assert.Equal(t, "openlibrary", got.Source)
		p2.AssertNotCalled(t, "SearchByISBN", mock.Anything, mock.Anything)
	})

	t.Run("failing provider is skipped, second provider wins", func(t *testing.T) {
		repo := new(mockRepo)
		p1 := newMockProvider("openlibrary")
		p2 := newMockProvider("googlebooks")
		s := NewLookupService(repo, []Provider{p1, p2}, nil)

		resolved := Book{ISBN: "9780134685991", Title: "The Go Programming Language", Source: "googlebooks"}

		repo.On("GetByISBN", ctx, "9780134685991").Return(Book{}, ErrNotFound)
		p1.On("SearchByISBN", ctx, "9780134685991").Return(Book{}, false, errors.New("rate limited"))
		p2.On("SearchByISBN", ctx, "9780134685991").Return(resolved, true, nil)
		repo.On("Save", ctx, resolved).Return(resolved, nil)

		got, err := s.LookupByISBN(ctx, "9780134685991")

		assert.NoError(t, err)
		assert.Equal(t, "googlebooks", got.Source)
		repo.AssertNumberOfCalls(t, "Save", 1)
	})

	t.Run("provider miss continues the chain", func(t *testing.T) {
		repo := new(mockRepo)
		p1 := newMockProvider("openlibrary")
		p2 := newMockProvider("googlebooks")
		s := NewLookupService(repo, []Provider{p1, p2}, nil)

		resolved := Book{ISBN: "9780134685991", Title: "The Go Programming Language", Source: "googlebooks"}

		repo.On("GetByISBN", ctx, "9780134685991").Return(Book{}, ErrNotFound)
		p1.On("SearchByISBN", ctx, "9780134685991").Return(Book{}, false, nil)
		p2.On("SearchByISBN", ctx, "9780134685991").Return(resolved, true, nil)
		repo.On("Save", ctx, resolved).Return(resolved, nil)

		got, err := s.LookupByISBN(ctx, "9780134685991")

		assert.NoError(t, err)
		assert.Equal(t, "googlebooks", got.Source)
	})

	t.Run("exhausted chain is not found, nothing saved", func(t *testing.T) {
		repo := new(mockRepo)
		p1 := newMockProvider("openlibrary")
		p2 := newMockProvider("googlebooks")
		s := NewLookupService(repo, []Provider{p1, p2}, nil)

		repo.On("GetByISBN", ctx, "9999999999").Return(Book{}, ErrNotFound)
		p1.On("SearchByISBN", ctx, "9999999999").Return(Book{}, false, nil)
		p2.On("SearchByISBN", ctx, "9999999999").Return(Book{}, false, nil)

		_, err := s.LookupByISBN(ctx, "9999999999")

		assert.ErrorIs(t, err, ErrNotFound)
		repo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	})

	t.Run("repository read failure falls through to providers", func(t *testing.T) {
		repo := new(mockRepo)
		p := newMockProvider("openlibrary")
		s := NewLookupService(repo, []Provider{p}, nil)

		resolved := Book{ISBN: "9780134685991", Title: "The Go Programming Language", Source: "openlibrary"}

		repo.On("GetByISBN", ctx, "9780134685991").Return(Book{}, errors.New("connection refused"))
		p.On("SearchByISBN", ctx, "9780134685991").Return(resolved, true, nil)
		repo.On("Save", ctx, resolved).Return(resolved, nil)

		got, err := s.LookupByISBN(ctx, "9780134685991")

		assert.NoError(t, err)
		assert.Equal(t, resolved, got)
	})

	t.Run("save failure still returns the resolved record", func(t *testing.T) {
		repo := new(mockRepo)
		p := newMockProvider("openlibrary")
		s := NewLookupService(repo, []Provider{p}, nil)

		resolved := Book{ISBN: "9780134685991", Title: "The Go Programming Language", Source: "openlibrary"}

		repo.On("GetByISBN", ctx, "9780134685991").Return(Book{}, ErrNotFound)
		p.On("SearchByISBN", ctx, "9780134685991").Return(resolved, true, nil)
		repo.On("Save", ctx, resolved).Return(Book{}, errors.New("disk full"))

		got, err := s.LookupByISBN(ctx, "9780134685991")

		assert.NoError(t, err)
		assert.Equal(t, resolved, got)
		assert.Empty(t, got.ID)
	})

	t.Run("provider name is stamped when the provider left source empty", func(t *testing.T) {
		repo := new(mockRepo)
		p := newMockProvider("openlibrary")
		s := NewLookupService(repo, []Provider{p}, nil)

		repo.On("GetByISBN", ctx, "9780134685991").Return(Book{}, ErrNotFound)
		p.On("SearchByISBN", ctx, "9780134685991").Return(Book{ISBN: "9780134685991", Title: "X"}, true, nil)
		repo.On("Save", ctx, mock.MatchedBy(func(b Book) bool {
			return b.Source == "openlibrary"
		})).Return(Book{ID: "id", Source: "openlibrary"}, nil)

		_, err := s.LookupByISBN(ctx, "9780134685991")

		assert.NoError(t, err)
		repo.AssertExpectations(t)
	})

	t.Run("cancellation propagates instead of a spurious not found", func(t *testing.T) {
		repo := new(mockRepo)
		p1 := newMockProvider("openlibrary")
		p2 := newMockProvider("googlebooks")
		s := NewLookupService(repo, []Provider{p1, p2}, nil)

		cancelCtx, cancel := context.WithCancel(ctx)

		repo.On("GetByISBN", cancelCtx, "9780134685991").Return(Book{}, ErrNotFound)
		p1.On("SearchByISBN", cancelCtx, "9780134685991").Run(func(args mock.Arguments) {
			cancel()
		}).Return(Book{}, false, context.Canceled)

		_, err := s.LookupByISBN(cancelCtx, "9780134685991")

		assert.ErrorIs(t, err, context.Canceled)
		p2.AssertNotCalled(t, "SearchByISBN", mock.Anything, mock.Anything)
	})

	t.Run("concurrent lookups do not cross-contaminate", func(t *testing.T) {
		repo := NewMemoryRepo()
		a, _ := repo.Save(ctx, Book{ISBN: "1111111111", Title: "A", Source: SourceLocal})
		b, _ := repo.Save(ctx, Book{ISBN: "2222222222", Title: "B", Source: SourceLocal})
		s := NewLookupService(repo, nil, nil)

		type result struct {
			got Book
			err error
		}
		resA := make(chan result, 50)
		resB := make(chan result, 50)
		for i := 0; i < 50; i++ {
			go func() {
				got, err := s.LookupByISBN(ctx, "1111111111")
				resA <- result{got, err}
			}()
			go func() {
				got, err := s.LookupByISBN(ctx, "2222222222")
				resB <- result{got, err}
			}()
		}
		for i := 0; i < 50; i++ {
			ra := <-resA
			assert.NoError(t, ra.err)
			assert.Equal(t, a.ID, ra.got.ID)
			rb := <-resB
			assert.NoError(t, rb.err)
			assert.Equal(t, b.ID, rb.got.ID)
		}
	})
}
