package book

import (
	"context"
	"errors"
	"strings"

	"bookfinder/internal/isbn"

	"github.com/charmbracelet/log"
)

// LookupService resolves a single ISBN to a canonical record by consulting
// the local repository first and then an ordered chain of providers.
type LookupService struct {
	repo      Repository
	providers []Provider
	logger    *log.Logger
}

// NewLookupService creates a LookupService. Provider order is priority
// order: the first provider with an answer wins.
func NewLookupService(repo Repository, providers []Provider, logger *log.Logger) *LookupService {
	if logger == nil {
		logger = log.Default()
	}
	return &LookupService{repo: repo, providers: providers, logger: logger}
}

// LookupByISBN returns the canonical record for rawISBN, or ErrNotFound
// when neither the repository nor any provider knows it. A blank input is
// rejected with ErrBlankISBN before any I/O.
//
// The repository is the implicit cache layer: a local hit returns without
// a single network call. On a miss the provider chain runs strictly
// sequentially and short-circuits on the first hit, which is persisted
// before being returned. ISBN identity is exact, so no aggregation across
// providers happens here.
func (s *LookupService) LookupByISBN(ctx context.Context, rawISBN string) (Book, error) {
	if strings.TrimSpace(rawISBN) == "" {
		return Book{}, ErrBlankISBN
	}
	normalized := isbn.Normalize(strings.TrimSpace(rawISBN))

	local, err := s.repo.GetByISBN(ctx, normalized)
	switch {
	case err == nil:
		return local, nil
	case errors.Is(err, ErrNotFound):
	case ctx.Err() != nil:
		return Book{}, ctx.Err()
	default:
		// Availability first: a degraded repository reads as a miss and
		// the provider chain still runs.
		s.logger.Warn("repository read failed, falling through to providers",
			"isbn", normalized, "err", err)
	}

	for _, p := range s.providers {
		if err := ctx.Err(); err != nil {
			return Book{}, err
		}

		found, ok, err := p.SearchByISBN(ctx, normalized)
		if err != nil {
			if ctx.Err() != nil {
				return Book{}, ctx.Err()
			}
			s.logger.Warn("provider lookup failed, skipping",
				"provider", p.Name(), "isbn", normalized, "err", err)
			continue
		}
		if !ok {
			continue
		}

		if found.Source == "" {
			found.Source = p.Name()
		}
		saved, err := s.repo.Save(ctx, found)
		if err != nil {
			// A write failure must not turn a successful resolution into
			// an error; the caller gets the unpersisted record.
			s.logger.Error("could not persist resolved book",
				"provider", p.Name(), "isbn", normalized, "err", err)
			return found, nil
		}
		return saved, nil
	}

	return Book{}, ErrNotFound
}
