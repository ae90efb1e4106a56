package book

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// DefaultFanoutTimeout bounds the whole provider fan-out of a cover
// search; a provider still pending at the deadline is skipped.
const DefaultFanoutTimeout = 10 * time.Second

// SearchResult is the aggregated outcome of a cover-text search.
type SearchResult struct {
	Books        []Book `json:"books"`
	TotalResults int    `json:"total_results"`
}

// SearchService resolves noisy cover text (OCR, voice transcripts) by
// querying the local repository and every configured provider, then
// collapsing the union to unique records.
type SearchService struct {
	repo       Repository
	providers  []Provider
	normalizer *Normalizer
	timeout    time.Duration
	logger     *log.Logger
}

// NewSearchService creates a SearchService. timeout <= 0 selects
// DefaultFanoutTimeout.
func NewSearchService(repo Repository, providers []Provider, normalizer *Normalizer, timeout time.Duration, logger *log.Logger) *SearchService {
	if timeout <= 0 {
		timeout = DefaultFanoutTimeout
	}
	if logger == nil {
		logger = log.Default()
	}
	return &SearchService{
		repo:       repo,
		providers:  providers,
		normalizer: normalizer,
		timeout:    timeout,
		logger:     logger,
	}
}

// SearchByCoverText cleans rawText into a query and fans it out to the
// repository and all providers at once. Local matches never short-circuit
// the fan-out: a cover photo may match a book not indexed locally, and a
// stale local match must not suppress a better external one. Results are
// aggregated local-first, then providers in configured order, and
// deduplicated. Nothing discovered here is persisted.
//
// Input that is blank, or that normalizes to an empty query, returns an
// empty result with no I/O at all. A single provider failing or timing
// out is logged and skipped, never fatal.
func (s *SearchService) SearchByCoverText(ctx context.Context, rawText string) (SearchResult, error) {
	query := s.normalizer.Normalize(rawText)
	if query == "" {
		return SearchResult{Books: []Book{}}, nil
	}

	fanCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	// One slot per provider keeps aggregation order deterministic no
	// matter which call settles first. A settled slot may legitimately
	// hold zero matches, so settle status is tracked separately.
	providerBooks := make([][]Book, len(s.providers))
	providerSettled := make([]bool, len(s.providers))
	var wg sync.WaitGroup
	for i, p := range s.providers {
		wg.Add(1)
		go func(i int, p Provider) {
			defer wg.Done()
			books, err := p.SearchByText(fanCtx, query)
			if err != nil {
				s.logger.Warn("provider search failed, skipping",
					"provider", p.Name(), "query", query, "err", err)
				return
			}
			providerBooks[i] = books
			providerSettled[i] = true
		}(i, p)
	}

	localSettled := false
	local, err := s.repo.Search(fanCtx, query)
	if err != nil {
		s.logger.Warn("repository search failed, continuing with providers",
			"query", query, "err", err)
		local = nil
	} else {
		localSettled = true
	}

	wg.Wait()

	if err := ctx.Err(); err != nil {
		// Caller cancelled mid-flight: return whatever settled, or give
		// up entirely if nothing did.
		settled := localSettled
		for _, ok := range providerSettled {
			settled = settled || ok
		}
		if !settled {
			return SearchResult{}, err
		}
	}

	candidates := make([]Book, 0, len(local))
	candidates = append(candidates, local...)
	for _, books := range providerBooks {
		candidates = append(candidates, books...)
	}

	deduped := Dedupe(candidates)
	return SearchResult{Books: deduped, TotalResults: len(deduped)}, nil
}
