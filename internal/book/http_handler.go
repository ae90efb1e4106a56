package book

import (
	"context"
	"errors"
	"net/http"

	"bookfinder/internal/httpx"
)

// HTTPHandler exposes the lookup and search operations over HTTP.
type HTTPHandler struct {
	lookup *LookupService
	search *SearchService
	repo   Repository
}

func NewHTTPHandler(lookup *LookupService, search *SearchService, repo Repository) *HTTPHandler {
	return &HTTPHandler{lookup: lookup, search: search, repo: repo}
}

// LookupByISBN handles GET /books/{isbn}.
//
// A genuinely unknown ISBN is a 404, never a 5xx; only blank input (400)
// and unexpected failures surface as errors.
func (h *HTTPHandler) LookupByISBN(w http.ResponseWriter, r *http.Request) {
	b, err := h.lookup.LookupByISBN(r.Context(), r.PathValue("isbn"))
	if err != nil {
		switch {
		case errors.Is(err, ErrBlankISBN):
			httpx.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "isbn must not be blank")
		case errors.Is(err, ErrNotFound):
			httpx.JSONError(w, http.StatusNotFound, "NOT_FOUND", "no book found for this isbn")
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			httpx.JSONError(w, http.StatusGatewayTimeout, "TIMEOUT", "lookup timed out")
		default:
			httpx.JSONError(w, http.StatusInternalServerError, "INTERNAL", "server error")
		}
		return
	}
	httpx.JSONSuccess(w, b, nil)
}

// SearchByCoverText handles GET /search?text=...
//
// Empty or unmatchable text is a normal 200 with an empty list.
func (h *HTTPHandler) SearchByCoverText(w http.ResponseWriter, r *http.Request) {
	result, err := h.search.SearchByCoverText(r.Context(), r.URL.Query().Get("text"))
	if err != nil {
		switch {
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			httpx.JSONError(w, http.StatusGatewayTimeout, "TIMEOUT", "search timed out")
		default:
			httpx.JSONError(w, http.StatusInternalServerError, "INTERNAL", "server error")
		}
		return
	}
	httpx.JSONSuccess(w, result.Books, map[string]any{"total_results": result.TotalResults})
}

// List handles GET /books. Administrative listing of everything stored.
func (h *HTTPHandler) List(w http.ResponseWriter, r *http.Request) {
	books, err := h.repo.GetAll(r.Context())
	if err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "INTERNAL", "server error")
		return
	}
	httpx.JSONSuccess(w, books, map[string]any{"total": len(books)})
}
