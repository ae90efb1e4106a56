package book

import (
	"errors"

	"bookfinder/internal/isbn"
)

// ErrNotFound is returned when no source can resolve a book.
var ErrNotFound = errors.New("book not found")

// ErrBlankISBN is returned when a lookup is attempted with a blank ISBN.
var ErrBlankISBN = errors.New("isbn must not be blank")

// Provenance tags for records that did not come straight from an
// external provider.
const (
	SourceLocal = "local"
	SourceCache = "cache"
)

// Book represents a bibliographic record.
type Book struct {
	ID          string   `json:"id,omitempty"`
	ISBN        string   `json:"isbn,omitempty"`
	Title       string   `json:"title"`
	Authors     []string `json:"authors,omitempty"`
	Publisher   string   `json:"publisher,omitempty"`
	PublishYear *int     `json:"publish_year,omitempty"`
	CoverURL    string   `json:"cover_url,omitempty"`
	Description string   `json:"description,omitempty"`
	PageCount   *int     `json:"page_count,omitempty"`
	Source      string   `json:"source,omitempty"`
	ExternalID  string   `json:"external_id,omitempty"`
}

// NormalizedISBN returns the book's ISBN with separators stripped.
// The stored ISBN keeps its display formatting.
func (b Book) NormalizedISBN() string {
	return isbn.Normalize(b.ISBN)
}
