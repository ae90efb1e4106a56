// Package openlibrary implements the book.Provider contract against the
// Open Library REST API.
package openlibrary

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"bookfinder/internal/book"
)

// Name is the provenance tag carried by records this provider produces.
const Name = "openlibrary"

const searchPageSize = 10

type Client struct {
	httpClient *http.Client
	userAgent  string
	baseURL    string
	limiter    *rate.Limiter
	maxRetries int
}

func NewClient(userAgent string, rps int, maxRetries int) *Client {
	if rps < 1 {
		rps = 1
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		userAgent:  userAgent,
		baseURL:    "https://openlibrary.org",
		limiter:    rate.NewLimiter(rate.Every(time.Second/time.Duration(rps)), 1),
		maxRetries: maxRetries,
	}
}

func (c *Client) Name() string { return Name }

// bookDetails matches api/books?jscmd=data entries.
type bookDetails struct {
	Key        string `json:"key"`
	Title      string `json:"title"`
	Publishers []struct {
		Name string `json:"name"`
	} `json:"publishers"`
	PublishDate string `json:"publish_date"`
	Cover       struct {
		Large string `json:"large"`
	} `json:"cover"`
	Authors []struct {
		URL  string `json:"url"`
		Name string `json:"name"`
	} `json:"authors"`
	NumberOfPages int    `json:"number_of_pages"`
	Notes         string `json:"notes"`
}

// searchResponse matches search.json.
type searchResponse struct {
	NumFound int `json:"numFound"`
	Docs     []struct {
		Key              string   `json:"key"`
		Title            string   `json:"title"`
		AuthorNames      []string `json:"author_name"`
		ISBN             []string `json:"isbn"`
		Publisher        []string `json:"publisher"`
		FirstPublishYear int      `json:"first_publish_year"`
		CoverID          int      `json:"cover_i"`
	} `json:"docs"`
}

// SearchByISBN resolves a single normalized ISBN. An ISBN Open Library
// does not know is a normal miss, not an error.
func (c *Client) SearchByISBN(ctx context.Context, isbn string) (book.Book, bool, error) {
	u := fmt.Sprintf("%s/api/books?bibkeys=ISBN:%s&jscmd=data&format=json",
		c.baseURL, url.QueryEscape(isbn))

	var res map[string]bookDetails
	if err := c.get(ctx, u, &res); err != nil {
		return book.Book{}, false, err
	}

	details, ok := res["ISBN:"+isbn]
	if !ok {
		return book.Book{}, false, nil
	}
	return c.toBook(isbn, details), true, nil
}

// SearchByText runs a free-text query and maps the first page of results.
func (c *Client) SearchByText(ctx context.Context, query string) ([]book.Book, error) {
	u := fmt.Sprintf("%s/search.json?q=%s&fields=key,title,author_name,isbn,publisher,first_publish_year,cover_i&limit=%d",
		c.baseURL, url.QueryEscape(query), searchPageSize)

	var res searchResponse
	if err := c.get(ctx, u, &res); err != nil {
		return nil, err
	}

	out := make([]book.Book, 0, len(res.Docs))
	for _, doc := range res.Docs {
		b := book.Book{
			Title:      doc.Title,
			Authors:    doc.AuthorNames,
			ISBN:       pickISBN(doc.ISBN),
			Source:     Name,
			ExternalID: doc.Key,
		}
		if len(doc.Publisher) > 0 {
			b.Publisher = doc.Publisher[0]
		}
		if doc.FirstPublishYear > 0 {
			year := doc.FirstPublishYear
			b.PublishYear = &year
		}
		if doc.CoverID > 0 {
			b.CoverURL = fmt.Sprintf("https://covers.openlibrary.org/b/id/%d-M.jpg", doc.CoverID)
		}
		out = append(out, b)
	}
	return out, nil
}

func (c *Client) toBook(isbn string, d bookDetails) book.Book {
	b := book.Book{
		ISBN:        isbn,
		Title:       d.Title,
		Description: d.Notes,
		CoverURL:    d.Cover.Large,
		Source:      Name,
		ExternalID:  d.Key,
	}
	for _, a := range d.Authors {
		b.Authors = append(b.Authors, a.Name)
	}
	if len(d.Publishers) > 0 {
		names := make([]string, len(d.Publishers))
		for i, p := range d.Publishers {
			names[i] = p.Name
		}
		b.Publisher = strings.Join(names, ", ")
	}
	if year := parseYear(d.PublishDate); year > 0 {
		b.PublishYear = &year
	}
	if d.NumberOfPages > 0 {
		pages := d.NumberOfPages
		b.PageCount = &pages
	}
	return b
}

// parseYear extracts the first 4-digit run from a free-form publish date
// such as "May 1999" or "1999-05-01".
func parseYear(date string) int {
	for i := 0; i+4 <= len(date); i++ {
		year := 0
		ok := true
		for j := i; j < i+4; j++ {
			if date[j] < '0' || date[j] > '9' {
				ok = false
				break
			}
			year = year*10 + int(date[j]-'0')
		}
		if ok && (i+4 == len(date) || date[i+4] < '0' || date[i+4] > '9') {
			return year
		}
	}
	return 0
}

// pickISBN prefers the 13-digit form when a record carries both.
func pickISBN(isbns []string) string {
	if len(isbns) == 0 {
		return ""
	}
	for _, i := range isbns {
		if len(i) == 13 {
			return i
		}
	}
	return isbns[0]
}

func (c *Client) get(ctx context.Context, url string, target interface{}) error {
	var lastErr error
	for i := 0; i <= c.maxRetries; i++ {
		if i > 0 {
			// Backoff: 1s, 2s, 4s...
			backoff := time.Duration(1<<uint(i-1)) * time.Second
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		req.Header.Set("User-Agent", c.userAgent)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
				lastErr = fmt.Errorf("unexpected status code: %d", resp.StatusCode)
				continue
			}
			return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
		}

		err = json.NewDecoder(resp.Body).Decode(target)
		resp.Body.Close()
		return err
	}
	return fmt.Errorf("after %d retries: %w", c.maxRetries, lastErr)
}
