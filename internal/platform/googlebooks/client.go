// Package googlebooks implements the book.Provider contract against the
// Google Books volumes API.
package googlebooks

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"bookfinder/internal/book"
)

// Name is the provenance tag carried by records this provider produces.
const Name = "googlebooks"

const searchPageSize = 10

type Client struct {
	httpClient *http.Client
	apiKey     string
	baseURL    string
	limiter    *rate.Limiter
	maxRetries int
}

// NewClient creates a Google Books client. apiKey may be empty; the
// volumes endpoint serves unauthenticated requests at a lower quota.
func NewClient(apiKey string, rps int, maxRetries int) *Client {
	if rps < 1 {
		rps = 1
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		apiKey:     apiKey,
		baseURL:    "https://www.googleapis.com/books/v1",
		limiter:    rate.NewLimiter(rate.Every(time.Second/time.Duration(rps)), 1),
		maxRetries: maxRetries,
	}
}

func (c *Client) Name() string { return Name }

// volumesResponse matches the volumes list endpoint.
type volumesResponse struct {
	TotalItems int `json:"totalItems"`
	Items      []struct {
		ID         string `json:"id"`
		VolumeInfo struct {
			Title               string   `json:"title"`
			Authors             []string `json:"authors"`
			Publisher           string   `json:"publisher"`
			PublishedDate       string   `json:"publishedDate"`
			Description         string   `json:"description"`
			PageCount           int      `json:"pageCount"`
			IndustryIdentifiers []struct {
				Type       string `json:"type"`
				Identifier string `json:"identifier"`
			} `json:"industryIdentifiers"`
			ImageLinks struct {
				Thumbnail string `json:"thumbnail"`
			} `json:"imageLinks"`
		} `json:"volumeInfo"`
	} `json:"items"`
}

// SearchByISBN resolves a single normalized ISBN. Zero matching volumes
// is a normal miss, not an error.
func (c *Client) SearchByISBN(ctx context.Context, isbn string) (book.Book, bool, error) {
	res, err := c.volumes(ctx, "isbn:"+isbn, 1)
	if err != nil {
		return book.Book{}, false, err
	}
	if res.TotalItems == 0 || len(res.Items) == 0 {
		return book.Book{}, false, nil
	}

	b := c.toBook(res, 0)
	if b.ISBN == "" {
		b.ISBN = isbn
	}
	return b, true, nil
}

// SearchByText runs a free-text query and maps the first page of results.
func (c *Client) SearchByText(ctx context.Context, query string) ([]book.Book, error) {
	res, err := c.volumes(ctx, query, searchPageSize)
	if err != nil {
		return nil, err
	}

	out := make([]book.Book, 0, len(res.Items))
	for i := range res.Items {
		out = append(out, c.toBook(res, i))
	}
	return out, nil
}

func (c *Client) volumes(ctx context.Context, q string, maxResults int) (*volumesResponse, error) {
	u := fmt.Sprintf("%s/volumes?q=%s&maxResults=%d", c.baseURL, url.QueryEscape(q), maxResults)
	if c.apiKey != "" {
		u += "&key=" + url.QueryEscape(c.apiKey)
	}

	var res volumesResponse
	if err := c.get(ctx, u, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) toBook(res *volumesResponse, i int) book.Book {
	item := res.Items[i]
	info := item.VolumeInfo

	b := book.Book{
		Title:       info.Title,
		Authors:     info.Authors,
		Publisher:   info.Publisher,
		Description: info.Description,
		CoverURL:    info.ImageLinks.Thumbnail,
		Source:      Name,
		ExternalID:  item.ID,
	}

	// Prefer the 13-digit identifier when both forms are present.
	for _, id := range info.IndustryIdentifiers {
		switch id.Type {
		case "ISBN_13":
			b.ISBN = id.Identifier
		case "ISBN_10":
			if b.ISBN == "" {
				b.ISBN = id.Identifier
			}
		}
	}

	if len(info.PublishedDate) >= 4 {
		year := 0
		for _, ch := range info.PublishedDate[:4] {
			if ch < '0' || ch > '9' {
				year = 0
				break
			}
			year = year*10 + int(ch-'0')
		}
		if year > 0 {
			b.PublishYear = &year
		}
	}
	if info.PageCount > 0 {
		pages := info.PageCount
		b.PageCount = &pages
	}
	return b
}

func (c *Client) get(ctx context.Context, url string, target interface{}) error {
	var lastErr error
	for i := 0; i <= c.maxRetries; i++ {
		if i > 0 {
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
