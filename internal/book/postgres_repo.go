package book

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"bookfinder/internal/isbn"
)

// PostgresRepo implements Repository on a pgx connection pool. Upserts are
// keyed by id and atomic, so concurrent saves of the same record are safe.
type PostgresRepo struct {
	db      *pgxpool.Pool
	timeout time.Duration
}

func NewPostgresRepo(db *pgxpool.Pool, timeout time.Duration) *PostgresRepo {
	return &PostgresRepo{db: db, timeout: timeout}
}

func (r *PostgresRepo) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.timeout)
}

const bookColumns = `id, isbn, title, authors, publisher, publish_year, cover_url, description, page_count, source, external_id`

func scanBook(row pgx.Row) (Book, error) {
	var b Book
	err := row.Scan(
		&b.ID, &b.ISBN, &b.Title, &b.Authors, &b.Publisher, &b.PublishYear,
		&b.CoverURL, &b.Description, &b.PageCount, &b.Source, &b.ExternalID,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Book{}, ErrNotFound
		}
		return Book{}, err
	}
	return b, nil
}

func (r *PostgresRepo) GetByID(ctx context.Context, id string) (Book, error) {
	const query = `SELECT ` + bookColumns + ` FROM books WHERE id = $1 LIMIT 1`

	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	return scanBook(r.db.QueryRow(timeoutCtx, query, id))
}

// GetByISBN normalizes both sides of the comparison, so hyphenated and
// bare forms of the same ISBN resolve to the same row.
func (r *PostgresRepo) GetByISBN(ctx context.Context, rawISBN string) (Book, error) {
	const query = `
		SELECT ` + bookColumns + `
		FROM books
		WHERE isbn <> '' AND UPPER(REPLACE(REPLACE(isbn, '-', ''), ' ', '')) = $1
		LIMIT 1`

	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	return scanBook(r.db.QueryRow(timeoutCtx, query, isbn.Normalize(rawISBN)))
}

// Search matches text case-insensitively over title, authors and
// publisher.
func (r *PostgresRepo) Search(ctx context.Context, text string) ([]Book, error) {
	const query = `
		SELECT ` + bookColumns + `
		FROM books
		WHERE title ILIKE $1
		   OR publisher ILIKE $1
		   OR EXISTS (SELECT 1 FROM unnest(authors) AS a WHERE a ILIKE $1)
		ORDER BY title`

	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	rows, err := r.db.Query(timeoutCtx, query, "%"+text+"%")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Book
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// Save upserts b keyed by id, assigning a fresh id when absent. The
// returned record carries the assigned id.
func (r *PostgresRepo) Save(ctx context.Context, b Book) (Book, error) {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}

	const query = `
		INSERT INTO books (id, isbn, title, authors, publisher, publish_year,
		                   cover_url, description, page_count, source, external_id,
		                   created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW(), NOW())
		ON CONFLICT (id) DO UPDATE SET
			isbn = EXCLUDED.isbn,
			title = EXCLUDED.title,
			authors = EXCLUDED.authors,
			publisher = EXCLUDED.publisher,
			publish_year = EXCLUDED.publish_year,
			cover_url = EXCLUDED.cover_url,
			description = EXCLUDED.description,
			page_count = EXCLUDED.page_count,
			source = EXCLUDED.source,
			external_id = EXCLUDED.external_id,
			updated_at = NOW()`

	authors := b.Authors
	if authors == nil {
		authors = []string{}
	}

	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	_, err := r.db.Exec(timeoutCtx, query,
		b.ID, b.ISBN, b.Title, authors, b.Publisher, b.PublishYear,
		b.CoverURL, b.Description, b.PageCount, b.Source, b.ExternalID,
	)
	if err != nil {
		return Book{}, err
	}
	return b, nil
}

// GetAll returns every stored book. Administrative and seeding use only.
func (r *PostgresRepo) GetAll(ctx context.Context) ([]Book, error) {
	const query = `SELECT ` + bookColumns + ` FROM books ORDER BY title`

	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	rows, err := r.db.Query(timeoutCtx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Book
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
