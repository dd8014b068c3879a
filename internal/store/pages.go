package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// UpsertPage stores a page keyed by URL. A repeated URL updates the
// existing row and refreshes last_crawled. Returns the page id.
func (s *Store) UpsertPage(ctx context.Context, p Page) (int64, error) {
	if err := p.validate(); err != nil {
		return 0, err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pages (url, domain, is_primary, title, description, h1, content_text, word_count, schema_data)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(url) DO UPDATE SET
			domain=excluded.domain,
			is_primary=excluded.is_primary,
			title=excluded.title,
			description=excluded.description,
			h1=excluded.h1,
			content_text=excluded.content_text,
			word_count=excluded.word_count,
			schema_data=excluded.schema_data,
			last_crawled=CURRENT_TIMESTAMP
	`, p.URL, p.Domain, p.IsPrimary, p.Title, p.Description, p.H1, p.ContentText, p.WordCount, p.SchemaData)
	if err != nil {
		return 0, fmt.Errorf("upserting page %s: %w", p.URL, err)
	}

	// LastInsertId is unreliable on conflict updates, so read the id back.
	return s.PageID(ctx, p.URL)
}

// PageID looks up a page id by URL. Returns sql.ErrNoRows when absent.
func (s *Store) PageID(ctx context.Context, url string) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, "SELECT id FROM pages WHERE url = ?", url).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("looking up page %s: %w", url, err)
	}
	return id, nil
}

// PageByURL fetches a full page row. Returns sql.ErrNoRows when absent.
func (s *Store) PageByURL(ctx context.Context, url string) (Page, error) {
	var p Page
	err := s.db.QueryRowContext(ctx, `
		SELECT id, url, domain, is_primary, COALESCE(title, ''), COALESCE(description, ''),
		       COALESCE(h1, ''), COALESCE(content_text, ''), COALESCE(word_count, 0), COALESCE(schema_data, '')
		FROM pages WHERE url = ?
	`, url).Scan(&p.ID, &p.URL, &p.Domain, &p.IsPrimary, &p.Title, &p.Description, &p.H1,
		&p.ContentText, &p.WordCount, &p.SchemaData)
	if err != nil {
		return Page{}, fmt.Errorf("loading page %s: %w", url, err)
	}
	return p, nil
}

// PagesBySite lists pages filtered by the primary flag.
func (s *Store) PagesBySite(ctx context.Context, isPrimary bool) ([]Page, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, url, domain, is_primary, COALESCE(title, ''), COALESCE(description, ''),
		       COALESCE(h1, ''), COALESCE(content_text, ''), COALESCE(word_count, 0), COALESCE(schema_data, '')
		FROM pages WHERE is_primary = ? ORDER BY id
	`, isPrimary)
	if err != nil {
		return nil, fmt.Errorf("listing pages: %w", err)
	}
	defer rows.Close()

	var pages []Page
	for rows.Next() {
		var p Page
		if err := rows.Scan(&p.ID, &p.URL, &p.Domain, &p.IsPrimary, &p.Title, &p.Description,
			&p.H1, &p.ContentText, &p.WordCount, &p.SchemaData); err != nil {
			return nil, fmt.Errorf("scanning page: %w", err)
		}
		pages = append(pages, p)
	}
	return pages, rows.Err()
}

// IsNotFound reports whether err means the row does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
