package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/Skyjoe/noticias-resumidas/internal/model"
)

const Schema = `
CREATE TABLE IF NOT EXISTS news_item (
	id         BIGSERIAL PRIMARY KEY,
	query      TEXT NOT NULL,
	url        TEXT NOT NULL,
	title      TEXT NOT NULL,
	summary    TEXT NOT NULL,
	published  TEXT NOT NULL,
	source     TEXT NOT NULL DEFAULT '',
	fetched_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (query, url)
);

CREATE TABLE IF NOT EXISTS popular_query (
	query       TEXT PRIMARY KEY,
	promoted_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

type SearchRepository struct {
	db *sql.DB
}

func NewSearchRepository(db *sql.DB) *SearchRepository {
	return &SearchRepository{db: db}
}

func (r *SearchRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}

// SaveResults archives one fetched result set. Rows already stored for the
// same query and URL are refreshed in place.
func (r *SearchRepository) SaveResults(ctx context.Context, query string, items []model.NewsItem) error {
	if len(items) == 0 {
		return nil
	}

	urls := make([]string, len(items))
	titles := make([]string, len(items))
	summaries := make([]string, len(items))
	dates := make([]string, len(items))
	sources := make([]string, len(items))
	for i, it := range items {
		urls[i] = it.URL
		titles[i] = it.Title
		summaries[i] = it.Summary
		dates[i] = it.Date
		sources[i] = it.Source
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO news_item(query, url, title, summary, published, source)
		SELECT $1, unnest($2::text[]), unnest($3::text[]), unnest($4::text[]), unnest($5::text[]), unnest($6::text[])
		ON CONFLICT (query, url) DO UPDATE SET
			title = EXCLUDED.title,
			summary = EXCLUDED.summary,
			published = EXCLUDED.published,
			source = EXCLUDED.source,
			fetched_at = NOW()
	`, query, pq.Array(urls), pq.Array(titles), pq.Array(summaries), pq.Array(dates), pq.Array(sources))
	if err != nil {
		return fmt.Errorf("saving results for %q: %w", query, err)
	}
	return nil
}

// GetResults returns the archived items for query, most recently fetched
// first.
func (r *SearchRepository) GetResults(ctx context.Context, query string, limit int) ([]model.NewsItem, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT title, summary, url, published, source
		FROM news_item
		WHERE query = $1
		ORDER BY fetched_at DESC, id ASC
		LIMIT $2
	`, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []model.NewsItem
	for rows.Next() {
		var it model.NewsItem
		if err := rows.Scan(&it.Title, &it.Summary, &it.URL, &it.Date, &it.Source); err != nil {
			return nil, err
		}
		items = append(items, it)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return items, nil
}

func (r *SearchRepository) SavePopular(ctx context.Context, query string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO popular_query(query) VALUES($1)
		ON CONFLICT (query) DO NOTHING
	`, query)
	if err != nil {
		return fmt.Errorf("saving popular query %q: %w", query, err)
	}
	return nil
}

func (r *SearchRepository) LoadPopular(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT query FROM popular_query ORDER BY promoted_at ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var queries []string
	for rows.Next() {
		var q string
		if err := rows.Scan(&q); err != nil {
			return nil, err
		}
		queries = append(queries, q)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return queries, nil
}
