package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Skyjoe/noticias-resumidas/internal/cache"
	"github.com/Skyjoe/noticias-resumidas/internal/model"
)

var (
	ErrValidation = errors.New("invalid search request")
	ErrNotFound   = errors.New("no news found")
)

const (
	DefaultCount = 10
	MaxCount     = model.MaxResults
)

type Cache interface {
	Entry(ctx context.Context, key string) (*model.CacheEntry, bool)
}

// Fetcher reports cached when the result set was cached by a concurrent
// flight while the caller waited.
type Fetcher interface {
	Fetch(ctx context.Context, query string) ([]model.NewsItem, bool, error)
}

type Tracker interface {
	RecordAccess(query string) (int, bool)
}

type Promoter interface {
	Promote(query string)
}

type SearchRequest struct {
	Query string
	Start int
	Count int
}

type SearchResult struct {
	Query  string
	Start  int
	Count  int
	Total  int
	Cached bool
	Items  []model.NewsItem
}

// NewsService answers searches from the cache, falling back to a coalesced
// fetch on a miss, and feeds every served query to the popularity tracker.
type NewsService struct {
	cache    Cache
	fetcher  Fetcher
	tracker  Tracker
	promoter Promoter
}

func NewNewsService(cache Cache, fetcher Fetcher, tracker Tracker, promoter Promoter) *NewsService {
	return &NewsService{
		cache:    cache,
		fetcher:  fetcher,
		tracker:  tracker,
		promoter: promoter,
	}
}

func (s *NewsService) Search(ctx context.Context, req SearchRequest) (*SearchResult, error) {
	query := model.NormalizeQuery(req.Query)
	if query == "" {
		return nil, fmt.Errorf("%w: query is required", ErrValidation)
	}
	if req.Start < 0 {
		return nil, fmt.Errorf("%w: start must not be negative", ErrValidation)
	}
	if req.Count <= 0 {
		return nil, fmt.Errorf("%w: count must be positive", ErrValidation)
	}

	count := min(req.Count, MaxCount)

	var (
		items  []model.NewsItem
		cached bool
	)
	if e, ok := s.cache.Entry(ctx, query); ok {
		items, cached = e.Items, true
	} else {
		fetched, hit, err := s.fetcher.Fetch(ctx, query)
		if err != nil {
			return nil, err
		}
		items, cached = fetched, hit
	}

	if _, promoted := s.tracker.RecordAccess(query); promoted {
		slog.Info("query became popular", "query", query)
		s.promoter.Promote(query)
	}

	page := cache.Slice(items, req.Start, count)
	if len(page) == 0 {
		return nil, fmt.Errorf("%w: %q start=%d total=%d", ErrNotFound, query, req.Start, len(items))
	}

	return &SearchResult{
		Query:  query,
		Start:  req.Start,
		Count:  len(page),
		Total:  len(items),
		Cached: cached,
		Items:  page,
	}, nil
}
