package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/assert/v2"

	"github.com/Skyjoe/noticias-resumidas/internal/cache"
	"github.com/Skyjoe/noticias-resumidas/internal/coalesce"
	"github.com/Skyjoe/noticias-resumidas/internal/model"
	"github.com/Skyjoe/noticias-resumidas/internal/popular"
	"github.com/Skyjoe/noticias-resumidas/pkg/news"
)

type fakeSearcher struct {
	mu    sync.Mutex
	calls int
	raw   []news.RawItem
	err   error
}

func (f *fakeSearcher) Name() string { return "fake" }

func (f *fakeSearcher) Search(context.Context, string) ([]news.RawItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.raw, f.err
}

func (f *fakeSearcher) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakePromoter struct {
	mu       sync.Mutex
	promoted []string
}

func (f *fakePromoter) Promote(query string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.promoted = append(f.promoted, query)
}

func rawItems(n int) []news.RawItem {
	out := make([]news.RawItem, n)
	for i := range out {
		out[i] = news.RawItem{
			Link:  fmt.Sprintf("https://example.com/%d", i),
			Title: fmt.Sprintf("Notícia %d", i),
		}
	}
	return out
}

func newTestService(s *fakeSearcher) (*NewsService, *cache.TwoTier, *fakePromoter) {
	c := cache.NewTwoTier(cache.NewLocal(100, 5*time.Minute), cache.NewMemoryTier(10*time.Minute))
	co := coalesce.New(s, c, coalesce.Options{MinInterval: 10 * time.Millisecond})
	p := &fakePromoter{}
	return NewNewsService(c, co, popular.NewTracker(3), p), c, p
}

func TestSearch_FirstRequestFetchesAndCaches(t *testing.T) {
	s := &fakeSearcher{raw: rawItems(30)}
	svc, c, _ := newTestService(s)

	res, err := svc.Search(context.Background(), SearchRequest{Query: "eleições", Start: 0, Count: 3})

	assert.Equal(t, nil, err)
	assert.Equal(t, 1, s.Calls())
	assert.Equal(t, 3, len(res.Items))
	assert.Equal(t, "Notícia 0", res.Items[0].Title)
	assert.Equal(t, 20, res.Total)
	assert.Equal(t, false, res.Cached)

	cached, ok := c.Lookup(context.Background(), "eleições")
	assert.Equal(t, true, ok)
	assert.Equal(t, 20, len(cached))
}

func TestSearch_SecondWindowServedFromCache(t *testing.T) {
	s := &fakeSearcher{raw: rawItems(6)}
	svc, _, _ := newTestService(s)
	ctx := context.Background()

	_, err := svc.Search(ctx, SearchRequest{Query: "eleições", Start: 0, Count: 3})
	assert.Equal(t, nil, err)

	res, err := svc.Search(ctx, SearchRequest{Query: "Eleições ", Start: 3, Count: 5})

	assert.Equal(t, nil, err)
	assert.Equal(t, 1, s.Calls())
	assert.Equal(t, true, res.Cached)
	assert.Equal(t, 3, len(res.Items))
	assert.Equal(t, "Notícia 3", res.Items[0].Title)
	assert.Equal(t, "Notícia 5", res.Items[2].Title)
}

func TestSearch_RepeatedLookupsAreIdempotent(t *testing.T) {
	s := &fakeSearcher{raw: rawItems(10)}
	svc, _, _ := newTestService(s)
	ctx := context.Background()

	first, err := svc.Search(ctx, SearchRequest{Query: "copa", Count: 10})
	assert.Equal(t, nil, err)

	for i := 0; i < 5; i++ {
		res, err := svc.Search(ctx, SearchRequest{Query: "copa", Count: 10})
		assert.Equal(t, nil, err)
		assert.Equal(t, first.Items, res.Items)
	}
	assert.Equal(t, 1, s.Calls())
}

func TestSearch_ThirdRequestPromotes(t *testing.T) {
	s := &fakeSearcher{raw: rawItems(5)}
	svc, _, p := newTestService(s)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := svc.Search(ctx, SearchRequest{Query: "eleições", Count: 3})
		assert.Equal(t, nil, err)
	}
	svc.Search(ctx, SearchRequest{Query: "eleições", Count: 3})

	assert.Equal(t, []string{"eleições"}, p.promoted)
}

func TestSearch_ClampsCount(t *testing.T) {
	s := &fakeSearcher{raw: rawItems(40)}
	svc, _, _ := newTestService(s)

	res, err := svc.Search(context.Background(), SearchRequest{Query: "q", Count: 50})

	assert.Equal(t, nil, err)
	assert.Equal(t, 20, len(res.Items))
	assert.Equal(t, 20, res.Count)
}

func TestSearch_Validation(t *testing.T) {
	s := &fakeSearcher{raw: rawItems(5)}
	svc, _, _ := newTestService(s)
	ctx := context.Background()

	_, err := svc.Search(ctx, SearchRequest{Query: "   ", Count: 3})
	assert.Equal(t, true, errors.Is(err, ErrValidation))

	_, err = svc.Search(ctx, SearchRequest{Query: "q", Start: -1, Count: 3})
	assert.Equal(t, true, errors.Is(err, ErrValidation))

	_, err = svc.Search(ctx, SearchRequest{Query: "q", Count: 0})
	assert.Equal(t, true, errors.Is(err, ErrValidation))

	assert.Equal(t, 0, s.Calls())
}

func TestSearch_EmptyResultIsNotFoundAndCached(t *testing.T) {
	s := &fakeSearcher{raw: []news.RawItem{{Title: "sem link"}}}
	svc, _, _ := newTestService(s)
	ctx := context.Background()

	_, err := svc.Search(ctx, SearchRequest{Query: "nada", Count: 3})
	assert.Equal(t, true, errors.Is(err, ErrNotFound))

	_, err = svc.Search(ctx, SearchRequest{Query: "nada", Count: 3})
	assert.Equal(t, true, errors.Is(err, ErrNotFound))
	assert.Equal(t, 1, s.Calls())
}

func TestSearch_StartPastEndIsNotFound(t *testing.T) {
	s := &fakeSearcher{raw: rawItems(5)}
	svc, _, _ := newTestService(s)

	_, err := svc.Search(context.Background(), SearchRequest{Query: "q", Start: 5, Count: 3})

	assert.Equal(t, true, errors.Is(err, ErrNotFound))
}

func TestSearch_FetchFailure(t *testing.T) {
	s := &fakeSearcher{err: errors.New("429 from upstream")}
	svc, _, p := newTestService(s)

	_, err := svc.Search(context.Background(), SearchRequest{Query: "q", Count: 3})

	assert.Equal(t, true, errors.Is(err, coalesce.ErrFetch))
	assert.Equal(t, false, errors.Is(err, ErrNotFound))
	assert.Equal(t, 0, len(p.promoted))
}

type missingCache struct{}

func (missingCache) Entry(context.Context, string) (*model.CacheEntry, bool) { return nil, false }

type queuedFetcher struct {
	items []model.NewsItem
}

func (f queuedFetcher) Fetch(context.Context, string) ([]model.NewsItem, bool, error) {
	return f.items, true, nil
}

func TestSearch_CachedWhileQueuedIsReportedCached(t *testing.T) {
	f := queuedFetcher{items: []model.NewsItem{{Title: "a", URL: "https://example.com/a"}}}
	svc := NewNewsService(missingCache{}, f, popular.NewTracker(3), &fakePromoter{})

	res, err := svc.Search(context.Background(), SearchRequest{Query: "q", Count: 3})

	assert.Equal(t, nil, err)
	assert.Equal(t, true, res.Cached)
	assert.Equal(t, 1, len(res.Items))
}
