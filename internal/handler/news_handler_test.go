package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/assert/v2"

	"github.com/Skyjoe/noticias-resumidas/internal/coalesce"
	"github.com/Skyjoe/noticias-resumidas/internal/model"
	"github.com/Skyjoe/noticias-resumidas/internal/ratelimit"
	"github.com/Skyjoe/noticias-resumidas/internal/service"
)

type fakeService struct {
	res  *service.SearchResult
	err  error
	last service.SearchRequest
	hits int
}

func (f *fakeService) Search(_ context.Context, req service.SearchRequest) (*service.SearchResult, error) {
	f.hits++
	f.last = req
	return f.res, f.err
}

type fakePopular struct {
	stats []model.QueryStats
}

func (f *fakePopular) Snapshot() []model.QueryStats {
	return f.stats
}

func newTestRouter(svc NewsSearcher, pop PopularSource, limiter Limiter) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID())
	h := NewNewsHandler(svc, pop)
	if limiter != nil {
		r.GET("/news", RateLimit(limiter), h.GetNews)
	} else {
		r.GET("/news", h.GetNews)
	}
	r.GET("/popular", h.GetPopular)
	r.GET("/health", h.GetHealth)
	return r
}

func get(r *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", path, nil)
	r.ServeHTTP(w, req)
	return w
}

func errorBody(w *httptest.ResponseRecorder) string {
	var body map[string]string
	json.Unmarshal(w.Body.Bytes(), &body)
	return body["error"]
}

func TestGetNews_ReturnsItems(t *testing.T) {
	svc := &fakeService{res: &service.SearchResult{
		Query: "eleições",
		Start: 0,
		Count: 1,
		Total: 12,
		Items: []model.NewsItem{{Title: "Debate", URL: "https://example.com/1", Date: "01/10/2026 12:00", Source: "G1"}},
	}}
	r := newTestRouter(svc, &fakePopular{}, nil)

	w := get(r, "/news?query=elei%C3%A7%C3%B5es&start=0&count=1")

	assert.Equal(t, http.StatusOK, w.Code)

	var res NewsResponse
	json.Unmarshal(w.Body.Bytes(), &res)
	assert.Equal(t, "eleições", res.Query)
	assert.Equal(t, 12, res.Total)
	assert.Equal(t, 1, len(res.Items))
	assert.Equal(t, "Debate", res.Items[0].Title)
	assert.Equal(t, "G1", res.Items[0].Source)
	assert.Equal(t, service.SearchRequest{Query: "eleições", Start: 0, Count: 1}, svc.last)
}

func TestGetNews_Defaults(t *testing.T) {
	svc := &fakeService{res: &service.SearchResult{Items: []model.NewsItem{{Title: "x"}}}}
	r := newTestRouter(svc, &fakePopular{}, nil)

	w := get(r, "/news?query=copa")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, svc.last.Start)
	assert.Equal(t, service.DefaultCount, svc.last.Count)
}

func TestGetNews_MissingQuery(t *testing.T) {
	svc := &fakeService{}
	r := newTestRouter(svc, &fakePopular{}, nil)

	w := get(r, "/news")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Query not provided", errorBody(w))
	assert.Equal(t, 0, svc.hits)
}

func TestGetNews_MalformedInts(t *testing.T) {
	svc := &fakeService{}
	r := newTestRouter(svc, &fakePopular{}, nil)

	for _, path := range []string{
		"/news?query=q&start=abc",
		"/news?query=q&count=dez",
		"/news?query=q&start=-1",
		"/news?query=q&count=0",
		"/news?query=q&count=-5",
	} {
		w := get(r, path)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	}
	assert.Equal(t, 0, svc.hits)
}

func TestGetNews_ValidationFromService(t *testing.T) {
	svc := &fakeService{err: fmt.Errorf("%w: query is required", service.ErrValidation)}
	r := newTestRouter(svc, &fakePopular{}, nil)

	w := get(r, "/news?query=%20%20")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Query not provided", errorBody(w))
}

func TestGetNews_NotFound(t *testing.T) {
	svc := &fakeService{err: fmt.Errorf("%w: nothing", service.ErrNotFound)}
	r := newTestRouter(svc, &fakePopular{}, nil)

	w := get(r, "/news?query=q")

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "No news found", errorBody(w))
}

func TestGetNews_FetchFailureHidesDetail(t *testing.T) {
	svc := &fakeService{err: fmt.Errorf("%w: %w", coalesce.ErrFetch, errors.New("dial tcp 10.0.0.1:443: refused"))}
	r := newTestRouter(svc, &fakePopular{}, nil)

	w := get(r, "/news?query=q")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Failed to fetch news. Please try again later.", errorBody(w))
}

func TestGetNews_Timeout(t *testing.T) {
	svc := &fakeService{err: context.DeadlineExceeded}
	r := newTestRouter(svc, &fakePopular{}, nil)

	w := get(r, "/news?query=q")

	assert.Equal(t, http.StatusGatewayTimeout, w.Code)
}

func TestGetNews_RateLimited(t *testing.T) {
	svc := &fakeService{res: &service.SearchResult{Items: []model.NewsItem{{Title: "x"}}}}
	r := newTestRouter(svc, &fakePopular{}, ratelimit.New(2, time.Minute))

	assert.Equal(t, http.StatusOK, get(r, "/news?query=q").Code)
	assert.Equal(t, http.StatusOK, get(r, "/news?query=q").Code)

	w := get(r, "/news?query=q")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "Too many requests. Please try again later.", errorBody(w))
	assert.Equal(t, 2, svc.hits)
}

func TestRequestID(t *testing.T) {
	r := newTestRouter(&fakeService{}, &fakePopular{}, nil)

	w := get(r, "/health")
	assert.NotEqual(t, "", w.Header().Get(RequestIDHeader))

	req := httptest.NewRequest("GET", "/health", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Header().Get(RequestIDHeader))
}

func TestGetHealth(t *testing.T) {
	r := newTestRouter(&fakeService{}, &fakePopular{}, nil)

	w := get(r, "/health")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `{"status":"healthy"}`, w.Body.String())
}

func TestGetPopular(t *testing.T) {
	last := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	pop := &fakePopular{stats: []model.QueryStats{
		{Query: "eleições", Count: 7, Popular: true, LastAccess: last},
		{Query: "copa", Count: 3, Popular: true, LastAccess: last},
	}}
	r := newTestRouter(&fakeService{}, pop, nil)

	w := get(r, "/popular")

	assert.Equal(t, http.StatusOK, w.Code)

	var res PopularResponse
	json.Unmarshal(w.Body.Bytes(), &res)
	assert.Equal(t, 2, len(res.Queries))
	assert.Equal(t, "eleições", res.Queries[0].Query)
	assert.Equal(t, 7, res.Queries[0].Count)
	assert.Equal(t, "2026-10-01T12:00:00Z", res.Queries[0].LastAccess)
	assert.Equal(t, "copa", res.Queries[1].Query)
}

func TestGetNews_UpstreamTimeoutIsFetchFailure(t *testing.T) {
	svc := &fakeService{err: fmt.Errorf("%w: %w", coalesce.ErrFetch, context.DeadlineExceeded)}
	r := newTestRouter(svc, &fakePopular{}, nil)

	w := get(r, "/news?query=q")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
