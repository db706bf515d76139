package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Skyjoe/noticias-resumidas/internal/coalesce"
	"github.com/Skyjoe/noticias-resumidas/internal/model"
	"github.com/Skyjoe/noticias-resumidas/internal/service"
)

type NewsSearcher interface {
	Search(ctx context.Context, req service.SearchRequest) (*service.SearchResult, error)
}

// PopularSource returns stats for popular queries only.
type PopularSource interface {
	Snapshot() []model.QueryStats
}

type NewsHandler struct {
	service NewsSearcher
	popular PopularSource
}

func NewNewsHandler(service NewsSearcher, popular PopularSource) *NewsHandler {
	return &NewsHandler{service: service, popular: popular}
}

func (h *NewsHandler) GetNews(c *gin.Context) {
	query := c.Query("query")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Query not provided"})
		return
	}

	start, err := getQueryInt("start", 0, c)
	if err != nil || start < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid start parameter"})
		return
	}

	count, err := getQueryInt("count", service.DefaultCount, c)
	if err != nil || count < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid count parameter"})
		return
	}

	res, err := h.service.Search(c.Request.Context(), service.SearchRequest{
		Query: query,
		Start: start,
		Count: count,
	})
	switch {
	case err == nil:
	case errors.Is(err, service.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Query not provided"})
		return
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "No news found"})
		return
	case waitAborted(err):
		slog.Warn("gave up waiting for news", "query", query, "request_id", c.GetString(requestIDKey), "error", err)
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": "Timed out waiting for news. Please try again later."})
		return
	default:
		slog.Error("error fetching news", "query", query, "request_id", c.GetString(requestIDKey), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch news. Please try again later."})
		return
	}

	items := make([]NewsItemResponse, 0, len(res.Items))
	for _, it := range res.Items {
		items = append(items, NewsItemResponse{
			Title:   it.Title,
			Summary: it.Summary,
			URL:     it.URL,
			Date:    it.Date,
			Source:  it.Source,
		})
	}

	c.JSON(http.StatusOK, NewsResponse{
		Query:  res.Query,
		Start:  res.Start,
		Count:  res.Count,
		Total:  res.Total,
		Cached: res.Cached,
		Items:  items,
	})
}

func (h *NewsHandler) GetPopular(c *gin.Context) {
	snapshot := h.popular.Snapshot()

	res := PopularResponse{Queries: make([]QueryStatsResponse, 0, len(snapshot))}
	for _, s := range snapshot {
		res.Queries = append(res.Queries, QueryStatsResponse{
			Query:      s.Query,
			Count:      s.Count,
			LastAccess: s.LastAccess.UTC().Format(timeLayout),
		})
	}

	c.JSON(http.StatusOK, res)
}

func (h *NewsHandler) GetHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// getQueryInt returns defaultValue when the parameter is absent and an error
// when it is present but not an integer.
func getQueryInt(name string, defaultValue int, c *gin.Context) (int, error) {
	param := c.Query(name)
	if param == "" {
		return defaultValue, nil
	}

	parsed, err := strconv.Atoi(param)
	if err != nil {
		slog.Warn("invalid query parameter", "param", name, "value", param, "error", err)
		return 0, fmt.Errorf("parsing %s: %w", name, err)
	}

	return parsed, nil
}

// waitAborted reports whether the caller's own deadline or cancellation ended
// the request, as opposed to the upstream search timing out.
func waitAborted(err error) bool {
	if errors.Is(err, coalesce.ErrFetch) {
		return false
	}
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}
