package model

import (
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

const (
	MaxResults = 20

	TitlePlaceholder   = "Título indisponível"
	SummaryPlaceholder = "Resumo indisponível"
	DatePlaceholder    = "Data não disponível"
)

type NewsItem struct {
	Title   string `json:"title"`
	Summary string `json:"summary"`
	URL     string `json:"url"`
	Date    string `json:"date"`
	Source  string `json:"source,omitempty"`
}

type CacheEntry struct {
	Query     string     `json:"query"`
	Items     []NewsItem `json:"items"`
	FetchedAt time.Time  `json:"fetched_at"`
}

// Age reports how old the entry is at now.
func (e *CacheEntry) Age(now time.Time) time.Duration {
	return now.Sub(e.FetchedAt)
}

type QueryStats struct {
	Query      string
	Count      int
	Popular    bool
	LastAccess time.Time
}

// NormalizeQuery returns the cache key for a user query. Composed and
// decomposed accents, case and surrounding or repeated whitespace all map
// to the same key.
func NormalizeQuery(query string) string {
	fields := strings.Fields(query)
	if len(fields) == 0 {
		return ""
	}
	joined := strings.Join(fields, " ")
	return norm.NFC.String(cases.Fold().String(norm.NFC.String(joined)))
}
