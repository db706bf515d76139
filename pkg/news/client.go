package news

import (
	"context"
	"errors"
	"fmt"

	"github.com/Skyjoe/noticias-resumidas/internal/model"
)

// RawItem is one search result as returned by a source. Any field may be
// empty.
type RawItem struct {
	Link        string
	Title       string
	Description string
	Date        string
	Source      string
}

// Searcher runs a blocking search against an external news source. Calls
// must not share per-query state with each other.
type Searcher interface {
	Search(ctx context.Context, query string) ([]RawItem, error)
	Name() string
}

// ToNewsItems converts raw results into at most limit items, keeping source
// order. Items without a link are dropped, later duplicates of a link are
// dropped, and missing fields get placeholder text.
func ToNewsItems(raw []RawItem, limit int) []model.NewsItem {
	items := make([]model.NewsItem, 0, min(len(raw), limit))
	seen := make(map[string]struct{}, len(raw))

	for _, r := range raw {
		if len(items) >= limit {
			break
		}
		if r.Link == "" {
			continue
		}
		if _, dup := seen[r.Link]; dup {
			continue
		}
		seen[r.Link] = struct{}{}

		items = append(items, model.NewsItem{
			Title:   orDefault(r.Title, model.TitlePlaceholder),
			Summary: orDefault(r.Description, model.SummaryPlaceholder),
			URL:     r.Link,
			Date:    orDefault(r.Date, model.DatePlaceholder),
			Source:  r.Source,
		})
	}

	return items
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

const (
	SourceGoogle  = "google"
	SourceFinnhub = "finnhub"
)

// NewSearcher builds the searcher for the named source.
func NewSearcher(source, lang, region, finnhubKey string) (Searcher, error) {
	switch source {
	case SourceGoogle:
		return NewGoogleNewsClient(lang, region), nil
	case SourceFinnhub:
		if finnhubKey == "" {
			return nil, errors.New("finnhub source requires an api key")
		}
		return NewFinnHubClient(finnhubKey), nil
	default:
		return nil, fmt.Errorf("unknown news source %q", source)
	}
}
