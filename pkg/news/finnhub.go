package news

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	finnhub "github.com/Finnhub-Stock-API/finnhub-go/v2"
)

// FinnHubClient treats the query as a ticker symbol and returns the
// company news of the last week.
type FinnHubClient struct {
	client   *finnhub.DefaultApiService
	lookback time.Duration
	now      func() time.Time
}

func NewFinnHubClient(apiKey string) *FinnHubClient {
	return newFinnHubClient(apiKey, &http.Client{Timeout: 30 * time.Second})
}

func newFinnHubClient(apiKey string, httpClient *http.Client) *FinnHubClient {
	cfg := finnhub.NewConfiguration()
	cfg.AddDefaultHeader("X-Finnhub-Token", apiKey)
	cfg.HTTPClient = httpClient
	client := finnhub.NewAPIClient(cfg).DefaultApi
	return &FinnHubClient{
		client:   client,
		lookback: 7 * 24 * time.Hour,
		now:      time.Now,
	}
}

func (c *FinnHubClient) Search(ctx context.Context, query string) ([]RawItem, error) {
	symbol := strings.ToUpper(strings.TrimSpace(query))
	to := c.now()
	from := to.Add(-c.lookback)

	res, _, err := c.client.CompanyNews(ctx).
		Symbol(symbol).
		From(from.Format("2006-01-02")).
		To(to.Format("2006-01-02")).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("finnhub search %s: %w", symbol, err)
	}

	items := make([]RawItem, 0, len(res))
	for _, news := range res {
		var item RawItem

		if news.Url != nil {
			item.Link = *news.Url
		}

		if news.Headline != nil {
			item.Title = *news.Headline
		}

		if news.Summary != nil {
			item.Description = *news.Summary
		}

		if news.Datetime != nil {
			item.Date = time.Unix(*news.Datetime, 0).UTC().Format(dateLayout)
		}

		if news.Source != nil {
			item.Source = *news.Source
		}

		items = append(items, item)
	}

	return items, nil
}

func (c *FinnHubClient) Name() string {
	return "FinnHub"
}
