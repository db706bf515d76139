package news

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
)

const (
	googleNewsBaseURL = "https://news.google.com/rss/search"
	userAgent         = "Mozilla/5.0 (compatible; noticias-resumidas/1.0)"
	dateLayout        = "02/01/2006 15:04"
)

// GoogleNewsClient searches the Google News RSS endpoint.
type GoogleNewsClient struct {
	baseURL    string
	lang       string
	region     string
	location   *time.Location
	httpClient *http.Client
}

func NewGoogleNewsClient(lang, region string) *GoogleNewsClient {
	loc, err := time.LoadLocation("America/Sao_Paulo")
	if err != nil {
		loc = time.UTC
	}

	return &GoogleNewsClient{
		baseURL:    googleNewsBaseURL,
		lang:       lang,
		region:     region,
		location:   loc,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *GoogleNewsClient) Name() string {
	return "GoogleNews"
}

func (c *GoogleNewsClient) Search(ctx context.Context, query string) ([]RawItem, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.searchURL(query), nil)
	if err != nil {
		return nil, fmt.Errorf("googlenews request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("googlenews fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("googlenews fetch: unexpected status %d", resp.StatusCode)
	}

	feed, err := gofeed.NewParser().Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("googlenews decode: %w", err)
	}

	items := make([]RawItem, 0, len(feed.Items))
	for _, item := range feed.Items {
		title, source := splitTitle(item.Title)

		date := item.Published
		if item.PublishedParsed != nil {
			date = item.PublishedParsed.In(c.location).Format(dateLayout)
		}

		items = append(items, RawItem{
			Link:        item.Link,
			Title:       title,
			Description: plainText(item.Description),
			Date:        date,
			Source:      source,
		})
	}

	return items, nil
}

func (c *GoogleNewsClient) searchURL(query string) string {
	lang := c.lang
	if i := strings.Index(lang, "-"); i > 0 {
		lang = lang[:i]
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("hl", c.lang)
	params.Set("gl", c.region)
	params.Set("ceid", c.region+":"+lang)

	return c.baseURL + "?" + params.Encode()
}

// splitTitle separates the "Headline - Publisher" form Google News uses.
func splitTitle(title string) (string, string) {
	title = strings.TrimSpace(title)
	i := strings.LastIndex(title, " - ")
	if i <= 0 {
		return title, ""
	}
	return strings.TrimSpace(title[:i]), strings.TrimSpace(title[i+3:])
}

// plainText strips markup from an RSS description.
func plainText(html string) string {
	if html == "" {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return strings.Join(strings.Fields(html), " ")
	}

	return strings.Join(strings.Fields(doc.Text()), " ")
}
