package collector

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/araddon/dateparse"
	readability "github.com/go-shiori/go-readability"
	"github.com/mmcdole/gofeed"

	"github.com/jeromwolf/FluxNews/internal/model"
	"github.com/jeromwolf/FluxNews/pkg/httpclient"
	"github.com/jeromwolf/FluxNews/pkg/logger"
)

// RSSSource polls one RSS or Atom feed. All network traffic goes through
// the shared rate-limited client, including optional per-item content
// enrichment.
type RSSSource struct {
	feedURL string
	name    string
	client  *httpclient.Client
	parser  *gofeed.Parser
	enrich  bool
	logger  *logger.Logger
}

func NewRSSSource(feedURL string, client *httpclient.Client, enrich bool, log *logger.Logger) *RSSSource {
	if log == nil {
		log = logger.Nop()
	}
	return &RSSSource{
		feedURL: feedURL,
		name:    sourceName(feedURL),
		client:  client,
		parser:  gofeed.NewParser(),
		enrich:  enrich,
		logger:  log,
	}
}

func (s *RSSSource) Name() string { return s.name }

func (s *RSSSource) Fetch(ctx context.Context) ([]*model.Article, error) {
	raw, err := s.client.Get(ctx, s.feedURL)
	if err != nil {
		return nil, fmt.Errorf("fetching feed %s: %w", s.feedURL, err)
	}

	feed, err := s.parser.ParseString(string(raw))
	if err != nil {
		return nil, fmt.Errorf("parsing feed %s: %w", s.feedURL, err)
	}

	now := time.Now().UTC()
	articles := make([]*model.Article, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item.Link == "" || item.Title == "" {
			continue
		}
		a := &model.Article{
			ID:          model.ArticleID(item.Link, item.Title),
			URL:         item.Link,
			Title:       strings.TrimSpace(item.Title),
			Summary:     stripHTML(firstNonEmpty(item.Description, item.Content)),
			Source:      s.name,
			PublishedAt: publishedAt(item, now),
			Language:    feed.Language,
			CollectedAt: now,
		}
		if s.enrich {
			s.enrichBody(ctx, a)
		}
		articles = append(articles, a)
	}
	return articles, nil
}

// enrichBody fetches the article page and extracts readable text. Failure
// is non-fatal; the feed summary remains the content.
func (s *RSSSource) enrichBody(ctx context.Context, a *model.Article) {
	raw, err := s.client.Get(ctx, a.URL)
	if err != nil {
		s.logger.Debug("enrichment fetch failed", "url", a.URL, "error", err.Error())
		return
	}
	pageURL, err := url.Parse(a.URL)
	if err != nil {
		return
	}
	doc, err := readability.FromReader(bytes.NewReader(raw), pageURL)
	if err != nil {
		s.logger.Debug("readability extraction failed", "url", a.URL, "error", err.Error())
		return
	}
	a.Body = strings.TrimSpace(doc.TextContent)
}

// publishedAt resolves the item timestamp. gofeed already parses common
// formats; dateparse covers the long tail of nonstandard feeds.
func publishedAt(item *gofeed.Item, fallback time.Time) time.Time {
	if item.PublishedParsed != nil {
		return item.PublishedParsed.UTC()
	}
	if item.UpdatedParsed != nil {
		return item.UpdatedParsed.UTC()
	}
	for _, raw := range []string{item.Published, item.Updated} {
		if raw == "" {
			continue
		}
		if t, err := dateparse.ParseAny(raw); err == nil {
			return t.UTC()
		}
	}
	return fallback
}

// stripHTML flattens feed markup into plain text.
func stripHTML(s string) string {
	if !strings.Contains(s, "<") {
		return strings.TrimSpace(s)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(strings.Join(strings.Fields(doc.Text()), " "))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// sourceName derives a short label from the feed host.
func sourceName(feedURL string) string {
	u, err := url.Parse(feedURL)
	if err != nil || u.Host == "" {
		return feedURL
	}
	return strings.TrimPrefix(strings.ToLower(u.Host), "www.")
}
