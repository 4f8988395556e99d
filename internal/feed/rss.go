package feed

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/jmadden/news-digest/internal/config"
	"github.com/jmadden/news-digest/internal/retry"
)

// RSSSource fetches one RSS or Atom feed over HTTP.
type RSSSource struct {
	name      string
	url       string
	topic     string
	userAgent string
	client    *http.Client
	retryCfg  retry.Config
}

// NewRSSSource creates a source for one configured feed.
func NewRSSSource(feed config.FeedConfig, fetch config.FetchConfig) *RSSSource {
	return &RSSSource{
		name:      feed.Name,
		url:       feed.URL,
		topic:     feed.Topic,
		userAgent: fetch.UserAgent,
		client:    &http.Client{Timeout: fetch.Timeout()},
		retryCfg: retry.Config{
			MaxRetries: *fetch.Retries,
			Delay:      time.Second,
		},
	}
}

func (s *RSSSource) Name() string {
	return s.name
}

// Fetch retrieves and parses the feed, retrying transient failures.
func (s *RSSSource) Fetch(ctx context.Context) ([]Article, error) {
	var articles []Article
	err := retry.Do(ctx, s.retryCfg, func(ctx context.Context) error {
		var fetchErr error
		articles, fetchErr = s.fetchOnce(ctx)
		return fetchErr
	})
	if err != nil {
		return nil, err
	}
	return articles, nil
}

func (s *RSSSource) fetchOnce(ctx context.Context) ([]Article, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	parsed, err := gofeed.NewParser().Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	now := time.Now()
	articles := make([]Article, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		// Items with neither link nor GUID cannot get a stable identity.
		if item.Link == "" && item.GUID == "" {
			continue
		}
		articles = append(articles, s.convertItem(item, now))
	}
	return articles, nil
}

// convertItem maps a gofeed item onto an Article.
func (s *RSSSource) convertItem(item *gofeed.Item, fetchTime time.Time) Article {
	var published time.Time
	if item.PublishedParsed != nil {
		published = *item.PublishedParsed
	} else if item.UpdatedParsed != nil {
		published = *item.UpdatedParsed
	}

	title := strings.TrimSpace(item.Title)
	if title == "" {
		title = "(untitled)"
	}

	snippet := item.Description
	if snippet == "" {
		snippet = item.Content
	}

	return Article{
		ID:        itemID(item),
		Title:     title,
		Snippet:   cleanSnippet(snippet),
		URL:       item.Link,
		Source:    s.name,
		Topic:     s.topic,
		Published: published,
		Fetched:   fetchTime,
	}
}

// itemID derives a deterministic ID, preferring the canonical link so the
// same story fetched twice hashes identically even when a feed rewrites
// its GUIDs between fetches.
func itemID(item *gofeed.Item) string {
	if item.Link != "" {
		return hashString(item.Link)
	}
	if item.GUID != "" {
		return hashString(item.GUID)
	}
	key := item.Title
	if item.PublishedParsed != nil {
		key += item.PublishedParsed.String()
	}
	return hashString(key)
}
