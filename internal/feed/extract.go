package feed

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"github.com/temoto/robotstxt"
	"golang.org/x/sync/errgroup"

	"github.com/jmadden/news-digest/internal/config"
	"github.com/jmadden/news-digest/internal/logging"
)

// Extractor fills Article.Content with readable full text fetched from the
// article page. Extraction is best-effort: any failure leaves the snippet
// as the article body. Hosts are consulted through robots.txt once per run.
type Extractor struct {
	client      *http.Client
	userAgent   string
	maxChars    int
	concurrency int

	mu     sync.Mutex
	robots map[string]*robotstxt.Group
}

// NewExtractor creates an extractor from config.
func NewExtractor(extract config.ExtractConfig, fetch config.FetchConfig) *Extractor {
	return &Extractor{
		client:      &http.Client{Timeout: extract.Timeout()},
		userAgent:   fetch.UserAgent,
		maxChars:    extract.MaxChars,
		concurrency: fetch.Concurrency,
		robots:      make(map[string]*robotstxt.Group),
	}
}

// EnrichAll extracts content for every article, in place of nothing: the
// returned slice preserves input order and only gains Content fields.
func (e *Extractor) EnrichAll(ctx context.Context, articles []Article) []Article {
	out := make([]Article, len(articles))
	copy(out, articles)

	var g errgroup.Group
	g.SetLimit(e.concurrency)

	for i := range out {
		i := i
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			content, err := e.extract(ctx, out[i].URL)
			if err != nil {
				logging.Debug("content extraction skipped", "url", out[i].URL, "error", err)
				return nil
			}
			out[i].Content = content
			return nil
		})
	}

	_ = g.Wait()
	return out
}

// extract fetches one article page and reduces it to readable plain text.
func (e *Extractor) extract(ctx context.Context, rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("unusable article url %q", rawURL)
	}
	if !e.allowed(ctx, u) {
		return "", fmt.Errorf("disallowed by robots.txt")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", e.userAgent)

	resp, err := e.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	article, err := readability.FromReader(resp.Body, u)
	if err != nil {
		return "", fmt.Errorf("failed to extract readable content: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(article.Content))
	if err != nil {
		return "", fmt.Errorf("failed to parse extracted content: %w", err)
	}

	text := strings.Join(strings.Fields(doc.Text()), " ")
	if text == "" {
		return "", fmt.Errorf("no readable content")
	}
	return truncate(text, e.maxChars), nil
}

// allowed consults the host's robots.txt, cached for the extractor's
// lifetime. Unreachable or malformed robots files default to allow.
func (e *Extractor) allowed(ctx context.Context, u *url.URL) bool {
	e.mu.Lock()
	group, seen := e.robots[u.Host]
	e.mu.Unlock()

	if !seen {
		group = e.fetchRobots(ctx, u)
		e.mu.Lock()
		e.robots[u.Host] = group
		e.mu.Unlock()
	}

	if group == nil {
		return true
	}
	return group.Test(u.Path)
}

func (e *Extractor) fetchRobots(ctx context.Context, u *url.URL) *robotstxt.Group {
	robotsURL := u.Scheme + "://" + u.Host + "/robots.txt"

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil
	}
	req.Header.Set("User-Agent", e.userAgent)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()

	data, err := robotstxt.FromResponse(resp)
	if err != nil {
		return nil
	}
	return data.FindGroup(e.userAgent)
}
