// Package feed retrieves articles from configured news sources and
// normalizes them into plain-text Articles for the rest of the pipeline.
package feed

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// snippetMaxLen caps snippet length in runes.
const snippetMaxLen = 500

// Article is one fetched news item. Articles are treated as immutable
// after fetch; downstream stages carry them by value.
type Article struct {
	ID        string
	Title     string
	Snippet   string
	Content   string // full extracted text, empty unless extraction ran
	URL       string
	Source    string
	Topic     string
	Published time.Time // zero when the feed item carried no date
	Fetched   time.Time
}

// PublishedOr returns the published time, or fallback for undated articles.
func (a Article) PublishedOr(fallback time.Time) time.Time {
	if a.Published.IsZero() {
		return fallback
	}
	return a.Published
}

// Text returns the best available body text for an article.
func (a Article) Text() string {
	if a.Content != "" {
		return a.Content
	}
	return a.Snippet
}

// Source delivers articles from one feed.
type Source interface {
	Name() string
	Fetch(ctx context.Context) ([]Article, error)
}

// SourceError records a per-source fetch failure. Source failures degrade
// the run instead of aborting it, so they travel in the run report.
type SourceError struct {
	Source string
	Err    error
}

func (e SourceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Source, e.Err)
}

func (e SourceError) Unwrap() error {
	return e.Err
}

// hashString creates a short hash of a string for use as an ID.
func hashString(s string) string {
	h := sha256.Sum256([]byte(s))
	return hex.EncodeToString(h[:8]) // 16 character hex string
}

// cleanSnippet strips HTML markup and collapses whitespace. Feed
// descriptions routinely arrive as markup fragments.
func cleanSnippet(s string) string {
	if strings.Contains(s, "<") {
		if doc, err := goquery.NewDocumentFromReader(strings.NewReader(s)); err == nil {
			s = doc.Text()
		}
	}
	s = strings.Join(strings.Fields(s), " ")
	return truncate(s, snippetMaxLen)
}

// truncate shortens a string to maxLen runes, adding "..." if truncated.
// Uses rune-aware slicing to avoid breaking UTF-8 characters.
func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}
