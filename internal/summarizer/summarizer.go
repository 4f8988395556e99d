// Package summarizer condenses scored articles through the inference
// gateway. Every input article comes back out: failed or skipped calls
// fall back to the article's own snippet instead of dropping the entry.
package summarizer

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/jmadden/news-digest/internal/config"
	"github.com/jmadden/news-digest/internal/inference"
	"github.com/jmadden/news-digest/internal/logging"
	"github.com/jmadden/news-digest/internal/score"
)

// Status records how an article's summary was produced.
type Status string

const (
	// StatusOK means the model produced the summary.
	StatusOK Status = "ok"
	// StatusFailed means the call failed and the snippet stands in.
	StatusFailed Status = "failed"
	// StatusSkippedTimeout means a per-call timeout or the run budget
	// expired before the article could be summarized.
	StatusSkippedTimeout Status = "skipped-timeout"
)

// Summarized is a scored article plus its summary text.
type Summarized struct {
	Scored  score.Scored
	Summary string
	Status  Status
}

// Generator is the slice of the inference gateway the summarizer needs.
type Generator interface {
	Generate(ctx context.Context, req inference.Request) (string, error)
}

const systemPrompt = `You are a news curator assistant. Write concise article summaries.

Summary rules:
- 2-3 sentences maximum
- Focus on key facts and why it matters
- Use active voice, present tense
- No marketing language or hype

Respond with the summary text only, no preamble and no markdown fences.`

// Summarizer submits scored articles to the gateway with bounded
// look-ahead and a per-run wall-clock budget.
type Summarizer struct {
	gen           Generator
	budget        time.Duration
	lookahead     int
	maxInputChars int
}

// New creates a summarizer from config.
func New(gen Generator, cfg config.SummarizeConfig) *Summarizer {
	return &Summarizer{
		gen:           gen,
		budget:        cfg.Budget(),
		lookahead:     cfg.Lookahead,
		maxInputChars: cfg.MaxInputChars,
	}
}

// SummarizeAll summarizes every article, preserving input order in the
// output regardless of completion order. At most lookahead requests are
// pending at the gateway at once, enough to keep its worker fed without
// flooding the queue. Once the run budget expires, articles not yet
// submitted are marked skipped-timeout immediately; in-flight calls
// resolve through their own outcomes. The result always has exactly one
// entry per input article.
func (s *Summarizer) SummarizeAll(ctx context.Context, articles []score.Scored) []Summarized {
	if len(articles) == 0 {
		return nil
	}

	budgetCtx, cancel := context.WithTimeout(ctx, s.budget)
	defer cancel()

	results := make([]Summarized, len(articles))
	sem := make(chan struct{}, s.lookahead)
	var wg sync.WaitGroup

	submitted := 0
	for i, sc := range articles {
		select {
		case sem <- struct{}{}:
		case <-budgetCtx.Done():
		}
		if budgetCtx.Err() != nil {
			break
		}
		submitted++
		i, sc := i, sc
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			results[i] = s.summarizeOne(budgetCtx, sc)
		}()
	}
	wg.Wait()

	if submitted < len(articles) {
		logging.Warn("summarization budget exhausted",
			"budget", s.budget, "skipped", len(articles)-submitted)
		for i := submitted; i < len(articles); i++ {
			results[i] = Summarized{
				Scored:  articles[i],
				Summary: fallbackText(articles[i]),
				Status:  StatusSkippedTimeout,
			}
		}
	}
	return results
}

// summarizeOne runs a single gateway call and maps its outcome onto a
// status. The article is never dropped; a failed call keeps the snippet.
func (s *Summarizer) summarizeOne(ctx context.Context, sc score.Scored) Summarized {
	reply, err := s.gen.Generate(ctx, inference.Request{
		System: systemPrompt,
		Prompt: s.buildPrompt(sc),
	})
	if err == nil {
		if summary := cleanSummary(reply); summary != "" {
			return Summarized{Scored: sc, Summary: summary, Status: StatusOK}
		}
		err = inference.ErrBadResponse
	}

	status := StatusFailed
	if errors.Is(err, inference.ErrTimeout) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled) {
		status = StatusSkippedTimeout
	}
	logging.Warn("summary fell back to snippet",
		"title", sc.Article.Title, "status", status, "error", err)
	return Summarized{Scored: sc, Summary: fallbackText(sc), Status: status}
}

func (s *Summarizer) buildPrompt(sc score.Scored) string {
	body := sc.Article.Text()
	if runes := []rune(body); len(runes) > s.maxInputChars {
		body = string(runes[:s.maxInputChars])
	}
	var sb strings.Builder
	sb.WriteString("Summarize this article in 2-3 sentences.\n\n")
	sb.WriteString("Title: " + sc.Article.Title + "\n")
	sb.WriteString("Source: " + sc.Article.Source + "\n")
	sb.WriteString("Content: " + body + "\n")
	return sb.String()
}

// cleanSummary strips markdown fences and surrounding whitespace from a
// model reply.
func cleanSummary(reply string) string {
	reply = strings.TrimSpace(reply)
	reply = strings.TrimPrefix(reply, "```json")
	reply = strings.TrimPrefix(reply, "```")
	reply = strings.TrimSuffix(reply, "```")
	return strings.TrimSpace(reply)
}

// fallbackText is the stand-in summary for unsummarized articles: the
// snippet when present, else the title. Never empty for a fetched article.
func fallbackText(sc score.Scored) string {
	if sc.Article.Snippet != "" {
		return sc.Article.Snippet
	}
	return sc.Article.Title
}
