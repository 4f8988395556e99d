package runner

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/jmadden/news-digest/internal/config"
	"github.com/jmadden/news-digest/internal/feed"
	"github.com/jmadden/news-digest/internal/inference"
	"github.com/jmadden/news-digest/internal/score"
	"github.com/jmadden/news-digest/internal/summarizer"
)

type fakeSource struct {
	name     string
	articles []feed.Article
	err      error
}

func (s *fakeSource) Name() string { return s.name }
func (s *fakeSource) Fetch(context.Context) ([]feed.Article, error) {
	return s.articles, s.err
}

type fakeGenerator struct {
	generate func(ctx context.Context, req inference.Request) (string, error)
}

func (f *fakeGenerator) Generate(ctx context.Context, req inference.Request) (string, error) {
	return f.generate(ctx, req)
}

type collectingPublisher struct {
	name     string
	err      error
	received []*Report
}

func (p *collectingPublisher) Name() string { return p.name }
func (p *collectingPublisher) Publish(_ context.Context, report *Report) error {
	p.received = append(p.received, report)
	return p.err
}

func testConfig() *config.Config {
	freshness, minScore := 24, 3.0
	return &config.Config{
		Feeds: []config.FeedConfig{
			{Name: "Tech Wire", URL: "https://example.com/tech", Topic: "technology"},
			{Name: "Climate Desk", URL: "https://example.com/climate", Topic: "climate"},
		},
		Fetch: config.FetchConfig{
			FreshnessHours: &freshness,
			MaxPerFeed:     50,
			Concurrency:    2,
		},
		Dedup: config.DedupConfig{Similarity: 0.6, WindowHours: 48},
		Topics: map[string]config.TopicConfig{
			"ai": {Keywords: []string{"LLM", "neural network"}, Weight: 1.5},
		},
		Scoring:   config.ScoringConfig{Scorer: "keywords", Aggregation: "max", MinScore: &minScore},
		Summarize: config.SummarizeConfig{BudgetMinutes: 1, Lookahead: 2, MaxInputChars: 1500},
	}
}

func okGenerator() *fakeGenerator {
	return &fakeGenerator{generate: func(context.Context, inference.Request) (string, error) {
		return "A model-written summary.", nil
	}}
}

func newTestRunner(cfg *config.Config, sources []feed.Source, gen summarizer.Generator, pubs []Publisher, opts Options) *Runner {
	scorer := score.NewKeywordScorer(cfg.Topics, score.Aggregation(cfg.Scoring.Aggregation))
	summ := summarizer.New(gen, cfg.Summarize)
	return New(cfg, sources, scorer, summ, pubs, opts)
}

func techArticles(now time.Time) []feed.Article {
	return []feed.Article{
		{
			ID: "a1", Title: "New LLM beats benchmarks",
			Snippet: "The neural network tops the charts.", Source: "Tech Wire",
			URL: "https://example.com/1", Published: now.Add(-1 * time.Hour),
		},
		{
			ID: "a2", Title: "New LLM beats the benchmarks today",
			Snippet: "Neural network tops charts.", Source: "Climate Desk",
			URL: "https://example.com/2", Published: now.Add(-2 * time.Hour),
		},
		{
			ID: "a3", Title: "Little LLM news",
			Snippet: "", Source: "Tech Wire",
			URL: "https://example.com/3", Published: now.Add(-3 * time.Hour),
		},
		{
			ID: "a4", Title: "Weekend sports roundup",
			Snippet: "Final scores from the weekend.", Source: "Tech Wire",
			URL: "https://example.com/4", Published: now.Add(-4 * time.Hour),
		},
	}
}

func TestRunPipeline(t *testing.T) {
	now := time.Now()
	sources := []feed.Source{
		&fakeSource{name: "Tech Wire", articles: techArticles(now)},
	}
	pub := &collectingPublisher{name: "collect"}
	r := newTestRunner(testConfig(), sources, okGenerator(), []Publisher{pub}, Options{MinScore: -1})

	report, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Stage != StageComplete {
		t.Errorf("expected stage complete, got %s", report.Stage)
	}
	if report.Counters.Fetched != 4 {
		t.Errorf("expected 4 fetched, got %d", report.Counters.Fetched)
	}
	// a1 and a2 are near-duplicates and collapse into one group.
	if report.Counters.DuplicatesRemoved != 1 {
		t.Errorf("expected 1 duplicate removed, got %d", report.Counters.DuplicatesRemoved)
	}
	// a4 scores 0 and falls below min_score 3.
	if report.Counters.FilteredOut != 1 {
		t.Errorf("expected 1 filtered, got %d", report.Counters.FilteredOut)
	}
	if len(report.Articles) != 2 {
		t.Fatalf("expected 2 digest articles, got %d", len(report.Articles))
	}
	// Ranked by score: the duplicate group representative (a1) outscores a3.
	if report.Articles[0].Scored.Article.ID != "a1" {
		t.Errorf("expected a1 ranked first, got %s", report.Articles[0].Scored.Article.ID)
	}
	if report.Articles[0].Scored.Score < report.Articles[1].Scored.Score {
		t.Error("expected descending score order")
	}
	for _, a := range report.Articles {
		if a.Status != summarizer.StatusOK {
			t.Errorf("expected ok summaries, got %s", a.Status)
		}
	}
	if len(pub.received) != 1 || pub.received[0] != report {
		t.Error("expected the report handed to the publisher")
	}
}

func TestRunRecordsSourceFailures(t *testing.T) {
	now := time.Now()
	sources := []feed.Source{
		&fakeSource{name: "Tech Wire", articles: techArticles(now)},
		&fakeSource{name: "Broken", err: fmt.Errorf("unexpected status 503")},
	}
	r := newTestRunner(testConfig(), sources, okGenerator(),
		[]Publisher{&collectingPublisher{name: "collect"}}, Options{MinScore: -1})

	report, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("a failing source must not fail the run: %v", err)
	}
	if len(report.SourceErrors) != 1 || report.SourceErrors[0].Source != "Broken" {
		t.Fatalf("expected one recorded source error, got %v", report.SourceErrors)
	}
	if report.Counters.Fetched != 4 {
		t.Errorf("expected healthy source's articles kept, got %d", report.Counters.Fetched)
	}
}

func TestRunAllSummariesTimeOut(t *testing.T) {
	now := time.Now()
	gen := &fakeGenerator{generate: func(context.Context, inference.Request) (string, error) {
		return "", inference.ErrTimeout
	}}
	sources := []feed.Source{&fakeSource{name: "Tech Wire", articles: techArticles(now)}}
	r := newTestRunner(testConfig(), sources, gen,
		[]Publisher{&collectingPublisher{name: "collect"}}, Options{MinScore: -1})

	report, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("summarization failure must degrade, not abort: %v", err)
	}
	if report.Stage != StageComplete {
		t.Errorf("expected stage complete despite timeouts, got %s", report.Stage)
	}
	if len(report.Articles) != 2 {
		t.Fatalf("expected all scored articles in the digest, got %d", len(report.Articles))
	}
	for i, a := range report.Articles {
		if a.Status != summarizer.StatusSkippedTimeout {
			t.Errorf("article %d: expected skipped-timeout, got %s", i, a.Status)
		}
		if a.Summary == "" {
			t.Errorf("article %d: fallback summary must not be empty", i)
		}
	}
	if report.Counters.SummaryFailed != 2 {
		t.Errorf("expected 2 summary fallbacks counted, got %d", report.Counters.SummaryFailed)
	}
}

func TestRunEmptyPipeline(t *testing.T) {
	sources := []feed.Source{&fakeSource{name: "Tech Wire"}}
	pub := &collectingPublisher{name: "collect"}
	r := newTestRunner(testConfig(), sources, okGenerator(), []Publisher{pub}, Options{MinScore: -1})

	report, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Stage != StageComplete {
		t.Errorf("expected empty run to complete, got %s", report.Stage)
	}
	if len(report.Articles) != 0 {
		t.Errorf("expected no articles, got %d", len(report.Articles))
	}
	if len(pub.received) != 1 {
		t.Error("expected the empty report still published")
	}
}

func TestRunLimitCapsArticles(t *testing.T) {
	now := time.Now()
	sources := []feed.Source{&fakeSource{name: "Tech Wire", articles: techArticles(now)}}
	r := newTestRunner(testConfig(), sources, okGenerator(),
		[]Publisher{&collectingPublisher{name: "collect"}}, Options{Limit: 1, MinScore: -1})

	report, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(report.Articles) > 1 {
		t.Errorf("expected at most 1 article with limit 1, got %d", len(report.Articles))
	}
}

func TestRunMinScoreOverride(t *testing.T) {
	now := time.Now()
	sources := []feed.Source{&fakeSource{name: "Tech Wire", articles: techArticles(now)}}
	r := newTestRunner(testConfig(), sources, okGenerator(),
		[]Publisher{&collectingPublisher{name: "collect"}}, Options{MinScore: 0})

	report, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Threshold 0 keeps even the zero-scoring article.
	if report.Counters.FilteredOut != 0 {
		t.Errorf("expected nothing filtered at threshold 0, got %d", report.Counters.FilteredOut)
	}
	if len(report.Articles) != 3 {
		t.Errorf("expected 3 articles, got %d", len(report.Articles))
	}
}

func TestRunPublisherFailures(t *testing.T) {
	now := time.Now()
	articles := techArticles(now)

	t.Run("one of two fails", func(t *testing.T) {
		good := &collectingPublisher{name: "good"}
		bad := &collectingPublisher{name: "bad", err: errors.New("smtp down")}
		sources := []feed.Source{&fakeSource{name: "Tech Wire", articles: articles}}
		r := newTestRunner(testConfig(), sources, okGenerator(), []Publisher{bad, good}, Options{MinScore: -1})

		if _, err := r.Run(context.Background()); err != nil {
			t.Fatalf("one healthy publisher should carry the run: %v", err)
		}
		if len(good.received) != 1 {
			t.Error("expected the healthy publisher to receive the report")
		}
	})

	t.Run("all fail", func(t *testing.T) {
		bad1 := &collectingPublisher{name: "bad1", err: errors.New("smtp down")}
		bad2 := &collectingPublisher{name: "bad2", err: errors.New("disk full")}
		sources := []feed.Source{&fakeSource{name: "Tech Wire", articles: articles}}
		r := newTestRunner(testConfig(), sources, okGenerator(), []Publisher{bad1, bad2}, Options{MinScore: -1})

		if _, err := r.Run(context.Background()); err == nil {
			t.Fatal("expected error when every publisher fails")
		}
	})
}

func TestRunDeterministicOrdering(t *testing.T) {
	now := time.Now()
	run := func() []string {
		sources := []feed.Source{&fakeSource{name: "Tech Wire", articles: techArticles(now)}}
		r := newTestRunner(testConfig(), sources, okGenerator(),
			[]Publisher{&collectingPublisher{name: "collect"}}, Options{MinScore: 0})
		report, err := r.Run(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		var ids []string
		for _, a := range report.Articles {
			ids = append(ids, a.Scored.Article.ID)
		}
		return ids
	}

	first := run()
	for i := 0; i < 3; i++ {
		if got := run(); !reflect.DeepEqual(first, got) {
			t.Fatalf("run %d produced different order: %v vs %v", i, first, got)
		}
	}
}
