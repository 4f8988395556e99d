// Package runner drives the curation pipeline: fetch, deduplicate, score,
// summarize, publish. One Run produces one immutable Report.
package runner

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/jmadden/news-digest/internal/config"
	"github.com/jmadden/news-digest/internal/dedup"
	"github.com/jmadden/news-digest/internal/feed"
	"github.com/jmadden/news-digest/internal/logging"
	"github.com/jmadden/news-digest/internal/score"
	"github.com/jmadden/news-digest/internal/summarizer"
)

// Stage marks how far a run has progressed. Stages advance strictly
// forward; a report at StageComplete went through every one.
type Stage string

const (
	StageFetched      Stage = "fetched"
	StageDeduplicated Stage = "deduplicated"
	StageScored       Stage = "scored"
	StageSummarized   Stage = "summarized"
	StageComplete     Stage = "complete"
)

// Counters records how many articles each stage consumed or shed.
type Counters struct {
	Fetched           int
	DuplicatesRemoved int
	FilteredOut       int
	SummaryFailed     int // summaries that fell back, any non-ok status
}

// Report is the complete record of one pipeline run. It is owned by the
// caller and not mutated after Run returns.
type Report struct {
	StartedAt    time.Time
	FinishedAt   time.Time
	Stage        Stage
	Counters     Counters
	Articles     []summarizer.Summarized // ranked, highest score first
	SourceErrors []feed.SourceError
}

// Publisher delivers a finished report somewhere.
type Publisher interface {
	Name() string
	Publish(ctx context.Context, report *Report) error
}

// Options adjusts a run without changing the pipeline logic.
type Options struct {
	// Limit caps how many deduplicated articles continue to scoring.
	// Zero means no cap. Used for quick test runs.
	Limit int
	// MinScore overrides the configured filter threshold when
	// non-negative.
	MinScore float64
}

// Runner holds the wired pipeline stages.
type Runner struct {
	sources    []feed.Source
	extractor  *feed.Extractor // nil when extraction is disabled
	grouper    *dedup.Grouper
	scorer     score.Scorer
	summarizer *summarizer.Summarizer
	publishers []Publisher
	fetchOpts  feed.FetchOptions
	minScore   float64
	limit      int
}

// New wires a runner from config and the already-constructed stages.
func New(cfg *config.Config, sources []feed.Source, scorer score.Scorer, summ *summarizer.Summarizer, pubs []Publisher, opts Options) *Runner {
	var extractor *feed.Extractor
	if cfg.Extract.Enabled {
		extractor = feed.NewExtractor(cfg.Extract, cfg.Fetch)
	}
	minScore := *cfg.Scoring.MinScore
	if opts.MinScore >= 0 {
		minScore = opts.MinScore
	}
	return &Runner{
		sources:    sources,
		extractor:  extractor,
		grouper:    dedup.NewGrouper(cfg.Dedup, cfg.SourcePriority()),
		scorer:     scorer,
		summarizer: summ,
		publishers: pubs,
		fetchOpts: feed.FetchOptions{
			Concurrency: cfg.Fetch.Concurrency,
			Freshness:   cfg.Fetch.Freshness(),
			MaxPerFeed:  cfg.Fetch.MaxPerFeed,
		},
		minScore: minScore,
		limit:    opts.Limit,
	}
}

// Run executes the pipeline once. Per-source and per-article failures
// degrade the output and are recorded in the report; Run itself errors
// only when scoring is interrupted or every publisher fails. An empty
// pipeline still flows through to a complete, empty report.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	started := time.Now()
	report := &Report{StartedAt: started, Stage: StageFetched}

	result := feed.FetchAll(ctx, r.sources, r.fetchOpts)
	report.SourceErrors = result.Errors
	report.Counters.Fetched = len(result.Articles)
	logging.Info("fetched articles",
		"count", len(result.Articles), "sources", len(r.sources), "failed_sources", len(result.Errors))

	articles := result.Articles
	if r.extractor != nil {
		articles = r.extractor.EnrichAll(ctx, articles)
	}

	groups := r.grouper.Group(articles, started)
	representatives := make([]feed.Article, 0, len(groups))
	for _, g := range groups {
		representatives = append(representatives, g.Representative)
	}
	report.Counters.DuplicatesRemoved = report.Counters.Fetched - len(groups)
	report.Stage = StageDeduplicated
	logging.Info("deduplicated articles",
		"groups", len(groups), "removed", report.Counters.DuplicatesRemoved)

	if r.limit > 0 && len(representatives) > r.limit {
		representatives = representatives[:r.limit]
		logging.Info("article limit applied", "limit", r.limit)
	}

	kept, filtered, err := score.ScoreAll(ctx, r.scorer, representatives, r.minScore)
	if err != nil {
		return report, fmt.Errorf("runner: scoring failed: %w", err)
	}
	report.Counters.FilteredOut = filtered
	report.Stage = StageScored
	logging.Info("scored articles",
		"scorer", r.scorer.Name(), "kept", len(kept), "filtered", filtered, "min_score", r.minScore)

	// Rank before summarizing so the summarization budget is spent on the
	// most relevant articles first. The summarizer preserves this order.
	rank(kept, started)

	summarized := r.summarizer.SummarizeAll(ctx, kept)
	for _, s := range summarized {
		if s.Status != summarizer.StatusOK {
			report.Counters.SummaryFailed++
		}
	}
	report.Stage = StageSummarized
	logging.Info("summarized articles",
		"count", len(summarized), "fallbacks", report.Counters.SummaryFailed)

	report.Articles = summarized
	report.FinishedAt = time.Now()
	report.Stage = StageComplete

	if err := r.publish(ctx, report); err != nil {
		return report, err
	}
	logging.Info("run complete",
		"articles", len(report.Articles), "duration", report.FinishedAt.Sub(report.StartedAt))
	return report, nil
}

// publish fans the report out to every publisher. Failures are
// independent; the run errors only when all of them fail.
func (r *Runner) publish(ctx context.Context, report *Report) error {
	var failures []error
	for _, pub := range r.publishers {
		if err := pub.Publish(ctx, report); err != nil {
			failures = append(failures, fmt.Errorf("%s: %w", pub.Name(), err))
			logging.Warn("publisher failed", "publisher", pub.Name(), "error", err)
			continue
		}
		logging.Info("digest published", "publisher", pub.Name())
	}
	if len(r.publishers) > 0 && len(failures) == len(r.publishers) {
		return fmt.Errorf("runner: all publishers failed: %v", failures)
	}
	return nil
}

// rank orders by aggregate score descending, then effective published
// time descending, then ID ascending, so identical inputs always produce
// the same digest order.
func rank(articles []score.Scored, runStart time.Time) {
	sort.SliceStable(articles, func(i, j int) bool {
		if articles[i].Score != articles[j].Score {
			return articles[i].Score > articles[j].Score
		}
		ti := articles[i].Article.PublishedOr(runStart)
		tj := articles[j].Article.PublishedOr(runStart)
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return articles[i].Article.ID < articles[j].Article.ID
	})
}
