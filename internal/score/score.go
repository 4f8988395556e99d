// Package score ranks deduplicated articles against the configured topic
// profiles and filters out the irrelevant ones. The default scorer counts
// weighted keyword hits and never touches the inference backend; an
// LLM-backed scorer is available behind the same contract.
package score

import (
	"context"
	"fmt"
	"sort"

	"github.com/jmadden/news-digest/internal/config"
	"github.com/jmadden/news-digest/internal/feed"
	"github.com/jmadden/news-digest/internal/logging"
)

// ErrUnsupportedScorerType is returned when an unsupported scorer type is specified.
var ErrUnsupportedScorerType = fmt.Errorf("unsupported scorer type")

// Aggregation selects how per-topic scores collapse into one number.
type Aggregation string

const (
	// AggregationMax keeps the strongest single-topic score. A strong
	// single-topic match outranks weak multi-topic spread.
	AggregationMax Aggregation = "max"
	// AggregationWeightedSum adds all topic scores (weights are already
	// applied per topic).
	AggregationWeightedSum Aggregation = "weighted-sum"
)

// Scored is an article with its relevance verdict attached.
type Scored struct {
	Article     feed.Article
	TopicScores map[string]float64
	Score       float64 // aggregate, used for filtering and ranking
	Topic       string  // strongest topic, used to group the digest
}

// Scorer assigns a relevance verdict to one article.
type Scorer interface {
	Name() string
	Score(ctx context.Context, article feed.Article) (Scored, error)
}

// New creates a scorer based on the configuration. The generator is only
// used by the LLM scorer and may be nil for the keyword scorer.
func New(cfg *config.Config, gen Generator) (Scorer, error) {
	switch cfg.Scoring.Scorer {
	case "keywords":
		return NewKeywordScorer(cfg.Topics, Aggregation(cfg.Scoring.Aggregation)), nil
	case "llm":
		return NewLLMScorer(gen, cfg.Topics), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScorerType, cfg.Scoring.Scorer)
	}
}

// ScoreAll scores articles in input order and drops those whose aggregate
// falls below minScore. Dropped articles are counted, not lost silently.
func ScoreAll(ctx context.Context, scorer Scorer, articles []feed.Article, minScore float64) ([]Scored, int, error) {
	kept := make([]Scored, 0, len(articles))
	filtered := 0
	for _, a := range articles {
		if err := ctx.Err(); err != nil {
			return nil, 0, err
		}
		sc, err := scorer.Score(ctx, a)
		if err != nil {
			return nil, 0, fmt.Errorf("scoring %q: %w", a.Title, err)
		}
		if sc.Score < minScore {
			filtered++
			logging.Debug("article filtered", "title", a.Title, "score", sc.Score)
			continue
		}
		kept = append(kept, sc)
	}
	return kept, filtered, nil
}

// aggregate collapses topic scores and picks the strongest topic. Ties at
// the top break lexicographically so repeated runs agree. Articles that
// match nothing keep their feed's topic label for digest grouping.
func aggregate(article feed.Article, scores map[string]float64, mode Aggregation) Scored {
	var names []string
	for name := range scores {
		names = append(names, name)
	}
	sort.Strings(names)

	var total, max float64
	top := ""
	for _, name := range names {
		s := scores[name]
		total += s
		if s > max {
			max = s
			top = name
		}
	}

	agg := max
	if mode == AggregationWeightedSum {
		agg = total
	}
	if top == "" {
		top = article.Topic
	}
	return Scored{
		Article:     article,
		TopicScores: scores,
		Score:       agg,
		Topic:       top,
	}
}
