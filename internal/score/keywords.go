package score

import (
	"context"
	"regexp"

	"github.com/jmadden/news-digest/internal/config"
	"github.com/jmadden/news-digest/internal/feed"
)

// titleWeight counts title hits double: a keyword in the headline is a far
// stronger relevance signal than one buried in the body.
const titleWeight = 2

// KeywordScorer scores articles by counting weighted keyword occurrences.
// Matching is case-insensitive and word-bounded, so "ai" never matches
// inside "said" and multi-word keywords match as phrases. Deterministic
// and cheap: it never calls the inference backend.
type KeywordScorer struct {
	topics      []topicMatcher
	aggregation Aggregation
}

type topicMatcher struct {
	name     string
	weight   float64
	patterns []*regexp.Regexp
}

// NewKeywordScorer compiles matchers for every configured topic.
func NewKeywordScorer(topics map[string]config.TopicConfig, aggregation Aggregation) *KeywordScorer {
	s := &KeywordScorer{aggregation: aggregation}
	for name, tc := range topics {
		tm := topicMatcher{name: name, weight: tc.Weight}
		for _, kw := range tc.Keywords {
			tm.patterns = append(tm.patterns, regexp.MustCompile(`(?i)\b`+regexp.QuoteMeta(kw)+`\b`))
		}
		s.topics = append(s.topics, tm)
	}
	return s
}

func (s *KeywordScorer) Name() string {
	return "keywords"
}

// Score counts keyword hits in the title (doubled) and body text, scaled
// by the topic weight. The scale is open-ended: it grows with hit counts
// and weights rather than being normalized to a fixed range.
func (s *KeywordScorer) Score(_ context.Context, article feed.Article) (Scored, error) {
	body := article.Text()
	scores := make(map[string]float64, len(s.topics))
	for _, tm := range s.topics {
		hits := 0
		for _, p := range tm.patterns {
			hits += titleWeight * len(p.FindAllStringIndex(article.Title, -1))
			hits += len(p.FindAllStringIndex(body, -1))
		}
		scores[tm.name] = float64(hits) * tm.weight
	}
	return aggregate(article, scores, s.aggregation), nil
}
