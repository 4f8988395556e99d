package score

import (
	"context"
	"testing"

	"github.com/jmadden/news-digest/internal/config"
	"github.com/jmadden/news-digest/internal/feed"
)

func aiTopics() map[string]config.TopicConfig {
	return map[string]config.TopicConfig{
		"ai": {
			Keywords: []string{"LLM", "neural network", "machine learning"},
			Weight:   1.5,
		},
		"climate": {
			Keywords: []string{"emissions", "renewable"},
			Weight:   1.0,
		},
	}
}

func TestKeywordScorerCountsHits(t *testing.T) {
	s := NewKeywordScorer(aiTopics(), AggregationMax)
	article := feed.Article{
		Title:   "New LLM beats benchmarks",
		Snippet: "The LLM uses a neural network trained on public data.",
		Topic:   "technology",
	}
	// Title hit counts double: (2 + 1 + 1) * 1.5 = 6.
	sc, err := s.Score(context.Background(), article)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sc.TopicScores["ai"] != 6 {
		t.Errorf("expected ai score 6, got %v", sc.TopicScores["ai"])
	}
	if sc.Score != 6 {
		t.Errorf("expected aggregate 6, got %v", sc.Score)
	}
	if sc.Topic != "ai" {
		t.Errorf("expected strongest topic ai, got %q", sc.Topic)
	}
}

func TestKeywordScorerBodyOnlyHits(t *testing.T) {
	s := NewKeywordScorer(aiTopics(), AggregationMax)
	article := feed.Article{
		Title:   "Tech roundup",
		Snippet: "An LLM paired with an LLM judge and a neural network, plus another neural network baseline.",
	}
	// Two LLM hits and two neural network hits in the body: (2+2)*1.5 = 6.
	sc, err := s.Score(context.Background(), article)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sc.Score != 6 {
		t.Errorf("expected aggregate 6, got %v", sc.Score)
	}
}

func TestKeywordScorerWordBoundaries(t *testing.T) {
	topics := map[string]config.TopicConfig{
		"ai": {Keywords: []string{"ai"}, Weight: 1.0},
	}
	s := NewKeywordScorer(topics, AggregationMax)

	tests := []struct {
		name    string
		title   string
		snippet string
		want    float64
	}{
		{"no match inside word", "He said it twice", "They said nothing more.", 0},
		{"standalone match", "AI breakthrough", "", 2},
		{"case insensitive", "ai and Ai and AI", "", 6},
		{"punctuation adjacent", "What is AI?", "AI, explained.", 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sc, err := s.Score(context.Background(), feed.Article{Title: tt.title, Snippet: tt.snippet})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if sc.Score != tt.want {
				t.Errorf("expected score %v, got %v", tt.want, sc.Score)
			}
		})
	}
}

func TestKeywordScorerPhraseMatching(t *testing.T) {
	topics := map[string]config.TopicConfig{
		"ai": {Keywords: []string{"neural network"}, Weight: 1.0},
	}
	s := NewKeywordScorer(topics, AggregationMax)

	sc, _ := s.Score(context.Background(), feed.Article{Snippet: "a neural network for images"})
	if sc.Score != 1 {
		t.Errorf("expected phrase to match once, got %v", sc.Score)
	}
	sc, _ = s.Score(context.Background(), feed.Article{Snippet: "a neural net and a social network"})
	if sc.Score != 0 {
		t.Errorf("expected split phrase not to match, got %v", sc.Score)
	}
}

func TestAggregationModes(t *testing.T) {
	article := feed.Article{
		Title:   "LLM models cut emissions",
		Snippet: "",
	}
	// ai: one title hit * 2 * 1.5 = 3; climate: one title hit * 2 * 1.0 = 2.

	maxScorer := NewKeywordScorer(aiTopics(), AggregationMax)
	sc, _ := maxScorer.Score(context.Background(), article)
	if sc.Score != 3 {
		t.Errorf("max aggregation: expected 3, got %v", sc.Score)
	}
	if sc.Topic != "ai" {
		t.Errorf("expected strongest topic ai, got %q", sc.Topic)
	}

	sumScorer := NewKeywordScorer(aiTopics(), AggregationWeightedSum)
	sc, _ = sumScorer.Score(context.Background(), article)
	if sc.Score != 5 {
		t.Errorf("weighted-sum aggregation: expected 5, got %v", sc.Score)
	}
}

func TestAggregateMaxEqualsTopTopicScore(t *testing.T) {
	s := NewKeywordScorer(aiTopics(), AggregationMax)
	articles := []feed.Article{
		{Title: "LLM news", Snippet: "neural network research on machine learning"},
		{Title: "Renewable push", Snippet: "emissions fall as renewable capacity grows"},
		{Title: "Nothing relevant", Snippet: "sports scores from the weekend"},
	}
	for _, a := range articles {
		sc, _ := s.Score(context.Background(), a)
		max := 0.0
		for _, v := range sc.TopicScores {
			if v > max {
				max = v
			}
		}
		if sc.Score != max {
			t.Errorf("article %q: aggregate %v != max topic score %v", a.Title, sc.Score, max)
		}
	}
}

func TestNoMatchesKeepsFeedTopic(t *testing.T) {
	s := NewKeywordScorer(aiTopics(), AggregationMax)
	sc, _ := s.Score(context.Background(), feed.Article{
		Title: "Local election results",
		Topic: "politics",
	})
	if sc.Score != 0 {
		t.Errorf("expected score 0, got %v", sc.Score)
	}
	if sc.Topic != "politics" {
		t.Errorf("expected feed topic fallback, got %q", sc.Topic)
	}
}

func TestScoreAllFiltersAndCounts(t *testing.T) {
	s := NewKeywordScorer(aiTopics(), AggregationMax)
	articles := []feed.Article{
		{ID: "a1", Title: "LLM beats LLM", Snippet: "neural network and machine learning"},
		{ID: "a2", Title: "Weekend sports roundup", Snippet: "final scores"},
		{ID: "a3", Title: "Renewable milestone", Snippet: "emissions drop"},
	}

	kept, filtered, err := ScoreAll(context.Background(), s, articles, 6)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(kept) != 1 || kept[0].Article.ID != "a1" {
		t.Fatalf("expected only a1 kept, got %d articles", len(kept))
	}
	if filtered != 2 {
		t.Errorf("expected 2 filtered, got %d", filtered)
	}
}

func TestScoreAllThresholdMonotonic(t *testing.T) {
	s := NewKeywordScorer(aiTopics(), AggregationMax)
	articles := []feed.Article{
		{ID: "a1", Title: "LLM beats LLM", Snippet: "neural network and machine learning"},
		{ID: "a2", Title: "machine learning tips", Snippet: ""},
		{ID: "a3", Title: "Weekend sports", Snippet: ""},
	}

	prev := len(articles) + 1
	for _, threshold := range []float64{0, 1, 3, 6, 10, 100} {
		kept, _, err := ScoreAll(context.Background(), s, articles, threshold)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(kept) > prev {
			t.Errorf("raising threshold to %v grew the kept set from %d to %d", threshold, prev, len(kept))
		}
		prev = len(kept)
	}
}

func TestScoreAllRespectsContext(t *testing.T) {
	s := NewKeywordScorer(aiTopics(), AggregationMax)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := ScoreAll(ctx, s, []feed.Article{{Title: "LLM"}}, 0)
	if err == nil {
		t.Fatal("expected error from canceled context")
	}
}

func TestNewScorerFactory(t *testing.T) {
	cfg := &config.Config{
		Topics:  aiTopics(),
		Scoring: config.ScoringConfig{Scorer: "keywords", Aggregation: "max"},
	}
	s, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Name() != "keywords" {
		t.Errorf("expected keywords scorer, got %q", s.Name())
	}

	cfg.Scoring.Scorer = "llm"
	s, err = New(cfg, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Name() != "llm" {
		t.Errorf("expected llm scorer, got %q", s.Name())
	}

	cfg.Scoring.Scorer = "oracle"
	if _, err = New(cfg, nil); err == nil {
		t.Fatal("expected error for unsupported scorer type")
	}
}
