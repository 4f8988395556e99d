package score

import (
	"context"
	"encoding/json"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/jmadden/news-digest/internal/config"
	"github.com/jmadden/news-digest/internal/feed"
	"github.com/jmadden/news-digest/internal/inference"
	"github.com/jmadden/news-digest/internal/logging"
)

// Generator is the slice of the inference gateway the LLM scorer needs.
type Generator interface {
	Generate(ctx context.Context, req inference.Request) (string, error)
}

// maxPromptChars bounds how much article text goes into the rating prompt.
const maxPromptChars = 1500

const scoreSystemPrompt = `You are a news curator assistant. Your job is to rate how relevant an article is to the user's stated interests.

Always respond with ONLY a JSON object in this exact format:
{"score": <number 1-10>}

Scoring guide:
- 9-10: Directly about the user's high-priority interests, breaking/important news
- 7-8: Relevant to the user's interests, newsworthy
- 5-6: Tangentially related, might be interesting
- 3-4: Loosely connected to interests
- 1-2: Not relevant to the user's stated interests`

// LLMScorer rates relevance on a 1-10 scale by asking the model. The score
// lands on the article's feed topic, since the model judges against the
// whole interest profile rather than one topic at a time. A gateway
// failure scores the article 0 with a warning: scoring assist is advisory
// and never aborts the stage.
type LLMScorer struct {
	gen       Generator
	interests string
}

// NewLLMScorer creates a scorer that rates against the configured topics.
func NewLLMScorer(gen Generator, topics map[string]config.TopicConfig) *LLMScorer {
	return &LLMScorer{gen: gen, interests: describeInterests(topics)}
}

func (s *LLMScorer) Name() string {
	return "llm"
}

func (s *LLMScorer) Score(ctx context.Context, article feed.Article) (Scored, error) {
	var sb strings.Builder
	sb.WriteString("User interests:\n")
	sb.WriteString(s.interests)
	sb.WriteString("\n\nARTICLE TO EVALUATE:\n")
	sb.WriteString("Title: " + article.Title + "\n")
	sb.WriteString("Source: " + article.Source + "\n")
	sb.WriteString("Content: " + clip(article.Text(), maxPromptChars) + "\n\n")
	sb.WriteString(`Respond with JSON only: {"score": N}`)

	reply, err := s.gen.Generate(ctx, inference.Request{
		System: scoreSystemPrompt,
		Prompt: sb.String(),
	})
	if err != nil {
		if ctx.Err() != nil {
			return Scored{}, ctx.Err()
		}
		logging.Warn("llm scoring failed, article scored 0", "title", article.Title, "error", err)
		return Scored{Article: article, Topic: article.Topic}, nil
	}

	score := parseScore(reply)
	return Scored{
		Article:     article,
		TopicScores: map[string]float64{article.Topic: score},
		Score:       score,
		Topic:       article.Topic,
	}, nil
}

var (
	jsonObjectRegex = regexp.MustCompile(`\{[^{}]+\}`)
	plainScoreRegex = regexp.MustCompile(`(?i)score[:\s]+(\d+(?:\.\d+)?)`)
)

// parseScore extracts the rating from a model reply, tolerating prose
// around the JSON and falling back to a plain "score: N" scan. Anything
// unparseable scores 0; parsed values are clamped to the 1-10 scale.
func parseScore(reply string) float64 {
	if m := jsonObjectRegex.FindString(reply); m != "" {
		var parsed struct {
			Score float64 `json:"score"`
		}
		if err := json.Unmarshal([]byte(m), &parsed); err == nil && parsed.Score > 0 {
			return clamp(parsed.Score)
		}
	}
	if m := plainScoreRegex.FindStringSubmatch(reply); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			return clamp(v)
		}
	}
	logging.Debug("unparseable score reply", "reply", clip(reply, 120))
	return 0
}

func clamp(v float64) float64 {
	if v < 1 {
		return 1
	}
	if v > 10 {
		return 10
	}
	return v
}

// describeInterests renders the topic profiles as a prompt fragment,
// highest weight first so the model sees priorities in order.
func describeInterests(topics map[string]config.TopicConfig) string {
	names := make([]string, 0, len(topics))
	for name := range topics {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		wi, wj := topics[names[i]].Weight, topics[names[j]].Weight
		if wi != wj {
			return wi > wj
		}
		return names[i] < names[j]
	})

	var sb strings.Builder
	for _, name := range names {
		tc := topics[name]
		sample := tc.Keywords
		if len(sample) > 5 {
			sample = sample[:5]
		}
		sb.WriteString("- " + strings.ToUpper(name))
		sb.WriteString(" (" + priorityLabel(tc.Weight) + "): ")
		sb.WriteString(strings.Join(sample, ", "))
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

func priorityLabel(weight float64) string {
	switch {
	case weight >= 1.5:
		return "highest priority"
	case weight >= 1.3:
		return "high priority"
	case weight >= 1.1:
		return "moderate priority"
	default:
		return "standard priority"
	}
}

func clip(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
