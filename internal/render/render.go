// Package render formats a finished run report as a Markdown or HTML
// digest, grouped by topic.
package render

import (
	"fmt"
	"html"
	"strings"

	"github.com/jmadden/news-digest/internal/runner"
	"github.com/jmadden/news-digest/internal/summarizer"
)

const emptyMessage = "No relevant articles found today."

// byTopic splits the report's articles by digest topic, preserving both
// the report's article order within a topic and the order topics first
// appear, so the highest-ranked article leads its section.
func byTopic(report *runner.Report) ([]string, map[string][]summarizer.Summarized) {
	var topics []string
	grouped := make(map[string][]summarizer.Summarized)
	for _, a := range report.Articles {
		topic := a.Scored.Topic
		if topic == "" {
			topic = "general"
		}
		if _, seen := grouped[topic]; !seen {
			topics = append(topics, topic)
		}
		grouped[topic] = append(grouped[topic], a)
	}
	return topics, grouped
}

func countersLine(c runner.Counters) string {
	return fmt.Sprintf("Fetched %d | Duplicates removed %d | Filtered out %d | Summaries fell back %d",
		c.Fetched, c.DuplicatesRemoved, c.FilteredOut, c.SummaryFailed)
}

// Markdown renders the digest as Markdown.
func Markdown(report *runner.Report) string {
	var sb strings.Builder
	sb.WriteString("# Daily News Digest\n")
	sb.WriteString("*" + report.StartedAt.Format("Monday, January 2, 2006") + "*\n\n")
	sb.WriteString(countersLine(report.Counters) + "\n")

	if len(report.Articles) == 0 {
		sb.WriteString("\n" + emptyMessage + "\n")
		return sb.String()
	}

	topics, grouped := byTopic(report)
	for _, topic := range topics {
		sb.WriteString("\n## " + strings.ToUpper(topic) + "\n\n")
		for _, a := range grouped[topic] {
			art := a.Scored.Article
			sb.WriteString(fmt.Sprintf("### [%s](%s)\n", art.Title, art.URL))
			sb.WriteString(fmt.Sprintf("*%s* | Score: %.1f\n\n", art.Source, a.Scored.Score))
			sb.WriteString(a.Summary + "\n")
			if a.Status != summarizer.StatusOK {
				sb.WriteString("\n_Summary unavailable; showing feed excerpt._\n")
			}
			sb.WriteString("\n")
		}
	}

	if len(report.SourceErrors) > 0 {
		sb.WriteString("\n---\n\n")
		for _, se := range report.SourceErrors {
			sb.WriteString(fmt.Sprintf("- Feed %q could not be fetched: %v\n", se.Source, se.Err))
		}
	}
	return sb.String()
}

// HTML renders the digest with inline styles so it survives mail clients.
func HTML(report *runner.Report) string {
	var sb strings.Builder
	sb.WriteString(`<!DOCTYPE html><html><head><meta charset="utf-8"><style>
body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; max-width: 700px; margin: 0 auto; padding: 20px; color: #333; line-height: 1.6; }
h1 { color: #1a1a2e; border-bottom: 2px solid #e94560; padding-bottom: 10px; }
h2 { color: #16213e; margin-top: 30px; }
.counters { color: #666; font-size: 0.9em; }
.article { border: 1px solid #ddd; border-radius: 8px; padding: 15px; margin-bottom: 15px; }
.article h3 { margin-top: 0; }
.article h3 a { color: #0f3460; text-decoration: none; }
.meta { color: #666; font-size: 0.9em; margin-bottom: 10px; }
.fallback { color: #999; font-size: 0.85em; font-style: italic; }
</style></head><body>`)

	sb.WriteString("<h1>Daily News Digest</h1>")
	sb.WriteString(fmt.Sprintf("<p><em>%s</em></p>", report.StartedAt.Format("Monday, January 2, 2006")))
	sb.WriteString(fmt.Sprintf(`<p class="counters">%s</p>`, html.EscapeString(countersLine(report.Counters))))

	if len(report.Articles) == 0 {
		sb.WriteString("<p>" + emptyMessage + "</p></body></html>")
		return sb.String()
	}

	topics, grouped := byTopic(report)
	for _, topic := range topics {
		sb.WriteString(fmt.Sprintf("<h2>%s</h2>", html.EscapeString(strings.ToUpper(topic))))
		for _, a := range grouped[topic] {
			art := a.Scored.Article
			sb.WriteString(`<div class="article">`)
			sb.WriteString(fmt.Sprintf(`<h3><a href="%s">%s</a></h3>`,
				html.EscapeString(art.URL), html.EscapeString(art.Title)))
			sb.WriteString(fmt.Sprintf(`<div class="meta"><em>%s</em> | Score: %.1f</div>`,
				html.EscapeString(art.Source), a.Scored.Score))
			sb.WriteString(fmt.Sprintf("<p>%s</p>", html.EscapeString(a.Summary)))
			if a.Status != summarizer.StatusOK {
				sb.WriteString(`<div class="fallback">Summary unavailable; showing feed excerpt.</div>`)
			}
			sb.WriteString("</div>")
		}
	}

	sb.WriteString("</body></html>")
	return sb.String()
}
