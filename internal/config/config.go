package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Schedule   string                 `yaml:"schedule"`
	RunOnStart bool                   `yaml:"run_on_start"`
	Feeds      []FeedConfig           `yaml:"feeds"`
	Fetch      FetchConfig            `yaml:"fetch"`
	Extract    ExtractConfig          `yaml:"extract"`
	Dedup      DedupConfig            `yaml:"dedup"`
	Topics     map[string]TopicConfig `yaml:"topics"`
	Scoring    ScoringConfig          `yaml:"scoring"`
	Inference  InferenceConfig        `yaml:"inference"`
	Summarize  SummarizeConfig        `yaml:"summarize"`
	Publisher  PublisherConfig        `yaml:"publisher"`
}

// FeedConfig describes one feed. The order of feeds in the config doubles
// as source priority when electing duplicate-group representatives.
type FeedConfig struct {
	Name  string `yaml:"name"`
	URL   string `yaml:"url"`
	Topic string `yaml:"topic"`
}

// FetchConfig knobs where zero is a meaningful setting (freshness_hours: 0
// disables the freshness filter, retries: 0 disables retries) are pointers
// so an explicit zero survives defaulting; setDefaults fills only nil.
type FetchConfig struct {
	FreshnessHours *int   `yaml:"freshness_hours"`
	MaxPerFeed     int    `yaml:"max_per_feed"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	Concurrency    int    `yaml:"concurrency"`
	Retries        *int   `yaml:"retries"`
	UserAgent      string `yaml:"user_agent"`
}

func (f FetchConfig) Freshness() time.Duration {
	return time.Duration(*f.FreshnessHours) * time.Hour
}

func (f FetchConfig) Timeout() time.Duration {
	return time.Duration(f.TimeoutSeconds) * time.Second
}

type ExtractConfig struct {
	Enabled        bool `yaml:"enabled"`
	TimeoutSeconds int  `yaml:"timeout_seconds"`
	MaxChars       int  `yaml:"max_chars"`
}

func (e ExtractConfig) Timeout() time.Duration {
	return time.Duration(e.TimeoutSeconds) * time.Second
}

type DedupConfig struct {
	Similarity  float64 `yaml:"similarity"`
	WindowHours int     `yaml:"window_hours"`
}

func (d DedupConfig) Window() time.Duration {
	return time.Duration(d.WindowHours) * time.Hour
}

// TopicConfig is one weighted interest profile.
type TopicConfig struct {
	Keywords []string `yaml:"keywords"`
	Weight   float64  `yaml:"weight"`
}

type ScoringConfig struct {
	Scorer      string `yaml:"scorer"`
	Aggregation string `yaml:"aggregation"`
	// Pointer so min_score: 0 (keep everything) is not mistaken for unset.
	MinScore *float64 `yaml:"min_score"`
}

type InferenceConfig struct {
	Endpoint       string `yaml:"endpoint"`
	Model          string `yaml:"model"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	Retries        *int   `yaml:"retries"`
	BackoffMS      int    `yaml:"backoff_ms"`
	MinIntervalMS  int    `yaml:"min_interval_ms"`
}

func (i InferenceConfig) Timeout() time.Duration {
	return time.Duration(i.TimeoutSeconds) * time.Second
}

func (i InferenceConfig) Backoff() time.Duration {
	return time.Duration(i.BackoffMS) * time.Millisecond
}

func (i InferenceConfig) MinInterval() time.Duration {
	return time.Duration(i.MinIntervalMS) * time.Millisecond
}

type SummarizeConfig struct {
	BudgetMinutes int `yaml:"budget_minutes"`
	Lookahead     int `yaml:"lookahead"`
	MaxInputChars int `yaml:"max_input_chars"`
}

func (s SummarizeConfig) Budget() time.Duration {
	return time.Duration(s.BudgetMinutes) * time.Minute
}

type PublisherConfig struct {
	Type  string      `yaml:"type"`
	Email EmailConfig `yaml:"email"`
	File  FileConfig  `yaml:"file"`
}

type EmailConfig struct {
	SMTPHost string   `yaml:"smtp_host"`
	SMTPPort int      `yaml:"smtp_port"`
	Username string   `yaml:"username"`
	Password string   `yaml:"password"`
	From     string   `yaml:"from"`
	To       []string `yaml:"to"`
}

type FileConfig struct {
	Path string `yaml:"path"`
}

var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} patterns with environment variable values.
func expandEnvVars(s string) string {
	return envVarRegex.ReplaceAllStringFunc(s, func(match string) string {
		varName := strings.TrimSuffix(strings.TrimPrefix(match, "${"), "}")
		if val, ok := os.LookupEnv(varName); ok {
			return val
		}
		return match
	})
}

func intDefault(v int) *int { return &v }

func floatDefault(v float64) *float64 { return &v }

func setDefaults(cfg *Config) {
	if cfg.Schedule == "" {
		cfg.Schedule = "0 8 * * *"
	}
	for i := range cfg.Feeds {
		if cfg.Feeds[i].Name == "" {
			cfg.Feeds[i].Name = cfg.Feeds[i].URL
		}
		if cfg.Feeds[i].Topic == "" {
			cfg.Feeds[i].Topic = "general"
		}
	}
	if cfg.Fetch.FreshnessHours == nil {
		cfg.Fetch.FreshnessHours = intDefault(24)
	}
	if cfg.Fetch.MaxPerFeed == 0 {
		cfg.Fetch.MaxPerFeed = 50
	}
	if cfg.Fetch.TimeoutSeconds == 0 {
		cfg.Fetch.TimeoutSeconds = 30
	}
	if cfg.Fetch.Concurrency == 0 {
		cfg.Fetch.Concurrency = 5
	}
	if cfg.Fetch.Retries == nil {
		cfg.Fetch.Retries = intDefault(2)
	}
	if cfg.Fetch.UserAgent == "" {
		cfg.Fetch.UserAgent = "news-digest/1.0"
	}
	if cfg.Extract.TimeoutSeconds == 0 {
		cfg.Extract.TimeoutSeconds = 20
	}
	if cfg.Extract.MaxChars == 0 {
		cfg.Extract.MaxChars = 4000
	}
	if cfg.Dedup.Similarity == 0 {
		cfg.Dedup.Similarity = 0.6
	}
	if cfg.Dedup.WindowHours == 0 {
		cfg.Dedup.WindowHours = 48
	}
	for name, topic := range cfg.Topics {
		if topic.Weight == 0 {
			topic.Weight = 1.0
			cfg.Topics[name] = topic
		}
	}
	if cfg.Scoring.Scorer == "" {
		cfg.Scoring.Scorer = "keywords"
	}
	if cfg.Scoring.Aggregation == "" {
		cfg.Scoring.Aggregation = "max"
	}
	if cfg.Scoring.MinScore == nil {
		cfg.Scoring.MinScore = floatDefault(6.0)
	}
	if cfg.Inference.Endpoint == "" {
		cfg.Inference.Endpoint = "http://localhost:11434"
	}
	if cfg.Inference.Model == "" {
		cfg.Inference.Model = "llama3.1:8b"
	}
	if cfg.Inference.TimeoutSeconds == 0 {
		cfg.Inference.TimeoutSeconds = 90
	}
	if cfg.Inference.Retries == nil {
		cfg.Inference.Retries = intDefault(2)
	}
	if cfg.Inference.BackoffMS == 0 {
		cfg.Inference.BackoffMS = 500
	}
	if cfg.Summarize.BudgetMinutes == 0 {
		cfg.Summarize.BudgetMinutes = 10
	}
	if cfg.Summarize.Lookahead == 0 {
		cfg.Summarize.Lookahead = 4
	}
	if cfg.Summarize.MaxInputChars == 0 {
		cfg.Summarize.MaxInputChars = 1500
	}
	if cfg.Publisher.Type == "" {
		cfg.Publisher.Type = "stdout"
	}
	if cfg.Publisher.Email.SMTPPort == 0 {
		cfg.Publisher.Email.SMTPPort = 587
	}
	if cfg.Publisher.File.Path == "" {
		cfg.Publisher.File.Path = "digest.md"
	}
}

func validate(cfg *Config) error {
	if len(cfg.Feeds) == 0 {
		return fmt.Errorf("config: at least one feed is required")
	}
	for _, feed := range cfg.Feeds {
		if feed.URL == "" {
			return fmt.Errorf("config: feed %q has no url", feed.Name)
		}
	}
	if len(cfg.Topics) == 0 {
		return fmt.Errorf("config: at least one topic is required")
	}
	for name, topic := range cfg.Topics {
		if len(topic.Keywords) == 0 {
			return fmt.Errorf("config: topic %q has no keywords", name)
		}
		for _, kw := range topic.Keywords {
			if strings.TrimSpace(kw) == "" {
				return fmt.Errorf("config: topic %q has an empty keyword", name)
			}
		}
		if topic.Weight <= 0 {
			return fmt.Errorf("config: topic %q weight must be positive, got %v", name, topic.Weight)
		}
	}
	if *cfg.Fetch.FreshnessHours < 0 {
		return fmt.Errorf("config: fetch.freshness_hours cannot be negative")
	}
	if cfg.Fetch.Concurrency < 1 {
		return fmt.Errorf("config: fetch.concurrency must be at least 1")
	}
	if *cfg.Fetch.Retries < 0 {
		return fmt.Errorf("config: fetch.retries cannot be negative")
	}
	if cfg.Dedup.Similarity <= 0 || cfg.Dedup.Similarity > 1 {
		return fmt.Errorf("config: dedup.similarity must be in (0, 1], got %v", cfg.Dedup.Similarity)
	}
	if cfg.Dedup.WindowHours < 1 {
		return fmt.Errorf("config: dedup.window_hours must be at least 1")
	}
	switch cfg.Scoring.Scorer {
	case "keywords", "llm":
	default:
		return fmt.Errorf("config: unsupported scorer %q (supported: keywords, llm)", cfg.Scoring.Scorer)
	}
	switch cfg.Scoring.Aggregation {
	case "max", "weighted-sum":
	default:
		return fmt.Errorf("config: unsupported aggregation %q (supported: max, weighted-sum)", cfg.Scoring.Aggregation)
	}
	if *cfg.Scoring.MinScore < 0 {
		return fmt.Errorf("config: scoring.min_score cannot be negative")
	}
	if cfg.Inference.Endpoint == "" {
		return fmt.Errorf("config: inference.endpoint is required")
	}
	if cfg.Inference.Model == "" {
		return fmt.Errorf("config: inference.model is required")
	}
	if cfg.Inference.TimeoutSeconds < 1 {
		return fmt.Errorf("config: inference.timeout_seconds must be at least 1")
	}
	if *cfg.Inference.Retries < 0 {
		return fmt.Errorf("config: inference.retries cannot be negative")
	}
	if cfg.Inference.MinIntervalMS < 0 {
		return fmt.Errorf("config: inference.min_interval_ms cannot be negative")
	}
	if cfg.Summarize.BudgetMinutes < 1 {
		return fmt.Errorf("config: summarize.budget_minutes must be at least 1")
	}
	if cfg.Summarize.Lookahead < 1 {
		return fmt.Errorf("config: summarize.lookahead must be at least 1")
	}
	switch cfg.Publisher.Type {
	case "stdout", "email", "file":
	default:
		return fmt.Errorf("config: unsupported publisher type %q (supported: stdout, email, file)", cfg.Publisher.Type)
	}
	if cfg.Publisher.Type == "email" {
		if cfg.Publisher.Email.SMTPHost == "" {
			return fmt.Errorf("config: publisher.email.smtp_host is required for email publisher")
		}
		if len(cfg.Publisher.Email.To) == 0 {
			return fmt.Errorf("config: publisher.email.to is required for email publisher")
		}
		if cfg.Publisher.Email.From == "" {
			return fmt.Errorf("config: publisher.email.from is required for email publisher")
		}
	}
	return nil
}

// Load reads the config file, expands environment variables, applies defaults,
// and validates the configuration.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: failed to read %s: %w", path, err)
	}

	expanded := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse %s: %w", path, err)
	}

	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// SourcePriority returns feed names in configured order, used to break
// ties when electing duplicate-group representatives.
func (c *Config) SourcePriority() []string {
	names := make([]string, 0, len(c.Feeds))
	for _, f := range c.Feeds {
		names = append(names, f.Name)
	}
	return names
}
