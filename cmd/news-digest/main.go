package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"

	"github.com/jmadden/news-digest/internal/config"
	"github.com/jmadden/news-digest/internal/feed"
	"github.com/jmadden/news-digest/internal/inference"
	"github.com/jmadden/news-digest/internal/logging"
	"github.com/jmadden/news-digest/internal/publisher"
	"github.com/jmadden/news-digest/internal/runner"
	"github.com/jmadden/news-digest/internal/score"
	"github.com/jmadden/news-digest/internal/summarizer"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	once := flag.Bool("once", false, "run the pipeline once and exit")
	dryRun := flag.Bool("dry-run", false, "run once, print the digest to stdout, skip configured delivery")
	limit := flag.Int("limit", 0, "cap the number of articles after dedup (0 = no cap)")
	minScore := flag.Float64("min-score", -1, "override the configured minimum score (negative = use config)")
	output := flag.String("output", "", "additionally write the Markdown digest to this file")
	verbose := flag.Bool("verbose", false, "enable debug logging")
	flag.Parse()

	logging.Init(*verbose)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.Fatal("failed to load config", "error", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Build the inference side: one client, one serialized gateway.
	client := inference.NewOllamaClient(cfg.Inference)
	gateway := inference.NewGateway(client, cfg.Inference)
	gateway.Start(ctx)
	if !client.Available() {
		logging.Warn("inference backend not reachable, summaries will fall back to snippets",
			"endpoint", cfg.Inference.Endpoint, "model", cfg.Inference.Model)
	}

	scorer, err := score.New(cfg, gateway)
	if err != nil {
		logging.Fatal("failed to build scorer", "error", err)
	}
	summ := summarizer.New(gateway, cfg.Summarize)

	sources := make([]feed.Source, 0, len(cfg.Feeds))
	for _, fc := range cfg.Feeds {
		sources = append(sources, feed.NewRSSSource(fc, cfg.Fetch))
	}

	var pubs []runner.Publisher
	if *dryRun {
		pubs = append(pubs, publisher.NewStdoutPublisher())
	} else {
		pub, err := publisher.New(cfg.Publisher)
		if err != nil {
			logging.Fatal("failed to build publisher", "error", err)
		}
		pubs = append(pubs, pub)
	}
	if *output != "" {
		pubs = append(pubs, publisher.NewFilePublisher(*output))
	}

	r := runner.New(cfg, sources, scorer, summ, pubs, runner.Options{
		Limit:    *limit,
		MinScore: *minScore,
	})

	// Single-run modes: run the pipeline once and exit.
	if *once || *dryRun {
		if _, err := r.Run(ctx); err != nil {
			logging.Fatal("pipeline failed", "error", err)
		}
		return
	}

	if cfg.RunOnStart {
		logging.Info("running initial digest")
		if _, err := r.Run(ctx); err != nil {
			logging.Error("initial run failed", "error", err)
		}
	}

	c := cron.New()
	_, err = c.AddFunc(cfg.Schedule, func() {
		logging.Info("cron triggered, running digest")
		if _, err := r.Run(ctx); err != nil {
			logging.Error("scheduled run failed", "error", err)
		}
	})
	if err != nil {
		logging.Fatal("failed to set up cron schedule", "schedule", cfg.Schedule, "error", err)
	}
	c.Start()
	logging.Info("scheduled digest", "schedule", cfg.Schedule)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logging.Info("shutting down", "signal", sig)

	cancel()
	c.Stop()
}
