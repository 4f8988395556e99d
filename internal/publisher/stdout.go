package publisher

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/jmadden/news-digest/internal/render"
	"github.com/jmadden/news-digest/internal/runner"
)

// StdoutPublisher prints the Markdown digest to standard output.
type StdoutPublisher struct {
	out io.Writer
}

func NewStdoutPublisher() *StdoutPublisher {
	return &StdoutPublisher{out: os.Stdout}
}

func (p *StdoutPublisher) Name() string {
	return "stdout"
}

func (p *StdoutPublisher) Publish(_ context.Context, report *runner.Report) error {
	if _, err := fmt.Fprintln(p.out, render.Markdown(report)); err != nil {
		return fmt.Errorf("stdout: failed to write digest: %w", err)
	}
	return nil
}
