package publisher

import (
	"context"
	"fmt"
	"os"

	"github.com/jmadden/news-digest/internal/render"
	"github.com/jmadden/news-digest/internal/runner"
)

// FilePublisher writes the Markdown digest to a file, replacing any
// previous digest at the same path.
type FilePublisher struct {
	path string
}

func NewFilePublisher(path string) *FilePublisher {
	return &FilePublisher{path: path}
}

func (p *FilePublisher) Name() string {
	return "file"
}

func (p *FilePublisher) Publish(_ context.Context, report *runner.Report) error {
	if err := os.WriteFile(p.path, []byte(render.Markdown(report)), 0o644); err != nil {
		return fmt.Errorf("file: failed to write digest: %w", err)
	}
	return nil
}
