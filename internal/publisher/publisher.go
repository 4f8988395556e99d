// Package publisher delivers rendered digests to configured destinations.
package publisher

import (
	"fmt"

	"github.com/jmadden/news-digest/internal/config"
	"github.com/jmadden/news-digest/internal/runner"
)

// ErrUnsupportedPublisherType is returned when an unsupported publisher type is specified.
var ErrUnsupportedPublisherType = fmt.Errorf("unsupported publisher type")

// New creates a publisher based on the configuration.
func New(cfg config.PublisherConfig) (runner.Publisher, error) {
	switch cfg.Type {
	case "stdout":
		return NewStdoutPublisher(), nil
	case "email":
		return NewEmailPublisher(cfg.Email), nil
	case "file":
		return NewFilePublisher(cfg.File.Path), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedPublisherType, cfg.Type)
	}
}
