package narrative

import (
	"context"

	"github.com/trelay/trelay/pkg/analysis"
	"github.com/trelay/trelay/pkg/config"
)

// Narrator turns an aggregated delay report into free-text commentary for
// travellers. Implementations are opaque collaborators - the analysis
// pipeline never depends on one.
type Narrator interface {
	Narrate(ctx context.Context, report *analysis.Report) (string, error)
}

// NoopNarrator is used in constrained or offline deployments.
type NoopNarrator struct{}

func (NoopNarrator) Narrate(ctx context.Context, report *analysis.Report) (string, error) {
	return "Narrative generation is disabled in this deployment. The journey analysis data provides detailed performance metrics for your route.", nil
}

// NewNarrator picks an implementation from the configuration: OpenAI-backed
// when a key is configured, otherwise a no-op.
func NewNarrator(cfg *config.Config) Narrator {
	if cfg.OpenAIKey == "" {
		return NoopNarrator{}
	}

	return NewOpenAINarrator(cfg.OpenAIKey)
}
