package tasks

import (
	"context"

	"github.com/lysyi3m/image-comb/app/feed"
	"github.com/lysyi3m/image-comb/app/harvest"
)

// OrchestratorInterface is what the API server needs from the orchestrator.
// Example usage:
//
//	orchestrator := NewOrchestrator(sources, collector, metadata, summaries, opts)
//	orchestrator.Start()
//	defer orchestrator.Stop()
//	runID, err := orchestrator.Trigger()
type OrchestratorInterface interface {
	Start() error
	Stop()
	Trigger() (string, error)
	RunOnce(ctx context.Context) (harvest.RunSummary, error)
	Latest() (harvest.RunSummary, bool)
	Sources() []*feed.Source
}

// SourceProvider supplies the sources of each run. feed.ConfigCache
// implements it.
type SourceProvider interface {
	GetEnabledSources() []*feed.Source
}
