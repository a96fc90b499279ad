package api

import (
	"github.com/lysyi3m/image-comb/app/feed"
	"github.com/lysyi3m/image-comb/app/harvest"
	"github.com/lysyi3m/image-comb/app/tasks"
)

type GeneratorInterface interface {
	Run(category feed.Category, items []harvest.CollectedItem) (string, error)
}

var _ GeneratorInterface = (*Generator)(nil)

type Handler struct {
	metadata     *harvest.Metadata
	generator    GeneratorInterface
	orchestrator tasks.OrchestratorInterface
	version      string
}
