package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lysyi3m/image-comb/app/harvest"
)

type UpdateMetadataTask struct {
	Task
	metadata *harvest.Metadata
	handoff  *Handoff
}

func NewUpdateMetadataTask(sourceName string, metadata *harvest.Metadata, handoff *Handoff) *UpdateMetadataTask {
	return &UpdateMetadataTask{
		Task:     NewTask(TaskTypeUpdateMetadata, sourceName),
		metadata: metadata,
		handoff:  handoff,
	}
}

// Execute only fails when the upstream collect left nothing to merge.
// Per-category merge failures are logged by MergeCollected and not retried,
// since a retry would re-append to the categories that succeeded.
func (t *UpdateMetadataTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	images, err := t.handoff.PullImages(t.SourceName)
	if err != nil {
		return fmt.Errorf("failed to pull collected images: %w", err)
	}

	if len(images) == 0 {
		slog.Debug("No new images to merge", "source", t.SourceName)
		return nil
	}

	results := t.metadata.MergeCollected(ctx, images)

	failed := 0
	for _, res := range results {
		if res.Err != nil {
			failed++
		}
	}

	slog.Info("Task completed",
		"type", t.GetType(),
		"source", t.SourceName,
		"duration", t.GetDuration(),
		"categories", len(results),
		"failed", failed,
		"rows", len(images))

	return nil
}
