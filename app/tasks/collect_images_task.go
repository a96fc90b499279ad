package tasks

import (
	"context"
	"log/slog"

	"github.com/lysyi3m/image-comb/app/feed"
	"github.com/lysyi3m/image-comb/app/harvest"
)

type CollectImagesTask struct {
	Task
	source    *feed.Source
	collector *harvest.Collector
	handoff   *Handoff
}

func NewCollectImagesTask(source *feed.Source, collector *harvest.Collector, handoff *Handoff) *CollectImagesTask {
	return &CollectImagesTask{
		Task:      NewTask(TaskTypeCollectImages, source.Name),
		source:    source,
		collector: collector,
		handoff:   handoff,
	}
}

func (t *CollectImagesTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	stats := t.collector.Collect(ctx, t.source)

	t.handoff.PushStats(t.SourceName, stats)
	t.handoff.PushImages(t.SourceName, stats.Images)

	slog.Info("Task completed",
		"type", t.GetType(),
		"source", t.SourceName,
		"duration", t.GetDuration(),
		"checked", stats.Checked,
		"new", stats.NewImages,
		"errors", stats.DownloadErrors)

	return nil
}
