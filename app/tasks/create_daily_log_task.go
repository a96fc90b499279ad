package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lysyi3m/image-comb/app/harvest"
)

type CreateDailyLogTask struct {
	Task
	sources   []string
	summaries *harvest.SummaryWriter
	handoff   *Handoff
	now       func() time.Time
	summary   *harvest.RunSummary
}

func NewCreateDailyLogTask(sources []string, summaries *harvest.SummaryWriter, handoff *Handoff, now func() time.Time) *CreateDailyLogTask {
	return &CreateDailyLogTask{
		Task:      NewTask(TaskTypeCreateDailyLog, ""),
		sources:   sources,
		summaries: summaries,
		handoff:   handoff,
		now:       now,
	}
}

// Execute folds the stats of every source that handed some off. A source
// whose collect task failed is absent from the summary.
func (t *CreateDailyLogTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	stats := make([]harvest.FunnelStats, 0, len(t.sources))
	for _, source := range t.sources {
		s, ok := t.handoff.PullStats(source)
		if !ok {
			slog.Warn("No stats handed off, source omitted from summary", "source", source)
			continue
		}
		stats = append(stats, s)
	}

	summary := harvest.Aggregate(t.now(), stats)
	key, err := t.summaries.Write(ctx, summary)
	if err != nil {
		return fmt.Errorf("failed to write daily log: %w", err)
	}
	t.summary = &summary

	slog.Info("Task completed",
		"type", t.GetType(),
		"duration", t.GetDuration(),
		"key", key,
		"sources", len(stats),
		"total_new_images", summary.TotalNewImages,
		"total_errors", summary.TotalErrors)

	return nil
}

// Summary returns the written summary, or false if Execute has not succeeded.
func (t *CreateDailyLogTask) Summary() (harvest.RunSummary, bool) {
	if t.summary == nil {
		return harvest.RunSummary{}, false
	}
	return *t.summary, true
}
