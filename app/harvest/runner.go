package harvest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lysyi3m/image-comb/app/feed"
)

// Runner is the one-shot execution context: every source is collected and
// merged in turn, then the run summary is written.
type Runner struct {
	sources   []*feed.Source
	collector *Collector
	metadata  *Metadata
	summaries *SummaryWriter
	location  *time.Location
	now       func() time.Time
}

func NewRunner(sources []*feed.Source, collector *Collector, metadata *Metadata, summaries *SummaryWriter, location *time.Location) *Runner {
	if location == nil {
		location = time.Local
	}
	return &Runner{
		sources:   sources,
		collector: collector,
		metadata:  metadata,
		summaries: summaries,
		location:  location,
		now:       time.Now,
	}
}

func (r *Runner) Run(ctx context.Context) (RunSummary, error) {
	stats := make([]FunnelStats, 0, len(r.sources))

	for _, source := range r.sources {
		if err := ctx.Err(); err != nil {
			return RunSummary{}, fmt.Errorf("run interrupted before %s: %w", source.Name, err)
		}

		s := r.collector.Collect(ctx, source)
		r.metadata.MergeCollected(ctx, s.Images)
		stats = append(stats, s)
	}

	summary := Aggregate(r.now().In(r.location), stats)
	if _, err := r.summaries.Write(ctx, summary); err != nil {
		return summary, err
	}

	slog.Info("Run completed", "sources", len(stats), "total_new_images", summary.TotalNewImages, "total_errors", summary.TotalErrors)
	return summary, nil
}
