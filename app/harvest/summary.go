package harvest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/lysyi3m/image-comb/app/feed"
	"github.com/lysyi3m/image-comb/app/storage"
)

const SummaryContentType = "application/json"

// FunnelStats is the outcome of one pipeline pass over one source.
type FunnelStats struct {
	Source string `json:"subreddit"`
	feed.Funnel
	NewImages      int             `json:"new_images"`
	DownloadErrors int             `json:"download_errors"`
	Images         []CollectedItem `json:"images"`
}

func NewFunnelStats(source string) FunnelStats {
	return FunnelStats{Source: source, Images: []CollectedItem{}}
}

// Record folds one fetch result into the counters.
func (s *FunnelStats) Record(res Result[CollectedItem]) {
	if !res.IsOk() {
		s.DownloadErrors++
		return
	}
	s.NewImages++
	s.Images = append(s.Images, res.Value)
}

type RunSummary struct {
	Date           string        `json:"date"`
	SubredditStats []FunnelStats `json:"subreddit_stats"`
	TotalNewImages int           `json:"total_new_images"`
	TotalErrors    int           `json:"total_errors"`
	GeneratedAt    time.Time     `json:"-"`
}

// Aggregate sums the per-source stats in the order given.
func Aggregate(now time.Time, stats []FunnelStats) RunSummary {
	summary := RunSummary{
		Date:           FormatISO(now),
		SubredditStats: make([]FunnelStats, 0, len(stats)),
		GeneratedAt:    now,
	}
	for _, s := range stats {
		if s.Images == nil {
			s.Images = []CollectedItem{}
		}
		summary.SubredditStats = append(summary.SubredditStats, s)
		summary.TotalNewImages += s.NewImages
		summary.TotalErrors += s.DownloadErrors
	}
	return summary
}

func SummaryKey(t time.Time) string {
	return "logs/" + t.Format("daily_collection_20060102_150405") + ".json"
}

type SummaryWriter struct {
	store storage.Store
}

func NewSummaryWriter(store storage.Store) *SummaryWriter {
	return &SummaryWriter{store: store}
}

// Write persists the summary and returns the key it was written to.
func (w *SummaryWriter) Write(ctx context.Context, summary RunSummary) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(summary); err != nil {
		return "", fmt.Errorf("failed to encode run summary: %w", err)
	}

	key := SummaryKey(summary.GeneratedAt)
	if err := w.store.Write(ctx, key, buf.Bytes(), SummaryContentType); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", key, err)
	}

	slog.Info("Run summary saved", "key", key, "new_images", summary.TotalNewImages, "errors", summary.TotalErrors)
	return key, nil
}
