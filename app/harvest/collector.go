package harvest

import (
	"context"
	"log/slog"
	"time"

	"github.com/lysyi3m/image-comb/app/feed"
)

// Collector runs one full pipeline pass for a source: read, filter,
// resolve and fetch. Metadata is merged by the caller.
type Collector struct {
	reader   feed.Reader
	filterer *feed.Filterer
	metadata *Metadata
	fetcher  *ContentFetcher
}

func NewCollector(reader feed.Reader, filterer *feed.Filterer, metadata *Metadata, fetcher *ContentFetcher) *Collector {
	return &Collector{
		reader:   reader,
		filterer: filterer,
		metadata: metadata,
		fetcher:  fetcher,
	}
}

// seenIndex loads each category's dedup index on first use and records ids
// collected during the pass.
type seenIndex struct {
	ctx      context.Context
	metadata *Metadata
	indexes  map[feed.Category]Index
}

func (s *seenIndex) index(category feed.Category) Index {
	index, ok := s.indexes[category]
	if !ok {
		index = s.metadata.LoadIndex(s.ctx, category)
		s.indexes[category] = index
	}
	return index
}

func (s *seenIndex) Seen(category feed.Category, id string) bool {
	return s.index(category).Contains(id)
}

func (c *Collector) Collect(ctx context.Context, source *feed.Source) FunnelStats {
	start := time.Now()
	stats := NewFunnelStats(source.Name)
	seen := &seenIndex{ctx: ctx, metadata: c.metadata, indexes: make(map[feed.Category]Index)}

	slog.Info("Processing source", "source", source.Name, "limit", source.Limit)

	for item, err := range c.reader.Read(ctx, source, source.Limit) {
		if err != nil {
			slog.Error("Failed to read feed", "source", source.Name, "error", err)
			break
		}

		verdict := c.filterer.Check(&stats.Funnel, item, source, seen)
		if !verdict.Accepted {
			if verdict.RejectedAt == feed.StageResolve {
				slog.Error("Failed to resolve category", "source", source.Name, "id", item.ID, "tag", item.Tag.String(), "error", verdict.Err)
				stats.Record(Fail[CollectedItem](ReasonResolve, verdict.Err))
			}
			continue
		}

		res := c.fetcher.Fetch(ctx, item, source.Name, verdict.Category)
		stats.Record(res)
		if res.IsOk() {
			seen.index(verdict.Category).Add(item.ID)
		}
	}

	slog.Info("Source processed",
		"source", source.Name,
		"checked", stats.Checked,
		"passed_flair", stats.PassedTag,
		"passed_image", stats.PassedContentType,
		"passed_nsfw", stats.PassedSafety,
		"new_images", stats.NewImages,
		"download_errors", stats.DownloadErrors,
		"duration", time.Since(start))

	return stats
}
