package tasks

import (
	"fmt"
	"sync"

	"github.com/lysyi3m/image-comb/app/harvest"
)

// Handoff is the key-value exchange between the tasks of one run. Keys are
// "{source}_stats" and "{source}_images".
type Handoff struct {
	mu     sync.RWMutex
	values map[string]any
}

func NewHandoff() *Handoff {
	return &Handoff{values: make(map[string]any)}
}

func StatsKey(source string) string {
	return source + "_stats"
}

func ImagesKey(source string) string {
	return source + "_images"
}

func (h *Handoff) Push(key string, value any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.values[key] = value
}

func (h *Handoff) Pull(key string) (any, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	value, ok := h.values[key]
	return value, ok
}

func (h *Handoff) PushStats(source string, stats harvest.FunnelStats) {
	h.Push(StatsKey(source), stats)
}

func (h *Handoff) PullStats(source string) (harvest.FunnelStats, bool) {
	value, ok := h.Pull(StatsKey(source))
	if !ok {
		return harvest.FunnelStats{}, false
	}
	stats, ok := value.(harvest.FunnelStats)
	return stats, ok
}

func (h *Handoff) PushImages(source string, images []harvest.CollectedItem) {
	h.Push(ImagesKey(source), append([]harvest.CollectedItem(nil), images...))
}

func (h *Handoff) PullImages(source string) ([]harvest.CollectedItem, error) {
	value, ok := h.Pull(ImagesKey(source))
	if !ok {
		return nil, fmt.Errorf("no images handed off for %s", source)
	}
	images, ok := value.([]harvest.CollectedItem)
	if !ok {
		return nil, fmt.Errorf("unexpected value type %T under %s", value, ImagesKey(source))
	}
	return images, nil
}
