package harvest

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/lysyi3m/image-comb/app/feed"
	"github.com/lysyi3m/image-comb/app/storage"
)

const MetadataContentType = "text/csv"

var MetadataColumns = []string{"submission_id", "filename", "url", "subreddit", "date"}

var ErrMalformedMetadata = errors.New("malformed metadata")

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

func MetadataKey(category feed.Category) string {
	return string(category) + "/metadata.csv"
}

// Index is the set of item ids already collected for one category.
type Index map[string]struct{}

func (i Index) Contains(id string) bool {
	_, ok := i[id]
	return ok
}

func (i Index) Add(id string) {
	i[id] = struct{}{}
}

// Metadata reads and appends the per-category CSV stores. Merges into one
// category are serialized within the process only.
type Metadata struct {
	store storage.Store
	locks sync.Map
}

func NewMetadata(store storage.Store) *Metadata {
	return &Metadata{store: store}
}

// LoadIndex never fails: an absent, unreadable or malformed store yields an
// empty index.
func (m *Metadata) LoadIndex(ctx context.Context, category feed.Category) Index {
	index := make(Index)

	table, err := m.readTable(ctx, category)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			slog.Warn("Failed to load metadata, assuming no prior history", "category", category, "error", err)
		}
		return index
	}

	column := slices.Index(table.header, "submission_id")
	for _, row := range table.rows {
		if column < len(row) && row[column] != "" {
			index.Add(row[column])
		}
	}

	slog.Debug("Dedup index loaded", "category", category, "size", len(index))
	return index
}

// Load returns every row of the category's store in store order.
func (m *Metadata) Load(ctx context.Context, category feed.Category) ([]CollectedItem, error) {
	table, err := m.readTable(ctx, category)
	if err != nil {
		return nil, err
	}

	columns := make(map[string]int, len(table.header))
	for i, name := range table.header {
		columns[name] = i
	}
	get := func(row []string, name string) string {
		if i, ok := columns[name]; ok && i < len(row) {
			return row[i]
		}
		return ""
	}

	items := make([]CollectedItem, 0, len(table.rows))
	for _, row := range table.rows {
		items = append(items, CollectedItem{
			SubmissionID: get(row, "submission_id"),
			Filename:     get(row, "filename"),
			URL:          get(row, "url"),
			Subreddit:    get(row, "subreddit"),
			Date:         get(row, "date"),
			TargetSubr:   category,
		})
	}
	return items, nil
}

// Merge appends rows after the existing contents of the category's store.
// Existing bytes are written back unchanged; an empty rows slice performs
// no write at all.
func (m *Metadata) Merge(ctx context.Context, category feed.Category, rows []CollectedItem) error {
	if len(rows) == 0 {
		return nil
	}

	lock, _ := m.locks.LoadOrStore(category, &sync.Mutex{})
	lock.(*sync.Mutex).Lock()
	defer lock.(*sync.Mutex).Unlock()

	key := MetadataKey(category)
	existing, err := m.store.Read(ctx, key)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("failed to read %s: %w", key, err)
	}

	header := MetadataColumns
	var buf bytes.Buffer

	if len(bytes.TrimSpace(bytes.TrimPrefix(existing, utf8BOM))) > 0 {
		table, err := parseTable(existing)
		if err != nil {
			return fmt.Errorf("refusing to append to %s: %w", key, err)
		}
		header = table.header

		buf.Write(existing)
		if existing[len(existing)-1] != '\n' {
			buf.WriteByte('\n')
		}
	}

	w := csv.NewWriter(&buf)
	if buf.Len() == 0 {
		if err := w.Write(header); err != nil {
			return fmt.Errorf("failed to encode header: %w", err)
		}
	}
	for _, row := range rows {
		record := make([]string, len(header))
		for i, column := range header {
			record[i] = row.field(column)
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("failed to encode row %s: %w", row.SubmissionID, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to encode rows: %w", err)
	}

	if err := m.store.Write(ctx, key, buf.Bytes(), MetadataContentType); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}

	slog.Info("Metadata updated", "category", category, "new_rows", len(rows))
	return nil
}

// MergeResult is the outcome of one category's merge.
type MergeResult struct {
	Category feed.Category
	Rows     int
	Err      error
}

// MergeCollected groups items by target category, in first-seen order, and
// merges each group independently. A failed category does not affect others.
func (m *Metadata) MergeCollected(ctx context.Context, items []CollectedItem) []MergeResult {
	var order []feed.Category
	groups := make(map[feed.Category][]CollectedItem)
	for _, item := range items {
		if _, ok := groups[item.TargetSubr]; !ok {
			order = append(order, item.TargetSubr)
		}
		groups[item.TargetSubr] = append(groups[item.TargetSubr], item)
	}

	results := make([]MergeResult, 0, len(order))
	for _, category := range order {
		rows := groups[category]
		err := m.Merge(ctx, category, rows)
		if err != nil {
			slog.Error("Failed to merge metadata", "category", category, "rows", len(rows), "error", err)
		}
		results = append(results, MergeResult{Category: category, Rows: len(rows), Err: err})
	}
	return results
}

type csvTable struct {
	header []string
	rows   [][]string
}

func (m *Metadata) readTable(ctx context.Context, category feed.Category) (*csvTable, error) {
	data, err := m.store.Read(ctx, MetadataKey(category))
	if err != nil {
		return nil, err
	}
	return parseTable(data)
}

func parseTable(data []byte) (*csvTable, error) {
	r := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(data, utf8BOM)))
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedMetadata, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: missing header", ErrMalformedMetadata)
	}

	header := records[0]
	if slices.Index(header, "submission_id") < 0 {
		return nil, fmt.Errorf("%w: header has no submission_id column", ErrMalformedMetadata)
	}
	return &csvTable{header: header, rows: records[1:]}, nil
}
