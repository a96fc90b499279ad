package feed

import (
	"bytes"
	"cmp"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"iter"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
)

// RSSReader reads RSS/Atom feeds. The first item category is the tag, the
// first image enclosure (or item image, or link) is the content URL and a
// "nsfw" category sets the safety flag.
type RSSReader struct {
	gofeedParser *gofeed.Parser
	httpClient   *http.Client
	userAgent    string
	timeout      time.Duration
}

func NewRSSReader(httpClient *http.Client, userAgent string, timeout time.Duration) *RSSReader {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &RSSReader{
		gofeedParser: gofeed.NewParser(),
		httpClient:   httpClient,
		userAgent:    userAgent,
		timeout:      timeout,
	}
}

func (p *RSSReader) Read(ctx context.Context, source *Source, limit int) iter.Seq2[CandidateItem, error] {
	return func(yield func(CandidateItem, error) bool) {
		data, err := p.fetchFeed(ctx, source.URL)
		if err != nil {
			yield(CandidateItem{}, err)
			return
		}

		items, err := p.Run(data)
		if err != nil {
			yield(CandidateItem{}, err)
			return
		}

		for i, item := range items {
			if i >= limit {
				return
			}
			if !yield(item, nil) {
				return
			}
		}
	}
}

// Run parses raw feed bytes into candidates in feed order.
func (p *RSSReader) Run(data []byte) ([]CandidateItem, error) {
	parsed, err := p.gofeedParser.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	items := make([]CandidateItem, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		if item == nil {
			continue
		}
		items = append(items, p.normalizeItem(item))
	}
	return items, nil
}

func (p *RSSReader) normalizeItem(item *gofeed.Item) CandidateItem {
	normalized := CandidateItem{
		ID:  ItemID(cmp.Or(item.GUID, item.Link)),
		URL: p.extractImageURL(item),
	}

	if len(item.Categories) > 0 {
		normalized.Tag = TagOf(strings.TrimSpace(item.Categories[0]))
	}
	for _, category := range item.Categories {
		if strings.EqualFold(strings.TrimSpace(category), "nsfw") {
			normalized.NSFW = true
		}
	}

	if item.PublishedParsed != nil {
		normalized.CreatedUTC = float64(item.PublishedParsed.Unix())
	} else if item.UpdatedParsed != nil {
		normalized.CreatedUTC = float64(item.UpdatedParsed.Unix())
	}

	return normalized
}

// ItemID returns raw unchanged when it is made of letters, digits, '_' and
// '-' only. Anything else (URL-shaped GUIDs in particular) is replaced by a
// short hex digest so the id can be used in file names.
func ItemID(raw string) string {
	if raw != "" && strings.IndexFunc(raw, func(r rune) bool { return !isIDRune(r) }) == -1 {
		return raw
	}
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:8])
}

func isIDRune(r rune) bool {
	return r == '_' || r == '-' || ('a' <= r && r <= 'z') || ('A' <= r && r <= 'Z') || ('0' <= r && r <= '9')
}

func (p *RSSReader) extractImageURL(item *gofeed.Item) string {
	for _, enclosure := range item.Enclosures {
		if enclosure != nil && enclosure.URL != "" && strings.HasPrefix(enclosure.Type, "image/") {
			return enclosure.URL
		}
	}
	if item.Image != nil && item.Image.URL != "" {
		return item.Image.URL
	}
	return item.Link
}

func (p *RSSReader) fetchFeed(ctx context.Context, url string) ([]byte, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(timeoutCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if p.userAgent != "" {
		req.Header.Set("User-Agent", p.userAgent)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return data, nil
}
