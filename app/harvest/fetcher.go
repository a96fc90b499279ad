package harvest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/lysyi3m/image-comb/app/feed"
	"github.com/lysyi3m/image-comb/app/storage"
)

const (
	DefaultFetchTimeout = 10 * time.Second
	DefaultExtension    = ".jpg"
	DefaultContentType  = "image/jpeg"
)

var DefaultContentTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
}

// FileExtension returns the lowercased extension of the URL path, or
// DefaultExtension when the path has none.
func FileExtension(rawURL string) string {
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		p = u.Path
	}
	ext := strings.ToLower(path.Ext(p))
	if ext == "" || ext == "." {
		return DefaultExtension
	}
	return ext
}

var ErrUnsafeID = errors.New("item id is not usable as a file name")

// SafeID reports whether id can be embedded in a file name without
// escaping its category directory.
func SafeID(id string) bool {
	return id != "" && !strings.ContainsAny(id, `/\`) && !strings.Contains(id, "..")
}

func Filename(category feed.Category, id, ext string) string {
	return fmt.Sprintf("img_%s_%s%s", category, id, ext)
}

func ContentType(ext string) string {
	if ct, ok := DefaultContentTypes[strings.ToLower(ext)]; ok {
		return ct
	}
	return DefaultContentType
}

// ObjectKey is the storage key of an image within its category.
func ObjectKey(category feed.Category, filename string) string {
	return string(category) + "/" + filename
}

type ContentFetcher struct {
	httpClient *http.Client
	store      storage.Store
	timeout    time.Duration
	userAgent  string
	location   *time.Location
}

func NewContentFetcher(httpClient *http.Client, store storage.Store, timeout time.Duration, userAgent string, location *time.Location) *ContentFetcher {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	if location == nil {
		location = time.Local
	}
	return &ContentFetcher{
		httpClient: httpClient,
		store:      store,
		timeout:    timeout,
		userAgent:  userAgent,
		location:   location,
	}
}

// Fetch downloads the item's content and writes it under its category. The
// write only happens once the whole body has been read.
func (f *ContentFetcher) Fetch(ctx context.Context, item feed.CandidateItem, source string, category feed.Category) Result[CollectedItem] {
	if !SafeID(item.ID) {
		slog.Error("Refusing to store item with unsafe id", "source", source, "id", item.ID)
		return Fail[CollectedItem](ReasonWrite, fmt.Errorf("%w: %q", ErrUnsafeID, item.ID))
	}

	ext := FileExtension(item.URL)
	filename := Filename(category, item.ID, ext)

	data, err := f.download(ctx, item.URL)
	if err != nil {
		slog.Error("Failed to download image", "source", source, "id", item.ID, "url", item.URL, "error", err)
		return Fail[CollectedItem](ReasonFetch, err)
	}

	key := ObjectKey(category, filename)
	if err := f.store.Write(ctx, key, data, ContentType(ext)); err != nil {
		slog.Error("Failed to store image", "source", source, "id", item.ID, "key", key, "error", err)
		return Fail[CollectedItem](ReasonWrite, fmt.Errorf("failed to store %s: %w", key, err))
	}

	slog.Debug("Image stored", "source", source, "id", item.ID, "key", key, "size", len(data))

	return Ok(CollectedItem{
		SubmissionID: item.ID,
		Filename:     filename,
		URL:          item.URL,
		Subreddit:    source,
		Date:         FormatISO(EpochTime(item.CreatedUTC, f.location)),
		TargetSubr:   category,
	})
}

func (f *ContentFetcher) download(ctx context.Context, rawURL string) ([]byte, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(timeoutCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch content: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return data, nil
}
