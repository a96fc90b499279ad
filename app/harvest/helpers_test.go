package harvest

import (
	"context"
	"errors"
	"iter"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/lysyi3m/image-comb/app/feed"
	"github.com/lysyi3m/image-comb/app/storage"
)

type fakeReader struct {
	items []feed.CandidateItem
	err   error
}

func (r *fakeReader) Read(ctx context.Context, source *feed.Source, limit int) iter.Seq2[feed.CandidateItem, error] {
	return func(yield func(feed.CandidateItem, error) bool) {
		for i, item := range r.items {
			if i >= limit {
				return
			}
			if !yield(item, nil) {
				return
			}
		}
		if r.err != nil {
			yield(feed.CandidateItem{}, r.err)
		}
	}
}

var errStoreDown = errors.New("store down")

// failingStore fails every write whose key has the given prefix.
type failingStore struct {
	*storage.MemoryStore
	prefix string
}

func (s *failingStore) Write(ctx context.Context, key string, data []byte, contentType string) error {
	if strings.HasPrefix(key, s.prefix) {
		return errStoreDown
	}
	return s.MemoryStore.Write(ctx, key, data, contentType)
}

func newImageServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/missing"):
			http.NotFound(w, r)
		case strings.HasPrefix(r.URL.Path, "/slow"):
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		default:
			w.Header().Set("Content-Type", "image/png")
			w.Write([]byte("image:" + r.URL.Path))
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func identitySource(name string, tags ...string) *feed.Source {
	return feed.NewSource(&feed.Config{
		Name:     name,
		Reader:   feed.ReaderReddit,
		Tags:     tags,
		Settings: feed.ConfigSettings{Enabled: true, Limit: 100},
	})
}

func aiArtSource() *feed.Source {
	return feed.NewSource(&feed.Config{
		Name:   "aiArt",
		Reader: feed.ReaderReddit,
		Tags:   []string{"Image - DALL E 3 :a2:", "Image - Midjourney :a2:"},
		Redirect: map[string]string{
			"Image - DALL E 3 :a2:":   "dalle2",
			"Image - Midjourney :a2:": "midjourney",
		},
		Settings: feed.ConfigSettings{Enabled: true, Limit: 100},
	})
}

func seedMetadata(t *testing.T, store storage.Store, category feed.Category, content string) {
	t.Helper()
	if err := store.Write(context.Background(), MetadataKey(category), []byte(content), MetadataContentType); err != nil {
		t.Fatal(err)
	}
}

func feedCategory(s string) feed.Category {
	return feed.Category(s)
}
