package harvest

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/lysyi3m/image-comb/app/feed"
	"github.com/lysyi3m/image-comb/app/storage"
)

func TestCollector_Collect_FunnelScenario(t *testing.T) {
	server := newImageServer(t)
	store := storage.NewMemoryStore()
	seedMetadata(t, store, "dalle2", "submission_id,filename,url,subreddit,date\nold,img_dalle2_old.png,u,dalle2,2024-01-01T00:00:00\n")

	reader := &fakeReader{items: []feed.CandidateItem{
		{ID: "i1", Tag: feed.TagOf("Discussion"), URL: server.URL + "/i1.png"},
		{ID: "i2", Tag: feed.NoTag(), URL: server.URL + "/i2.png"},
		{ID: "u1", Tag: feed.TagOf("DALL·E 3"), URL: server.URL + "/u1.png", NSFW: true},
		{ID: "old", Tag: feed.TagOf("DALL·E 2"), URL: server.URL + "/old.png"},
		{ID: "new", Tag: feed.TagOf("DALL·E 2"), URL: server.URL + "/new.jpg", CreatedUTC: 1735787045},
	}}

	metadata := NewMetadata(store)
	fetcher := NewContentFetcher(server.Client(), store, time.Second, "", time.UTC)
	collector := NewCollector(reader, feed.NewFilterer(nil), metadata, fetcher)

	stats := collector.Collect(context.Background(), identitySource("dalle2", "DALL·E 2", "DALL·E 3"))

	expected := feed.Funnel{Checked: 5, PassedTag: 3, PassedContentType: 3, PassedSafety: 2}
	if stats.Funnel != expected {
		t.Errorf("Expected funnel %+v, got %+v", expected, stats.Funnel)
	}
	if stats.NewImages != 1 {
		t.Errorf("Expected new_images=1, got %d", stats.NewImages)
	}
	if stats.DownloadErrors != 0 {
		t.Errorf("Expected download_errors=0, got %d", stats.DownloadErrors)
	}

	results := metadata.MergeCollected(context.Background(), stats.Images)
	if len(results) != 1 || results[0].Rows != 1 || results[0].Err != nil {
		t.Fatalf("Expected exactly one row merged, got %+v", results)
	}

	rows, err := metadata.Load(context.Background(), "dalle2")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 || rows[0].SubmissionID != "old" || rows[1].SubmissionID != "new" {
		t.Errorf("Expected rows [old new], got %+v", rows)
	}
	if _, ok := store.Object("dalle2/img_dalle2_new.jpg"); !ok {
		t.Error("Expected image to be stored")
	}
}

func TestCollector_Collect_Idempotent(t *testing.T) {
	server := newImageServer(t)
	store := storage.NewMemoryStore()
	reader := &fakeReader{items: []feed.CandidateItem{
		{ID: "a", Tag: feed.TagOf("x"), URL: server.URL + "/a.png"},
		{ID: "b", Tag: feed.TagOf("x"), URL: server.URL + "/b.png"},
	}}

	metadata := NewMetadata(store)
	fetcher := NewContentFetcher(server.Client(), store, time.Second, "", time.UTC)
	collector := NewCollector(reader, feed.NewFilterer(nil), metadata, fetcher)
	source := identitySource("x", "x")

	first := collector.Collect(context.Background(), source)
	metadata.MergeCollected(context.Background(), first.Images)
	if first.NewImages != 2 {
		t.Fatalf("Expected 2 new images on first run, got %d", first.NewImages)
	}

	second := collector.Collect(context.Background(), source)
	if second.NewImages != 0 {
		t.Errorf("Expected 0 new images on second run, got %d", second.NewImages)
	}
	if second.PassedSafety != 2 {
		t.Errorf("Expected both items to reach novelty, got passed_nsfw=%d", second.PassedSafety)
	}
}

func TestCollector_Collect_DuplicateWithinPass(t *testing.T) {
	server := newImageServer(t)
	store := storage.NewMemoryStore()
	reader := &fakeReader{items: []feed.CandidateItem{
		{ID: "a", Tag: feed.TagOf("x"), URL: server.URL + "/a.png"},
		{ID: "a", Tag: feed.TagOf("x"), URL: server.URL + "/a.png"},
	}}

	collector := NewCollector(reader, feed.NewFilterer(nil), NewMetadata(store),
		NewContentFetcher(server.Client(), store, time.Second, "", time.UTC))

	stats := collector.Collect(context.Background(), identitySource("x", "x"))
	if stats.NewImages != 1 {
		t.Errorf("Expected repeated id to be collected once, got %d", stats.NewImages)
	}
}

func TestCollector_Collect_Redirect(t *testing.T) {
	server := newImageServer(t)
	store := storage.NewMemoryStore()
	seedMetadata(t, store, "midjourney", "submission_id,filename,url,subreddit,date\nm0,f,u,midjourney,d\n")

	reader := &fakeReader{items: []feed.CandidateItem{
		{ID: "d1", Tag: feed.TagOf("Image - DALL E 3 :a2:"), URL: server.URL + "/d1.png"},
		{ID: "m0", Tag: feed.TagOf("Image - Midjourney :a2:"), URL: server.URL + "/m0.png"},
		{ID: "m1", Tag: feed.TagOf("Image - Midjourney :a2:"), URL: server.URL + "/m1.png"},
		{ID: "d2", Tag: feed.TagOf("Image - DALL E 3 :a2:"), URL: server.URL + "/d2.png"},
	}}

	metadata := NewMetadata(store)
	collector := NewCollector(reader, feed.NewFilterer(nil), metadata,
		NewContentFetcher(server.Client(), store, time.Second, "", time.UTC))

	stats := collector.Collect(context.Background(), aiArtSource())
	if stats.NewImages != 3 {
		t.Fatalf("Expected 3 new images, got %d", stats.NewImages)
	}

	results := metadata.MergeCollected(context.Background(), stats.Images)
	if len(results) != 2 {
		t.Fatalf("Expected merges into 2 categories, got %+v", results)
	}
	if results[0].Category != "dalle2" || results[0].Rows != 2 {
		t.Errorf("Expected 2 rows for dalle2, got %+v", results[0])
	}
	if results[1].Category != "midjourney" || results[1].Rows != 1 {
		t.Errorf("Expected 1 row for midjourney, got %+v", results[1])
	}

	rows, err := metadata.Load(context.Background(), "dalle2")
	if err != nil {
		t.Fatal(err)
	}
	for _, row := range rows {
		if row.Subreddit != "aiArt" {
			t.Errorf("Expected originating source 'aiArt', got '%s'", row.Subreddit)
		}
	}
	if _, ok := store.Object("midjourney/img_midjourney_m1.png"); !ok {
		t.Error("Expected redirected image under midjourney")
	}
}

func TestCollector_Collect_FetchTimeout(t *testing.T) {
	server := newImageServer(t)
	store := storage.NewMemoryStore()
	reader := &fakeReader{items: []feed.CandidateItem{
		{ID: "slow", Tag: feed.TagOf("x"), URL: server.URL + "/slow.png"},
		{ID: "fast", Tag: feed.TagOf("x"), URL: server.URL + "/fast.png"},
	}}

	metadata := NewMetadata(store)
	collector := NewCollector(reader, feed.NewFilterer(nil), metadata,
		NewContentFetcher(server.Client(), store, 50*time.Millisecond, "", time.UTC))

	stats := collector.Collect(context.Background(), identitySource("x", "x"))
	if stats.DownloadErrors != 1 {
		t.Errorf("Expected download_errors=1, got %d", stats.DownloadErrors)
	}
	if stats.NewImages != 1 || stats.Images[0].SubmissionID != "fast" {
		t.Errorf("Expected run to continue with the next item, got %+v", stats.Images)
	}
	if _, ok := store.Object("x/img_x_slow.png"); ok {
		t.Error("Expected no binary for the timed out item")
	}

	metadata.MergeCollected(context.Background(), stats.Images)
	if metadata.LoadIndex(context.Background(), "x").Contains("slow") {
		t.Error("Expected no metadata row for the timed out item")
	}
}

func TestCollector_Collect_ReaderError(t *testing.T) {
	server := newImageServer(t)
	store := storage.NewMemoryStore()
	reader := &fakeReader{
		items: []feed.CandidateItem{{ID: "a", Tag: feed.TagOf("x"), URL: server.URL + "/a.png"}},
		err:   errors.New("listing unavailable"),
	}

	collector := NewCollector(reader, feed.NewFilterer(nil), NewMetadata(store),
		NewContentFetcher(server.Client(), store, time.Second, "", time.UTC))

	stats := collector.Collect(context.Background(), identitySource("x", "x"))
	if stats.Checked != 1 || stats.NewImages != 1 {
		t.Errorf("Expected items before the error to be kept, got %+v", stats)
	}
}

func TestCollector_Collect_UnmappedRedirectTag(t *testing.T) {
	server := newImageServer(t)
	store := storage.NewMemoryStore()
	source := feed.NewSource(&feed.Config{
		Name:     "aiArt",
		Reader:   feed.ReaderReddit,
		Tags:     []string{"Image - DALL E 3 :a2:", "Image - Stable Diffusion"},
		Redirect: map[string]string{"Image - DALL E 3 :a2:": "dalle2"},
		Settings: feed.ConfigSettings{Enabled: true, Limit: 100},
	})
	reader := &fakeReader{items: []feed.CandidateItem{
		{ID: "s1", Tag: feed.TagOf("Image - Stable Diffusion"), URL: server.URL + "/s1.png"},
		{ID: "d1", Tag: feed.TagOf("Image - DALL E 3 :a2:"), URL: server.URL + "/d1.png"},
	}}

	collector := NewCollector(reader, feed.NewFilterer(nil), NewMetadata(store),
		NewContentFetcher(server.Client(), store, time.Second, "", time.UTC))

	stats := collector.Collect(context.Background(), source)
	if stats.DownloadErrors != 1 {
		t.Errorf("Expected download_errors=1 for the unmapped tag, got %d", stats.DownloadErrors)
	}
	if stats.NewImages != 1 || stats.Images[0].SubmissionID != "d1" {
		t.Errorf("Expected run to continue with the mapped item, got %+v", stats.Images)
	}
	for _, key := range store.Keys() {
		if strings.Contains(key, "s1") {
			t.Errorf("Expected nothing stored for the unmapped item, got %s", key)
		}
	}
}
