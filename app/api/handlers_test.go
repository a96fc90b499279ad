package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lysyi3m/image-comb/app/feed"
	"github.com/lysyi3m/image-comb/app/harvest"
	"github.com/lysyi3m/image-comb/app/storage"
	"github.com/lysyi3m/image-comb/app/tasks"
)

type fakeOrchestrator struct {
	sources   []*feed.Source
	latest    *harvest.RunSummary
	triggered int
	busy      bool
}

var _ tasks.OrchestratorInterface = (*fakeOrchestrator)(nil)

func (f *fakeOrchestrator) Start() error { return nil }
func (f *fakeOrchestrator) Stop()        {}

func (f *fakeOrchestrator) Trigger() (string, error) {
	if f.busy {
		return "", tasks.ErrRunInProgress
	}
	f.triggered++
	return "run-1", nil
}

func (f *fakeOrchestrator) RunOnce(ctx context.Context) (harvest.RunSummary, error) {
	return harvest.RunSummary{}, nil
}

func (f *fakeOrchestrator) Latest() (harvest.RunSummary, bool) {
	if f.latest == nil {
		return harvest.RunSummary{}, false
	}
	return *f.latest, true
}

func (f *fakeOrchestrator) Sources() []*feed.Source {
	return f.sources
}

func newTestServer(t *testing.T, orchestrator *fakeOrchestrator, store storage.Store) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	if orchestrator.sources == nil {
		for _, cfg := range feed.DefaultSources() {
			orchestrator.sources = append(orchestrator.sources, feed.NewSource(cfg))
		}
	}

	generator := NewGenerator("http://localhost:8080", "test", 0, time.UTC)
	handler := NewHandler(harvest.NewMetadata(store), generator, orchestrator, "test")
	return NewServer(handler, "secret")
}

func doRequest(router *gin.Engine, method, path string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestGetFeed(t *testing.T) {
	store := storage.NewMemoryStore()
	store.Write(context.Background(), harvest.MetadataKey("dalle2"), []byte(
		"submission_id,filename,url,subreddit,date\n"+
			"a,img_dalle2_a.png,https://i.redd.it/a.png,dalle2,2025-01-01T10:00:00\n"+
			"b,img_dalle2_b.jpg,https://i.redd.it/b.jpg,aiArt,2025-01-02T10:00:00.500000\n"), "text/csv")

	router := newTestServer(t, &fakeOrchestrator{}, store)

	w := doRequest(router, http.MethodGet, "/feeds/dalle2", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/xml") {
		t.Errorf("Expected XML content type, got '%s'", ct)
	}
	if w.Header().Get("X-Feed-Items") != "2" {
		t.Errorf("Expected X-Feed-Items 2, got '%s'", w.Header().Get("X-Feed-Items"))
	}

	body := w.Body.String()
	if strings.Index(body, "<guid isPermaLink=\"false\">b</guid>") > strings.Index(body, "<guid isPermaLink=\"false\">a</guid>") {
		t.Error("Expected newest item first")
	}
	if !strings.Contains(body, `<enclosure url="https://i.redd.it/b.jpg" length="0" type="image/jpeg" />`) {
		t.Errorf("Expected jpeg enclosure, got:\n%s", body)
	}
	if !strings.Contains(body, "<category>aiArt</category>") {
		t.Error("Expected originating source as category")
	}
}

func TestGetFeed_EmptyAndUnknown(t *testing.T) {
	router := newTestServer(t, &fakeOrchestrator{}, storage.NewMemoryStore())

	w := doRequest(router, http.MethodGet, "/feeds/midjourney", nil)
	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200 for configured category without metadata, got %d", w.Code)
	}
	if w.Header().Get("X-Feed-Items") != "0" {
		t.Errorf("Expected 0 items, got '%s'", w.Header().Get("X-Feed-Items"))
	}

	w = doRequest(router, http.MethodGet, "/feeds/aiArt", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 for redirecting source without own category, got %d", w.Code)
	}

	w = doRequest(router, http.MethodGet, "/feeds/unknown", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
}

func TestGetStats(t *testing.T) {
	orchestrator := &fakeOrchestrator{}
	router := newTestServer(t, orchestrator, storage.NewMemoryStore())

	w := doRequest(router, http.MethodGet, "/stats", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 before any run, got %d", w.Code)
	}

	summary := harvest.Aggregate(time.Date(2025, 3, 4, 16, 0, 0, 0, time.UTC), []harvest.FunnelStats{
		{Source: "dalle2", NewImages: 2},
	})
	orchestrator.latest = &summary

	w = doRequest(router, http.MethodGet, "/stats", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded["total_new_images"] != float64(2) {
		t.Errorf("Expected total_new_images 2, got %v", decoded["total_new_images"])
	}
	if decoded["date"] != "2025-03-04T16:00:00" {
		t.Errorf("Expected date '2025-03-04T16:00:00', got %v", decoded["date"])
	}
}

func TestGetHealth(t *testing.T) {
	router := newTestServer(t, &fakeOrchestrator{}, storage.NewMemoryStore())

	w := doRequest(router, http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded["sources"] != float64(3) {
		t.Errorf("Expected 3 sources, got %v", decoded["sources"])
	}
}

func TestAPIAuth(t *testing.T) {
	router := newTestServer(t, &fakeOrchestrator{}, storage.NewMemoryStore())

	if w := doRequest(router, http.MethodGet, "/api/sources", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401 without key, got %d", w.Code)
	}
	if w := doRequest(router, http.MethodGet, "/api/sources", map[string]string{"X-API-Key": "wrong"}); w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401 with wrong key, got %d", w.Code)
	}
	if w := doRequest(router, http.MethodGet, "/api/sources", map[string]string{"Authorization": "Bearer secret"}); w.Code != http.StatusOK {
		t.Errorf("Expected status 200 with bearer key, got %d", w.Code)
	}
}

func TestAPIListSources(t *testing.T) {
	router := newTestServer(t, &fakeOrchestrator{}, storage.NewMemoryStore())

	w := doRequest(router, http.MethodGet, "/api/sources", map[string]string{"X-API-Key": "secret"})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var decoded struct {
		Sources []struct {
			Name       string   `json:"name"`
			Resolver   string   `json:"resolver"`
			Categories []string `json:"categories"`
		} `json:"sources"`
		Total int `json:"total"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &decoded); err != nil {
		t.Fatal(err)
	}

	if decoded.Total != 3 {
		t.Fatalf("Expected 3 sources, got %d", decoded.Total)
	}
	aiArt := decoded.Sources[2]
	if aiArt.Name != "aiArt" || aiArt.Resolver != "redirect" {
		t.Errorf("Expected aiArt with redirect resolver, got %+v", aiArt)
	}
	if len(aiArt.Categories) != 2 {
		t.Errorf("Expected 2 categories for aiArt, got %v", aiArt.Categories)
	}
}

func TestAPITriggerRun(t *testing.T) {
	orchestrator := &fakeOrchestrator{}
	router := newTestServer(t, orchestrator, storage.NewMemoryStore())
	headers := map[string]string{"X-API-Key": "secret"}

	w := doRequest(router, http.MethodPost, "/api/runs", headers)
	if w.Code != http.StatusAccepted {
		t.Fatalf("Expected status 202, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "run-1") {
		t.Errorf("Expected run id in response, got %s", w.Body.String())
	}
	if orchestrator.triggered != 1 {
		t.Errorf("Expected 1 trigger, got %d", orchestrator.triggered)
	}

	orchestrator.busy = true
	w = doRequest(router, http.MethodPost, "/api/runs", headers)
	if w.Code != http.StatusConflict {
		t.Errorf("Expected status 409 while busy, got %d", w.Code)
	}
}
