package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

const testRSS = `<?xml version="1.0"?>
<rss version="2.0">
  <channel>
    <title>Gallery</title>
    <link>https://example.com</link>
    <description>Generated images</description>
    <item>
      <title>Lighthouse</title>
      <link>https://example.com/posts/1</link>
      <guid>post-1</guid>
      <pubDate>Mon, 03 Jul 2023 10:00:00 GMT</pubDate>
      <category>DALL·E 3</category>
      <enclosure url="https://cdn.example.com/1.png" length="1024" type="image/png"/>
    </item>
    <item>
      <title>Forest</title>
      <link>https://example.com/posts/2</link>
      <pubDate>Mon, 03 Jul 2023 09:00:00 GMT</pubDate>
      <category>DALL·E 2</category>
      <category>NSFW</category>
      <enclosure url="https://cdn.example.com/2.mp3" length="1024" type="audio/mpeg"/>
    </item>
    <item>
      <title>Untagged</title>
      <link>https://example.com/posts/3.jpg</link>
      <guid>post-3</guid>
    </item>
  </channel>
</rss>`

func TestRSSReader_Run(t *testing.T) {
	reader := NewRSSReader(nil, "", 0)

	items, err := reader.Run([]byte(testRSS))
	if err != nil {
		t.Fatal(err)
	}

	if len(items) != 3 {
		t.Fatalf("Expected 3 items, got %d", len(items))
	}

	first := items[0]
	if first.ID != "post-1" {
		t.Errorf("Expected ID 'post-1', got '%s'", first.ID)
	}
	if tag, _ := first.Tag.Value(); tag != "DALL·E 3" {
		t.Errorf("Expected tag 'DALL·E 3', got '%s'", tag)
	}
	if first.URL != "https://cdn.example.com/1.png" {
		t.Errorf("Expected enclosure URL, got '%s'", first.URL)
	}
	if first.NSFW {
		t.Error("Expected first item to be safe")
	}
	if first.CreatedUTC != 1688378400 {
		t.Errorf("Expected created 1688378400, got %v", first.CreatedUTC)
	}

	second := items[1]
	if second.ID != ItemID("https://example.com/posts/2") {
		t.Errorf("Expected ID to fall back to the link digest, got '%s'", second.ID)
	}
	if !second.NSFW {
		t.Error("Expected nsfw category to set the safety flag")
	}
	if second.URL != "https://example.com/posts/2" {
		t.Errorf("Expected non-image enclosure to be skipped, got '%s'", second.URL)
	}

	third := items[2]
	if _, ok := third.Tag.Value(); ok {
		t.Error("Expected item without categories to have no tag")
	}
	if third.CreatedUTC != 0 {
		t.Errorf("Expected zero created time, got %v", third.CreatedUTC)
	}
}

func TestItemID(t *testing.T) {
	if id := ItemID("post-1_A"); id != "post-1_A" {
		t.Errorf("Expected plain id to be kept, got '%s'", id)
	}

	for _, raw := range []string{"https://example.com/posts/42", "../../etc", "tag:example.com,2023:42", ""} {
		id := ItemID(raw)
		if len(id) != 16 {
			t.Errorf("Expected 16 char digest for %q, got '%s'", raw, id)
		}
		if strings.ContainsAny(id, "/.:") {
			t.Errorf("Expected path-safe id for %q, got '%s'", raw, id)
		}
		if id != ItemID(raw) {
			t.Errorf("Expected stable id for %q", raw)
		}
	}

	if ItemID("https://example.com/posts/1") == ItemID("https://example.com/posts/2") {
		t.Error("Expected distinct ids for distinct GUIDs")
	}
}

func TestRSSReader_RunInvalid(t *testing.T) {
	reader := NewRSSReader(nil, "", 0)

	if _, err := reader.Run([]byte("not a feed")); err == nil {
		t.Error("Expected error for invalid feed")
	}
}

func TestRSSReader_Read(t *testing.T) {
	var userAgent string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userAgent = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(testRSS))
	}))
	defer server.Close()

	reader := NewRSSReader(server.Client(), "image-comb/test", 0)
	source := NewSource(&Config{Name: "gallery", Reader: ReaderRSS, URL: server.URL, Tags: []string{"DALL·E 3"}})

	var ids []string
	for item, err := range reader.Read(context.Background(), source, 2) {
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, item.ID)
	}

	if len(ids) != 2 {
		t.Fatalf("Expected limit of 2 items, got %d", len(ids))
	}
	if ids[0] != "post-1" {
		t.Errorf("Expected feed order, got %v", ids)
	}
	if userAgent != "image-comb/test" {
		t.Errorf("Expected User-Agent 'image-comb/test', got '%s'", userAgent)
	}
}

func TestRSSReader_ReadHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	reader := NewRSSReader(server.Client(), "", 0)
	source := NewSource(&Config{Name: "gallery", Reader: ReaderRSS, URL: server.URL, Tags: []string{"x"}})

	calls := 0
	for _, err := range reader.Read(context.Background(), source, 10) {
		calls++
		if err == nil {
			t.Error("Expected error from failing feed")
		}
	}
	if calls != 1 {
		t.Errorf("Expected exactly one yielded error, got %d", calls)
	}
}
