package api

import (
	"encoding/xml"
	"strings"
	"testing"
	"time"

	"github.com/lysyi3m/image-comb/app/harvest"
)

func TestGenerator_Run(t *testing.T) {
	generator := NewGenerator("https://img.example.com", "1.2.3", 2, time.UTC)

	items := []harvest.CollectedItem{
		{SubmissionID: "a", Filename: "img_dalle2_a.png", URL: "https://i.redd.it/a.png", Subreddit: "dalle2", Date: "2025-01-01T10:00:00"},
		{SubmissionID: "b", Filename: "img_dalle2_b.png", URL: "https://i.redd.it/b.png", Subreddit: "dalle2", Date: "2025-01-02T10:00:00"},
		{SubmissionID: "c", Filename: "img_dalle2_c.png", URL: "https://i.redd.it/c.png?a=1&b=2", Subreddit: "aiArt", Date: "2025-01-03T10:00:00.250000"},
	}

	rss, err := generator.Run("dalle2", items)
	if err != nil {
		t.Fatal(err)
	}

	var parsed struct {
		Channel struct {
			Title         string `xml:"title"`
			LastBuildDate string `xml:"lastBuildDate"`
			Generator     string `xml:"generator"`
			Items         []struct {
				GUID      string `xml:"guid"`
				PubDate   string `xml:"pubDate"`
				Enclosure struct {
					URL  string `xml:"url,attr"`
					Type string `xml:"type,attr"`
				} `xml:"enclosure"`
			} `xml:"item"`
		} `xml:"channel"`
	}
	if err := xml.Unmarshal([]byte(rss), &parsed); err != nil {
		t.Fatalf("Expected valid XML, got %v\n%s", err, rss)
	}

	if parsed.Channel.Title != "Image Comb: dalle2" {
		t.Errorf("Expected title 'Image Comb: dalle2', got '%s'", parsed.Channel.Title)
	}
	if parsed.Channel.Generator != "Image-Comb/1.2.3" {
		t.Errorf("Expected generator 'Image-Comb/1.2.3', got '%s'", parsed.Channel.Generator)
	}
	if len(parsed.Channel.Items) != 2 {
		t.Fatalf("Expected limit of 2 items, got %d", len(parsed.Channel.Items))
	}
	if parsed.Channel.Items[0].GUID != "c" || parsed.Channel.Items[1].GUID != "b" {
		t.Errorf("Expected newest first [c b], got [%s %s]", parsed.Channel.Items[0].GUID, parsed.Channel.Items[1].GUID)
	}
	if parsed.Channel.Items[0].Enclosure.URL != "https://i.redd.it/c.png?a=1&b=2" {
		t.Errorf("Expected unescaped enclosure URL after parsing, got '%s'", parsed.Channel.Items[0].Enclosure.URL)
	}
	if parsed.Channel.Items[0].Enclosure.Type != "image/png" {
		t.Errorf("Expected 'image/png', got '%s'", parsed.Channel.Items[0].Enclosure.Type)
	}
	if !strings.HasPrefix(parsed.Channel.LastBuildDate, "Fri, 03 Jan 2025 10:00:00") {
		t.Errorf("Expected lastBuildDate from newest item, got '%s'", parsed.Channel.LastBuildDate)
	}
}

func TestGenerator_RunEmpty(t *testing.T) {
	rss, err := NewGenerator("", "dev", 0, time.UTC).Run("midjourney", nil)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(rss, "<item>") {
		t.Error("Expected no items")
	}
	if !strings.HasSuffix(rss, "</rss>") {
		t.Error("Expected closed rss document")
	}
}
