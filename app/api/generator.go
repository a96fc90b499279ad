package api

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"html"
	"time"

	"github.com/lysyi3m/image-comb/app/feed"
	"github.com/lysyi3m/image-comb/app/harvest"
)

const DefaultGalleryLimit = 50

// Generator renders a category's collected images as an RSS 2.0 feed,
// newest first, one enclosure per item.
type Generator struct {
	baseURL  string
	version  string
	limit    int
	location *time.Location
}

func NewGenerator(baseURL, version string, limit int, location *time.Location) *Generator {
	if limit <= 0 {
		limit = DefaultGalleryLimit
	}
	if location == nil {
		location = time.Local
	}
	return &Generator{baseURL: baseURL, version: version, limit: limit, location: location}
}

func (g *Generator) Run(category feed.Category, items []harvest.CollectedItem) (string, error) {
	var buf bytes.Buffer

	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	buf.WriteString("\n")
	buf.WriteString(`<rss version="2.0" xmlns:atom="http://www.w3.org/2005/Atom">`)
	buf.WriteString("\n  <channel>\n")

	g.writeElement(&buf, "title", "Image Comb: "+string(category), 4)
	selfLink := fmt.Sprintf("%s/feeds/%s", g.baseURL, category)
	g.writeElement(&buf, "link", selfLink, 4)
	g.writeElement(&buf, "description", fmt.Sprintf("Images collected for %s", category), 4)
	buf.WriteString(fmt.Sprintf("    <atom:link href=\"%s\" rel=\"self\" type=\"application/rss+xml\" />\n",
		html.EscapeString(selfLink)))

	recent := g.recent(items)

	lastBuildDate := time.Now().In(g.location)
	if len(recent) > 0 {
		if published, ok := g.parseDate(recent[0].Date); ok {
			lastBuildDate = published
		}
	}
	g.writeElement(&buf, "lastBuildDate", lastBuildDate.Format(time.RFC1123Z), 4)
	g.writeElement(&buf, "generator", fmt.Sprintf("Image-Comb/%s", g.version), 4)

	for _, item := range recent {
		g.writeItem(&buf, item)
	}

	buf.WriteString("  </channel>\n</rss>")

	return buf.String(), nil
}

// recent returns up to limit items, newest first. Metadata rows are stored
// in collection order.
func (g *Generator) recent(items []harvest.CollectedItem) []harvest.CollectedItem {
	n := min(len(items), g.limit)
	recent := make([]harvest.CollectedItem, 0, n)
	for i := len(items) - 1; i >= 0 && len(recent) < n; i-- {
		recent = append(recent, items[i])
	}
	return recent
}

func (g *Generator) writeItem(buf *bytes.Buffer, item harvest.CollectedItem) {
	buf.WriteString("    <item>\n")

	if item.SubmissionID != "" {
		buf.WriteString("      <guid isPermaLink=\"false\">")
		xml.EscapeText(buf, []byte(item.SubmissionID))
		buf.WriteString("</guid>\n")
	}

	g.writeElement(buf, "title", item.Filename, 6)
	g.writeElement(buf, "link", item.URL, 6)
	g.writeElement(buf, "category", item.Subreddit, 6)

	if published, ok := g.parseDate(item.Date); ok {
		g.writeElement(buf, "pubDate", published.Format(time.RFC1123Z), 6)
	}

	if item.URL != "" {
		buf.WriteString(fmt.Sprintf("      <enclosure url=\"%s\" length=\"0\" type=\"%s\" />\n",
			html.EscapeString(item.URL),
			html.EscapeString(harvest.ContentType(harvest.FileExtension(item.URL)))))
	}

	buf.WriteString("    </item>\n")
}

func (g *Generator) parseDate(s string) (time.Time, bool) {
	t, err := time.ParseInLocation("2006-01-02T15:04:05.999999", s, g.location)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func (g *Generator) writeElement(buf *bytes.Buffer, tag, content string, indent int) {
	if content == "" {
		return
	}

	for i := 0; i < indent; i++ {
		buf.WriteByte(' ')
	}

	buf.WriteString("<")
	buf.WriteString(tag)
	buf.WriteString(">")
	xml.EscapeText(buf, []byte(content))
	buf.WriteString("</")
	buf.WriteString(tag)
	buf.WriteString(">\n")
}
