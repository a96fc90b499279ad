package harvest

import (
	"github.com/lysyi3m/image-comb/app/feed"
)

// CollectedItem is one image written to durable storage. Subreddit is the
// source the item was read from; TargetSubr is the category it was filed under.
type CollectedItem struct {
	SubmissionID string        `json:"submission_id"`
	Filename     string        `json:"filename"`
	URL          string        `json:"url"`
	Subreddit    string        `json:"subreddit"`
	Date         string        `json:"date"`
	TargetSubr   feed.Category `json:"target_subr"`
}

// Record returns the metadata row fields in MetadataColumns order.
func (c CollectedItem) Record() []string {
	return []string{c.SubmissionID, c.Filename, c.URL, c.Subreddit, c.Date}
}

func (c CollectedItem) field(column string) string {
	switch column {
	case "submission_id":
		return c.SubmissionID
	case "filename":
		return c.Filename
	case "url":
		return c.URL
	case "subreddit":
		return c.Subreddit
	case "date":
		return c.Date
	default:
		return ""
	}
}
