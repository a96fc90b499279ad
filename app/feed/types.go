package feed

import (
	"errors"

	"golang.org/x/text/unicode/norm"
)

var ErrUnmappedTag = errors.New("tag has no category mapping")

const (
	ReaderReddit = "reddit"
	ReaderRSS    = "rss"
)

// Category is the output partition an item is filed under.
type Category string

// Tag is a community-assigned label that may be absent.
type Tag struct {
	value   string
	present bool
}

// TagOf returns an absent Tag for the empty string.
func TagOf(s string) Tag {
	if s == "" {
		return Tag{}
	}
	return Tag{value: NormalizeTag(s), present: true}
}

func NoTag() Tag {
	return Tag{}
}

func (t Tag) Value() (string, bool) {
	return t.value, t.present
}

func (t Tag) String() string {
	if !t.present {
		return "<none>"
	}
	return t.value
}

// NormalizeTag folds a tag to NFC so that canonically equivalent
// spellings ("DALL·E" composed or decomposed) compare equal.
func NormalizeTag(s string) string {
	return norm.NFC.String(s)
}

// CandidateItem is one post yielded by a Reader.
type CandidateItem struct {
	ID         string
	Tag        Tag
	URL        string
	NSFW       bool
	CreatedUTC float64 // seconds since epoch
}

// Funnel counts candidates surviving each filter stage.
type Funnel struct {
	Checked           int `json:"checked"`
	PassedTag         int `json:"passed_flair"`
	PassedContentType int `json:"passed_image"`
	PassedSafety      int `json:"passed_nsfw"`
}

// Configuration types

type Config struct {
	Name     string            `yaml:"-" validate:"required"` // derived from filename (without .yml extension)
	Reader   string            `yaml:"reader" validate:"required,oneof=reddit rss"`
	URL      string            `yaml:"url" validate:"omitempty,url"`
	Tags     []string          `yaml:"tags" validate:"required,min=1,dive,required"`
	Redirect map[string]string `yaml:"redirect" validate:"omitempty,dive,keys,required,endkeys,required"`
	Settings ConfigSettings    `yaml:"settings"`
}

type ConfigSettings struct {
	Enabled bool `yaml:"enabled"`
	Limit   int  `yaml:"limit" validate:"gte=0"`
	Order   int  `yaml:"order"`
}
