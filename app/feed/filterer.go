package feed

import (
	"net/url"
	"strings"
)

var DefaultImageExtensions = []string{".jpg", ".jpeg", ".png"}

type Stage int

const (
	StageTag Stage = iota + 1
	StageContentType
	StageSafety
	StageResolve
	StageNovelty
)

func (s Stage) String() string {
	switch s {
	case StageTag:
		return "tag"
	case StageContentType:
		return "content_type"
	case StageSafety:
		return "safety"
	case StageResolve:
		return "resolve"
	case StageNovelty:
		return "novelty"
	default:
		return "accepted"
	}
}

// Seen reports whether an item id is already collected for a category.
type Seen interface {
	Seen(category Category, id string) bool
}

// Verdict is the outcome of running one item through the Filterer.
// RejectedAt is zero for accepted items; Err is set only for StageResolve.
type Verdict struct {
	Accepted   bool
	RejectedAt Stage
	Category   Category
	Err        error
}

type Filterer struct {
	extensions []string
}

func NewFilterer(extensions []string) *Filterer {
	if len(extensions) == 0 {
		extensions = DefaultImageExtensions
	}
	lowered := make([]string, len(extensions))
	for i, ext := range extensions {
		lowered[i] = strings.ToLower(ext)
	}
	return &Filterer{extensions: lowered}
}

// Check applies the stages in order and stops at the first failure.
// funnel.Checked is incremented for every item; every other counter only
// when its stage passes.
func (f *Filterer) Check(funnel *Funnel, item CandidateItem, source *Source, seen Seen) Verdict {
	funnel.Checked++

	if !source.IsRelevant(item.Tag) {
		return Verdict{RejectedAt: StageTag}
	}
	funnel.PassedTag++

	if !f.IsImageURL(item.URL) {
		return Verdict{RejectedAt: StageContentType}
	}
	funnel.PassedContentType++

	if item.NSFW {
		return Verdict{RejectedAt: StageSafety}
	}
	funnel.PassedSafety++

	tag, _ := item.Tag.Value()
	category, err := source.Resolve(tag)
	if err != nil {
		return Verdict{RejectedAt: StageResolve, Err: err}
	}

	if seen != nil && seen.Seen(category, item.ID) {
		return Verdict{RejectedAt: StageNovelty, Category: category}
	}

	return Verdict{Accepted: true, Category: category}
}

// IsImageURL matches the supported extensions against the URL path only.
func (f *Filterer) IsImageURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}

	p := strings.ToLower(u.Path)
	for _, ext := range f.extensions {
		if strings.HasSuffix(p, ext) {
			return true
		}
	}
	return false
}
