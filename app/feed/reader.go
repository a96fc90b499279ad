package feed

import (
	"context"
	"fmt"
	"iter"
)

// Reader yields a source's posts newest first. The sequence is lazy and
// stops after limit items, on the first error (yielded once), or when the
// consumer stops ranging.
type Reader interface {
	Read(ctx context.Context, source *Source, limit int) iter.Seq2[CandidateItem, error]
}

// Readers dispatches on Source.Reader.
type Readers map[string]Reader

func (r Readers) Read(ctx context.Context, source *Source, limit int) iter.Seq2[CandidateItem, error] {
	reader, ok := r[source.Reader]
	if !ok {
		return func(yield func(CandidateItem, error) bool) {
			yield(CandidateItem{}, fmt.Errorf("no reader registered for kind %q", source.Reader))
		}
	}
	return reader.Read(ctx, source, limit)
}
