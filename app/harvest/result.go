package harvest

type FailureReason string

const (
	ReasonFetch   FailureReason = "fetch"
	ReasonWrite   FailureReason = "write"
	ReasonResolve FailureReason = "resolve"
)

// Result is the outcome of a per-item operation. Exactly one of Value and
// Err is meaningful.
type Result[T any] struct {
	Value  T
	Reason FailureReason
	Err    error
}

func Ok[T any](value T) Result[T] {
	return Result[T]{Value: value}
}

func Fail[T any](reason FailureReason, err error) Result[T] {
	return Result[T]{Reason: reason, Err: err}
}

func (r Result[T]) IsOk() bool {
	return r.Err == nil
}
