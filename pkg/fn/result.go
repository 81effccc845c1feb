// Package fn holds small generic helpers shared by the engine packages:
// a Result type, an ordered bounded-concurrency map, and span helpers.
package fn

// Result[T] carries either a value or an error.
type Result[T any] struct {
	val T
	err error
	ok  bool
}

// Ok creates a successful Result.
func Ok[T any](v T) Result[T] {
	return Result[T]{val: v, ok: true}
}

// Err creates a failed Result from an error.
func Err[T any](err error) Result[T] {
	return Result[T]{err: err}
}

// FromPair creates a Result from a (value, error) pair.
func FromPair[T any](v T, err error) Result[T] {
	if err != nil {
		return Err[T](err)
	}
	return Ok(v)
}

// IsOk returns true if the result is successful.
func (r Result[T]) IsOk() bool { return r.ok }

// IsErr returns true if the result is an error.
func (r Result[T]) IsErr() bool { return !r.ok }

// Unwrap returns the value and error.
func (r Result[T]) Unwrap() (T, error) { return r.val, r.err }

// Partition splits results into the values of the successes and the
// indexes of the failures, both in input order.
func Partition[T any](results []Result[T]) (vals []T, failed []int) {
	for i, r := range results {
		if r.ok {
			vals = append(vals, r.val)
		} else {
			failed = append(failed, i)
		}
	}
	return vals, failed
}
