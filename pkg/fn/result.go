// Package fn holds the small generic helpers the pipelines are built from:
// a Result type, composable Stages and slice utilities.
package fn

// Result carries either a value or an error.
type Result[T any] struct {
	val T
	err error
}

// Ok creates a successful Result.
func Ok[T any](v T) Result[T] { return Result[T]{val: v} }

// Err creates a failed Result. A nil err is treated as success.
func Err[T any](err error) Result[T] { return Result[T]{err: err} }

// FromPair creates a Result from a (value, error) pair.
func FromPair[T any](v T, err error) Result[T] {
	if err != nil {
		return Err[T](err)
	}
	return Ok(v)
}

// IsOk reports whether the result holds a value.
func (r Result[T]) IsOk() bool { return r.err == nil }

// IsErr reports whether the result holds an error.
func (r Result[T]) IsErr() bool { return r.err != nil }

// Unwrap returns the value and error.
func (r Result[T]) Unwrap() (T, error) { return r.val, r.err }

// MapResult transforms the value of a successful Result.
func MapResult[T, U any](r Result[T], f func(T) U) Result[U] {
	if r.err != nil {
		return Err[U](r.err)
	}
	return Ok(f(r.val))
}
