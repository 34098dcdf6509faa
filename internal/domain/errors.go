package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by single-row lookups that match nothing.
var ErrNotFound = errors.New("not found")

// FetchError reports that one city's forecast could not be retrieved.
// It is isolated to that city and never aborts sibling fetches.
type FetchError struct {
	City string
	Err  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch forecast for %s: %v", e.City, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// StoreError reports a failed store transaction. The transaction has been
// rolled back when this error is returned.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// ValidationError reports a record value outside its domain bounds.
type ValidationError struct {
	Field  string
	Value  any
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %v: %s", e.Field, e.Value, e.Reason)
}

// RateLimitError reports that the text-generation capability refused the
// request because of rate limiting. It drives the summary backoff.
type RateLimitError struct {
	Err error
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited: %v", e.Err)
}

func (e *RateLimitError) Unwrap() error { return e.Err }

// GenerationError reports any other text-generation failure.
type GenerationError struct {
	Err error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generate summary: %v", e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// CleaningError reports the cleaning pass that failed. Passes after it were
// not executed; passes before it stay committed.
type CleaningError struct {
	Pass string
	Err  error
}

func (e *CleaningError) Error() string {
	return fmt.Sprintf("cleaning pass %s: %v", e.Pass, e.Err)
}

func (e *CleaningError) Unwrap() error { return e.Err }

// IsRateLimited reports whether err is, or wraps, a RateLimitError.
func IsRateLimited(err error) bool {
	var rl *RateLimitError
	return errors.As(err, &rl)
}
