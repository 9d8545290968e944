package cli

import (
	"fmt"
)

// UsageError signals that the user invoked a [Command] incorrectly, and should be shown usage information.
// Match it with errors.Is(err, &UsageError{}).
type UsageError struct {
	wrapped error
}

func (e *UsageError) Error() string {
	if e.wrapped == nil {
		return "usage error"
	}
	return "usage error: " + e.wrapped.Error()
}

func (e *UsageError) Is(err error) bool {
	_, ok := err.(*UsageError)
	return ok
}

func (e *UsageError) Unwrap() error {
	return e.wrapped
}

// NewUsageError creates a [UsageError] wrapping the result of [fmt.Errorf].
func NewUsageError(format string, args ...any) error {
	return &UsageError{wrapped: fmt.Errorf(format, args...)}
}

// ExactArgs returns a [UsageError] unless exactly n positional arguments were given.
func ExactArgs(args []string, n int) error {
	if len(args) != n {
		return NewUsageError("expected %d argument(s), got %d", n, len(args))
	}
	return nil
}

// MustGet is used with a [flag.FlagSet] getter to panic if the flag is not defined, or is not the right type.
// The developer usually knows whether a get call will fail, so this avoids error handling that can't be reached.
func MustGet[T any](val T, err error) T {
	if err != nil {
		panic(err)
	}
	return val
}
