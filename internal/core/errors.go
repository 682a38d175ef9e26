package core

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by stores when a record does not exist.
var ErrNotFound = errors.New("record not found")

// UnretryableError marks a failure that will not go away by trying again, such as a
// broken reference between records or an unknown enum value. Deliveries failing with
// it are marked as errored immediately.
type UnretryableError struct {
	Err error
}

func (e *UnretryableError) Error() string {
	return e.Err.Error()
}

func (e *UnretryableError) Unwrap() error {
	return e.Err
}

// Unretryable wraps err as an UnretryableError.
func Unretryable(err error) error {
	if err == nil {
		return nil
	}
	return &UnretryableError{Err: err}
}

// Invariant returns an UnretryableError for a broken data invariant.
func Invariant(format string, args ...any) error {
	return &UnretryableError{Err: fmt.Errorf("invariant: "+format, args...)}
}

// RetryableError marks a transient failure; the delivery is requeued with backoff.
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string {
	return e.Err.Error()
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// Retryable wraps err as a RetryableError.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &RetryableError{Err: err}
}

// IsUnretryable reports whether err carries an UnretryableError anywhere in its chain.
func IsUnretryable(err error) bool {
	var target *UnretryableError
	return errors.As(err, &target)
}

// IsRetryable reports whether err carries a RetryableError anywhere in its chain.
func IsRetryable(err error) bool {
	var target *RetryableError
	return errors.As(err, &target)
}
