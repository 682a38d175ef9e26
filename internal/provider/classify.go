// Package provider reports build notifications to external status services.
// Each adapter turns a delivery into one provider call and hands back an error
// that Classify sorts into the delivery outcome.
package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	gh "github.com/google/go-github/v73/github"
	"github.com/xanzy/go-gitlab"

	"github.com/sevigo/pixel-warden/internal/core"
)

// Class is the outcome of one provider call.
type Class int

const (
	ClassSuccess Class = iota
	ClassBenign
	ClassRetryable
	ClassFatal
)

func (c Class) String() string {
	switch c {
	case ClassSuccess:
		return "success"
	case ClassBenign:
		return "benign"
	case ClassRetryable:
		return "retryable"
	case ClassFatal:
		return "fatal"
	default:
		return fmt.Sprintf("class(%d)", int(c))
	}
}

// ErrBenign marks provider failures that must not fail the delivery, such as a
// status posted on a commit the provider no longer knows.
var ErrBenign = errors.New("benign provider condition")

// Benign wraps err so that Classify reports it as ClassBenign.
func Benign(err error) error {
	return fmt.Errorf("%w: %w", ErrBenign, err)
}

// HTTPError is a non-2xx answer of a provider API called without an SDK.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}

// Classify decides what a provider error means for the delivery. Unknown errors are
// treated as transient so they get a bounded number of retries.
func Classify(err error) Class {
	if err == nil {
		return ClassSuccess
	}
	if errors.Is(err, ErrBenign) {
		return ClassBenign
	}
	if core.IsUnretryable(err) {
		return ClassFatal
	}
	if core.IsRetryable(err) {
		return ClassRetryable
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return ClassRetryable
	}

	var rateErr *gh.RateLimitError
	var abuseErr *gh.AbuseRateLimitError
	if errors.As(err, &rateErr) || errors.As(err, &abuseErr) {
		return ClassRetryable
	}

	if code, ok := statusCode(err); ok {
		return classifyStatus(code)
	}

	// network failures and anything unrecognized
	return ClassRetryable
}

func classifyStatus(code int) Class {
	switch {
	case code == http.StatusTooManyRequests, code == http.StatusRequestTimeout, code >= 500:
		return ClassRetryable
	case code >= 400:
		return ClassFatal
	default:
		return ClassRetryable
	}
}

func statusCode(err error) (int, bool) {
	var ghErr *gh.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil {
		return ghErr.Response.StatusCode, true
	}
	var glErr *gitlab.ErrorResponse
	if errors.As(err, &glErr) && glErr.Response != nil {
		return glErr.Response.StatusCode, true
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode, true
	}
	return 0, false
}
