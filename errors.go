package main

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel error kinds for the editing pipeline. Handlers map these to HTTP
// status codes; everything below is terminal for the call that produced it.
var (
	// ErrPrecondition covers invalid inputs rejected before any work is
	// attempted: a zero viewport, a missing source image.
	ErrPrecondition = errors.New("precondition failed")

	// ErrCalculation covers degenerate derived geometry, such as a
	// non-finite or non-positive rendered width.
	ErrCalculation = errors.New("geometry calculation failed")

	// ErrRenderContext means a drawing surface could not be built for the
	// requested output, e.g. non-positive target dimensions.
	ErrRenderContext = errors.New("rendering surface unavailable")

	// ErrDecode means the source bytes could not be loaded as an image.
	ErrDecode = errors.New("image decode failed")

	// ErrEncode means encoding produced an empty or degenerate buffer.
	ErrEncode = errors.New("image encode failed")

	// ErrBusy is returned when a finalize (or other long operation) is
	// requested while one is already in flight for the same session.
	ErrBusy = errors.New("another operation is in progress")
)

// RemoteErrorCategory classifies provider-side failures for user messaging.
type RemoteErrorCategory string

const (
	RemoteErrCredential    RemoteErrorCategory = "credential"
	RemoteErrBilling       RemoteErrorCategory = "billing"
	RemoteErrPermission    RemoteErrorCategory = "permission"
	RemoteErrTimeout       RemoteErrorCategory = "timeout"
	RemoteErrContentPolicy RemoteErrorCategory = "content_policy"
	RemoteErrUnknown       RemoteErrorCategory = "unknown"
)

// RemoteError is a failure propagated from the generative image service.
// The core never retries these automatically.
type RemoteError struct {
	Category RemoteErrorCategory
	Message  string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote operation failed (%s): %s", e.Category, e.Message)
}

// categorizeRemoteError pattern-matches a provider error message (and HTTP
// status, when known) into a user-facing category.
func categorizeRemoteError(status int, message string) *RemoteError {
	lower := strings.ToLower(message)
	category := RemoteErrUnknown
	switch {
	case status == 401 || strings.Contains(lower, "api key") || strings.Contains(lower, "credential") || strings.Contains(lower, "unauthenticated"):
		category = RemoteErrCredential
	case status == 429 || strings.Contains(lower, "quota") || strings.Contains(lower, "billing") || strings.Contains(lower, "resource exhausted"):
		category = RemoteErrBilling
	case status == 403 || strings.Contains(lower, "permission"):
		category = RemoteErrPermission
	case strings.Contains(lower, "deadline") || strings.Contains(lower, "timeout") || strings.Contains(lower, "timed out"):
		category = RemoteErrTimeout
	case strings.Contains(lower, "safety") || strings.Contains(lower, "blocked") || strings.Contains(lower, "prohibited"):
		category = RemoteErrContentPolicy
	}
	return &RemoteError{Category: category, Message: message}
}
