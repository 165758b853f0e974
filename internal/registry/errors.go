package registry

import (
	"errors"
	"fmt"
)

// SessionErrorKind classifies failures of the automated browser session.
type SessionErrorKind string

const (
	// KindLaunchFailed: the browser process could not be started.
	KindLaunchFailed SessionErrorKind = "launch_failed"

	// KindNavigationTimeout: the entry page did not settle within the
	// navigation timeout.
	KindNavigationTimeout SessionErrorKind = "navigation_timeout"

	// KindNavigationFailed: the entry page could not be loaded.
	KindNavigationFailed SessionErrorKind = "navigation_failed"

	// KindInteractionFailed: typing, clicking or reading the page failed.
	KindInteractionFailed SessionErrorKind = "interaction_failed"

	// KindCancelled: the caller abandoned the attempt.
	KindCancelled SessionErrorKind = "cancelled"

	// KindUnavailable: the circuit breaker is open.
	KindUnavailable SessionErrorKind = "unavailable"
)

// SessionError is a structural failure of the session, distinct from a
// negative answer from the registry.
type SessionError struct {
	Kind SessionErrorKind
	Op   string
	Err  error
}

func (e *SessionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("registry session %s [%s]: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("registry session %s [%s]", e.Op, e.Kind)
}

func (e *SessionError) Unwrap() error {
	return e.Err
}

// Retryable reports whether a fresh session may succeed. Only failures
// before the search is submitted qualify.
func (e *SessionError) Retryable() bool {
	switch e.Kind {
	case KindLaunchFailed, KindNavigationTimeout, KindNavigationFailed:
		return true
	default:
		return false
	}
}

// ExtractionStage names where record extraction failed.
type ExtractionStage string

const (
	StageResultRow ExtractionStage = "result_row"
	StageDetail    ExtractionStage = "detail"
)

// ExtractionError means the page rendered but the expected structure was
// missing or unreadable.
type ExtractionError struct {
	Stage ExtractionStage
	Err   error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("registry extraction failed at %s: %v", e.Stage, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether err is a retryable SessionError.
func IsRetryable(err error) bool {
	var se *SessionError
	return errors.As(err, &se) && se.Retryable()
}

// FailureStage returns a short stage label for a lookup error: the
// extraction stage, the session error kind, or "unknown".
func FailureStage(err error) string {
	var ee *ExtractionError
	if errors.As(err, &ee) {
		return string(ee.Stage)
	}
	var se *SessionError
	if errors.As(err, &se) {
		return string(se.Kind)
	}
	return "unknown"
}

var (
	errMissingDate = errors.New("license validity field not present in detail panel")
	errUnparseable = errors.New("license validity date not recognised")
)
