package domain

import (
	"errors"
	"fmt"
)

// Common domain errors surfaced by the judging engine. Failures local to
// one backend or one judge are absorbed as data; only errors that make
// the overall operation meaningless use these sentinels.
var (
	// ErrEmptyPrompt indicates that a request carried no prompt text.
	ErrEmptyPrompt = errors.New("prompt cannot be empty")

	// ErrTooFewResponses indicates that fewer than two usable candidate
	// responses were available for judging.
	ErrTooFewResponses = errors.New("judging requires at least two usable responses")

	// ErrNoJudges indicates that no judge backend could be resolved for
	// the requested mode.
	ErrNoJudges = errors.New("no judge backends resolved for mode")

	// ErrAllJudgesFailed indicates that every resolved judge failed to
	// produce a parseable verdict. This is distinct from judges merely
	// disagreeing: the surviving-votes set is empty.
	ErrAllJudgesFailed = errors.New("all judges failed to produce a verdict")

	// ErrUnknownMode indicates a judging mode outside the defined set.
	ErrUnknownMode = errors.New("unknown judging mode")

	// ErrUnknownBackend indicates a backend identifier with no
	// configured client.
	ErrUnknownBackend = errors.New("unknown backend")

	// ErrDuplicateBackend indicates a backend identifier repeated
	// within one request.
	ErrDuplicateBackend = errors.New("duplicate backend identifier")
)

// JudgingError wraps a judging failure with the mode and pipeline stage
// where it occurred.
type JudgingError struct {
	// Mode is the judging mode of the failed request.
	Mode JudgingMode

	// Stage names the pipeline stage that failed, e.g. "resolve" or
	// "aggregate".
	Stage string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface for JudgingError.
func (e *JudgingError) Error() string {
	return fmt.Sprintf("judging failed: mode=%s, stage=%s, err=%v", e.Mode, e.Stage, e.Err)
}

// Unwrap returns the underlying error.
func (e *JudgingError) Unwrap() error { return e.Err }

// NewJudgingError creates a JudgingError for the given mode and stage.
func NewJudgingError(mode JudgingMode, stage string, err error) *JudgingError {
	return &JudgingError{Mode: mode, Stage: stage, Err: err}
}
