// Package errs contains the error taxonomy for the coveralls client.
package errs

import (
	"fmt"
)

// Err represents structure of a custom error
type Err struct {
	Code    string
	Message string
	URL     string
}

func (e Err) Error() string {
	return fmt.Sprintf("%s : %s ", e.Code, e.Message)
}

// Error represents a json-encoded API error.
type Error struct {
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return e.Message
}

// New returns a new error message.
func New(text string) error {
	return &Error{Message: text}
}

// EncodingError is returned when a source file cannot be decoded as UTF-8
// text. The file is skipped, the run continues.
type EncodingError struct {
	Path string
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("file %s is not valid UTF-8 text", e.Path)
}

// SubmissionError is returned when the coveralls API rejects a report.
type SubmissionError struct {
	StatusCode int
	Body       string
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("coveralls rejected the report with status %d: %s", e.StatusCode, e.Body)
}

// SerializationError signals a broken internal invariant while marshaling the
// payload. It is a programming error, not something the user can recover from.
type SerializationError struct {
	Reason string
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("could not serialize coverage payload: %s", e.Reason)
}

// ErrInvalidConfig returns an error for an invalid configuration value.
func ErrInvalidConfig(errMsg string) error {
	return New(errMsg)
}

// ErrMissingToken returns the configuration error for a missing repo token.
// The github hint mirrors the coveralls docs for actions workflows.
func ErrMissingToken(onGithubActions bool) error {
	if onGithubActions {
		return New(`running on Github Actions but GITHUB_TOKEN is not set. ` +
			`Add "env: GITHUB_TOKEN: ${{ secrets.GITHUB_TOKEN }}" to your step config`)
	}
	return New("no repo token found. Provide repo_token in .coveralls.yml or set the COVERALLS_REPO_TOKEN env var")
}

var (
	// ErrInvalidLoggerInstance is returned when logger instance is not supported.
	ErrInvalidLoggerInstance = New("Invalid logger instance")
	// ErrNoCoverageData is returned when no source file survives filtering.
	// An empty report is never submitted.
	ErrNoCoverageData = New("no coverage data to report")
	// ErrParallelFinish is returned when the parallel done webhook does not
	// confirm completion.
	ErrParallelFinish = New("parallel finish failed")
	// GenericErrRemark returns a generic error message for user facing errors.
	GenericErrRemark = New("Unexpected error")
)
