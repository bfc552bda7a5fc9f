// Package errors defines the stable error code system for cp2kit.
package errors

import (
	"errors"
	"fmt"
	"io"
)

// Code is a stable error code string.
type Code string

// Error codes. Stable public contract: scripts and CI match on these.
const (
	EUsage Code = "E_USAGE"

	// Launch error codes
	EEngineNotFound Code = "E_ENGINE_NOT_FOUND" // engine binary not on PATH / not executable
	EEngineFailed   Code = "E_ENGINE_FAILED"    // engine process ran but exited non-zero
	EStaleArtifacts Code = "E_STALE_ARTIFACTS"  // prior run's output files would be clobbered

	// Plan/gate error codes
	EInvalidPlan     Code = "E_INVALID_PLAN"     // run plan fails structural validation
	EMissingArtifact Code = "E_MISSING_ARTIFACT" // restart precondition unmet before spawn

	// Evaluation error codes
	EParse           Code = "E_PARSE"            // log absent, empty, or unrecognizable
	EThresholdFailed Code = "E_THRESHOLD_FAILED" // run evaluated but one or more thresholds failed

	// Config error codes
	EInvalidConfig Code = "E_INVALID_CONFIG" // cp2kit.yaml invalid or unknown profile

	// Infrastructure error codes
	ECancelled     Code = "E_CANCELLED"      // run interrupted by the user
	EPersistFailed Code = "E_PERSIST_FAILED" // report/snapshot write failed
	EInternal      Code = "E_INTERNAL"
)

// KitError is the standard error type for cp2kit errors.
type KitError struct {
	Code    Code
	Msg     string
	Cause   error
	Details map[string]string // optional structured context
}

// Error returns the stable error format: "CODE: message".
func (e *KitError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *KitError) Unwrap() error {
	return e.Cause
}

// ExitCodeError wraps an error with an explicit process exit code.
type ExitCodeError struct {
	Err  error
	Code int
}

func (e *ExitCodeError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("exit code %d", e.Code)
}

func (e *ExitCodeError) Unwrap() error {
	return e.Err
}

func (e *ExitCodeError) ExitCode() int {
	return e.Code
}

// WithExitCode wraps err with a specific process exit code.
func WithExitCode(err error, code int) error {
	return &ExitCodeError{Err: err, Code: code}
}

// New creates a new KitError with the given code and message.
func New(code Code, msg string) error {
	return &KitError{Code: code, Msg: msg}
}

// NewWithDetails creates a new KitError with code, message, and details.
// The details map is copied; later caller mutations do not leak in.
func NewWithDetails(code Code, msg string, details map[string]string) error {
	return &KitError{Code: code, Msg: msg, Details: copyDetails(details)}
}

// Wrap creates a new KitError wrapping an underlying error.
func Wrap(code Code, msg string, err error) error {
	return &KitError{Code: code, Msg: msg, Cause: err}
}

// WrapWithDetails creates a new KitError wrapping an underlying error with details.
func WrapWithDetails(code Code, msg string, err error, details map[string]string) error {
	return &KitError{Code: code, Msg: msg, Cause: err, Details: copyDetails(details)}
}

// GetCode extracts the error code from an error, or empty string if not a KitError.
func GetCode(err error) Code {
	var ke *KitError
	if errors.As(err, &ke) {
		return ke.Code
	}
	return ""
}

// AsKitError returns (*KitError, true) if err is or wraps a KitError.
func AsKitError(err error) (*KitError, bool) {
	var ke *KitError
	if errors.As(err, &ke) {
		return ke, true
	}
	return nil, false
}

// copyDetails returns a copy of the details map, or nil if empty/nil.
func copyDetails(details map[string]string) map[string]string {
	if len(details) == 0 {
		return nil
	}
	cp := make(map[string]string, len(details))
	for k, v := range details {
		cp[k] = v
	}
	return cp
}

// ExitCode returns the appropriate exit code for an error.
// Returns 0 if err is nil, 2 for E_USAGE, 1 for all other errors.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	if ec, ok := err.(interface{ ExitCode() int }); ok {
		return ec.ExitCode()
	}
	if GetCode(err) == EUsage {
		return 2
	}
	return 1
}

// Print writes the error to w in the stable stderr format:
//
//	error_code: <CODE>
//	<message>
func Print(w io.Writer, err error) {
	if err == nil {
		return
	}
	var ke *KitError
	if errors.As(err, &ke) {
		_, _ = fmt.Fprintf(w, "error_code: %s\n", ke.Code)
		_, _ = fmt.Fprintln(w, ke.Msg)
	} else {
		_, _ = fmt.Fprintln(w, err.Error())
	}
}
