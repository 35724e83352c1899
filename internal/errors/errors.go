package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Error codes for categorizing errors
const (
	ErrUsage     = "USAGE"     // malformed arguments, caught before any network activity
	ErrConfig    = "CONFIG"    // config file problems
	ErrSSH       = "SSH"       // host unreachable or authentication failed
	ErrBootstrap = "BOOTSTRAP" // remote key-pair creation failed
	ErrKeyRead   = "KEYREAD"   // empty or failed public-key retrieval
	ErrInstall   = "INSTALL"   // remote-side failure writing authorized_keys
	ErrExec      = "EXEC"      // remote or local command execution failed
)

// Error represents a structured error with code, message, suggestion, and optional cause.
// Rendered as:
//
//	✗ <What failed>
//
//	  <Why it failed - technical details>
//
//	  <How to fix it - actionable steps>
type Error struct {
	Code       string
	Message    string
	Suggestion string
	Cause      error
}

// New creates a new structured error with the given code, message, and suggestion.
func New(code, message, suggestion string) *Error {
	return &Error{
		Code:       code,
		Message:    message,
		Suggestion: suggestion,
	}
}

// Wrap wraps an existing error with a message, defaulting to ErrSSH code.
func Wrap(err error, message string) *Error {
	return &Error{
		Code:    ErrSSH,
		Message: message,
		Cause:   err,
	}
}

// WrapWithCode wraps an existing error with a specific code, message, and suggestion.
func WrapWithCode(err error, code, message, suggestion string) *Error {
	return &Error{
		Code:       code,
		Message:    message,
		Suggestion: suggestion,
		Cause:      err,
	}
}

// NewHostError creates an error that names the offending host and phase so the
// operator can see exactly where a run stopped.
func NewHostError(code, host, phase, message, suggestion string) *Error {
	return &Error{
		Code:       code,
		Message:    fmt.Sprintf("%s (host %s, %s)", message, host, phase),
		Suggestion: suggestion,
	}
}

// Error implements the error interface with formatted output.
func (e *Error) Error() string {
	var b strings.Builder

	// First line: failure symbol + main message
	b.WriteString(fmt.Sprintf("✗ %s\n", e.Message))

	// Include cause if present (why it failed)
	if e.Cause != nil {
		b.WriteString(fmt.Sprintf("\n  %s\n", e.Cause.Error()))
	}

	// Include suggestion if present (how to fix)
	if e.Suggestion != "" {
		b.WriteString(fmt.Sprintf("\n  %s\n", e.Suggestion))
	}

	return b.String()
}

// Unwrap returns the underlying cause for use with errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// IsCode checks if an error is a structured Error with the given code.
func IsCode(err error, code string) bool {
	if err == nil {
		return false
	}
	var npErr *Error
	if errors.As(err, &npErr) {
		return npErr.Code == code
	}
	return false
}
