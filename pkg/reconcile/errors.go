package reconcile

import (
	"errors"
	"fmt"

	"github.com/hostconform/hostconform/pkg/manifest"
)

// ErrorClass classifies a reconciliation error and determines whether the
// run can continue.
type ErrorClass string

const (
	// ErrorClassParse indicates a malformed manifest. Fatal: nothing is
	// diffed or planned from an unparseable manifest.
	ErrorClassParse ErrorClass = "parse"

	// ErrorClassObservation indicates a domain's state source was
	// unreachable. Non-fatal: the domain is skipped with a warning.
	ErrorClassObservation ErrorClass = "observation"

	// ErrorClassApply indicates a plan step could not be applied.
	// Non-fatal to the run, but raises severity to error.
	ErrorClassApply ErrorClass = "apply"

	// ErrorClassExclusion indicates a malformed exclusion pattern.
	// Fatal: silently ignoring a bad exclusion could let a destructive
	// step through.
	ErrorClassExclusion ErrorClass = "exclusion"
)

// Error is a classified reconciliation error with optional domain and step
// context.
type Error struct {
	// Class is the error classification.
	Class ErrorClass `json:"class"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// Domain is the domain involved, if any.
	Domain manifest.Domain `json:"domain,omitempty"`

	// Step is the composite key of the step involved, if any.
	Step string `json:"step,omitempty"`

	// Err is the underlying error.
	Err error `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Class, e.Message)
	if e.Domain != "" {
		msg += fmt.Sprintf(" (domain=%s)", e.Domain)
	}
	if e.Step != "" {
		msg += fmt.Sprintf(" (step=%s)", e.Step)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// WithDomain adds domain context to the error.
func (e *Error) WithDomain(d manifest.Domain) *Error {
	e.Domain = d
	return e
}

// WithStep adds step context to the error.
func (e *Error) WithStep(key string) *Error {
	e.Step = key
	return e
}

// NewParseError wraps a manifest parse failure.
func NewParseError(message string, err error) *Error {
	return &Error{Class: ErrorClassParse, Message: message, Err: err}
}

// NewObservationError wraps a failed domain observation.
func NewObservationError(message string, err error) *Error {
	return &Error{Class: ErrorClassObservation, Message: message, Err: err}
}

// NewApplyError wraps a failed apply step.
func NewApplyError(message string, err error) *Error {
	return &Error{Class: ErrorClassApply, Message: message, Err: err}
}

// NewExclusionError wraps an invalid exclusion pattern.
func NewExclusionError(message string, err error) *Error {
	return &Error{Class: ErrorClassExclusion, Message: message, Err: err}
}

// IsFatal reports whether the error must abort the run before a report can
// be produced. Parse and exclusion errors are fatal; observation and apply
// errors are collected into the report instead.
func IsFatal(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Class == ErrorClassParse || e.Class == ErrorClassExclusion
	}
	return false
}
