// Package shared holds the error taxonomy and domain events used by every
// engine package.
package shared

import (
	"errors"
	"fmt"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	// Lookup errors
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")

	// Caller input errors
	ErrValidation    = errors.New("validation error")
	ErrInvalidInput  = errors.New("invalid input")
	ErrNegativeValue = errors.New("value cannot be negative")

	// Engine errors
	ErrConfiguration     = errors.New("invalid configuration")
	ErrInvalidSubmission = errors.New("invalid submission")

	// Concurrency errors
	ErrConcurrentModification = errors.New("concurrent modification detected")

	// Dependency errors
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrTimeout            = errors.New("operation timeout")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "quiz", "progress", "risk"
	Op      string // Operation that failed, e.g., "Grade", "Assess"
	Kind    error  // Base error type for errors.Is() checking
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// NewConfigurationError reports invalid weights, thresholds or catalog data
// supplied at construction time. It is fatal and never retried.
func NewConfigurationError(domain, op, message string) *DomainError {
	return NewDomainError(domain, op, ErrConfiguration, message)
}

// NewValidationError reports malformed caller input.
func NewValidationError(domain, op, message string) *DomainError {
	return NewDomainError(domain, op, ErrValidation, message)
}

// Quiz domain errors
var (
	ErrQuizNotFound        = NewDomainError("quiz", "Find", ErrNotFound, "quiz not found")
	ErrAnswerCountMismatch = NewDomainError("quiz", "Grade", ErrInvalidSubmission, "invalid number of answers")
)

// Progress domain errors
var (
	ErrLearnerNotFound     = NewDomainError("progress", "Find", ErrNotFound, "learner not found")
	ErrUnknownActivityKind = NewDomainError("progress", "RecordActivity", ErrInvalidInput, "unknown activity kind")
	ErrActivityAlreadyDone = NewDomainError("progress", "RecordActivity", ErrAlreadyExists, "activity already recorded")
	ErrStaleLearnerVersion = NewDomainError("progress", "Save", ErrConcurrentModification, "learner state was modified concurrently")
)

// Achievement domain errors
var (
	ErrAchievementNotFound = NewDomainError("achievement", "Find", ErrNotFound, "achievement not found")
)

// Risk domain errors
var (
	ErrAssessmentNotFound = NewDomainError("risk", "Find", ErrNotFound, "risk assessment not found")
	ErrUnknownSubjectType = NewDomainError("risk", "Assess", ErrInvalidInput, "unknown risk subject type")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists checks if the error is an "already exists" error.
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsValidation reports malformed caller input of any kind.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrNegativeValue)
}

// IsConfiguration checks if the error is a configuration error.
func IsConfiguration(err error) bool {
	return errors.Is(err, ErrConfiguration)
}

// IsInvalidSubmission checks if the error rejects a quiz submission.
func IsInvalidSubmission(err error) bool {
	return errors.Is(err, ErrInvalidSubmission)
}

// IsRetryable checks if the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrConcurrentModification)
}
