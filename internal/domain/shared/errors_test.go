package shared

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainError_Matching(t *testing.T) {
	cause := errors.New("connection reset")
	err := WrapError("risk", "Save", ErrServiceUnavailable, "history unavailable", cause)

	assert.ErrorIs(t, err, ErrServiceUnavailable)
	assert.ErrorIs(t, err, cause)
	assert.True(t, IsRetryable(err))
	assert.False(t, IsNotFound(err))
	assert.Equal(t, "risk.Save: history unavailable: connection reset", err.Error())

	assert.Equal(t, "quiz.Find: quiz not found", ErrQuizNotFound.Error())
}

func TestPredicates(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		check func(error) bool
	}{
		{"quiz not found", ErrQuizNotFound, IsNotFound},
		{"learner not found", ErrLearnerNotFound, IsNotFound},
		{"duplicate activity", ErrActivityAlreadyDone, IsAlreadyExists},
		{"answer count", ErrAnswerCountMismatch, IsInvalidSubmission},
		{"unknown kind", ErrUnknownActivityKind, IsValidation},
		{"negative amount", WrapError("risk", "Validate", ErrValidation, "bad amount", ErrNegativeValue), IsValidation},
		{"configuration", NewConfigurationError("scoring", "New", "weights"), IsConfiguration},
		{"stale version", ErrStaleLearnerVersion, IsRetryable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.check(tt.err))
		})
	}

	assert.False(t, IsValidation(ErrQuizNotFound))
	assert.False(t, IsRetryable(NewValidationError("risk", "Assess", "bad")))
}
