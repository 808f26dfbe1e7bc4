package main

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidationFailureError(t *testing.T) {
	err := &ValidationFailureError{
		Message: "validation completed with 2 failed claim(s) and 1 error(s)",
	}

	assert.Equal(t, "validation completed with 2 failed claim(s) and 1 error(s)", err.Error())
}

func TestErrorTypeDetection(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantType string
	}{
		{
			name:     "ValidationFailureError",
			err:      &ValidationFailureError{Message: "claim failure"},
			wantType: "ValidationFailureError",
		},
		{
			name:     "regular error",
			err:      errors.New("config error"),
			wantType: "other",
		},
		{
			name:     "wrapped ValidationFailureError",
			err:      errors.Join(&ValidationFailureError{Message: "claim failure"}, errors.New("additional context")),
			wantType: "ValidationFailureError",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var failureErr *ValidationFailureError
			isFailure := errors.As(tt.err, &failureErr)

			if tt.wantType == "ValidationFailureError" {
				assert.True(t, isFailure, "expected error to be detected as ValidationFailureError")
			} else {
				assert.False(t, isFailure, "expected error NOT to be detected as ValidationFailureError")
			}
		})
	}
}
