package main

import (
	"errors"
	"fmt"
	"os"
)

// Exit codes for different failure modes
const (
	ExitSuccess          = 0 // All claims validated as expected
	ExitValidationFailed = 1 // One or more claims failed validation
	ExitError            = 2 // Configuration or runtime error
)

// ValidationFailureError indicates that the run itself completed,
// but one or more claims did not validate as expected.
type ValidationFailureError struct {
	Message string
}

func (e *ValidationFailureError) Error() string {
	return e.Message
}

func main() {
	if err := execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)

		// Check error type to determine exit code
		var failureErr *ValidationFailureError
		if errors.As(err, &failureErr) {
			os.Exit(ExitValidationFailed)
		}

		// All other errors are configuration/runtime errors
		os.Exit(ExitError)
	}
}
