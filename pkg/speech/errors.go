package speech

import (
	"errors"
	"fmt"
)

// Sentinel errors for common error conditions.
var (
	// ErrNoSpeech is returned by Listen when nothing was heard in time.
	ErrNoSpeech = errors.New("speech: no speech detected")

	// ErrProviderUnavailable is returned when a speaker cannot run here.
	ErrProviderUnavailable = errors.New("speech: provider unavailable")
)

// ChainError aggregates errors from all speakers in a chain.
type ChainError struct {
	Errors []error
}

// Error implements the error interface.
func (e *ChainError) Error() string {
	if len(e.Errors) == 0 {
		return "speech chain: no errors recorded"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("speech chain: %v", e.Errors[0])
	}
	return fmt.Sprintf("speech chain: all %d speakers failed, last error: %v", len(e.Errors), e.Errors[len(e.Errors)-1])
}

// Unwrap returns the last error in the chain.
func (e *ChainError) Unwrap() error {
	if len(e.Errors) == 0 {
		return nil
	}
	return e.Errors[len(e.Errors)-1]
}
