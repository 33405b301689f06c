package app

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrMissingSessionID   = fmt.Errorf("%w: session id is required", ErrInvalidInput)
	ErrMissingFilename    = fmt.Errorf("%w: filename is required", ErrInvalidInput)
	ErrUnsupportedContent = fmt.Errorf("%w: only pdf documents are supported", ErrInvalidInput)
	ErrNoChunks           = fmt.Errorf("%w: document has no extractable text", ErrInvalidInput)

	// ErrStorageUnavailable marks failures of the backing store. Callers may retry.
	ErrStorageUnavailable = errors.New("storage unavailable")

	ErrInsufficientContent = errors.New("insufficient content")

	// ErrGenerationUnavailable marks a quiz that fell short because the
	// question generator failed or timed out. Callers may retry.
	ErrGenerationUnavailable = errors.New("question generation unavailable")
)

// InsufficientContentError reports a quiz request that could not be filled
// even after every fallback.
type InsufficientContentError struct {
	Requested int
	Available int
}

func (e *InsufficientContentError) Error() string {
	return fmt.Sprintf("insufficient content: requested %d questions, only %d could be generated", e.Requested, e.Available)
}

func (e *InsufficientContentError) Is(target error) bool {
	return target == ErrInsufficientContent
}

func storageErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStorageUnavailable, err)
}
