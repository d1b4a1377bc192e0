package transcache

import (
	"errors"
	"fmt"
	"strings"
)

// ValidationError indicates a request was rejected before any cache or engine work.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
	}
	return "invalid request: " + e.Message
}

// ProviderError indicates a translation engine failure (API error, overload, etc.).
type ProviderError struct {
	Message     string
	Cause       error
	Retryable   bool // Whether the operation can be retried
	Unavailable bool // The engine could not be reached at all
}

func (e *ProviderError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("provider error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("provider error: %s", e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// CacheError indicates a cache operation failure.
type CacheError struct {
	Op      string // "get" or "set"
	Message string
	Cause   error
}

func (e *CacheError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("cache error (%s): %s: %v", e.Op, e.Message, e.Cause)
	}
	return fmt.Sprintf("cache error (%s): %s", e.Op, e.Message)
}

func (e *CacheError) Unwrap() error {
	return e.Cause
}

// CountMismatchError indicates the engine returned a different number of translations than expected.
type CountMismatchError struct {
	Expected int
	Got      int
}

func (e *CountMismatchError) Error() string {
	return fmt.Sprintf("translation count mismatch: expected %d, got %d", e.Expected, e.Got)
}

// BatchError records the failure of one dispatched batch.
type BatchError struct {
	Index  int // Position of the batch in submission order
	Offset int // Position of the batch's first item in the miss list
	Size   int
	Cause  error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("batch %d (items %d-%d): %v", e.Index, e.Offset, e.Offset+e.Size-1, e.Cause)
}

func (e *BatchError) Unwrap() error {
	return e.Cause
}

// PartialTranslationError indicates that at least one batch failed, so the
// request cannot be answered with a complete mapping.
type PartialTranslationError struct {
	Batches int // Total batches dispatched
	Failed  []*BatchError
}

func (e *PartialTranslationError) Error() string {
	parts := make([]string, len(e.Failed))
	for i, f := range e.Failed {
		parts[i] = f.Error()
	}
	return fmt.Sprintf("%d of %d batches failed: %s", len(e.Failed), e.Batches, strings.Join(parts, "; "))
}

func (e *PartialTranslationError) Unwrap() []error {
	errs := make([]error, len(e.Failed))
	for i, f := range e.Failed {
		errs[i] = f
	}
	return errs
}

// EngineUnavailableError indicates the translation engine cannot be reached.
type EngineUnavailableError struct {
	Cause error
}

func (e *EngineUnavailableError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("translation engine unavailable: %v", e.Cause)
	}
	return "translation engine unavailable"
}

func (e *EngineUnavailableError) Unwrap() error {
	return e.Cause
}

// IsUnavailable reports whether err marks the engine as unreachable.
func IsUnavailable(err error) bool {
	var unavailable *EngineUnavailableError
	if errors.As(err, &unavailable) {
		return true
	}
	var providerErr *ProviderError
	return errors.As(err, &providerErr) && providerErr.Unavailable
}
