// Package cache provides translation store implementations.
package cache

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Store is the interface for translation stores.
type Store interface {
	// GetMany returns the values of the keys that are present. Missing or
	// expired keys are omitted; they are not an error.
	GetMany(ctx context.Context, keys []string) (map[string]string, error)

	// SetMany stores every entry with the given TTL.
	SetMany(ctx context.Context, entries map[string]string, ttl time.Duration) error
}

// WriteError reports the keys that could not be written by SetMany.
// Keys absent from Failed were written.
type WriteError struct {
	Failed map[string]error
}

func (e *WriteError) Error() string {
	keys := make([]string, 0, len(e.Failed))
	for k := range e.Failed {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	if len(keys) == 1 {
		return fmt.Sprintf("cache write failed for key %s: %v", keys[0], e.Failed[keys[0]])
	}
	return fmt.Sprintf("cache write failed for %d keys: %s", len(keys), strings.Join(keys, ", "))
}

// Unwrap returns the individual write errors.
func (e *WriteError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failed))
	for _, err := range e.Failed {
		errs = append(errs, err)
	}
	return errs
}
