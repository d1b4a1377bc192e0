package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"
)

const snapshotVersion = "1.0"

// ExportFormat represents the JSON structure of an in-memory cache snapshot.
type ExportFormat struct {
	Version    string            `json:"version"`
	ExportedAt string            `json:"exported_at"`
	Entries    []ExportEntry     `json:"entries"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// ExportEntry represents a single cache entry.
type ExportEntry struct {
	Key       string     `json:"key"`
	Value     string     `json:"value"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// ImportResult contains statistics about an import.
type ImportResult struct {
	Version  string
	Metadata map[string]string
	Imported int
	Expired  int
}

// Export writes the non-expired entries of the cache to w as JSON, sorted by key.
func (c *InMemoryCache) Export(w io.Writer, metadata map[string]string) error {
	now := c.now()

	c.mu.RLock()
	entries := make([]ExportEntry, 0, len(c.cache))
	for key, entry := range c.cache {
		if entry.expired(now) {
			continue
		}
		e := ExportEntry{Key: key, Value: entry.value}
		if !entry.expiresAt.IsZero() {
			at := entry.expiresAt.UTC()
			e.ExpiresAt = &at
		}
		entries = append(entries, e)
	}
	c.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })

	export := ExportFormat{
		Version:    snapshotVersion,
		ExportedAt: now.UTC().Format(time.RFC3339),
		Entries:    entries,
		Metadata:   metadata,
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(export); err != nil {
		return fmt.Errorf("encoding JSON: %w", err)
	}

	return nil
}

// Import loads entries from r, keeping their original expiry. Entries that
// have already expired are skipped.
func (c *InMemoryCache) Import(r io.Reader) (*ImportResult, error) {
	var export ExportFormat
	if err := json.NewDecoder(r).Decode(&export); err != nil {
		return nil, fmt.Errorf("decoding JSON: %w", err)
	}
	if export.Version != snapshotVersion {
		return nil, fmt.Errorf("unsupported snapshot version %q", export.Version)
	}

	result := &ImportResult{
		Version:  export.Version,
		Metadata: export.Metadata,
	}

	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, e := range export.Entries {
		entry := cacheEntry{value: e.Value}
		if e.ExpiresAt != nil {
			entry.expiresAt = *e.ExpiresAt
		}
		if entry.expired(now) {
			result.Expired++
			continue
		}
		c.cache[e.Key] = entry
		result.Imported++
	}

	return result, nil
}

// SaveSnapshot writes the cache to path, replacing any previous snapshot atomically.
func (c *InMemoryCache) SaveSnapshot(path string, metadata map[string]string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".snapshot-*")
	if err != nil {
		return fmt.Errorf("creating file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := c.Export(tmp, metadata); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing file: %w", err)
	}

	return os.Rename(tmp.Name(), path)
}

// LoadSnapshot imports a snapshot from path. A missing file is not an error
// and yields an empty result.
func (c *InMemoryCache) LoadSnapshot(path string) (*ImportResult, error) {
	f, err := os.Open(path) // #nosec G304 - path comes from operator configuration
	if errors.Is(err, fs.ErrNotExist) {
		return &ImportResult{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()

	return c.Import(f)
}
