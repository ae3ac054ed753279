// Package cache provides pluggable caching for validation outcomes and
// rendered artifacts.
//
// Validating a source artifact means spawning a worker process; rendering
// means producing an SVG. Both are pure functions of their inputs, so
// results are cached under content-hash keys. Backends: file-based for CLI
// usage, null for tests and one-shot runs.
package cache

import (
	"context"
	"time"
)

// Cache stores opaque byte values under string keys with optional TTLs.
// Implementations must be safe for concurrent use.
type Cache interface {
	// Get retrieves a value. The second return reports whether the key was
	// present and unexpired.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores a value. A zero ttl means no expiration.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes a key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}

// Keyer builds cache keys for the pipeline's cacheable products. Keeping
// key construction behind an interface lets multi-tenant deployments scope
// keys per user (see [ScopedKeyer]).
type Keyer interface {
	// OutcomeKey identifies a validation outcome for a source artifact.
	OutcomeKey(sourceHash string, minGap int) string

	// ArtifactKey identifies a rendered artifact for a source artifact.
	ArtifactKey(sourceHash, format string) string

	// CorpusKey identifies a built retrieval index for an example corpus.
	CorpusKey(corpusHash string) string
}

// DefaultKeyer hashes key components into stable prefixed keys.
type DefaultKeyer struct{}

// NewDefaultKeyer creates the standard keyer.
func NewDefaultKeyer() Keyer {
	return &DefaultKeyer{}
}

// OutcomeKey generates a key for validation outcome caching.
func (k *DefaultKeyer) OutcomeKey(sourceHash string, minGap int) string {
	return hashKey("outcome", sourceHash, minGap)
}

// ArtifactKey generates a key for rendered artifact caching.
func (k *DefaultKeyer) ArtifactKey(sourceHash, format string) string {
	return hashKey("artifact", sourceHash, format)
}

// CorpusKey generates a key for retrieval index caching.
func (k *DefaultKeyer) CorpusKey(corpusHash string) string {
	return hashKey("corpus", corpusHash)
}
