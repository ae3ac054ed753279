package cache

// ScopedKeyer wraps a Keyer with a prefix for multi-tenant isolation.
// This is useful in hosted deployments where different users or contexts
// need separate cache namespaces.
//
// Example usage:
//
//	// User-specific keys for private sessions
//	userKeyer := NewScopedKeyer(NewDefaultKeyer(), "user:abc123:")
//
//	// Global keys for shared artifacts
//	globalKeyer := NewDefaultKeyer()
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer with a prefix.
// The prefix is prepended to all generated keys.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{
		inner:  inner,
		prefix: prefix,
	}
}

// OutcomeKey generates a prefixed key for validation outcome caching.
func (k *ScopedKeyer) OutcomeKey(sourceHash string, minGap int) string {
	return k.prefix + k.inner.OutcomeKey(sourceHash, minGap)
}

// ArtifactKey generates a prefixed key for rendered artifact caching.
func (k *ScopedKeyer) ArtifactKey(sourceHash, format string) string {
	return k.prefix + k.inner.ArtifactKey(sourceHash, format)
}

// CorpusKey generates a prefixed key for retrieval index caching.
func (k *ScopedKeyer) CorpusKey(corpusHash string) string {
	return k.prefix + k.inner.CorpusKey(corpusHash)
}
