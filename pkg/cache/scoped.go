package cache

// ScopedKeyer wraps a Keyer with a prefix for namespace isolation.
// The HTTP service uses it to keep its entries apart from CLI runs that
// share the same Redis or MongoDB backend.
//
//	keyer := NewScopedKeyer(NewDefaultKeyer(), "serve:")
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

// SolutionKey generates a prefixed key for solution caching.
func (k *ScopedKeyer) SolutionKey(mapHash string, opts SolutionKeyOpts) string {
	return k.prefix + k.inner.SolutionKey(mapHash, opts)
}

// ArtifactKey generates a prefixed key for artifact caching.
func (k *ScopedKeyer) ArtifactKey(solutionHash string, opts ArtifactKeyOpts) string {
	return k.prefix + k.inner.ArtifactKey(solutionHash, opts)
}
