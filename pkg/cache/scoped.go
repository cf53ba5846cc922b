package cache

// ScopedKeyer wraps a Keyer with a prefix so several deployments or users can
// share one backend without seeing each other's entries.
//
// Example usage:
//
//	// Keys for one API tenant
//	k := NewScopedKeyer(NewDefaultKeyer(), "tenant:abc123:")
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

// SegmentKey generates a prefixed key for a solved segment.
func (k *ScopedKeyer) SegmentKey(imageHash string, opts SegmentKeyOpts) string {
	return k.prefix + k.inner.SegmentKey(imageHash, opts)
}

// CornersKey generates a prefixed key for detected corners.
func (k *ScopedKeyer) CornersKey(imageHash string, opts CornersKeyOpts) string {
	return k.prefix + k.inner.CornersKey(imageHash, opts)
}

// ArtifactKey generates a prefixed key for a rendered artifact.
func (k *ScopedKeyer) ArtifactKey(runHash string, opts ArtifactKeyOpts) string {
	return k.prefix + k.inner.ArtifactKey(runHash, opts)
}
