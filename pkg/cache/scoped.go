package cache

// Keyer derives cache keys for index records.
type Keyer interface {
	// ArtifactKey returns the key of the record for an artifact URL.
	ArtifactKey(url string) string
}

// DefaultKeyer hashes URLs so keys have a fixed length.
type DefaultKeyer struct{}

// NewDefaultKeyer creates the default keyer.
func NewDefaultKeyer() Keyer { return DefaultKeyer{} }

// ArtifactKey returns "artifact:<sha256(url)>".
func (DefaultKeyer) ArtifactKey(url string) string {
	return hashKey("artifact", url)
}

// ScopedKeyer wraps a Keyer with a prefix, so several installations can
// share one Redis database without seeing each other's records.
//
//	machine := NewScopedKeyer(NewDefaultKeyer(), "host:build-01:")
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer with a prefix.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{inner: inner, prefix: prefix}
}

// ArtifactKey generates a prefixed artifact key.
func (k *ScopedKeyer) ArtifactKey(url string) string {
	return k.prefix + k.inner.ArtifactKey(url)
}
