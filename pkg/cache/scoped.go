package cache

// ScopedKeyer prefixes every key of an inner Keyer, e.g. with a version so
// that entries written in an older layout are never read back.
//
//	keyer := cache.NewScopedKeyer(nil, "v1:")
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer wraps inner (DefaultKeyer when nil) with prefix.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{inner: inner, prefix: prefix}
}

// ManifestKey implements Keyer.
func (k *ScopedKeyer) ManifestKey(fileHash string, opts DecodeKeyOpts) string {
	return k.prefix + k.inner.ManifestKey(fileHash, opts)
}

// PageKey implements Keyer.
func (k *ScopedKeyer) PageKey(fileHash string, opts DecodeKeyOpts, index int) string {
	return k.prefix + k.inner.PageKey(fileHash, opts, index)
}
