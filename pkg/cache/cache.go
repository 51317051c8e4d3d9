// Package cache stores decoded pages so repeated conversions of the same
// container skip the decoder.
//
// Backends implement [Cache]: [FileCache] for the CLI, [RedisCache] for a
// shared cache, [NullCache] when caching is disabled. Keys come from a
// [Keyer] so callers never assemble key strings by hand.
package cache

import (
	"context"
	"time"
)

// Cache is a byte-oriented key/value store with optional expiry.
type Cache interface {
	// Get returns the value for key. A miss is (nil, false, nil).
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores data under key. A ttl of zero means no expiry.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases the backend.
	Close() error
}

// Clearer is implemented by backends that can drop every entry at once.
type Clearer interface {
	Clear(ctx context.Context) error
}

// Default expiries.
const (
	// TTLManifest bounds how long a decoded page list is trusted.
	TTLManifest = 30 * 24 * time.Hour

	// TTLPage must not be shorter than TTLManifest.
	TTLPage = TTLManifest
)

// Keyer builds cache keys for decoded containers.
type Keyer interface {
	// ManifestKey identifies the ordered page list of one decoded file.
	ManifestKey(fileHash string, opts DecodeKeyOpts) string

	// PageKey identifies the bytes of one decoded page.
	PageKey(fileHash string, opts DecodeKeyOpts, index int) string
}

// DecodeKeyOpts are the decoder settings that change the decoded output.
type DecodeKeyOpts struct {
	Format  string `json:"format"`
	Decoder string `json:"decoder"`
}

// DefaultKeyer produces "manifest:<hash>" and "page:<hash>" keys.
type DefaultKeyer struct{}

// NewDefaultKeyer returns the standard keyer.
func NewDefaultKeyer() Keyer {
	return DefaultKeyer{}
}

// ManifestKey implements Keyer.
func (DefaultKeyer) ManifestKey(fileHash string, opts DecodeKeyOpts) string {
	return hashKey("manifest", fileHash, opts)
}

// PageKey implements Keyer.
func (DefaultKeyer) PageKey(fileHash string, opts DecodeKeyOpts, index int) string {
	return hashKey("page", fileHash, opts, index)
}
