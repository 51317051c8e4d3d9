// Package observability lets a binary observe archive builds without the
// engine depending on a metrics backend.
//
// The engine calls the registered hooks; main registers real ones at
// startup (see internal/metrics). Until then every hook is a no-op.
//
//	observability.SetPipelineHooks(metrics.New(reg))
//
//	observability.Pipeline().OnArchiveWritten(ctx, "pack", entries, size, d, err)
package observability

import (
	"context"
	"sync"
	"time"
)

// =============================================================================
// Pipeline Hooks
// =============================================================================

// PipelineHooks receives events from pack, merge and convert runs.
type PipelineHooks interface {
	// OnDiscovery fires once the input pages of a run are known.
	OnDiscovery(ctx context.Context, mode string, pages, skipped int, duration time.Duration, err error)

	// OnPageTransformed fires for every source page run through the
	// transform pipeline. outputs is 2 for split pages.
	OnPageTransformed(ctx context.Context, outputs int, duration time.Duration, err error)

	// OnArchiveWritten fires when a run finishes, successfully or not.
	OnArchiveWritten(ctx context.Context, mode string, entries int, size int64, duration time.Duration, err error)
}

// =============================================================================
// Decode Hooks
// =============================================================================

// DecodeHooks receives events from foreign container decoders.
type DecodeHooks interface {
	OnDecode(ctx context.Context, format string, pages int, duration time.Duration, err error)
}

// =============================================================================
// Cache Hooks
// =============================================================================

// CacheHooks receives events from the decoded-page cache.
type CacheHooks interface {
	OnCacheHit(ctx context.Context, keyType string)
	OnCacheMiss(ctx context.Context, keyType string)
	OnCacheSet(ctx context.Context, keyType string, size int)
}

// =============================================================================
// No-op Implementations
// =============================================================================

// NoopPipelineHooks ignores every event.
type NoopPipelineHooks struct{}

func (NoopPipelineHooks) OnDiscovery(context.Context, string, int, int, time.Duration, error) {}
func (NoopPipelineHooks) OnPageTransformed(context.Context, int, time.Duration, error)       {}
func (NoopPipelineHooks) OnArchiveWritten(context.Context, string, int, int64, time.Duration, error) {
}

// NoopDecodeHooks ignores every event.
type NoopDecodeHooks struct{}

func (NoopDecodeHooks) OnDecode(context.Context, string, int, time.Duration, error) {}

// NoopCacheHooks ignores every event.
type NoopCacheHooks struct{}

func (NoopCacheHooks) OnCacheHit(context.Context, string)      {}
func (NoopCacheHooks) OnCacheMiss(context.Context, string)     {}
func (NoopCacheHooks) OnCacheSet(context.Context, string, int) {}

// =============================================================================
// Global Hook Registry
// =============================================================================

var (
	hooksMu       sync.RWMutex
	pipelineHooks PipelineHooks = NoopPipelineHooks{}
	decodeHooks   DecodeHooks   = NoopDecodeHooks{}
	cacheHooks    CacheHooks    = NoopCacheHooks{}
)

// SetPipelineHooks registers h. A nil h is ignored.
func SetPipelineHooks(h PipelineHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		pipelineHooks = h
	}
}

// SetDecodeHooks registers h. A nil h is ignored.
func SetDecodeHooks(h DecodeHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		decodeHooks = h
	}
}

// SetCacheHooks registers h. A nil h is ignored.
func SetCacheHooks(h CacheHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		cacheHooks = h
	}
}

// Pipeline returns the registered pipeline hooks.
func Pipeline() PipelineHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return pipelineHooks
}

// Decode returns the registered decode hooks.
func Decode() DecodeHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return decodeHooks
}

// Cache returns the registered cache hooks.
func Cache() CacheHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return cacheHooks
}

// Reset restores the no-op hooks.
func Reset() {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	pipelineHooks = NoopPipelineHooks{}
	decodeHooks = NoopDecodeHooks{}
	cacheHooks = NoopCacheHooks{}
}
