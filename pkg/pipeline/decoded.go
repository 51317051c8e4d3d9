package pipeline

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"time"

	"github.com/matzehuels/cbzkit/pkg/cache"
	"github.com/matzehuels/cbzkit/pkg/errors"
	"github.com/matzehuels/cbzkit/pkg/observability"
	"github.com/matzehuels/cbzkit/pkg/page"
	"github.com/matzehuels/cbzkit/pkg/source"
)

// Cache key types reported to observability.CacheHooks.
const (
	keyTypeManifest = "manifest"
	keyTypePage     = "page"
)

// manifest is the cached description of one decoded container. Page bytes
// are stored under their own keys.
type manifest struct {
	Pages   []manifestPage    `json:"pages"`
	Skipped []manifestSkipped `json:"skipped,omitempty"`
}

type manifestPage struct {
	ID     string `json:"id"`
	Format string `json:"format"`
}

type manifestSkipped struct {
	Input  string `json:"input"`
	Reason string `json:"reason"`
}

// decode opens the container at path, consulting the cache first. The
// bool reports a cache hit.
func (r *Runner) decode(ctx context.Context, path string, c *source.Container, opts *Options) (*source.Batch, bool, error) {
	if c == nil {
		return nil, false, errors.New(errors.ErrCodeUnsupported, "no source format given for %s", path)
	}
	keyOpts := cache.DecodeKeyOpts{Format: c.Name, Decoder: opts.Decode.Key()}

	hash, hashErr := cache.HashFile(path)
	if hashErr == nil && !opts.Refresh {
		if b, ok := r.loadDecoded(ctx, path, hash, keyOpts); ok {
			opts.Logger.Debug("decoded pages from cache", "format", c.Name, "pages", len(b.Pages))
			return b, true, nil
		}
	}

	start := time.Now()
	b, err := source.OpenContainer(ctx, path, c.NewDecoder(opts.Decode))
	pages := 0
	if b != nil {
		pages = len(b.Pages)
	}
	observability.Decode().OnDecode(ctx, c.Name, pages, time.Since(start), err)
	if err != nil {
		return nil, false, err
	}
	opts.Logger.Debug("decoded container", "format", c.Name, "decoder", keyOpts.Decoder, "pages", pages, "duration", time.Since(start))

	if hashErr == nil {
		if err := r.storeDecoded(ctx, hash, keyOpts, b); err != nil {
			opts.Logger.Warn("could not cache decoded pages", "error", err)
		}
	}
	return b, false, nil
}

// loadDecoded rebuilds a batch from the cache. Any missing or damaged
// entry makes the whole lookup a miss.
func (r *Runner) loadDecoded(ctx context.Context, path, hash string, keyOpts cache.DecodeKeyOpts) (*source.Batch, bool) {
	hooks := observability.Cache()
	data, hit, err := r.Cache.Get(ctx, r.Keyer.ManifestKey(hash, keyOpts))
	if err != nil || !hit {
		hooks.OnCacheMiss(ctx, keyTypeManifest)
		return nil, false
	}
	var m manifest
	if err := json.Unmarshal(data, &m); err != nil || len(m.Pages) == 0 {
		hooks.OnCacheMiss(ctx, keyTypeManifest)
		return nil, false
	}
	hooks.OnCacheHit(ctx, keyTypeManifest)

	b := &source.Batch{Source: path}
	for i, mp := range m.Pages {
		f := page.FromExt(mp.Format)
		data, hit, err := r.Cache.Get(ctx, r.Keyer.PageKey(hash, keyOpts, i))
		if err != nil || !hit || f == page.Unknown {
			hooks.OnCacheMiss(ctx, keyTypePage)
			return nil, false
		}
		hooks.OnCacheHit(ctx, keyTypePage)
		b.Pages = append(b.Pages, page.New(mp.ID, i, f, data))
	}
	for _, s := range m.Skipped {
		b.Skipped = append(b.Skipped, errors.Skipped{Input: s.Input, Err: stderrors.New(s.Reason)})
	}
	return b, true
}

// storeDecoded writes page bytes first and the manifest last, so a
// readable manifest always has its pages.
func (r *Runner) storeDecoded(ctx context.Context, hash string, keyOpts cache.DecodeKeyOpts, b *source.Batch) error {
	hooks := observability.Cache()
	m := manifest{Pages: make([]manifestPage, len(b.Pages))}
	for i, p := range b.Pages {
		data, err := p.Bytes()
		if err != nil {
			return err
		}
		if err := r.Cache.Set(ctx, r.Keyer.PageKey(hash, keyOpts, i), data, cache.TTLPage); err != nil {
			return err
		}
		hooks.OnCacheSet(ctx, keyTypePage, len(data))
		m.Pages[i] = manifestPage{ID: p.ID, Format: p.Format.Ext()}
	}
	for _, s := range b.Skipped {
		m.Skipped = append(m.Skipped, manifestSkipped{Input: s.Input, Reason: s.Err.Error()})
	}

	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	if err := r.Cache.Set(ctx, r.Keyer.ManifestKey(hash, keyOpts), data, cache.TTLManifest); err != nil {
		return err
	}
	hooks.OnCacheSet(ctx, keyTypeManifest, len(data))
	return nil
}
