package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/matzehuels/cbzkit/pkg/archive"
	"github.com/matzehuels/cbzkit/pkg/cache"
	"github.com/matzehuels/cbzkit/pkg/errors"
	"github.com/matzehuels/cbzkit/pkg/merge"
	"github.com/matzehuels/cbzkit/pkg/observability"
	"github.com/matzehuels/cbzkit/pkg/source"
)

// Runner executes builds. It holds no per-run state, so one Runner may
// serve concurrent runs with different options.
type Runner struct {
	Cache  cache.Cache
	Keyer  cache.Keyer
	Logger *log.Logger
}

// NewRunner returns a runner. A nil cache disables caching, a nil keyer
// means cache.DefaultKeyer and a nil logger means log.Default().
func NewRunner(c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if c == nil {
		c = cache.NewNullCache()
	}
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{Cache: c, Keyer: keyer, Logger: logger}
}

// Pack builds an archive from loose images, directories, globs or a
// single existing archive.
func (r *Runner) Pack(ctx context.Context, inputs []string, opts Options) (*Result, error) {
	r.applyLogger(&opts)
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}
	start := time.Now()
	b, err := source.Open(ctx, inputs...)
	r.discovered(ctx, ModePack, b, time.Since(start), err)
	if err != nil {
		return nil, err
	}
	defer b.Close()

	res, err := r.Build(ctx, ModePack, b, opts)
	if res != nil {
		res.Stats.DiscoverTime = time.Since(start) - res.Stats.BuildTime
	}
	return res, err
}

// Merge concatenates the archives matching pattern whose base name
// contains filter.
func (r *Runner) Merge(ctx context.Context, pattern, filter string, opts Options) (*Result, error) {
	r.applyLogger(&opts)
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}
	descs, err := merge.Discover(pattern, filter)
	if err != nil {
		r.discovered(ctx, ModeMerge, nil, 0, err)
		return nil, err
	}
	return r.MergeArchives(ctx, descs, opts)
}

// MergeArchives concatenates descs in the given order. Callers that let
// the user pick archives pass the selection here.
func (r *Runner) MergeArchives(ctx context.Context, descs []merge.Descriptor, opts Options) (*Result, error) {
	r.applyLogger(&opts)
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}
	dest := opts.Dest()
	for _, d := range descs {
		if same(d.Path, dest) {
			return nil, errors.New(errors.ErrCodeInvalidInput, "destination %s is one of the archives being merged", dest)
		}
	}

	start := time.Now()
	b, err := merge.Ordered(ctx, descs)
	r.discovered(ctx, ModeMerge, b, time.Since(start), err)
	if err != nil {
		return nil, err
	}
	defer b.Close()
	opts.Logger.Debug("merging archives", "archives", len(descs), "pages", len(b.Pages))

	res, err := r.Build(ctx, ModeMerge, b, opts)
	if res != nil {
		res.Stats.DiscoverTime = time.Since(start) - res.Stats.BuildTime
	}
	return res, err
}

// Convert decodes the container at path with c and builds an archive of
// its pages. Decoded pages are cached by file content and decoder
// options.
func (r *Runner) Convert(ctx context.Context, path string, c *source.Container, opts Options) (*Result, error) {
	r.applyLogger(&opts)
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}
	start := time.Now()
	b, hit, err := r.decode(ctx, path, c, &opts)
	r.discovered(ctx, ModeConvert, b, time.Since(start), err)
	if err != nil {
		return nil, err
	}
	defer b.Close()

	res, err := r.Build(ctx, ModeConvert, b, opts)
	if res != nil {
		res.Stats.DiscoverTime = time.Since(start) - res.Stats.BuildTime
		res.CacheInfo.DecodeHit = hit
	}
	return res, err
}

// Build transforms the pages of b and writes them to opts.Dest(). On any
// error, including cancellation, no file is left at the destination.
func (r *Runner) Build(ctx context.Context, mode string, b *source.Batch, opts Options) (*Result, error) {
	r.applyLogger(&opts)
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}

	res := &Result{
		RunID:   uuid.NewString(),
		Mode:    mode,
		Warning: b.Warning(),
	}
	res.Stats.SourcePages = len(b.Pages)
	res.Stats.Skipped = len(b.Skipped)
	logger := opts.Logger.With("run", res.RunID[:8])

	if res.Warning != nil {
		for _, s := range res.Warning.Skipped {
			logger.Warn("skipped input", "input", s.Input, "reason", s.Err)
		}
	}

	start := time.Now()
	out, split, err := r.write(ctx, b, &opts)
	res.Stats.BuildTime = time.Since(start)
	if out != nil {
		res.Output = out
		res.Stats.OutputPages = out.Pages
	}
	res.Stats.SplitPages = split

	entries, size := 0, int64(0)
	if out != nil {
		entries, size = out.Pages, out.Bytes
	}
	observability.Pipeline().OnArchiveWritten(ctx, mode, entries, size, res.Stats.BuildTime, err)
	if err != nil {
		logger.Debug("build failed", "mode", mode, "error", err)
		return nil, err
	}

	logger.Info("wrote archive",
		"path", out.Path,
		"pages", out.Pages,
		"split", split,
		"bytes", out.Bytes,
		"duration", res.Stats.BuildTime)
	return res, nil
}

func (r *Runner) write(ctx context.Context, b *source.Batch, opts *Options) (*archive.Output, int, error) {
	counts, err := plan(ctx, opts.Transform, b.Pages, opts.Workers)
	if err != nil {
		return nil, 0, err
	}
	total := 0
	for _, n := range counts {
		total += n
	}
	opts.Logger.Debug("planned archive", "source_pages", len(b.Pages), "entries", total, "transform", opts.Transform.String())

	if err := os.MkdirAll(opts.Outdir, 0o755); err != nil {
		return nil, 0, &errors.WriteError{Path: opts.Dest(), Err: err}
	}
	w, err := archive.Create(opts.Dest(), total, opts.archiveOptions())
	if err != nil {
		return nil, 0, err
	}

	split, err := execute(ctx, b.Pages, w, opts)
	if err != nil {
		_ = w.Abort()
		return nil, split, err
	}
	out, err := w.Close()
	return out, split, err
}

func (r *Runner) discovered(ctx context.Context, mode string, b *source.Batch, d time.Duration, err error) {
	pages, skipped := 0, 0
	if b != nil {
		pages, skipped = len(b.Pages), len(b.Skipped)
	}
	observability.Pipeline().OnDiscovery(ctx, mode, pages, skipped, d, err)
	if err == nil {
		r.Logger.Debug("discovered pages", "mode", mode, "source", b.Source, "pages", pages, "skipped", skipped, "duration", d)
	}
}

// Close releases the runner's cache.
func (r *Runner) Close() error {
	if r.Cache != nil {
		return r.Cache.Close()
	}
	return nil
}

// applyLogger sets the runner's logger on opts when the caller gave none.
func (r *Runner) applyLogger(opts *Options) {
	if opts.Logger == nil {
		opts.Logger = r.Logger
	}
}

// same reports whether a and b name the same file.
func same(a, b string) bool {
	ai, aerr := os.Stat(a)
	bi, berr := os.Stat(b)
	if aerr == nil && berr == nil {
		return os.SameFile(ai, bi)
	}
	aa, aerr := filepath.Abs(a)
	ba, berr := filepath.Abs(b)
	return aerr == nil && berr == nil && aa == ba
}
