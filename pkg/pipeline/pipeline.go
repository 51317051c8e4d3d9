// Package pipeline builds archives: it takes an ordered page batch, runs
// every page through the transform pipeline on a bounded worker pool and
// streams the results into the archive writer in their original order.
//
// # Modes
//
//  1. Pack: loose image files, a directory, globs or one existing archive
//  2. Merge: several archives concatenated in natural path order
//  3. Convert: a pdf, epub, mobi or azw3 container
//
// All three end in [Runner.Build], so the byte layout of an archive only
// depends on the page sequence and the options, never on the number of
// workers.
//
// # Usage
//
//	runner := pipeline.NewRunner(cache.NewNullCache(), nil, logger)
//	res, err := runner.Pack(ctx, []string{"scans/*.png"}, pipeline.Options{
//	    Name:      "Volume 1",
//	    Transform: transform.Spec{Autosplit: true},
//	})
//	if err != nil {
//	    return err
//	}
//	fmt.Println(res.Output.Path, res.Output.Pages)
package pipeline

import (
	"io"
	"path/filepath"
	"runtime"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/cbzkit/pkg/archive"
	"github.com/matzehuels/cbzkit/pkg/errors"
	"github.com/matzehuels/cbzkit/pkg/source"
	"github.com/matzehuels/cbzkit/pkg/transform"
)

// =============================================================================
// Default Values
// =============================================================================

const (
	// DefaultOutdir is where archives go when Options.Outdir is empty.
	DefaultOutdir = "."

	// WindowPerWorker bounds how many pages each worker may run ahead of
	// the writer when Options.Window is zero.
	WindowPerWorker = 4
)

// Run modes, as reported in Result.Mode and to observability hooks.
const (
	ModePack    = "pack"
	ModeMerge   = "merge"
	ModeConvert = "convert"
)

// DefaultWorkers is the worker count used when Options.Workers is zero.
func DefaultWorkers() int { return runtime.NumCPU() }

// =============================================================================
// Options
// =============================================================================

// Options configures one archive build.
type Options struct {
	// Name is the archive name without extension. It is sanitised before
	// use.
	Name string `json:"name"`
	// Outdir is the destination directory.
	Outdir string `json:"outdir,omitempty"`

	Transform transform.Spec `json:"transform"`

	// Deflate compresses entries at CompressionLevel instead of storing
	// them.
	Deflate          bool `json:"deflate,omitempty"`
	CompressionLevel int  `json:"compression_level,omitempty"`

	// Metadata is written to the archive comment when non-nil.
	Metadata *archive.Metadata `json:"metadata,omitempty"`

	// Workers is the transform pool size (0 = number of CPUs).
	Workers int `json:"workers,omitempty"`
	// Window caps pages in flight between scheduling and writing
	// (0 = WindowPerWorker * Workers).
	Window int `json:"window,omitempty"`

	// Decode configures foreign container decoders (convert only).
	Decode source.DecodeOptions `json:"decode,omitempty"`
	// Refresh ignores cached decodes (convert only). Fresh results are
	// still stored.
	Refresh bool `json:"refresh,omitempty"`

	// Runtime options (not serialized)
	Logger *log.Logger `json:"-"`
	// Progress is called from the writer goroutine after every written
	// source page.
	Progress func(done, total int) `json:"-"`
	// Create overrides how the temporary archive file is created.
	Create archive.CreateFunc `json:"-"`

	validated bool
}

// ValidateAndSetDefaults checks the options and fills in defaults. It is
// idempotent.
func (o *Options) ValidateAndSetDefaults() error {
	if o.validated {
		return nil
	}
	name, err := errors.SanitizeArchiveName(o.Name)
	if err != nil {
		return err
	}
	o.Name = name
	if o.Outdir == "" {
		o.Outdir = DefaultOutdir
	}
	if err := o.Transform.Validate(); err != nil {
		return err
	}
	if o.Deflate {
		if err := errors.ValidateCompressionLevel(o.CompressionLevel); err != nil {
			return err
		}
	}
	if o.Metadata != nil && o.Metadata.Info != nil {
		if err := o.Metadata.Info.Validate(); err != nil {
			return err
		}
	}
	if err := errors.ValidateWorkers(o.Workers); err != nil {
		return err
	}
	if o.Workers == 0 {
		o.Workers = DefaultWorkers()
	}
	if o.Window < 0 {
		return errors.New(errors.ErrCodeInvalidInput, "window must be positive, got %d", o.Window)
	}
	if o.Window == 0 {
		o.Window = WindowPerWorker * o.Workers
	}
	if o.Window < o.Workers {
		o.Window = o.Workers
	}
	if o.Decode.Render && o.Decode.DPI < 0 {
		return errors.New(errors.ErrCodeInvalidInput, "dpi must be positive, got %d", o.Decode.DPI)
	}
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	o.validated = true
	return nil
}

// Dest returns the archive path the options resolve to.
func (o *Options) Dest() string {
	return filepath.Join(o.Outdir, o.Name+archive.Ext)
}

func (o *Options) archiveOptions() archive.Options {
	return archive.Options{
		Deflate:  o.Deflate,
		Level:    o.CompressionLevel,
		Metadata: o.Metadata,
		Create:   o.Create,
	}
}

// =============================================================================
// Result
// =============================================================================

// Result describes a finished build.
type Result struct {
	// RunID identifies the run in logs and metrics.
	RunID string
	Mode  string

	Output *archive.Output

	// Warning lists inputs that were skipped during discovery. It is nil
	// when nothing was skipped.
	Warning *errors.PartialDiscoveryWarning

	Stats     Stats
	CacheInfo CacheInfo
}

// Stats contains run statistics.
type Stats struct {
	SourcePages  int
	OutputPages  int
	SplitPages   int
	Skipped      int
	DiscoverTime time.Duration
	BuildTime    time.Duration
}

// CacheInfo tracks whether a convert run reused a cached decode.
type CacheInfo struct {
	DecodeHit bool
}
