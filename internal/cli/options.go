package cli

import (
	"cmp"
	"time"

	"github.com/spf13/cobra"

	"github.com/matzehuels/cbzkit/internal/config"
	"github.com/matzehuels/cbzkit/pkg/archive"
	"github.com/matzehuels/cbzkit/pkg/pipeline"
	"github.com/matzehuels/cbzkit/pkg/transform"
)

// buildFlags are the flags shared by every command that writes an archive.
type buildFlags struct {
	name             string
	outdir           string
	compressionLevel int

	autosplit    bool
	readingOrder string
	contrast     float64
	brightness   float64
	blur         float64

	meta metaFlags
}

// metaFlags fill the ComicBookInfo record written to the archive comment.
type metaFlags struct {
	title     string
	series    string
	publisher string
	language  string
	volume    int
	issue     int
	tags      []string
	stamp     bool
}

// register adds the output, transform and metadata flags to cmd.
// requireName marks --name as required.
func (f *buildFlags) register(cmd *cobra.Command, requireName bool) {
	fl := cmd.Flags()
	fl.StringVarP(&f.name, "name", "n", "", "archive name without extension")
	fl.StringVarP(&f.outdir, "outdir", "o", "", "output directory (default: config outdir or current directory)")
	fl.IntVar(&f.compressionLevel, "compression-level", 0, "deflate entries at this level (0-9); entries are stored when unset")
	if requireName {
		_ = cmd.MarkFlagRequired("name")
	}

	fl.BoolVarP(&f.autosplit, "autosplit", "s", false, "split landscape pages into two portrait halves")
	fl.StringVar(&f.readingOrder, "reading-order", "", "order of split halves: ltr or rtl (default: config or ltr)")
	fl.Float64Var(&f.contrast, "contrast", 0, "contrast delta, >= -1 (0 = unchanged)")
	fl.Float64Var(&f.brightness, "brightness", 0, "brightness delta in channel units, -255..255")
	fl.Float64Var(&f.blur, "blur", 0, "gaussian blur sigma (0 = off)")

	fl.StringVar(&f.meta.title, "title", "", "metadata: title")
	fl.StringVar(&f.meta.series, "series", "", "metadata: series")
	fl.StringVar(&f.meta.publisher, "publisher", "", "metadata: publisher")
	fl.StringVar(&f.meta.language, "language", "", "metadata: language")
	fl.IntVar(&f.meta.volume, "volume", 0, "metadata: volume number")
	fl.IntVar(&f.meta.issue, "issue", 0, "metadata: issue number")
	fl.StringSliceVar(&f.meta.tags, "tag", nil, "metadata: tag (repeatable)")
	fl.BoolVar(&f.meta.stamp, "stamp", false, "record the build time in the metadata (output is no longer reproducible)")
}

// options merges the flags with the config defaults. Flags win; the
// pipeline validates the result.
func (f *buildFlags) options(cmd *cobra.Command, cfg *config.Config) pipeline.Options {
	opts := pipeline.Options{
		Name:   f.name,
		Outdir: cmp.Or(f.outdir, cfg.Outdir),
		Transform: transform.Spec{
			Autosplit:    f.autosplit,
			ReadingOrder: transform.ReadingOrder(cmp.Or(f.readingOrder, cfg.ReadingOrder)),
			Contrast:     f.contrast,
			Brightness:   f.brightness,
			Blur:         f.blur,
		},
		Workers:  cfg.Workers,
		Metadata: f.meta.metadata(time.Now()),
	}
	switch {
	case cmd.Flags().Changed("compression-level"):
		opts.Deflate, opts.CompressionLevel = true, f.compressionLevel
	case cfg.CompressionLevel != nil:
		opts.Deflate, opts.CompressionLevel = true, *cfg.CompressionLevel
	}
	return opts
}

// metadata returns nil when no metadata flag is set.
func (m *metaFlags) metadata(now time.Time) *archive.Metadata {
	info := &archive.ComicBookInfo{
		Title:     m.title,
		Series:    m.series,
		Publisher: m.publisher,
		Language:  m.language,
		Volume:    m.volume,
		Issue:     m.issue,
		Tags:      m.tags,
	}
	if info.Empty() && !m.stamp {
		return nil
	}

	md := &archive.Metadata{AppID: archive.AppID}
	if !info.Empty() {
		md.Info = info
	}
	if m.stamp {
		t := now.UTC().Truncate(time.Second)
		md.LastModified = &t
	}
	return md
}
