package cli

import (
	"cmp"
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/cbzkit/pkg/decode"
	"github.com/matzehuels/cbzkit/pkg/errors"
	"github.com/matzehuels/cbzkit/pkg/decode/pdf"
	"github.com/matzehuels/cbzkit/pkg/pipeline"
	"github.com/matzehuels/cbzkit/pkg/source"
)

type convertOpts struct {
	from    string
	render  bool
	dpi     int
	refresh bool
}

// convertCommand creates the convert command.
func (c *CLI) convertCommand() *cobra.Command {
	var (
		opts  convertOpts
		flags buildFlags
	)

	cmd := &cobra.Command{
		Use:   "convert <file> [--from format]",
		Short: "Convert a pdf, epub, mobi or azw3 book into a CBZ archive",
		Long: fmt.Sprintf(`Convert a book into a CBZ archive.

The format is taken from --from or, when omitted, from the file extension.
Supported formats: %s.

pdf pages contribute their first embedded image; --pdf-render rasterizes
each page with pdftoppm instead. mobi and azw3 images follow the order in
which the book references them. DRM-protected books are rejected.

Decoded pages are cached by file content, so converting the same book
again with different transforms skips decoding. --refresh forces a new
decode.`, strings.Join(decode.Names(), ", ")),
		Example: `  cbzkit convert book.azw3
  cbzkit convert scan.pdf --pdf-render --dpi 200 -n scan
  cbzkit convert manga.epub --autosplit --reading-order rtl`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runConvert(cmd.Context(), args[0], opts, flags.options(cmd, c.Config))
		},
	}

	cmd.Flags().StringVar(&opts.from, "from", "", "source format: "+strings.Join(decode.Names(), ", ")+" (default: file extension)")
	cmd.Flags().BoolVar(&opts.render, "pdf-render", false, "render pdf pages with pdftoppm instead of extracting images")
	cmd.Flags().IntVar(&opts.dpi, "dpi", 0, fmt.Sprintf("render resolution for --pdf-render (default: config or %d)", pdf.DefaultDPI))
	cmd.Flags().BoolVar(&opts.refresh, "refresh", false, "ignore cached decodes")
	_ = cmd.RegisterFlagCompletionFunc("from", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return decode.Names(), cobra.ShellCompDirectiveNoFileComp
	})
	flags.register(cmd, false)

	return cmd
}

func (c *CLI) runConvert(ctx context.Context, path string, co convertOpts, opts pipeline.Options) error {
	logger := loggerFromContext(ctx)

	container, err := sourceFormat(co.from, path)
	if err != nil {
		return err
	}
	if opts.Name == "" {
		opts.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	opts.Decode = source.DecodeOptions{Render: co.render}
	if co.render {
		opts.Decode.DPI = cmp.Or(co.dpi, c.Config.DPI, pdf.DefaultDPI)
	}
	opts.Refresh = co.refresh

	runner := c.newRunner(ctx, true)
	defer runner.Close()

	fb := c.newFeedback(ctx, "decoding "+container.Name)
	opts.Progress = fb.hook()

	prog := newProgress(logger)
	res, err := runner.Convert(ctx, path, container, opts)
	fb.finish(err)
	if err != nil {
		return err
	}
	prog.done("Converted " + plural(res.Stats.OutputPages, "page"))

	cs := cacheFresh
	if res.CacheInfo.DecodeHit {
		cs = cacheHit
	}
	printResult("Converted", res, cs)
	return nil
}

// sourceFormat resolves the declared format, falling back to the file
// extension when from is empty.
func sourceFormat(from, path string) (*source.Container, error) {
	if from != "" {
		return decode.Find(from)
	}
	ext := filepath.Ext(path)
	if ext == "" {
		return nil, errors.New(errors.ErrCodeInvalidInput, "cannot tell the format of %s: pass --from (%s)", path, strings.Join(decode.Names(), ", "))
	}
	return decode.Find(ext)
}
