package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/matzehuels/cbzkit/pkg/pipeline"
)

// packCommand creates the pack command.
func (c *CLI) packCommand() *cobra.Command {
	var flags buildFlags

	cmd := &cobra.Command{
		Use:   "pack <file|dir|glob>... -n name",
		Short: "Pack images into a CBZ archive",
		Long: `Pack loose images, whole directories or glob matches into a CBZ archive.

Pages are ordered naturally by file name (page2 before page10) and renamed
to zero-padded numbers. Files that are not images are skipped and listed.
A single .cbz or .zip input is repacked, which is how transforms are
applied to an existing archive.`,
		Example: `  cbzkit pack scans/ -n "Vol 1"
  cbzkit pack 'ch01/*.png' 'ch02/*.png' -n ch01-02 -o out/
  cbzkit pack spread.cbz -n split --autosplit --reading-order rtl`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runPack(cmd.Context(), args, flags.options(cmd, c.Config))
		},
	}

	flags.register(cmd, true)
	return cmd
}

func (c *CLI) runPack(ctx context.Context, inputs []string, opts pipeline.Options) error {
	logger := loggerFromContext(ctx)
	runner := c.newRunner(ctx, false)
	defer runner.Close()

	fb := c.newFeedback(ctx, "reading pages")
	opts.Progress = fb.hook()

	prog := newProgress(logger)
	res, err := runner.Pack(ctx, inputs, opts)
	fb.finish(err)
	if err != nil {
		return err
	}
	prog.done("Packed " + plural(res.Stats.OutputPages, "page"))

	printResult("Packed", res, cacheUnused)
	return nil
}
