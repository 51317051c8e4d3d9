package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/matzehuels/cbzkit/pkg/merge"
	"github.com/matzehuels/cbzkit/pkg/pipeline"
)

type mergeOpts struct {
	pattern     string
	filter      string
	interactive bool
}

// mergeCommand creates the merge command.
func (c *CLI) mergeCommand() *cobra.Command {
	var (
		opts  mergeOpts
		flags buildFlags
	)

	cmd := &cobra.Command{
		Use:   "merge -g glob -n name",
		Short: "Merge existing archives into one",
		Long: `Merge the archives matching a glob into a single CBZ archive.

Archives are ordered naturally by path (vol2 before vol10), their pages
ordered naturally within each archive, and every page renumbered across
the result. --filter keeps only archives whose file name contains the
given text. Archives that cannot be opened are skipped and listed.`,
		Example: `  cbzkit merge -g 'series/*.cbz' -n omnibus
  cbzkit merge -g 'downloads/*.cbz' -f "One Piece" -n one-piece --interactive`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runMerge(cmd.Context(), opts, flags.options(cmd, c.Config))
		},
	}

	cmd.Flags().StringVarP(&opts.pattern, "glob", "g", "", "glob selecting the archives to merge")
	cmd.Flags().StringVarP(&opts.filter, "filter", "f", "", "keep archives whose file name contains this text")
	cmd.Flags().BoolVarP(&opts.interactive, "interactive", "i", false, "choose the archives to merge interactively")
	_ = cmd.MarkFlagRequired("glob")
	flags.register(cmd, true)

	return cmd
}

func (c *CLI) runMerge(ctx context.Context, mo mergeOpts, opts pipeline.Options) error {
	logger := loggerFromContext(ctx)
	runner := c.newRunner(ctx, false)
	defer runner.Close()

	var descs []merge.Descriptor
	if mo.interactive {
		found, err := merge.Discover(mo.pattern, mo.filter)
		if err != nil {
			return err
		}
		descs, err = pickArchives(found)
		if err != nil {
			return err
		}
		if len(descs) == 0 {
			printInfo("Nothing selected")
			return nil
		}
		logger.Debug("archives selected", "count", len(descs), "of", len(found))
	}

	fb := c.newFeedback(ctx, "opening archives")
	opts.Progress = fb.hook()

	prog := newProgress(logger)
	var (
		res *pipeline.Result
		err error
	)
	if descs != nil {
		res, err = runner.MergeArchives(ctx, descs, opts)
	} else {
		res, err = runner.Merge(ctx, mo.pattern, mo.filter, opts)
	}
	fb.finish(err)
	if err != nil {
		return err
	}
	prog.done("Merged " + plural(res.Stats.OutputPages, "page"))

	printResult("Merged", res, cacheUnused)
	return nil
}
