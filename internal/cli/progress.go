package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
)

// feedback shows a spinner while a run discovers or decodes its pages and
// swaps it for a page progress bar once the first page is written. The
// pipeline reports progress from a single writer goroutine, and finish is
// only called after the run has returned, so no locking is needed.
type feedback struct {
	w       io.Writer
	spinner *Spinner
	bar     *progressbar.ProgressBar
}

// newFeedback shows desc next to the spinner. It returns nil when progress
// output is disabled or stderr is not a terminal. All feedback methods
// accept a nil receiver.
func (c *CLI) newFeedback(ctx context.Context, desc string) *feedback {
	if c.flags.noProgress || !isTerminal(os.Stderr) {
		return nil
	}
	return startFeedback(ctx, os.Stderr, desc)
}

func startFeedback(ctx context.Context, w io.Writer, desc string) *feedback {
	f := &feedback{w: w, spinner: newSpinnerWithContext(ctx, w, desc+"...")}
	f.spinner.Start()
	return f
}

// hook returns the callback for pipeline.Options.Progress.
func (f *feedback) hook() func(done, total int) {
	if f == nil {
		return nil
	}
	return f.update
}

func (f *feedback) update(done, total int) {
	if f.bar == nil {
		f.spinner.Stop()
		f.bar = newPageBar(f.w, total)
	}
	_ = f.bar.Set(done)
}

// finish clears the bar after a successful run and leaves it in place,
// on its own line, after a failure.
func (f *feedback) finish(err error) {
	if f == nil {
		return
	}
	f.spinner.Stop()
	if f.bar == nil {
		return
	}
	if err != nil {
		_ = f.bar.Exit()
		fmt.Fprintln(f.w)
		return
	}
	_ = f.bar.Finish()
}

func newPageBar(w io.Writer, total int) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription("writing"),
		progressbar.OptionSetWidth(30),
		progressbar.OptionShowCount(),
		progressbar.OptionSetItsString("pages"),
		progressbar.OptionShowIts(),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
