package pipeline

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/cbzkit/pkg/archive"
	"github.com/matzehuels/cbzkit/pkg/observability"
	"github.com/matzehuels/cbzkit/pkg/page"
	"github.com/matzehuels/cbzkit/pkg/transform"
)

// plan returns the number of output pages of every source page, reading
// headers on the worker pool.
func plan(ctx context.Context, spec transform.Spec, pages []page.Page, workers int) ([]int, error) {
	counts := make([]int, len(pages))
	if !spec.Autosplit {
		for i := range counts {
			counts[i] = 1
		}
		return counts, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, p := range pages {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			n, err := transform.Plan(spec, p)
			counts[i] = n
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return counts, nil
}

// transformed is the output of one source page, tagged with its position.
type transformed struct {
	seq   int
	pages []page.Page
}

// execute transforms pages concurrently and adds the results to w strictly
// in sequence order. At most opts.Window pages are between scheduling and
// writing at any time. It returns the number of split source pages.
//
// On cancellation no further page is scheduled, in-flight pages finish and
// ctx's error is returned. The caller owns w and must abort it on error.
func execute(ctx context.Context, pages []page.Page, w *archive.Writer, opts *Options) (int, error) {
	parent := ctx
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	var (
		results = make(chan transformed, opts.Window)
		tokens  = make(chan struct{}, opts.Window)
		written = make(chan writeResult, 1)
	)
	go func() {
		written <- writeOrdered(results, tokens, w, len(pages), opts.Progress, cancel)
	}()

	hooks := observability.Pipeline()
	g := new(errgroup.Group)
	g.SetLimit(opts.Workers)

schedule:
	for i, p := range pages {
		select {
		case tokens <- struct{}{}:
		case <-ctx.Done():
			break schedule
		}
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			start := time.Now()
			out, err := transform.Apply(opts.Transform, p)
			hooks.OnPageTransformed(ctx, len(out), time.Since(start), err)
			if err != nil {
				cancel(err)
				return err
			}
			results <- transformed{seq: i, pages: out}
			return nil
		})
	}

	workErr := g.Wait()
	close(results)
	res := <-written

	switch {
	case workErr != nil:
		return res.split, workErr
	case res.err != nil:
		return res.split, res.err
	case parent.Err() != nil:
		return res.split, parent.Err()
	case res.next != len(pages):
		return res.split, context.Cause(ctx)
	}
	return res.split, nil
}

type writeResult struct {
	next  int
	split int
	err   error
}

// writeOrdered is the reorder buffer: results arrive in any order and are
// handed to w by ascending seq. Each written source page returns one
// scheduling token.
func writeOrdered(
	results <-chan transformed,
	tokens <-chan struct{},
	w *archive.Writer,
	total int,
	progress func(done, total int),
	cancel context.CancelCauseFunc,
) writeResult {
	var res writeResult
	pending := make(map[int][]page.Page)
	for r := range results {
		if res.err != nil {
			continue
		}
		pending[r.seq] = r.pages
		for {
			out, ok := pending[res.next]
			if !ok {
				break
			}
			delete(pending, res.next)
			for _, p := range out {
				if err := w.Add(p); err != nil {
					res.err = err
					cancel(err)
					break
				}
			}
			if res.err != nil {
				break
			}
			if len(out) > 1 {
				res.split++
			}
			res.next++
			<-tokens
			if progress != nil {
				progress(res.next, total)
			}
		}
	}
	return res
}
