// Package merge concatenates existing archives into one page sequence.
//
// [Discover] finds archives by glob, keeps those whose base name contains a
// filter, and orders them naturally by path (vol2 before vol10).
// [Ordered] opens each archive in that order, orders its pages naturally
// and appends them. Archives that cannot be opened are skipped and
// reported in the batch.
package merge

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/matzehuels/cbzkit/pkg/errors"
	"github.com/matzehuels/cbzkit/pkg/natsort"
	"github.com/matzehuels/cbzkit/pkg/source"
)

// Descriptor identifies one archive to merge.
type Descriptor struct {
	Path string
	// OrderKey is the string the archive is ordered by.
	OrderKey string
}

// Discover returns the archives matching pattern whose base name contains
// filter (case-sensitive; empty matches all), in natural path order.
func Discover(pattern, filter string) ([]Descriptor, error) {
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "bad pattern %q", pattern)
	}

	var out []Descriptor
	for _, m := range matches {
		if filter != "" && !strings.Contains(filepath.Base(m), filter) {
			continue
		}
		if info, err := os.Stat(m); err != nil || info.IsDir() {
			continue
		}
		out = append(out, Descriptor{Path: m, OrderKey: m})
	}
	if len(out) == 0 {
		reason := "no archives matched"
		if filter != "" {
			reason = fmt.Sprintf("no archives matched filter %q", filter)
		}
		return nil, &errors.EmptyInputError{Input: pattern, Reason: reason}
	}

	natsort.Sort(out, func(d Descriptor) string { return d.OrderKey })
	return out, nil
}

// Ordered opens every archive in descriptor order and concatenates their
// naturally ordered pages. The returned batch keeps the archives open
// until it is closed. Page indices are renumbered across the whole batch.
func Ordered(ctx context.Context, descs []Descriptor) (*source.Batch, error) {
	merged := &source.Batch{Source: describe(descs)}
	for _, d := range descs {
		if err := ctx.Err(); err != nil {
			_ = merged.Close()
			return nil, err
		}
		b, err := source.OpenArchive(d.Path)
		if err != nil {
			merged.Skipped = append(merged.Skipped, errors.Skipped{Input: d.Path, Err: err})
			continue
		}
		merged.Concat(b)
	}

	if len(merged.Pages) == 0 {
		_ = merged.Close()
		return nil, &errors.EmptyInputError{Input: merged.Source, Reason: "no readable pages in any archive"}
	}
	for i := range merged.Pages {
		merged.Pages[i] = merged.Pages[i].WithIndex(i)
	}
	return merged, nil
}

func describe(descs []Descriptor) string {
	switch len(descs) {
	case 0:
		return ""
	case 1:
		return descs[0].Path
	}
	return descs[0].Path + " … " + descs[len(descs)-1].Path
}
