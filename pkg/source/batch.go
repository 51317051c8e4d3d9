// Package source turns inputs into ordered batches of pages.
//
// Three kinds of input are supported:
//
//   - Loose image files: paths, globs or directories ([OpenFiles])
//   - Existing archives: zip/cbz files ([OpenArchive])
//   - Foreign containers: pdf, epub, mobi, azw3 through a [Decoder]
//     ([OpenContainer])
//
// Every adapter records the inputs it could not use in [Batch.Skipped]
// instead of failing, and fails with an EmptyInputError only when no
// usable page remains. File and archive pages are loaded lazily.
package source

import (
	"io"

	"github.com/matzehuels/cbzkit/pkg/errors"
	"github.com/matzehuels/cbzkit/pkg/natsort"
	"github.com/matzehuels/cbzkit/pkg/page"
)

// Batch is the ordered page list produced from one source.
type Batch struct {
	// Source names where the pages came from.
	Source string
	// Pages in source order.
	Pages []page.Page
	// Skipped inputs with the reason each was dropped.
	Skipped []errors.Skipped

	closers []io.Closer
}

// Order sorts the pages naturally by ID. Pages with equal IDs keep their
// discovery order. Indices are left untouched.
func (b *Batch) Order() {
	natsort.Sort(b.Pages, func(p page.Page) string { return p.ID })
}

// Warning returns the skipped inputs as a warning, or nil when nothing
// was skipped.
func (b *Batch) Warning() *errors.PartialDiscoveryWarning {
	if len(b.Skipped) == 0 {
		return nil
	}
	return &errors.PartialDiscoveryWarning{Skipped: append([]errors.Skipped(nil), b.Skipped...)}
}

// Close releases files kept open for lazy page loading. Pages must not be
// read after Close.
func (b *Batch) Close() error {
	var first error
	for _, c := range b.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	b.closers = nil
	return first
}

// Concat appends other to b, taking over its open files.
func (b *Batch) Concat(other *Batch) {
	b.Pages = append(b.Pages, other.Pages...)
	b.Skipped = append(b.Skipped, other.Skipped...)
	b.closers = append(b.closers, other.closers...)
	other.closers = nil
}

func (b *Batch) skip(input string, err error) {
	b.Skipped = append(b.Skipped, errors.Skipped{Input: input, Err: err})
}
