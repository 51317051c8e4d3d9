package source

import (
	"io"

	"github.com/matzehuels/cbzkit/pkg/archive"
	"github.com/matzehuels/cbzkit/pkg/errors"
)

// OpenArchive reads the image entries of a zip or cbz file. The archive
// stays open until the batch is closed. Directory entries are ignored and
// non-image entries are skipped. The batch is returned in natural entry
// name order.
func OpenArchive(path string) (*Batch, error) {
	r, err := archive.Open(path)
	if err != nil {
		return nil, err
	}

	pages, skipped := r.Pages()
	if len(pages) == 0 {
		_ = r.Close()
		return nil, &errors.EmptyInputError{Input: path, Reason: "archive has no image entries"}
	}

	b := &Batch{
		Source:  path,
		Pages:   pages,
		Skipped: skipped,
		closers: []io.Closer{r},
	}
	b.Order()
	return b, nil
}
