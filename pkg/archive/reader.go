package archive

import (
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/zip"

	"github.com/matzehuels/cbzkit/pkg/errors"
	"github.com/matzehuels/cbzkit/pkg/page"
)

// Entry is one file in an archive.
type Entry struct {
	Name           string
	Size           uint64
	CompressedSize uint64
	Method         uint16
	Format         page.Format
}

// Reader gives access to an existing archive. Pages returned by
// [Reader.Pages] read from the open file, so the Reader must stay open
// until they have been consumed.
type Reader struct {
	path     string
	zr       *zip.ReadCloser
	Metadata *Metadata
}

// Open opens the archive at path. A comment that is not ComicBookInfo
// JSON is ignored rather than failing the open.
func Open(path string) (*Reader, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open archive %s: %w", path, err)
	}
	meta, _ := DecodeComment(zr.Comment)
	return &Reader{path: path, zr: zr, Metadata: meta}, nil
}

// Path returns the archive location.
func (r *Reader) Path() string { return r.path }

// Comment returns the raw zip comment.
func (r *Reader) Comment() string { return r.zr.Comment }

// Entries lists every non-directory entry in archive order.
func (r *Reader) Entries() []Entry {
	out := make([]Entry, 0, len(r.zr.File))
	for _, f := range r.zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		out = append(out, Entry{
			Name:           f.Name,
			Size:           f.UncompressedSize64,
			CompressedSize: f.CompressedSize64,
			Method:         f.Method,
			Format:         page.FromExt(extOf(f.Name)),
		})
	}
	return out
}

// Pages returns the image entries in archive order as lazily loaded pages.
// Entries whose content is not a recognised image are returned in skipped.
func (r *Reader) Pages() (pages []page.Page, skipped []errors.Skipped) {
	for _, f := range r.zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		input := r.path + ":" + f.Name
		format, err := sniffEntry(f)
		if err != nil {
			skipped = append(skipped, errors.Skipped{Input: input, Err: err})
			continue
		}
		if format == page.Unknown {
			skipped = append(skipped, errors.Skipped{Input: input, Err: fmt.Errorf("not an image")})
			continue
		}
		pages = append(pages, page.Lazy(f.Name, len(pages), format, f.Open))
	}
	return pages, skipped
}

// Close releases the archive file.
func (r *Reader) Close() error { return r.zr.Close() }

func sniffEntry(f *zip.File) (page.Format, error) {
	rc, err := f.Open()
	if err != nil {
		return page.Unknown, err
	}
	defer rc.Close()

	header := make([]byte, page.SniffLen)
	n, err := io.ReadFull(rc, header)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return page.Unknown, err
	}
	return page.Sniff(header[:n]), nil
}

func extOf(name string) string {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[i+1:]
	}
	return ""
}
