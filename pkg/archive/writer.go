// Package archive reads and writes CBZ files.
//
// A CBZ is a zip whose entries are page images named by their position:
// "1.png" … "9.png" for nine pages, "001.jpg" … "150.jpg" for 150. The
// padding width is the digit count of the total, so lexical and numeric
// order agree in every reader.
//
// # Writing
//
// [Create] opens a temporary file next to the destination. Pages are
// appended with [Writer.Add] in final order and [Writer.Close] renames the
// temporary file into place. Any failure, or [Writer.Abort], removes the
// temporary file, so the destination either holds a complete archive or is
// left untouched.
//
// Output is deterministic: entries carry a zero modification time and no
// extra fields, and are stored unless a deflate level is configured
// (github.com/klauspost/compress/flate).
//
// # Reading
//
// [Open] lists the entries and decodes the ComicBookInfo metadata kept in
// the zip comment.
package archive

import (
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zip"

	"github.com/matzehuels/cbzkit/pkg/errors"
	"github.com/matzehuels/cbzkit/pkg/page"
)

// MaxEntries is the largest number of pages one archive may hold.
const MaxEntries = math.MaxUint16

// Ext is the archive file extension.
const Ext = ".cbz"

// File is the destination a Writer serializes into.
type File interface {
	io.Writer
	io.Closer
}

// CreateFunc creates the temporary file at path.
type CreateFunc func(path string) (File, error)

func createFile(path string) (File, error) {
	return os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644)
}

// Options configures a Writer.
type Options struct {
	// Deflate enables compression at Level. Entries are stored otherwise.
	Deflate bool
	// Level is the deflate level, 0-9. Ignored unless Deflate is set.
	Level int
	// Metadata is written to the zip comment when non-nil.
	Metadata *Metadata
	// Create opens the temporary file. Defaults to an exclusive os.OpenFile.
	Create CreateFunc
}

// Output describes a finished archive.
type Output struct {
	Path    string
	Entries []string
	Pages   int
	Bytes   int64
}

// Writer streams pages into a new archive.
type Writer struct {
	dest    string
	tmp     string
	file    File
	counter *countingWriter
	zw      *zip.Writer
	width   int
	total   int
	method  uint16
	entries []string
	done    bool
}

// EntryName returns the name of the n-th entry (1-based) of an archive
// with total entries.
func EntryName(n, total int, f page.Format) string {
	return fmt.Sprintf("%0*d.%s", Width(total), n, f.Ext())
}

// Width returns the zero-padding width for total entries.
func Width(total int) int {
	if total < 1 {
		return 1
	}
	return len(strconv.Itoa(total))
}

// Create starts an archive at dest that will hold exactly total pages.
func Create(dest string, total int, opts Options) (*Writer, error) {
	if total <= 0 {
		return nil, &errors.EmptyInputError{Input: dest, Reason: "archive would have no pages"}
	}
	if total > MaxEntries {
		return nil, &errors.WriteError{Path: dest, Err: errors.New(errors.ErrCodeArchiveTooLarge,
			"%d pages exceed the %d entry limit", total, MaxEntries)}
	}
	if opts.Deflate {
		if err := errors.ValidateCompressionLevel(opts.Level); err != nil {
			return nil, err
		}
	}
	comment, err := EncodeComment(opts.Metadata)
	if err != nil {
		return nil, err
	}

	create := opts.Create
	if create == nil {
		create = createFile
	}
	tmp := filepath.Join(filepath.Dir(dest), "."+filepath.Base(dest)+".tmp-"+uuid.NewString())
	f, err := create(tmp)
	if err != nil {
		return nil, &errors.WriteError{Path: dest, Err: err}
	}

	counter := &countingWriter{w: f}
	zw := zip.NewWriter(counter)
	method := zip.Store
	if opts.Deflate {
		level := opts.Level
		zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
			return flate.NewWriter(out, level)
		})
		method = zip.Deflate
	}
	if comment != "" {
		if err := zw.SetComment(comment); err != nil {
			_ = f.Close()
			_ = os.Remove(tmp)
			return nil, &errors.WriteError{Path: dest, Err: err}
		}
	}

	return &Writer{
		dest:    dest,
		tmp:     tmp,
		file:    f,
		counter: counter,
		zw:      zw,
		width:   Width(total),
		total:   total,
		method:  method,
		entries: make([]string, 0, total),
	}, nil
}

// Add appends p as the next entry. On error the archive is aborted.
func (w *Writer) Add(p page.Page) error {
	if w.done {
		return &errors.WriteError{Path: w.dest, Err: fmt.Errorf("writer is closed")}
	}
	if len(w.entries) >= w.total {
		return w.fail(errors.New(errors.ErrCodeInternal, "more than the %d planned pages", w.total))
	}

	data, err := p.Bytes()
	if err != nil {
		return w.fail(fmt.Errorf("read page %q: %w", p.ID, err))
	}

	name := EntryName(len(w.entries)+1, w.total, p.Format)
	hdr := &zip.FileHeader{Name: name, Method: w.method}
	hdr.SetMode(0o644)
	ew, err := w.zw.CreateHeader(hdr)
	if err != nil {
		return w.fail(err)
	}
	if _, err := ew.Write(data); err != nil {
		return w.fail(err)
	}
	w.entries = append(w.entries, name)
	return nil
}

// Close finishes the archive and moves it to its destination.
func (w *Writer) Close() (*Output, error) {
	if w.done {
		return nil, &errors.WriteError{Path: w.dest, Err: fmt.Errorf("writer is closed")}
	}
	if len(w.entries) != w.total {
		return nil, w.fail(errors.New(errors.ErrCodeInternal, "wrote %d of %d planned pages", len(w.entries), w.total))
	}
	if err := w.zw.Close(); err != nil {
		return nil, w.fail(err)
	}
	if s, ok := w.file.(interface{ Sync() error }); ok {
		if err := s.Sync(); err != nil {
			return nil, w.fail(err)
		}
	}
	w.done = true
	if err := w.file.Close(); err != nil {
		_ = os.Remove(w.tmp)
		return nil, &errors.WriteError{Path: w.dest, Err: err}
	}
	if err := os.Rename(w.tmp, w.dest); err != nil {
		_ = os.Remove(w.tmp)
		return nil, &errors.WriteError{Path: w.dest, Err: err}
	}

	return &Output{
		Path:    w.dest,
		Entries: w.entries,
		Pages:   len(w.entries),
		Bytes:   w.counter.n,
	}, nil
}

// Abort discards the archive. It is safe to call after Close or a failed
// Add.
func (w *Writer) Abort() error {
	if w.done {
		return nil
	}
	w.done = true
	_ = w.file.Close()
	if err := os.Remove(w.tmp); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (w *Writer) fail(err error) error {
	_ = w.Abort()
	return &errors.WriteError{Path: w.dest, Err: err}
}

// Write creates dest from pages in one call.
func Write(pages []page.Page, dest string, opts Options) (*Output, error) {
	w, err := Create(dest, len(pages), opts)
	if err != nil {
		return nil, err
	}
	for _, p := range pages {
		if err := w.Add(p); err != nil {
			return nil, err
		}
	}
	return w.Close()
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
