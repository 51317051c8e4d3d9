// Package page defines the unit of work shared by every cbzkit stage.
//
// A [Page] is an identified, encoded image. Its bytes may be held in memory
// or loaded on demand from where the page was discovered (a file on disk or
// a zip entry), so a batch of thousands of pages does not have to fit in
// memory at once. Pages are immutable: stages that change an image produce
// new pages instead of modifying the ones they were given.
//
// Importing this package registers the WEBP, BMP and TIFF decoders from
// golang.org/x/image alongside the standard PNG, JPEG and GIF ones, so
// [image.Decode] understands every [Format].
package page

import (
	"bytes"
	"image"
	"io"

	// Register decoders for every supported format.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Opener returns a reader over the encoded bytes of a page.
type Opener func() (io.ReadCloser, error)

// Page is one encoded image in a batch.
type Page struct {
	// ID identifies the page within its source, typically the file or
	// entry name. It drives natural ordering.
	ID string
	// Index is the position at which the page was discovered, or -1.
	Index int
	// Format is the image encoding of the bytes.
	Format Format

	data []byte
	open Opener
}

// New returns a page whose bytes are already in memory.
func New(id string, index int, format Format, data []byte) Page {
	return Page{ID: id, Index: index, Format: format, data: data}
}

// Lazy returns a page whose bytes are read through open when needed.
// open may be called more than once and must yield the same bytes each
// time.
func Lazy(id string, index int, format Format, open Opener) Page {
	return Page{ID: id, Index: index, Format: format, open: open}
}

// Bytes returns the encoded image. For lazy pages every call reads the
// source again; callers that need the bytes twice should keep the result.
func (p Page) Bytes() ([]byte, error) {
	if p.open == nil {
		return p.data, nil
	}
	rc, err := p.open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// Loaded reports whether the bytes are held in memory.
func (p Page) Loaded() bool { return p.open == nil }

// WithIndex returns a copy of p at a new discovery index.
func (p Page) WithIndex(i int) Page {
	p.Index = i
	return p
}

// Open returns a reader over the page bytes. Lazy pages are streamed from
// their source, so reading a prefix only costs the prefix.
func (p Page) Open() (io.ReadCloser, error) {
	if p.open != nil {
		return p.open()
	}
	return io.NopCloser(bytes.NewReader(p.data)), nil
}

// Config decodes only the image header and returns its dimensions.
func Config(data []byte) (image.Config, Format, error) {
	return ReadConfig(bytes.NewReader(data))
}

// ReadConfig is Config over a reader. It consumes little more than the
// header.
func ReadConfig(r io.Reader) (image.Config, Format, error) {
	cfg, name, err := image.DecodeConfig(r)
	if err != nil {
		return image.Config{}, Unknown, err
	}
	return cfg, FromName(name), nil
}

// Decode decodes the full image.
func Decode(data []byte) (image.Image, Format, error) {
	img, name, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, Unknown, err
	}
	return img, FromName(name), nil
}
