package source

import (
	"context"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/matzehuels/cbzkit/pkg/errors"
	"github.com/matzehuels/cbzkit/pkg/page"
)

// RawPage is one page produced by a Decoder.
type RawPage struct {
	ID     string
	Data   []byte
	Format page.Format // Unknown lets the adapter sniff Data
	// Err marks a page the decoder found but could not read. The page is
	// recorded as skipped.
	Err error
}

// Decoder extracts the page images of a foreign container in reading
// order. Implementations must honour ctx for long-running work.
type Decoder interface {
	Decode(ctx context.Context, path string) ([]RawPage, error)
}

// DecoderFunc adapts a function to the Decoder interface.
type DecoderFunc func(ctx context.Context, path string) ([]RawPage, error)

// Decode calls f.
func (f DecoderFunc) Decode(ctx context.Context, path string) ([]RawPage, error) {
	return f(ctx, path)
}

// DecodeOptions tune decoders. Decoders ignore options that do not apply
// to them.
type DecodeOptions struct {
	// Render rasterizes pdf pages instead of extracting embedded images.
	Render bool
	// DPI is the render resolution.
	DPI int
}

// Key returns a stable string for cache keys.
func (o DecodeOptions) Key() string {
	if !o.Render {
		return "extract"
	}
	return fmt.Sprintf("render:%d", o.DPI)
}

// Container describes a foreign container format.
type Container struct {
	// Name is the canonical format name used on the command line.
	Name string
	// Aliases are alternative names accepted for the format.
	Aliases []string
	// Extensions lists file extensions, with dot, for documentation.
	Extensions []string
	// NewDecoder returns a decoder configured by opts.
	NewDecoder func(opts DecodeOptions) Decoder
}

// Matches reports whether name refers to this container.
func (c *Container) Matches(name string) bool {
	name = strings.ToLower(strings.TrimPrefix(name, "."))
	return name == c.Name || slices.Contains(c.Aliases, name)
}

// OpenContainer decodes the container at path with dec. The batch keeps
// the decoder's order. Pages whose bytes are not a known image are skipped.
func OpenContainer(ctx context.Context, path string, dec Decoder) (*Batch, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, &errors.EmptyInputError{Input: path, Reason: "path does not exist"}
	}

	raw, err := dec.Decode(ctx, path)
	if err != nil {
		return nil, err
	}

	b := &Batch{Source: path}
	for _, rp := range raw {
		if rp.Err != nil {
			b.skip(path+":"+rp.ID, rp.Err)
			continue
		}
		f := rp.Format
		if !f.Valid() {
			f = page.Sniff(rp.Data)
		}
		if f == page.Unknown {
			b.skip(path+":"+rp.ID, fmt.Errorf("not a supported image"))
			continue
		}
		b.Pages = append(b.Pages, page.New(rp.ID, len(b.Pages), f, rp.Data))
	}
	if len(b.Pages) == 0 {
		return nil, &errors.EmptyInputError{Input: path, Reason: "no page images found"}
	}
	return b, nil
}
