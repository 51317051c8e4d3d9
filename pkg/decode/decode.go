// Package decode is the registry of foreign container formats.
//
// Each format lives in its own subpackage and exports a
// [source.Container] describing it:
//
//   - [pdf]: embedded image extraction (pdfcpu) or pdftoppm rendering
//   - [epub]: spine-ordered images, DRM rejected
//   - [mobi]: MOBI 6 and KF8 (AZW3) image records in markup order
//
// Usage:
//
//	c, err := decode.Find("azw3")
//	dec := c.NewDecoder(source.DecodeOptions{})
//	batch, err := source.OpenContainer(ctx, "book.azw3", dec)
package decode

import (
	"strings"

	"github.com/matzehuels/cbzkit/pkg/decode/epub"
	"github.com/matzehuels/cbzkit/pkg/decode/mobi"
	"github.com/matzehuels/cbzkit/pkg/decode/pdf"
	"github.com/matzehuels/cbzkit/pkg/errors"
	"github.com/matzehuels/cbzkit/pkg/source"
)

// All lists every supported container format.
var All = []*source.Container{
	pdf.Container,
	epub.Container,
	mobi.Container,
	mobi.AZW3Container,
}

// Find returns the container registered under name or one of its aliases.
func Find(name string) (*source.Container, error) {
	for _, c := range All {
		if c.Matches(name) {
			return c, nil
		}
	}
	return nil, errors.New(errors.ErrCodeUnsupported, "unsupported source format %q (supported: %s)", name, strings.Join(Names(), ", "))
}

// Names returns the canonical format names.
func Names() []string {
	names := make([]string, len(All))
	for i, c := range All {
		names[i] = c.Name
	}
	return names
}
