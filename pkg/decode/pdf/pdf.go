// Package pdf extracts page images from PDF files.
//
// Two strategies are available:
//
//   - Extract (default): the first embedded image of each page is taken as
//     the page, using github.com/pdfcpu/pdfcpu. This is lossless and fast
//     for scanned comics, where every page is a single image.
//   - Render: every page is rasterized with poppler's pdftoppm at a given
//     DPI. Use it for PDFs whose pages are not single images.
//
// Pages without an embedded image are skipped by the extract strategy.
package pdf

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/matzehuels/cbzkit/pkg/errors"
	"github.com/matzehuels/cbzkit/pkg/page"
	"github.com/matzehuels/cbzkit/pkg/source"
)

// DefaultDPI is the render resolution when none is given.
const DefaultDPI = 150

// Container describes the PDF format.
var Container = &source.Container{
	Name:       "pdf",
	Extensions: []string{".pdf"},
	NewDecoder: func(opts source.DecodeOptions) source.Decoder {
		if opts.Render {
			return &Renderer{DPI: opts.DPI}
		}
		return Extractor{}
	},
}

func init() {
	// Keep pdfcpu from writing its config directory under the user's home.
	api.DisableConfigDir()
}

// Extractor takes the first embedded image of every page.
type Extractor struct{}

// Decode implements source.Decoder.
func (Extractor) Decode(ctx context.Context, path string) ([]source.RawPage, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	first := make(map[int]source.RawPage)
	digest := func(img model.Image, _ bool, _ int) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, ok := first[img.PageNr]; ok {
			return nil
		}
		data, err := io.ReadAll(img)
		if err != nil {
			return fmt.Errorf("page %d: %w", img.PageNr, err)
		}
		first[img.PageNr] = source.RawPage{
			ID:     fmt.Sprintf("page-%d", img.PageNr),
			Data:   data,
			Format: formatOf(img.FileType, data),
		}
		return nil
	}

	if err := api.ExtractImages(f, nil, digest, conf); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if isEncrypted(path, err) {
			return nil, errors.Wrap(errors.ErrCodeDRMProtected, err, "pdf is encrypted")
		}
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "extract images from %s", path)
	}

	nums := make([]int, 0, len(first))
	for n := range first {
		nums = append(nums, n)
	}
	slices.Sort(nums)

	pages := make([]source.RawPage, 0, len(nums))
	for _, n := range nums {
		pages = append(pages, first[n])
	}
	return pages, nil
}

// formatOf maps pdfcpu's file type to a page format, falling back to
// sniffing when the type is not one of ours.
func formatOf(fileType string, data []byte) page.Format {
	if f := page.FromExt(fileType); f != page.Unknown {
		return f
	}
	return page.Sniff(data)
}

// wrongPassword is the message pdfcpu fails with when a user password is
// needed.
const wrongPassword = "please provide the correct password"

// isEncrypted reports whether a failed extraction was caused by
// encryption. The trailer's /Encrypt entry decides; pdfcpu's password
// error covers files whose trailer could not be located.
func isEncrypted(path string, err error) bool {
	if hasEncryptDict(path) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), wrongPassword)
}

// hasEncryptDict reports whether the file carries an /Encrypt dictionary
// reference, which every encrypted PDF has in its trailer or xref stream.
func hasEncryptDict(path string) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	return bytes.Contains(data, []byte("/Encrypt"))
}
