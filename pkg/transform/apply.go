package transform

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"

	"github.com/matzehuels/cbzkit/pkg/errors"
	"github.com/matzehuels/cbzkit/pkg/page"
)

// Split half suffixes. The first half in reading order gets SuffixFirst.
const (
	SuffixFirst  = "-a"
	SuffixSecond = "-b"
)

// Plan returns the number of pages Apply will produce for p. Lazy pages
// are read only up to the end of their image header.
func Plan(spec Spec, p page.Page) (int, error) {
	if !spec.Autosplit {
		return 1, nil
	}
	rc, err := p.Open()
	if err != nil {
		return 0, fmt.Errorf("read page %q: %w", p.ID, err)
	}
	defer rc.Close()
	cfg, _, err := page.ReadConfig(rc)
	if err != nil {
		return 0, &errors.CorruptPageError{PageID: p.ID, Err: err}
	}
	if landscape(cfg.Width, cfg.Height) {
		return 2, nil
	}
	return 1, nil
}

func landscape(w, h int) bool { return w > h }

// Apply runs the spec on one page and returns the resulting pages in
// reading order. Every page is fully decoded, so truncated or damaged
// images fail with a CorruptPageError even when nothing changes. Pages
// that need no change keep their original bytes.
func Apply(spec Spec, p page.Page) ([]page.Page, error) {
	data, err := p.Bytes()
	if err != nil {
		return nil, fmt.Errorf("read page %q: %w", p.ID, err)
	}

	img, format, err := page.Decode(data)
	if err != nil {
		return nil, &errors.CorruptPageError{PageID: p.ID, Err: err}
	}
	b := img.Bounds()
	split := spec.Autosplit && landscape(b.Dx(), b.Dy())
	if !split && !spec.adjustsPixels() {
		return []page.Page{page.New(p.ID, p.Index, p.Format, data)}, nil
	}
	if format == page.Unknown {
		format = p.Format
	}

	type part struct {
		id  string
		img image.Image
	}
	parts := []part{{id: p.ID, img: img}}
	if split {
		left, right := halves(img)
		first, second := left, right
		if spec.ReadingOrder == RightToLeft {
			first, second = right, left
		}
		parts = []part{
			{id: p.ID + SuffixFirst, img: first},
			{id: p.ID + SuffixSecond, img: second},
		}
	}

	out := make([]page.Page, 0, len(parts))
	for _, pt := range parts {
		adjusted := adjust(spec, pt.img)
		encoded, outFormat, err := encode(adjusted, format)
		if err != nil {
			return nil, fmt.Errorf("encode page %q: %w", pt.id, err)
		}
		out = append(out, page.New(pt.id, p.Index, outFormat, encoded))
	}
	return out, nil
}

// halves cuts img vertically. For odd widths the right half gets the extra
// column.
func halves(img image.Image) (left, right image.Image) {
	b := img.Bounds()
	mid := b.Min.X + b.Dx()/2
	left = imaging.Crop(img, image.Rect(b.Min.X, b.Min.Y, mid, b.Max.Y))
	right = imaging.Crop(img, image.Rect(mid, b.Min.Y, b.Max.X, b.Max.Y))
	return left, right
}

// adjust applies contrast, brightness and blur in that order.
func adjust(spec Spec, img image.Image) image.Image {
	if spec.Contrast != 0 {
		lut := contrastTable(spec.Contrast)
		img = imaging.AdjustFunc(img, lookup(lut))
	}
	if spec.Brightness != 0 {
		lut := brightnessTable(spec.Brightness)
		img = imaging.AdjustFunc(img, lookup(lut))
	}
	if spec.Blur != 0 {
		img = imaging.Blur(img, spec.Blur)
	}
	return img
}

func contrastTable(delta float64) *[256]uint8 {
	var lut [256]uint8
	factor := 1 + delta
	for i := range lut {
		lut[i] = clamp((float64(i)-127.5)*factor + 127.5)
	}
	return &lut
}

func brightnessTable(delta float64) *[256]uint8 {
	var lut [256]uint8
	for i := range lut {
		lut[i] = clamp(float64(i) + delta)
	}
	return &lut
}

func lookup(lut *[256]uint8) func(color.NRGBA) color.NRGBA {
	return func(c color.NRGBA) color.NRGBA {
		return color.NRGBA{R: lut[c.R], G: lut[c.G], B: lut[c.B], A: c.A}
	}
}

func clamp(v float64) uint8 {
	v = math.Round(v)
	switch {
	case v < 0:
		return 0
	case v > 255:
		return 255
	}
	return uint8(v)
}

// encode writes img in the page's format. Formats imaging cannot encode
// (WEBP) fall back to PNG.
func encode(img image.Image, f page.Format) ([]byte, page.Format, error) {
	var target imaging.Format
	switch f {
	case page.JPEG:
		target = imaging.JPEG
	case page.GIF:
		target = imaging.GIF
	case page.BMP:
		target = imaging.BMP
	case page.TIFF:
		target = imaging.TIFF
	default:
		target, f = imaging.PNG, page.PNG
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, target, imaging.JPEGQuality(90)); err != nil {
		return nil, page.Unknown, err
	}
	return buf.Bytes(), f, nil
}
