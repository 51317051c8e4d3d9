// Package transform applies per-page image adjustments.
//
// # Operations
//
// [Apply] runs a fixed sequence on each page:
//
//  1. Autosplit: landscape pages (width > height) are cut into two halves
//  2. Contrast: channel values are scaled around the mid-point
//  3. Brightness: a constant is added to every channel
//  4. Blur: Gaussian blur with the given sigma
//
// Each adjustment with a zero value is skipped entirely. A page that no
// step needs to touch is returned as-is, with its original bytes, so a run
// with every adjustment disabled produces output identical to the input.
//
// Pixel work is done with github.com/disintegration/imaging.
//
// # Planning
//
// [Plan] reports how many output pages a page will produce using only its
// image header, which lets the archive writer size its entry numbering
// before the first page is transformed.
package transform

import (
	"fmt"
	"strings"

	"github.com/matzehuels/cbzkit/pkg/errors"
)

// ReadingOrder is the order in which the halves of a split page are read.
type ReadingOrder string

const (
	// LeftToRight emits the left half first (western comics).
	LeftToRight ReadingOrder = "ltr"
	// RightToLeft emits the right half first (manga).
	RightToLeft ReadingOrder = "rtl"
)

// DefaultReadingOrder is used when none is configured.
const DefaultReadingOrder = LeftToRight

// ParseReadingOrder parses "ltr" or "rtl" (case-insensitive). The empty
// string yields DefaultReadingOrder.
func ParseReadingOrder(s string) (ReadingOrder, error) {
	switch ReadingOrder(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		return DefaultReadingOrder, nil
	case LeftToRight:
		return LeftToRight, nil
	case RightToLeft:
		return RightToLeft, nil
	}
	return "", errors.New(errors.ErrCodeInvalidInput, "reading order must be ltr or rtl, got %q", s)
}

// Spec holds the adjustments for one run. It is never modified once a run
// starts.
type Spec struct {
	// Autosplit cuts landscape pages into two portrait halves.
	Autosplit bool
	// ReadingOrder decides which half comes first.
	ReadingOrder ReadingOrder
	// Contrast scales channel distance from the mid-point by 1+Contrast.
	// Must be >= -1.
	Contrast float64
	// Brightness is added to every channel, in channel units (-255..255).
	Brightness float64
	// Blur is the Gaussian sigma. Zero disables blurring.
	Blur float64
}

// Validate checks the spec ranges and fills in the default reading order.
func (s *Spec) Validate() error {
	order, err := ParseReadingOrder(string(s.ReadingOrder))
	if err != nil {
		return err
	}
	s.ReadingOrder = order

	if s.Contrast < -1 {
		return errors.New(errors.ErrCodeInvalidInput, "contrast must be >= -1, got %g", s.Contrast)
	}
	if s.Brightness < -255 || s.Brightness > 255 {
		return errors.New(errors.ErrCodeInvalidInput, "brightness must be between -255 and 255, got %g", s.Brightness)
	}
	if s.Blur < 0 {
		return errors.New(errors.ErrCodeInvalidInput, "blur must not be negative, got %g", s.Blur)
	}
	return nil
}

// adjustsPixels reports whether any pixel operation is enabled.
func (s Spec) adjustsPixels() bool {
	return s.Contrast != 0 || s.Brightness != 0 || s.Blur != 0
}

// Identity reports whether the spec leaves every page untouched.
func (s Spec) Identity() bool {
	return !s.Autosplit && !s.adjustsPixels()
}

// String summarizes the enabled operations for logs.
func (s Spec) String() string {
	if s.Identity() {
		return "none"
	}
	var parts []string
	if s.Autosplit {
		parts = append(parts, "autosplit="+string(s.ReadingOrder))
	}
	if s.Contrast != 0 {
		parts = append(parts, fmt.Sprintf("contrast=%g", s.Contrast))
	}
	if s.Brightness != 0 {
		parts = append(parts, fmt.Sprintf("brightness=%g", s.Brightness))
	}
	if s.Blur != 0 {
		parts = append(parts, fmt.Sprintf("blur=%g", s.Blur))
	}
	return strings.Join(parts, " ")
}
