package transform

import (
	"bytes"
	stderrors "errors"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/matzehuels/cbzkit/pkg/errors"
	"github.com/matzehuels/cbzkit/pkg/page"
)

// pngPage builds a w×h PNG page whose left half is black and right half white.
func pngPage(t *testing.T, id string, w, h int) page.Page {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.NRGBA{A: 255}
			if x >= w/2 {
				c = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
			}
			img.SetNRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return page.New(id, 0, page.PNG, buf.Bytes())
}

func decodeSize(t *testing.T, p page.Page) (int, int) {
	t.Helper()
	data, _ := p.Bytes()
	cfg, _, err := page.Config(data)
	if err != nil {
		t.Fatalf("decode %s: %v", p.ID, err)
	}
	return cfg.Width, cfg.Height
}

func TestApplyAutosplitCount(t *testing.T) {
	pages := []page.Page{
		pngPage(t, "l1", 40, 20),
		pngPage(t, "p1", 20, 40),
		pngPage(t, "l2", 30, 10),
		pngPage(t, "sq", 20, 20),
		pngPage(t, "p2", 10, 30),
	}
	spec := Spec{Autosplit: true}
	if err := spec.Validate(); err != nil {
		t.Fatal(err)
	}

	total, planned := 0, 0
	for _, p := range pages {
		n, err := Plan(spec, p)
		if err != nil {
			t.Fatal(err)
		}
		planned += n

		out, err := Apply(spec, p)
		if err != nil {
			t.Fatal(err)
		}
		if len(out) != n {
			t.Errorf("%s: Apply produced %d pages, Plan said %d", p.ID, len(out), n)
		}
		total += len(out)
	}

	// 2 landscape pages, 3 portrait/square pages.
	if want := 2*2 + 3; total != want || planned != want {
		t.Errorf("total = %d, planned = %d, want %d", total, planned, want)
	}
}

func TestApplySplitOrder(t *testing.T) {
	tests := []struct {
		order     ReadingOrder
		firstDark bool
	}{
		{LeftToRight, true},
		{RightToLeft, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.order), func(t *testing.T) {
			out, err := Apply(Spec{Autosplit: true, ReadingOrder: tt.order}, pngPage(t, "spread", 40, 20))
			if err != nil {
				t.Fatal(err)
			}
			if len(out) != 2 {
				t.Fatalf("len = %d, want 2", len(out))
			}
			if out[0].ID != "spread-a" || out[1].ID != "spread-b" {
				t.Errorf("ids = %s, %s", out[0].ID, out[1].ID)
			}

			data, _ := out[0].Bytes()
			img, _, err := page.Decode(data)
			if err != nil {
				t.Fatal(err)
			}
			r, _, _, _ := img.At(0, 0).RGBA()
			if dark := r == 0; dark != tt.firstDark {
				t.Errorf("first half dark = %v, want %v", dark, tt.firstDark)
			}
		})
	}
}

func TestApplyOddWidth(t *testing.T) {
	out, err := Apply(Spec{Autosplit: true, ReadingOrder: LeftToRight}, pngPage(t, "odd", 41, 20))
	if err != nil {
		t.Fatal(err)
	}
	lw, _ := decodeSize(t, out[0])
	rw, _ := decodeSize(t, out[1])
	if lw != 20 || rw != 21 {
		t.Errorf("halves = %d + %d, want 20 + 21", lw, rw)
	}
}

func TestApplyIdentityKeepsBytes(t *testing.T) {
	p := pngPage(t, "p1", 20, 40)
	orig, _ := p.Bytes()

	for _, spec := range []Spec{{}, {Autosplit: true}} {
		out, err := Apply(spec, p)
		if err != nil {
			t.Fatal(err)
		}
		if len(out) != 1 {
			t.Fatalf("len = %d, want 1", len(out))
		}
		got, _ := out[0].Bytes()
		if !bytes.Equal(got, orig) {
			t.Errorf("spec %v changed portrait page bytes", spec)
		}
	}
}

func TestApplyAdjustments(t *testing.T) {
	p := pngPage(t, "p1", 10, 10)
	out, err := Apply(Spec{Brightness: 40}, p)
	if err != nil {
		t.Fatal(err)
	}
	data, _ := out[0].Bytes()
	img, format, err := page.Decode(data)
	if err != nil {
		t.Fatal(err)
	}
	if format != page.PNG {
		t.Errorf("format = %v, want png", format)
	}
	r, _, _, _ := img.At(0, 0).RGBA()
	if got := r >> 8; got != 40 {
		t.Errorf("dark pixel after brightness = %d, want 40", got)
	}
}

func TestApplyCorruptPage(t *testing.T) {
	bad := page.New("broken.png", 3, page.PNG, []byte("\x89PNG\r\n\x1a\ngarbage"))

	for _, spec := range []Spec{{Autosplit: true}, {Contrast: 0.2}} {
		_, err := Apply(spec, bad)
		var corrupt *errors.CorruptPageError
		if !stderrors.As(err, &corrupt) {
			t.Fatalf("Apply(%v) error = %v, want CorruptPageError", spec, err)
		}
		if corrupt.PageID != "broken.png" {
			t.Errorf("PageID = %q", corrupt.PageID)
		}
	}

	if _, err := Plan(Spec{Autosplit: true}, bad); !errors.Is(err, errors.ErrCodeCorruptPage) {
		t.Errorf("Plan error = %v, want CORRUPT_PAGE", err)
	}
}

func TestApplyTruncatedPage(t *testing.T) {
	good, _ := pngPage(t, "p", 4, 8).Bytes()
	// Signature and a complete IHDR chunk, no image data.
	truncated := page.New("truncated.png", 0, page.PNG, good[:33])

	if n, err := Plan(Spec{Autosplit: true}, truncated); err != nil || n != 1 {
		t.Fatalf("Plan() = %d, %v, want 1 from the header alone", n, err)
	}

	tests := []struct {
		name string
		spec Spec
	}{
		{"unchanged", Spec{}},
		{"autosplit portrait", Spec{Autosplit: true}},
		{"contrast", Spec{Contrast: 0.5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Apply(tt.spec, truncated); !errors.Is(err, errors.ErrCodeCorruptPage) {
				t.Errorf("Apply() error = %v, want CORRUPT_PAGE", err)
			}
		})
	}
}

func TestApplyUnchangedKeepsBytes(t *testing.T) {
	p := pngPage(t, "p", 4, 8)
	want, _ := p.Bytes()
	for _, spec := range []Spec{{}, {Autosplit: true}} {
		out, err := Apply(spec, p)
		if err != nil {
			t.Fatal(err)
		}
		got, _ := out[0].Bytes()
		if len(out) != 1 || !bytes.Equal(got, want) {
			t.Errorf("Apply(%v) changed the page bytes", spec)
		}
	}
}

func TestTables(t *testing.T) {
	c := contrastTable(1)
	if c[0] != 0 || c[255] != 255 || c[64] != 1 || c[200] != 255 {
		t.Errorf("contrast(1): [0]=%d [64]=%d [200]=%d [255]=%d", c[0], c[64], c[200], c[255])
	}
	flat := contrastTable(-1)
	if flat[0] != 128 || flat[255] != 128 {
		t.Errorf("contrast(-1) should flatten to mid-grey, got %d %d", flat[0], flat[255])
	}
	b := brightnessTable(-20)
	if b[10] != 0 || b[100] != 80 {
		t.Errorf("brightness(-20): [10]=%d [100]=%d", b[10], b[100])
	}
}

func TestEncodeWebpFallsBackToPNG(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	data, f, err := encode(img, page.WEBP)
	if err != nil {
		t.Fatal(err)
	}
	if f != page.PNG || page.Sniff(data) != page.PNG {
		t.Errorf("format = %v, sniffed %v, want png", f, page.Sniff(data))
	}
}
