package mobi

import (
	"bytes"
	"context"
	"encoding/binary"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/matzehuels/cbzkit/pkg/errors"
	"github.com/matzehuels/cbzkit/pkg/page"
)

type bookSpec struct {
	version     uint32
	compression uint16
	encryption  uint16
	text        [][]byte
	resources   [][]byte
}

// buildBook assembles a minimal palm database.
func buildBook(t *testing.T, s bookSpec) string {
	t.Helper()

	rec0 := make([]byte, 0xE8+16)
	binary.BigEndian.PutUint16(rec0[offCompression:], s.compression)
	binary.BigEndian.PutUint16(rec0[offTextRecords:], uint16(len(s.text)))
	binary.BigEndian.PutUint16(rec0[offEncryption:], s.encryption)
	copy(rec0[offMobiMagic:], "MOBI")
	binary.BigEndian.PutUint32(rec0[offMobiHeaderLen:], 0xE8)
	binary.BigEndian.PutUint32(rec0[offFileVersion:], s.version)
	binary.BigEndian.PutUint32(rec0[offFirstImage:], uint32(1+len(s.text)))

	records := [][]byte{rec0}
	records = append(records, s.text...)
	records = append(records, s.resources...)
	records = append(records, []byte{0xE9, 0x8E, 0x0D, 0x0A})

	var buf bytes.Buffer
	head := make([]byte, pdbHeaderLen)
	copy(head, "test book")
	copy(head[pdbTypeOffset:], "BOOKMOBI")
	binary.BigEndian.PutUint16(head[pdbCountOffset:], uint16(len(records)))
	buf.Write(head)

	off := pdbHeaderLen + len(records)*pdbEntryLen
	for i, r := range records {
		entry := make([]byte, pdbEntryLen)
		binary.BigEndian.PutUint32(entry, uint32(off))
		entry[7] = byte(i)
		buf.Write(entry)
		off += len(r)
	}
	for _, r := range records {
		buf.Write(r)
	}

	path := filepath.Join(t.TempDir(), "book.mobi")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func pngOfWidth(t *testing.T, w int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewGray(image.Rect(0, 0, w, 1))); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func widths(t *testing.T, data [][]byte) []int {
	t.Helper()
	var out []int
	for _, d := range data {
		cfg, _, err := page.Config(d)
		if err != nil {
			t.Fatal(err)
		}
		out = append(out, cfg.Width)
	}
	return out
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestDecodeMOBI6Recindex(t *testing.T) {
	markup := []byte(`<html><body><p>x</p><img recindex="00003"/><img recindex="00001"><img recindex="00002"></body></html>`)
	path := buildBook(t, bookSpec{
		version:     6,
		compression: compressionNone,
		text:        [][]byte{markup},
		resources:   [][]byte{pngOfWidth(t, 1), pngOfWidth(t, 2), pngOfWidth(t, 3)},
	})

	pages, err := Decoder{}.Decode(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	data := make([][]byte, len(pages))
	for i, p := range pages {
		data[i] = p.Data
	}
	if got := widths(t, data); !equalInts(got, []int{3, 1, 2}) {
		t.Errorf("order = %v, want [3 1 2]", got)
	}
	if pages[0].ID != "image-3" {
		t.Errorf("id = %s", pages[0].ID)
	}
}

func TestDecodeKF8Embed(t *testing.T) {
	markup := []byte(`<html><body>` +
		`<img src="kindle:embed:0002?mime=image/png"/>` +
		`<img src="kindle:embed:0001?mime=image/png"/>` +
		`</body></html>`)
	path := buildBook(t, bookSpec{
		version:     8,
		compression: compressionNone,
		text:        [][]byte{markup},
		resources:   [][]byte{pngOfWidth(t, 5), pngOfWidth(t, 6)},
	})

	pages, err := Decoder{}.Decode(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	data := [][]byte{pages[0].Data, pages[1].Data}
	if got := widths(t, data); !equalInts(got, []int{6, 5}) {
		t.Errorf("order = %v, want [6 5]", got)
	}
}

func TestDecodePalmDOCText(t *testing.T) {
	// "<img recindex=" is 14 literal bytes.
	markup := []byte(`<html><body><img recindex="2"><img recindex="1"></body></html>`)
	path := buildBook(t, bookSpec{
		version:     6,
		compression: compressionPalmDOC,
		text:        [][]byte{markup}, // plain ASCII is valid PalmDOC
		resources:   [][]byte{pngOfWidth(t, 7), pngOfWidth(t, 8)},
	})
	pages, err := Decoder{}.Decode(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	if len(pages) != 2 || pages[0].ID != "image-2" {
		t.Errorf("pages = %v", pages)
	}
}

func TestDecodeFallsBackToRecordOrder(t *testing.T) {
	path := buildBook(t, bookSpec{
		version:     6,
		compression: compressionHuff,
		text:        [][]byte{[]byte("compressed")},
		resources:   [][]byte{pngOfWidth(t, 1), []byte("FONTdata"), pngOfWidth(t, 2)},
	})
	pages, err := Decoder{}.Decode(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	if len(pages) != 2 || pages[0].ID != "image-1" || pages[1].ID != "image-3" {
		t.Errorf("pages = %+v", pages)
	}
}

func TestDecodeRejects(t *testing.T) {
	drm := buildBook(t, bookSpec{version: 6, compression: compressionNone, encryption: 2, text: [][]byte{[]byte("x")}})
	if _, err := (Decoder{}).Decode(context.Background(), drm); !errors.Is(err, errors.ErrCodeDRMProtected) {
		t.Errorf("drm: error = %v", err)
	}

	junk := filepath.Join(t.TempDir(), "junk.mobi")
	if err := os.WriteFile(junk, bytes.Repeat([]byte{1}, 200), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := (Decoder{}).Decode(context.Background(), junk); !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("junk: error = %v", err)
	}
}

func TestPalmDOC(t *testing.T) {
	src := []byte{'a', 'b', 'c', 0x80, 0x18, 0xC1, 0x02, 0xFF, 0x00}
	got, err := decompressPalmDOC(src)
	if err != nil {
		t.Fatal(err)
	}
	want := []byte("abcabc A\xff\x00")
	if !bytes.Equal(got, want) {
		t.Errorf("got %q, want %q", got, want)
	}

	if _, err := decompressPalmDOC([]byte{0x80, 0x18}); err == nil {
		t.Error("back-reference before any output should fail")
	}
}

func TestStripTrailing(t *testing.T) {
	rec := []byte("hello\x00\xAA\xBB\x83")
	if got := stripTrailing(rec, 0x3); string(got) != "hello" {
		t.Errorf("got %q", got)
	}
	if got := stripTrailing([]byte("plain"), 0); string(got) != "plain" {
		t.Errorf("got %q", got)
	}
}

func TestParseEmbed(t *testing.T) {
	tests := []struct {
		src  string
		want int
		ok   bool
	}{
		{"kindle:embed:0001?mime=image/jpeg", 1, true},
		{"kindle:embed:000A?mime=image/jpeg", 10, true},
		{"kindle:embed:0010", 32, true},
		{"kindle:embed:00V1", 31*32 + 1, true},
		{"broken-kindle:embed:XX0003?mime=image/png", 3, true},
		{"images/a.jpg", 0, false},
		{"kindle:embed:00W1", 0, false},
	}
	for _, tt := range tests {
		got, ok := parseEmbed(tt.src)
		if ok != tt.ok || (ok && got != tt.want) {
			t.Errorf("parseEmbed(%q) = %d, %v, want %d, %v", tt.src, got, ok, tt.want, tt.ok)
		}
	}
}
