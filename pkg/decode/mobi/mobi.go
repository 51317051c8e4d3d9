// Package mobi extracts page images from Mobipocket (MOBI) and Kindle
// Format 8 (AZW3) books.
//
// A book is a Palm database: record 0 holds the headers, the next records
// hold the (usually PalmDOC compressed) markup, and images are stored as
// resource records starting at the header's first image index. Page order
// comes from the markup:
//
//   - MOBI 6: <img recindex="00012"> names the 1-based resource record
//   - KF8: <img src="kindle:embed:000C?mime=image/jpeg"> names it in
//     base 32 (digits 0-9 then A-V), also 1-based
//
// When the markup cannot be read (HUFF/CDIC compression) or references no
// image, every image resource is taken in record order. Encrypted books
// are rejected.
package mobi

import (
	"bytes"
	"context"
	"os"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"github.com/matzehuels/cbzkit/pkg/errors"
	"github.com/matzehuels/cbzkit/pkg/page"
	"github.com/matzehuels/cbzkit/pkg/source"
)

// Container describes MOBI books.
var Container = &source.Container{
	Name:       "mobi",
	Aliases:    []string{"prc"},
	Extensions: []string{".mobi", ".prc"},
	NewDecoder: func(source.DecodeOptions) source.Decoder { return Decoder{} },
}

// AZW3Container describes KF8 books.
var AZW3Container = &source.Container{
	Name:       "azw3",
	Aliases:    []string{"azw", "kf8"},
	Extensions: []string{".azw3", ".azw"},
	NewDecoder: func(source.DecodeOptions) source.Decoder { return Decoder{} },
}

// Decoder reads MOBI and AZW3 books. The markup flavour is taken from the
// file version in the header, not from the file extension.
type Decoder struct{}

// Decode implements source.Decoder.
func (Decoder) Decode(ctx context.Context, path string) ([]source.RawPage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	db, err := parsePDB(data)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "read %s", path)
	}
	h, err := parseHeader(db.record(0))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "read %s", path)
	}
	if h.encryption != 0 {
		return nil, errors.New(errors.ErrCodeDRMProtected, "%s is DRM protected (encryption type %d)", path, h.encryption)
	}
	if h.firstImage == noImage || int(h.firstImage) >= db.count() {
		return nil, nil
	}

	resources := db.resources(h)

	var order []int
	if markup, ok := db.text(h); ok {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if h.kf8() {
			order = embedRefs(markup)
		} else {
			order = recindexRefs(markup)
		}
	}

	var pages []source.RawPage
	add := func(i int) {
		if i < 0 || i >= len(resources) {
			return
		}
		rec := resources[i]
		f := page.Sniff(rec)
		if f == page.Unknown {
			return
		}
		pages = append(pages, source.RawPage{ID: "image-" + strconv.Itoa(i+1), Data: rec, Format: f})
	}

	for _, i := range order {
		add(i)
	}
	if len(pages) == 0 {
		for i := range resources {
			add(i)
		}
	}
	return pages, ctx.Err()
}

// resources returns the records from the first image index up to the end
// of the first half of a joint file, or up to an EOF marker.
func (p *pdb) resources(h *header) [][]byte {
	end := p.count()
	if b := h.boundary(); b > int(h.firstImage) && b < end {
		end = b
	}
	var out [][]byte
	for i := int(h.firstImage); i < end; i++ {
		rec := p.record(i)
		if bytes.HasPrefix(rec, []byte("BOUN")) || bytes.Equal(rec, []byte{0xE9, 0x8E, 0x0D, 0x0A}) {
			break
		}
		out = append(out, rec)
	}
	return out
}

// text returns the concatenated, decompressed markup.
func (p *pdb) text(h *header) ([]byte, bool) {
	if h.compression != compressionNone && h.compression != compressionPalmDOC {
		return nil, false
	}
	var buf bytes.Buffer
	for i := 1; i <= h.textRecords && i < p.count(); i++ {
		rec := stripTrailing(p.record(i), h.extraFlags)
		if h.compression == compressionPalmDOC {
			out, err := decompressPalmDOC(rec)
			if err != nil {
				return nil, false
			}
			rec = out
		}
		buf.Write(rec)
	}
	return buf.Bytes(), buf.Len() > 0
}

// recindexRefs returns the 0-based resource indices of MOBI 6 images.
func recindexRefs(markup []byte) []int {
	var refs []int
	walkImages(markup, func(n *html.Node) {
		for _, a := range n.Attr {
			if a.Key != "recindex" {
				continue
			}
			if v, err := strconv.Atoi(strings.TrimSpace(a.Val)); err == nil && v > 0 {
				refs = append(refs, v-1)
			}
		}
	})
	return refs
}

// embedRefs returns the 0-based resource indices of KF8 images.
func embedRefs(markup []byte) []int {
	var refs []int
	walkImages(markup, func(n *html.Node) {
		for _, a := range n.Attr {
			if a.Key != "src" {
				continue
			}
			if fid, ok := parseEmbed(a.Val); ok {
				refs = append(refs, fid-1)
			}
		}
	})
	return refs
}

// parseEmbed decodes the id of a "kindle:embed:XXXX?mime=..." reference.
// Only the four characters before the query are used, since some
// generators emit malformed prefixes.
func parseEmbed(src string) (int, bool) {
	const prefix = "kindle:embed:"
	i := strings.Index(src, prefix)
	if i < 0 {
		return 0, false
	}
	rest := src[i+len(prefix):]
	if q := strings.IndexByte(rest, '?'); q >= 0 {
		rest = rest[:q]
	}
	if len(rest) > 4 {
		rest = rest[len(rest)-4:]
	}
	v, ok := base32(rest)
	return v, ok && v > 0
}

// base32 decodes the KF8 base-32 alphabet 0-9A-V.
func base32(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	n := 0
	for _, c := range strings.ToUpper(s) {
		var d int
		switch {
		case c >= '0' && c <= '9':
			d = int(c - '0')
		case c >= 'A' && c <= 'V':
			d = int(c-'A') + 10
		default:
			return 0, false
		}
		n = n*32 + d
	}
	return n, true
}

func walkImages(markup []byte, fn func(*html.Node)) {
	root, err := html.Parse(bytes.NewReader(markup))
	if err != nil {
		return
	}
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "img" {
			fn(n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
}
