// Package epub extracts page images from EPUB books.
//
// Pages follow the reading order of the book: the spine is walked item by
// item and every image referenced by an XHTML document (<img src>, SVG
// <image href>) is taken in document order. Spine items that are images
// themselves are taken directly. An image referenced twice is emitted
// once. Books whose spine references no image fall back to the image items
// of the manifest.
//
// DRM-protected books (Adobe rights.xml or encrypted content documents)
// are rejected.
package epub

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"

	"github.com/klauspost/compress/zip"
	"golang.org/x/net/html"

	"github.com/matzehuels/cbzkit/pkg/errors"
	"github.com/matzehuels/cbzkit/pkg/page"
	"github.com/matzehuels/cbzkit/pkg/source"
)

// Container describes the EPUB format.
var Container = &source.Container{
	Name:       "epub",
	Extensions: []string{".epub"},
	NewDecoder: func(source.DecodeOptions) source.Decoder { return Decoder{} },
}

// Decoder reads EPUB files.
type Decoder struct{}

// Decode implements source.Decoder.
func (Decoder) Decode(ctx context.Context, filename string) ([]source.RawPage, error) {
	zr, err := zip.OpenReader(filename)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "open epub %s", filename)
	}
	defer zr.Close()

	b := &book{files: make(map[string]*zip.File, len(zr.File))}
	for _, f := range zr.File {
		b.files[f.Name] = f
	}

	if err := b.checkDRM(); err != nil {
		return nil, err
	}
	opfPath, err := b.rootfile()
	if err != nil {
		return nil, err
	}
	pkg, err := b.pkg(opfPath)
	if err != nil {
		return nil, err
	}

	hrefs, err := b.imageOrder(ctx, pkg, path.Dir(opfPath))
	if err != nil {
		return nil, err
	}

	pages := make([]source.RawPage, 0, len(hrefs))
	for _, href := range hrefs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := b.read(href)
		if err != nil {
			pages = append(pages, source.RawPage{ID: href, Err: err})
			continue
		}
		pages = append(pages, source.RawPage{ID: href, Data: data, Format: page.Sniff(data)})
	}
	return pages, nil
}

type book struct {
	files map[string]*zip.File
}

func (b *book) read(name string) ([]byte, error) {
	f, ok := b.files[name]
	if !ok {
		return nil, fmt.Errorf("epub: missing %s", name)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// =============================================================================
// Container and package document
// =============================================================================

type containerXML struct {
	Rootfiles []struct {
		FullPath  string `xml:"full-path,attr"`
		MediaType string `xml:"media-type,attr"`
	} `xml:"rootfiles>rootfile"`
}

func (b *book) rootfile() (string, error) {
	data, err := b.read("META-INF/container.xml")
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeInvalidInput, err, "not an epub")
	}
	var c containerXML
	if err := xml.Unmarshal(data, &c); err != nil {
		return "", errors.Wrap(errors.ErrCodeInvalidInput, err, "invalid container.xml")
	}
	for _, rf := range c.Rootfiles {
		if rf.FullPath != "" && (rf.MediaType == "" || rf.MediaType == "application/oebps-package+xml") {
			return rf.FullPath, nil
		}
	}
	return "", errors.New(errors.ErrCodeInvalidInput, "container.xml names no package document")
}

type opfItem struct {
	ID         string `xml:"id,attr"`
	Href       string `xml:"href,attr"`
	MediaType  string `xml:"media-type,attr"`
	Properties string `xml:"properties,attr"`
}

type opfPackage struct {
	Items    []opfItem `xml:"manifest>item"`
	ItemRefs []struct {
		IDRef string `xml:"idref,attr"`
	} `xml:"spine>itemref"`
}

func (b *book) pkg(opfPath string) (*opfPackage, error) {
	data, err := b.read(opfPath)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "missing package document")
	}
	var p opfPackage
	if err := xml.Unmarshal(data, &p); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "invalid package document")
	}
	return &p, nil
}

// imageOrder returns zip paths of the images in reading order.
func (b *book) imageOrder(ctx context.Context, p *opfPackage, base string) ([]string, error) {
	items := make(map[string]opfItem, len(p.Items))
	for _, it := range p.Items {
		items[it.ID] = it
	}

	seen := make(map[string]bool)
	var order []string
	add := func(name string) {
		if !seen[name] {
			seen[name] = true
			order = append(order, name)
		}
	}

	for _, ref := range p.ItemRefs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		it, ok := items[ref.IDRef]
		if !ok {
			continue
		}
		docPath := resolve(base, it.Href)
		if strings.HasPrefix(it.MediaType, "image/") {
			add(docPath)
			continue
		}
		if !isMarkup(it.MediaType) {
			continue
		}
		data, err := b.read(docPath)
		if err != nil {
			continue
		}
		for _, src := range imageRefs(data) {
			add(resolve(path.Dir(docPath), src))
		}
	}

	if len(order) == 0 {
		for _, it := range p.Items {
			if strings.HasPrefix(it.MediaType, "image/") {
				add(resolve(base, it.Href))
			}
		}
	}
	return order, nil
}

func isMarkup(mediaType string) bool {
	switch mediaType {
	case "application/xhtml+xml", "text/html", "image/svg+xml":
		return true
	}
	return false
}

// resolve joins a relative href onto dir, dropping fragments and decoding
// percent escapes.
func resolve(dir, href string) string {
	if i := strings.IndexAny(href, "#?"); i >= 0 {
		href = href[:i]
	}
	if u, err := url.PathUnescape(href); err == nil {
		href = u
	}
	if dir == "." {
		dir = ""
	}
	return strings.TrimPrefix(path.Join(dir, href), "/")
}

// imageRefs returns the image sources referenced by a markup document in
// document order.
func imageRefs(doc []byte) []string {
	root, err := html.Parse(bytes.NewReader(doc))
	if err != nil {
		return nil
	}
	var refs []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "img":
				if v := attr(n, "src"); v != "" {
					refs = append(refs, v)
				}
			case "image":
				if v := attr(n, "href"); v != "" {
					refs = append(refs, v)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return refs
}

// attr returns the attribute value by key, ignoring namespaces so that
// SVG xlink:href matches "href".
func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key || a.Key == "xlink:"+key {
			return strings.TrimSpace(a.Val)
		}
	}
	return ""
}

// =============================================================================
// DRM
// =============================================================================

type encryptionXML struct {
	Data []struct {
		Method struct {
			Algorithm string `xml:"Algorithm,attr"`
		} `xml:"EncryptionMethod"`
		Ref struct {
			URI string `xml:"URI,attr"`
		} `xml:"CipherData>CipherReference"`
	} `xml:"EncryptedData"`
}

func (b *book) checkDRM() error {
	if _, ok := b.files["META-INF/rights.xml"]; ok {
		return errors.New(errors.ErrCodeDRMProtected, "epub is DRM protected (rights.xml)")
	}
	if _, ok := b.files["META-INF/encryption.xml"]; !ok {
		return nil
	}
	data, err := b.read("META-INF/encryption.xml")
	if err != nil {
		return errors.Wrap(errors.ErrCodeDRMProtected, err, "unreadable encryption.xml")
	}
	var enc encryptionXML
	if err := xml.Unmarshal(data, &enc); err != nil {
		return errors.Wrap(errors.ErrCodeDRMProtected, err, "unparseable encryption.xml")
	}
	for _, ed := range enc.Data {
		if strings.Contains(ed.Method.Algorithm, "obfuscation") {
			continue
		}
		uri := strings.ToLower(ed.Ref.URI)
		if page.FromExt(path.Ext(uri)) != page.Unknown || strings.HasSuffix(uri, "html") || strings.HasSuffix(uri, ".xml") {
			return errors.New(errors.ErrCodeDRMProtected, "epub content is encrypted (%s)", ed.Ref.URI)
		}
	}
	return nil
}
