package page

import (
	"bytes"
	"strings"
)

// Format identifies a page image encoding.
type Format int

// Supported formats. Unknown is the zero value.
const (
	Unknown Format = iota
	PNG
	JPEG
	GIF
	WEBP
	BMP
	TIFF
)

var formatInfo = map[Format]struct {
	name string
	ext  string
}{
	PNG:  {"png", "png"},
	JPEG: {"jpeg", "jpg"},
	GIF:  {"gif", "gif"},
	WEBP: {"webp", "webp"},
	BMP:  {"bmp", "bmp"},
	TIFF: {"tiff", "tiff"},
}

// String returns the lower-case format name as registered with the image
// package ("png", "jpeg", ...).
func (f Format) String() string {
	if info, ok := formatInfo[f]; ok {
		return info.name
	}
	return "unknown"
}

// Ext returns the canonical file extension without the dot.
func (f Format) Ext() string {
	if info, ok := formatInfo[f]; ok {
		return info.ext
	}
	return ""
}

// Valid reports whether f is a known image format.
func (f Format) Valid() bool {
	_, ok := formatInfo[f]
	return ok
}

// FromExt maps a file extension, with or without the leading dot, to a
// format. Unknown extensions return Unknown.
func FromExt(ext string) Format {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "png":
		return PNG
	case "jpg", "jpeg", "jpe", "jfif":
		return JPEG
	case "gif":
		return GIF
	case "webp":
		return WEBP
	case "bmp":
		return BMP
	case "tif", "tiff":
		return TIFF
	}
	return Unknown
}

// FromName maps a name as returned by image.Decode or image.DecodeConfig
// to a format.
func FromName(name string) Format {
	for f, info := range formatInfo {
		if info.name == name {
			return f
		}
	}
	return Unknown
}

// SniffLen is the number of leading bytes Sniff needs.
const SniffLen = 12

// Sniff detects the format from the first bytes of an image file.
func Sniff(header []byte) Format {
	switch {
	case bytes.HasPrefix(header, []byte("\x89PNG\r\n\x1a\n")):
		return PNG
	case bytes.HasPrefix(header, []byte{0xFF, 0xD8, 0xFF}):
		return JPEG
	case bytes.HasPrefix(header, []byte("GIF87a")), bytes.HasPrefix(header, []byte("GIF89a")):
		return GIF
	case len(header) >= 12 && string(header[:4]) == "RIFF" && string(header[8:12]) == "WEBP":
		return WEBP
	case bytes.HasPrefix(header, []byte("BM")):
		return BMP
	case bytes.HasPrefix(header, []byte("II*\x00")), bytes.HasPrefix(header, []byte("MM\x00*")):
		return TIFF
	}
	return Unknown
}
