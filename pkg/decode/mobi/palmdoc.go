package mobi

import "fmt"

// decompressPalmDOC expands PalmDOC LZ77 compressed text.
func decompressPalmDOC(src []byte) ([]byte, error) {
	out := make([]byte, 0, len(src)*2)
	for i := 0; i < len(src); {
		c := src[i]
		i++
		switch {
		case c == 0 || (c >= 0x09 && c <= 0x7F):
			out = append(out, c)
		case c <= 0x08:
			n := int(c)
			if i+n > len(src) {
				return nil, fmt.Errorf("palmdoc: literal run past end")
			}
			out = append(out, src[i:i+n]...)
			i += n
		case c <= 0xBF:
			if i >= len(src) {
				return nil, fmt.Errorf("palmdoc: truncated back-reference")
			}
			pair := uint16(c)<<8 | uint16(src[i])
			i++
			dist := int(pair>>3) & 0x7FF
			length := int(pair&7) + 3
			if dist == 0 || dist > len(out) {
				return nil, fmt.Errorf("palmdoc: back-reference distance %d out of range", dist)
			}
			// Byte by byte: the source may overlap what is being written.
			for k := 0; k < length; k++ {
				out = append(out, out[len(out)-dist])
			}
		default:
			out = append(out, ' ', c^0x80)
		}
	}
	return out, nil
}

// stripTrailing removes the trailing entries a text record carries after
// its content, as described by the extra data flags of the MOBI header.
func stripTrailing(rec []byte, flags uint16) []byte {
	for bit := 1; bit < 16; bit++ {
		if flags&(1<<bit) == 0 {
			continue
		}
		n := backwardVarint(rec)
		if n <= 0 || n > len(rec) {
			return rec
		}
		rec = rec[:len(rec)-n]
	}
	if flags&1 != 0 && len(rec) > 0 {
		n := int(rec[len(rec)-1]&0x3) + 1
		if n > len(rec) {
			return rec[:0]
		}
		rec = rec[:len(rec)-n]
	}
	return rec
}

// backwardVarint decodes the size stored at the end of a trailing entry.
// The size counts its own bytes.
func backwardVarint(b []byte) int {
	start := len(b) - 4
	if start < 0 {
		start = 0
	}
	n := 0
	for _, v := range b[start:] {
		if v&0x80 != 0 {
			n = 0
		}
		n = n<<7 | int(v&0x7F)
	}
	return n
}
