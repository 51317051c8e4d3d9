package mobi

import (
	"encoding/binary"
	"fmt"
)

// Palm database layout.
const (
	pdbHeaderLen   = 78
	pdbTypeOffset  = 60
	pdbCountOffset = 76
	pdbEntryLen    = 8
)

// Record 0 layout: a 16 byte PalmDOC header followed by the MOBI header.
const (
	offCompression   = 0
	offTextRecords   = 8
	offEncryption    = 12
	offMobiMagic     = 16
	offMobiHeaderLen = 20
	offFileVersion   = 36
	offFirstImage    = 108
	offEXTHFlags     = 128
	offExtraFlags    = 242
)

// Compression schemes of text records.
const (
	compressionNone    = 1
	compressionPalmDOC = 2
	compressionHuff    = 17480
)

// EXTH record types.
const exthKF8Boundary = 121

// pdb is a parsed Palm database.
type pdb struct {
	data    []byte
	offsets []uint32
}

func parsePDB(data []byte) (*pdb, error) {
	if len(data) < pdbHeaderLen {
		return nil, fmt.Errorf("file too short for a palm database")
	}
	if kind := string(data[pdbTypeOffset : pdbTypeOffset+8]); kind != "BOOKMOBI" {
		return nil, fmt.Errorf("not a mobipocket book (type %q)", kind)
	}

	n := int(binary.BigEndian.Uint16(data[pdbCountOffset:]))
	if len(data) < pdbHeaderLen+n*pdbEntryLen {
		return nil, fmt.Errorf("truncated record list")
	}
	offsets := make([]uint32, n)
	for i := range offsets {
		offsets[i] = binary.BigEndian.Uint32(data[pdbHeaderLen+i*pdbEntryLen:])
	}
	for i, off := range offsets {
		if int(off) > len(data) || (i > 0 && off < offsets[i-1]) {
			return nil, fmt.Errorf("record %d has invalid offset %d", i, off)
		}
	}
	return &pdb{data: data, offsets: offsets}, nil
}

func (p *pdb) count() int { return len(p.offsets) }

// record returns the bytes of record i.
func (p *pdb) record(i int) []byte {
	if i < 0 || i >= len(p.offsets) {
		return nil
	}
	end := uint32(len(p.data))
	if i+1 < len(p.offsets) {
		end = p.offsets[i+1]
	}
	return p.data[p.offsets[i]:end]
}

// header holds the fields of record 0 this package needs.
type header struct {
	compression uint16
	textRecords int
	encryption  uint16
	version     uint32
	firstImage  uint32
	extraFlags  uint16
	exth        map[uint32][]byte
}

func parseHeader(rec0 []byte) (*header, error) {
	if len(rec0) < offFirstImage+4 {
		return nil, fmt.Errorf("record 0 too short (%d bytes)", len(rec0))
	}
	if string(rec0[offMobiMagic:offMobiMagic+4]) != "MOBI" {
		return nil, fmt.Errorf("missing MOBI header")
	}

	h := &header{
		compression: binary.BigEndian.Uint16(rec0[offCompression:]),
		textRecords: int(binary.BigEndian.Uint16(rec0[offTextRecords:])),
		encryption:  binary.BigEndian.Uint16(rec0[offEncryption:]),
		version:     binary.BigEndian.Uint32(rec0[offFileVersion:]),
		firstImage:  binary.BigEndian.Uint32(rec0[offFirstImage:]),
	}

	mobiLen := int(binary.BigEndian.Uint32(rec0[offMobiHeaderLen:]))
	if mobiLen >= 0xE4 && len(rec0) >= offExtraFlags+2 {
		h.extraFlags = binary.BigEndian.Uint16(rec0[offExtraFlags:])
	}
	start := offMobiMagic + mobiLen
	if len(rec0) >= offEXTHFlags+4 && binary.BigEndian.Uint32(rec0[offEXTHFlags:])&0x40 != 0 && start < len(rec0) {
		h.exth = parseEXTH(rec0[start:])
	}
	return h, nil
}

// parseEXTH reads the extended header records. Malformed input yields the
// records read so far.
func parseEXTH(b []byte) map[uint32][]byte {
	out := make(map[uint32][]byte)
	if len(b) < 12 || string(b[:4]) != "EXTH" {
		return out
	}
	count := binary.BigEndian.Uint32(b[8:])
	pos := 12
	for i := uint32(0); i < count && pos+8 <= len(b); i++ {
		typ := binary.BigEndian.Uint32(b[pos:])
		size := int(binary.BigEndian.Uint32(b[pos+4:]))
		if size < 8 || pos+size > len(b) {
			break
		}
		out[typ] = b[pos+8 : pos+size]
		pos += size
	}
	return out
}

// kf8 reports whether the book body uses KF8 (AZW3) markup.
func (h *header) kf8() bool { return h.version >= 8 }

// boundary returns the record index where the KF8 half of a joint
// MOBI6/KF8 file starts, or -1 for single-format books.
func (h *header) boundary() int {
	b, ok := h.exth[exthKF8Boundary]
	if !ok || len(b) < 4 {
		return -1
	}
	return int(binary.BigEndian.Uint32(b))
}

// noImage is the value of the first image index when a book has none.
const noImage = 0xFFFFFFFF
