package metadata

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sort"
)

// IFD0 tags written by the scrambler.
const (
	TagMake     uint16 = 0x010f
	TagModel    uint16 = 0x0110
	TagSoftware uint16 = 0x0131
	TagDateTime uint16 = 0x0132
)

const (
	tiffHeaderSize = 8
	ifdEntrySize   = 12
	typeASCII      = 2
)

var tagNames = map[uint16]string{
	TagMake:     "Make",
	TagModel:    "Model",
	TagSoftware: "Software",
	TagDateTime: "DateTime",
}

// buildEXIF encodes ASCII tags as a little-endian TIFF structure with a single
// IFD0, the payload format of a PNG eXIf chunk.
func buildEXIF(tags map[uint16]string) []byte {
	ids := make([]uint16, 0, len(tags))
	for id := range tags {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	le := binary.LittleEndian
	dataOff := tiffHeaderSize + 2 + len(ids)*ifdEntrySize + 4

	var ifd, data []byte
	ifd = le.AppendUint16(ifd, uint16(len(ids)))
	for _, id := range ids {
		value := append([]byte(tags[id]), 0)

		ifd = le.AppendUint16(ifd, id)
		ifd = le.AppendUint16(ifd, typeASCII)
		ifd = le.AppendUint32(ifd, uint32(len(value)))

		if len(value) <= 4 {
			var inline [4]byte
			copy(inline[:], value)
			ifd = append(ifd, inline[:]...)
			continue
		}

		ifd = le.AppendUint32(ifd, uint32(dataOff+len(data)))
		data = append(data, value...)
		if len(data)%2 == 1 {
			data = append(data, 0)
		}
	}
	ifd = le.AppendUint32(ifd, 0)

	out := make([]byte, 0, dataOff+len(data))
	out = append(out, 'I', 'I')
	out = le.AppendUint16(out, 42)
	out = le.AppendUint32(out, tiffHeaderSize)
	out = append(out, ifd...)
	return append(out, data...)
}

// parseEXIF decodes the ASCII tags of IFD0 in either byte order. Unknown
// tags are reported by hex id.
func parseEXIF(b []byte) (map[string]string, error) {
	if len(b) < tiffHeaderSize {
		return nil, fmt.Errorf("%w: exif shorter than tiff header", ErrMalformedPNG)
	}

	var order binary.ByteOrder
	switch {
	case bytes.HasPrefix(b, []byte("II")):
		order = binary.LittleEndian
	case bytes.HasPrefix(b, []byte("MM")):
		order = binary.BigEndian
	default:
		return nil, fmt.Errorf("%w: bad exif byte order", ErrMalformedPNG)
	}

	off := int(order.Uint32(b[4:]))
	if off+2 > len(b) {
		return nil, fmt.Errorf("%w: ifd0 offset out of range", ErrMalformedPNG)
	}

	count := int(order.Uint16(b[off:]))
	if off+2+count*ifdEntrySize > len(b) {
		return nil, fmt.Errorf("%w: ifd0 truncated", ErrMalformedPNG)
	}

	tags := make(map[string]string, count)
	for i := 0; i < count; i++ {
		e := b[off+2+i*ifdEntrySize:]
		id := order.Uint16(e)
		if order.Uint16(e[2:]) != typeASCII {
			continue
		}

		n := int(order.Uint32(e[4:]))
		var raw []byte
		if n <= 4 {
			raw = e[8 : 8+n]
		} else {
			at := int(order.Uint32(e[8:]))
			if at+n > len(b) {
				return nil, fmt.Errorf("%w: tag 0x%04x value out of range", ErrMalformedPNG, id)
			}
			raw = b[at : at+n]
		}

		name, ok := tagNames[id]
		if !ok {
			name = fmt.Sprintf("0x%04x", id)
		}
		tags[name] = string(bytes.TrimRight(raw, "\x00"))
	}
	return tags, nil
}

// EXIF returns the IFD0 ASCII tags carried in a PNG eXIf chunk, or an empty
// map when there is none.
func EXIF(data []byte) (map[string]string, error) {
	payload, ok, err := findChunk(data, "eXIf")
	if err != nil {
		return nil, err
	}
	if !ok {
		return map[string]string{}, nil
	}
	return parseEXIF(payload)
}
