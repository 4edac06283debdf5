package metadata

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
)

var pngSignature = []byte("\x89PNG\r\n\x1a\n")

var (
	// ErrNotPNG is returned when chunk-level operations are given non-PNG bytes.
	ErrNotPNG = errors.New("not a png stream")

	// ErrMalformedPNG is returned when a chunk is truncated or IHDR is not first.
	ErrMalformedPNG = errors.New("malformed png stream")
)

type chunk struct {
	typ   string
	start int // offset of the length field
	end   int // offset just past the CRC
}

func parseChunks(data []byte) ([]chunk, error) {
	if !bytes.HasPrefix(data, pngSignature) {
		return nil, ErrNotPNG
	}

	var chunks []chunk
	pos := len(pngSignature)
	for pos < len(data) {
		if len(data)-pos < 12 {
			return nil, fmt.Errorf("%w: truncated chunk header at %d", ErrMalformedPNG, pos)
		}

		n := int(binary.BigEndian.Uint32(data[pos:]))
		end := pos + 12 + n
		if end > len(data) {
			return nil, fmt.Errorf("%w: chunk at %d overruns stream", ErrMalformedPNG, pos)
		}

		c := chunk{typ: string(data[pos+4 : pos+8]), start: pos, end: end}
		chunks = append(chunks, c)
		pos = end

		if c.typ == "IEND" {
			break
		}
	}

	if len(chunks) == 0 || chunks[0].typ != "IHDR" {
		return nil, fmt.Errorf("%w: first chunk is not IHDR", ErrMalformedPNG)
	}
	return chunks, nil
}

// Chunks lists the chunk types of a PNG stream in order.
func Chunks(data []byte) ([]string, error) {
	chunks, err := parseChunks(data)
	if err != nil {
		return nil, err
	}

	types := make([]string, len(chunks))
	for i, c := range chunks {
		types[i] = c.typ
	}
	return types, nil
}

func encodeChunk(typ string, payload []byte) []byte {
	out := make([]byte, 8, 12+len(payload))
	binary.BigEndian.PutUint32(out, uint32(len(payload)))
	copy(out[4:], typ)
	out = append(out, payload...)

	crc := crc32.NewIEEE()
	crc.Write(out[4:])
	return binary.BigEndian.AppendUint32(out, crc.Sum32())
}

// insertAfterIHDR splices encoded chunks directly after IHDR, leaving image
// data untouched.
func insertAfterIHDR(data []byte, extra ...[]byte) ([]byte, error) {
	chunks, err := parseChunks(data)
	if err != nil {
		return nil, err
	}

	at := chunks[0].end
	size := len(data)
	for _, e := range extra {
		size += len(e)
	}

	out := make([]byte, 0, size)
	out = append(out, data[:at]...)
	for _, e := range extra {
		out = append(out, e...)
	}
	return append(out, data[at:]...), nil
}

func textChunk(keyword, text string) []byte {
	payload := make([]byte, 0, len(keyword)+1+len(text))
	payload = append(payload, keyword...)
	payload = append(payload, 0)
	payload = append(payload, text...)
	return encodeChunk("tEXt", payload)
}

// TextEntries returns the keyword/text pairs of every tEXt chunk.
func TextEntries(data []byte) (map[string]string, error) {
	chunks, err := parseChunks(data)
	if err != nil {
		return nil, err
	}

	entries := make(map[string]string)
	for _, c := range chunks {
		if c.typ != "tEXt" {
			continue
		}
		payload := data[c.start+8 : c.end-4]
		if i := bytes.IndexByte(payload, 0); i > 0 {
			entries[string(payload[:i])] = string(payload[i+1:])
		}
	}
	return entries, nil
}

func findChunk(data []byte, typ string) ([]byte, bool, error) {
	chunks, err := parseChunks(data)
	if err != nil {
		return nil, false, err
	}
	for _, c := range chunks {
		if c.typ == typ {
			return data[c.start+8 : c.end-4], true, nil
		}
	}
	return nil, false, nil
}
