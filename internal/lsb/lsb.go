// Package lsb hides a byte payload in the least-significant bits of an RGB
// raster.
//
// Samples are visited row-major, top-left first, in R, G, B order. The
// payload is framed by a 32-bit big-endian byte count, and every byte is
// written most significant bit first. Only bit 0 of the first FramedBits(n)
// samples is ever changed.
package lsb

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/stegseal/stegseal-go/internal/raster"
)

const (
	// HeaderBytes is the size of the big-endian length prefix.
	HeaderBytes = 4
	// HeaderBits is HeaderBytes expressed in carrier samples.
	HeaderBits = HeaderBytes * BitsPerByte
	// BitsPerByte is the number of samples one payload byte occupies.
	BitsPerByte = 8
)

var (
	// ErrCapacityExceeded is returned when a framed payload does not fit.
	ErrCapacityExceeded = errors.New("payload exceeds image capacity")

	// ErrNoHiddenData is returned when no plausible frame is present.
	ErrNoHiddenData = errors.New("no hidden data found")
)

// CapacityError reports how many samples a payload needed.
type CapacityError struct {
	RequiredBits  int
	AvailableBits int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("%v: need %d bits, image holds %d", ErrCapacityExceeded, e.RequiredBits, e.AvailableBits)
}

// Is reports whether target is ErrCapacityExceeded.
func (e *CapacityError) Is(target error) bool {
	return target == ErrCapacityExceeded
}

// Capacity returns the number of carrier bits in a width x height image.
func Capacity(width, height int) int {
	if width <= 0 || height <= 0 {
		return 0
	}
	return width * height * raster.Channels
}

// FramedBits returns the carrier bits needed for an n-byte payload.
func FramedBits(n int) int {
	return HeaderBits + n*BitsPerByte
}

// MaxPayload returns the largest payload in bytes that fits a width x height image.
func MaxPayload(width, height int) int {
	free := Capacity(width, height) - HeaderBits
	if free < 0 {
		return 0
	}
	return free / BitsPerByte
}

// Embed returns a copy of buf carrying payload. buf is not modified.
func Embed(buf *raster.Buffer, payload []byte) (*raster.Buffer, error) {
	if err := buf.Validate(); err != nil {
		return nil, err
	}

	available := len(buf.Pix)
	if uint64(len(payload)) > math.MaxUint32 || FramedBits(len(payload)) > available {
		return nil, &CapacityError{
			RequiredBits:  FramedBits(len(payload)),
			AvailableBits: available,
		}
	}

	out := buf.Clone()

	var header [HeaderBytes]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(payload)))

	pos := writeBits(out.Pix, 0, header[:])
	writeBits(out.Pix, pos, payload)

	return out, nil
}

// Extract reads a framed payload from buf.
func Extract(buf *raster.Buffer) ([]byte, error) {
	if err := buf.Validate(); err != nil {
		return nil, err
	}

	available := len(buf.Pix)
	if available < HeaderBits {
		return nil, fmt.Errorf("%w: image holds %d bits, header needs %d", ErrNoHiddenData, available, HeaderBits)
	}

	header := readBits(buf.Pix, 0, HeaderBytes)
	n := binary.BigEndian.Uint32(header)

	if uint64(n)*BitsPerByte > uint64(available-HeaderBits) {
		return nil, fmt.Errorf("%w: declared length %d exceeds available %d bytes", ErrNoHiddenData, n, (available-HeaderBits)/BitsPerByte)
	}

	return readBits(buf.Pix, HeaderBits, int(n)), nil
}

func writeBits(pix []uint8, pos int, data []byte) int {
	for _, b := range data {
		for j := 7; j >= 0; j-- {
			pix[pos] = pix[pos]&0xfe | (b>>uint(j))&1
			pos++
		}
	}
	return pos
}

func readBits(pix []uint8, pos, n int) []byte {
	out := make([]byte, n)
	for i := range out {
		var b byte
		for j := 0; j < BitsPerByte; j++ {
			b = b<<1 | pix[pos]&1
			pos++
		}
		out[i] = b
	}
	return out
}
