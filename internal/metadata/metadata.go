// Package metadata removes or replaces the ancillary metadata of an image.
//
// Both operations re-encode through a lossless PNG round trip, so sample
// values are preserved exactly while every source chunk, EXIF block or
// comment is discarded.
package metadata

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/stegseal/stegseal-go/internal/raster"
)

// Software is the value written to the Software tags of scrambled images.
const Software = "SecureStego 1.0"

// Strip decodes data and re-encodes it as a PNG carrying only the chunks the
// encoder writes. maxPixels is passed to [raster.Decode].
func Strip(data []byte, maxPixels int) ([]byte, error) {
	buf, _, err := raster.Decode(data, maxPixels)
	if err != nil {
		return nil, err
	}
	return raster.EncodePNG(buf)
}

// Scrambler fabricates plausible but meaningless camera metadata.
type Scrambler struct {
	// Rand picks the numeric suffixes. Nil uses the global source.
	Rand *rand.Rand
	// Now supplies the DateTime tag. Nil uses time.Now.
	Now func() time.Time
}

func (s *Scrambler) suffix() int {
	if s != nil && s.Rand != nil {
		return 1000 + s.Rand.IntN(9000)
	}
	return 1000 + rand.IntN(9000)
}

func (s *Scrambler) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Tags returns a fresh set of fabricated IFD0 tags.
func (s *Scrambler) Tags() map[uint16]string {
	return map[uint16]string{
		TagMake:     fmt.Sprintf("StegSeal_%d", s.suffix()),
		TagModel:    fmt.Sprintf("Scrubber_%d", s.suffix()),
		TagSoftware: Software,
		TagDateTime: s.now().Format("2006:01:02 15:04:05"),
	}
}

// Scramble strips data and attaches fabricated metadata.
func (s *Scrambler) Scramble(data []byte, maxPixels int) ([]byte, error) {
	stripped, err := Strip(data, maxPixels)
	if err != nil {
		return nil, err
	}
	return WithEXIF(stripped, s)
}

// Scramble is [Scrambler.Scramble] with a default scrambler.
func Scramble(data []byte, maxPixels int) ([]byte, error) {
	return (&Scrambler{}).Scramble(data, maxPixels)
}

// WithEXIF inserts an eXIf chunk and a tEXt Software chunk after IHDR of an
// already encoded PNG. Image data is copied byte for byte.
func WithEXIF(png []byte, s *Scrambler) ([]byte, error) {
	return insertAfterIHDR(png,
		encodeChunk("eXIf", buildEXIF(s.Tags())),
		textChunk("Software", Software),
	)
}
