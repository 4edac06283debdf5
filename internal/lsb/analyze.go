package lsb

import (
	"math"

	"github.com/stegseal/stegseal-go/internal/raster"
)

// Stats describes the low-bit plane of an image.
type Stats struct {
	// Samples is the number of samples inspected.
	Samples int
	// OnesRatio is the fraction of inspected samples whose low bit is set.
	OnesRatio float64
	// Entropy is the Shannon entropy in bits per byte of the low-bit plane
	// packed MSB first, between 0 and 8.
	Entropy float64
}

// LooksRandom reports whether the low-bit plane is balanced enough to suggest
// encrypted content. Natural photographs usually are too, so this is a hint
// rather than a detector.
func (s Stats) LooksRandom() bool {
	return s.Samples >= BitsPerByte && s.OnesRatio > 0.45 && s.OnesRatio < 0.55
}

// Analyze inspects at most limit samples of buf's low-bit plane. A
// non-positive limit inspects every sample.
func Analyze(buf *raster.Buffer, limit int) Stats {
	n := len(buf.Pix)
	if limit > 0 && limit < n {
		n = limit
	}
	if n == 0 {
		return Stats{}
	}

	var ones int
	var freq [256]int
	var acc byte
	packed := 0

	for i := 0; i < n; i++ {
		bit := buf.Pix[i] & 1
		ones += int(bit)
		acc = acc<<1 | bit
		if i%BitsPerByte == BitsPerByte-1 {
			freq[acc]++
			packed++
			acc = 0
		}
	}

	var entropy float64
	for _, c := range freq {
		if c == 0 {
			continue
		}
		p := float64(c) / float64(packed)
		entropy -= p * math.Log2(p)
	}

	return Stats{
		Samples:   n,
		OnesRatio: float64(ones) / float64(n),
		Entropy:   entropy,
	}
}
