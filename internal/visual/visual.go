// Package visual applies cosmetic distortions to a cover image before a
// message is embedded in it.
//
// Every transform returns a new buffer. None of them may run after
// embedding: any change to a sample's low bit corrupts the hidden frame.
package visual

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math/rand/v2"
	"strings"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/stegseal/stegseal-go/internal/raster"
)

// Mode names a preset chain of transforms.
type Mode string

const (
	ModeNone      Mode = "none"
	ModeMatrix    Mode = "matrix"
	ModeGlitch    Mode = "glitch"
	ModePixelSort Mode = "pixel_sort"
	ModeFull      Mode = "full"
)

// DefaultWatermark is the text drawn when no other text is configured.
const DefaultWatermark = "Encrypted by StegSeal"

// Watermark placement from the bottom-right corner, in pixels.
const (
	WatermarkMarginRight  = 12
	WatermarkMarginBottom = 8
)

// ErrUnknownMode is returned by ParseMode for unrecognized names.
var ErrUnknownMode = errors.New("unknown visual mode")

// Modes lists the recognized modes.
func Modes() []Mode {
	return []Mode{ModeNone, ModeMatrix, ModeGlitch, ModePixelSort, ModeFull}
}

// ParseMode resolves a mode name case-insensitively. An empty name is ModeNone.
func ParseMode(s string) (Mode, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	name = strings.ReplaceAll(name, "-", "_")
	if name == "" {
		return ModeNone, nil
	}
	for _, m := range Modes() {
		if string(m) == name {
			return m, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
}

// Mutator applies modes. The zero value uses a random seed and the default
// watermark text.
type Mutator struct {
	// Rand drives PixelSort.
	Rand *rand.Rand
	// WatermarkText overrides DefaultWatermark.
	WatermarkText string
}

// Apply runs mode on buf and optionally stamps a watermark. ModeFull always
// stamps one.
func (m *Mutator) Apply(buf *raster.Buffer, mode Mode, watermark bool) (*raster.Buffer, error) {
	if err := buf.Validate(); err != nil {
		return nil, err
	}

	var out *raster.Buffer
	switch mode {
	case ModeNone, "":
		out = buf.Clone()
	case ModeMatrix:
		out = Matrix(buf)
	case ModeGlitch:
		out = Glitch(buf)
	case ModePixelSort:
		out = PixelSort(buf, m.rng())
	case ModeFull:
		out = Matrix(buf)
		watermark = true
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}

	if watermark {
		text := DefaultWatermark
		if m != nil && m.WatermarkText != "" {
			text = m.WatermarkText
		}
		out = Watermark(out, text)
	}
	return out, nil
}

func (m *Mutator) rng() *rand.Rand {
	if m != nil && m.Rand != nil {
		return m.Rand
	}
	return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
}

// Matrix is contrast 2.5, a light blur and sharpen, then green +60.
func Matrix(buf *raster.Buffer) *raster.Buffer {
	out := Contrast(buf, 2.5)
	out = BlurSharpen(out)
	return ChannelBoost(out, Green, 60)
}

// Glitch shifts red and blue apart by five pixels and traces contours.
func Glitch(buf *raster.Buffer) *raster.Buffer {
	return Contour(ChannelShift(buf, 5))
}

// Channel indexes a sample within a pixel.
type Channel int

const (
	Red Channel = iota
	Green
	Blue
)

// Contrast scales every sample away from the mean luminance by factor.
func Contrast(buf *raster.Buffer, factor float64) *raster.Buffer {
	var sum float64
	for i := 0; i < len(buf.Pix); i += raster.Channels {
		sum += luma(buf.Pix[i], buf.Pix[i+1], buf.Pix[i+2])
	}
	mean := float64(int(sum/float64(buf.Width*buf.Height) + 0.5))

	adjusted := imaging.AdjustFunc(buf.NRGBA(), func(c color.NRGBA) color.NRGBA {
		return color.NRGBA{
			R: clamp(mean + (float64(c.R)-mean)*factor),
			G: clamp(mean + (float64(c.G)-mean)*factor),
			B: clamp(mean + (float64(c.B)-mean)*factor),
			A: c.A,
		}
	})
	return raster.FromImage(adjusted)
}

// BlurSharpen applies a Gaussian blur of sigma 0.4 followed by sharpening
// with sigma 2.
func BlurSharpen(buf *raster.Buffer) *raster.Buffer {
	img := imaging.Blur(buf.NRGBA(), 0.4)
	return raster.FromImage(imaging.Sharpen(img, 2))
}

// ChannelBoost adds delta to one channel, saturating at 255.
func ChannelBoost(buf *raster.Buffer, ch Channel, delta int) *raster.Buffer {
	out := buf.Clone()
	for i := int(ch); i < len(out.Pix); i += raster.Channels {
		out.Pix[i] = clamp(float64(int(out.Pix[i]) + delta))
	}
	return out
}

// ChannelShift moves red right and blue left by offset pixels, wrapping
// around each row. Green stays in place.
func ChannelShift(buf *raster.Buffer, offset int) *raster.Buffer {
	out := buf.Clone()
	w := buf.Width
	for y := 0; y < buf.Height; y++ {
		for x := 0; x < w; x++ {
			dst := out.Offset(x, y)
			out.Pix[dst+int(Red)] = buf.Pix[buf.Offset(wrap(x-offset, w), y)+int(Red)]
			out.Pix[dst+int(Blue)] = buf.Pix[buf.Offset(wrap(x+offset, w), y)+int(Blue)]
		}
	}
	return out
}

// Contour is an 8-neighbour edge trace biased towards white.
func Contour(buf *raster.Buffer) *raster.Buffer {
	kernel := [9]float64{
		-1, -1, -1,
		-1, 8, -1,
		-1, -1, -1,
	}
	img := imaging.Convolve3x3(buf.NRGBA(), kernel, &imaging.ConvolveOptions{Bias: 255})
	return raster.FromImage(img)
}

// PixelSort shuffles the pixels of every row independently.
func PixelSort(buf *raster.Buffer, rng *rand.Rand) *raster.Buffer {
	out := buf.Clone()
	for y := 0; y < out.Height; y++ {
		row := out.Pix[out.Offset(0, y):out.Offset(0, y+1)]
		rng.Shuffle(out.Width, func(i, j int) {
			a, b := row[i*raster.Channels:(i+1)*raster.Channels], row[j*raster.Channels:(j+1)*raster.Channels]
			a[0], a[1], a[2], b[0], b[1], b[2] = b[0], b[1], b[2], a[0], a[1], a[2]
		})
	}
	return out
}

// Watermark draws text in green at the bottom-right corner. Text that does
// not fit is clipped at the left and top edges.
func Watermark(buf *raster.Buffer, text string) *raster.Buffer {
	img := buf.NRGBA()
	face := basicfont.Face7x13

	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.NRGBA{R: 0, G: 255, B: 0, A: 255}),
		Face: face,
	}

	metrics := face.Metrics()
	x := buf.Width - d.MeasureString(text).Ceil() - WatermarkMarginRight
	y := buf.Height - WatermarkMarginBottom - metrics.Descent.Ceil()
	x = max(x, 0)
	y = max(y, metrics.Ascent.Ceil())

	d.Dot = fixed.P(x, y)
	d.DrawString(text)
	return raster.FromImage(img)
}

func luma(r, g, b uint8) float64 {
	return (299*float64(r) + 587*float64(g) + 114*float64(b)) / 1000
}

func clamp(v float64) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= 255:
		return 255
	default:
		return uint8(v + 0.5)
	}
}

func wrap(i, n int) int {
	i %= n
	if i < 0 {
		i += n
	}
	return i
}
