// Package raster holds decoded images as packed 8-bit RGB samples and
// converts them to and from encoded image bytes.
package raster

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"  // register GIF decoder
	_ "image/jpeg" // register JPEG decoder
	"image/png"

	_ "golang.org/x/image/bmp"  // register BMP decoder
	_ "golang.org/x/image/tiff" // register TIFF decoder
	_ "golang.org/x/image/webp" // register WebP decoder
)

// Channels is the number of samples stored per pixel.
const Channels = 3

var (
	// ErrUnsupportedFormat is returned when no registered decoder recognizes the input.
	ErrUnsupportedFormat = errors.New("unsupported image format")

	// ErrDecode is returned when a recognized format fails to decode.
	ErrDecode = errors.New("image decode failed")

	// ErrTooLarge is returned when an image exceeds the configured pixel limit.
	ErrTooLarge = errors.New("image too large")

	// ErrInvalidDimensions is returned for non-positive dimensions or a
	// sample slice that does not match them.
	ErrInvalidDimensions = errors.New("invalid image dimensions")
)

// Buffer is a row-major grid of R,G,B samples with a top-left origin.
// Pixel (x, y) starts at Pix[(y*Width+x)*3].
type Buffer struct {
	Width  int
	Height int
	Pix    []uint8
}

// New allocates a black buffer.
func New(width, height int) *Buffer {
	return &Buffer{
		Width:  width,
		Height: height,
		Pix:    make([]uint8, width*height*Channels),
	}
}

// Validate checks the buffer invariant len(Pix) == Width*Height*3.
func (b *Buffer) Validate() error {
	if b == nil || b.Width <= 0 || b.Height <= 0 {
		return ErrInvalidDimensions
	}
	if len(b.Pix) != b.Width*b.Height*Channels {
		return fmt.Errorf("%w: %d samples for %dx%d", ErrInvalidDimensions, len(b.Pix), b.Width, b.Height)
	}
	return nil
}

// Clone returns a deep copy.
func (b *Buffer) Clone() *Buffer {
	return &Buffer{
		Width:  b.Width,
		Height: b.Height,
		Pix:    bytes.Clone(b.Pix),
	}
}

// Equal reports whether both buffers have the same dimensions and samples.
func (b *Buffer) Equal(o *Buffer) bool {
	return b.Width == o.Width && b.Height == o.Height && bytes.Equal(b.Pix, o.Pix)
}

// Offset returns the index of the red sample of pixel (x, y).
func (b *Buffer) Offset(x, y int) int {
	return (y*b.Width + x) * Channels
}

// RGB returns the samples of pixel (x, y).
func (b *Buffer) RGB(x, y int) (r, g, bl uint8) {
	i := b.Offset(x, y)
	return b.Pix[i], b.Pix[i+1], b.Pix[i+2]
}

// SetRGB overwrites pixel (x, y).
func (b *Buffer) SetRGB(x, y int, r, g, bl uint8) {
	i := b.Offset(x, y)
	b.Pix[i], b.Pix[i+1], b.Pix[i+2] = r, g, bl
}

// FromImage converts any image to RGB, discarding alpha.
func FromImage(img image.Image) *Buffer {
	bounds := img.Bounds()
	buf := New(bounds.Dx(), bounds.Dy())

	if src, ok := img.(*image.NRGBA); ok {
		for y := 0; y < buf.Height; y++ {
			row := src.Pix[src.PixOffset(bounds.Min.X, bounds.Min.Y+y):]
			dst := buf.Pix[y*buf.Width*Channels:]
			for x := 0; x < buf.Width; x++ {
				copy(dst[x*Channels:x*Channels+Channels], row[x*4:x*4+3])
			}
		}
		return buf
	}

	i := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			buf.Pix[i], buf.Pix[i+1], buf.Pix[i+2] = c.R, c.G, c.B
			i += Channels
		}
	}
	return buf
}

// NRGBA returns an opaque image with the buffer's samples.
func (b *Buffer) NRGBA() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, b.Width, b.Height))
	for i, j := 0, 0; i < len(b.Pix); i, j = i+Channels, j+4 {
		img.Pix[j] = b.Pix[i]
		img.Pix[j+1] = b.Pix[i+1]
		img.Pix[j+2] = b.Pix[i+2]
		img.Pix[j+3] = 0xff
	}
	return img
}

// Decode decodes any registered format into a Buffer and reports the format
// name. maxPixels bounds Width*Height before pixel data is decoded; zero
// disables the check.
func Decode(data []byte, maxPixels int) (*Buffer, string, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", classify(err)
	}

	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, format, fmt.Errorf("%w: %s image is %dx%d", ErrDecode, format, cfg.Width, cfg.Height)
	}
	if maxPixels > 0 && cfg.Width*cfg.Height > maxPixels {
		return nil, format, fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrTooLarge, cfg.Width, cfg.Height, maxPixels)
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, format, classify(err)
	}
	return FromImage(img), format, nil
}

func classify(err error) error {
	if errors.Is(err, image.ErrFormat) {
		return ErrUnsupportedFormat
	}
	return fmt.Errorf("%w: %v", ErrDecode, err)
}

// EncodePNG encodes the buffer as an opaque 8-bit RGBA PNG. Sample values are
// preserved exactly.
func EncodePNG(b *Buffer) ([]byte, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}

	var out bytes.Buffer
	if err := png.Encode(&out, b.NRGBA()); err != nil {
		return nil, fmt.Errorf("failed to encode png: %w", err)
	}
	return out.Bytes(), nil
}
