package stegseal

import (
	"context"
	"errors"
	"fmt"

	"github.com/stegseal/stegseal-go/internal/crypto"
	"github.com/stegseal/stegseal-go/internal/lsb"
	"github.com/stegseal/stegseal-go/internal/metadata"
	"github.com/stegseal/stegseal-go/internal/raster"
	"github.com/stegseal/stegseal-go/internal/visual"
	"github.com/stegseal/stegseal-go/internal/worker"
	"github.com/stegseal/stegseal-go/keystore"
)

// Sentinel errors for errors.Is() checks
var (
	// ErrCapacityExceeded is returned when the sealed message does not fit
	// in the cover image.
	ErrCapacityExceeded = errors.New("message exceeds image capacity")

	// ErrRecipientKeyNotFound is returned when the key store has no key pair
	// for an identity.
	ErrRecipientKeyNotFound = errors.New("recipient key not found")

	// ErrDecryptionFailed is returned when the hidden ciphertext does not
	// authenticate under the supplied key pair.
	ErrDecryptionFailed = errors.New("decryption failed")

	// ErrMalformedCiphertext is returned when the hidden payload is shorter
	// than the cipher suite overhead.
	ErrMalformedCiphertext = errors.New("malformed ciphertext")

	// ErrNoHiddenData is returned when an image carries no plausible frame.
	ErrNoHiddenData = errors.New("no hidden data")

	// ErrUnsupportedImageFormat is returned when the image format is not recognized.
	ErrUnsupportedImageFormat = errors.New("unsupported image format")

	// ErrImageDecode is returned when a recognized image fails to decode or
	// exceeds the pixel limit.
	ErrImageDecode = errors.New("image decode failed")

	// ErrUnknownVisualMode is returned for an unrecognized visual mode name.
	ErrUnknownVisualMode = errors.New("unknown visual mode")

	// ErrInvalidKey is returned for malformed or mismatched keys.
	ErrInvalidKey = errors.New("invalid key")

	// ErrPipelineClosed is returned when operations are attempted on a closed pipeline.
	ErrPipelineClosed = errors.New("pipeline has been closed")
)

// StegSealError is implemented by all typed errors in this package.
type StegSealError interface {
	error
	StegSealError() // marker method
}

// CapacityError reports by how much a message overflowed its cover.
type CapacityError struct {
	RequiredBits  int
	AvailableBits int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("message exceeds image capacity: need %d bits, image holds %d", e.RequiredBits, e.AvailableBits)
}

// Is implements errors.Is for sentinel error matching.
func (e *CapacityError) Is(target error) bool {
	return target == ErrCapacityExceeded
}

// StegSealError implements the StegSealError interface.
func (e *CapacityError) StegSealError() {}

// DecryptionError represents a failure to open a hidden message.
type DecryptionError struct {
	Suite string
	Err   error
}

func (e *DecryptionError) Error() string {
	return fmt.Sprintf("decryption failed (%s): %v", e.Suite, e.Err)
}

// Unwrap returns the underlying error.
func (e *DecryptionError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is for sentinel error matching.
func (e *DecryptionError) Is(target error) bool {
	return target == ErrDecryptionFailed
}

// StegSealError implements the StegSealError interface.
func (e *DecryptionError) StegSealError() {}

// ImageError represents a failure to read or write image bytes.
type ImageError struct {
	Op   string // "decode", "encode", "metadata"
	Kind error  // ErrUnsupportedImageFormat or ErrImageDecode
	Err  error
}

func (e *ImageError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("image %s: %v: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("image %s: %v", e.Op, e.Kind)
}

// Unwrap returns the underlying error.
func (e *ImageError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is for sentinel error matching.
func (e *ImageError) Is(target error) bool {
	return target == e.Kind
}

// StegSealError implements the StegSealError interface.
func (e *ImageError) StegSealError() {}

// wrapError converts internal package errors to public errors.
// This ensures that errors.Is() checks work with public sentinel errors.
func wrapError(err error) error {
	if err == nil {
		return nil
	}

	var capErr *lsb.CapacityError
	if errors.As(err, &capErr) {
		return &CapacityError{
			RequiredBits:  capErr.RequiredBits,
			AvailableBits: capErr.AvailableBits,
		}
	}

	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case errors.Is(err, worker.ErrClosed):
		return ErrPipelineClosed
	case errors.Is(err, raster.ErrUnsupportedFormat):
		return &ImageError{Op: "decode", Kind: ErrUnsupportedImageFormat}
	case errors.Is(err, raster.ErrDecode), errors.Is(err, raster.ErrTooLarge),
		errors.Is(err, raster.ErrInvalidDimensions):
		return &ImageError{Op: "decode", Kind: ErrImageDecode, Err: err}
	case errors.Is(err, metadata.ErrNotPNG), errors.Is(err, metadata.ErrMalformedPNG):
		return &ImageError{Op: "metadata", Kind: ErrImageDecode, Err: err}
	case errors.Is(err, lsb.ErrNoHiddenData):
		return fmt.Errorf("%w: %v", ErrNoHiddenData, err)
	case errors.Is(err, crypto.ErrCiphertextTooShort):
		return fmt.Errorf("%w: %v", ErrMalformedCiphertext, err)
	case errors.Is(err, crypto.ErrInvalidPublicKeySize), errors.Is(err, crypto.ErrInvalidPrivateKeySize),
		errors.Is(err, crypto.ErrKeyMismatch), errors.Is(err, crypto.ErrMissingKey),
		errors.Is(err, crypto.ErrInvalidEncoding):
		return fmt.Errorf("%w: %v", ErrInvalidKey, err)
	case errors.Is(err, visual.ErrUnknownMode):
		return fmt.Errorf("%w: %v", ErrUnknownVisualMode, err)
	case errors.Is(err, keystore.ErrNotFound):
		return fmt.Errorf("%w: %v", ErrRecipientKeyNotFound, err)
	}

	return err
}

// ErrorKind returns a stable snake_case label for err, suitable for logs,
// metrics and API responses. It returns "" for nil and "internal" for errors
// outside the taxonomy.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrCapacityExceeded):
		return "capacity_exceeded"
	case errors.Is(err, ErrRecipientKeyNotFound):
		return "recipient_key_not_found"
	case errors.Is(err, ErrDecryptionFailed):
		return "decryption_failed"
	case errors.Is(err, ErrMalformedCiphertext):
		return "malformed_ciphertext"
	case errors.Is(err, ErrNoHiddenData):
		return "no_hidden_data"
	case errors.Is(err, ErrUnsupportedImageFormat):
		return "unsupported_image_format"
	case errors.Is(err, ErrImageDecode):
		return "image_decode"
	case errors.Is(err, ErrUnknownVisualMode):
		return "unknown_visual_mode"
	case errors.Is(err, ErrInvalidKey):
		return "invalid_key"
	case errors.Is(err, ErrPipelineClosed):
		return "pipeline_closed"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, context.DeadlineExceeded):
		return "deadline_exceeded"
	default:
		return "internal"
	}
}
