package stegseal

import (
	"log/slog"
	"runtime"
	"time"

	"github.com/stegseal/stegseal-go/internal/crypto"
	"github.com/stegseal/stegseal-go/internal/visual"
)

// Suite selects the public-key construction used to seal messages.
type Suite string

const (
	// SuiteSealedBox is the NaCl anonymous sealed box (X25519,
	// XSalsa20-Poly1305), compatible with libsodium crypto_box_seal.
	SuiteSealedBox Suite = crypto.SuiteSealedBox
	// SuiteHPKE is RFC 9180 HPKE base mode with DHKEM(X25519, HKDF-SHA256)
	// and ChaCha20-Poly1305.
	SuiteHPKE Suite = crypto.SuiteHPKE
)

const (
	defaultSuite = SuiteSealedBox
	// defaultMaxImagePixels bounds decoded images to 64 megapixels.
	defaultMaxImagePixels = 64 << 20
)

// Observer is called once per pipeline operation with its outcome.
type Observer func(op string, err error, elapsed time.Duration)

// pipelineConfig holds configuration for the pipeline.
type pipelineConfig struct {
	suite          Suite
	sealer         Sealer
	workers        int
	logger         *slog.Logger
	observer       Observer
	maxImagePixels int
}

func defaultPipelineConfig() *pipelineConfig {
	return &pipelineConfig{
		suite:          defaultSuite,
		workers:        runtime.NumCPU(),
		logger:         slog.Default(),
		maxImagePixels: defaultMaxImagePixels,
	}
}

// hideConfig holds configuration for a single HideMessage call.
type hideConfig struct {
	mode          visual.Mode
	modeName      string
	watermark     bool
	watermarkText string
	scramble      bool
}

// Option configures the pipeline.
type Option func(*pipelineConfig)

// HideOption configures a HideMessage call.
type HideOption func(*hideConfig)

// WithSuite selects a cipher suite by name. The default is SuiteSealedBox.
func WithSuite(suite Suite) Option {
	return func(c *pipelineConfig) {
		c.suite = suite
	}
}

// WithSealer sets a custom Sealer, overriding WithSuite.
func WithSealer(s Sealer) Option {
	return func(c *pipelineConfig) {
		c.sealer = s
	}
}

// WithWorkers bounds how many operations run concurrently.
// Non-positive values use runtime.NumCPU().
func WithWorkers(n int) Option {
	return func(c *pipelineConfig) {
		c.workers = n
	}
}

// WithLogger sets the logger. Operations log at debug level.
func WithLogger(logger *slog.Logger) Option {
	return func(c *pipelineConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithObserver registers a callback invoked after every operation,
// typically to record metrics.
func WithObserver(o Observer) Option {
	return func(c *pipelineConfig) {
		c.observer = o
	}
}

// WithMaxImagePixels rejects images with more than n pixels before their
// pixel data is decoded. Zero disables the limit.
func WithMaxImagePixels(n int) Option {
	return func(c *pipelineConfig) {
		c.maxImagePixels = n
	}
}

// WithVisualMode applies a visual effect to the cover before embedding.
// Accepted names are none, matrix, glitch, pixel_sort and full.
func WithVisualMode(mode string) HideOption {
	return func(c *hideConfig) {
		c.modeName = mode
	}
}

// WithWatermark stamps the watermark text onto the cover before embedding.
func WithWatermark(enabled bool) HideOption {
	return func(c *hideConfig) {
		c.watermark = enabled
	}
}

// WithWatermarkText sets the watermark text and enables the watermark.
func WithWatermarkText(text string) HideOption {
	return func(c *hideConfig) {
		c.watermarkText = text
		c.watermark = true
	}
}

// WithScrambledMetadata attaches fabricated camera metadata to the output.
// Pixels, and therefore the hidden message, are unaffected.
func WithScrambledMetadata(enabled bool) HideOption {
	return func(c *hideConfig) {
		c.scramble = enabled
	}
}
