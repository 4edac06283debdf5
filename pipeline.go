package stegseal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/stegseal/stegseal-go/internal/crypto"
	"github.com/stegseal/stegseal-go/internal/lsb"
	"github.com/stegseal/stegseal-go/internal/metadata"
	"github.com/stegseal/stegseal-go/internal/raster"
	"github.com/stegseal/stegseal-go/internal/visual"
	"github.com/stegseal/stegseal-go/internal/worker"
)

// Pipeline hides sealed messages in images and reveals them again.
// A Pipeline is safe for concurrent use; every operation works on its own
// buffers and runs on a bounded worker pool.
type Pipeline struct {
	sealer    Sealer
	pool      *worker.Pool
	logger    *slog.Logger
	observer  Observer
	maxPixels int
}

// New creates a pipeline.
//
// Example:
//
//	p, err := stegseal.New(stegseal.WithSuite(stegseal.SuiteHPKE))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer p.Close()
func New(opts ...Option) (*Pipeline, error) {
	cfg := defaultPipelineConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	sealer := cfg.sealer
	if sealer == nil {
		var err error
		if sealer, err = crypto.NewSealer(string(cfg.suite)); err != nil {
			return nil, err
		}
	}

	return &Pipeline{
		sealer:    sealer,
		pool:      worker.New(cfg.workers),
		logger:    cfg.logger,
		observer:  cfg.observer,
		maxPixels: cfg.maxImagePixels,
	}, nil
}

// Close rejects new operations and waits for running ones to finish.
func (p *Pipeline) Close() error {
	p.pool.Close()
	return nil
}

// Suite returns the name of the configured cipher suite.
func (p *Pipeline) Suite() string {
	return p.sealer.Name()
}

// Overhead returns the bytes the cipher suite adds to every message.
func (p *Pipeline) Overhead() int {
	return p.sealer.Overhead()
}

// HideMessage seals plaintext to recipient and embeds it in cover. The
// result is always PNG.
//
// Visual effects requested through opts are applied to the cover before
// embedding. Scrambled metadata is attached as PNG chunks after embedding
// and does not alter pixels.
func (p *Pipeline) HideMessage(ctx context.Context, plaintext []byte, recipient *[KeySize]byte, cover []byte, opts ...HideOption) ([]byte, error) {
	hc := &hideConfig{}
	for _, opt := range opts {
		opt(hc)
	}

	return run(ctx, p, "hide", func(ctx context.Context) ([]byte, error) {
		if recipient == nil {
			return nil, crypto.ErrMissingKey
		}

		mode, err := visual.ParseMode(hc.modeName)
		if err != nil {
			return nil, err
		}
		hc.mode = mode

		buf, _, err := raster.Decode(cover, p.maxPixels)
		if err != nil {
			return nil, err
		}

		if hc.mode != visual.ModeNone || hc.watermark {
			m := &visual.Mutator{Rand: newRand(), WatermarkText: hc.watermarkText}
			if buf, err = m.Apply(buf, hc.mode, hc.watermark); err != nil {
				return nil, err
			}
		}

		required := lsb.FramedBits(len(plaintext) + p.sealer.Overhead())
		if available := lsb.Capacity(buf.Width, buf.Height); required > available {
			return nil, &lsb.CapacityError{RequiredBits: required, AvailableBits: available}
		}

		if err := ctx.Err(); err != nil {
			return nil, err
		}

		ciphertext, err := p.sealer.Seal(plaintext, recipient)
		if err != nil {
			return nil, err
		}

		stego, err := lsb.Embed(buf, ciphertext)
		if err != nil {
			return nil, err
		}

		out, err := raster.EncodePNG(stego)
		if err != nil {
			return nil, err
		}

		if hc.scramble {
			if out, err = metadata.WithEXIF(out, &metadata.Scrambler{Rand: newRand()}); err != nil {
				return nil, err
			}
		}

		p.logger.Debug("message hidden",
			slog.String("suite", p.sealer.Name()),
			slog.String("mode", string(hc.mode)),
			slog.Int("width", buf.Width),
			slog.Int("height", buf.Height),
			slog.Int("bytes", len(ciphertext)),
			slog.Int("capacity_bits", lsb.Capacity(buf.Width, buf.Height)))
		return out, nil
	})
}

// RevealMessage extracts and opens a message hidden by HideMessage.
func (p *Pipeline) RevealMessage(ctx context.Context, stego []byte, kp *KeyPair) ([]byte, error) {
	return run(ctx, p, "reveal", func(ctx context.Context) ([]byte, error) {
		if kp == nil {
			return nil, crypto.ErrMissingKey
		}

		payload, buf, err := p.extract(stego)
		if err != nil {
			return nil, err
		}

		plaintext, err := p.open(payload, kp)
		if err != nil {
			return nil, err
		}

		p.logger.Debug("message revealed",
			slog.String("suite", p.sealer.Name()),
			slog.Int("width", buf.Width),
			slog.Int("height", buf.Height),
			slog.Int("bytes", len(payload)))
		return plaintext, nil
	})
}

// extract decodes img and reads its frame, rejecting empty and undersized
// payloads.
func (p *Pipeline) extract(img []byte) ([]byte, *raster.Buffer, error) {
	buf, _, err := raster.Decode(img, p.maxPixels)
	if err != nil {
		return nil, nil, err
	}

	payload, err := lsb.Extract(buf)
	if err != nil {
		return nil, buf, err
	}

	switch {
	case len(payload) == 0:
		return nil, buf, fmt.Errorf("%w: frame is empty", ErrNoHiddenData)
	case len(payload) < p.sealer.Overhead():
		return payload, buf, fmt.Errorf("%w: %d byte payload is shorter than the %d byte %s overhead",
			ErrMalformedCiphertext, len(payload), p.sealer.Overhead(), p.sealer.Name())
	}
	return payload, buf, nil
}

func (p *Pipeline) open(payload []byte, kp *KeyPair) ([]byte, error) {
	plaintext, err := p.sealer.Open(payload, kp)
	if err != nil {
		if errors.Is(err, crypto.ErrDecryptionFailed) {
			return nil, &DecryptionError{Suite: p.sealer.Name(), Err: err}
		}
		return nil, err
	}
	return plaintext, nil
}

// StripMetadata re-encodes img as PNG, dropping every metadata chunk.
// Pixel values are preserved exactly.
func (p *Pipeline) StripMetadata(ctx context.Context, img []byte) ([]byte, error) {
	return run(ctx, p, "strip", func(context.Context) ([]byte, error) {
		return metadata.Strip(img, p.maxPixels)
	})
}

// ScrambleMetadata strips img and attaches fabricated camera metadata.
// Pixel values are preserved exactly.
func (p *Pipeline) ScrambleMetadata(ctx context.Context, img []byte) ([]byte, error) {
	return run(ctx, p, "scramble", func(context.Context) ([]byte, error) {
		s := &metadata.Scrambler{Rand: newRand()}
		return s.Scramble(img, p.maxPixels)
	})
}

// ApplyVisualEffect applies a visual mode to img without hiding anything.
// Applying an effect to an image that already carries a message destroys
// the message.
func (p *Pipeline) ApplyVisualEffect(ctx context.Context, img []byte, mode string, watermark bool) ([]byte, error) {
	return run(ctx, p, "effect", func(context.Context) ([]byte, error) {
		m, err := visual.ParseMode(mode)
		if err != nil {
			return nil, err
		}

		buf, _, err := raster.Decode(img, p.maxPixels)
		if err != nil {
			return nil, err
		}

		mutator := &visual.Mutator{Rand: newRand()}
		if buf, err = mutator.Apply(buf, m, watermark); err != nil {
			return nil, err
		}
		return raster.EncodePNG(buf)
	})
}

// Capacity returns the largest plaintext in bytes that img can carry with
// the configured suite.
func (p *Pipeline) Capacity(ctx context.Context, img []byte) (int, error) {
	return run(ctx, p, "capacity", func(context.Context) (int, error) {
		buf, _, err := raster.Decode(img, p.maxPixels)
		if err != nil {
			return 0, err
		}
		return max(lsb.MaxPayload(buf.Width, buf.Height)-p.sealer.Overhead(), 0), nil
	})
}

// run executes fn on the worker pool, converts its error to the public
// taxonomy and reports the outcome to the observer.
func run[T any](ctx context.Context, p *Pipeline, op string, fn func(context.Context) (T, error)) (T, error) {
	start := time.Now()

	v, err := worker.Do(ctx, p.pool, fn)
	err = wrapError(err)

	if err != nil {
		var zero T
		v = zero
		p.logger.Debug("operation failed",
			slog.String("op", op),
			slog.String("kind", ErrorKind(err)),
			"err", err)
	}
	p.observe(op, err, time.Since(start))
	return v, err
}

func (p *Pipeline) observe(op string, err error, elapsed time.Duration) {
	if p.observer != nil {
		p.observer(op, err, elapsed)
	}
}

func newRand() *rand.Rand {
	return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
}
