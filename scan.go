package stegseal

import (
	"context"
	"errors"
	"log/slog"

	"github.com/stegseal/stegseal-go/internal/lsb"
	"github.com/stegseal/stegseal-go/internal/raster"
)

// ScanResult describes what Scan found in an image.
type ScanResult struct {
	// Found reports whether a plausible frame was present.
	Found bool `json:"found"`
	// PayloadBytes is the framed payload length, zero when nothing was found.
	PayloadBytes int `json:"payload_bytes"`
	// Decrypted reports whether the supplied key pair opened the payload.
	Decrypted bool `json:"decrypted"`
	// Message is the plaintext when Decrypted is true.
	Message []byte `json:"message,omitempty"`
	// OnesRatio is the fraction of set low bits across the image.
	OnesRatio float64 `json:"ones_ratio"`
	// Entropy of the low-bit plane in bits per byte.
	Entropy float64 `json:"entropy"`
	// LooksRandom is a statistical hint that the low bits carry ciphertext.
	LooksRandom bool `json:"looks_random"`
}

// Scan inspects img for a hidden message. Unlike RevealMessage, an absent or
// unreadable message is reported in the result rather than as an error; only
// decode failures and cancellation are returned. kp may be nil, in which
// case no decryption is attempted.
func (p *Pipeline) Scan(ctx context.Context, img []byte, kp *KeyPair) (*ScanResult, error) {
	return run(ctx, p, "scan", func(context.Context) (*ScanResult, error) {
		buf, _, err := raster.Decode(img, p.maxPixels)
		if err != nil {
			return nil, err
		}

		stats := lsb.Analyze(buf, 0)
		res := &ScanResult{
			OnesRatio:   stats.OnesRatio,
			Entropy:     stats.Entropy,
			LooksRandom: stats.LooksRandom(),
		}

		payload, err := lsb.Extract(buf)
		switch {
		case errors.Is(err, lsb.ErrNoHiddenData):
			return res, nil
		case err != nil:
			return nil, err
		case len(payload) == 0:
			return res, nil
		}
		res.Found = true
		res.PayloadBytes = len(payload)

		if kp == nil || len(payload) < p.sealer.Overhead() {
			return res, nil
		}

		plaintext, err := p.open(payload, kp)
		if err != nil {
			p.logger.Debug("scan found undecryptable payload",
				slog.String("suite", p.sealer.Name()),
				slog.Int("bytes", len(payload)))
			return res, nil
		}
		res.Decrypted = true
		res.Message = plaintext
		return res, nil
	})
}
