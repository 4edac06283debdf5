package stegseal

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stegseal/stegseal-go/internal/crypto"
	"github.com/stegseal/stegseal-go/internal/lsb"
	"github.com/stegseal/stegseal-go/internal/metadata"
	"github.com/stegseal/stegseal-go/internal/raster"
)

var pngSignature = []byte("\x89PNG\r\n\x1a\n")

// coverPNG returns a w×h PNG with a smooth gradient.
func coverPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, gradient(w, h)); err != nil {
		t.Fatalf("png.Encode() error = %v", err)
	}
	return buf.Bytes()
}

func gradient(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{
				R: uint8(x * 255 / max(w-1, 1)),
				G: uint8(y * 255 / max(h-1, 1)),
				B: uint8((x + y) % 256),
				A: 0xff,
			})
		}
	}
	return img
}

func newTestPipeline(t *testing.T, opts ...Option) *Pipeline {
	t.Helper()
	opts = append([]Option{WithLogger(slog.New(slog.DiscardHandler)), WithWorkers(2)}, opts...)
	p, err := New(opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { p.Close() })
	return p
}

func newTestKeyPair(t *testing.T) *KeyPair {
	t.Helper()
	kp, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair() error = %v", err)
	}
	return kp
}

func TestNew_UnknownSuite(t *testing.T) {
	_, err := New(WithSuite("rot13"))
	if !errors.Is(err, crypto.ErrUnknownSuite) {
		t.Errorf("New() error = %v, want ErrUnknownSuite", err)
	}
}

func TestNew_Suite(t *testing.T) {
	for _, suite := range []Suite{SuiteSealedBox, SuiteHPKE} {
		p := newTestPipeline(t, WithSuite(suite))
		if p.Suite() != string(suite) {
			t.Errorf("Suite() = %s, want %s", p.Suite(), suite)
		}
		if p.Overhead() != 48 {
			t.Errorf("Overhead() = %d, want 48", p.Overhead())
		}
	}
}

func TestHideReveal_Scenarios(t *testing.T) {
	ctx := context.Background()
	message100 := bytes.Repeat([]byte("0123456789"), 10)

	tests := []struct {
		name      string
		w, h      int
		plaintext []byte
	}{
		{"64x64 100 bytes", 64, 64, message100},
		{"embedded NUL", 32, 32, []byte{0x41, 0x00, 0x42}},
		{"empty message", 16, 16, []byte{}},
		{"hello", 32, 32, []byte("hello")},
	}

	for _, suite := range []Suite{SuiteSealedBox, SuiteHPKE} {
		p := newTestPipeline(t, WithSuite(suite))
		for _, tt := range tests {
			t.Run(string(suite)+"/"+tt.name, func(t *testing.T) {
				kp := newTestKeyPair(t)
				cover := coverPNG(t, tt.w, tt.h)

				stego, err := p.HideMessage(ctx, tt.plaintext, &kp.PublicKey, cover)
				if err != nil {
					t.Fatalf("HideMessage() error = %v", err)
				}
				if !bytes.HasPrefix(stego, pngSignature) {
					t.Error("HideMessage() output is not PNG")
				}

				got, err := p.RevealMessage(ctx, stego, kp)
				if err != nil {
					t.Fatalf("RevealMessage() error = %v", err)
				}
				if !bytes.Equal(got, tt.plaintext) {
					t.Errorf("RevealMessage() = %x, want %x", got, tt.plaintext)
				}
			})
		}
	}
}

func TestHideMessage_CapacityExceeded(t *testing.T) {
	p := newTestPipeline(t)
	kp := newTestKeyPair(t)

	// 8x8 holds 192 bits: a 30 byte message seals to 78 bytes, 656 framed bits.
	_, err := p.HideMessage(context.Background(), bytes.Repeat([]byte{'x'}, 30), &kp.PublicKey, coverPNG(t, 8, 8))
	if !errors.Is(err, ErrCapacityExceeded) {
		t.Fatalf("HideMessage() error = %v, want ErrCapacityExceeded", err)
	}

	var capErr *CapacityError
	if !errors.As(err, &capErr) {
		t.Fatalf("error type = %T, want *CapacityError", err)
	}
	if capErr.RequiredBits != 32+8*78 || capErr.AvailableBits != 192 {
		t.Errorf("CapacityError = %+v, want required 656 available 192", capErr)
	}
}

func TestHideMessage_CapacityBoundary(t *testing.T) {
	ctx := context.Background()
	cover := coverPNG(t, 64, 64)

	for _, suite := range []Suite{SuiteSealedBox, SuiteHPKE} {
		t.Run(string(suite), func(t *testing.T) {
			p := newTestPipeline(t, WithSuite(suite))
			kp := newTestKeyPair(t)

			capacity, err := p.Capacity(ctx, cover)
			if err != nil {
				t.Fatalf("Capacity() error = %v", err)
			}
			if capacity != lsb.MaxPayload(64, 64)-48 {
				t.Fatalf("Capacity() = %d, want %d", capacity, lsb.MaxPayload(64, 64)-48)
			}

			exact := bytes.Repeat([]byte{0xa5}, capacity)
			stego, err := p.HideMessage(ctx, exact, &kp.PublicKey, cover)
			if err != nil {
				t.Fatalf("HideMessage(exact fit) error = %v", err)
			}
			got, err := p.RevealMessage(ctx, stego, kp)
			if err != nil {
				t.Fatalf("RevealMessage() error = %v", err)
			}
			if !bytes.Equal(got, exact) {
				t.Error("exact fit did not round-trip")
			}

			_, err = p.HideMessage(ctx, append(exact, 0), &kp.PublicKey, cover)
			if !errors.Is(err, ErrCapacityExceeded) {
				t.Errorf("HideMessage(one byte over) error = %v, want ErrCapacityExceeded", err)
			}
		})
	}
}

func TestCapacity_TinyImage(t *testing.T) {
	p := newTestPipeline(t)
	got, err := p.Capacity(context.Background(), coverPNG(t, 4, 4))
	if err != nil {
		t.Fatalf("Capacity() error = %v", err)
	}
	if got != 0 {
		t.Errorf("Capacity() = %d, want 0", got)
	}
}

func TestRevealMessage_WrongKey(t *testing.T) {
	ctx := context.Background()

	for _, suite := range []Suite{SuiteSealedBox, SuiteHPKE} {
		t.Run(string(suite), func(t *testing.T) {
			p := newTestPipeline(t, WithSuite(suite))
			alice := newTestKeyPair(t)
			bob := newTestKeyPair(t)

			stego, err := p.HideMessage(ctx, []byte("hello"), &alice.PublicKey, coverPNG(t, 32, 32))
			if err != nil {
				t.Fatalf("HideMessage() error = %v", err)
			}

			_, err = p.RevealMessage(ctx, stego, bob)
			if !errors.Is(err, ErrDecryptionFailed) {
				t.Fatalf("RevealMessage(wrong key) error = %v, want ErrDecryptionFailed", err)
			}
			var decErr *DecryptionError
			if !errors.As(err, &decErr) {
				t.Fatalf("error type = %T, want *DecryptionError", err)
			}
			if decErr.Suite != string(suite) {
				t.Errorf("DecryptionError.Suite = %s, want %s", decErr.Suite, suite)
			}
		})
	}
}

func TestRevealMessage_WrongSuite(t *testing.T) {
	ctx := context.Background()
	sealer := newTestPipeline(t, WithSuite(SuiteSealedBox))
	hpke := newTestPipeline(t, WithSuite(SuiteHPKE))
	kp := newTestKeyPair(t)

	stego, err := sealer.HideMessage(ctx, []byte("hello"), &kp.PublicKey, coverPNG(t, 32, 32))
	if err != nil {
		t.Fatalf("HideMessage() error = %v", err)
	}
	if _, err := hpke.RevealMessage(ctx, stego, kp); !errors.Is(err, ErrDecryptionFailed) {
		t.Errorf("RevealMessage() error = %v, want ErrDecryptionFailed", err)
	}
}

func TestRevealMessage_NoHiddenData(t *testing.T) {
	p := newTestPipeline(t)
	kp := newTestKeyPair(t)

	// An all-black cover has a zero length prefix.
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewNRGBA(image.Rect(0, 0, 16, 16))); err != nil {
		t.Fatal(err)
	}

	_, err := p.RevealMessage(context.Background(), buf.Bytes(), kp)
	if !errors.Is(err, ErrNoHiddenData) {
		t.Errorf("RevealMessage() error = %v, want ErrNoHiddenData", err)
	}
}

func TestRevealMessage_ImplausibleLength(t *testing.T) {
	p := newTestPipeline(t)
	kp := newTestKeyPair(t)

	// Every low bit set declares a 4 GiB payload.
	img := image.NewNRGBA(image.Rect(0, 0, 16, 16))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}

	_, err := p.RevealMessage(context.Background(), buf.Bytes(), kp)
	if !errors.Is(err, ErrNoHiddenData) {
		t.Errorf("RevealMessage() error = %v, want ErrNoHiddenData", err)
	}
}

func TestRevealMessage_MalformedCiphertext(t *testing.T) {
	p := newTestPipeline(t)
	kp := newTestKeyPair(t)

	buf := raster.FromImage(gradient(32, 32))
	stego, err := lsb.Embed(buf, []byte("too short"))
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	data, err := raster.EncodePNG(stego)
	if err != nil {
		t.Fatalf("EncodePNG() error = %v", err)
	}

	_, err = p.RevealMessage(context.Background(), data, kp)
	if !errors.Is(err, ErrMalformedCiphertext) {
		t.Errorf("RevealMessage() error = %v, want ErrMalformedCiphertext", err)
	}
}

func TestRevealMessage_NilKeyPair(t *testing.T) {
	p := newTestPipeline(t)
	_, err := p.RevealMessage(context.Background(), coverPNG(t, 8, 8), nil)
	if !errors.Is(err, ErrInvalidKey) {
		t.Errorf("RevealMessage(nil) error = %v, want ErrInvalidKey", err)
	}
}

func TestHideMessage_ImageErrors(t *testing.T) {
	p := newTestPipeline(t)
	kp := newTestKeyPair(t)

	tests := []struct {
		name  string
		cover []byte
		want  error
	}{
		{"not an image", []byte("definitely not an image"), ErrUnsupportedImageFormat},
		{"empty", nil, ErrUnsupportedImageFormat},
		{"truncated png", append(append([]byte{}, pngSignature...), 0, 0, 0, 13, 'I', 'H'), ErrImageDecode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.HideMessage(context.Background(), []byte("hi"), &kp.PublicKey, tt.cover)
			if !errors.Is(err, tt.want) {
				t.Errorf("HideMessage() error = %v, want %v", err, tt.want)
			}
			var imgErr *ImageError
			if !errors.As(err, &imgErr) {
				t.Errorf("error type = %T, want *ImageError", err)
			}
		})
	}
}

func TestHideMessage_MaxImagePixels(t *testing.T) {
	p := newTestPipeline(t, WithMaxImagePixels(100))
	kp := newTestKeyPair(t)

	_, err := p.HideMessage(context.Background(), []byte("hi"), &kp.PublicKey, coverPNG(t, 64, 64))
	if !errors.Is(err, ErrImageDecode) {
		t.Errorf("HideMessage() error = %v, want ErrImageDecode", err)
	}
}

func TestHideMessage_JPEGCover(t *testing.T) {
	ctx := context.Background()
	p := newTestPipeline(t)
	kp := newTestKeyPair(t)

	var cover bytes.Buffer
	if err := jpeg.Encode(&cover, gradient(48, 48), &jpeg.Options{Quality: 90}); err != nil {
		t.Fatal(err)
	}

	stego, err := p.HideMessage(ctx, []byte("from a jpeg"), &kp.PublicKey, cover.Bytes())
	if err != nil {
		t.Fatalf("HideMessage() error = %v", err)
	}
	if !bytes.HasPrefix(stego, pngSignature) {
		t.Error("output should be PNG regardless of input format")
	}

	got, err := p.RevealMessage(ctx, stego, kp)
	if err != nil {
		t.Fatalf("RevealMessage() error = %v", err)
	}
	if string(got) != "from a jpeg" {
		t.Errorf("RevealMessage() = %q", got)
	}
}

func TestHideMessage_NilRecipient(t *testing.T) {
	p := newTestPipeline(t)
	_, err := p.HideMessage(context.Background(), []byte("hi"), nil, coverPNG(t, 32, 32))
	if !errors.Is(err, ErrInvalidKey) {
		t.Errorf("HideMessage(nil) error = %v, want ErrInvalidKey", err)
	}
}

func TestHideMessage_UnknownVisualMode(t *testing.T) {
	p := newTestPipeline(t)
	kp := newTestKeyPair(t)

	_, err := p.HideMessage(context.Background(), []byte("hi"), &kp.PublicKey, coverPNG(t, 32, 32),
		WithVisualMode("sepia"))
	if !errors.Is(err, ErrUnknownVisualMode) {
		t.Errorf("HideMessage() error = %v, want ErrUnknownVisualMode", err)
	}
}

func TestHideMessage_VisualModesBeforeEmbed(t *testing.T) {
	ctx := context.Background()
	p := newTestPipeline(t)
	kp := newTestKeyPair(t)
	cover := coverPNG(t, 200, 40)

	tests := []struct {
		name string
		opts []HideOption
	}{
		{"none", []HideOption{WithVisualMode("none")}},
		{"matrix", []HideOption{WithVisualMode("matrix")}},
		{"glitch", []HideOption{WithVisualMode("glitch")}},
		{"pixel_sort", []HideOption{WithVisualMode("pixel_sort")}},
		{"full", []HideOption{WithVisualMode("full")}},
		{"watermark only", []HideOption{WithWatermark(true)}},
		{"custom watermark", []HideOption{WithVisualMode("matrix"), WithWatermarkText("secret")}},
		{"scrambled metadata", []HideOption{WithVisualMode("glitch"), WithScrambledMetadata(true)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stego, err := p.HideMessage(ctx, []byte("stable"), &kp.PublicKey, cover, tt.opts...)
			if err != nil {
				t.Fatalf("HideMessage() error = %v", err)
			}
			got, err := p.RevealMessage(ctx, stego, kp)
			if err != nil {
				t.Fatalf("RevealMessage() error = %v", err)
			}
			if string(got) != "stable" {
				t.Errorf("RevealMessage() = %q, want stable", got)
			}
		})
	}
}

func TestHideMessage_MutationAfterEmbedCorrupts(t *testing.T) {
	ctx := context.Background()
	p := newTestPipeline(t)
	kp := newTestKeyPair(t)

	stego, err := p.HideMessage(ctx, []byte("fragile"), &kp.PublicKey, coverPNG(t, 64, 64))
	if err != nil {
		t.Fatalf("HideMessage() error = %v", err)
	}

	mutated, err := p.ApplyVisualEffect(ctx, stego, "matrix", false)
	if err != nil {
		t.Fatalf("ApplyVisualEffect() error = %v", err)
	}

	got, err := p.RevealMessage(ctx, mutated, kp)
	if err == nil {
		t.Fatalf("RevealMessage() = %q, want an error after post-embed mutation", got)
	}
	switch ErrorKind(err) {
	case "no_hidden_data", "malformed_ciphertext", "decryption_failed":
	default:
		t.Errorf("RevealMessage() error = %v, want a framing or decryption error", err)
	}
}

func TestHideMessage_ScrambledMetadata(t *testing.T) {
	ctx := context.Background()
	p := newTestPipeline(t)
	kp := newTestKeyPair(t)

	stego, err := p.HideMessage(ctx, []byte("tagged"), &kp.PublicKey, coverPNG(t, 32, 32),
		WithScrambledMetadata(true))
	if err != nil {
		t.Fatalf("HideMessage() error = %v", err)
	}

	tags, err := metadata.EXIF(stego)
	if err != nil {
		t.Fatalf("EXIF() error = %v", err)
	}
	if tags["Software"] != metadata.Software {
		t.Errorf("EXIF Software = %q, want %q", tags["Software"], metadata.Software)
	}

	got, err := p.RevealMessage(ctx, stego, kp)
	if err != nil || string(got) != "tagged" {
		t.Errorf("RevealMessage() = %q, %v", got, err)
	}
}

func TestStripAndScramble_PreserveMessage(t *testing.T) {
	ctx := context.Background()
	p := newTestPipeline(t)
	kp := newTestKeyPair(t)

	stego, err := p.HideMessage(ctx, []byte("survives"), &kp.PublicKey, coverPNG(t, 32, 32))
	if err != nil {
		t.Fatalf("HideMessage() error = %v", err)
	}

	ops := map[string]func(context.Context, []byte) ([]byte, error){
		"strip":    p.StripMetadata,
		"scramble": p.ScrambleMetadata,
	}
	for name, op := range ops {
		t.Run(name, func(t *testing.T) {
			out, err := op(ctx, stego)
			if err != nil {
				t.Fatalf("%s error = %v", name, err)
			}

			before, _, err := raster.Decode(stego, 0)
			if err != nil {
				t.Fatal(err)
			}
			after, _, err := raster.Decode(out, 0)
			if err != nil {
				t.Fatal(err)
			}
			if !before.Equal(after) {
				t.Error("pixels changed")
			}

			got, err := p.RevealMessage(ctx, out, kp)
			if err != nil || string(got) != "survives" {
				t.Errorf("RevealMessage() = %q, %v", got, err)
			}
		})
	}
}

func TestApplyVisualEffect(t *testing.T) {
	ctx := context.Background()
	p := newTestPipeline(t)
	cover := coverPNG(t, 32, 32)

	out, err := p.ApplyVisualEffect(ctx, cover, "glitch", true)
	if err != nil {
		t.Fatalf("ApplyVisualEffect() error = %v", err)
	}
	if !bytes.HasPrefix(out, pngSignature) {
		t.Error("output is not PNG")
	}
	if bytes.Equal(out, cover) {
		t.Error("glitch should change the image")
	}

	if _, err := p.ApplyVisualEffect(ctx, cover, "vaporwave", false); !errors.Is(err, ErrUnknownVisualMode) {
		t.Errorf("ApplyVisualEffect(unknown) error = %v, want ErrUnknownVisualMode", err)
	}
}

func TestScan(t *testing.T) {
	ctx := context.Background()
	p := newTestPipeline(t)
	alice := newTestKeyPair(t)
	bob := newTestKeyPair(t)

	stego, err := p.HideMessage(ctx, []byte("look closer"), &alice.PublicKey, coverPNG(t, 64, 64))
	if err != nil {
		t.Fatalf("HideMessage() error = %v", err)
	}

	t.Run("owner", func(t *testing.T) {
		res, err := p.Scan(ctx, stego, alice)
		if err != nil {
			t.Fatalf("Scan() error = %v", err)
		}
		if !res.Found || !res.Decrypted {
			t.Fatalf("Scan() = %+v, want found and decrypted", res)
		}
		if res.PayloadBytes != len("look closer")+48 {
			t.Errorf("PayloadBytes = %d, want %d", res.PayloadBytes, len("look closer")+48)
		}
		if string(res.Message) != "look closer" {
			t.Errorf("Message = %q", res.Message)
		}
	})

	t.Run("other key", func(t *testing.T) {
		res, err := p.Scan(ctx, stego, bob)
		if err != nil {
			t.Fatalf("Scan() error = %v", err)
		}
		if !res.Found || res.Decrypted || res.Message != nil {
			t.Errorf("Scan() = %+v, want found but not decrypted", res)
		}
	})

	t.Run("no key", func(t *testing.T) {
		res, err := p.Scan(ctx, stego, nil)
		if err != nil {
			t.Fatalf("Scan() error = %v", err)
		}
		if !res.Found || res.Decrypted {
			t.Errorf("Scan() = %+v, want found but not decrypted", res)
		}
	})

	t.Run("clean image", func(t *testing.T) {
		var buf bytes.Buffer
		if err := png.Encode(&buf, image.NewNRGBA(image.Rect(0, 0, 16, 16))); err != nil {
			t.Fatal(err)
		}
		res, err := p.Scan(ctx, buf.Bytes(), alice)
		if err != nil {
			t.Fatalf("Scan() error = %v", err)
		}
		if res.Found || res.OnesRatio != 0 || res.LooksRandom {
			t.Errorf("Scan() = %+v, want nothing found", res)
		}
	})

	t.Run("not an image", func(t *testing.T) {
		if _, err := p.Scan(ctx, []byte("nope"), alice); !errors.Is(err, ErrUnsupportedImageFormat) {
			t.Errorf("Scan() error = %v, want ErrUnsupportedImageFormat", err)
		}
	})
}

func TestPipeline_Closed(t *testing.T) {
	p := newTestPipeline(t)
	kp := newTestKeyPair(t)
	p.Close()

	_, err := p.HideMessage(context.Background(), []byte("hi"), &kp.PublicKey, coverPNG(t, 32, 32))
	if !errors.Is(err, ErrPipelineClosed) {
		t.Errorf("HideMessage() after Close error = %v, want ErrPipelineClosed", err)
	}
}

func TestPipeline_Canceled(t *testing.T) {
	p := newTestPipeline(t)
	kp := newTestKeyPair(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.HideMessage(ctx, []byte("hi"), &kp.PublicKey, coverPNG(t, 32, 32))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("HideMessage() error = %v, want context.Canceled", err)
	}
}

func TestPipeline_Observer(t *testing.T) {
	type call struct {
		op   string
		kind string
	}
	var (
		mu    sync.Mutex
		calls []call
	)
	observer := func(op string, err error, elapsed time.Duration) {
		if elapsed < 0 {
			t.Errorf("negative elapsed %v", elapsed)
		}
		mu.Lock()
		defer mu.Unlock()
		calls = append(calls, call{op, ErrorKind(err)})
	}

	ctx := context.Background()
	p := newTestPipeline(t, WithObserver(observer))
	kp := newTestKeyPair(t)

	stego, err := p.HideMessage(ctx, []byte("observed"), &kp.PublicKey, coverPNG(t, 32, 32))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := p.RevealMessage(ctx, stego, newTestKeyPair(t)); err == nil {
		t.Fatal("expected decryption failure")
	}

	mu.Lock()
	defer mu.Unlock()
	want := []call{{"hide", ""}, {"reveal", "decryption_failed"}}
	if len(calls) != len(want) {
		t.Fatalf("observer calls = %v, want %v", calls, want)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Errorf("call %d = %v, want %v", i, calls[i], want[i])
		}
	}
}

func TestPipeline_Concurrent(t *testing.T) {
	ctx := context.Background()
	p := newTestPipeline(t)
	kp := newTestKeyPair(t)
	cover := coverPNG(t, 32, 32)

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			msg := []byte{byte(i), 0x00, byte(i)}
			stego, err := p.HideMessage(ctx, msg, &kp.PublicKey, cover)
			if err != nil {
				errs <- err
				return
			}
			got, err := p.RevealMessage(ctx, stego, kp)
			if err != nil {
				errs <- err
				return
			}
			if !bytes.Equal(got, msg) {
				errs <- errors.New("message mismatch")
			}
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
}
