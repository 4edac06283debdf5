package crypto

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"
)

func TestGenerateKeyPair(t *testing.T) {
	kp, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair() error = %v", err)
	}

	if !ValidateKeyPair(kp) {
		t.Error("generated key pair does not validate")
	}

	other, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair() error = %v", err)
	}
	if kp.PublicKey == other.PublicKey {
		t.Error("two generated key pairs share a public key")
	}
}

func TestGenerateKeyPair_RandFailure(t *testing.T) {
	restore := SetRandReaderForTesting(bytes.NewReader(nil))
	defer restore()

	if _, err := GenerateKeyPair(); err == nil {
		t.Fatal("expected error with exhausted random source")
	}
}

func TestKeyPairFromPrivateKey(t *testing.T) {
	original, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair() error = %v", err)
	}

	rebuilt, err := KeyPairFromPrivateKey(original.PrivateKey[:])
	if err != nil {
		t.Fatalf("KeyPairFromPrivateKey() error = %v", err)
	}

	if rebuilt.PublicKey != original.PublicKey {
		t.Error("PublicKey mismatch")
	}
	if rebuilt.PrivateKey != original.PrivateKey {
		t.Error("PrivateKey mismatch")
	}
}

// RFC 7748 section 6.1 test vector.
func TestKeyPairFromPrivateKey_RFC7748(t *testing.T) {
	priv, _ := hex.DecodeString("77076d0a7318a57d3c16c17251b26645df4c2f87ebc0992ab177fba51db92c2a")
	wantPub := "8520f0098930a754748b7ddcb43ef75a0dbf3a0d26381af4eba4a98eaa9b4e6a"

	kp, err := KeyPairFromPrivateKey(priv)
	if err != nil {
		t.Fatalf("KeyPairFromPrivateKey() error = %v", err)
	}
	if got := hex.EncodeToString(kp.PublicKey[:]); got != wantPub {
		t.Errorf("public key = %s, want %s", got, wantPub)
	}
}

func TestKeyPairFromPrivateKey_InvalidSize(t *testing.T) {
	tests := []struct {
		name string
		key  []byte
	}{
		{"empty", []byte{}},
		{"too short", []byte("too short")},
		{"one byte short", make([]byte, KeySize-1)},
		{"one byte long", make([]byte, KeySize+1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := KeyPairFromPrivateKey(tt.key)
			if !errors.Is(err, ErrInvalidPrivateKeySize) {
				t.Errorf("expected ErrInvalidPrivateKeySize, got %v", err)
			}
		})
	}
}

func TestNewKeyPairFromBytes(t *testing.T) {
	a, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair() error = %v", err)
	}
	b, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair() error = %v", err)
	}

	t.Run("matching", func(t *testing.T) {
		kp, err := NewKeyPairFromBytes(a.PrivateKey[:], a.PublicKey[:])
		if err != nil {
			t.Fatalf("NewKeyPairFromBytes() error = %v", err)
		}
		if kp.PublicKey != a.PublicKey {
			t.Error("PublicKey mismatch")
		}
	})

	t.Run("mismatched", func(t *testing.T) {
		_, err := NewKeyPairFromBytes(a.PrivateKey[:], b.PublicKey[:])
		if !errors.Is(err, ErrKeyMismatch) {
			t.Errorf("expected ErrKeyMismatch, got %v", err)
		}
	})

	t.Run("short public key", func(t *testing.T) {
		_, err := NewKeyPairFromBytes(a.PrivateKey[:], []byte("short"))
		if !errors.Is(err, ErrInvalidPublicKeySize) {
			t.Errorf("expected ErrInvalidPublicKeySize, got %v", err)
		}
	})
}

func TestParsePublicKey(t *testing.T) {
	kp, _ := GenerateKeyPair()

	pk, err := ParsePublicKey(kp.PublicKey[:])
	if err != nil {
		t.Fatalf("ParsePublicKey() error = %v", err)
	}
	if *pk != kp.PublicKey {
		t.Error("parsed key mismatch")
	}

	if _, err := ParsePublicKey(make([]byte, 31)); !errors.Is(err, ErrInvalidPublicKeySize) {
		t.Errorf("expected ErrInvalidPublicKeySize, got %v", err)
	}
}

func TestValidateKeyPair(t *testing.T) {
	kp, _ := GenerateKeyPair()

	if ValidateKeyPair(nil) {
		t.Error("nil key pair should not validate")
	}

	tampered := kp.Clone()
	tampered.PublicKey[0] ^= 0x01
	if ValidateKeyPair(tampered) {
		t.Error("tampered key pair should not validate")
	}

	if !ValidateKeyPair(kp) {
		t.Error("Clone must not alias the original")
	}
}

func TestKeyPair_RedactsPrivateKey(t *testing.T) {
	kp, _ := GenerateKeyPair()
	secretHex := hex.EncodeToString(kp.PrivateKey[:])
	secretB64 := ToBase64URL(kp.PrivateKey[:])

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	logger.Info("key", "kp", kp)

	outputs := []string{kp.String(), fmt.Sprint(kp), buf.String()}
	for _, out := range outputs {
		if strings.Contains(out, secretHex) || strings.Contains(out, secretB64) {
			t.Errorf("output leaks private key: %s", out)
		}
		if !strings.Contains(out, kp.PublicKeyB64()) {
			t.Errorf("output missing public key: %s", out)
		}
	}
}

func BenchmarkGenerateKeyPair(b *testing.B) {
	for i := 0; i < b.N; i++ {
		if _, err := GenerateKeyPair(); err != nil {
			b.Fatal(err)
		}
	}
}
