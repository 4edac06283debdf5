package crypto

import (
	"bytes"
	"crypto/rand"
	"errors"
	"testing"
)

func randomKey(t *testing.T) []byte {
	t.Helper()
	key := make([]byte, AESKeySize)
	if _, err := rand.Read(key); err != nil {
		t.Fatal(err)
	}
	return key
}

func TestEncryptAESGCM_DecryptAESGCM_RoundTrip(t *testing.T) {
	tests := []struct {
		name      string
		plaintext []byte
		aad       []byte
	}{
		{"empty", []byte{}, nil},
		{"simple", []byte("hello world"), nil},
		{"with aad", []byte("private key bytes"), []byte("alice")},
		{"binary", []byte{0x00, 0xff, 0x7f, 0x80}, []byte{0x00}},
		{"large", make([]byte, 10000), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := randomKey(t)

			ciphertext, err := EncryptAESGCM(key, tt.plaintext, tt.aad)
			if err != nil {
				t.Fatalf("EncryptAESGCM() error = %v", err)
			}

			// Ciphertext should be nonce + ciphertext + tag
			expectedLen := AESNonceSize + len(tt.plaintext) + AESTagSize
			if len(ciphertext) != expectedLen {
				t.Errorf("ciphertext length = %d, want %d", len(ciphertext), expectedLen)
			}

			decrypted, err := DecryptAESGCM(key, ciphertext, tt.aad)
			if err != nil {
				t.Fatalf("DecryptAESGCM() error = %v", err)
			}

			if !bytes.Equal(decrypted, tt.plaintext) {
				t.Errorf("decrypted = %v, want %v", decrypted, tt.plaintext)
			}
		})
	}
}

func TestEncryptAESGCM_FreshNonce(t *testing.T) {
	key := randomKey(t)

	a, _ := EncryptAESGCM(key, []byte("same"), nil)
	b, _ := EncryptAESGCM(key, []byte("same"), nil)
	if bytes.Equal(a[:AESNonceSize], b[:AESNonceSize]) {
		t.Error("nonce reused across encryptions")
	}
}

func TestEncryptAESGCM_InvalidKeySize(t *testing.T) {
	tests := []struct {
		name    string
		keySize int
	}{
		{"empty", 0},
		{"too short", 16},
		{"too long", 64},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := make([]byte, tt.keySize)
			if _, err := EncryptAESGCM(key, []byte("test"), nil); !errors.Is(err, ErrInvalidKeySize) {
				t.Errorf("expected ErrInvalidKeySize, got %v", err)
			}
			if _, err := DecryptAESGCM(key, make([]byte, 64), nil); !errors.Is(err, ErrInvalidKeySize) {
				t.Errorf("expected ErrInvalidKeySize, got %v", err)
			}
		})
	}
}

func TestEncryptAESGCM_RandFailure(t *testing.T) {
	restore := SetRandReaderForTesting(bytes.NewReader([]byte{1, 2, 3}))
	defer restore()

	if _, err := EncryptAESGCM(make([]byte, AESKeySize), []byte("x"), nil); !errors.Is(err, ErrEncryptionFailed) {
		t.Errorf("expected ErrEncryptionFailed, got %v", err)
	}
}

func TestDecryptAESGCM_CiphertextTooShort(t *testing.T) {
	key := make([]byte, AESKeySize)

	tests := []struct {
		name   string
		length int
	}{
		{"empty", 0},
		{"only nonce", AESNonceSize},
		{"nonce plus partial tag", AESNonceSize + AESTagSize - 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecryptAESGCM(key, make([]byte, tt.length), nil)
			if !errors.Is(err, ErrCiphertextTooShort) {
				t.Errorf("expected ErrCiphertextTooShort, got %v", err)
			}
		})
	}
}

func TestDecryptAESGCM_AuthenticationFailures(t *testing.T) {
	key := randomKey(t)
	ciphertext, err := EncryptAESGCM(key, []byte("sensitive data"), []byte("alice"))
	if err != nil {
		t.Fatal(err)
	}

	t.Run("tampered", func(t *testing.T) {
		tampered := bytes.Clone(ciphertext)
		tampered[len(tampered)/2] ^= 0xff
		if _, err := DecryptAESGCM(key, tampered, []byte("alice")); !errors.Is(err, ErrDecryptionFailed) {
			t.Errorf("expected ErrDecryptionFailed, got %v", err)
		}
	})

	t.Run("wrong key", func(t *testing.T) {
		if _, err := DecryptAESGCM(randomKey(t), ciphertext, []byte("alice")); !errors.Is(err, ErrDecryptionFailed) {
			t.Errorf("expected ErrDecryptionFailed, got %v", err)
		}
	})

	t.Run("wrong aad", func(t *testing.T) {
		if _, err := DecryptAESGCM(key, ciphertext, []byte("mallory")); !errors.Is(err, ErrDecryptionFailed) {
			t.Errorf("expected ErrDecryptionFailed, got %v", err)
		}
	})
}
