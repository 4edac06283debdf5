package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"
	"io"
)

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != AESKeySize {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrInvalidKeySize, len(key), AESKeySize)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}

// EncryptAESGCM encrypts plaintext with AES-256-GCM under a fresh random nonce,
// binding aad into the tag.
// Returns: nonce (12 bytes) || ciphertext || tag (16 bytes)
func EncryptAESGCM(key, plaintext, aad []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	out := make([]byte, AESNonceSize, AESNonceSize+len(plaintext)+AESTagSize)
	if _, err := io.ReadFull(randReader, out); err != nil {
		return nil, fmt.Errorf("%w: nonce: %v", ErrEncryptionFailed, err)
	}

	return gcm.Seal(out, out[:AESNonceSize], plaintext, aad), nil
}

// DecryptAESGCM reverses [EncryptAESGCM]. Any authentication failure,
// including a mismatched aad, yields ErrDecryptionFailed.
func DecryptAESGCM(key, data, aad []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	if len(data) < AESNonceSize+AESTagSize {
		return nil, fmt.Errorf("%w: got %d bytes, need at least %d", ErrCiphertextTooShort, len(data), AESNonceSize+AESTagSize)
	}

	plaintext, err := gcm.Open(nil, data[:AESNonceSize], data[AESNonceSize:], aad)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return plaintext, nil
}
