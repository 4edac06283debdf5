package crypto

import (
	"fmt"

	"golang.org/x/crypto/nacl/box"
)

// SealedBox seals messages with the NaCl anonymous sealed box construction
// (X25519, XSalsa20-Poly1305). Output is interoperable with libsodium's
// crypto_box_seal.
type SealedBox struct{}

// NewSealedBox returns a sealed box Sealer.
func NewSealedBox() *SealedBox {
	return &SealedBox{}
}

// Name implements Sealer.
func (*SealedBox) Name() string { return SuiteSealedBox }

// Overhead implements Sealer.
func (*SealedBox) Overhead() int { return box.AnonymousOverhead }

// Seal implements Sealer.
func (*SealedBox) Seal(plaintext []byte, recipient *[KeySize]byte) ([]byte, error) {
	if recipient == nil {
		return nil, ErrMissingKey
	}

	out, err := box.SealAnonymous(make([]byte, 0, len(plaintext)+box.AnonymousOverhead), plaintext, recipient, randReader)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncryptionFailed, err)
	}
	return out, nil
}

// Open implements Sealer.
func (s *SealedBox) Open(ciphertext []byte, kp *KeyPair) ([]byte, error) {
	if err := checkOpenArgs(ciphertext, kp, s.Overhead()); err != nil {
		return nil, err
	}

	plaintext, ok := box.OpenAnonymous(make([]byte, 0, len(ciphertext)-box.AnonymousOverhead), ciphertext, &kp.PublicKey, &kp.PrivateKey)
	if !ok {
		return nil, ErrDecryptionFailed
	}
	return plaintext, nil
}
