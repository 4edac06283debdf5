package crypto

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"io"
	"log/slog"

	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/nacl/box"
)

// randReader is the random source used for key generation and sealing.
// It can be overridden for testing.
var randReader io.Reader = rand.Reader

// KeyPair is an X25519 key pair. The same pair serves both cipher suites.
type KeyPair struct {
	// PublicKey is the raw X25519 public key.
	PublicKey [KeySize]byte
	// PrivateKey is the raw X25519 private scalar.
	PrivateKey [KeySize]byte
}

// GenerateKeyPair creates a new X25519 key pair.
func GenerateKeyPair() (*KeyPair, error) {
	pub, priv, err := box.GenerateKey(randReader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate key pair: %w", err)
	}

	return &KeyPair{PublicKey: *pub, PrivateKey: *priv}, nil
}

// KeyPairFromPrivateKey rebuilds a key pair from its private half.
func KeyPairFromPrivateKey(privateKey []byte) (*KeyPair, error) {
	if len(privateKey) != KeySize {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrInvalidPrivateKeySize, len(privateKey), KeySize)
	}

	pub, err := curve25519.X25519(privateKey, curve25519.Basepoint)
	if err != nil {
		return nil, fmt.Errorf("failed to derive public key: %w", err)
	}

	kp := &KeyPair{}
	copy(kp.PrivateKey[:], privateKey)
	copy(kp.PublicKey[:], pub)
	return kp, nil
}

// NewKeyPairFromBytes creates a key pair from raw bytes and checks that the
// public key matches the private key.
func NewKeyPairFromBytes(privateKey, publicKey []byte) (*KeyPair, error) {
	if len(publicKey) != KeySize {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrInvalidPublicKeySize, len(publicKey), KeySize)
	}

	kp, err := KeyPairFromPrivateKey(privateKey)
	if err != nil {
		return nil, err
	}

	if subtle.ConstantTimeCompare(kp.PublicKey[:], publicKey) != 1 {
		return nil, ErrKeyMismatch
	}
	return kp, nil
}

// ParsePublicKey copies a raw 32-byte public key into a fixed-size array.
func ParsePublicKey(publicKey []byte) (*[KeySize]byte, error) {
	if len(publicKey) != KeySize {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrInvalidPublicKeySize, len(publicKey), KeySize)
	}

	var pk [KeySize]byte
	copy(pk[:], publicKey)
	return &pk, nil
}

// ValidateKeyPair reports whether the public half of kp was derived from its
// private half.
func ValidateKeyPair(kp *KeyPair) bool {
	if kp == nil {
		return false
	}

	pub, err := curve25519.X25519(kp.PrivateKey[:], curve25519.Basepoint)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare(pub, kp.PublicKey[:]) == 1
}

// PublicKeyB64 returns the public key as URL-safe base64 without padding.
func (k *KeyPair) PublicKeyB64() string {
	return ToBase64URL(k.PublicKey[:])
}

// Clone returns a deep copy of the key pair.
func (k *KeyPair) Clone() *KeyPair {
	c := *k
	return &c
}

// String redacts the private key.
func (k *KeyPair) String() string {
	return "KeyPair{public: " + k.PublicKeyB64() + "}"
}

// LogValue implements slog.LogValuer so key pairs never leak private
// material into logs.
func (k *KeyPair) LogValue() slog.Value {
	return slog.GroupValue(slog.String("public", k.PublicKeyB64()))
}
