package crypto

import (
	"fmt"
	"strings"
)

// Sealer encrypts a message to a recipient's public key such that only the
// matching private key can recover it. Implementations are safe for
// concurrent use.
type Sealer interface {
	// Seal encrypts plaintext to recipient. The ciphertext is exactly
	// len(plaintext)+Overhead() bytes.
	Seal(plaintext []byte, recipient *[KeySize]byte) ([]byte, error)
	// Open authenticates and decrypts ciphertext with kp.
	Open(ciphertext []byte, kp *KeyPair) ([]byte, error)
	// Overhead is the number of bytes Seal adds to a plaintext.
	Overhead() int
	// Name is the suite identifier.
	Name() string
}

// NewSealer returns the Sealer registered under name. An empty name selects
// the sealed box suite.
func NewSealer(name string) (Sealer, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", SuiteSealedBox, "sealedbox":
		return NewSealedBox(), nil
	case SuiteHPKE, "hpke":
		return NewHPKE(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownSuite, name)
	}
}

// Suites lists the canonical suite names.
func Suites() []string {
	return []string{SuiteSealedBox, SuiteHPKE}
}

func checkOpenArgs(ciphertext []byte, kp *KeyPair, overhead int) error {
	if kp == nil {
		return ErrMissingKey
	}
	if len(ciphertext) < overhead {
		return fmt.Errorf("%w: got %d bytes, need at least %d", ErrCiphertextTooShort, len(ciphertext), overhead)
	}
	return nil
}
