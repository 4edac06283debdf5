package keystore

import (
	"errors"
	"fmt"

	"github.com/stegseal/stegseal-go/internal/crypto"
)

// MinMasterKeySize is the shortest accepted master secret in bytes.
const MinMasterKeySize = 32

var (
	// ErrWeakMasterKey is returned by NewWrapper for short master secrets.
	ErrWeakMasterKey = errors.New("master key too short")

	// ErrUnwrapFailed is returned when a wrapped private key fails
	// authentication, for example under a different master key or identity.
	ErrUnwrapFailed = errors.New("failed to unwrap private key")
)

// Wrapper encrypts private keys under a key derived from a master secret.
// The owning identity is bound as associated data, so a wrapped key copied
// to another identity no longer opens.
type Wrapper struct {
	key []byte
}

// NewWrapper derives the wrapping key from master with HKDF-SHA-512.
func NewWrapper(master []byte) (*Wrapper, error) {
	if len(master) < MinMasterKeySize {
		return nil, fmt.Errorf("%w: got %d bytes, need %d", ErrWeakMasterKey, len(master), MinMasterKeySize)
	}

	key, err := crypto.DeriveKey(master, nil, []byte(crypto.KeyWrapInfo), crypto.AESKeySize)
	if err != nil {
		return nil, err
	}
	return &Wrapper{key: key}, nil
}

// Wrap encrypts a private key for identity.
func (w *Wrapper) Wrap(identity string, privateKey []byte) ([]byte, error) {
	return crypto.EncryptAESGCM(w.key, privateKey, []byte(identity))
}

// Unwrap reverses Wrap.
func (w *Wrapper) Unwrap(identity string, wrapped []byte) ([]byte, error) {
	pk, err := crypto.DecryptAESGCM(w.key, wrapped, []byte(identity))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnwrapFailed, err)
	}
	return pk, nil
}
