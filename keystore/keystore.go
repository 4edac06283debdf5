// Package keystore persists X25519 key pairs per identity.
//
// All backends share one contract: Put replaces any existing pair for the
// identity, Get and Delete return ErrNotFound for unknown identities, and
// List reports public information only. Backends that write to durable
// storage accept an optional Wrapper that encrypts private keys at rest.
package keystore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/stegseal/stegseal-go/internal/crypto"
)

// MaxIdentityLength bounds identity strings in bytes.
const MaxIdentityLength = 256

var timeNow = time.Now

var (
	// ErrNotFound is returned when no key pair exists for an identity.
	ErrNotFound = errors.New("key pair not found")

	// ErrInvalidIdentity is returned for empty, oversized or non-printable identities.
	ErrInvalidIdentity = errors.New("invalid identity")

	// ErrCorruptRecord is returned when a stored record cannot be decoded or
	// its keys do not belong together.
	ErrCorruptRecord = errors.New("corrupt key record")

	// ErrWrapperRequired is returned when a record holds a wrapped private
	// key but the store has no Wrapper.
	ErrWrapperRequired = errors.New("record is wrapped but no master key is configured")
)

// Store is a key pair repository.
type Store interface {
	Get(ctx context.Context, identity string) (*crypto.KeyPair, error)
	Put(ctx context.Context, identity string, kp *crypto.KeyPair) error
	Delete(ctx context.Context, identity string) error
	List(ctx context.Context) ([]Entry, error)
}

// Entry is the public view of a stored key pair.
type Entry struct {
	Identity  string
	PublicKey [crypto.KeySize]byte
	CreatedAt time.Time
}

// PublicKeyB64 returns the public key as URL-safe base64.
func (e Entry) PublicKeyB64() string {
	return crypto.ToBase64URL(e.PublicKey[:])
}

// ValidateIdentity checks that identity is usable as a store key.
func ValidateIdentity(identity string) error {
	if identity == "" {
		return fmt.Errorf("%w: empty", ErrInvalidIdentity)
	}
	if len(identity) > MaxIdentityLength {
		return fmt.Errorf("%w: longer than %d bytes", ErrInvalidIdentity, MaxIdentityLength)
	}
	if !utf8.ValidString(identity) {
		return fmt.Errorf("%w: not valid utf-8", ErrInvalidIdentity)
	}
	for _, r := range identity {
		if !unicode.IsPrint(r) {
			return fmt.Errorf("%w: contains non-printable %U", ErrInvalidIdentity, r)
		}
	}
	return nil
}

// objectName maps an identity to a filesystem and URL safe name.
func objectName(identity string) string {
	sum := sha256.Sum256([]byte(identity))
	return hex.EncodeToString(sum[:])
}

func checkPut(identity string, kp *crypto.KeyPair) error {
	if err := ValidateIdentity(identity); err != nil {
		return err
	}
	if !crypto.ValidateKeyPair(kp) {
		return crypto.ErrKeyMismatch
	}
	return nil
}
