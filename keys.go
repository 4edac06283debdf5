package stegseal

import (
	"context"
	"errors"
	"fmt"

	"github.com/stegseal/stegseal-go/internal/crypto"
	"github.com/stegseal/stegseal-go/keystore"
)

// KeySize is the size of X25519 public and private keys in bytes.
const KeySize = crypto.KeySize

// KeyPair is an X25519 key pair usable with every Suite. Its String and
// LogValue methods never reveal the private key.
type KeyPair = crypto.KeyPair

// Sealer is the public-key encryption used by a Pipeline. SealedBox and HPKE
// suites are built in; see WithSealer.
type Sealer = crypto.Sealer

// KeyStore resolves key pairs by identity. Get must return an error
// matching keystore.ErrNotFound for unknown identities.
type KeyStore interface {
	Get(ctx context.Context, identity string) (*KeyPair, error)
	Put(ctx context.Context, identity string, kp *KeyPair) error
}

// GenerateKeyPair creates a new X25519 key pair.
func GenerateKeyPair() (*KeyPair, error) {
	return crypto.GenerateKeyPair()
}

// ParsePublicKey decodes a public key from hex or base64.
func ParsePublicKey(s string) (*[KeySize]byte, error) {
	raw, err := crypto.DecodeKey(s)
	if err != nil {
		return nil, wrapError(err)
	}
	pk, err := crypto.ParsePublicKey(raw)
	if err != nil {
		return nil, wrapError(err)
	}
	return pk, nil
}

// ParsePrivateKey rebuilds a key pair from a hex or base64 private key.
func ParsePrivateKey(s string) (*KeyPair, error) {
	raw, err := crypto.DecodeKey(s)
	if err != nil {
		return nil, wrapError(err)
	}
	kp, err := crypto.KeyPairFromPrivateKey(raw)
	if err != nil {
		return nil, wrapError(err)
	}
	return kp, nil
}

// LookupKeyPair fetches the key pair for identity, mapping a missing entry
// to ErrRecipientKeyNotFound.
func LookupKeyPair(ctx context.Context, store KeyStore, identity string) (*KeyPair, error) {
	kp, err := store.Get(ctx, identity)
	if err != nil {
		if errors.Is(err, keystore.ErrNotFound) {
			return nil, fmt.Errorf("%w: %q", ErrRecipientKeyNotFound, identity)
		}
		return nil, fmt.Errorf("failed to load key pair: %w", err)
	}
	return kp, nil
}

// EnsureKeyPair returns the key pair for identity, generating and storing one
// if none exists. created reports whether a new pair was made.
func EnsureKeyPair(ctx context.Context, store KeyStore, identity string) (kp *KeyPair, created bool, err error) {
	kp, err = store.Get(ctx, identity)
	if err == nil {
		return kp, false, nil
	}
	if !errors.Is(err, keystore.ErrNotFound) {
		return nil, false, fmt.Errorf("failed to load key pair: %w", err)
	}

	if kp, err = GenerateKeyPair(); err != nil {
		return nil, false, err
	}
	if err := store.Put(ctx, identity, kp); err != nil {
		return nil, false, fmt.Errorf("failed to store key pair: %w", err)
	}
	return kp, true, nil
}

// HideFor resolves the recipient's public key from store, then behaves like
// HideMessage. Keys are looked up on every call.
func (p *Pipeline) HideFor(ctx context.Context, store KeyStore, recipient string, plaintext, cover []byte, opts ...HideOption) ([]byte, error) {
	kp, err := LookupKeyPair(ctx, store, recipient)
	if err != nil {
		p.observe("hide", err, 0)
		return nil, err
	}
	return p.HideMessage(ctx, plaintext, &kp.PublicKey, cover, opts...)
}

// RevealAs resolves identity's key pair from store, then behaves like
// RevealMessage.
func (p *Pipeline) RevealAs(ctx context.Context, store KeyStore, identity string, stego []byte) ([]byte, error) {
	kp, err := LookupKeyPair(ctx, store, identity)
	if err != nil {
		p.observe("reveal", err, 0)
		return nil, err
	}
	return p.RevealMessage(ctx, stego, kp)
}
