package keystore

import (
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/stegseal/stegseal-go/internal/crypto"
)

const recordVersion = 1

// record is the persisted form of a key pair.
type record struct {
	Version    int       `msgpack:"v"`
	Identity   string    `msgpack:"id"`
	PublicKey  []byte    `msgpack:"pk"`
	PrivateKey []byte    `msgpack:"sk"`
	Wrapped    bool      `msgpack:"w"`
	CreatedAt  time.Time `msgpack:"ts"`
}

func newRecord(w *Wrapper, identity string, kp *crypto.KeyPair, createdAt time.Time) (*record, error) {
	r := &record{
		Version:    recordVersion,
		Identity:   identity,
		PublicKey:  append([]byte(nil), kp.PublicKey[:]...),
		PrivateKey: append([]byte(nil), kp.PrivateKey[:]...),
		CreatedAt:  createdAt.UTC(),
	}

	if w != nil {
		wrapped, err := w.Wrap(identity, r.PrivateKey)
		if err != nil {
			return nil, fmt.Errorf("failed to wrap private key: %w", err)
		}
		r.PrivateKey = wrapped
		r.Wrapped = true
	}
	return r, nil
}

func (r *record) keyPair(w *Wrapper) (*crypto.KeyPair, error) {
	priv := r.PrivateKey
	if r.Wrapped {
		if w == nil {
			return nil, ErrWrapperRequired
		}
		var err error
		if priv, err = w.Unwrap(r.Identity, priv); err != nil {
			return nil, err
		}
	}

	kp, err := crypto.NewKeyPairFromBytes(priv, r.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptRecord, err)
	}
	return kp, nil
}

func (r *record) entry() (Entry, error) {
	e := Entry{Identity: r.Identity, CreatedAt: r.CreatedAt}
	if len(r.PublicKey) != crypto.KeySize {
		return e, fmt.Errorf("%w: public key is %d bytes", ErrCorruptRecord, len(r.PublicKey))
	}
	copy(e.PublicKey[:], r.PublicKey)
	return e, nil
}

func marshalRecord(r *record) ([]byte, error) {
	b, err := msgpack.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("failed to encode record: %w", err)
	}
	return b, nil
}

func unmarshalRecord(b []byte) (*record, error) {
	var r record
	if err := msgpack.Unmarshal(b, &r); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptRecord, err)
	}
	if r.Version != recordVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrCorruptRecord, r.Version)
	}
	return &r, nil
}
