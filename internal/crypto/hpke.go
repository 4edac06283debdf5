package crypto

import (
	"fmt"

	"github.com/cloudflare/circl/hpke"
)

// HPKE seals messages with RFC 9180 base mode using DHKEM(X25519,
// HKDF-SHA256), HKDF-SHA256 and ChaCha20-Poly1305.
//
// Wire format: enc (32 bytes) || ciphertext || tag (16 bytes)
type HPKE struct {
	suite hpke.Suite
	kem   hpke.KEM
	info  []byte
}

// NewHPKE returns an HPKE Sealer bound to [SealInfo].
func NewHPKE() *HPKE {
	return &HPKE{
		suite: hpke.NewSuite(hpke.KEM_X25519_HKDF_SHA256, hpke.KDF_HKDF_SHA256, hpke.AEAD_ChaCha20Poly1305),
		kem:   hpke.KEM_X25519_HKDF_SHA256,
		info:  []byte(SealInfo),
	}
}

// Name implements Sealer.
func (*HPKE) Name() string { return SuiteHPKE }

// Overhead implements Sealer.
func (*HPKE) Overhead() int { return HPKEEncapsulatedKeySize + HPKETagSize }

// Seal implements Sealer.
func (h *HPKE) Seal(plaintext []byte, recipient *[KeySize]byte) ([]byte, error) {
	if recipient == nil {
		return nil, ErrMissingKey
	}

	pk, err := h.kem.Scheme().UnmarshalBinaryPublicKey(recipient[:])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPublicKeySize, err)
	}

	sender, err := h.suite.NewSender(pk, h.info)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncryptionFailed, err)
	}

	enc, sealer, err := sender.Setup(randReader)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncryptionFailed, err)
	}

	ct, err := sealer.Seal(plaintext, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncryptionFailed, err)
	}

	out := make([]byte, 0, len(enc)+len(ct))
	out = append(out, enc...)
	return append(out, ct...), nil
}

// Open implements Sealer.
func (h *HPKE) Open(ciphertext []byte, kp *KeyPair) ([]byte, error) {
	if err := checkOpenArgs(ciphertext, kp, h.Overhead()); err != nil {
		return nil, err
	}

	sk, err := h.kem.Scheme().UnmarshalBinaryPrivateKey(kp.PrivateKey[:])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPrivateKeySize, err)
	}

	receiver, err := h.suite.NewReceiver(sk, h.info)
	if err != nil {
		return nil, ErrDecryptionFailed
	}

	opener, err := receiver.Setup(ciphertext[:HPKEEncapsulatedKeySize])
	if err != nil {
		return nil, ErrDecryptionFailed
	}

	plaintext, err := opener.Open(ciphertext[HPKEEncapsulatedKeySize:], nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	if plaintext == nil {
		plaintext = []byte{}
	}
	return plaintext, nil
}
