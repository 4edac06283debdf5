package crypto

import "errors"

var (
	// ErrInvalidPrivateKeySize is returned when a private key is not 32 bytes.
	ErrInvalidPrivateKeySize = errors.New("invalid private key size")

	// ErrInvalidPublicKeySize is returned when a public key is not 32 bytes.
	ErrInvalidPublicKeySize = errors.New("invalid public key size")

	// ErrKeyMismatch is returned when a public key does not belong to the
	// private key it was paired with.
	ErrKeyMismatch = errors.New("public key does not match private key")

	// ErrMissingKey is returned when a nil recipient key or key pair is supplied.
	ErrMissingKey = errors.New("missing key")

	// ErrCiphertextTooShort is returned when a sealed message is shorter than
	// the suite overhead and cannot possibly be authentic.
	ErrCiphertextTooShort = errors.New("ciphertext too short")

	// ErrDecryptionFailed is returned when authentication of a sealed message
	// or wrapped key fails. No plaintext is ever returned alongside it.
	ErrDecryptionFailed = errors.New("decryption failed")

	// ErrEncryptionFailed is returned when sealing fails, typically because
	// the random source is exhausted.
	ErrEncryptionFailed = errors.New("encryption failed")

	// ErrInvalidKeySize is returned when the AES key size is invalid.
	ErrInvalidKeySize = errors.New("invalid key size")

	// ErrUnknownSuite is returned by [NewSealer] for an unrecognized suite name.
	ErrUnknownSuite = errors.New("unknown cipher suite")

	// ErrInvalidEncoding is returned when a textual key is neither hex nor base64.
	ErrInvalidEncoding = errors.New("invalid key encoding")
)
