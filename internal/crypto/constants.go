package crypto

const (
	// SealInfo is the HPKE info string used for domain separation of
	// message sealing.
	SealInfo = "stegseal:seal:v1"

	// KeyWrapInfo is the HKDF info string used when deriving the key that
	// wraps private keys at rest.
	KeyWrapInfo = "stegseal:keystore:v1"

	// KeySize is the size of an X25519 public or private key in bytes.
	KeySize = 32

	// SealedBoxOverhead is the number of bytes a NaCl sealed box adds to
	// the plaintext: an ephemeral public key plus a Poly1305 tag.
	SealedBoxOverhead = 48

	// HPKEEncapsulatedKeySize is the size of the DHKEM(X25519) encapsulated key.
	HPKEEncapsulatedKeySize = 32
	// HPKETagSize is the size of a ChaCha20-Poly1305 tag.
	HPKETagSize = 16

	// AESKeySize is the size of an AES-256 key in bytes.
	AESKeySize = 32
	// AESNonceSize is the size of an AES-GCM nonce in bytes.
	AESNonceSize = 12
	// AESTagSize is the size of an AES-GCM authentication tag in bytes.
	AESTagSize = 16
)

// Suite names accepted by [NewSealer].
const (
	SuiteSealedBox = "nacl-sealedbox"
	SuiteHPKE      = "hpke-x25519-chacha20poly1305"
)
