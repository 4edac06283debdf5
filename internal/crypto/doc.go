// Package crypto provides the public-key sealing used to protect hidden
// messages, plus the symmetric primitives used to wrap private keys at rest.
//
// # Cipher Suites
//
// Two [Sealer] implementations share one X25519 [KeyPair] format:
//
//   - [SealedBox] ("nacl-sealedbox"): NaCl anonymous sealed box, X25519 with
//     XSalsa20-Poly1305. Compatible with libsodium crypto_box_seal and
//     PyNaCl SealedBox. 48 bytes of overhead.
//
//   - [HPKE] ("hpke-x25519-chacha20poly1305"): RFC 9180 base mode with
//     DHKEM(X25519, HKDF-SHA256), HKDF-SHA256 and ChaCha20-Poly1305. The info
//     string is [SealInfo]. 48 bytes of overhead.
//
// Both use a fresh ephemeral sender key per message. The sender is anonymous;
// nothing authenticates who sealed a message.
//
// # Key Wrapping
//
// [EncryptAESGCM] and [DecryptAESGCM] implement nonce-prefixed AES-256-GCM
// with associated data. [DeriveKey] is HKDF-SHA-512. Key stores combine them to
// encrypt private keys under a master secret, with the owning identity as
// associated data so a record cannot be moved to another identity.
//
// # Key Encoding
//
// Keys travel as URL-safe base64 without padding ([ToBase64URL]). [DecodeKey]
// also accepts hex and the other base64 variants.
package crypto
