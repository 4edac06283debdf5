package crypto

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
)

// ToBase64URL encodes bytes to URL-safe base64 without padding.
func ToBase64URL(data []byte) string {
	return base64.RawURLEncoding.EncodeToString(data)
}

// FromBase64URL decodes URL-safe base64 without padding.
func FromBase64URL(s string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(s)
}

// DecodeBase64 decodes base64 leniently: URL-safe or standard alphabet,
// with or without padding.
func DecodeBase64(s string) ([]byte, error) {
	for _, enc := range []*base64.Encoding{
		base64.RawURLEncoding,
		base64.URLEncoding,
		base64.RawStdEncoding,
	} {
		if data, err := enc.DecodeString(s); err == nil {
			return data, nil
		}
	}
	return base64.StdEncoding.DecodeString(s)
}

// DecodeKey decodes a textual 32-byte key. Hex (64 characters) is tried
// first, then any base64 variant.
func DecodeKey(s string) ([]byte, error) {
	s = strings.TrimSpace(s)

	if len(s) == hex.EncodedLen(KeySize) {
		if data, err := hex.DecodeString(s); err == nil {
			return data, nil
		}
	}

	data, err := DecodeBase64(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEncoding, err)
	}
	if len(data) != KeySize {
		return nil, fmt.Errorf("%w: decoded %d bytes, want %d", ErrInvalidEncoding, len(data), KeySize)
	}
	return data, nil
}
