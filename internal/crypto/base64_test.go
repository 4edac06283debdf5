package crypto

import (
	"bytes"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"strings"
	"testing"
)

func TestBase64URLRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", []byte{}},
		{"simple", []byte("hello")},
		{"binary zeros", []byte{0x00, 0x00, 0x00}},
		{"binary mixed", []byte{0x00, 0xff, 0x7f, 0x80}},
		{"url unsafe chars", []byte{0xfb, 0xf0}},
		{"key sized", bytes.Repeat([]byte{0xfe}, KeySize)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encoded := ToBase64URL(tt.data)
			if strings.ContainsAny(encoded, "=+/") {
				t.Errorf("encoded string is not raw url-safe: %s", encoded)
			}

			decoded, err := FromBase64URL(encoded)
			if err != nil {
				t.Fatalf("FromBase64URL() error = %v", err)
			}
			if !bytes.Equal(decoded, tt.data) {
				t.Errorf("round trip failed: got %v, want %v", decoded, tt.data)
			}
		})
	}
}

func TestDecodeBase64_Variants(t *testing.T) {
	data := []byte{0xfb, 0xf0, 0x01, 0x02}

	encodings := map[string]*base64.Encoding{
		"raw url": base64.RawURLEncoding,
		"url":     base64.URLEncoding,
		"raw std": base64.RawStdEncoding,
		"std":     base64.StdEncoding,
	}

	for name, enc := range encodings {
		t.Run(name, func(t *testing.T) {
			got, err := DecodeBase64(enc.EncodeToString(data))
			if err != nil {
				t.Fatalf("DecodeBase64() error = %v", err)
			}
			if !bytes.Equal(got, data) {
				t.Errorf("got %x, want %x", got, data)
			}
		})
	}
}

func TestDecodeKey(t *testing.T) {
	kp, _ := GenerateKeyPair()
	want := kp.PublicKey[:]

	tests := []struct {
		name  string
		input string
	}{
		{"hex", hex.EncodeToString(want)},
		{"hex upper", strings.ToUpper(hex.EncodeToString(want))},
		{"base64url", ToBase64URL(want)},
		{"std base64", base64.StdEncoding.EncodeToString(want)},
		{"surrounding space", "  " + ToBase64URL(want) + "\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeKey(tt.input)
			if err != nil {
				t.Fatalf("DecodeKey() error = %v", err)
			}
			if !bytes.Equal(got, want) {
				t.Errorf("got %x, want %x", got, want)
			}
		})
	}
}

func TestDecodeKey_Invalid(t *testing.T) {
	tests := []string{
		"",
		"not a key!",
		ToBase64URL([]byte("short")),
		hex.EncodeToString(make([]byte, 16)),
	}

	for _, in := range tests {
		if _, err := DecodeKey(in); !errors.Is(err, ErrInvalidEncoding) {
			t.Errorf("DecodeKey(%q): expected ErrInvalidEncoding, got %v", in, err)
		}
	}
}
