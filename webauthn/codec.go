package webauthn

import (
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// Bytes is an opaque byte sequence that travels on the wire as URL-safe
// base64 without padding. Equality is defined on the byte content.
//
// https://www.w3.org/TR/webauthn-3/#typedefdef-base64urlstring
type Bytes []byte

// Equal reports whether b and other hold the same bytes, in constant time.
func (b Bytes) Equal(other []byte) bool {
	if len(b) != len(other) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(b), other) == 1
}

// String returns the canonical base64url-without-padding encoding.
func (b Bytes) String() string {
	return base64.RawURLEncoding.EncodeToString(b)
}

// MarshalJSON implements the wire encoding used throughout the WebAuthn
// DTOs: base64url without padding, as a JSON string.
func (b Bytes) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.String())
}

// UnmarshalJSON decodes a base64url string, tolerating padding on input per
// spec §4.1.
func (b *Bytes) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("webauthn: bytes value is not a JSON string: %w", err)
	}
	decoded, err := DecodeBase64URL(s)
	if err != nil {
		return err
	}
	*b = decoded
	return nil
}

// EncodeBase64URL encodes b as URL-safe base64 without padding.
func EncodeBase64URL(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}

// DecodeBase64URL decodes a URL-safe base64 string, accepting both padded
// and unpadded input; any character outside the URL-safe alphabet (plus
// optional trailing '=' padding) fails with MalformedInput.
func DecodeBase64URL(s string) (Bytes, error) {
	// Trim padding, if present, and decode without it: RawURLEncoding is
	// strict about trailing '=' being absent, but the wire format tolerates
	// padded input per spec §4.1.
	trimmed := s
	for len(trimmed) > 0 && trimmed[len(trimmed)-1] == '=' {
		trimmed = trimmed[:len(trimmed)-1]
	}
	decoded, err := base64.RawURLEncoding.DecodeString(trimmed)
	if err != nil {
		return nil, fail("DecodeBase64URL", MalformedInput, err)
	}
	return Bytes(decoded), nil
}
