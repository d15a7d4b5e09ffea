package webauthn

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"github.com/passkeyrp/webauthn-rp/webauthn/internal/cbor"
)

// maxCredentialIDLength is the largest credentialIdLength this parser
// accepts, per spec §4.2 / §8 boundary behavior.
const maxCredentialIDLength = 1023

// ParseAuthenticatorData parses the fixed+variable authenticator data
// layout: rpIdHash(32) ‖ flags(1) ‖ signCount(4 BE) ‖
// [attestedCredentialData] ‖ [extensions].
//
// https://www.w3.org/TR/webauthn-3/#sctn-authenticator-data
func ParseAuthenticatorData(b []byte) (*AuthenticatorData, error) {
	const op = "ParseAuthenticatorData"
	if len(b) < 37 {
		return nil, fail(op, MalformedAuthenticatorData, fmt.Errorf("need at least 37 bytes, got %d", len(b)))
	}

	ad := &AuthenticatorData{Raw: Bytes(append([]byte{}, b...))}
	ad.RPIDHash = Bytes(b[:32])
	rest := b[32:]

	ad.Flags = Flags(rest[0])
	rest = rest[1:]

	ad.SignCount = binary.BigEndian.Uint32(rest[:4])
	rest = rest[4:]

	if ad.Flags.AttestedCredentialData() {
		if len(rest) < 16+2 {
			return nil, fail(op, MalformedAuthenticatorData, fmt.Errorf("not enough bytes for attested credential data header"))
		}
		var aaguid AAGUID
		copy(aaguid[:], rest[:16])
		rest = rest[16:]

		credIDLen := binary.BigEndian.Uint16(rest[:2])
		rest = rest[2:]
		if int(credIDLen) > maxCredentialIDLength {
			return nil, fail(op, MalformedAuthenticatorData, fmt.Errorf("credential id length %d exceeds maximum of %d", credIDLen, maxCredentialIDLength))
		}
		if len(rest) < int(credIDLen) {
			return nil, fail(op, MalformedAuthenticatorData, fmt.Errorf("not enough bytes for credential id"))
		}
		credID := rest[:credIDLen]
		rest = rest[credIDLen:]

		d := cbor.NewDecoder(rest)
		key, err := d.PublicKey()
		if err != nil {
			return nil, fail(op, MalformedAuthenticatorData, fmt.Errorf("parsing credential public key: %w", err))
		}
		rest = d.Rest()

		ad.AttestedCredentialData = &AttestedCredentialData{
			AAGUID:       aaguid,
			CredentialID: Bytes(append([]byte{}, credID...)),
			CredentialPublicKey: COSEKey{
				Algorithm: Algorithm(key.Algorithm),
				PublicKey: key.Public,
			},
		}
	}

	if ad.Flags.Extensions() {
		d := cbor.NewDecoder(rest)
		var raw []byte
		if !d.Raw(&raw) || !d.Done() {
			return nil, fail(op, MalformedAuthenticatorData, fmt.Errorf("extensions did not consume exactly the remaining bytes"))
		}
		ad.Extensions = Bytes(raw)
		rest = nil
	}

	if len(rest) != 0 {
		return nil, fail(op, MalformedAuthenticatorData, fmt.Errorf("%d trailing bytes after authenticator data", len(rest)))
	}
	return ad, nil
}

// VerifyRPIDHash reports whether ad's rpIdHash matches SHA-256(rpID).
func (ad *AuthenticatorData) VerifyRPIDHash(rpID string) bool {
	want := sha256.Sum256([]byte(rpID))
	return ad.RPIDHash.Equal(want[:])
}
