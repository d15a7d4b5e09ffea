package webauthn

import (
	"crypto/ecdsa"
	"crypto/x509"
	"fmt"

	"github.com/passkeyrp/webauthn-rp/webauthn/internal/cbor"
)

// verifyFIDOU2FAttestation handles the "fido-u2f" format used by CTAP1/U2F
// security keys. The signature is verified only; the certificate is not
// chained to a trust root (see Non-goals).
//
// https://www.w3.org/TR/webauthn-3/#sctn-fido-u2f-attestation
func verifyFIDOU2FAttestation(att *AttestationObject, ad *AuthenticatorData, clientDataHash []byte) (AttestationType, error) {
	const op = "verifyFIDOU2FAttestation"
	if ad.AttestedCredentialData == nil {
		return "", fail(op, AttestationVerificationFailed, fmt.Errorf("no attested credential data to attest"))
	}

	var sig []byte
	var x5c [][]byte
	d := cbor.NewDecoder(att.AttestationStatement)
	ok := d.Map(func(kv *cbor.Decoder) bool {
		var key string
		if !kv.String(&key) {
			return false
		}
		switch key {
		case "sig":
			return kv.Bytes(&sig)
		case "x5c":
			return kv.Array(func(d *cbor.Decoder) bool {
				var cert []byte
				if !d.Bytes(&cert) {
					return false
				}
				x5c = append(x5c, cert)
				return true
			})
		default:
			return kv.Skip()
		}
	}) && d.Done()
	if !ok || len(sig) == 0 || len(x5c) != 1 {
		return "", fail(op, AttestationVerificationFailed, fmt.Errorf("fido-u2f attestation statement must contain a signature and exactly one certificate"))
	}

	cert, err := x509.ParseCertificate(x5c[0])
	if err != nil {
		return "", fail(op, AttestationVerificationFailed, fmt.Errorf("invalid attestation certificate: %w", err))
	}
	ecdsaPub, ok := cert.PublicKey.(*ecdsa.PublicKey)
	if !ok {
		return "", fail(op, AttestationVerificationFailed, fmt.Errorf("fido-u2f attestation certificate must hold an EC public key, got %T", cert.PublicKey))
	}

	// Reconstruct the U2F registration response signature base:
	// 0x00 ‖ rpIdHash ‖ clientDataHash ‖ credentialId ‖ publicKeyU2F.
	// publicKeyU2F is the uncompressed EC point (0x04 ‖ X ‖ Y), which the
	// authenticator computed from the COSE key now stored in authData.
	pub, ok := ad.AttestedCredentialData.CredentialPublicKey.PublicKey.(*ecdsa.PublicKey)
	if !ok {
		return "", fail(op, AttestationVerificationFailed, fmt.Errorf("fido-u2f credential public key must be EC, got %T", ad.AttestedCredentialData.CredentialPublicKey.PublicKey))
	}
	publicKeyU2F := marshalUncompressedPoint(pub)

	base := make([]byte, 0, 1+32+32+len(ad.AttestedCredentialData.CredentialID)+65)
	base = append(base, 0x00)
	base = append(base, ad.RPIDHash...)
	base = append(base, clientDataHash...)
	base = append(base, ad.AttestedCredentialData.CredentialID...)
	base = append(base, publicKeyU2F...)

	if !ecdsa.VerifyASN1(ecdsaPub, sha256Sum(base), sig) {
		return "", fail(op, AttestationVerificationFailed, fmt.Errorf("invalid fido-u2f attestation signature"))
	}
	return AttestationBasic, nil
}

func marshalUncompressedPoint(pub *ecdsa.PublicKey) []byte {
	size := (pub.Curve.Params().BitSize + 7) / 8
	out := make([]byte, 1+2*size)
	out[0] = 0x04
	pub.X.FillBytes(out[1 : 1+size])
	pub.Y.FillBytes(out[1+size : 1+2*size])
	return out
}
