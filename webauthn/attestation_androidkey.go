package webauthn

import (
	"bytes"
	"crypto/x509"
	"fmt"

	"github.com/passkeyrp/webauthn-rp/webauthn/internal/cbor"
)

// verifyAndroidKeyAttestation handles the "android-key" format used by
// Android's hardware-backed keystore. The statement signature is verified
// and the credential public key is checked against the leaf certificate;
// the Android key attestation extension's challenge binding and the
// certificate chain are not validated against a trust root (see
// Non-goals).
//
// https://www.w3.org/TR/webauthn-3/#sctn-android-key-attestation
func verifyAndroidKeyAttestation(att *AttestationObject, ad *AuthenticatorData, clientDataHash []byte) (AttestationType, error) {
	const op = "verifyAndroidKeyAttestation"
	if ad.AttestedCredentialData == nil {
		return "", fail(op, AttestationVerificationFailed, fmt.Errorf("no attested credential data to attest"))
	}

	var (
		alg int64
		sig []byte
		x5c [][]byte
	)
	d := cbor.NewDecoder(att.AttestationStatement)
	ok := d.Map(func(kv *cbor.Decoder) bool {
		var key string
		if !kv.String(&key) {
			return false
		}
		switch key {
		case "alg":
			return kv.Int(&alg)
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
	if !ok || len(sig) == 0 || len(x5c) == 0 {
		return "", fail(op, AttestationVerificationFailed, fmt.Errorf("android-key attestation statement must contain a signature and certificate chain"))
	}

	leaf, err := x509.ParseCertificate(x5c[0])
	if err != nil {
		return "", fail(op, AttestationVerificationFailed, fmt.Errorf("invalid leaf certificate: %w", err))
	}

	data := signedData(att.AuthData, clientDataHash)
	if err := VerifySignature(leaf.PublicKey, Algorithm(alg), data, sig); err != nil {
		return "", fail(op, AttestationVerificationFailed, fmt.Errorf("verifying android-key attestation signature: %w", err))
	}

	// "Verify that the public key in the first certificate in x5c matches
	// the credentialPublicKey in the attestedCredentialData in authenticatorData."
	leafKeyBytes, err := x509.MarshalPKIXPublicKey(leaf.PublicKey)
	if err != nil {
		return "", fail(op, AttestationVerificationFailed, fmt.Errorf("marshaling leaf certificate public key: %w", err))
	}
	credKeyBytes, err := x509.MarshalPKIXPublicKey(ad.AttestedCredentialData.CredentialPublicKey.PublicKey)
	if err != nil {
		return "", fail(op, AttestationVerificationFailed, fmt.Errorf("marshaling credential public key: %w", err))
	}
	if !bytes.Equal(leafKeyBytes, credKeyBytes) {
		return "", fail(op, AttestationVerificationFailed, fmt.Errorf("leaf certificate public key does not match authData credential public key"))
	}
	return AttestationBasic, nil
}
