package webauthn

import (
	"bytes"
	"crypto/sha256"
	"crypto/x509"
	"encoding/asn1"
	"fmt"

	"github.com/passkeyrp/webauthn-rp/webauthn/internal/cbor"
)

var appleAnonymousAttestationOID = asn1.ObjectIdentifier{1, 2, 840, 113635, 100, 8, 2}

// verifyAppleAttestation handles Apple's anonymous attestation format. It
// checks that the leaf certificate's nonce extension equals
// SHA-256(authData||clientDataHash) and that the leaf certificate's public
// key matches the credential public key in authData. The certificate chain
// is not validated against Apple's root (see Non-goals).
//
// https://www.w3.org/TR/webauthn-3/#sctn-apple-anonymous-attestation
func verifyAppleAttestation(att *AttestationObject, ad *AuthenticatorData, clientDataHash []byte) (AttestationType, error) {
	const op = "verifyAppleAttestation"
	if ad.AttestedCredentialData == nil {
		return "", fail(op, AttestationVerificationFailed, fmt.Errorf("no attested credential data to attest"))
	}

	var x5c [][]byte
	d := cbor.NewDecoder(att.AttestationStatement)
	ok := d.Map(func(kv *cbor.Decoder) bool {
		var key string
		if !kv.String(&key) {
			return false
		}
		switch key {
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
	if !ok || len(x5c) == 0 {
		return "", fail(op, AttestationVerificationFailed, fmt.Errorf("apple attestation statement missing x5c"))
	}

	leaf, err := x509.ParseCertificate(x5c[0])
	if err != nil {
		return "", fail(op, AttestationVerificationFailed, fmt.Errorf("invalid leaf certificate: %w", err))
	}

	// "Concatenate authenticatorData and clientDataHash to form
	// nonceToHash. Perform SHA-256 hash of nonceToHash to produce nonce."
	nonce := sha256.Sum256(signedData(att.AuthData, clientDataHash))

	var certNonce []byte
	for _, ext := range leaf.Extensions {
		if ext.Id.Equal(appleAnonymousAttestationOID) {
			// The extension value is a SEQUENCE containing a single
			// context-tagged [1] OCTET STRING holding the nonce.
			var seq asn1.RawValue
			if _, err := asn1.Unmarshal(ext.Value, &seq); err != nil {
				return "", fail(op, AttestationVerificationFailed, fmt.Errorf("parsing apple nonce extension: %w", err))
			}
			var inner asn1.RawValue
			if _, err := asn1.Unmarshal(seq.Bytes, &inner); err != nil {
				return "", fail(op, AttestationVerificationFailed, fmt.Errorf("parsing apple nonce extension contents: %w", err))
			}
			certNonce = inner.Bytes
			break
		}
	}
	if certNonce == nil {
		return "", fail(op, AttestationVerificationFailed, fmt.Errorf("no apple anonymous attestation nonce extension found"))
	}
	if !bytes.Equal(certNonce, nonce[:]) {
		return "", fail(op, AttestationVerificationFailed, fmt.Errorf("apple attestation nonce does not match authData||clientDataHash digest"))
	}

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
	return AttestationAnonymizationCA, nil
}
