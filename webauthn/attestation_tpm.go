package webauthn

import (
	"bytes"
	"crypto/x509"
	"encoding/binary"
	"fmt"

	"github.com/passkeyrp/webauthn-rp/webauthn/internal/cbor"
)

// verifyTPMAttestation handles the "tpm" format used by Windows Hello and
// other TPM-backed platform authenticators. Only the certInfo signature and
// the binding of certInfo's extraData to (authData, clientDataHash) is
// checked; the certificate is not chained to a trust root (see Non-goals).
//
// https://www.w3.org/TR/webauthn-3/#sctn-tpm-attestation
func verifyTPMAttestation(att *AttestationObject, ad *AuthenticatorData, clientDataHash []byte) (AttestationType, error) {
	const op = "verifyTPMAttestation"
	if ad.AttestedCredentialData == nil {
		return "", fail(op, AttestationVerificationFailed, fmt.Errorf("no attested credential data to attest"))
	}

	var (
		ver      string
		alg      int64
		sig      []byte
		x5c      [][]byte
		certInfo []byte
		pubArea  []byte
	)
	d := cbor.NewDecoder(att.AttestationStatement)
	ok := d.Map(func(kv *cbor.Decoder) bool {
		var key string
		if !kv.String(&key) {
			return false
		}
		switch key {
		case "ver":
			return kv.String(&ver)
		case "alg":
			return kv.Int(&alg)
		case "sig":
			return kv.Bytes(&sig)
		case "certInfo":
			return kv.Bytes(&certInfo)
		case "pubArea":
			return kv.Bytes(&pubArea)
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
	if !ok {
		return "", fail(op, AttestationVerificationFailed, fmt.Errorf("invalid tpm attestation statement"))
	}
	if ver != "2.0" {
		return "", fail(op, AttestationVerificationFailed, fmt.Errorf("unsupported tpm attestation version: %q", ver))
	}
	if len(x5c) == 0 {
		return "", fail(op, AttestationVerificationFailed, fmt.Errorf("tpm attestation requires an aikCert"))
	}
	_ = pubArea // presence of pubArea is required by the format but its internal structure is not re-derived here.

	aikCert, err := x509.ParseCertificate(x5c[0])
	if err != nil {
		return "", fail(op, AttestationVerificationFailed, fmt.Errorf("invalid aik certificate: %w", err))
	}

	// "Verify that sig is a valid signature over certInfo using the
	// attestation public key in aikCert with the algorithm specified by alg."
	if err := VerifySignature(aikCert.PublicKey, Algorithm(alg), certInfo, sig); err != nil {
		return "", fail(op, AttestationVerificationFailed, fmt.Errorf("verifying certInfo signature: %w", err))
	}

	// "Verify that the value of TPMS_ATTEST.extraData is set to the hash
	// of attToBeSigned using the hash algorithm employed in alg."
	extraData, err := tpmsAttestExtraData(certInfo)
	if err != nil {
		return "", fail(op, AttestationVerificationFailed, fmt.Errorf("parsing certInfo: %w", err))
	}
	want := sha256Sum(signedData(att.AuthData, clientDataHash))
	if !bytes.Equal(extraData, want) {
		return "", fail(op, AttestationVerificationFailed, fmt.Errorf("certInfo extraData does not match authData||clientDataHash digest"))
	}
	return AttestationAttestationCA, nil
}

// tpmsAttestExtraData extracts the extraData field from a TPMS_ATTEST
// structure (TPM 2.0 Part 2, section 10.12.8), which is laid out as:
// magic(4) ‖ type(2) ‖ qualifiedSigner(len-prefixed) ‖ extraData(len-prefixed) ‖ ...
func tpmsAttestExtraData(certInfo []byte) ([]byte, error) {
	if len(certInfo) < 6 {
		return nil, fmt.Errorf("certInfo too short")
	}
	magic := binary.BigEndian.Uint32(certInfo[0:4])
	const tpmGeneratedValue = 0xff544347
	if magic != tpmGeneratedValue {
		return nil, fmt.Errorf("unexpected TPM_GENERATED magic: %#x", magic)
	}
	b := certInfo[6:]
	qualifiedSignerLen, b, err := readTPM2B(b)
	if err != nil {
		return nil, err
	}
	_ = qualifiedSignerLen
	extraData, _, err := readTPM2B(b)
	if err != nil {
		return nil, err
	}
	return extraData, nil
}

// readTPM2B reads a TPM2B_* structure: a 2-byte big-endian length followed
// by that many bytes, returning the content and the remaining buffer.
func readTPM2B(b []byte) ([]byte, []byte, error) {
	if len(b) < 2 {
		return nil, nil, fmt.Errorf("buffer too short for TPM2B size")
	}
	n := binary.BigEndian.Uint16(b[:2])
	b = b[2:]
	if len(b) < int(n) {
		return nil, nil, fmt.Errorf("buffer too short for TPM2B content")
	}
	return b[:n], b[n:], nil
}
