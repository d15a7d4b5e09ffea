package webauthn

import (
	"crypto/sha256"
	"fmt"

	"github.com/passkeyrp/webauthn-rp/webauthn/internal/cbor"
)

func sha256Sum(b []byte) []byte {
	sum := sha256.Sum256(b)
	return sum[:]
}

// AttestationObject is the decoded top-level CBOR map: {fmt, authData,
// attStmt}.
//
// https://www.w3.org/TR/webauthn-3/#attestation-object
type AttestationObject struct {
	Format               string
	AuthData             Bytes
	AttestationStatement Bytes
}

// ParseAttestationObject decodes the CBOR attestation object produced by
// navigator.credentials.create().
func ParseAttestationObject(b []byte) (*AttestationObject, error) {
	const op = "ParseAttestationObject"
	d := cbor.NewDecoder(b)
	var (
		format   string
		authData []byte
		attest   []byte
	)
	if !d.Map(func(kv *cbor.Decoder) bool {
		var key string
		if !kv.String(&key) {
			return false
		}
		switch key {
		case "fmt":
			return kv.String(&format)
		case "attStmt":
			return kv.Raw(&attest)
		case "authData":
			return kv.Bytes(&authData)
		default:
			return kv.Skip()
		}
	}) || !d.Done() {
		return nil, fail(op, MalformedInput, fmt.Errorf("attestation object is not valid CBOR"))
	}
	if len(authData) == 0 {
		return nil, fail(op, MalformedInput, fmt.Errorf("attestation object missing authData"))
	}
	if format == "" {
		return nil, fail(op, MalformedInput, fmt.Errorf("attestation object missing fmt"))
	}
	return &AttestationObject{
		Format:               format,
		AuthData:             Bytes(authData),
		AttestationStatement: Bytes(attest),
	}, nil
}

// attestationResult is what a format verifier produces on success.
type attestationResult struct {
	Type AttestationType
}

// VerifyAttestationStatement dispatches to the format verifier named by
// att.Format and verifies attStmt against (authData, clientDataHash), per
// spec §4.3. No format validates a certificate chain against a trust root,
// except packed when PackedOptions.GetRoots is set.
func VerifyAttestationStatement(att *AttestationObject, ad *AuthenticatorData, clientDataHash []byte, opts *PackedOptions) (AttestationType, error) {
	const op = "VerifyAttestationStatement"
	switch att.Format {
	case FormatNone:
		return verifyNoneAttestation(att)
	case FormatPacked:
		return verifyPackedAttestation(att, ad, clientDataHash, opts)
	case FormatFIDOU2F:
		return verifyFIDOU2FAttestation(att, ad, clientDataHash)
	case FormatTPM:
		return verifyTPMAttestation(att, ad, clientDataHash)
	case FormatAndroidKey:
		return verifyAndroidKeyAttestation(att, ad, clientDataHash)
	case FormatAndroidSafetyNet:
		return verifyAndroidSafetyNetAttestation(att, ad, clientDataHash)
	case FormatApple:
		return verifyAppleAttestation(att, ad, clientDataHash)
	default:
		return "", fail(op, UnsupportedAttestationFormat, fmt.Errorf("unrecognized attestation format: %q", att.Format))
	}
}
