package webauthn

import (
	"fmt"

	"github.com/passkeyrp/webauthn-rp/webauthn/internal/cbor"
)

// verifyNoneAttestation handles the "none" format: the attestation
// statement MUST be an empty CBOR map.
//
// https://www.w3.org/TR/webauthn-3/#sctn-none-attestation
func verifyNoneAttestation(att *AttestationObject) (AttestationType, error) {
	const op = "verifyNoneAttestation"
	d := cbor.NewDecoder(att.AttestationStatement)
	empty := true
	if !d.Map(func(kv *cbor.Decoder) bool {
		empty = false
		return kv.Skip() && kv.Skip()
	}) || !d.Done() {
		return "", fail(op, AttestationVerificationFailed, fmt.Errorf("attestation statement is not a valid CBOR map"))
	}
	if !empty {
		return "", fail(op, AttestationVerificationFailed, fmt.Errorf("'none' attestation statement must be empty"))
	}
	return AttestationNone, nil
}
