package webauthn

import "testing"

func TestParseAttestationObject_NoneFormat(t *testing.T) {
	raw := mustDecodeFixture(t, fixtureRegistrationAttestationObject)
	att, err := ParseAttestationObject(raw)
	if err != nil {
		t.Fatalf("ParseAttestationObject: %v", err)
	}
	if att.Format != FormatNone {
		t.Errorf("format = %q, want %q", att.Format, FormatNone)
	}
	if len(att.AuthData) == 0 {
		t.Errorf("authData is empty")
	}
}

func TestParseAttestationObject_MissingFmt(t *testing.T) {
	// {"authData": h'00'} -- map with one entry, key "authData", one byte;
	// no "fmt" key.
	raw := []byte{0xa1, 0x68, 'a', 'u', 't', 'h', 'D', 'a', 't', 'a', 0x41, 0x00}
	_, err := ParseAttestationObject(raw)
	if !IsKind(err, MalformedInput) {
		t.Fatalf("err = %v, want MalformedInput", err)
	}
}

func TestParseAttestationObject_NotCBOR(t *testing.T) {
	_, err := ParseAttestationObject([]byte("not cbor"))
	if !IsKind(err, MalformedInput) {
		t.Fatalf("err = %v, want MalformedInput", err)
	}
}

func TestVerifyAttestationStatement_None(t *testing.T) {
	raw := mustDecodeFixture(t, fixtureRegistrationAttestationObject)
	att, err := ParseAttestationObject(raw)
	if err != nil {
		t.Fatalf("ParseAttestationObject: %v", err)
	}
	ad, err := ParseAuthenticatorData(att.AuthData)
	if err != nil {
		t.Fatalf("ParseAuthenticatorData: %v", err)
	}
	typ, err := VerifyAttestationStatement(att, ad, nil, nil)
	if err != nil {
		t.Fatalf("VerifyAttestationStatement: %v", err)
	}
	if typ != AttestationNone {
		t.Errorf("type = %q, want %q", typ, AttestationNone)
	}
}

func TestVerifyAttestationStatement_UnsupportedFormat(t *testing.T) {
	att := &AttestationObject{Format: "made-up-format"}
	_, err := VerifyAttestationStatement(att, &AuthenticatorData{}, nil, nil)
	if !IsKind(err, UnsupportedAttestationFormat) {
		t.Fatalf("err = %v, want UnsupportedAttestationFormat", err)
	}
}

func TestVerifyNoneAttestation_NonEmptyStatement(t *testing.T) {
	att := &AttestationObject{
		Format: FormatNone,
		// {"x": 1} -- a non-empty map, which "none" must reject.
		AttestationStatement: []byte{0xa1, 0x61, 'x', 0x01},
	}
	_, err := verifyNoneAttestation(att)
	if !IsKind(err, AttestationVerificationFailed) {
		t.Fatalf("err = %v, want AttestationVerificationFailed", err)
	}
}
