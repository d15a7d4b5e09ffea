package webauthn

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"strings"
	"testing"
)

// ecCOSEKey is a known-good CBOR-encoded COSE_Key for a P-256 EC2 key,
// taken from the spec's own encoded-credPubKey example.
//
// https://www.w3.org/TR/webauthn-3/#sctn-encoded-credPubKey-examples
var ecCOSEKey, _ = hex.DecodeString(strings.Join(strings.Fields(`A5
   01  02
   03  26
   20  01
   21  58 20   65eda5a12577c2bae829437fe338701a10aaa375e1bb5b5de108de439c08551d
   22  58 20   1e52ed75701163f7f9e40ddf9f341b3dc9ba860af7e0ca7ca7e9eecd0084d19c`), ""))

// buildAuthData assembles rpIdHash‖flags‖signCount‖attestedCredentialData
// with a credential ID of the given length, for exercising the
// credentialIdLength boundary.
func buildAuthData(t *testing.T, credIDLen int) []byte {
	t.Helper()
	var buf bytes.Buffer
	buf.Write(bytes.Repeat([]byte{0xab}, 32)) // rpIdHash
	buf.WriteByte(flagAT)                     // flags: AT only
	binary.Write(&buf, binary.BigEndian, uint32(1))
	buf.Write(bytes.Repeat([]byte{0xcd}, 16)) // aaguid
	binary.Write(&buf, binary.BigEndian, uint16(credIDLen))
	buf.Write(bytes.Repeat([]byte{0xef}, credIDLen))
	buf.Write(ecCOSEKey)
	return buf.Bytes()
}

func TestParseAuthenticatorData_CredentialIDAtMaximum(t *testing.T) {
	data := buildAuthData(t, maxCredentialIDLength)
	ad, err := ParseAuthenticatorData(data)
	if err != nil {
		t.Fatalf("ParseAuthenticatorData: %v", err)
	}
	if len(ad.AttestedCredentialData.CredentialID) != maxCredentialIDLength {
		t.Errorf("credential id length = %d, want %d", len(ad.AttestedCredentialData.CredentialID), maxCredentialIDLength)
	}
}

func TestParseAuthenticatorData_CredentialIDOverMaximum(t *testing.T) {
	data := buildAuthData(t, maxCredentialIDLength+1)
	_, err := ParseAuthenticatorData(data)
	if !IsKind(err, MalformedAuthenticatorData) {
		t.Fatalf("err = %v, want MalformedAuthenticatorData", err)
	}
}

func TestParseAuthenticatorData_TooShort(t *testing.T) {
	_, err := ParseAuthenticatorData(make([]byte, 36))
	if !IsKind(err, MalformedAuthenticatorData) {
		t.Fatalf("err = %v, want MalformedAuthenticatorData", err)
	}
}

func TestParseAuthenticatorData_TrailingGarbage(t *testing.T) {
	data := buildAuthData(t, 16)
	data = append(data, 0xff)
	_, err := ParseAuthenticatorData(data)
	if !IsKind(err, MalformedAuthenticatorData) {
		t.Fatalf("err = %v, want MalformedAuthenticatorData", err)
	}
}

func TestParseAuthenticatorData_NoAttestedCredentialData(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(bytes.Repeat([]byte{0xab}, 32))
	buf.WriteByte(flagUP)
	binary.Write(&buf, binary.BigEndian, uint32(7))

	ad, err := ParseAuthenticatorData(buf.Bytes())
	if err != nil {
		t.Fatalf("ParseAuthenticatorData: %v", err)
	}
	if ad.AttestedCredentialData != nil {
		t.Errorf("expected nil AttestedCredentialData")
	}
	if ad.SignCount != 7 {
		t.Errorf("signCount = %d, want 7", ad.SignCount)
	}
}

func TestAuthenticatorData_VerifyRPIDHash(t *testing.T) {
	data := buildAuthData(t, 16)
	ad, err := ParseAuthenticatorData(data)
	if err != nil {
		t.Fatalf("ParseAuthenticatorData: %v", err)
	}
	if ad.VerifyRPIDHash("example.com") {
		t.Errorf("expected mismatch against a synthetic rpIdHash")
	}
}

// User handle boundary (64 vs 65 bytes) is enforced on UserEntity, not on
// wire-parsed authenticator data; see TestUserEntityValidate below.
func TestUserEntityValidate_HandleAtMaximum(t *testing.T) {
	u := UserEntity{ID: Bytes(bytes.Repeat([]byte{1}, 64)), Name: "a"}
	if err := u.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestUserEntityValidate_HandleOverMaximum(t *testing.T) {
	u := UserEntity{ID: Bytes(bytes.Repeat([]byte{1}, 65)), Name: "a"}
	err := u.Validate()
	if !IsKind(err, MalformedInput) {
		t.Fatalf("err = %v, want MalformedInput", err)
	}
}

func TestUserEntityValidate_EmptyHandle(t *testing.T) {
	u := UserEntity{ID: Bytes{}, Name: "a"}
	err := u.Validate()
	if !IsKind(err, MalformedInput) {
		t.Fatalf("err = %v, want MalformedInput", err)
	}
}
