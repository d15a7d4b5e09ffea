package webauthn

import "testing"

func TestParseClientData_Valid(t *testing.T) {
	raw := []byte(`{"type":"webauthn.create","challenge":"lEF-gy75K8vHcTt1GBlvPg","origin":"https://example.com","crossOrigin":false}`)
	cd, err := ParseClientData(raw)
	if err != nil {
		t.Fatalf("ParseClientData: %v", err)
	}
	if cd.Type != "webauthn.create" {
		t.Errorf("type = %q", cd.Type)
	}
	if cd.Origin != "https://example.com" {
		t.Errorf("origin = %q", cd.Origin)
	}
	if cd.CrossOrigin {
		t.Errorf("crossOrigin = true, want false")
	}
}

func TestParseClientData_MissingType(t *testing.T) {
	raw := []byte(`{"challenge":"lEF-gy75K8vHcTt1GBlvPg","origin":"https://example.com"}`)
	_, err := ParseClientData(raw)
	if !IsKind(err, MalformedInput) {
		t.Fatalf("err = %v, want MalformedInput", err)
	}
}

func TestParseClientData_InvalidJSON(t *testing.T) {
	_, err := ParseClientData([]byte(`not json`))
	if !IsKind(err, MalformedInput) {
		t.Fatalf("err = %v, want MalformedInput", err)
	}
}

func TestParseClientData_BadChallengeEncoding(t *testing.T) {
	raw := []byte(`{"type":"webauthn.create","challenge":"not base64url!!","origin":"https://example.com"}`)
	_, err := ParseClientData(raw)
	if !IsKind(err, MalformedInput) {
		t.Fatalf("err = %v, want MalformedInput", err)
	}
}

func TestClientDataValidate_TypeMismatch(t *testing.T) {
	cd := &ClientData{Type: "webauthn.get", Challenge: Bytes("c"), Origin: "https://example.com"}
	err := cd.Validate("webauthn.create", []byte("c"), map[string]bool{"https://example.com": true}, false)
	if !IsKind(err, InvalidClientDataType) {
		t.Fatalf("err = %v, want InvalidClientDataType", err)
	}
}

func TestClientDataValidate_ChallengeMismatch(t *testing.T) {
	cd := &ClientData{Type: "webauthn.create", Challenge: Bytes("wrong"), Origin: "https://example.com"}
	err := cd.Validate("webauthn.create", []byte("c"), map[string]bool{"https://example.com": true}, false)
	if !IsKind(err, ChallengeMismatch) {
		t.Fatalf("err = %v, want ChallengeMismatch", err)
	}
}

func TestClientDataValidate_OriginMismatch(t *testing.T) {
	cd := &ClientData{Type: "webauthn.create", Challenge: Bytes("c"), Origin: "https://evil.example"}
	err := cd.Validate("webauthn.create", []byte("c"), map[string]bool{"https://example.com": true}, false)
	if !IsKind(err, OriginMismatch) {
		t.Fatalf("err = %v, want OriginMismatch", err)
	}
}

func TestClientDataValidate_CrossOriginDisallowed(t *testing.T) {
	cd := &ClientData{Type: "webauthn.create", Challenge: Bytes("c"), Origin: "https://example.com", CrossOrigin: true}
	err := cd.Validate("webauthn.create", []byte("c"), map[string]bool{"https://example.com": true}, false)
	if !IsKind(err, CrossOriginDisallowed) {
		t.Fatalf("err = %v, want CrossOriginDisallowed", err)
	}
}

func TestClientDataValidate_CrossOriginAllowed(t *testing.T) {
	cd := &ClientData{Type: "webauthn.create", Challenge: Bytes("c"), Origin: "https://example.com", CrossOrigin: true}
	err := cd.Validate("webauthn.create", []byte("c"), map[string]bool{"https://example.com": true}, true)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
}
