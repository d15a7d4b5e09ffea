package webauthn

import (
	"bytes"
	"context"
	"testing"
	"time"
)

func TestNewCreationOptions_ChallengeLength(t *testing.T) {
	g := &OptionsGenerator{Config: Config{RPID: "example.com", RPDisplayName: "Example"}}
	user := UserEntity{ID: Bytes("user-1"), Name: "alice", DisplayName: "Alice"}

	options, err := g.NewCreationOptions(context.Background(), user, nil, nil)
	if err != nil {
		t.Fatalf("NewCreationOptions: %v", err)
	}
	if len(options.Challenge) != challengeLength {
		t.Errorf("challenge length = %d, want %d", len(options.Challenge), challengeLength)
	}
	if options.RP.ID != "example.com" {
		t.Errorf("RP.ID = %q", options.RP.ID)
	}
}

func TestNewCreationOptions_ExcludesExisting(t *testing.T) {
	g := &OptionsGenerator{Config: Config{RPID: "example.com", RPDisplayName: "Example"}}
	user := UserEntity{ID: Bytes("user-1"), Name: "alice", DisplayName: "Alice"}
	existing := []*CredentialRecord{{CredentialID: Bytes("cred-1"), Transports: []string{"internal"}}}

	options, err := g.NewCreationOptions(context.Background(), user, existing, nil)
	if err != nil {
		t.Fatalf("NewCreationOptions: %v", err)
	}
	if len(options.ExcludeCredentials) != 1 || !options.ExcludeCredentials[0].ID.Equal(Bytes("cred-1")) {
		t.Errorf("ExcludeCredentials = %+v", options.ExcludeCredentials)
	}
}

func TestNewCreationOptions_InvalidUser(t *testing.T) {
	g := &OptionsGenerator{Config: Config{RPID: "example.com", RPDisplayName: "Example"}}
	_, err := g.NewCreationOptions(context.Background(), UserEntity{}, nil, nil)
	if !IsKind(err, MalformedInput) {
		t.Fatalf("err = %v, want MalformedInput", err)
	}
}

func TestNewCreationOptions_TwoCallsDifferentChallenges(t *testing.T) {
	g := &OptionsGenerator{Config: Config{RPID: "example.com", RPDisplayName: "Example"}}
	user := UserEntity{ID: Bytes("user-1"), Name: "alice", DisplayName: "Alice"}

	a, err := g.NewCreationOptions(context.Background(), user, nil, nil)
	if err != nil {
		t.Fatalf("NewCreationOptions: %v", err)
	}
	b, err := g.NewCreationOptions(context.Background(), user, nil, nil)
	if err != nil {
		t.Fatalf("NewCreationOptions: %v", err)
	}
	if bytes.Equal(a.Challenge, b.Challenge) {
		t.Errorf("two independently generated challenges collided")
	}
}

func TestNewRequestOptions_DiscoverableWhenNoCredentials(t *testing.T) {
	g := &OptionsGenerator{Config: Config{RPID: "example.com"}}
	options, err := g.NewRequestOptions(context.Background(), nil)
	if err != nil {
		t.Fatalf("NewRequestOptions: %v", err)
	}
	if len(options.AllowCredentials) != 0 {
		t.Errorf("AllowCredentials = %+v, want empty", options.AllowCredentials)
	}
	if len(options.Challenge) != challengeLength {
		t.Errorf("challenge length = %d, want %d", len(options.Challenge), challengeLength)
	}
}

func TestNewRequestOptions_AllowList(t *testing.T) {
	g := &OptionsGenerator{Config: Config{RPID: "example.com"}}
	allow := []*CredentialRecord{{CredentialID: Bytes("cred-1")}, {CredentialID: Bytes("cred-2")}}
	options, err := g.NewRequestOptions(context.Background(), allow)
	if err != nil {
		t.Fatalf("NewRequestOptions: %v", err)
	}
	if len(options.AllowCredentials) != 2 {
		t.Errorf("AllowCredentials = %+v, want 2 entries", options.AllowCredentials)
	}
}

func TestOptionsGenerator_DeterministicClockAndRng(t *testing.T) {
	fixedTime := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	g := &OptionsGenerator{
		Config: Config{RPID: "example.com"},
		Rng:    bytes.NewReader(bytes.Repeat([]byte{0x42}, challengeLength)),
		Clock:  func() time.Time { return fixedTime },
	}
	if g.now() != fixedTime {
		t.Errorf("now() = %v, want %v", g.now(), fixedTime)
	}
	options, err := g.NewRequestOptions(context.Background(), nil)
	if err != nil {
		t.Fatalf("NewRequestOptions: %v", err)
	}
	want := Bytes(bytes.Repeat([]byte{0x42}, challengeLength))
	if !options.Challenge.Equal(want) {
		t.Errorf("challenge = %x, want %x", options.Challenge, want)
	}
}
