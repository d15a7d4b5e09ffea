package webauthn

import (
	"errors"
	"testing"
)

func TestConfigSetDefaults(t *testing.T) {
	var c Config
	c.SetDefaults()
	if c.Timeout == 0 {
		t.Errorf("timeout not defaulted")
	}
	if c.UserVerification != VerificationPreferred {
		t.Errorf("userVerification = %q, want %q", c.UserVerification, VerificationPreferred)
	}
	if c.AttestationPreference != PreferNoAttestation {
		t.Errorf("attestationPreference = %q, want %q", c.AttestationPreference, PreferNoAttestation)
	}
	if c.ResidentKeyRequirement != ResidentKeyPreferred {
		t.Errorf("residentKeyRequirement = %q, want %q", c.ResidentKeyRequirement, ResidentKeyPreferred)
	}
}

func TestConfigSetDefaults_DoesNotOverride(t *testing.T) {
	c := Config{UserVerification: VerificationRequired}
	c.SetDefaults()
	if c.UserVerification != VerificationRequired {
		t.Errorf("SetDefaults overrode an explicit value")
	}
}

func TestConfigValidate(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
		want error
	}{
		{"missing rp id", Config{RPDisplayName: "x", RPOrigins: []string{"https://a"}}, ErrMissingRPID},
		{"missing display name", Config{RPID: "x", RPOrigins: []string{"https://a"}}, ErrMissingRPName},
		{"missing origins", Config{RPID: "x", RPDisplayName: "x"}, ErrMissingOrigins},
		{"valid", Config{RPID: "x", RPDisplayName: "x", RPOrigins: []string{"https://a"}}, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if !errors.Is(err, tc.want) {
				t.Errorf("Validate() = %v, want %v", err, tc.want)
			}
		})
	}
}
