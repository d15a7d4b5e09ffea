package webauthn

import "time"

// Config is the process-wide relying party configuration, bindable via
// viper from file, environment, or flags.
type Config struct {
	RPID          string   `mapstructure:"rp_id" yaml:"rpId" json:"rpId"`
	RPDisplayName string   `mapstructure:"rp_display_name" yaml:"rpDisplayName" json:"rpDisplayName"`
	RPOrigins     []string `mapstructure:"rp_origins" yaml:"rpOrigins" json:"rpOrigins"`

	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout" json:"timeout"`

	UserVerification        UserVerificationRequirement     `mapstructure:"user_verification" yaml:"userVerification" json:"userVerification"`
	AttestationPreference   AttestationConveyancePreference `mapstructure:"attestation_preference" yaml:"attestationPreference" json:"attestationPreference"`
	ResidentKeyRequirement  ResidentKeyRequirement          `mapstructure:"resident_key_requirement" yaml:"residentKeyRequirement" json:"residentKeyRequirement"`
	AuthenticatorAttachment AuthenticatorAttachment         `mapstructure:"authenticator_attachment" yaml:"authenticatorAttachment" json:"authenticatorAttachment"`

	// AllowCrossOrigin permits clientData.crossOrigin == true. Default
	// false: the RP rejects cross-origin ceremonies.
	AllowCrossOrigin bool `mapstructure:"allow_cross_origin" yaml:"allowCrossOrigin" json:"allowCrossOrigin"`

	// RejectUnsolicitedExtensions makes a ceremony whose authenticator data
	// carries extension outputs log them at debug level; the ceremony is not
	// failed.
	RejectUnsolicitedExtensions bool `mapstructure:"reject_unsolicited_extensions" yaml:"rejectUnsolicitedExtensions" json:"rejectUnsolicitedExtensions"`

	Debug bool `mapstructure:"debug" yaml:"debug" json:"debug"`
}

// SetDefaults fills in the configuration fields this relying party requires
// to operate safely when left unset by the caller.
func (c *Config) SetDefaults() {
	if c.Timeout == 0 {
		c.Timeout = 5 * time.Minute
	}
	if c.UserVerification == "" {
		c.UserVerification = VerificationPreferred
	}
	if c.AttestationPreference == "" {
		c.AttestationPreference = PreferNoAttestation
	}
	if c.ResidentKeyRequirement == "" {
		c.ResidentKeyRequirement = ResidentKeyPreferred
	}
}

// Validate enforces the fatal-at-startup conditions from spec §7: a relying
// party with no RP ID, no display name, or no configured origins must
// refuse to start.
func (c *Config) Validate() error {
	if c.RPID == "" {
		return ErrMissingRPID
	}
	if c.RPDisplayName == "" {
		return ErrMissingRPName
	}
	if len(c.RPOrigins) == 0 {
		return ErrMissingOrigins
	}
	return nil
}
