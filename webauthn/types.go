package webauthn

import (
	"fmt"
	"time"
)

// Algorithm identifies a COSE algorithm by the key scheme and hash function
// used to produce and verify signatures.
//
// https://www.w3.org/TR/webauthn-3/#typedefdef-cosealgorithmidentifier
type Algorithm int

// The set of algorithms recognized by this package.
//
// https://www.iana.org/assignments/cose/cose.xhtml#algorithms
const (
	ES256 Algorithm = -7
	EdDSA Algorithm = -8
	ES384 Algorithm = -35
	ES512 Algorithm = -36
	PS256 Algorithm = -37
	RS256 Algorithm = -257
	RS384 Algorithm = -258
	RS512 Algorithm = -259
	RS1   Algorithm = -65535
)

var algStrings = map[Algorithm]string{
	ES256: "ES256",
	EdDSA: "EdDSA",
	ES384: "ES384",
	ES512: "ES512",
	PS256: "PS256",
	RS256: "RS256",
	RS384: "RS384",
	RS512: "RS512",
	RS1:   "RS1",
}

// String returns a human readable representation of the algorithm.
func (a Algorithm) String() string {
	if s, ok := algStrings[a]; ok {
		return s
	}
	return fmt.Sprintf("Algorithm(%d)", int(a))
}

// AttestationType classifies how an attestation statement vouches for a
// credential's provenance.
//
// https://www.w3.org/TR/webauthn-3/#sctn-attestation-types
type AttestationType string

const (
	AttestationNone            AttestationType = "none"
	AttestationSelf            AttestationType = "selfAttestation"
	AttestationBasic           AttestationType = "basic"
	AttestationAttestationCA   AttestationType = "attCA"
	AttestationAnonymizationCA AttestationType = "anonCA"
)

// Attestation statement format identifiers recognized by the attestation
// parser.
//
// https://www.w3.org/TR/webauthn-3/#sctn-defined-attestation-formats
const (
	FormatNone             = "none"
	FormatPacked           = "packed"
	FormatFIDOU2F          = "fido-u2f"
	FormatTPM              = "tpm"
	FormatAndroidKey       = "android-key"
	FormatAndroidSafetyNet = "android-safetynet"
	FormatApple            = "apple"
)

// UserVerificationRequirement describes how strongly an RP wants the
// authenticator to verify the user.
type UserVerificationRequirement string

const (
	VerificationRequired    UserVerificationRequirement = "required"
	VerificationPreferred   UserVerificationRequirement = "preferred"
	VerificationDiscouraged UserVerificationRequirement = "discouraged"
)

// ResidentKeyRequirement describes whether the RP wants a discoverable
// (resident) credential.
type ResidentKeyRequirement string

const (
	ResidentKeyRequired    ResidentKeyRequirement = "required"
	ResidentKeyPreferred   ResidentKeyRequirement = "preferred"
	ResidentKeyDiscouraged ResidentKeyRequirement = "discouraged"
)

// AuthenticatorAttachment restricts which class of authenticator may
// fulfil a ceremony.
type AuthenticatorAttachment string

const (
	Platform      AuthenticatorAttachment = "platform"
	CrossPlatform AuthenticatorAttachment = "cross-platform"
)

// AttestationConveyancePreference controls how much attestation detail the
// client should collect.
type AttestationConveyancePreference string

const (
	PreferNoAttestation         AttestationConveyancePreference = "none"
	PreferIndirectAttestation   AttestationConveyancePreference = "indirect"
	PreferDirectAttestation     AttestationConveyancePreference = "direct"
	PreferEnterpriseAttestation AttestationConveyancePreference = "enterprise"
)

// RpEntity identifies the relying party to the authenticator.
//
// https://www.w3.org/TR/webauthn-3/#dictionary-rp-credential-params
type RpEntity struct {
	// ID is the relying party identifier, typically the effective domain,
	// e.g. "login.example.com". It MUST be a registrable suffix of, or
	// equal to, every origin this RP accepts.
	ID string
	// Name is the human readable name shown to the user during a ceremony.
	Name string
}

// UserEntity identifies the account an authenticator is creating or
// asserting a credential for.
//
// https://www.w3.org/TR/webauthn-3/#sctn-user-credential-params
type UserEntity struct {
	// ID is the user handle: an opaque, non-empty, ≤64-byte identifier that
	// MUST NOT encode personally identifying information and MUST remain
	// stable for the lifetime of the account.
	ID Bytes
	// Name is the account's human-readable username.
	Name string
	// DisplayName is the account's human-readable display name.
	DisplayName string
}

// Validate enforces the user handle length invariant from spec §3.
func (u UserEntity) Validate() error {
	if len(u.ID) == 0 {
		return &VerificationError{Op: "UserEntity", Kind: MalformedInput, Err: fmt.Errorf("user id must not be empty")}
	}
	if len(u.ID) > 64 {
		return &VerificationError{Op: "UserEntity", Kind: MalformedInput, Err: fmt.Errorf("user id must be at most 64 bytes, got %d", len(u.ID))}
	}
	return nil
}

// PublicKeyCredentialParameters names one acceptable credential type and
// algorithm pairing.
//
// https://www.w3.org/TR/webauthn-3/#dictionary-credential-params
type PublicKeyCredentialParameters struct {
	Type string
	Alg  Algorithm
}

// DefaultPubKeyCredParams is the preference-ordered algorithm list used by
// the options generator when the caller does not supply its own.
func DefaultPubKeyCredParams() []PublicKeyCredentialParameters {
	return []PublicKeyCredentialParameters{
		{Type: "public-key", Alg: ES256},
		{Type: "public-key", Alg: EdDSA},
		{Type: "public-key", Alg: RS256},
	}
}

// CredentialDescriptor names a specific credential for exclude/allow lists.
type CredentialDescriptor struct {
	Type       string
	ID         Bytes
	Transports []string
}

// AuthenticatorSelectionCriteria narrows which authenticators may
// participate in a registration ceremony.
//
// https://www.w3.org/TR/webauthn-3/#dictionary-authenticatorSelection
type AuthenticatorSelectionCriteria struct {
	AuthenticatorAttachment AuthenticatorAttachment
	ResidentKey             ResidentKeyRequirement
	RequireResidentKey      bool
	UserVerification        UserVerificationRequirement
}

// PublicKeyCredentialCreationOptions is the server-issued registration
// ceremony configuration.
//
// https://www.w3.org/TR/webauthn-3/#dictionary-makecredentialoptions
type PublicKeyCredentialCreationOptions struct {
	RP                     RpEntity
	User                   UserEntity
	Challenge              Bytes
	PubKeyCredParams       []PublicKeyCredentialParameters
	Timeout                time.Duration
	ExcludeCredentials     []CredentialDescriptor
	AuthenticatorSelection *AuthenticatorSelectionCriteria
	Attestation            AttestationConveyancePreference
}

// PublicKeyCredentialRequestOptions is the server-issued authentication
// ceremony configuration.
//
// https://www.w3.org/TR/webauthn-3/#dictionary-assertion-options
type PublicKeyCredentialRequestOptions struct {
	Challenge        Bytes
	Timeout          time.Duration
	RPID             string
	AllowCredentials []CredentialDescriptor
	UserVerification UserVerificationRequirement
}

// Flags represents the authenticator data flags byte.
//
// https://www.w3.org/TR/webauthn-3/#authdata-flags
type Flags byte

const (
	flagUP byte = 1 << 0
	flagUV byte = 1 << 2
	flagBE byte = 1 << 3
	flagBS byte = 1 << 4
	flagAT byte = 1 << 6
	flagED byte = 1 << 7
)

func (f Flags) UserPresent() bool            { return byte(f)&flagUP != 0 }
func (f Flags) UserVerified() bool           { return byte(f)&flagUV != 0 }
func (f Flags) BackupEligible() bool         { return byte(f)&flagBE != 0 }
func (f Flags) BackedUp() bool               { return byte(f)&flagBS != 0 }
func (f Flags) AttestedCredentialData() bool { return byte(f)&flagAT != 0 }
func (f Flags) Extensions() bool             { return byte(f)&flagED != 0 }

func (f Flags) String() string {
	return fmt.Sprintf("Flags(UP=%v UV=%v BE=%v BS=%v AT=%v ED=%v)",
		f.UserPresent(), f.UserVerified(), f.BackupEligible(), f.BackedUp(),
		f.AttestedCredentialData(), f.Extensions())
}

// AttestedCredentialData is the variable-length portion of authenticator
// data present when flags.AT is set.
//
// https://www.w3.org/TR/webauthn-3/#sctn-attested-credential-data
type AttestedCredentialData struct {
	AAGUID              AAGUID
	CredentialID        Bytes
	CredentialPublicKey COSEKey
}

// AuthenticatorData is the parsed form of the authenticator data structure
// embedded in both attestation objects and assertions.
//
// https://www.w3.org/TR/webauthn-3/#sctn-authenticator-data
type AuthenticatorData struct {
	RPIDHash               Bytes
	Flags                  Flags
	SignCount              uint32
	AttestedCredentialData *AttestedCredentialData
	Extensions             Bytes
	Raw                    Bytes
}

// COSEKey is the canonical representation of a public key parsed from a
// COSE_Key CBOR map, opaque to everything except the signature verifier.
//
// https://datatracker.ietf.org/doc/html/rfc8152#section-7
type COSEKey struct {
	Algorithm Algorithm
	PublicKey any
}

// CredentialRecord is the persisted shape of a registered credential.
//
// https://www.w3.org/TR/webauthn-3/#sctn-credential-record
type CredentialRecord struct {
	CredentialID              Bytes
	CredentialType            string
	PublicKey                 COSEKey
	SignCount                 uint32
	UVInitialized             bool
	BackupEligible            bool
	BackupState               bool
	Transports                []string
	AttestationObject         Bytes
	AttestationClientDataJSON Bytes
	UserHandle                Bytes
	Label                     string
	AuthenticatorName         string
	Created                   time.Time
	LastUsed                  time.Time
}

// Principal is the authenticated identity returned by a successful
// authentication ceremony.
type Principal struct {
	UserHandle      Bytes
	CredentialID    Bytes
	AuthenticatedAt time.Time
}

// UserRecord is the user-entity repository's row shape.
type UserRecord struct {
	UserID      Bytes
	Username    string
	DisplayName string
	Created     time.Time
}

// RegistrationResponse is the client's reply to a creation ceremony.
//
// https://www.w3.org/TR/webauthn-3/#iface-pkcredential
type RegistrationResponse struct {
	ID                      Bytes
	RawID                   Bytes
	Type                    string
	ClientDataJSON          Bytes
	AttestationObject       Bytes
	Transports              []string
	AuthenticatorAttachment string
}

// AssertionResponse is the client's reply to an authentication ceremony.
type AssertionResponse struct {
	ID                      Bytes
	RawID                   Bytes
	Type                    string
	ClientDataJSON          Bytes
	AuthenticatorData       Bytes
	Signature               Bytes
	UserHandle              Bytes
	AuthenticatorAttachment string
}
