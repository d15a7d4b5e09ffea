package webauthn

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"time"
)

// challengeLength is the random challenge size in bytes, above the 16-byte
// minimum of spec §3's PublicKeyCredentialCreationOptions/RequestOptions
// invariant.
const challengeLength = 32

// OptionsGenerator produces freshly challenged creation and request
// options, per spec §4.10. Rng and Clock are injected so tests can supply
// deterministic fixtures instead of reaching into package-level mutable
// state.
type OptionsGenerator struct {
	Config Config

	Rng   io.Reader
	Clock func() time.Time
}

func (g *OptionsGenerator) rng() io.Reader {
	if g.Rng != nil {
		return g.Rng
	}
	return rand.Reader
}

func (g *OptionsGenerator) now() time.Time {
	if g.Clock != nil {
		return g.Clock()
	}
	return time.Now()
}

func newChallenge(rng io.Reader) (Bytes, error) {
	b := make([]byte, challengeLength)
	if _, err := io.ReadFull(rng, b); err != nil {
		return nil, fail("newChallenge", MalformedInput, fmt.Errorf("reading random challenge: %w", err))
	}
	return Bytes(b), nil
}

// NewCreationOptions builds registration ceremony options for user,
// excluding any of existingCredentials from re-registering on the same
// authenticator, per spec §4.10.
func (g *OptionsGenerator) NewCreationOptions(ctx context.Context, user UserEntity, existingCredentials []*CredentialRecord, selection *AuthenticatorSelectionCriteria) (*PublicKeyCredentialCreationOptions, error) {
	if err := user.Validate(); err != nil {
		return nil, err
	}
	challenge, err := newChallenge(g.rng())
	if err != nil {
		return nil, err
	}

	exclude := make([]CredentialDescriptor, 0, len(existingCredentials))
	for _, c := range existingCredentials {
		exclude = append(exclude, CredentialDescriptor{
			Type:       "public-key",
			ID:         c.CredentialID,
			Transports: c.Transports,
		})
	}

	if selection == nil {
		selection = &AuthenticatorSelectionCriteria{
			ResidentKey:      g.Config.ResidentKeyRequirement,
			UserVerification: g.Config.UserVerification,
		}
	}

	return &PublicKeyCredentialCreationOptions{
		RP:                     RpEntity{ID: g.Config.RPID, Name: g.Config.RPDisplayName},
		User:                   user,
		Challenge:              challenge,
		PubKeyCredParams:       DefaultPubKeyCredParams(),
		Timeout:                g.Config.Timeout,
		ExcludeCredentials:     exclude,
		AuthenticatorSelection: selection,
		Attestation:            g.Config.AttestationPreference,
	}, nil
}

// NewRequestOptions builds authentication ceremony options. When
// allowCredentials is empty the ceremony is discoverable-credential only.
func (g *OptionsGenerator) NewRequestOptions(ctx context.Context, allowCredentials []*CredentialRecord) (*PublicKeyCredentialRequestOptions, error) {
	challenge, err := newChallenge(g.rng())
	if err != nil {
		return nil, err
	}

	allow := make([]CredentialDescriptor, 0, len(allowCredentials))
	for _, c := range allowCredentials {
		allow = append(allow, CredentialDescriptor{
			Type:       "public-key",
			ID:         c.CredentialID,
			Transports: c.Transports,
		})
	}

	return &PublicKeyCredentialRequestOptions{
		Challenge:        challenge,
		Timeout:          g.Config.Timeout,
		RPID:             g.Config.RPID,
		AllowCredentials: allow,
		UserVerification: g.Config.UserVerification,
	}, nil
}
