package webauthn

import (
	"crypto/sha256"
	"fmt"
	"log/slog"
	"time"
)

// RelyingParty orchestrates the registration and authentication ceremonies
// against a configured RP ID and set of allowed origins. It holds no mutable
// ceremony state itself; the challenge and credential stores own that.
type RelyingParty struct {
	Config Config

	// RejectUnsolicitedExtensions, when true, makes a ceremony whose
	// authenticator data carries extension outputs log them at debug level.
	// The ceremony is not failed either way, and client extension results
	// are not inspected.
	RejectUnsolicitedExtensions bool

	// PackedOptions configures the "packed" attestation format verifier.
	// Nil uses the defaults: self-attestation allowed, no trust roots.
	PackedOptions *PackedOptions

	Logger  *slog.Logger
	Clock   func() time.Time
	Metrics *Metrics
}

func (rp *RelyingParty) logger() *slog.Logger {
	if rp.Logger != nil {
		return rp.Logger
	}
	return slog.Default()
}

func (rp *RelyingParty) now() time.Time {
	if rp.Clock != nil {
		return rp.Clock()
	}
	return time.Now()
}

func (rp *RelyingParty) allowedOrigins() map[string]bool {
	set := make(map[string]bool, len(rp.Config.RPOrigins))
	for _, o := range rp.Config.RPOrigins {
		set[o] = true
	}
	return set
}

func (rp *RelyingParty) logFailure(op string, err error) {
	kind, _ := KindOf(err)
	rp.logger().Warn("webauthn ceremony failed", "op", op, "kind", string(kind), "err", err)
}

// VerifyRegistration implements the registration ceremony, spec §4.5.
// existingCredentialIDs lets the caller enforce step 13 (credential ID must
// not already be registered to any user) without the verifier reaching into
// a store itself.
func (rp *RelyingParty) VerifyRegistration(
	options *PublicKeyCredentialCreationOptions,
	resp *RegistrationResponse,
	credentialExists func(id Bytes) (bool, error),
) (record *CredentialRecord, err error) {
	const op = "VerifyRegistration"
	start := rp.now()
	defer func() { rp.Metrics.ObserveRegistration(start, err) }()

	// 1. Decode clientDataJSON, attestationObject.
	clientData, err := ParseClientData(resp.ClientDataJSON)
	if err != nil {
		rp.logFailure(op, err)
		return nil, err
	}
	att, err := ParseAttestationObject(resp.AttestationObject)
	if err != nil {
		rp.logFailure(op, err)
		return nil, err
	}

	// 2. clientDataHash = SHA-256(clientDataJSON).
	clientDataHash := sha256.Sum256(resp.ClientDataJSON)

	// 3. Validate client data.
	if err := clientData.Validate("webauthn.create", options.Challenge, rp.allowedOrigins(), rp.Config.AllowCrossOrigin); err != nil {
		rp.logFailure(op, err)
		return nil, err
	}

	// 4. Parse authData out of the attestation object.
	ad, err := ParseAuthenticatorData(att.AuthData)
	if err != nil {
		rp.logFailure(op, err)
		return nil, err
	}

	// 5. rpIdHash must match SHA-256(rp.id).
	if !ad.VerifyRPIDHash(rp.Config.RPID) {
		err := fail(op, RpIdHashMismatch, fmt.Errorf("authenticator data rpIdHash does not match SHA-256(%q)", rp.Config.RPID))
		rp.logFailure(op, err)
		return nil, err
	}

	// 6. User presence.
	if !ad.Flags.UserPresent() {
		err := fail(op, UserPresenceMissing, fmt.Errorf("authenticator data flags do not set user present"))
		rp.logFailure(op, err)
		return nil, err
	}

	// 7. User verification, if required by options.
	if options.AuthenticatorSelection != nil && options.AuthenticatorSelection.UserVerification == VerificationRequired {
		if !ad.Flags.UserVerified() {
			err := fail(op, UserVerificationRequired, fmt.Errorf("relying party requires user verification but authenticator data does not set it"))
			rp.logFailure(op, err)
			return nil, err
		}
	}

	// 8. A credential ineligible for backup cannot be backed up.
	if ad.Flags.BackedUp() && !ad.Flags.BackupEligible() {
		err := fail(op, InvalidFlagCombination, fmt.Errorf("authenticator data sets backup state without backup eligibility"))
		rp.logFailure(op, err)
		return nil, err
	}

	// 9. Attested credential data must be present.
	if ad.AttestedCredentialData == nil {
		err := fail(op, AttestedCredentialDataMissing, fmt.Errorf("authenticator data has no attested credential data"))
		rp.logFailure(op, err)
		return nil, err
	}

	// 10. The credential's algorithm must be one the RP requested.
	alg := ad.AttestedCredentialData.CredentialPublicKey.Algorithm
	if !algorithmRequested(alg, options.PubKeyCredParams) {
		err := fail(op, UnrequestedAlgorithm, fmt.Errorf("credential algorithm %s was not in the requested pubKeyCredParams", alg))
		rp.logFailure(op, err)
		return nil, err
	}

	// 11. Extension outputs are tolerated; with RejectUnsolicitedExtensions
	// set they are logged at debug level (see Non-goals).
	if rp.RejectUnsolicitedExtensions && len(ad.Extensions) > 0 {
		rp.logger().Debug("registration carried unsolicited extension outputs", "session", options.User.ID.String())
	}

	// 12. Verify the attestation statement.
	attestationType, err := VerifyAttestationStatement(att, ad, clientDataHash[:], rp.PackedOptions)
	if err != nil {
		rp.logFailure(op, err)
		return nil, err
	}

	// 13. Credential ID must not already be registered to anyone.
	if credentialExists != nil {
		exists, err := credentialExists(ad.AttestedCredentialData.CredentialID)
		if err != nil {
			wrapped := fail(op, MalformedInput, fmt.Errorf("checking credential existence: %w", err))
			rp.logFailure(op, wrapped)
			return nil, wrapped
		}
		if exists {
			err := fail(op, CredentialAlreadyRegistered, fmt.Errorf("credential id is already registered"))
			rp.logFailure(op, err)
			return nil, err
		}
	}

	// 14. Build the credential record.
	now := rp.now()
	authenticatorName, _ := ad.AttestedCredentialData.AAGUID.Name()
	record = &CredentialRecord{
		CredentialID:              ad.AttestedCredentialData.CredentialID,
		CredentialType:            "public-key",
		PublicKey:                 ad.AttestedCredentialData.CredentialPublicKey,
		SignCount:                 ad.SignCount,
		UVInitialized:             ad.Flags.UserVerified(),
		BackupEligible:            ad.Flags.BackupEligible(),
		BackupState:               ad.Flags.BackedUp(),
		Transports:                resp.Transports,
		AttestationObject:         resp.AttestationObject,
		AttestationClientDataJSON: resp.ClientDataJSON,
		UserHandle:                options.User.ID,
		AuthenticatorName:         authenticatorName,
		Created:                   now,
		LastUsed:                  now,
	}
	rp.logger().Info("registration verified", "credential_id", record.CredentialID.String(), "attestation_type", string(attestationType))
	return record, nil
}

func algorithmRequested(alg Algorithm, params []PublicKeyCredentialParameters) bool {
	for _, p := range params {
		if p.Alg == alg {
			return true
		}
	}
	return false
}

// VerifyAuthentication implements the authentication ceremony, spec §4.6.
// lookupCredential resolves the CredentialRecord for the asserted
// credential's raw ID; it returns ErrStoreNotFound-compatible nil,false when
// unknown.
func (rp *RelyingParty) VerifyAuthentication(
	options *PublicKeyCredentialRequestOptions,
	resp *AssertionResponse,
	lookupCredential func(id Bytes) (*CredentialRecord, bool, error),
) (principal *Principal, record *CredentialRecord, err error) {
	const op = "VerifyAuthentication"
	start := rp.now()
	defer func() { rp.Metrics.ObserveAuthentication(start, err) }()

	// 2. If allowCredentials is configured, the asserted credential must be
	// a member of it.
	if len(options.AllowCredentials) > 0 && !credentialAllowed(resp.RawID, options.AllowCredentials) {
		err := fail(op, CredentialNotAllowed, fmt.Errorf("credential id is not in the options' allowCredentials list"))
		rp.logFailure(op, err)
		return nil, nil, err
	}

	// 3. Look up the credential record.
	record, found, err := lookupCredential(resp.RawID)
	if err != nil {
		wrapped := fail(op, MalformedInput, fmt.Errorf("looking up credential: %w", err))
		rp.logFailure(op, wrapped)
		return nil, nil, wrapped
	}
	if !found || record == nil {
		err := fail(op, UnknownCredential, fmt.Errorf("no credential registered with this id"))
		rp.logFailure(op, err)
		return nil, nil, err
	}

	// 4. If userHandle is present, it must match the record's owner.
	if len(resp.UserHandle) > 0 && !record.UserHandle.Equal(resp.UserHandle) {
		err := fail(op, UserHandleMismatch, fmt.Errorf("asserted user handle does not match the credential's owner"))
		rp.logFailure(op, err)
		return nil, record, err
	}

	// 5. Decode authenticatorData; compute clientDataHash.
	ad, err := ParseAuthenticatorData(resp.AuthenticatorData)
	if err != nil {
		rp.logFailure(op, err)
		return nil, record, err
	}
	clientData, err := ParseClientData(resp.ClientDataJSON)
	if err != nil {
		rp.logFailure(op, err)
		return nil, record, err
	}
	clientDataHash := sha256.Sum256(resp.ClientDataJSON)

	// 6. Validate client data.
	if err := clientData.Validate("webauthn.get", options.Challenge, rp.allowedOrigins(), rp.Config.AllowCrossOrigin); err != nil {
		rp.logFailure(op, err)
		return nil, record, err
	}

	// 7. rpIdHash must match.
	rpID := options.RPID
	if rpID == "" {
		rpID = rp.Config.RPID
	}
	if !ad.VerifyRPIDHash(rpID) {
		err := fail(op, RpIdHashMismatch, fmt.Errorf("authenticator data rpIdHash does not match SHA-256(%q)", rpID))
		rp.logFailure(op, err)
		return nil, record, err
	}

	// 8. User presence, and user verification if required.
	if !ad.Flags.UserPresent() {
		err := fail(op, UserPresenceMissing, fmt.Errorf("authenticator data flags do not set user present"))
		rp.logFailure(op, err)
		return nil, record, err
	}
	if options.UserVerification == VerificationRequired && !ad.Flags.UserVerified() {
		err := fail(op, UserVerificationRequired, fmt.Errorf("relying party requires user verification but authenticator data does not set it"))
		rp.logFailure(op, err)
		return nil, record, err
	}

	// 9. Backup state implies backup eligibility.
	if ad.Flags.BackedUp() && !ad.Flags.BackupEligible() {
		err := fail(op, InvalidFlagCombination, fmt.Errorf("authenticator data sets backup state without backup eligibility"))
		rp.logFailure(op, err)
		return nil, record, err
	}

	// 10. Extension outputs: see registration step 11.
	if rp.RejectUnsolicitedExtensions && len(ad.Extensions) > 0 {
		rp.logger().Debug("authentication carried unsolicited extension outputs", "credential_id", record.CredentialID.String())
	}

	// 11. Verify the assertion signature.
	signedMessage := signedData(resp.AuthenticatorData, clientDataHash[:])
	if err := VerifySignature(record.PublicKey.PublicKey, record.PublicKey.Algorithm, signedMessage, resp.Signature); err != nil {
		rp.logFailure(op, err)
		return nil, record, err
	}

	// 12. Signature counter anti-clone rule.
	prev := record.SignCount
	next := ad.SignCount
	switch {
	case next > prev:
		record.SignCount = next
	case next == 0 && prev == 0:
		// accept, no update.
	default:
		err := fail(op, SignCountRegression, fmt.Errorf("signature counter did not advance: stored=%d, asserted=%d", prev, next))
		rp.logFailure(op, err)
		return nil, record, err
	}

	// 13. Update bookkeeping.
	now := rp.now()
	record.LastUsed = now
	record.BackupState = ad.Flags.BackedUp()

	// 14. Return the authenticated principal.
	principal = &Principal{
		UserHandle:      record.UserHandle,
		CredentialID:    record.CredentialID,
		AuthenticatedAt: now,
	}
	rp.logger().Info("authentication verified", "credential_id", record.CredentialID.String())
	return principal, record, nil
}

func credentialAllowed(id Bytes, allowed []CredentialDescriptor) bool {
	for _, c := range allowed {
		if c.ID.Equal(id) {
			return true
		}
	}
	return false
}
