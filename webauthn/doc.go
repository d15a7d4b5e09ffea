// Package webauthn implements relying party logic for the WebAuthn
// Level 3 registration and authentication ceremonies.
//
// # Registration
//
// A registration ceremony begins with an [OptionsGenerator] producing
// [PublicKeyCredentialCreationOptions] for a user, which the HTTP
// collaborator sends to the browser. The browser calls
// [navigator.credentials.create()]; its response, once decoded into a
// [RegistrationResponse], is handed to [RelyingParty.VerifyRegistration]
// together with the options that were issued.
//
// [navigator.credentials.create()]: https://developer.mozilla.org/en-US/docs/Web/API/CredentialsContainer/create
//
//	options, err := gen.NewCreationOptions(ctx, user, nil, nil)
//	// ... send options to the browser, save them under a session key ...
//
//	record, err := rp.VerifyRegistration(options, resp, credentialExists)
//	if err != nil {
//		var kind webauthn.Kind
//		if k, ok := webauthn.KindOf(err); ok {
//			kind = k
//		}
//		// log kind, return a generic failure to the client
//	}
//	// persist record
//
// VerifyRegistration never leaves malformed or partially-verified state
// behind: every failure returns a *VerificationError classified by a
// [Kind] and aborts before constructing a [CredentialRecord].
//
// # Authentication
//
// An authentication ceremony mirrors registration: [OptionsGenerator]
// issues [PublicKeyCredentialRequestOptions], the browser calls
// [navigator.credentials.get()], and the decoded [AssertionResponse] is
// verified against the stored [CredentialRecord] by
// [RelyingParty.VerifyAuthentication], which also enforces the
// signature-counter anti-clone rule and returns the resulting
// [Principal].
//
// [navigator.credentials.get()]: https://developer.mozilla.org/en-US/docs/Web/API/CredentialsContainer/get
//
//	principal, record, err := rp.VerifyAuthentication(options, resp, lookupCredential)
//	if err != nil {
//		// ...
//	}
//	// persist the updated record's SignCount/LastUsed, issue a session
//
// # Stores
//
// [ChallengeStore], [CredentialStore], and [UserStore] are the three
// persistence seams this package depends on; it ships no implementation
// of its own. The store package provides in-memory and SQLite-backed
// implementations.
package webauthn
