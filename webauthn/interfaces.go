package webauthn

import "context"

// ChallengeStore is the ceremony-scoped options repository: save, then
// load-and-consume exactly once, per spec §4.8.
type ChallengeStore interface {
	// SaveCreationOptions persists a registration ceremony's options under
	// sessionKey, overwriting any existing entry for that key.
	SaveCreationOptions(ctx context.Context, sessionKey string, options *PublicKeyCredentialCreationOptions) error

	// LoadAndConsumeCreationOptions atomically loads and deletes the
	// registration options for sessionKey. found is false if no entry
	// existed, including because it was already consumed or has expired.
	LoadAndConsumeCreationOptions(ctx context.Context, sessionKey string) (options *PublicKeyCredentialCreationOptions, found bool, err error)

	// SaveRequestOptions persists an authentication ceremony's options
	// under sessionKey, overwriting any existing entry for that key.
	SaveRequestOptions(ctx context.Context, sessionKey string, options *PublicKeyCredentialRequestOptions) error

	// LoadAndConsumeRequestOptions atomically loads and deletes the
	// authentication options for sessionKey.
	LoadAndConsumeRequestOptions(ctx context.Context, sessionKey string) (options *PublicKeyCredentialRequestOptions, found bool, err error)
}

// CredentialStore is the persistence contract for CredentialRecord and the
// user-handle mapping, per spec §4.9.
type CredentialStore interface {
	FindByID(ctx context.Context, credentialID Bytes) (*CredentialRecord, bool, error)
	FindByUser(ctx context.Context, userHandle Bytes) ([]*CredentialRecord, error)

	// Save creates or updates record. Implementations MUST enforce the
	// credentialId uniqueness invariant and MUST serialize SignCount
	// updates with respect to concurrent authentications for the same
	// credential (see spec §5).
	Save(ctx context.Context, record *CredentialRecord) error

	Delete(ctx context.Context, credentialID Bytes) error
}

// UserStore is the separate user-entity repository mapping usernames to
// user records, per spec §4.9. It does not allocate user handles; the HTTP
// collaborator generates them.
type UserStore interface {
	FindByUsername(ctx context.Context, username string) (*UserRecord, bool, error)
	FindByUserID(ctx context.Context, userID Bytes) (*UserRecord, bool, error)

	// Save creates or updates a user record.
	Save(ctx context.Context, record *UserRecord) error
}
