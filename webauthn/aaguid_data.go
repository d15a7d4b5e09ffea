package webauthn

// passkeyAuthenticatorAAGUIDs is a small, hand-seeded subset of
// https://github.com/passkeydeveloper/passkey-authenticator-aaguids, covering
// the authenticators most commonly seen in test fixtures and integration
// tests. It is not a substitute for the full upstream table.
var passkeyAuthenticatorAAGUIDs = map[AAGUID]string{
	mustParseAAGUID("08987058-cadc-4b81-b6e1-30de50dcbe96"): "Windows Hello",
	mustParseAAGUID("9ddd1817-af5a-4672-a2b9-3e3dd95000a9"): "Windows Hello",
	mustParseAAGUID("fbfc3007-154e-4ecc-8c0b-6e020557d7bd"): "iCloud Keychain",
	mustParseAAGUID("dd4ec289-e01d-41c9-bb89-70fa845d4bf2"): "iCloud Keychain (Managed)",
	mustParseAAGUID("ea9b8d66-4d01-1d21-3ce4-b6b48cb575d4"): "Google Password Manager",
	mustParseAAGUID("adce0002-35bc-c60a-648b-0b25f1f05503"): "Chrome on Mac",
	mustParseAAGUID("b93fd961-f2e6-462f-b122-82002247de78"): "Bitwarden",
	mustParseAAGUID("fcb1bcb4-f370-078c-6993-bc24d0ae3fbe"): "NordPass",
	mustParseAAGUID("531126d6-e717-415c-9320-3d9aa6981239"): "Dashlane",
	mustParseAAGUID("0bb43545-fd2c-4185-87dd-feb0b2916ace"): "1Password",
}

// metadataAAGUIDs stands in for a FIDO Metadata Service query; it is empty
// because MDS BLOB retrieval and verification is out of scope (see
// Non-goals). AAGUID.Name falls back to this map only after the hand-seeded
// table above misses.
var metadataAAGUIDs = map[AAGUID]string{}
