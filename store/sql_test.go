package store

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"path/filepath"
	"testing"
	"time"

	"github.com/passkeyrp/webauthn-rp/webauthn"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "webauthn.db")
	db, err := Open(context.Background(), path, time.Hour, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSQLChallengeStore_SaveAndConsumeOnce(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	store := db.Challenges()

	options := &webauthn.PublicKeyCredentialCreationOptions{Challenge: webauthn.Bytes("c"), RP: webauthn.RpEntity{ID: "example.com"}}
	if err := store.SaveCreationOptions(ctx, "session-1", options); err != nil {
		t.Fatalf("SaveCreationOptions: %v", err)
	}

	got, found, err := store.LoadAndConsumeCreationOptions(ctx, "session-1")
	if err != nil || !found {
		t.Fatalf("LoadAndConsumeCreationOptions: found=%v err=%v", found, err)
	}
	if !got.Challenge.Equal(options.Challenge) || got.RP.ID != "example.com" {
		t.Errorf("got %+v", got)
	}

	_, found, err = store.LoadAndConsumeCreationOptions(ctx, "session-1")
	if err != nil {
		t.Fatalf("second LoadAndConsumeCreationOptions: %v", err)
	}
	if found {
		t.Fatal("expected options to be consumed")
	}
}

func TestSQLChallengeStore_RequestOptionsRoundTrip(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	store := db.Challenges()

	options := &webauthn.PublicKeyCredentialRequestOptions{Challenge: webauthn.Bytes("c"), RPID: "example.com"}
	if err := store.SaveRequestOptions(ctx, "session-1", options); err != nil {
		t.Fatalf("SaveRequestOptions: %v", err)
	}
	got, found, err := store.LoadAndConsumeRequestOptions(ctx, "session-1")
	if err != nil || !found {
		t.Fatalf("LoadAndConsumeRequestOptions: found=%v err=%v", found, err)
	}
	if got.RPID != "example.com" {
		t.Errorf("RPID = %q", got.RPID)
	}
}

func TestSQLChallengeStore_MissingSessionKey(t *testing.T) {
	db := openTestDB(t)
	_, found, err := db.Challenges().LoadAndConsumeCreationOptions(context.Background(), "does-not-exist")
	if err != nil {
		t.Fatalf("LoadAndConsumeCreationOptions: %v", err)
	}
	if found {
		t.Fatal("expected no entry for an unknown session key")
	}
}

func newTestCredentialRecord(t *testing.T) *webauthn.CredentialRecord {
	t.Helper()
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	now := time.Now().Truncate(time.Microsecond)
	return &webauthn.CredentialRecord{
		CredentialID:      webauthn.Bytes("cred-1"),
		CredentialType:    "public-key",
		PublicKey:         webauthn.COSEKey{Algorithm: webauthn.ES256, PublicKey: &priv.PublicKey},
		SignCount:         1,
		UVInitialized:     true,
		Transports:        []string{"internal", "hybrid"},
		UserHandle:        webauthn.Bytes("user-1"),
		Label:             "test passkey",
		AuthenticatorName: "1Password",
		Created:           now,
		LastUsed:          now,
	}
}

func TestSQLCredentialStore_SaveFindDelete(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	store := db.Credentials()
	record := newTestCredentialRecord(t)

	if err := store.Save(ctx, record); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, found, err := store.FindByID(ctx, webauthn.Bytes("cred-1"))
	if err != nil || !found {
		t.Fatalf("FindByID: found=%v err=%v", found, err)
	}
	if got.SignCount != 1 || got.Label != "test passkey" || len(got.Transports) != 2 {
		t.Errorf("got %+v", got)
	}
	if got.AuthenticatorName != "1Password" {
		t.Errorf("AuthenticatorName = %q, want 1Password", got.AuthenticatorName)
	}
	if !got.PublicKey.PublicKey.(*ecdsa.PublicKey).Equal(record.PublicKey.PublicKey.(*ecdsa.PublicKey)) {
		t.Errorf("public key did not round trip through DER storage")
	}

	byUser, err := store.FindByUser(ctx, webauthn.Bytes("user-1"))
	if err != nil || len(byUser) != 1 {
		t.Fatalf("FindByUser: %v, err=%v", byUser, err)
	}

	n, err := store.Count(ctx)
	if err != nil || n != 1 {
		t.Fatalf("Count() = %d, err=%v", n, err)
	}

	if err := store.Delete(ctx, webauthn.Bytes("cred-1")); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	_, found, _ = store.FindByID(ctx, webauthn.Bytes("cred-1"))
	if found {
		t.Fatal("expected credential to be gone")
	}
}

func TestSQLCredentialStore_SaveUpdatesSignCount(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	store := db.Credentials()
	record := newTestCredentialRecord(t)
	if err := store.Save(ctx, record); err != nil {
		t.Fatalf("Save: %v", err)
	}

	record.SignCount = 42
	if err := store.Save(ctx, record); err != nil {
		t.Fatalf("Save (update): %v", err)
	}

	got, _, err := store.FindByID(ctx, webauthn.Bytes("cred-1"))
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if got.SignCount != 42 {
		t.Errorf("signCount = %d, want 42", got.SignCount)
	}
}

func TestSQLCredentialStore_SaveRejectsStaleSignCount(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	store := db.Credentials()
	record := newTestCredentialRecord(t)
	record.SignCount = 10
	if err := store.Save(ctx, record); err != nil {
		t.Fatalf("Save: %v", err)
	}

	// A second authentication that verified against the same stored count
	// (SignCount ends up at or below what's already on disk) races behind
	// a first one that already advanced it.
	stale := newTestCredentialRecord(t)
	stale.SignCount = 10
	if err := store.Save(ctx, stale); err != webauthn.ErrSignCountConflict {
		t.Fatalf("Save (equal count) err = %v, want ErrSignCountConflict", err)
	}
	stale.SignCount = 5
	if err := store.Save(ctx, stale); err != webauthn.ErrSignCountConflict {
		t.Fatalf("Save (lower count) err = %v, want ErrSignCountConflict", err)
	}

	got, _, err := store.FindByID(ctx, webauthn.Bytes("cred-1"))
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if got.SignCount != 10 {
		t.Errorf("signCount = %d, want 10 (rejected writes must not overwrite the winner)", got.SignCount)
	}

	record.SignCount = 11
	if err := store.Save(ctx, record); err != nil {
		t.Fatalf("Save (advancing count): %v", err)
	}
	got, _, err = store.FindByID(ctx, webauthn.Bytes("cred-1"))
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if got.SignCount != 11 {
		t.Errorf("signCount = %d, want 11", got.SignCount)
	}
}

func TestSQLCredentialStore_SaveAllowsRepeatedZeroSignCount(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	store := db.Credentials()
	record := newTestCredentialRecord(t)
	record.SignCount = 0
	if err := store.Save(ctx, record); err != nil {
		t.Fatalf("Save: %v", err)
	}

	record.LastUsed = record.LastUsed.Add(time.Minute)
	if err := store.Save(ctx, record); err != nil {
		t.Fatalf("Save (repeated zero count): %v", err)
	}

	got, _, err := store.FindByID(ctx, webauthn.Bytes("cred-1"))
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if got.SignCount != 0 {
		t.Errorf("signCount = %d, want 0", got.SignCount)
	}
	if !got.LastUsed.Equal(record.LastUsed) {
		t.Errorf("LastUsed = %v, want %v", got.LastUsed, record.LastUsed)
	}
}

func TestSQLCredentialStore_DeleteUnknown(t *testing.T) {
	db := openTestDB(t)
	err := db.Credentials().Delete(context.Background(), webauthn.Bytes("missing"))
	if err != webauthn.ErrStoreNotFound {
		t.Fatalf("err = %v, want ErrStoreNotFound", err)
	}
}

func TestSQLUserStore_SaveAndFind(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	store := db.Users()
	record := &webauthn.UserRecord{UserID: webauthn.Bytes("user-1"), Username: "alice", DisplayName: "Alice", Created: time.Now().Truncate(time.Microsecond)}

	if err := store.Save(ctx, record); err != nil {
		t.Fatalf("Save: %v", err)
	}

	byName, found, err := store.FindByUsername(ctx, "alice")
	if err != nil || !found || byName.DisplayName != "Alice" {
		t.Fatalf("FindByUsername: %+v found=%v err=%v", byName, found, err)
	}

	byID, found, err := store.FindByUserID(ctx, webauthn.Bytes("user-1"))
	if err != nil || !found || byID.Username != "alice" {
		t.Fatalf("FindByUserID: %+v found=%v err=%v", byID, found, err)
	}
}

func TestDB_GCRemovesExpiredChallenges(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "webauthn.db")
	db, err := Open(ctx, path, 10*time.Millisecond, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	if err := db.Challenges().SaveCreationOptions(ctx, "session-1", &webauthn.PublicKeyCredentialCreationOptions{}); err != nil {
		t.Fatalf("SaveCreationOptions: %v", err)
	}
	time.Sleep(20 * time.Millisecond)

	n, err := db.gc(ctx)
	if err != nil {
		t.Fatalf("gc: %v", err)
	}
	if n != 1 {
		t.Errorf("gc() removed %d rows, want 1", n)
	}
}

func TestNewSessionKey_Unique(t *testing.T) {
	a := NewSessionKey()
	b := NewSessionKey()
	if a == b {
		t.Errorf("expected two independently generated session keys to differ")
	}
}
