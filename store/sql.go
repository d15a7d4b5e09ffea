package store

import (
	"context"
	"crypto/x509"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3" // registers the "sqlite3" driver

	"github.com/passkeyrp/webauthn-rp/webauthn"
)

// schema is applied idempotently on open, grounded on the collaborator's
// users/passkeys/passkey_logins/passkey_registrations layout, generalized
// to this module's CredentialRecord/UserRecord shapes and split into
// separate tables for creation vs. request challenges so each ceremony kind
// keeps its own options payload.
const schema = `
CREATE TABLE IF NOT EXISTS users (
	user_id      BLOB NOT NULL,
	username     STRING NOT NULL,
	display_name STRING NOT NULL,
	created_at   INTEGER NOT NULL,

	PRIMARY KEY(user_id),
	UNIQUE(username)
);

CREATE TABLE IF NOT EXISTS credentials (
	credential_id               BLOB NOT NULL,
	user_id                     BLOB NOT NULL,
	credential_type             STRING NOT NULL,
	public_key_alg              INTEGER NOT NULL,
	public_key_der              BLOB NOT NULL,
	sign_count                  INTEGER NOT NULL,
	uv_initialized              INTEGER NOT NULL,
	backup_eligible             INTEGER NOT NULL,
	backup_state                INTEGER NOT NULL,
	transports                  STRING NOT NULL,
	attestation_object          BLOB NOT NULL,
	attestation_client_data_json BLOB NOT NULL,
	label                       STRING NOT NULL,
	authenticator_name          STRING NOT NULL DEFAULT '',
	created_at                  INTEGER NOT NULL,
	last_used_at                INTEGER NOT NULL,

	PRIMARY KEY(credential_id),
	UNIQUE(credential_id)
);

CREATE INDEX IF NOT EXISTS credentials_user_id ON credentials(user_id);

CREATE TABLE IF NOT EXISTS creation_challenges (
	session_key STRING NOT NULL,
	options     BLOB NOT NULL,
	created_at  INTEGER NOT NULL,

	PRIMARY KEY(session_key)
);

CREATE TABLE IF NOT EXISTS request_challenges (
	session_key STRING NOT NULL,
	options     BLOB NOT NULL,
	created_at  INTEGER NOT NULL,

	PRIMARY KEY(session_key)
);
`

// DB owns the SQLite connection, schema, and background challenge garbage
// collection. Its Challenges, Credentials, and Users accessors return
// thin, interface-satisfying views over the same connection.
//
// Grounded on the collaborator's storage type (example/storage.go): same
// open/schema/close/gc shape, generalized from its single-user-table model
// to this module's separate challenge/credential/user stores.
type DB struct {
	db *sql.DB

	ttl    time.Duration
	logger *slog.Logger

	closeGC func()
}

// Open connects to the SQLite database at path, creating the schema if
// absent, and starts a background goroutine that deletes expired challenge
// rows every minute.
func Open(ctx context.Context, path string, ttl time.Duration, logger *slog.Logger) (*DB, error) {
	sqlDB, err := sql.Open("sqlite3", "file:"+path+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if _, err := sqlDB.ExecContext(ctx, schema); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	d := &DB{db: sqlDB, ttl: ttl, logger: logger}

	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n, err := d.gc(context.Background()); err != nil {
					logger.Warn("challenge store garbage collection failed", "err", err)
				} else if n > 0 {
					logger.Debug("garbage collected expired challenges", "count", n)
				}
			case <-done:
				return
			}
		}
	}()
	d.closeGC = func() { close(done) }
	return d, nil
}

// Close stops the background GC goroutine and closes the underlying
// connection.
func (d *DB) Close() error {
	if d.closeGC != nil {
		d.closeGC()
	}
	return d.db.Close()
}

func (d *DB) gc(ctx context.Context) (int64, error) {
	if d.ttl <= 0 {
		return 0, nil
	}
	cutoff := time.Now().Add(-d.ttl).UnixMicro()
	var total int64
	for _, table := range []string{"creation_challenges", "request_challenges"} {
		res, err := d.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE created_at < ?`, table), cutoff)
		if err != nil {
			return total, fmt.Errorf("deleting expired rows from %s: %w", table, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// Challenges returns a webauthn.ChallengeStore backed by this connection.
func (d *DB) Challenges() *SQLChallengeStore { return &SQLChallengeStore{d: d} }

// Credentials returns a webauthn.CredentialStore backed by this connection.
func (d *DB) Credentials() *SQLCredentialStore { return &SQLCredentialStore{d: d} }

// Users returns a webauthn.UserStore backed by this connection.
func (d *DB) Users() *SQLUserStore { return &SQLUserStore{d: d} }

// NewSessionKey generates an opaque random session key suitable for keying
// ChallengeStore entries.
func NewSessionKey() string {
	return uuid.NewString()
}

// SQLChallengeStore implements webauthn.ChallengeStore against DB's schema.
type SQLChallengeStore struct{ d *DB }

func (s *SQLChallengeStore) SaveCreationOptions(ctx context.Context, sessionKey string, options *webauthn.PublicKeyCredentialCreationOptions) error {
	payload, err := json.Marshal(options)
	if err != nil {
		return fmt.Errorf("marshaling creation options: %w", err)
	}
	_, err = s.d.db.ExecContext(ctx, `
		INSERT INTO creation_challenges (session_key, options, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT(session_key) DO UPDATE SET options = excluded.options, created_at = excluded.created_at`,
		sessionKey, payload, time.Now().UnixMicro())
	if err != nil {
		return fmt.Errorf("saving creation options: %w", err)
	}
	return nil
}

func (s *SQLChallengeStore) LoadAndConsumeCreationOptions(ctx context.Context, sessionKey string) (*webauthn.PublicKeyCredentialCreationOptions, bool, error) {
	tx, err := s.d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	var payload []byte
	var createdAt int64
	err = tx.QueryRowContext(ctx, `
		SELECT options, created_at FROM creation_challenges WHERE session_key = ?`, sessionKey).
		Scan(&payload, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading creation options: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM creation_challenges WHERE session_key = ?`, sessionKey); err != nil {
		return nil, false, fmt.Errorf("consuming creation options: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("committing: %w", err)
	}

	if s.d.ttl > 0 && time.Since(time.UnixMicro(createdAt)) > s.d.ttl {
		return nil, false, nil
	}
	var options webauthn.PublicKeyCredentialCreationOptions
	if err := json.Unmarshal(payload, &options); err != nil {
		return nil, false, fmt.Errorf("unmarshaling creation options: %w", err)
	}
	return &options, true, nil
}

func (s *SQLChallengeStore) SaveRequestOptions(ctx context.Context, sessionKey string, options *webauthn.PublicKeyCredentialRequestOptions) error {
	payload, err := json.Marshal(options)
	if err != nil {
		return fmt.Errorf("marshaling request options: %w", err)
	}
	_, err = s.d.db.ExecContext(ctx, `
		INSERT INTO request_challenges (session_key, options, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT(session_key) DO UPDATE SET options = excluded.options, created_at = excluded.created_at`,
		sessionKey, payload, time.Now().UnixMicro())
	if err != nil {
		return fmt.Errorf("saving request options: %w", err)
	}
	return nil
}

func (s *SQLChallengeStore) LoadAndConsumeRequestOptions(ctx context.Context, sessionKey string) (*webauthn.PublicKeyCredentialRequestOptions, bool, error) {
	tx, err := s.d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	var payload []byte
	var createdAt int64
	err = tx.QueryRowContext(ctx, `
		SELECT options, created_at FROM request_challenges WHERE session_key = ?`, sessionKey).
		Scan(&payload, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading request options: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM request_challenges WHERE session_key = ?`, sessionKey); err != nil {
		return nil, false, fmt.Errorf("consuming request options: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("committing: %w", err)
	}

	if s.d.ttl > 0 && time.Since(time.UnixMicro(createdAt)) > s.d.ttl {
		return nil, false, nil
	}
	var options webauthn.PublicKeyCredentialRequestOptions
	if err := json.Unmarshal(payload, &options); err != nil {
		return nil, false, fmt.Errorf("unmarshaling request options: %w", err)
	}
	return &options, true, nil
}

// SQLCredentialStore implements webauthn.CredentialStore against DB's
// schema.
type SQLCredentialStore struct{ d *DB }

func (s *SQLCredentialStore) FindByID(ctx context.Context, credentialID webauthn.Bytes) (*webauthn.CredentialRecord, bool, error) {
	row := s.d.db.QueryRowContext(ctx, `
		SELECT credential_id, user_id, credential_type, public_key_alg, public_key_der,
		       sign_count, uv_initialized, backup_eligible, backup_state, transports,
		       attestation_object, attestation_client_data_json, label, authenticator_name,
		       created_at, last_used_at
		FROM credentials WHERE credential_id = ?`, []byte(credentialID))
	record, err := scanCredential(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return record, true, nil
}

func (s *SQLCredentialStore) FindByUser(ctx context.Context, userHandle webauthn.Bytes) ([]*webauthn.CredentialRecord, error) {
	rows, err := s.d.db.QueryContext(ctx, `
		SELECT credential_id, user_id, credential_type, public_key_alg, public_key_der,
		       sign_count, uv_initialized, backup_eligible, backup_state, transports,
		       attestation_object, attestation_client_data_json, label, authenticator_name,
		       created_at, last_used_at
		FROM credentials WHERE user_id = ?`, []byte(userHandle))
	if err != nil {
		return nil, fmt.Errorf("querying credentials by user: %w", err)
	}
	defer rows.Close()

	var records []*webauthn.CredentialRecord
	for rows.Next() {
		record, err := scanCredential(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCredential(row rowScanner) (*webauthn.CredentialRecord, error) {
	var (
		credentialID      []byte
		userID            []byte
		credentialType    string
		alg               int64
		pubDER            []byte
		signCount         int64
		uvInitialized     bool
		backupEligible    bool
		backupState       bool
		transports        string
		attObj            []byte
		attClientData     []byte
		label             string
		authenticatorName string
		createdAt         int64
		lastUsedAt        int64
	)
	if err := row.Scan(&credentialID, &userID, &credentialType, &alg, &pubDER,
		&signCount, &uvInitialized, &backupEligible, &backupState, &transports,
		&attObj, &attClientData, &label, &authenticatorName, &createdAt, &lastUsedAt); err != nil {
		return nil, err
	}
	pub, err := x509.ParsePKIXPublicKey(pubDER)
	if err != nil {
		return nil, fmt.Errorf("parsing stored public key: %w", err)
	}
	var transportList []string
	if transports != "" {
		transportList = strings.Split(transports, ",")
	}
	return &webauthn.CredentialRecord{
		CredentialID:              webauthn.Bytes(credentialID),
		CredentialType:            credentialType,
		PublicKey:                 webauthn.COSEKey{Algorithm: webauthn.Algorithm(alg), PublicKey: pub},
		SignCount:                 uint32(signCount),
		UVInitialized:             uvInitialized,
		BackupEligible:            backupEligible,
		BackupState:               backupState,
		Transports:                transportList,
		AttestationObject:         webauthn.Bytes(attObj),
		AttestationClientDataJSON: webauthn.Bytes(attClientData),
		UserHandle:                webauthn.Bytes(userID),
		Label:                     label,
		AuthenticatorName:         authenticatorName,
		Created:                   time.UnixMicro(createdAt),
		LastUsed:                  time.UnixMicro(lastUsedAt),
	}, nil
}

// Save creates or updates record. The read-verify-write cycle of an
// authentication ceremony spans FindByID, signature verification, and this
// call; SQLite's single-writer lock only serializes this statement, not
// that whole cycle, so two concurrent authentications against the same
// credential can both pass verification against the same stored sign_count
// and race to call Save. The ON CONFLICT clause below guards against the
// resulting lost update with a compare-and-swap on sign_count: the update
// only takes effect when the incoming count is strictly greater than the
// row currently on disk, or both are zero (authenticators that don't
// implement a counter report zero on every use), per the monotonicity
// invariant of spec §5. A losing writer's update is silently dropped by
// SQLite; RowsAffected distinguishes that outcome from a normal insert or
// update below.
func (s *SQLCredentialStore) Save(ctx context.Context, record *webauthn.CredentialRecord) error {
	pubDER, err := x509.MarshalPKIXPublicKey(record.PublicKey.PublicKey)
	if err != nil {
		return fmt.Errorf("marshaling public key: %w", err)
	}

	tx, err := s.d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	var exists bool
	if err := tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM credentials WHERE credential_id = ?)`, []byte(record.CredentialID)).Scan(&exists); err != nil {
		return fmt.Errorf("checking existing credential: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO credentials (
			credential_id, user_id, credential_type, public_key_alg, public_key_der,
			sign_count, uv_initialized, backup_eligible, backup_state, transports,
			attestation_object, attestation_client_data_json, label, authenticator_name,
			created_at, last_used_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(credential_id) DO UPDATE SET
			sign_count = excluded.sign_count,
			backup_state = excluded.backup_state,
			last_used_at = excluded.last_used_at
		WHERE excluded.sign_count > credentials.sign_count
			OR (excluded.sign_count = 0 AND credentials.sign_count = 0)`,
		[]byte(record.CredentialID), []byte(record.UserHandle), record.CredentialType,
		int64(record.PublicKey.Algorithm), pubDER, int64(record.SignCount),
		record.UVInitialized, record.BackupEligible, record.BackupState,
		strings.Join(record.Transports, ","), append([]byte{}, record.AttestationObject...),
		append([]byte{}, record.AttestationClientDataJSON...), record.Label, record.AuthenticatorName,
		record.Created.UnixMicro(), record.LastUsed.UnixMicro())
	if err != nil {
		return fmt.Errorf("saving credential: %w", err)
	}
	if exists {
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("checking rows affected: %w", err)
		}
		if affected == 0 {
			return webauthn.ErrSignCountConflict
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing: %w", err)
	}
	return nil
}

func (s *SQLCredentialStore) Delete(ctx context.Context, credentialID webauthn.Bytes) error {
	res, err := s.d.db.ExecContext(ctx, `DELETE FROM credentials WHERE credential_id = ?`, []byte(credentialID))
	if err != nil {
		return fmt.Errorf("deleting credential: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return webauthn.ErrStoreNotFound
	}
	return nil
}

// Count returns the number of registered credentials, for metrics
// sampling.
func (s *SQLCredentialStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.d.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM credentials`).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// SQLUserStore implements webauthn.UserStore against DB's schema.
type SQLUserStore struct{ d *DB }

func (s *SQLUserStore) FindByUsername(ctx context.Context, username string) (*webauthn.UserRecord, bool, error) {
	var (
		userID      []byte
		displayName string
		createdAt   int64
	)
	err := s.d.db.QueryRowContext(ctx, `
		SELECT user_id, display_name, created_at FROM users WHERE username = ?`, username).
		Scan(&userID, &displayName, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("querying user by username: %w", err)
	}
	return &webauthn.UserRecord{
		UserID:      webauthn.Bytes(userID),
		Username:    username,
		DisplayName: displayName,
		Created:     time.UnixMicro(createdAt),
	}, true, nil
}

func (s *SQLUserStore) FindByUserID(ctx context.Context, userID webauthn.Bytes) (*webauthn.UserRecord, bool, error) {
	var (
		username    string
		displayName string
		createdAt   int64
	)
	err := s.d.db.QueryRowContext(ctx, `
		SELECT username, display_name, created_at FROM users WHERE user_id = ?`, []byte(userID)).
		Scan(&username, &displayName, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("querying user by id: %w", err)
	}
	return &webauthn.UserRecord{
		UserID:      userID,
		Username:    username,
		DisplayName: displayName,
		Created:     time.UnixMicro(createdAt),
	}, true, nil
}

func (s *SQLUserStore) Save(ctx context.Context, record *webauthn.UserRecord) error {
	_, err := s.d.db.ExecContext(ctx, `
		INSERT INTO users (user_id, username, display_name, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET display_name = excluded.display_name`,
		[]byte(record.UserID), record.Username, record.DisplayName, record.Created.UnixMicro())
	if err != nil {
		return fmt.Errorf("saving user: %w", err)
	}
	return nil
}
