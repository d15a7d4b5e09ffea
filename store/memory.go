package store

import (
	"context"
	"sync"
	"time"

	"github.com/passkeyrp/webauthn-rp/webauthn"
)

// MemoryChallengeStore is an in-memory ChallengeStore, intended for
// development, testing, and single-process deployments. Expiry is applied
// lazily on read: an entry older than ttl is treated as not found and
// removed.
//
// Grounded on the collaborator's MemorySessionStore.
type MemoryChallengeStore struct {
	mu  sync.Mutex
	ttl time.Duration

	creation map[string]*creationEntry
	request  map[string]*requestEntry
}

type creationEntry struct {
	options   *webauthn.PublicKeyCredentialCreationOptions
	createdAt time.Time
}

type requestEntry struct {
	options   *webauthn.PublicKeyCredentialRequestOptions
	createdAt time.Time
}

// NewMemoryChallengeStore constructs a MemoryChallengeStore with the given
// entry lifetime. A ttl of zero disables expiry.
func NewMemoryChallengeStore(ttl time.Duration) *MemoryChallengeStore {
	return &MemoryChallengeStore{
		ttl:      ttl,
		creation: make(map[string]*creationEntry),
		request:  make(map[string]*requestEntry),
	}
}

func (s *MemoryChallengeStore) expired(createdAt time.Time) bool {
	return s.ttl > 0 && time.Since(createdAt) > s.ttl
}

func (s *MemoryChallengeStore) SaveCreationOptions(ctx context.Context, sessionKey string, options *webauthn.PublicKeyCredentialCreationOptions) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creation[sessionKey] = &creationEntry{options: options, createdAt: time.Now()}
	return nil
}

func (s *MemoryChallengeStore) LoadAndConsumeCreationOptions(ctx context.Context, sessionKey string) (*webauthn.PublicKeyCredentialCreationOptions, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.creation[sessionKey]
	delete(s.creation, sessionKey)
	if !ok || s.expired(entry.createdAt) {
		return nil, false, nil
	}
	return entry.options, true, nil
}

func (s *MemoryChallengeStore) SaveRequestOptions(ctx context.Context, sessionKey string, options *webauthn.PublicKeyCredentialRequestOptions) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.request[sessionKey] = &requestEntry{options: options, createdAt: time.Now()}
	return nil
}

func (s *MemoryChallengeStore) LoadAndConsumeRequestOptions(ctx context.Context, sessionKey string) (*webauthn.PublicKeyCredentialRequestOptions, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.request[sessionKey]
	delete(s.request, sessionKey)
	if !ok || s.expired(entry.createdAt) {
		return nil, false, nil
	}
	return entry.options, true, nil
}

// Count returns the number of outstanding, unconsumed challenges of both
// kinds, for metrics sampling.
func (s *MemoryChallengeStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.creation) + len(s.request)
}

// CleanupExpired removes expired entries and returns how many were removed.
func (s *MemoryChallengeStore) CleanupExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for k, e := range s.creation {
		if s.expired(e.createdAt) {
			delete(s.creation, k)
			removed++
		}
	}
	for k, e := range s.request {
		if s.expired(e.createdAt) {
			delete(s.request, k)
			removed++
		}
	}
	return removed
}

// MemoryCredentialStore is an in-memory CredentialStore.
//
// Grounded on the collaborator's MemoryCredentialStore.
type MemoryCredentialStore struct {
	mu     sync.RWMutex
	byID   map[string]*webauthn.CredentialRecord
	byUser map[string][]*webauthn.CredentialRecord
}

// NewMemoryCredentialStore constructs an empty MemoryCredentialStore.
func NewMemoryCredentialStore() *MemoryCredentialStore {
	return &MemoryCredentialStore{
		byID:   make(map[string]*webauthn.CredentialRecord),
		byUser: make(map[string][]*webauthn.CredentialRecord),
	}
}

func (s *MemoryCredentialStore) FindByID(ctx context.Context, credentialID webauthn.Bytes) (*webauthn.CredentialRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.byID[credentialID.String()]
	return record, ok, nil
}

func (s *MemoryCredentialStore) FindByUser(ctx context.Context, userHandle webauthn.Bytes) ([]*webauthn.CredentialRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	records := s.byUser[userHandle.String()]
	result := make([]*webauthn.CredentialRecord, len(records))
	copy(result, records)
	return result, nil
}

func (s *MemoryCredentialStore) Save(ctx context.Context, record *webauthn.CredentialRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := record.CredentialID.String()
	if _, exists := s.byID[key]; !exists {
		userKey := record.UserHandle.String()
		s.byUser[userKey] = append(s.byUser[userKey], record)
	} else {
		userKey := record.UserHandle.String()
		for i, c := range s.byUser[userKey] {
			if c.CredentialID.String() == key {
				s.byUser[userKey][i] = record
				break
			}
		}
	}
	s.byID[key] = record
	return nil
}

func (s *MemoryCredentialStore) Delete(ctx context.Context, credentialID webauthn.Bytes) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := credentialID.String()
	record, ok := s.byID[key]
	if !ok {
		return webauthn.ErrStoreNotFound
	}
	delete(s.byID, key)
	userKey := record.UserHandle.String()
	creds := s.byUser[userKey]
	for i, c := range creds {
		if c.CredentialID.String() == key {
			s.byUser[userKey] = append(creds[:i], creds[i+1:]...)
			break
		}
	}
	return nil
}

// Count returns the number of registered credentials, for metrics sampling.
func (s *MemoryCredentialStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

// MemoryUserStore is an in-memory UserStore.
//
// Grounded on the collaborator's MemoryUserStore.
type MemoryUserStore struct {
	mu         sync.RWMutex
	byUserID   map[string]*webauthn.UserRecord
	byUsername map[string]*webauthn.UserRecord
}

// NewMemoryUserStore constructs an empty MemoryUserStore.
func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{
		byUserID:   make(map[string]*webauthn.UserRecord),
		byUsername: make(map[string]*webauthn.UserRecord),
	}
}

func (s *MemoryUserStore) FindByUsername(ctx context.Context, username string) (*webauthn.UserRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.byUsername[username]
	return record, ok, nil
}

func (s *MemoryUserStore) FindByUserID(ctx context.Context, userID webauthn.Bytes) (*webauthn.UserRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.byUserID[userID.String()]
	return record, ok, nil
}

func (s *MemoryUserStore) Save(ctx context.Context, record *webauthn.UserRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byUserID[record.UserID.String()] = record
	s.byUsername[record.Username] = record
	return nil
}
