// Package stores provides store backends for doorman. The in-memory store
// here is the development and test workhorse; relational and datastore
// backends live in the gorm and gae subpackages.
package stores

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"

	"github.com/nsarda/doorman"
)

// MemStore is an in-memory doorman.AuthStore. All operations run under one
// mutex, so the uniqueness checks and the writes that depend on them are
// atomic: a duplicate (provider, subject) link or a duplicate email create
// reports doorman.ErrConflict.
type MemStore struct {
	mu      sync.Mutex
	users   map[string]doorman.User
	byEmail map[string]string              // email -> user id
	creds   map[credKey]doorman.Credential // (provider, subject) -> credential
	tokens  map[string]doorman.AccessToken // value -> token
}

type credKey struct {
	provider  string
	subjectID string
}

func NewMemStore() *MemStore {
	return &MemStore{
		users:   make(map[string]doorman.User),
		byEmail: make(map[string]string),
		creds:   make(map[credKey]doorman.Credential),
		tokens:  make(map[string]doorman.AccessToken),
	}
}

func (s *MemStore) GetUserByID(ctx context.Context, id string) (*doorman.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return nil, doorman.ErrNotFound
	}
	return &user, nil
}

func (s *MemStore) GetUserByEmail(ctx context.Context, email string) (*doorman.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byEmail[email]
	if !ok {
		return nil, doorman.ErrNotFound
	}
	user := s.users[id]
	return &user, nil
}

func (s *MemStore) GetUserByCredential(ctx context.Context, subjectID, provider string) (*doorman.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cred, ok := s.creds[credKey{provider, subjectID}]
	if !ok {
		return nil, doorman.ErrNotFound
	}
	user, ok := s.users[cred.UserID]
	if !ok {
		return nil, doorman.ErrNotFound
	}
	return &user, nil
}

func (s *MemStore) CreateUser(ctx context.Context, email, passwordHash, name string) (*doorman.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if email != "" {
		if _, taken := s.byEmail[email]; taken {
			return nil, doorman.ErrConflict
		}
	}
	user := doorman.User{
		ID:           newID(),
		Email:        email,
		Name:         name,
		PasswordHash: passwordHash,
	}
	s.users[user.ID] = user
	if email != "" {
		s.byEmail[email] = user.ID
	}
	return &user, nil
}

func (s *MemStore) LinkCredential(ctx context.Context, userID, subjectID, provider string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := credKey{provider, subjectID}
	if _, claimed := s.creds[key]; claimed {
		return doorman.ErrConflict
	}
	s.creds[key] = doorman.Credential{
		Provider:  provider,
		SubjectID: subjectID,
		UserID:    userID,
		CreatedAt: time.Now(),
	}
	return nil
}

func (s *MemStore) GetTokenByValue(ctx context.Context, value string) (*doorman.AccessToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	token, ok := s.tokens[value]
	if !ok {
		return nil, doorman.ErrNotFound
	}
	if !token.ExpiresAt.IsZero() && time.Now().After(token.ExpiresAt) {
		return nil, doorman.ErrNotFound
	}
	return &token, nil
}

// PutToken registers a bearer token. Issuance proper lives outside
// doorman; this seeds tokens for development and tests.
func (s *MemStore) PutToken(token doorman.AccessToken) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[token.Value] = token
}

// Counts reports how many users and credentials exist. Handy for tests
// asserting that repeated logins did not duplicate records.
func (s *MemStore) Counts() (users, credentials int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.users), len(s.creds)
}

func newID() string {
	b := make([]byte, 16)
	rand.Read(b)
	return hex.EncodeToString(b)
}
