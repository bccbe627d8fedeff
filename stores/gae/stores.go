//go:build !wasm
// +build !wasm

// Package gae provides a Cloud Datastore doorman.AuthStore. Credentials
// are stored under a deterministic key derived from (provider, subject),
// and linking runs in a transaction that inserts only if the key is
// absent, so a racing link loses with doorman.ErrConflict.
package gae

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"cloud.google.com/go/datastore"
	"google.golang.org/api/iterator"

	"github.com/nsarda/doorman"
)

// Kind constants for Datastore entities
const (
	KindUser        = "DoormanUser"
	KindCredential  = "DoormanCredential"
	KindAccessToken = "DoormanAccessToken"
)

type userEntity struct {
	ID           string    `datastore:"id"`
	Email        string    `datastore:"email"`
	Name         string    `datastore:"name,noindex"`
	PasswordHash string    `datastore:"password_hash,noindex"`
	CreatedAt    time.Time `datastore:"created_at"`
}

type credentialEntity struct {
	Provider  string    `datastore:"provider"`
	SubjectID string    `datastore:"subject_id"`
	UserID    string    `datastore:"user_id"`
	CreatedAt time.Time `datastore:"created_at"`
}

type tokenEntity struct {
	Value     string    `datastore:"value,noindex"`
	UserID    string    `datastore:"user_id"`
	ExpiresAt time.Time `datastore:"expires_at"`
}

// Store implements doorman.AuthStore over a Datastore client.
type Store struct {
	client    *datastore.Client
	namespace string
}

func NewStore(client *datastore.Client, namespace string) *Store {
	return &Store{client: client, namespace: namespace}
}

func (s *Store) key(kind, name string) *datastore.Key {
	key := datastore.NameKey(kind, name, nil)
	key.Namespace = s.namespace
	return key
}

// credentialKeyName builds the deterministic entity name carrying the
// (provider, subject) uniqueness invariant.
func credentialKeyName(provider, subjectID string) string {
	return provider + ":" + subjectID
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*doorman.User, error) {
	var entity userEntity
	err := s.client.Get(ctx, s.key(KindUser, id), &entity)
	if errors.Is(err, datastore.ErrNoSuchEntity) {
		return nil, doorman.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return entity.toUser(), nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*doorman.User, error) {
	query := datastore.NewQuery(KindUser).
		Namespace(s.namespace).
		FilterField("email", "=", email).
		Limit(1)

	it := s.client.Run(ctx, query)
	var entity userEntity
	_, err := it.Next(&entity)
	if errors.Is(err, iterator.Done) {
		return nil, doorman.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return entity.toUser(), nil
}

func (s *Store) GetUserByCredential(ctx context.Context, subjectID, provider string) (*doorman.User, error) {
	var cred credentialEntity
	err := s.client.Get(ctx, s.key(KindCredential, credentialKeyName(provider, subjectID)), &cred)
	if errors.Is(err, datastore.ErrNoSuchEntity) {
		return nil, doorman.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return s.GetUserByID(ctx, cred.UserID)
}

func (s *Store) CreateUser(ctx context.Context, email, passwordHash, name string) (*doorman.User, error) {
	if email != "" {
		// Datastore has no unique constraint on properties; check first.
		// The credential link, not the email row, is the hard invariant.
		if _, err := s.GetUserByEmail(ctx, email); err == nil {
			return nil, doorman.ErrConflict
		} else if !errors.Is(err, doorman.ErrNotFound) {
			return nil, err
		}
	}
	entity := &userEntity{
		ID:           newID(),
		Email:        email,
		Name:         name,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now(),
	}
	if _, err := s.client.Put(ctx, s.key(KindUser, entity.ID), entity); err != nil {
		return nil, err
	}
	return entity.toUser(), nil
}

func (s *Store) LinkCredential(ctx context.Context, userID, subjectID, provider string) error {
	key := s.key(KindCredential, credentialKeyName(provider, subjectID))
	_, err := s.client.RunInTransaction(ctx, func(tx *datastore.Transaction) error {
		var existing credentialEntity
		err := tx.Get(key, &existing)
		if err == nil {
			return doorman.ErrConflict
		}
		if !errors.Is(err, datastore.ErrNoSuchEntity) {
			return err
		}
		_, err = tx.Put(key, &credentialEntity{
			Provider:  provider,
			SubjectID: subjectID,
			UserID:    userID,
			CreatedAt: time.Now(),
		})
		return err
	})
	return err
}

func (s *Store) GetTokenByValue(ctx context.Context, value string) (*doorman.AccessToken, error) {
	var entity tokenEntity
	err := s.client.Get(ctx, s.key(KindAccessToken, value), &entity)
	if errors.Is(err, datastore.ErrNoSuchEntity) {
		return nil, doorman.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if !entity.ExpiresAt.IsZero() && time.Now().After(entity.ExpiresAt) {
		return nil, doorman.ErrNotFound
	}
	return &doorman.AccessToken{
		Value:     entity.Value,
		UserID:    entity.UserID,
		ExpiresAt: entity.ExpiresAt,
	}, nil
}

func (e *userEntity) toUser() *doorman.User {
	return &doorman.User{
		ID:           e.ID,
		Email:        e.Email,
		Name:         e.Name,
		PasswordHash: e.PasswordHash,
	}
}

func newID() string {
	b := make([]byte, 16)
	rand.Read(b)
	return hex.EncodeToString(b)
}
