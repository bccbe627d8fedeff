//go:build !wasm
// +build !wasm

// Package gorm provides a relational doorman.AuthStore. The credential
// uniqueness constraint lives in the schema, so concurrent links of the
// same provider identity are resolved by the database: the loser gets
// doorman.ErrConflict and the linker retries.
package gorm

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/nsarda/doorman"
)

// AutoMigrate creates the doorman tables and indexes.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&UserModel{},
		&CredentialModel{},
		&AccessTokenModel{},
	)
}

// Store implements doorman.AuthStore over a gorm DB.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*doorman.User, error) {
	var model UserModel
	if err := s.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return model.ToUser(), nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*doorman.User, error) {
	var model UserModel
	if err := s.db.WithContext(ctx).First(&model, "email = ?", email).Error; err != nil {
		return nil, translate(err)
	}
	return model.ToUser(), nil
}

func (s *Store) GetUserByCredential(ctx context.Context, subjectID, provider string) (*doorman.User, error) {
	var cred CredentialModel
	err := s.db.WithContext(ctx).
		First(&cred, "provider = ? AND subject_id = ?", provider, subjectID).Error
	if err != nil {
		return nil, translate(err)
	}
	return s.GetUserByID(ctx, cred.UserID)
}

func (s *Store) CreateUser(ctx context.Context, email, passwordHash, name string) (*doorman.User, error) {
	model := &UserModel{
		ID:           newID(),
		Name:         name,
		PasswordHash: passwordHash,
	}
	if email != "" {
		model.Email = &email
	}
	if err := s.db.WithContext(ctx).Create(model).Error; err != nil {
		return nil, translate(err)
	}
	return model.ToUser(), nil
}

func (s *Store) LinkCredential(ctx context.Context, userID, subjectID, provider string) error {
	cred := &CredentialModel{
		Provider:  provider,
		SubjectID: subjectID,
		UserID:    userID,
	}
	if err := s.db.WithContext(ctx).Create(cred).Error; err != nil {
		return translate(err)
	}
	return nil
}

func (s *Store) GetTokenByValue(ctx context.Context, value string) (*doorman.AccessToken, error) {
	var model AccessTokenModel
	if err := s.db.WithContext(ctx).First(&model, "value = ?", value).Error; err != nil {
		return nil, translate(err)
	}
	if model.ExpiresAt != nil && time.Now().After(*model.ExpiresAt) {
		return nil, doorman.ErrNotFound
	}
	token := &doorman.AccessToken{
		Value:  model.Value,
		UserID: model.UserID,
	}
	if model.ExpiresAt != nil {
		token.ExpiresAt = *model.ExpiresAt
	}
	return token, nil
}

// translate maps gorm errors onto the doorman sentinels.
func translate(err error) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return doorman.ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return doorman.ErrConflict
	case isDuplicateError(err):
		return doorman.ErrConflict
	}
	return err
}

// isDuplicateError catches drivers that don't participate in gorm's error
// translation and report constraint violations as raw strings.
func isDuplicateError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate")
}

func newID() string {
	b := make([]byte, 16)
	rand.Read(b)
	return hex.EncodeToString(b)
}
