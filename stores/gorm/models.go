//go:build !wasm
// +build !wasm

package gorm

import (
	"time"

	"github.com/nsarda/doorman"
)

// UserModel is the relational shape of a doorman.User. Email is unique
// when present; NULL emails (OAuth-only users with no asserted email) do
// not collide under SQL unique semantics.
type UserModel struct {
	ID           string  `gorm:"primaryKey"`
	Email        *string `gorm:"uniqueIndex"`
	Name         string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (UserModel) TableName() string { return "doorman_users" }

func (m *UserModel) ToUser() *doorman.User {
	user := &doorman.User{
		ID:           m.ID,
		Name:         m.Name,
		PasswordHash: m.PasswordHash,
	}
	if m.Email != nil {
		user.Email = *m.Email
	}
	return user
}

// CredentialModel carries the credential-uniqueness invariant: the unique
// composite index on (provider, subject_id) makes the database reject the
// second of two racing links, which the store reports as ErrConflict.
type CredentialModel struct {
	ID        uint   `gorm:"primaryKey"`
	Provider  string `gorm:"uniqueIndex:idx_provider_subject;index:idx_cred_user"`
	SubjectID string `gorm:"uniqueIndex:idx_provider_subject"`
	UserID    string `gorm:"index:idx_cred_user"`
	CreatedAt time.Time
}

func (CredentialModel) TableName() string { return "doorman_credentials" }

// AccessTokenModel stores bearer tokens. Rows are written by the issuance
// subsystem; doorman only reads them.
type AccessTokenModel struct {
	Value     string `gorm:"primaryKey"`
	UserID    string `gorm:"index"`
	ExpiresAt *time.Time
	CreatedAt time.Time
}

func (AccessTokenModel) TableName() string { return "doorman_access_tokens" }
