package doorman

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by stores when a record does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned by stores when a write would violate a
// uniqueness constraint, e.g. linking a (provider, subject) pair that is
// already claimed or creating a user with an email already registered.
var ErrConflict = errors.New("conflict")

// User is a canonical account. Users are created only by explicit
// provisioning (password signup or first unresolvable OAuth login) and are
// never destroyed by this package.
type User struct {
	ID           string `json:"id"`
	Email        string `json:"email,omitempty"` // unique when present; may be empty for OAuth-only users
	Name         string `json:"name,omitempty"`
	PasswordHash string `json:"-"` // bcrypt hash; empty when the user has no local password
}

// Credential links one external provider identity to a user. The pair
// (Provider, SubjectID) is unique across all credentials: at most one user
// may claim a given provider identity. A user may hold many credentials.
type Credential struct {
	Provider  string    `json:"provider"`
	SubjectID string    `json:"subject_id"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// AccessToken is an opaque bearer value owned by a user. Issuance and
// revocation live elsewhere; this package only reads tokens.
type AccessToken struct {
	Value     string    `json:"value"`
	UserID    string    `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"` // zero means no expiry; stores treat expired tokens as absent
}

// UserStore looks up and provisions users.
type UserStore interface {
	// GetUserByID retrieves a user by id. Returns ErrNotFound if absent.
	GetUserByID(ctx context.Context, id string) (*User, error)

	// GetUserByEmail retrieves a user by email. Returns ErrNotFound if absent.
	GetUserByEmail(ctx context.Context, email string) (*User, error)

	// GetUserByCredential retrieves the user owning the (subjectID, provider)
	// credential. Returns ErrNotFound if no such credential exists.
	GetUserByCredential(ctx context.Context, subjectID, provider string) (*User, error)

	// CreateUser provisions a new user. Email and passwordHash may be empty.
	// Returns ErrConflict if the email is already registered.
	CreateUser(ctx context.Context, email, passwordHash, name string) (*User, error)
}

// CredentialStore attaches provider credentials to users.
type CredentialStore interface {
	// LinkCredential attaches (subjectID, provider) to the user. Returns
	// ErrConflict if the pair is already claimed.
	LinkCredential(ctx context.Context, userID, subjectID, provider string) error
}

// TokenStore resolves bearer token values.
type TokenStore interface {
	// GetTokenByValue retrieves a live token by its opaque value.
	// Returns ErrNotFound for unknown or expired tokens.
	GetTokenByValue(ctx context.Context, value string) (*AccessToken, error)
}

// AuthStore combines the store contracts the registry needs. Backends
// usually implement all three on a single type.
type AuthStore interface {
	UserStore
	CredentialStore
	TokenStore
}

// ProviderProfile is the normalized payload an identity provider exchange
// yields after a successful handshake. It contains facts only, no decisions.
type ProviderProfile struct {
	Provider      string   // e.g. "github", "google"
	SubjectID     string   // provider-scoped unique user identifier
	Emails        []string // emails asserted by the provider, primary first; may be empty
	DisplayName   string   // advisory only
	EmailVerified bool     // whether the provider asserts ownership of the primary email
}

// PrimaryEmail returns the provider's primary email, or "" if none.
func (p *ProviderProfile) PrimaryEmail() string {
	if len(p.Emails) == 0 {
		return ""
	}
	return p.Emails[0]
}
