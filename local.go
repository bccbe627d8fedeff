package doorman

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// MsgInvalidCredentials is the single rejection message for password
// logins. It never reveals whether the email or the password was wrong.
const MsgInvalidCredentials = "invalid email or password"

// LocalStrategy authenticates email/password pairs against the user store.
type LocalStrategy struct {
	Users UserStore
}

// Verify checks an email/password pair. An unknown email and a wrong
// password produce the same rejection; only store failures surface as
// errors. No writes are performed.
func (s *LocalStrategy) Verify(ctx context.Context, email, password string) Outcome {
	user, err := s.Users.GetUserByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		return Reject(MsgInvalidCredentials)
	}
	if err != nil {
		return Fail(fmt.Errorf("password login lookup: %w", err))
	}

	// OAuth-only users have no password hash and cannot log in locally.
	if user.PasswordHash == "" {
		return Reject(MsgInvalidCredentials)
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return Reject(MsgInvalidCredentials)
	}
	return Accept(user)
}

// Authenticate implements Strategy, pulling the pair from the input.
func (s *LocalStrategy) Authenticate(ctx context.Context, in Input) Outcome {
	return s.Verify(ctx, in.Email, in.Password)
}

// Register provisions a new user with a bcrypt-hashed password. This is the
// password-signup entry point; duplicate emails surface as ErrConflict from
// the store.
func Register(ctx context.Context, users UserStore, email, password, name string) (*User, error) {
	if email == "" || password == "" {
		return nil, fmt.Errorf("email and password required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	return users.CreateUser(ctx, email, string(hash), name)
}
