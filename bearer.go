package doorman

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrOrphanToken marks a token whose owning user no longer exists. This is
// corrupted state, not a normal rejection, so operators can alert on it.
var ErrOrphanToken = errors.New("token has no owning user")

// BearerStrategy resolves opaque bearer tokens to users.
type BearerStrategy struct {
	Tokens TokenStore
	Users  UserStore
}

// Validate resolves a raw token value. An unknown token is a rejection
// with no detail; a token whose owner is missing is an error, never a
// rejection. Transport extraction happens before this point.
func (s *BearerStrategy) Validate(ctx context.Context, token string) Outcome {
	if token == "" {
		return Reject("")
	}
	tok, err := s.Tokens.GetTokenByValue(ctx, token)
	if errors.Is(err, ErrNotFound) {
		return Reject("")
	}
	if err != nil {
		return Fail(fmt.Errorf("token lookup: %w", err))
	}

	user, err := s.Users.GetUserByID(ctx, tok.UserID)
	if errors.Is(err, ErrNotFound) {
		return Fail(fmt.Errorf("%w: user %s", ErrOrphanToken, tok.UserID))
	}
	if err != nil {
		return Fail(fmt.Errorf("token owner lookup: %w", err))
	}
	return Accept(user)
}

// Authenticate implements Strategy, pulling the raw token from the input.
func (s *BearerStrategy) Authenticate(ctx context.Context, in Input) Outcome {
	return s.Validate(ctx, in.Token)
}

// ExtractBearerToken pulls a bearer token from the request, trying the
// Authorization header, then the access_token query parameter, then the
// access_token form field, in that order, per RFC 6750. Returns "" when no
// token was sent.
func ExtractBearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if len(auth) > 7 && strings.EqualFold(auth[:7], "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	if tok := r.URL.Query().Get("access_token"); tok != "" {
		return tok
	}
	// Form-encoded bodies only. PostFormValue parses the body without
	// merging in query params.
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/x-www-form-urlencoded") {
		if tok := r.PostFormValue("access_token"); tok != "" {
			return tok
		}
	}
	return ""
}
