package doorman

import (
	"context"
	"errors"
	"fmt"
)

// SessionCodec maps a resolved user to a durable session key and back. The
// key is the user id and nothing else; no profile data leaves the
// server-side session store inside the key.
type SessionCodec struct {
	Users UserStore
}

// Serialize returns the session key for a user.
func (c *SessionCodec) Serialize(user *User) string {
	return user.ID
}

// Deserialize resolves a session key minted by Serialize. Session keys are
// only ever minted from real users, so a missing user here is corrupted
// state and surfaces as an error, not a rejection.
func (c *SessionCodec) Deserialize(ctx context.Context, key string) Outcome {
	user, err := c.Users.GetUserByID(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return Fail(fmt.Errorf("session user %s missing", key))
	}
	if err != nil {
		return Fail(fmt.Errorf("session lookup: %w", err))
	}
	return Accept(user)
}
