package doorman_test

import (
	"context"
	"testing"

	"github.com/nsarda/doorman"
	"github.com/nsarda/doorman/stores"
)

func TestSessionRoundTrip(t *testing.T) {
	store := stores.NewMemStore()
	user, err := store.CreateUser(context.Background(), "alice@example.com", "", "Alice")
	if err != nil {
		t.Fatalf("failed to create user: %v", err)
	}

	codec := &doorman.SessionCodec{Users: store}
	key := codec.Serialize(user)
	if key != user.ID {
		t.Errorf("session key should be the user id, got %q", key)
	}

	outcome := codec.Deserialize(context.Background(), key)
	if !outcome.Authenticated() {
		t.Fatalf("expected authenticated outcome, got %v (err: %v)", outcome.Status, outcome.Err)
	}
	if outcome.User.ID != user.ID {
		t.Errorf("round trip changed identity: %s != %s", outcome.User.ID, user.ID)
	}
}

func TestSessionDeserializeMissingUserIsError(t *testing.T) {
	codec := &doorman.SessionCodec{Users: stores.NewMemStore()}

	// Keys are only minted from real users; a dangling key means the
	// session store and user store disagree.
	outcome := codec.Deserialize(context.Background(), "no-such-user")
	if !outcome.Errored() {
		t.Fatalf("missing session user must be an error, got %v", outcome.Status)
	}
}
