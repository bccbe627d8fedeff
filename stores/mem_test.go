package stores_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nsarda/doorman"
	"github.com/nsarda/doorman/stores"
)

func TestCreateUserDuplicateEmail(t *testing.T) {
	store := stores.NewMemStore()
	ctx := context.Background()

	if _, err := store.CreateUser(ctx, "alice@example.com", "", "Alice"); err != nil {
		t.Fatalf("first create failed: %v", err)
	}
	if _, err := store.CreateUser(ctx, "alice@example.com", "", "Alice Again"); !errors.Is(err, doorman.ErrConflict) {
		t.Errorf("duplicate email should conflict, got %v", err)
	}

	// Users without an email never collide with each other.
	if _, err := store.CreateUser(ctx, "", "", "Anon One"); err != nil {
		t.Errorf("emailless create failed: %v", err)
	}
	if _, err := store.CreateUser(ctx, "", "", "Anon Two"); err != nil {
		t.Errorf("second emailless create failed: %v", err)
	}
}

func TestLinkCredentialDuplicateSubject(t *testing.T) {
	store := stores.NewMemStore()
	ctx := context.Background()

	alice, _ := store.CreateUser(ctx, "alice@example.com", "", "Alice")
	bob, _ := store.CreateUser(ctx, "bob@example.com", "", "Bob")

	if err := store.LinkCredential(ctx, alice.ID, "gh-1", "github"); err != nil {
		t.Fatalf("first link failed: %v", err)
	}
	if err := store.LinkCredential(ctx, bob.ID, "gh-1", "github"); !errors.Is(err, doorman.ErrConflict) {
		t.Errorf("duplicate (provider, subject) should conflict, got %v", err)
	}
	// Same subject id under a different provider is a distinct credential.
	if err := store.LinkCredential(ctx, bob.ID, "gh-1", "google"); err != nil {
		t.Errorf("cross-provider link failed: %v", err)
	}

	got, err := store.GetUserByCredential(ctx, "gh-1", "github")
	if err != nil {
		t.Fatalf("credential lookup failed: %v", err)
	}
	if got.ID != alice.ID {
		t.Errorf("credential resolves to %s, want %s", got.ID, alice.ID)
	}
}

func TestGetTokenByValueExpiry(t *testing.T) {
	store := stores.NewMemStore()
	ctx := context.Background()

	store.PutToken(doorman.AccessToken{Value: "live", UserID: "u1", ExpiresAt: time.Now().Add(time.Hour)})
	store.PutToken(doorman.AccessToken{Value: "stale", UserID: "u1", ExpiresAt: time.Now().Add(-time.Minute)})
	store.PutToken(doorman.AccessToken{Value: "forever", UserID: "u1"})

	if _, err := store.GetTokenByValue(ctx, "live"); err != nil {
		t.Errorf("live token lookup failed: %v", err)
	}
	if _, err := store.GetTokenByValue(ctx, "forever"); err != nil {
		t.Errorf("token without expiry should be valid: %v", err)
	}
	if _, err := store.GetTokenByValue(ctx, "stale"); !errors.Is(err, doorman.ErrNotFound) {
		t.Errorf("expired token should read as not found, got %v", err)
	}
}
