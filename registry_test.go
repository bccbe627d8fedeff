package doorman_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/nsarda/doorman"
	"github.com/nsarda/doorman/stores"
)

func newTestRegistry(t *testing.T) (*doorman.Registry, *stores.MemStore) {
	t.Helper()
	store := stores.NewMemStore()
	registry := doorman.NewRegistry()
	registry.Init(doorman.Config{
		Provider:             "github",
		ProviderClientID:     "client-id",
		ProviderClientSecret: "client-secret",
		CallbackURL:          "http://localhost:8080/auth/github/callback/",
	}, store)
	return registry, store
}

func TestInitRegistersDefaultMechanisms(t *testing.T) {
	registry, _ := newTestRegistry(t)

	for _, name := range []string{
		doorman.MechanismLocal,
		"github",
		doorman.MechanismBearer,
		doorman.MechanismClientCredentials,
	} {
		if registry.Strategy(name) == nil {
			t.Errorf("mechanism %q not registered", name)
		}
	}
	if registry.Codec() == nil {
		t.Error("session codec not set up")
	}
	if !registry.Initialized() {
		t.Error("registry should report initialized")
	}
}

func TestDuplicateInitIsLoggedNoOp(t *testing.T) {
	var buf bytes.Buffer
	store := stores.NewMemStore()
	registry := doorman.NewRegistry()
	registry.Logger = slog.New(slog.NewTextHandler(&buf, nil))

	registry.Init(doorman.Config{Provider: "github"}, store)
	before := registry.Strategy(doorman.MechanismBearer)

	registry.Init(doorman.Config{Provider: "google"}, stores.NewMemStore())

	if !strings.Contains(buf.String(), "duplicate") {
		t.Errorf("duplicate Init should be logged, log was: %s", buf.String())
	}
	if registry.Config().Provider != "github" {
		t.Errorf("duplicate Init must not change config, provider is %q", registry.Config().Provider)
	}
	if registry.Strategy(doorman.MechanismBearer) != before {
		t.Error("duplicate Init must not replace strategies")
	}
}

func TestResetAllowsReinit(t *testing.T) {
	registry, _ := newTestRegistry(t)
	registry.Reset()

	if registry.Initialized() {
		t.Fatal("registry should not be initialized after Reset")
	}
	if registry.Strategy(doorman.MechanismLocal) != nil {
		t.Error("strategies should be cleared by Reset")
	}

	registry.Init(doorman.Config{Provider: "google"}, stores.NewMemStore())
	if registry.Strategy("google") == nil {
		t.Error("re-Init after Reset should register the new provider")
	}
}

func TestAuthenticateUnknownMechanismIsRejection(t *testing.T) {
	registry, _ := newTestRegistry(t)
	outcome := registry.Authenticate(context.Background(), "saml", doorman.Input{})
	if !outcome.Rejected() {
		t.Fatalf("unknown mechanism must reject, got %v", outcome.Status)
	}
}

func TestClientCredentialsFailsClosed(t *testing.T) {
	registry, _ := newTestRegistry(t)
	outcome := registry.Authenticate(context.Background(), doorman.MechanismClientCredentials, doorman.Input{
		ClientID:     "client",
		ClientSecret: "secret",
	})
	if !outcome.Errored() {
		t.Fatalf("client credentials must fail closed, got %v", outcome.Status)
	}
	if !errors.Is(outcome.Err, doorman.ErrNotImplemented) {
		t.Errorf("expected ErrNotImplemented, got %v", outcome.Err)
	}
}

func TestAuthenticateDispatchesUniformly(t *testing.T) {
	registry, store := newTestRegistry(t)
	ctx := context.Background()

	user, err := doorman.Register(ctx, store, "frank@example.com", "franks-password", "Frank")
	if err != nil {
		t.Fatalf("failed to register user: %v", err)
	}
	store.PutToken(doorman.AccessToken{Value: "frank-token", UserID: user.ID})

	// Three mechanisms, one outcome shape.
	byPassword := registry.Authenticate(ctx, doorman.MechanismLocal, doorman.Input{
		Email: "frank@example.com", Password: "franks-password",
	})
	byProvider := registry.Authenticate(ctx, "github", doorman.Input{
		Profile: githubProfile("gh-frank", "frank@example.com", "Frank"),
	})
	byToken := registry.Authenticate(ctx, doorman.MechanismBearer, doorman.Input{Token: "frank-token"})

	for name, outcome := range map[string]doorman.Outcome{
		"local": byPassword, "github": byProvider, "bearer": byToken,
	} {
		if !outcome.Authenticated() {
			t.Errorf("%s: expected authenticated, got %v (err: %v)", name, outcome.Status, outcome.Err)
			continue
		}
		if outcome.User.ID != user.ID {
			t.Errorf("%s: resolved wrong user %s", name, outcome.User.ID)
		}
	}
}

func TestUseRegistersCustomMechanism(t *testing.T) {
	registry, _ := newTestRegistry(t)
	registry.Use("always-in", strategyFunc(func(ctx context.Context, in doorman.Input) doorman.Outcome {
		return doorman.Accept(&doorman.User{ID: "u1"})
	}))

	outcome := registry.Authenticate(context.Background(), "always-in", doorman.Input{})
	if !outcome.Authenticated() || outcome.User.ID != "u1" {
		t.Errorf("custom mechanism not dispatched: %v", outcome.Status)
	}
}

type strategyFunc func(ctx context.Context, in doorman.Input) doorman.Outcome

func (f strategyFunc) Authenticate(ctx context.Context, in doorman.Input) doorman.Outcome {
	return f(ctx, in)
}
