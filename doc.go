// Package doorman authenticates principals against multiple credential
// mechanisms and resolves each to a single canonical user, creating that
// user on first contact when required.
//
// # Architecture
//
// Outcome: every authentication attempt ends in exactly one of three
// states: Authenticated (carrying a resolved user), Rejected (a normal
// refusal with a caller-safe reason) or Errored (the answer is unknown
// because infrastructure failed). The three are never collapsed.
//
// Strategies: LocalStrategy verifies email/password pairs with bcrypt,
// IdentityLinker resolves provider identities (finding, linking or
// provisioning users), BearerStrategy resolves opaque access tokens, and
// ClientCredentialsStrategy is a fail-closed placeholder.
//
// Registry: composes the strategies behind mechanism names ("local",
// "github", "bearer", "client-credentials") with once-only initialization,
// and exposes the SessionCodec that maps users to durable session keys.
//
// # Basic Usage
//
// Set up a store and initialize the registry once at startup:
//
//	import (
//	    "github.com/nsarda/doorman"
//	    "github.com/nsarda/doorman/stores"
//	)
//
//	store := stores.NewMemStore()
//	registry := doorman.NewRegistry()
//	registry.Init(doorman.Config{
//	    Provider:             "github",
//	    ProviderClientID:     clientID,
//	    ProviderClientSecret: clientSecret,
//	    CallbackURL:          "https://yourapp.com/auth/github/callback/",
//	}, store)
//
// Authenticate through a named mechanism:
//
//	outcome := registry.Authenticate(ctx, doorman.MechanismLocal, doorman.Input{
//	    Email:    email,
//	    Password: password,
//	})
//	if outcome.Authenticated() {
//	    sessionKey := registry.Codec().Serialize(outcome.User)
//	    // establish the session
//	}
//
// Server wires the registry to HTTP: a login endpoint, the provider
// exchange routes, logout and cookie/session establishment. Middleware
// resolves the user on later requests from the session, the signed auth
// cookie, or a bearer token carried in the Authorization header, the
// access_token query parameter or the form body, in that order.
//
// # Identity Resolution
//
// IdentityLinker decides what a provider login means: an identity seen
// before resolves to its existing owner and writes nothing; an unseen
// identity whose email matches an existing user links a new credential to
// that user; otherwise a new user is provisioned and the credential
// attached. Concurrent resolutions of the same identity are serialized per
// subject, and store-level uniqueness conflicts trigger a bounded retry,
// so repeated or racing logins never duplicate users or credentials.
//
// # Store Implementations
//
// The stores package has an in-memory backend suitable for development and
// tests; stores/gorm and stores/gae provide relational and Cloud Datastore
// backends. Production backends must report ErrConflict from a losing
// credential link.
package doorman
