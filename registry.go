package doorman

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// Default mechanism names.
const (
	MechanismLocal             = "local"
	MechanismBearer            = "bearer"
	MechanismClientCredentials = "client-credentials"
)

// Input carries the per-mechanism credentials of one authentication
// attempt. Each strategy reads only the fields it understands.
type Input struct {
	// Local
	Email    string
	Password string

	// Bearer
	Token string

	// Client credentials
	ClientID     string
	ClientSecret string

	// Provider exchange (already normalized by the transport layer)
	Profile *ProviderProfile
}

// Strategy is a named authentication mechanism.
type Strategy interface {
	Authenticate(ctx context.Context, in Input) Outcome
}

// Config holds the provider credentials and callback address supplied once
// at initialization. Empty fields fall back to environment variables the
// way the oauth2 providers do.
type Config struct {
	Provider             string // oauth provider mechanism name; defaults to "github"
	ProviderClientID     string
	ProviderClientSecret string
	CallbackURL          string
}

// EnsureDefaults fills unset fields from the environment.
func (c *Config) EnsureDefaults() {
	if c.Provider == "" {
		c.Provider = "github"
	}
	if c.ProviderClientID == "" {
		c.ProviderClientID = strings.TrimSpace(os.Getenv("DOORMAN_OAUTH_CLIENT_ID"))
	}
	if c.ProviderClientSecret == "" {
		c.ProviderClientSecret = strings.TrimSpace(os.Getenv("DOORMAN_OAUTH_CLIENT_SECRET"))
	}
	if c.CallbackURL == "" {
		c.CallbackURL = strings.TrimSpace(os.Getenv("DOORMAN_OAUTH_CALLBACK_URL"))
	}
}

// Registry composes the strategies behind named mechanisms and owns the
// once-only initialization state. A second Init is a logged no-op so that
// idempotent startup sequencing never crashes on double invocation.
type Registry struct {
	Logger *slog.Logger

	mu          sync.Mutex
	initialized bool
	config      Config
	strategies  map[string]Strategy
	codec       *SessionCodec
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{strategies: make(map[string]Strategy)}
}

// Init loads configuration and registers the default mechanisms against
// the store: local, the configured oauth provider, bearer and
// client-credentials, plus the session codec. Calling Init again is
// observable in the log but has no effect.
func (r *Registry) Init(cfg Config, store AuthStore) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.initialized {
		r.logger().Warn("duplicate call to registry Init, ignoring")
		return
	}
	cfg.EnsureDefaults()
	r.config = cfg

	if r.strategies == nil {
		r.strategies = make(map[string]Strategy)
	}
	r.strategies[MechanismLocal] = &LocalStrategy{Users: store}
	r.strategies[cfg.Provider] = &IdentityLinker{
		Users:       store,
		Credentials: store,
		Events:      r.loggingEvents(),
	}
	r.strategies[MechanismBearer] = &BearerStrategy{Tokens: store, Users: store}
	r.strategies[MechanismClientCredentials] = ClientCredentialsStrategy{}
	r.codec = &SessionCodec{Users: store}
	r.initialized = true
}

// Use registers or replaces a named mechanism. Init must have run first.
func (r *Registry) Use(name string, s Strategy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.strategies[name] = s
}

// Strategy returns the named mechanism, or nil if unregistered.
func (r *Registry) Strategy(name string) Strategy {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.strategies[name]
}

// Codec returns the session identity codec. Nil before Init.
func (r *Registry) Codec() *SessionCodec {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.codec
}

// Config returns the configuration loaded by Init.
func (r *Registry) Config() Config {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.config
}

// Initialized reports whether Init has run.
func (r *Registry) Initialized() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.initialized
}

// Authenticate dispatches one attempt to the named mechanism. The result
// flows back uniformly regardless of mechanism. An unregistered mechanism
// is a rejection, not an error: the credentials were refused, the system
// is healthy.
func (r *Registry) Authenticate(ctx context.Context, mechanism string, in Input) Outcome {
	s := r.Strategy(mechanism)
	if s == nil {
		return Reject(fmt.Sprintf("unknown mechanism %q", mechanism))
	}
	return s.Authenticate(ctx, in)
}

// Reset clears all initialization state. Test harness use only.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.initialized = false
	r.config = Config{}
	r.strategies = make(map[string]Strategy)
	r.codec = nil
}

func (r *Registry) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

// loggingEvents routes the linker's decision points to the registry log.
func (r *Registry) loggingEvents() LinkerEvents {
	return LinkerEvents{
		CredentialFound: func(provider, subjectID, userID string) {
			r.logger().Info("user found with credential", "provider", provider, "subject", subjectID, "user", userID)
		},
		UserLinked: func(provider, email, userID string) {
			r.logger().Info("linked credential to existing user", "provider", provider, "email", email, "user", userID)
		},
		UserCreated: func(provider, userID string) {
			r.logger().Info("provisioned new user", "provider", provider, "user", userID)
		},
	}
}
