package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/nsarda/doorman"
)

// TokenValidator resolves a raw bearer token to an authentication outcome.
// *doorman.BearerStrategy satisfies it.
type TokenValidator interface {
	Validate(ctx context.Context, token string) doorman.Outcome
}

// InterceptorConfig configures the auth interceptor behavior.
type InterceptorConfig struct {
	*Config

	// Validator resolves bearer tokens. Required unless every request is
	// expected to carry trusted user-id metadata.
	Validator TokenValidator

	// RequireAuth when true rejects unauthenticated requests. When false,
	// requests proceed but UserIDFromContext returns empty.
	RequireAuth bool

	// PublicMethods don't require auth when RequireAuth is true. Keys are
	// full method names like "/package.Service/Method".
	PublicMethods map[string]bool
}

// NewInterceptorConfig returns a config requiring auth for all methods
// except the listed public ones.
func NewInterceptorConfig(validator TokenValidator, publicMethods ...string) *InterceptorConfig {
	config := &InterceptorConfig{
		Config:        DefaultConfig(),
		Validator:     validator,
		RequireAuth:   true,
		PublicMethods: make(map[string]bool),
	}
	for _, method := range publicMethods {
		config.PublicMethods[method] = true
	}
	return config
}

// OptionalAuthConfig returns a config that lets unauthenticated requests
// through with no user in context.
func OptionalAuthConfig(validator TokenValidator) *InterceptorConfig {
	return &InterceptorConfig{
		Config:        DefaultConfig(),
		Validator:     validator,
		RequireAuth:   false,
		PublicMethods: make(map[string]bool),
	}
}

// UnaryAuthInterceptor returns a gRPC unary interceptor that resolves the
// bearer token from metadata. A rejected token maps to Unauthenticated and
// a validation error maps to Internal; the two are never conflated.
func UnaryAuthInterceptor(config *InterceptorConfig) grpc.UnaryServerInterceptor {
	ensureConfig(&config)

	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		ctx, err := resolveContext(ctx, config, info.FullMethod)
		if err != nil {
			return nil, err
		}
		return handler(ctx, req)
	}
}

// StreamAuthInterceptor is UnaryAuthInterceptor for streaming RPCs.
func StreamAuthInterceptor(config *InterceptorConfig) grpc.StreamServerInterceptor {
	ensureConfig(&config)

	return func(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		ctx, err := resolveContext(ss.Context(), config, info.FullMethod)
		if err != nil {
			return err
		}
		return handler(srv, &wrappedStream{ServerStream: ss, ctx: ctx})
	}
}

func ensureConfig(config **InterceptorConfig) {
	if *config == nil {
		*config = &InterceptorConfig{PublicMethods: make(map[string]bool)}
	}
	if (*config).Config == nil {
		(*config).Config = DefaultConfig()
	}
	(*config).Config.EnsureDefaults()
}

// resolveContext authenticates one call and returns the context the
// handler should run under.
func resolveContext(ctx context.Context, config *InterceptorConfig, fullMethod string) (context.Context, error) {
	userID := trustedUserID(ctx, config.Config)

	if userID == "" && config.Validator != nil {
		if token := bearerFromMetadata(ctx, config.Config); token != "" {
			outcome := config.Validator.Validate(ctx, token)
			switch outcome.Status {
			case doorman.StatusAuthenticated:
				userID = outcome.User.ID
			case doorman.StatusErrored:
				return nil, status.Error(codes.Internal, "server error")
			}
		}
	}

	if config.RequireAuth && !config.PublicMethods[fullMethod] && userID == "" {
		return nil, status.Error(codes.Unauthenticated, "authentication required")
	}
	if userID != "" {
		ctx = ContextWithUserID(ctx, userID)
	}
	return ctx, nil
}

// wrappedStream overrides the stream context with the authenticated one.
type wrappedStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (w *wrappedStream) Context() context.Context { return w.ctx }
