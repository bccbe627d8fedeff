// Package grpc carries bearer authentication over gRPC: an interceptor
// that validates tokens from incoming metadata and context helpers for
// reading the authenticated user downstream.
package grpc

import (
	"context"
	"strings"

	"google.golang.org/grpc/metadata"
)

// Default metadata keys.
const (
	// DefaultMetadataKeyAuthorization carries the bearer token.
	DefaultMetadataKeyAuthorization = "authorization"

	// DefaultMetadataKeyUserID carries a pre-resolved user id between
	// trusted services.
	DefaultMetadataKeyUserID = "x-user-id"
)

// Config holds the metadata key configuration.
type Config struct {
	// MetadataKeyAuthorization is the key holding "Bearer <token>".
	// Defaults to "authorization".
	MetadataKeyAuthorization string

	// MetadataKeyUserID is the key for a pre-resolved user id. Only
	// honored when TrustUserIDMetadata is set.
	MetadataKeyUserID string

	// TrustUserIDMetadata accepts the user-id key without validating a
	// token. Enable only behind a trusted gateway.
	TrustUserIDMetadata bool
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		MetadataKeyAuthorization: DefaultMetadataKeyAuthorization,
		MetadataKeyUserID:        DefaultMetadataKeyUserID,
	}
}

// EnsureDefaults fills in default values for any unset fields.
func (c *Config) EnsureDefaults() {
	if c.MetadataKeyAuthorization == "" {
		c.MetadataKeyAuthorization = DefaultMetadataKeyAuthorization
	}
	if c.MetadataKeyUserID == "" {
		c.MetadataKeyUserID = DefaultMetadataKeyUserID
	}
}

type contextKey string

const userIDContextKey contextKey = "doorman.grpc.userID"

// UserIDFromContext returns the authenticated user id, or "".
func UserIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(userIDContextKey).(string); ok {
		return v
	}
	return ""
}

// ContextWithUserID returns a context carrying the authenticated user id.
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDContextKey, userID)
}

// bearerFromMetadata pulls the raw bearer token out of incoming metadata.
func bearerFromMetadata(ctx context.Context, config *Config) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	for _, value := range md.Get(config.MetadataKeyAuthorization) {
		if len(value) > 7 && strings.EqualFold(value[:7], "bearer ") {
			return strings.TrimSpace(value[7:])
		}
	}
	return ""
}

// trustedUserID returns a pre-resolved user id when the config trusts it.
func trustedUserID(ctx context.Context, config *Config) string {
	if !config.TrustUserIDMetadata {
		return ""
	}
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	if values := md.Get(config.MetadataKeyUserID); len(values) > 0 {
		return values[0]
	}
	return ""
}
