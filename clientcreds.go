package doorman

import (
	"context"
	"errors"
)

// ErrNotImplemented is the fixed failure of the client-credentials stub.
var ErrNotImplemented = errors.New("client credential verification not implemented")

// ClientCredentialsStrategy is a deliberate fail-closed placeholder. No
// client id/secret pair is ever accepted until a real verifier replaces it.
type ClientCredentialsStrategy struct{}

// Verify always fails with ErrNotImplemented.
func (ClientCredentialsStrategy) Verify(ctx context.Context, clientID, clientSecret string) Outcome {
	return Fail(ErrNotImplemented)
}

// Authenticate implements Strategy.
func (s ClientCredentialsStrategy) Authenticate(ctx context.Context, in Input) Outcome {
	return s.Verify(ctx, in.ClientID, in.ClientSecret)
}
