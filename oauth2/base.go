// Package oauth2 implements the identity-provider exchange: the redirect
// and callback handshake with an external OAuth2 provider, ending in a
// normalized Profile handed to the application's HandleUser callback.
package oauth2

import (
	"context"
	"net/http"

	"golang.org/x/oauth2"
)

// Profile is the normalized identity a provider asserted after a
// successful exchange. Raw keeps the provider's full payload for
// applications that need more than the minimal fields.
type Profile struct {
	Provider      string
	SubjectID     string
	Emails        []string // primary first; may be empty
	DisplayName   string
	EmailVerified bool
	Raw           map[string]any
}

// HandleUserFunc receives the exchanged token and normalized profile after
// a successful callback. The application decides what a profile means (login,
// linking, provisioning) and how to respond.
type HandleUserFunc func(provider string, token *oauth2.Token, profile *Profile, w http.ResponseWriter, r *http.Request)

// BaseOAuth2 carries the pieces shared by all providers: the oauth2
// config, the redirect handler and the callback plumbing.
type BaseOAuth2 struct {
	ClientId     string
	ClientSecret string
	CallbackURL  string
	HandleUser   HandleUserFunc

	// AuthFailureUrl receives the redirect when the exchange fails.
	AuthFailureUrl string

	// HTTPClient overrides the client used for userinfo fetches. Tests
	// point this at a local server.
	HTTPClient *http.Client

	oauthConfig oauth2.Config
	mux         *http.ServeMux
}

func NewBaseOAuth2(clientId string, clientSecret string, callbackUrl string, handleUser HandleUserFunc) *BaseOAuth2 {
	out := &BaseOAuth2{
		ClientId:       clientId,
		ClientSecret:   clientSecret,
		CallbackURL:    callbackUrl,
		HandleUser:     handleUser,
		AuthFailureUrl: "/",
		mux:            http.NewServeMux(),
		oauthConfig: oauth2.Config{
			ClientID:     clientId,
			ClientSecret: clientSecret,
			RedirectURL:  callbackUrl,
		},
	}
	out.mux.HandleFunc("/", OauthRedirector(&out.oauthConfig))
	return out
}

// ServeHTTP lets a provider be mounted under a path prefix; the redirect
// lives at the prefix root and the callback at /callback/.
func (b *BaseOAuth2) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mux.ServeHTTP(w, r)
}

func (b *BaseOAuth2) getHTTPClient() *http.Client {
	if b.HTTPClient != nil {
		return b.HTTPClient
	}
	return http.DefaultClient
}

// ExchangeContext returns the context used for the code exchange. With an
// injected client the exchange goes through it as well.
func (b *BaseOAuth2) ExchangeContext() context.Context {
	ctx := context.Background()
	if b.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, b.HTTPClient)
	}
	return ctx
}
