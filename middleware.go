package doorman

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

type contextKey string

const loggedInUserKey contextKey = "loggedInUserId"

// UserID returns the authenticated user id stored in the context, or "".
func UserID(ctx context.Context) string {
	if v, ok := ctx.Value(loggedInUserKey).(string); ok {
		return v
	}
	return ""
}

// WithUserID returns a context carrying the authenticated user id.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, loggedInUserKey, userID)
}

// Middleware resolves the logged-in user for a request from, in order, the
// server-side session, the signed auth cookie, and a bearer token carried
// in the header, query or form body.
type Middleware struct {
	// Bearer resolves opaque access tokens. Optional.
	Bearer *BearerStrategy

	// AuthTokenCookieName names the signed auth token cookie.
	AuthTokenCookieName string

	// VerifyToken validates a signed auth token (jwt) and returns the
	// subject user id. Optional.
	VerifyToken func(tokenString string) (loggedInUserID string, err error)

	// SessionGetter reads a value from the server-side session. Optional.
	SessionGetter func(r *http.Request, param string) any

	// GetRedirURL, when set, makes EnsureUser redirect unauthenticated
	// requests there instead of returning 401.
	GetRedirURL      func(r *http.Request) string
	CallbackURLParam string
}

func (m *Middleware) EnsureReasonableDefaults() {
	if m.CallbackURLParam == "" {
		m.CallbackURLParam = "callbackURL"
	}
	if m.AuthTokenCookieName == "" {
		m.AuthTokenCookieName = "DoormanAuthToken"
	}
}

// ExtractUser resolves the requesting user, if any, and makes the id
// available to downstream handlers via UserID. It never blocks a request;
// use EnsureUser to require a login.
func (m *Middleware) ExtractUser(next http.Handler) http.Handler {
	m.EnsureReasonableDefaults()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, _ := m.resolveUser(r)
		next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
	})
}

// EnsureUser is ExtractUser plus enforcement: unauthenticated requests are
// redirected to the login URL when one is configured, otherwise 401. A
// resolution error (as opposed to a rejection) is a 500.
func (m *Middleware) EnsureUser(next http.Handler) http.Handler {
	m.EnsureReasonableDefaults()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := m.resolveUser(r)
		if err != nil {
			slog.Error("error resolving user", "err", err)
			http.Error(w, "server error", http.StatusInternalServerError)
			return
		}
		if userID == "" {
			redirURL := ""
			if m.GetRedirURL != nil {
				redirURL = m.GetRedirURL(r)
			}
			if redirURL != "" {
				encoded := strings.Replace(url.QueryEscape(r.URL.Path), "+", "%20", -1)
				http.Redirect(w, r, fmt.Sprintf("%s?%s=%s", redirURL, m.CallbackURLParam, encoded), http.StatusFound)
			} else {
				http.Error(w, "Login Required", http.StatusUnauthorized)
			}
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
	})
}

// resolveUser tries each identity carrier in order. A "" id with nil error
// means anonymous; a non-nil error means the answer is unknown.
func (m *Middleware) resolveUser(r *http.Request) (string, error) {
	if id := UserID(r.Context()); id != "" {
		return id, nil
	}

	if m.SessionGetter != nil {
		if v := m.SessionGetter(r, string(loggedInUserKey)); v != nil {
			if id, ok := v.(string); ok && id != "" {
				return id, nil
			}
		}
	}

	if m.VerifyToken != nil {
		for _, cookie := range r.Cookies() {
			if m.AuthTokenCookieName == "" || cookie.Name != m.AuthTokenCookieName {
				continue
			}
			if cookie.Value == "" {
				continue
			}
			id, err := m.VerifyToken(cookie.Value)
			if err == nil && id != "" {
				return id, nil
			}
			if err != nil {
				slog.Warn("error verifying auth token cookie", "err", err)
			}
		}
	}

	if m.Bearer != nil {
		if token := ExtractBearerToken(r); token != "" {
			outcome := m.Bearer.Validate(r.Context(), token)
			switch outcome.Status {
			case StatusAuthenticated:
				return outcome.User.ID, nil
			case StatusErrored:
				return "", outcome.Err
			}
		}
	}

	return "", nil
}
