package doorman_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/alexedwards/scs/v2"

	"github.com/nsarda/doorman"
	"github.com/nsarda/doorman/stores"
)

func newTestServer(t *testing.T) (*doorman.Server, *stores.MemStore, http.Handler) {
	t.Helper()
	registry, store := newTestRegistry(t)
	session := scs.New()
	server := doorman.NewServer(registry, session)
	server.JWTSecretKey = "test-secret-key-123456"
	return server, store, session.LoadAndSave(server.Handler())
}

func postLoginForm(handler http.Handler, email, password string) *httptest.ResponseRecorder {
	form := url.Values{}
	form.Set("email", email)
	form.Set("password", password)
	req := httptest.NewRequest("POST", "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func TestLoginEstablishesSession(t *testing.T) {
	server, store, handler := newTestServer(t)
	user, err := doorman.Register(context.Background(), store, "alice@example.com", "correct horse battery", "Alice")
	if err != nil {
		t.Fatalf("failed to register user: %v", err)
	}

	rr := postLoginForm(handler, "alice@example.com", "correct horse battery")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d. Body: %s", rr.Code, rr.Body.String())
	}

	var sessionCookie, authCookie *http.Cookie
	for _, cookie := range rr.Result().Cookies() {
		switch cookie.Name {
		case "loggedInUserId":
			sessionCookie = cookie
		case server.AuthTokenCookieName():
			authCookie = cookie
		}
	}
	if sessionCookie == nil || sessionCookie.Value != user.ID {
		t.Errorf("expected session cookie with user id %s, got %+v", user.ID, sessionCookie)
	}
	if authCookie == nil || authCookie.Value == "" {
		t.Fatalf("expected signed auth token cookie, got %+v", authCookie)
	}

	// The minted token verifies back to the same user.
	subject, err := server.VerifyAuthToken(authCookie.Value)
	if err != nil {
		t.Fatalf("failed to verify minted token: %v", err)
	}
	if subject != user.ID {
		t.Errorf("token subject %s, want %s", subject, user.ID)
	}
}

func TestLoginRejectionIsGeneric(t *testing.T) {
	_, store, handler := newTestServer(t)
	if _, err := doorman.Register(context.Background(), store, "alice@example.com", "correct horse battery", "Alice"); err != nil {
		t.Fatalf("failed to register user: %v", err)
	}

	for _, attempt := range [][2]string{
		{"alice@example.com", "wrong password"},
		{"nobody@example.com", "correct horse battery"},
	} {
		rr := postLoginForm(handler, attempt[0], attempt[1])
		if rr.Code != http.StatusUnauthorized {
			t.Errorf("login %v: expected 401, got %d", attempt, rr.Code)
		}
		if !strings.Contains(rr.Body.String(), "invalid credentials") {
			t.Errorf("login %v: body should be generic, got %s", attempt, rr.Body.String())
		}
	}
}

func TestLoginStoreFailureIsServerError(t *testing.T) {
	server, _, _ := newTestServer(t)
	server.Registry.Use(doorman.MechanismLocal, &doorman.LocalStrategy{Users: downUserStore{}})
	handler := server.Handler()

	rr := postLoginForm(handler, "alice@example.com", "pw")
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
	if strings.Contains(rr.Body.String(), "store down") {
		t.Error("response must not leak the internal cause")
	}
}

func TestLoginMissingFields(t *testing.T) {
	_, _, handler := newTestServer(t)
	rr := postLoginForm(handler, "", "")
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rr.Code)
	}
}

func TestLoginAcceptsJSONBody(t *testing.T) {
	_, store, handler := newTestServer(t)
	if _, err := doorman.Register(context.Background(), store, "alice@example.com", "correct horse battery", "Alice"); err != nil {
		t.Fatalf("failed to register user: %v", err)
	}

	req := httptest.NewRequest("POST", "/login",
		strings.NewReader(`{"email": "alice@example.com", "password": "correct horse battery"}`))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("expected 200, got %d. Body: %s", rr.Code, rr.Body.String())
	}
}

func TestLogoutClearsCookies(t *testing.T) {
	server, _, handler := newTestServer(t)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("GET", "/logout", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	cleared := map[string]bool{}
	for _, cookie := range rr.Result().Cookies() {
		if cookie.MaxAge < 0 {
			cleared[cookie.Name] = true
		}
	}
	if !cleared["loggedInUserId"] || !cleared[server.AuthTokenCookieName()] {
		t.Errorf("expected auth cookies cleared, got %v", cleared)
	}
}

func TestProviderRedirectMounted(t *testing.T) {
	_, _, handler := newTestServer(t)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("GET", "/github/", nil))

	if rr.Code != http.StatusFound {
		t.Fatalf("expected redirect to provider consent page, got %d", rr.Code)
	}
	location := rr.Header().Get("Location")
	if !strings.Contains(location, "github.com") || !strings.Contains(location, "client_id=client-id") {
		t.Errorf("unexpected consent redirect %q", location)
	}

	var stateCookie *http.Cookie
	for _, cookie := range rr.Result().Cookies() {
		if cookie.Name == "oauthstate" {
			stateCookie = cookie
		}
	}
	if stateCookie == nil || stateCookie.Value == "" {
		t.Error("expected oauthstate cookie on consent redirect")
	}
}
