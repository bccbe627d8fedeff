package doorman_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nsarda/doorman"
	"github.com/nsarda/doorman/stores"
)

func captureUserID(got *string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*got = doorman.UserID(r.Context())
	})
}

func TestExtractUserFromBearerToken(t *testing.T) {
	store := stores.NewMemStore()
	user, _ := store.CreateUser(context.Background(), "alice@example.com", "", "Alice")
	store.PutToken(doorman.AccessToken{Value: "alice-token", UserID: user.ID})

	m := &doorman.Middleware{Bearer: &doorman.BearerStrategy{Tokens: store, Users: store}}

	var got string
	handler := m.ExtractUser(captureUserID(&got))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer alice-token")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if got != user.ID {
		t.Errorf("expected user %s in context, got %q", user.ID, got)
	}
}

func TestExtractUserAnonymousPassesThrough(t *testing.T) {
	m := &doorman.Middleware{}
	var got string
	rr := httptest.NewRecorder()
	m.ExtractUser(captureUserID(&got)).ServeHTTP(rr, httptest.NewRequest("GET", "/", nil))

	if got != "" {
		t.Errorf("expected anonymous request, got user %q", got)
	}
	if rr.Code != http.StatusOK {
		t.Errorf("ExtractUser must not block requests, got %d", rr.Code)
	}
}

func TestExtractUserFromAuthCookie(t *testing.T) {
	m := &doorman.Middleware{
		VerifyToken: func(tokenString string) (string, error) {
			if tokenString == "signed-token" {
				return "user-42", nil
			}
			return "", fmt.Errorf("invalid token")
		},
	}

	var got string
	req := httptest.NewRequest("GET", "/", nil)
	req.AddCookie(&http.Cookie{Name: "DoormanAuthToken", Value: "signed-token"})
	m.ExtractUser(captureUserID(&got)).ServeHTTP(httptest.NewRecorder(), req)

	if got != "user-42" {
		t.Errorf("expected user-42 from auth cookie, got %q", got)
	}
}

func TestEnsureUserRequiresLogin(t *testing.T) {
	m := &doorman.Middleware{}
	rr := httptest.NewRecorder()
	m.EnsureUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler must not run for anonymous request")
	})).ServeHTTP(rr, httptest.NewRequest("GET", "/private", nil))

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rr.Code)
	}
}

func TestEnsureUserRedirectsWhenConfigured(t *testing.T) {
	m := &doorman.Middleware{
		GetRedirURL: func(r *http.Request) string { return "/login" },
	}
	rr := httptest.NewRecorder()
	m.EnsureUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})).
		ServeHTTP(rr, httptest.NewRequest("GET", "/private/page", nil))

	if rr.Code != http.StatusFound {
		t.Fatalf("expected redirect, got %d", rr.Code)
	}
	location := rr.Header().Get("Location")
	if location != "/login?callbackURL=%2Fprivate%2Fpage" {
		t.Errorf("unexpected redirect target %q", location)
	}
}

func TestEnsureUserBearerErrorIsServerError(t *testing.T) {
	store := stores.NewMemStore()
	store.PutToken(doorman.AccessToken{Value: "orphan-token", UserID: "ghost"})

	m := &doorman.Middleware{Bearer: &doorman.BearerStrategy{Tokens: store, Users: store}}
	rr := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/private", nil)
	req.Header.Set("Authorization", "Bearer orphan-token")
	m.EnsureUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler must not run when resolution errored")
	})).ServeHTTP(rr, req)

	// A resolution failure is not the same as "not logged in".
	if rr.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rr.Code)
	}
}

func TestEnsureUserUnknownBearerIsUnauthorized(t *testing.T) {
	store := stores.NewMemStore()
	m := &doorman.Middleware{Bearer: &doorman.BearerStrategy{Tokens: store, Users: store}}

	rr := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/private", nil)
	req.Header.Set("Authorization", "Bearer unknown")
	m.EnsureUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})).ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 for unknown token, got %d", rr.Code)
	}
}
