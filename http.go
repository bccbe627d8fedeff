package doorman

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/mux"
	xoauth2 "golang.org/x/oauth2"

	providers "github.com/nsarda/doorman/oauth2"
)

// Server is the HTTP surface over a Registry: a login endpoint for the
// local mechanism, mounted provider exchanges, logout, and session
// establishment. Outcomes map to responses uniformly: rejections become a
// generic 401, errors become a generic 500 with the cause logged, and
// neither reveals internal detail to the caller.
type Server struct {
	Registry *Registry
	Session  *scs.SessionManager

	// Optional name used as a prefix for defaulted variable names.
	AppName string

	// CookieDomains lists every domain the auth cookies are set on.
	CookieDomains []string

	JwtIssuer    string
	JWTSecretKey string

	// SessionTimeoutInSeconds defaults to 1 day.
	SessionTimeoutInSeconds int

	router *mux.Router
}

// NewServer builds a server over an initialized registry.
func NewServer(registry *Registry, session *scs.SessionManager) *Server {
	return (&Server{Registry: registry, Session: session}).EnsureDefaults()
}

func (s *Server) EnsureDefaults() *Server {
	if s.AppName == "" {
		s.AppName = "Doorman"
	}
	if s.SessionTimeoutInSeconds <= 0 {
		s.SessionTimeoutInSeconds = 86400
	}
	if s.JwtIssuer == "" {
		s.JwtIssuer = fmt.Sprintf("%s-Issuer", s.AppName)
	}
	if s.JWTSecretKey == "" {
		s.JWTSecretKey = strings.TrimSpace(os.Getenv("DOORMAN_JWT_SECRET_KEY"))
	}
	return s
}

// AuthTokenCookieName is the cookie carrying the signed auth token.
func (s *Server) AuthTokenCookieName() string {
	return fmt.Sprintf("%sAuthToken", s.AppName)
}

// Handler returns the routed HTTP surface. The configured oauth provider
// is mounted under /{provider}/ with its redirect and callback routes.
func (s *Server) Handler() http.Handler {
	s.setupRoutes()
	return s.router
}

func (s *Server) setupRoutes() {
	if s.router != nil {
		return
	}
	s.EnsureDefaults()
	s.router = mux.NewRouter()
	s.router.HandleFunc("/login", s.handleLogin).Methods("POST")
	s.router.HandleFunc("/logout", s.handleLogout)

	cfg := s.Registry.Config()
	var exchange http.Handler
	switch cfg.Provider {
	case "google":
		exchange = providers.NewGoogleOAuth2(cfg.ProviderClientID, cfg.ProviderClientSecret, cfg.CallbackURL, s.SaveUserAndRedirect)
	default:
		exchange = providers.NewGithubOAuth2(cfg.ProviderClientID, cfg.ProviderClientSecret, cfg.CallbackURL, s.SaveUserAndRedirect)
	}
	s.Mount("/"+cfg.Provider, exchange)
}

// Mount attaches a provider exchange (or any handler) under a path prefix.
func (s *Server) Mount(prefix string, handler http.Handler) *Server {
	s.setupRoutes()
	prefix = strings.TrimSuffix(prefix, "/")
	s.router.PathPrefix(prefix + "/").Handler(http.StripPrefix(prefix, handler))
	return s
}

// handleLogin runs the local mechanism over a form or JSON body.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	email, password, err := parseLoginBody(r)
	if err != nil {
		http.Error(w, `{"error": "email and password required"}`, http.StatusBadRequest)
		return
	}

	outcome := s.Registry.Authenticate(r.Context(), MechanismLocal, Input{Email: email, Password: password})
	s.respond(outcome, w, r)
}

func parseLoginBody(r *http.Request) (email, password string, err error) {
	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "application/x-www-form-urlencoded") {
		if err = r.ParseForm(); err != nil {
			return "", "", fmt.Errorf("error parsing form")
		}
		email = r.FormValue("email")
		password = r.FormValue("password")
	} else {
		var data map[string]any
		if err = json.NewDecoder(r.Body).Decode(&data); err != nil || data == nil {
			return "", "", fmt.Errorf("invalid post body")
		}
		email, _ = data["email"].(string)
		password, _ = data["password"].(string)
	}
	if email == "" || password == "" {
		return "", "", fmt.Errorf("email and password required")
	}
	return email, password, nil
}

// respond maps an outcome to its HTTP shape and establishes the session on
// success.
func (s *Server) respond(outcome Outcome, w http.ResponseWriter, r *http.Request) {
	switch outcome.Status {
	case StatusAuthenticated:
		s.setLoggedInUser(outcome.User, w, r)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"user_id": outcome.User.ID,
		})
	case StatusRejected:
		http.Error(w, `{"error": "invalid credentials"}`, http.StatusUnauthorized)
	default:
		slog.Error("authentication error", "err", outcome.Err)
		http.Error(w, `{"error": "server error"}`, http.StatusInternalServerError)
	}
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.setLoggedInUser(nil, w, r)
	toUrl := r.URL.Query().Get("to")
	if toUrl == "" {
		fmt.Fprintf(w, "Logged Out")
	} else {
		http.Redirect(w, r, toUrl, http.StatusFound)
	}
}

// SaveUserAndRedirect is the HandleUserFunc given to provider exchanges.
// It runs the provider mechanism over the normalized profile, establishes
// the session and returns the browser to where it came from.
func (s *Server) SaveUserAndRedirect(provider string, token *xoauth2.Token, profile *providers.Profile, w http.ResponseWriter, r *http.Request) {
	outcome := s.Registry.Authenticate(r.Context(), provider, Input{Profile: &ProviderProfile{
		Provider:      profile.Provider,
		SubjectID:     profile.SubjectID,
		Emails:        profile.Emails,
		DisplayName:   profile.DisplayName,
		EmailVerified: profile.EmailVerified,
	}})
	if !outcome.Authenticated() {
		s.respond(outcome, w, r)
		return
	}
	s.setLoggedInUser(outcome.User, w, r)

	callbackURL := "/"
	if cookie, _ := r.Cookie("oauthCallbackURL"); cookie != nil && cookie.Value != "" {
		callbackURL = cookie.Value
	}
	if u, _ := url.Parse(callbackURL); u != nil && u.Scheme == "" {
		callbackURL = os.Getenv("DOORMAN_BASE_URL") + callbackURL
	}
	// one-shot cookie, clear it so later redirects do not reuse it
	http.SetCookie(w, &http.Cookie{
		Name:   "oauthCallbackURL",
		Value:  "",
		Path:   "/",
		MaxAge: -1, Expires: time.Now(),
	})
	http.Redirect(w, r, callbackURL, http.StatusFound)
}

// VerifyAuthToken validates a signed auth cookie minted by this server and
// returns its subject. Suitable as Middleware.VerifyToken.
func (s *Server) VerifyAuthToken(tokenString string) (loggedInUserID string, err error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		return []byte(s.JWTSecretKey), nil
	})
	if err != nil {
		return "", err
	}
	if !token.Valid {
		return "", fmt.Errorf("invalid token")
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || claims == nil {
		return "", fmt.Errorf("claims is not a map")
	}
	sub, err := claims.GetSubject()
	if err != nil {
		return "", err
	}
	if sub == "" {
		return "", fmt.Errorf("subject not found")
	}
	return sub, nil
}

// setLoggedInUser stores the session key and mints the signed auth cookie
// on every configured cookie domain. A nil user logs out: the session is
// cleared and the cookies expired.
func (s *Server) setLoggedInUser(user *User, w http.ResponseWriter, r *http.Request) {
	s.EnsureDefaults()
	domains := s.CookieDomains
	if slices.Index(domains, "") < 0 { // default domain
		domains = append(domains, "")
	}
	for _, cookieDomain := range domains {
		if user != nil {
			sessionKey := s.Registry.Codec().Serialize(user)
			if s.Session != nil {
				s.Session.Put(r.Context(), string(loggedInUserKey), sessionKey)
			}
			http.SetCookie(w, &http.Cookie{
				Name:    string(loggedInUserKey),
				Value:   sessionKey,
				Domain:  cookieDomain,
				Path:    "/",
				Expires: time.Now().Add(time.Second * time.Duration(s.SessionTimeoutInSeconds)),
				MaxAge:  s.SessionTimeoutInSeconds,
			})

			token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
				"sub": sessionKey,
				"iss": s.JwtIssuer,
				"exp": time.Now().Add(time.Second * time.Duration(s.SessionTimeoutInSeconds)).Unix(),
				"iat": time.Now().Unix(),
			})
			tokenString, err := token.SignedString([]byte(s.JWTSecretKey))
			if err != nil {
				slog.Warn("error signing token", "err", err)
			}
			if s.Session != nil {
				s.Session.Put(r.Context(), s.AuthTokenCookieName(), tokenString)
			}
			http.SetCookie(w, &http.Cookie{
				Name:    s.AuthTokenCookieName(),
				Value:   tokenString,
				Domain:  cookieDomain,
				Path:    "/",
				Expires: time.Now().Add(time.Second * time.Duration(s.SessionTimeoutInSeconds)),
				MaxAge:  s.SessionTimeoutInSeconds,
			})
		} else {
			if s.Session != nil {
				if err := s.Session.Clear(r.Context()); err != nil {
					slog.Warn("error clearing session", "err", err)
				}
			}
			http.SetCookie(w, &http.Cookie{
				Name:    string(loggedInUserKey),
				Domain:  cookieDomain,
				Path:    "/",
				MaxAge:  -1,
				Expires: time.Now(),
			})
			http.SetCookie(w, &http.Cookie{
				Name:    s.AuthTokenCookieName(),
				Domain:  cookieDomain,
				Path:    "/",
				MaxAge:  -1,
				Expires: time.Now(),
			})
		}
	}
}
