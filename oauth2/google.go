package oauth2

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

type GoogleOAuth2 struct {
	*BaseOAuth2

	// UserInfoURL defaults to Google's userinfo endpoint.
	UserInfoURL string
}

func NewGoogleOAuth2(clientId string, clientSecret string, callbackUrl string, handleUser HandleUserFunc) *GoogleOAuth2 {
	if clientId == "" {
		clientId = strings.TrimSpace(os.Getenv("DOORMAN_GOOGLE_CLIENT_ID"))
	}
	if clientSecret == "" {
		clientSecret = strings.TrimSpace(os.Getenv("DOORMAN_GOOGLE_CLIENT_SECRET"))
	}
	if callbackUrl == "" {
		callbackUrl = strings.TrimSpace(os.Getenv("DOORMAN_GOOGLE_CALLBACK_URL"))
	}

	out := GoogleOAuth2{
		BaseOAuth2:  NewBaseOAuth2(clientId, clientSecret, callbackUrl, handleUser),
		UserInfoURL: "https://www.googleapis.com/oauth2/v2/userinfo",
	}
	out.oauthConfig.Endpoint = google.Endpoint
	out.oauthConfig.Scopes = []string{
		"https://www.googleapis.com/auth/userinfo.email",
		"https://www.googleapis.com/auth/userinfo.profile",
	}
	out.mux.HandleFunc("/callback/", out.handleCallback)
	return &out
}

func (g *GoogleOAuth2) handleCallback(w http.ResponseWriter, r *http.Request) {
	if !checkState(w, r) {
		return
	}

	token, err := g.oauthConfig.Exchange(g.ExchangeContext(), r.FormValue("code"))
	if err != nil {
		slog.Info("invalid code exchange", "err", err)
		http.Redirect(w, r, g.AuthFailureUrl, http.StatusTemporaryRedirect)
		return
	}

	profile, err := g.fetchProfile(token)
	if err != nil {
		slog.Info("error fetching google profile", "err", err)
		http.Redirect(w, r, g.AuthFailureUrl, http.StatusTemporaryRedirect)
		return
	}
	g.HandleUser("google", token, profile, w, r)
}

func (g *GoogleOAuth2) fetchProfile(token *oauth2.Token) (*Profile, error) {
	req, err := http.NewRequest("GET", g.UserInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)

	response, err := g.getHTTPClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed getting user info from google: %w", err)
	}
	defer response.Body.Close()

	contents, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, fmt.Errorf("failed reading response: %w", err)
	}

	var userInfo map[string]any
	if err := json.Unmarshal(contents, &userInfo); err != nil {
		return nil, fmt.Errorf("failed to parse user info: %w", err)
	}
	return NormalizeGoogleProfile(userInfo)
}

// NormalizeGoogleProfile maps Google's userinfo payload onto a Profile.
func NormalizeGoogleProfile(userInfo map[string]any) (*Profile, error) {
	subject, _ := userInfo["id"].(string)
	if subject == "" {
		subject, _ = userInfo["sub"].(string)
	}
	if subject == "" {
		return nil, fmt.Errorf("google profile has no subject id")
	}

	profile := &Profile{
		Provider:  "google",
		SubjectID: subject,
		Raw:       userInfo,
	}
	if name, ok := userInfo["name"].(string); ok {
		profile.DisplayName = name
	}
	if email, ok := userInfo["email"].(string); ok && email != "" {
		profile.Emails = []string{email}
		if verified, ok := userInfo["verified_email"].(bool); ok {
			profile.EmailVerified = verified
		} else if verified, ok := userInfo["email_verified"].(bool); ok {
			profile.EmailVerified = verified
		}
	}
	return profile, nil
}
