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
	"golang.org/x/oauth2/github"
)

type GithubOAuth2 struct {
	*BaseOAuth2

	// UserInfoURL is where the user payload is fetched from. Defaults to
	// GitHub's API; tests point it at a local server.
	UserInfoURL string
}

func NewGithubOAuth2(clientId string, clientSecret string, callbackUrl string, handleUser HandleUserFunc) *GithubOAuth2 {
	if clientId == "" {
		clientId = strings.TrimSpace(os.Getenv("DOORMAN_GITHUB_CLIENT_ID"))
	}
	if clientSecret == "" {
		clientSecret = strings.TrimSpace(os.Getenv("DOORMAN_GITHUB_CLIENT_SECRET"))
	}
	if callbackUrl == "" {
		callbackUrl = strings.TrimSpace(os.Getenv("DOORMAN_GITHUB_CALLBACK_URL"))
	}

	out := GithubOAuth2{
		BaseOAuth2:  NewBaseOAuth2(clientId, clientSecret, callbackUrl, handleUser),
		UserInfoURL: "https://api.github.com/user",
	}
	out.oauthConfig.Endpoint = github.Endpoint
	out.oauthConfig.Scopes = []string{"read:user", "user:email"}
	out.mux.HandleFunc("/callback/", out.handleCallback)
	return &out
}

func (g *GithubOAuth2) handleCallback(w http.ResponseWriter, r *http.Request) {
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
		slog.Info("error fetching github profile", "err", err)
		http.Redirect(w, r, g.AuthFailureUrl, http.StatusTemporaryRedirect)
		return
	}
	g.HandleUser("github", token, profile, w, r)
}

func (g *GithubOAuth2) fetchProfile(token *oauth2.Token) (*Profile, error) {
	req, err := http.NewRequest("GET", g.UserInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)
	req.Header.Set("Accept", "application/json")

	response, err := g.getHTTPClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed getting user info from github: %w", err)
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
	return NormalizeGithubProfile(userInfo)
}

// NormalizeGithubProfile maps GitHub's /user payload onto a Profile.
// GitHub returns a numeric id; the public email may be absent when the
// user hides it, which is not an error.
func NormalizeGithubProfile(userInfo map[string]any) (*Profile, error) {
	subject := ""
	switch id := userInfo["id"].(type) {
	case float64:
		subject = fmt.Sprintf("%.0f", id)
	case string:
		subject = id
	}
	if subject == "" {
		return nil, fmt.Errorf("github profile has no id")
	}

	profile := &Profile{
		Provider:  "github",
		SubjectID: subject,
		Raw:       userInfo,
	}
	if name, ok := userInfo["name"].(string); ok && name != "" {
		profile.DisplayName = name
	} else if login, ok := userInfo["login"].(string); ok {
		profile.DisplayName = login
	}
	if email, ok := userInfo["email"].(string); ok && email != "" {
		profile.Emails = []string{email}
		// GitHub only exposes an email on /user once the account verified
		// it, so a present email is a verified one.
		profile.EmailVerified = true
	}
	return profile, nil
}
