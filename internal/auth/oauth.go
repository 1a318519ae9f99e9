package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// GoogleUserInfoURL is the OpenID Connect userinfo endpoint.
const GoogleUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"

// GoogleUser is the part of the userinfo response we use.
type GoogleUser struct {
	Subject       string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	GivenName     string `json:"given_name"`
	FamilyName    string `json:"family_name"`
}

// GoogleProvider runs the Authorization Code flow for admin sign-in.
// Leaders sign in with the Google account listed in ADMIN_EMAILS; everybody
// else uses the e-mail form.
type GoogleProvider struct {
	config      *oauth2.Config
	userInfoURL string
}

// NewGoogleProvider builds a provider. callbackURL must match the redirect URI
// registered in the Google Cloud console exactly, e.g.
// "http://localhost:8080/auth/google/callback".
func NewGoogleProvider(clientID, clientSecret, callbackURL string) *GoogleProvider {
	return &GoogleProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  callbackURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     google.Endpoint,
		},
		userInfoURL: GoogleUserInfoURL,
	}
}

// WithEndpoints points the provider at other token and userinfo URLs.
// Tests use it with an httptest server.
func (p *GoogleProvider) WithEndpoints(endpoint oauth2.Endpoint, userInfoURL string) *GoogleProvider {
	p.config.Endpoint = endpoint
	p.userInfoURL = userInfoURL
	return p
}

// AuthURL is where the browser is sent to start the flow. state is checked
// against a cookie on the way back to stop login CSRF.
func (p *GoogleProvider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange trades the callback code for the signed-in user's profile.
// Unverified e-mail addresses are rejected: the address is what grants admin.
func (p *GoogleProvider) Exchange(ctx context.Context, code string) (*GoogleUser, error) {
	tok, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("auth: exchanging OAuth code: %w", err)
	}

	resp, err := p.config.Client(ctx, tok).Get(p.userInfoURL)
	if err != nil {
		return nil, fmt.Errorf("auth: calling Google userinfo: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("auth: Google userinfo returned status %d", resp.StatusCode)
	}

	var u GoogleUser
	if err := json.NewDecoder(resp.Body).Decode(&u); err != nil {
		return nil, fmt.Errorf("auth: decoding Google userinfo: %w", err)
	}
	if u.Email == "" || !u.EmailVerified {
		return nil, fmt.Errorf("auth: Google account has no verified e-mail")
	}
	return &u, nil
}
