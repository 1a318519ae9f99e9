package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

// fakeGoogle serves a token endpoint and a userinfo endpoint.
func fakeGoogle(t *testing.T, user GoogleUser) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		if r.Form.Get("code") != "good-code" {
			http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "at-123",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer at-123" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(user)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestGoogleProvider(srv *httptest.Server) *GoogleProvider {
	return NewGoogleProvider("client", "secret", "http://localhost/cb").WithEndpoints(
		oauth2.Endpoint{TokenURL: srv.URL + "/token", AuthStyle: oauth2.AuthStyleInParams},
		srv.URL+"/userinfo",
	)
}

func TestGoogleAuthURL_CarriesState(t *testing.T) {
	p := NewGoogleProvider("client-id", "secret", "http://localhost:8080/auth/google/callback")

	u, err := url.Parse(p.AuthURL("state-xyz"))
	require.NoError(t, err)

	q := u.Query()
	assert.Equal(t, "state-xyz", q.Get("state"))
	assert.Equal(t, "client-id", q.Get("client_id"))
	assert.Equal(t, "accounts.google.com", u.Host)
}

func TestGoogleExchange(t *testing.T) {
	srv := fakeGoogle(t, GoogleUser{Subject: "g1", Email: "lider@igreja.org", EmailVerified: true, GivenName: "Paulo"})
	p := newTestGoogleProvider(srv)

	u, err := p.Exchange(context.Background(), "good-code")
	require.NoError(t, err)
	assert.Equal(t, "lider@igreja.org", u.Email)
	assert.Equal(t, "Paulo", u.GivenName)

	_, err = p.Exchange(context.Background(), "bad-code")
	assert.Error(t, err)
}

func TestGoogleExchange_RejectsUnverifiedEmail(t *testing.T) {
	srv := fakeGoogle(t, GoogleUser{Subject: "g2", Email: "x@example.com", EmailVerified: false})
	p := newTestGoogleProvider(srv)

	_, err := p.Exchange(context.Background(), "good-code")
	assert.ErrorContains(t, err, "verified")
}
