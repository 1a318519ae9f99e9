package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/rs/xid"

	"github.com/vibeteen/vibe-teen/internal/apperror"
	"github.com/vibeteen/vibe-teen/internal/auth"
)

const stateCookie = "oauth_state"

// GoogleExchanger is the OAuth half of auth.GoogleProvider.
type GoogleExchanger interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (*auth.GoogleUser, error)
}

// GoogleAuthHandler runs the admin sign-in through Google.
//
//   - HandleLogin    → redirect to Google's consent page
//   - HandleCallback → check state, exchange the code, sign the admin in
//
// Only emails on the admin allow-list get through; everybody else is sent
// back to the mural with ?auth=forbidden.
type GoogleAuthHandler struct {
	google  GoogleExchanger
	members MemberService
	logger  *slog.Logger
}

// NewGoogleAuthHandler creates a GoogleAuthHandler.
func NewGoogleAuthHandler(google GoogleExchanger, members MemberService, logger *slog.Logger) *GoogleAuthHandler {
	return &GoogleAuthHandler{google: google, members: members, logger: logger}
}

// HandleLogin redirects to Google.
//
// HTTP: GET /auth/google/login
//
// A random state goes into a short-lived HttpOnly cookie and into the
// redirect. The callback only proceeds when both match.
func (h *GoogleAuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	state := xid.New().String()

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   600,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.google.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleCallback completes the flow.
//
// HTTP: GET /auth/google/callback?code=xxx&state=yyy
func (h *GoogleAuthHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(stateCookie)
	if err != nil || cookie.Value == "" || r.URL.Query().Get("state") != cookie.Value {
		h.logger.Warn("google callback: state mismatch")
		http.Error(w, "invalid OAuth state", http.StatusBadRequest)
		return
	}

	// single use
	http.SetCookie(w, &http.Cookie{Name: stateCookie, Value: "", Path: "/", MaxAge: -1})

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.logger.Info("google callback: user denied authorization", slog.String("error", errParam))
		http.Redirect(w, r, "/?auth=denied", http.StatusSeeOther)
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(w, "missing OAuth code", http.StatusBadRequest)
		return
	}

	gu, err := h.google.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("google callback: exchange failed", slog.String("error", err.Error()))
		http.Error(w, "authentication failed", http.StatusBadGateway)
		return
	}

	res, err := h.members.LoginWithGoogle(r.Context(), gu)
	if errors.Is(err, apperror.ErrForbidden) {
		h.logger.Warn("google callback: email not on the admin list", slog.String("email", gu.Email))
		http.Redirect(w, r, "/?auth=forbidden", http.StatusSeeOther)
		return
	}
	if err != nil {
		h.logger.Error("google callback: sign-in failed", slog.String("error", err.Error()))
		http.Error(w, "authentication failed", http.StatusInternalServerError)
		return
	}

	h.logger.Info("admin signed in with google", slog.String("memberID", res.Member.ID))
	setSessionCookie(w, res.Token)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
