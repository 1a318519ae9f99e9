package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vibeteen/vibe-teen/internal/apperror"
	"github.com/vibeteen/vibe-teen/internal/auth"
	"github.com/vibeteen/vibe-teen/internal/model"
	"github.com/vibeteen/vibe-teen/internal/service"
)

// MemberService is what the member and auth handlers need from
// service.MemberService.
type MemberService interface {
	Signup(ctx context.Context, in service.SignupInput) (*service.AuthResult, error)
	Login(ctx context.Context, email, pin string) (*service.AuthResult, error)
	LoginWithGoogle(ctx context.Context, gu *auth.GoogleUser) (*service.AuthResult, error)
	Me(ctx context.Context, id string) (*model.Member, error)
	List(ctx context.Context) ([]model.Member, error)
	UpdateStatus(ctx context.Context, id, status string) error
	Delete(ctx context.Context, actorID, id string) error
}

// MemberHandler serves signup, login and the admin member screens.
type MemberHandler struct {
	members MemberService
	logger  *slog.Logger
}

// NewMemberHandler creates a MemberHandler.
func NewMemberHandler(members MemberService, logger *slog.Logger) *MemberHandler {
	return &MemberHandler{members: members, logger: logger}
}

// HandleSignup creates a member and starts a session.
//
// HTTP: POST /api/members/signup
// REQUEST BODY: {"firstName","lastName","email","avatarColor","pin"}
//
// The token is set as a cookie for browsers and returned in the body for the
// CLI, which keeps it in its identity file.
func (h *MemberHandler) HandleSignup(w http.ResponseWriter, r *http.Request) {
	var in service.SignupInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, err)
		return
	}

	res, err := h.members.Signup(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}

	setSessionCookie(w, res.Token)
	writeJSON(w, http.StatusCreated, res)
}

type loginRequest struct {
	Email string `json:"email"`
	PIN   string `json:"pin"`
}

// HandleLogin signs an existing member in by email (and PIN, if one is set).
//
// HTTP: POST /api/members/login
func (h *MemberHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	res, err := h.members.Login(r.Context(), req.Email, req.PIN)
	if err != nil {
		h.logger.Info("login rejected", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	setSessionCookie(w, res.Token)
	writeJSON(w, http.StatusOK, res)
}

// HandleLogout clears the session cookie.
//
// HTTP: POST /api/members/logout
//
// Sessions are stateless JWTs, so logging out only drops the cookie. The
// token itself stays valid until it expires.
func (h *MemberHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	clearSessionCookie(w)
	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// HandleMe returns the signed-in member.
//
// HTTP: GET /api/me
// Auth: Required
func (h *MemberHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.MemberIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("valid authentication required"))
		return
	}

	m, err := h.members.Me(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// HandleList returns every member, oldest first.
//
// HTTP: GET /api/admin/members
// Auth: Admin
func (h *MemberHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	members, err := h.members.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if members == nil {
		members = []model.Member{}
	}
	writeJSON(w, http.StatusOK, members)
}

type statusRequest struct {
	Status string `json:"status"`
}

// HandleUpdateStatus sets a member's ministry status (Líder, Membro,
// Visitante).
//
// HTTP: PUT /api/admin/members/{id}/status
// Auth: Admin
func (h *MemberHandler) HandleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.members.UpdateStatus(r.Context(), id, req.Status); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleDelete removes a member. Admins cannot delete themselves.
//
// HTTP: DELETE /api/admin/members/{id}
// Auth: Admin
func (h *MemberHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	actorID, _ := auth.MemberIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	if err := h.members.Delete(r.Context(), actorID, id); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// setSessionCookie stores the JWT in an HttpOnly cookie. HttpOnly keeps it
// away from page scripts; SameSite=Lax keeps it off cross-site POSTs.
func setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(auth.TokenTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
