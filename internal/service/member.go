package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"unicode/utf8"

	"github.com/vibeteen/vibe-teen/internal/apperror"
	"github.com/vibeteen/vibe-teen/internal/auth"
	"github.com/vibeteen/vibe-teen/internal/model"
	"github.com/vibeteen/vibe-teen/internal/repository"
)

const MaxNameLength = 40

// MemberService handles signup, login and member administration.
//
//	MemberHandler (HTTP) → MemberService → MemberRepository (DB)
//	                                     ↘ TokenService (JWT), PINService (bcrypt)
type MemberService struct {
	members     repository.MemberRepository
	tokens      *auth.TokenService
	pins        *auth.PINService
	adminEmails map[string]bool
	logger      *slog.Logger
}

// NewMemberService wires the service. adminEmails are promoted to admin the
// next time they sign up or log in.
func NewMemberService(
	members repository.MemberRepository,
	tokens *auth.TokenService,
	pins *auth.PINService,
	adminEmails []string,
	logger *slog.Logger,
) *MemberService {
	admins := make(map[string]bool, len(adminEmails))
	for _, e := range adminEmails {
		if e = strings.ToLower(strings.TrimSpace(e)); e != "" {
			admins[e] = true
		}
	}
	return &MemberService{
		members:     members,
		tokens:      tokens,
		pins:        pins,
		adminEmails: admins,
		logger:      logger,
	}
}

// SignupInput is the signup form.
type SignupInput struct {
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	Email       string `json:"email"`
	AvatarColor string `json:"avatarColor"`
	PIN         string `json:"pin"`
}

// AuthResult bundles the member and the issued session token so the handler
// can set the cookie and answer in one step.
type AuthResult struct {
	Member *model.Member `json:"member"`
	Token  string        `json:"token"`
}

// IsAdminEmail reports whether email is on the admin allow-list.
func (s *MemberService) IsAdminEmail(email string) bool {
	return s.adminEmails[strings.ToLower(strings.TrimSpace(email))]
}

// Signup validates the form, stores the member and starts a session.
func (s *MemberService) Signup(ctx context.Context, in SignupInput) (*AuthResult, error) {
	first := strings.TrimSpace(in.FirstName)
	last := strings.TrimSpace(in.LastName)
	if first == "" {
		return nil, apperror.ValidationFailed("firstName", "first name is required")
	}
	if utf8.RuneCountInString(first) > MaxNameLength || utf8.RuneCountInString(last) > MaxNameLength {
		return nil, apperror.ValidationFailed("firstName",
			fmt.Sprintf("names must be %d characters or less", MaxNameLength))
	}

	email, err := normalizeEmail(in.Email)
	if err != nil {
		return nil, err
	}

	color := in.AvatarColor
	if color == "" {
		color = model.AvatarColors[0]
	}
	if !model.ValidAvatarColor(color) {
		return nil, apperror.ValidationFailed("avatarColor", "pick a colour from the palette")
	}

	var pinHash string
	if in.PIN != "" {
		pinHash, err = s.pins.Hash(in.PIN)
		if err != nil {
			return nil, err
		}
	}

	m := &model.Member{
		FirstName:   first,
		LastName:    last,
		Email:       email,
		AvatarColor: color,
		Status:      model.StatusVisitor,
		Role:        model.RoleUser,
		PINHash:     pinHash,
	}
	if s.IsAdminEmail(email) {
		m.Role = model.RoleAdmin
	}

	if err := s.members.Create(ctx, m); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return nil, apperror.Conflict("member", email)
		}
		return nil, fmt.Errorf("service/member: creating member: %w", err)
	}

	s.logger.Info("member signed up",
		slog.String("memberID", m.ID),
		slog.String("role", string(m.Role)),
	)
	return s.issue(m)
}

// Login looks a member up by e-mail. When the member set a PIN, the PIN must
// match; otherwise the e-mail alone is enough.
func (s *MemberService) Login(ctx context.Context, email, pin string) (*AuthResult, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}

	m, err := s.members.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	if m.PINHash != "" {
		if pin == "" {
			return nil, apperror.Unauthorized("this account is protected by a PIN")
		}
		if err := s.pins.Verify(m.PINHash, pin); err != nil {
			if errors.Is(err, auth.ErrWrongPIN) {
				s.logger.Warn("wrong PIN", slog.String("memberID", m.ID))
				return nil, apperror.Unauthorized("wrong PIN")
			}
			return nil, fmt.Errorf("service/member: verifying PIN: %w", err)
		}
	}

	if err := s.promoteIfListed(ctx, m); err != nil {
		return nil, err
	}

	s.logger.Info("member logged in", slog.String("memberID", m.ID))
	return s.issue(m)
}

// LoginWithGoogle is the admin sign-in. Only allow-listed e-mails get in; the
// member row is created on first use.
func (s *MemberService) LoginWithGoogle(ctx context.Context, gu *auth.GoogleUser) (*AuthResult, error) {
	if gu == nil {
		return nil, fmt.Errorf("service/member: Google user must not be nil")
	}
	// Members are keyed by the lowercased address; Google may return any case.
	email, err := normalizeEmail(gu.Email)
	if err != nil {
		return nil, err
	}
	if !s.IsAdminEmail(email) {
		s.logger.Warn("Google sign-in refused", slog.String("email", email))
		return nil, apperror.Forbidden("this Google account is not an administrator")
	}

	first := gu.GivenName
	if first == "" {
		first = strings.SplitN(email, "@", 2)[0]
	}
	m := &model.Member{
		FirstName:   first,
		LastName:    gu.FamilyName,
		Email:       email,
		AvatarColor: model.AvatarColors[0],
		Status:      model.StatusLeader,
		Role:        model.RoleAdmin,
	}
	if err := s.members.Upsert(ctx, m); err != nil {
		return nil, fmt.Errorf("service/member: upserting admin: %w", err)
	}
	if err := s.promoteIfListed(ctx, m); err != nil {
		return nil, err
	}

	s.logger.Info("admin signed in with Google", slog.String("memberID", m.ID))
	return s.issue(m)
}

// Me returns the member behind a session.
func (s *MemberService) Me(ctx context.Context, id string) (*model.Member, error) {
	if id == "" {
		return nil, apperror.Unauthorized("not signed in")
	}
	return s.members.GetByID(ctx, id)
}

// List returns every member for the admin panel.
func (s *MemberService) List(ctx context.Context) ([]model.Member, error) {
	members, err := s.members.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("service/member: listing members: %w", err)
	}
	return members, nil
}

// UpdateStatus changes a member's group status (Líder, Membro, Visitante).
func (s *MemberService) UpdateStatus(ctx context.Context, id, status string) error {
	st := model.Status(strings.TrimSpace(status))
	if !st.Valid() {
		return apperror.ValidationFailed("status", fmt.Sprintf("unknown status %q", status))
	}
	if err := s.members.UpdateStatus(ctx, id, st); err != nil {
		return err
	}
	s.logger.Info("member status updated", slog.String("memberID", id), slog.String("status", string(st)))
	return nil
}

// Delete removes a member. Admins cannot delete themselves, so the group is
// never left without one by accident.
func (s *MemberService) Delete(ctx context.Context, actorID, id string) error {
	if actorID == id {
		return apperror.ValidationFailed("id", "you cannot delete your own account here")
	}
	if err := s.members.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("member deleted", slog.String("memberID", id), slog.String("by", actorID))
	return nil
}

func (s *MemberService) promoteIfListed(ctx context.Context, m *model.Member) error {
	if m.Role == model.RoleAdmin || !s.IsAdminEmail(m.Email) {
		return nil
	}
	if err := s.members.UpdateRole(ctx, m.ID, model.RoleAdmin); err != nil {
		return fmt.Errorf("service/member: promoting %s: %w", m.ID, err)
	}
	m.Role = model.RoleAdmin
	s.logger.Info("member promoted to admin", slog.String("memberID", m.ID))
	return nil
}

func (s *MemberService) issue(m *model.Member) (*AuthResult, error) {
	token, err := s.tokens.Generate(m.ID, m.Role)
	if err != nil {
		return nil, fmt.Errorf("service/member: generating token for %s: %w", m.ID, err)
	}
	return &AuthResult{Member: m, Token: token}, nil
}

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", apperror.ValidationFailed("email", "e-mail is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", apperror.ValidationFailed("email", "invalid e-mail address")
	}
	return email, nil
}
