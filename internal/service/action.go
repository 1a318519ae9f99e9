// Package service holds the business rules between the HTTP handlers and the
// stores:
//
//	Handler (HTTP) → Service (rules) → feedsource.Source / repository (data)
//
// Services take plain values, never *http.Request, so the CLI-facing live
// channel and the JSON API share the same validation.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/vibeteen/vibe-teen/internal/apperror"
	"github.com/vibeteen/vibe-teen/internal/category"
	"github.com/vibeteen/vibe-teen/internal/feedsource"
	"github.com/vibeteen/vibe-teen/internal/model"
	"github.com/vibeteen/vibe-teen/internal/repository"
)

// MaxBeneficiaryLength bounds the "who was blessed?" field, in characters.
const MaxBeneficiaryLength = 60

// ActionService registers and removes mural actions.
//
// It never returns the created action: the caller sees its entry when the
// next snapshot arrives, like everybody else.
type ActionService struct {
	source  feedsource.Source
	members repository.MemberRepository
	logger  *slog.Logger
}

// NewActionService wires the service.
func NewActionService(source feedsource.Source, members repository.MemberRepository, logger *slog.Logger) *ActionService {
	return &ActionService{source: source, members: members, logger: logger}
}

// Register records that the member did something for someone.
//
// The category is parsed here (wire values and Portuguese aliases are both
// accepted); an unknown one is a validation error. A blank beneficiary
// becomes model.DefaultBeneficiary. The author name and colour come from the
// member record, not from the request.
func (s *ActionService) Register(ctx context.Context, memberID, beneficiary, rawCategory string) error {
	c, err := category.Parse(rawCategory)
	if err != nil {
		return err
	}

	beneficiary = strings.TrimSpace(beneficiary)
	if beneficiary == "" {
		beneficiary = model.DefaultBeneficiary
	}
	if utf8.RuneCountInString(beneficiary) > MaxBeneficiaryLength {
		return apperror.ValidationFailed("beneficiaryName",
			fmt.Sprintf("name must be %d characters or less", MaxBeneficiaryLength))
	}

	if memberID == "" {
		return apperror.Unauthorized("sign in to register an action")
	}
	member, err := s.members.GetByID(ctx, memberID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return apperror.Unauthorized("your session refers to a member that no longer exists")
		}
		return apperror.Unavailable("could not load your profile, try again", err)
	}

	err = s.source.Create(ctx, model.NewAction{
		AuthorName:      member.DisplayName(),
		AuthorID:        member.ID,
		BeneficiaryName: beneficiary,
		Category:        c,
		AuthorColor:     member.AvatarColor,
	})
	if err != nil {
		s.logger.Error("failed to register action",
			slog.String("member", member.ID),
			slog.String("category", string(c)),
			slog.String("error", err.Error()),
		)
		if errors.Is(err, apperror.ErrValidation) {
			return err
		}
		return apperror.Unavailable("could not register the action, try again", err)
	}

	return nil
}

// Delete removes an action. The route is admin-only.
func (s *ActionService) Delete(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return apperror.ValidationFailed("id", "action ID is required")
	}

	if err := s.source.Delete(ctx, id); err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return err
		}
		return apperror.Unavailable("could not delete the action, try again", err)
	}
	return nil
}
