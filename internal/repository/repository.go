// Package repository declares the storage interfaces the services depend on.
// internal/repository/sqlite is the only implementation; services and tests
// only ever see these interfaces.
package repository

import (
	"context"

	"github.com/vibeteen/vibe-teen/internal/model"
)

type ListOptions struct {
	Limit  int
	Offset int
}

// ActionRepository stores mural actions. Actions are append-only: there is
// no Update.
type ActionRepository interface {
	Create(ctx context.Context, action *model.Action) error
	GetByID(ctx context.Context, id string) (*model.Action, error)
	// List returns actions newest first.
	List(ctx context.Context, opts ListOptions) ([]model.Action, error)
	Delete(ctx context.Context, id string) error
}

// MemberRepository stores member profiles.
type MemberRepository interface {
	Create(ctx context.Context, member *model.Member) error
	// Upsert inserts or refreshes a member keyed by email.
	Upsert(ctx context.Context, member *model.Member) error
	GetByID(ctx context.Context, id string) (*model.Member, error)
	GetByEmail(ctx context.Context, email string) (*model.Member, error)
	List(ctx context.Context) ([]model.Member, error)
	UpdateStatus(ctx context.Context, id string, status model.Status) error
	UpdateRole(ctx context.Context, id string, role model.Role) error
	Delete(ctx context.Context, id string) error
}

// SettingsRepository is a small key/value table for server-side state that
// outlives a restart (the mission of the day, for instance).
type SettingsRepository interface {
	GetSetting(ctx context.Context, key string) (string, bool, error)
	SetSetting(ctx context.Context, key, value string) error
}
