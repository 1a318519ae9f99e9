package model

import (
	"strings"
	"time"
)

// Status is a member's level inside the youth group.
type Status string

const (
	StatusLeader  Status = "Líder"
	StatusMember  Status = "Membro"
	StatusVisitor Status = "Visitante"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusLeader, StatusMember, StatusVisitor:
		return true
	}
	return false
}

// Role separates regular members from admins (who can delete actions and
// manage members).
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// AvatarColors is the fixed palette a member picks from at signup.
var AvatarColors = []string{
	"#0084FF", // Azul
	"#00F576", // Verde
	"#FF5E00", // Laranja
	"#A855F7", // Roxo
	"#EC4899", // Rosa
	"#f9f506", // Amarelo
}

// ValidAvatarColor reports whether hex is part of the palette (case-insensitive).
func ValidAvatarColor(hex string) bool {
	for _, c := range AvatarColors {
		if strings.EqualFold(c, hex) {
			return true
		}
	}
	return false
}

// Member represents a registered member of the group.
//
// WHY EMAIL AS THE NATURAL KEY?
// Members sign up and log back in with their e-mail address, so the address is
// stored lowercased and UNIQUE. We still generate our own internal string ID
// (xid) and use THAT as the author reference on actions, so two members that
// share a first name never collapse into one statistic.
//
// WHY PINHash string (not *string)?
// The PIN is optional. An empty hash means "no PIN set", which is easier to
// work with than a nullable pointer. It is never serialised to JSON.
type Member struct {
	ID          string    `json:"id"          db:"id"`
	FirstName   string    `json:"firstName"   db:"first_name"`
	LastName    string    `json:"lastName"    db:"last_name"`
	Email       string    `json:"email"       db:"email"`
	AvatarColor string    `json:"avatarColor" db:"avatar_color"`
	Status      Status    `json:"status"      db:"status"`
	Role        Role      `json:"role"        db:"role"`
	PINHash     string    `json:"-"           db:"pin_hash"`
	CreatedAt   time.Time `json:"createdAt"   db:"created_at"`
	UpdatedAt   time.Time `json:"updatedAt"   db:"updated_at"`
}

// IsAdmin reports whether the member can use the admin routes.
func (m *Member) IsAdmin() bool {
	return m != nil && m.Role == RoleAdmin
}

// DisplayName is the name shown on mural cards.
func (m *Member) DisplayName() string {
	return m.FirstName
}
