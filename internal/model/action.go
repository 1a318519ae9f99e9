// Package model holds the plain data types shared by every layer: actions on
// the mural and the members who register them.
package model

import "time"

// Category is the kind of act a member logged on the mural.
//
// CLOSED SET:
// There are exactly three categories. Anything else reaching the display table
// is a bug, so parsing (see internal/category) happens at the boundary and the
// rest of the code can trust the value.
type Category string

const (
	CategoryPrayed Category = "prayed" // "Orei"
	CategoryCared  Category = "cared"  // "Cuidei"
	CategoryShared Category = "shared" // "Compartilhei"
)

// Categories lists every category in display order.
func Categories() []Category {
	return []Category{CategoryPrayed, CategoryCared, CategoryShared}
}

// Valid reports whether c is one of the three known categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryPrayed, CategoryCared, CategoryShared:
		return true
	}
	return false
}

// DefaultBeneficiary is used when the member leaves the "who was blessed?"
// field empty.
const DefaultBeneficiary = "Alguém especial"

// TimestampLayout is how CreatedAt is encoded: RFC 3339 in UTC with all nine
// fractional digits kept. The fixed width is what makes text order match time
// order; time.RFC3339Nano trims trailing zeros and does not.
const TimestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

// FormatTimestamp encodes t for CreatedAt.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// Action is one logged act of kindness (a "cause action" on the mural).
//
// Actions are append-only: created once by a member, never updated, and
// optionally deleted by an admin.
//
// CreatedAt stays a string because the feed only compares it; CreatedTime
// parses it for the "today" counts.
type Action struct {
	ID              string   `json:"id"`
	AuthorName      string   `json:"authorName"`
	AuthorID        string   `json:"authorId,omitempty"` // stable member ID; empty on legacy rows
	BeneficiaryName string   `json:"beneficiaryName"`
	Category        Category `json:"category"`
	CreatedAt       string   `json:"createdAt"`
	AuthorColor     string   `json:"authorColor,omitempty"` // snapshot of the author's avatar colour
}

// CreatedTime parses CreatedAt. It returns the zero time if the value is
// missing or malformed.
func (a Action) CreatedTime() time.Time {
	// RFC3339 parsing accepts any number of fractional digits, so rows written
	// before the fixed-width layout still parse.
	t, err := time.Parse(time.RFC3339, a.CreatedAt)
	if err != nil {
		return time.Time{}
	}
	return t
}

// NewAction is what a member submits from the registration form. The store
// assigns ID and CreatedAt.
type NewAction struct {
	AuthorName      string
	AuthorID        string
	BeneficiaryName string
	Category        Category
	AuthorColor     string
}
