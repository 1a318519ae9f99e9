// Package identity remembers who is using this client between runs.
//
// The profile is stored as one JSON value under a fixed key in a small
// key/value store. The CLI uses a file in the user's home directory; tests
// use the in-memory store.
package identity

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/vibeteen/vibe-teen/internal/model"
)

// Key is where the profile lives in the KV store. The "_v2" suffix marks the
// profile shape that carries the member ID and status.
const Key = "vibe_user_v2"

// ErrNotSignedIn is returned by Current when no profile is stored.
var ErrNotSignedIn = errors.New("identity: not signed in")

// Profile is the locally remembered member, plus the session token and the
// server it belongs to.
type Profile struct {
	MemberID    string       `json:"id"`
	FirstName   string       `json:"firstName"`
	LastName    string       `json:"lastName,omitempty"`
	Email       string       `json:"email"`
	AvatarColor string       `json:"avatarColor,omitempty"`
	Status      model.Status `json:"status,omitempty"`
	Role        model.Role   `json:"role,omitempty"`
	Token       string       `json:"token,omitempty"`
	Server      string       `json:"server,omitempty"`
}

// FromMember copies the public fields of a member into a profile.
func FromMember(m *model.Member, token, server string) *Profile {
	return &Profile{
		MemberID:    m.ID,
		FirstName:   m.FirstName,
		LastName:    m.LastName,
		Email:       m.Email,
		AvatarColor: m.AvatarColor,
		Status:      m.Status,
		Role:        m.Role,
		Token:       token,
		Server:      server,
	}
}

// DisplayName is the name shown on mural cards.
func (p *Profile) DisplayName() string {
	return p.FirstName
}

// Initials are the one or two letters drawn in the avatar bubble.
func (p *Profile) Initials() string {
	var b strings.Builder
	for _, part := range []string{p.FirstName, p.LastName} {
		for _, r := range strings.TrimSpace(part) {
			b.WriteRune(r)
			break
		}
	}
	return strings.ToUpper(b.String())
}

// KV is the storage behind a Provider.
type KV interface {
	Get(key string) ([]byte, bool, error)
	Set(key string, value []byte) error
	Delete(key string) error
}

// Provider reads and writes the current profile.
type Provider struct {
	kv KV
}

// NewProvider wraps a KV store.
func NewProvider(kv KV) *Provider {
	return &Provider{kv: kv}
}

// Current returns the stored profile, or ErrNotSignedIn.
func (p *Provider) Current() (*Profile, error) {
	raw, ok, err := p.kv.Get(Key)
	if err != nil {
		return nil, fmt.Errorf("identity: reading profile: %w", err)
	}
	if !ok || len(raw) == 0 {
		return nil, ErrNotSignedIn
	}

	var prof Profile
	if err := json.Unmarshal(raw, &prof); err != nil {
		return nil, fmt.Errorf("identity: decoding profile: %w", err)
	}
	if prof.MemberID == "" {
		return nil, ErrNotSignedIn
	}
	return &prof, nil
}

// Save replaces the stored profile.
func (p *Provider) Save(prof *Profile) error {
	if prof == nil || prof.MemberID == "" {
		return errors.New("identity: profile needs a member ID")
	}
	raw, err := json.Marshal(prof)
	if err != nil {
		return fmt.Errorf("identity: encoding profile: %w", err)
	}
	if err := p.kv.Set(Key, raw); err != nil {
		return fmt.Errorf("identity: writing profile: %w", err)
	}
	return nil
}

// Clear forgets the profile. Clearing an empty store is not an error.
func (p *Provider) Clear() error {
	if err := p.kv.Delete(Key); err != nil {
		return fmt.Errorf("identity: clearing profile: %w", err)
	}
	return nil
}
