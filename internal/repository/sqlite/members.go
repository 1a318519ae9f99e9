package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"

	"github.com/vibeteen/vibe-teen/internal/apperror"
	"github.com/vibeteen/vibe-teen/internal/model"
	"github.com/vibeteen/vibe-teen/internal/repository"
)

var _ repository.MemberRepository = (*MemberStore)(nil)

// MemberStore is the members table. Get one from DB.Members().
type MemberStore struct {
	conn *sql.DB
}

// Members returns the member store backed by this database.
func (db *DB) Members() *MemberStore {
	return &MemberStore{conn: db.conn}
}

const memberColumns = `id, first_name, last_name, email, avatar_color, status, role, pin_hash, created_at, updated_at`

func scanMember(row interface{ Scan(...any) error }) (*model.Member, error) {
	var m model.Member
	err := row.Scan(
		&m.ID,
		&m.FirstName,
		&m.LastName,
		&m.Email,
		&m.AvatarColor,
		&m.Status,
		&m.Role,
		&m.PINHash,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// Create inserts a new member. A second member with the same e-mail gets
// apperror.ErrConflict.
func (s *MemberStore) Create(ctx context.Context, m *model.Member) error {
	now := time.Now().UTC()
	m.ID = xid.New().String()
	m.Email = normalizeEmail(m.Email)
	m.CreatedAt = now
	m.UpdatedAt = now
	if m.Status == "" {
		m.Status = model.StatusVisitor
	}
	if m.Role == "" {
		m.Role = model.RoleUser
	}

	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO members (`+memberColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID,
		m.FirstName,
		m.LastName,
		m.Email,
		m.AvatarColor,
		m.Status,
		m.Role,
		m.PINHash,
		m.CreatedAt,
		m.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("member", m.Email)
		}
		return fmt.Errorf("sqlite: creating member: %w", err)
	}
	return nil
}

// Upsert inserts a member or, when the e-mail is already registered, refreshes
// the profile fields and keeps the existing ID, status, role and PIN.
//
// The Google admin sign-in goes through here: the first sign-in creates the
// row, later ones only touch names and updated_at.
func (s *MemberStore) Upsert(ctx context.Context, m *model.Member) error {
	existing, err := s.GetByEmail(ctx, m.Email)
	switch {
	case err == nil:
	case isNotFound(err):
		return s.Create(ctx, m)
	default:
		return err
	}

	m.ID = existing.ID
	m.Email = existing.Email
	m.CreatedAt = existing.CreatedAt
	m.UpdatedAt = time.Now().UTC()
	if m.FirstName == "" {
		m.FirstName = existing.FirstName
	}
	if m.LastName == "" {
		m.LastName = existing.LastName
	}
	if m.AvatarColor == "" {
		m.AvatarColor = existing.AvatarColor
	}
	if m.Status == "" {
		m.Status = existing.Status
	}
	// Role only ever moves up through Upsert. Demotion is an explicit UpdateRole.
	if existing.Role == model.RoleAdmin || m.Role == "" {
		m.Role = existing.Role
	}
	if m.PINHash == "" {
		m.PINHash = existing.PINHash
	}

	_, err = s.conn.ExecContext(ctx,
		`UPDATE members
		 SET first_name = ?, last_name = ?, avatar_color = ?, status = ?, role = ?, pin_hash = ?, updated_at = ?
		 WHERE id = ?`,
		m.FirstName, m.LastName, m.AvatarColor, m.Status, m.Role, m.PINHash, m.UpdatedAt, m.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating member %s: %w", m.ID, err)
	}
	return nil
}

// GetByID returns the member with the given internal ID.
func (s *MemberStore) GetByID(ctx context.Context, id string) (*model.Member, error) {
	m, err := scanMember(s.conn.QueryRowContext(ctx,
		`SELECT `+memberColumns+` FROM members WHERE id = ?`, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("member", id)
		}
		return nil, fmt.Errorf("sqlite: getting member %s: %w", id, err)
	}
	return m, nil
}

// GetByEmail looks a member up by e-mail, ignoring case and surrounding spaces.
func (s *MemberStore) GetByEmail(ctx context.Context, email string) (*model.Member, error) {
	email = normalizeEmail(email)
	m, err := scanMember(s.conn.QueryRowContext(ctx,
		`SELECT `+memberColumns+` FROM members WHERE email = ?`, email))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("member", email)
		}
		return nil, fmt.Errorf("sqlite: getting member by email: %w", err)
	}
	return m, nil
}

// List returns every member, oldest first (the admin panel table).
func (s *MemberStore) List(ctx context.Context) ([]model.Member, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT `+memberColumns+` FROM members ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing members: %w", err)
	}
	defer rows.Close()

	var members []model.Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning member row: %w", err)
		}
		members = append(members, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating members: %w", err)
	}
	return members, nil
}

// UpdateStatus changes a member's group status.
func (s *MemberStore) UpdateStatus(ctx context.Context, id string, status model.Status) error {
	return s.updateField(ctx, id, "status", string(status))
}

// UpdateRole promotes or demotes a member.
func (s *MemberStore) UpdateRole(ctx context.Context, id string, role model.Role) error {
	return s.updateField(ctx, id, "role", string(role))
}

// updateField is only called with column names from this file, never with
// user input, so building the statement with Sprintf is safe.
func (s *MemberStore) updateField(ctx context.Context, id, column, value string) error {
	result, err := s.conn.ExecContext(ctx,
		fmt.Sprintf(`UPDATE members SET %s = ?, updated_at = ? WHERE id = ?`, column),
		value, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating member %s %s: %w", id, column, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound("member", id)
	}
	return nil
}

// Delete removes a member. Their actions stay on the mural.
func (s *MemberStore) Delete(ctx context.Context, id string) error {
	result, err := s.conn.ExecContext(ctx, `DELETE FROM members WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting member %s: %w", id, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound("member", id)
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// modernc reports constraint failures as plain errors; the message text is the
// only stable thing to match on.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
