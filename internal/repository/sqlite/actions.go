package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/vibeteen/vibe-teen/internal/apperror"
	"github.com/vibeteen/vibe-teen/internal/model"
	"github.com/vibeteen/vibe-teen/internal/repository"
)

// MaxListLimit caps a single List call. The live feed asks for 200; anything
// larger is almost certainly a bug in the caller.
const MaxListLimit = 500

// compile-time check that *ActionStore implements repository.ActionRepository
var _ repository.ActionRepository = (*ActionStore)(nil)

// ActionStore is the actions table. Get one from DB.Actions().
type ActionStore struct {
	conn *sql.DB
	now  func() time.Time
}

// Actions returns the action store backed by this database.
func (db *DB) Actions() *ActionStore {
	return &ActionStore{conn: db.conn, now: time.Now}
}

// Create inserts a new action. ID and CreatedAt are assigned here and written
// back into the caller's struct.
//
// CreatedAt is stored with model.TimestampLayout so that the TEXT column sorts
// in time order. The id tiebreak only orders rows stamped in the same
// nanosecond.
func (s *ActionStore) Create(ctx context.Context, a *model.Action) error {
	if !a.Category.Valid() {
		return apperror.ValidationFailed("category", fmt.Sprintf("unknown category %q", a.Category))
	}

	a.ID = xid.New().String()
	a.CreatedAt = model.FormatTimestamp(s.now())

	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO actions (id, author_name, author_id, beneficiary_name, category, created_at, author_color)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.ID,
		a.AuthorName,
		a.AuthorID,
		a.BeneficiaryName,
		a.Category,
		a.CreatedAt,
		a.AuthorColor,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating action: %w", err)
	}
	return nil
}

// GetByID returns one action or apperror.ErrNotFound.
func (s *ActionStore) GetByID(ctx context.Context, id string) (*model.Action, error) {
	var a model.Action
	err := s.conn.QueryRowContext(ctx,
		`SELECT id, author_name, author_id, beneficiary_name, category, created_at, author_color
		 FROM actions WHERE id = ?`,
		id,
	).Scan(&a.ID, &a.AuthorName, &a.AuthorID, &a.BeneficiaryName, &a.Category, &a.CreatedAt, &a.AuthorColor)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("action", id)
		}
		return nil, fmt.Errorf("sqlite: getting action %s: %w", id, err)
	}
	return &a, nil
}

// List returns actions newest first.
//
// A zero Limit means "the feed default" (200). The id column is a secondary
// sort key so the order is total even when two rows share a timestamp.
func (s *ActionStore) List(ctx context.Context, opts repository.ListOptions) ([]model.Action, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 200
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}

	rows, err := s.conn.QueryContext(ctx,
		`SELECT id, author_name, author_id, beneficiary_name, category, created_at, author_color
		 FROM actions
		 ORDER BY created_at DESC, id DESC
		 LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing actions: %w", err)
	}
	defer rows.Close()

	actions := make([]model.Action, 0, limit)
	for rows.Next() {
		var a model.Action
		if err := rows.Scan(&a.ID, &a.AuthorName, &a.AuthorID, &a.BeneficiaryName, &a.Category, &a.CreatedAt, &a.AuthorColor); err != nil {
			return nil, fmt.Errorf("sqlite: scanning action row: %w", err)
		}
		actions = append(actions, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating actions: %w", err)
	}
	return actions, nil
}

// Delete removes an action. Admin-only at the service layer.
func (s *ActionStore) Delete(ctx context.Context, id string) error {
	result, err := s.conn.ExecContext(ctx, `DELETE FROM actions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting action %s: %w", id, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound("action", id)
	}
	return nil
}
