package sqlite

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/vibeteen/vibe-teen/internal/apperror"
	"github.com/vibeteen/vibe-teen/internal/model"
	"github.com/vibeteen/vibe-teen/internal/repository"
)

// newTestDB opens a fresh in-memory database; it is closed when the test ends.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// steppingClock returns a clock that advances one second per call, so rows
// created in a loop get distinct, increasing timestamps.
func steppingClock(start time.Time) func() time.Time {
	next := start
	return func() time.Time {
		t := next
		next = next.Add(time.Second)
		return t
	}
}

func createTestAction(t *testing.T, s *ActionStore, author string, c model.Category) *model.Action {
	t.Helper()
	a := &model.Action{AuthorName: author, BeneficiaryName: "Alguém", Category: c}
	if err := s.Create(context.Background(), a); err != nil {
		t.Fatalf("failed to create test action: %v", err)
	}
	return a
}

func TestActionCreate(t *testing.T) {
	s := newTestDB(t).Actions()

	a := &model.Action{
		AuthorName:      "Ana",
		AuthorID:        "m1",
		BeneficiaryName: "Vó Lúcia",
		Category:        model.CategoryCared,
		AuthorColor:     "#00F576",
	}
	if err := s.Create(context.Background(), a); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if a.ID == "" {
		t.Error("Create() did not set ID")
	}
	if a.CreatedTime().IsZero() {
		t.Errorf("Create() set unparseable CreatedAt %q", a.CreatedAt)
	}
	if !strings.HasSuffix(a.CreatedAt, "Z") {
		t.Errorf("CreatedAt = %q, want a UTC timestamp", a.CreatedAt)
	}

	found, err := s.GetByID(context.Background(), a.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if *found != *a {
		t.Errorf("GetByID() = %+v, want %+v", *found, *a)
	}
}

func TestActionCreate_RejectsUnknownCategory(t *testing.T) {
	s := newTestDB(t).Actions()

	err := s.Create(context.Background(), &model.Action{AuthorName: "Ana", Category: "danced"})
	if !errors.Is(err, apperror.ErrValidation) {
		t.Fatalf("Create() error = %v, want ErrValidation", err)
	}
}

func TestActionGetByID_NotFound(t *testing.T) {
	s := newTestDB(t).Actions()

	_, err := s.GetByID(context.Background(), "nonexistent-id")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetByID() error = %v, want ErrNotFound", err)
	}
}

func TestActionList_Empty(t *testing.T) {
	s := newTestDB(t).Actions()

	actions, err := s.List(context.Background(), repository.ListOptions{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(actions) != 0 {
		t.Errorf("List() returned %d actions, want 0", len(actions))
	}
}

func TestActionList_NewestFirst(t *testing.T) {
	s := newTestDB(t).Actions()
	s.now = steppingClock(time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC))

	first := createTestAction(t, s, "Ana", model.CategoryPrayed)
	second := createTestAction(t, s, "Bia", model.CategoryCared)
	third := createTestAction(t, s, "Caio", model.CategoryShared)

	actions, err := s.List(context.Background(), repository.ListOptions{Limit: 10})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(actions) != 3 {
		t.Fatalf("List() returned %d actions, want 3", len(actions))
	}

	want := []string{third.ID, second.ID, first.ID}
	for i, a := range actions {
		if a.ID != want[i] {
			t.Errorf("actions[%d].ID = %q, want %q", i, a.ID, want[i])
		}
	}
}

func TestActionList_SameTimestampStillOrdered(t *testing.T) {
	s := newTestDB(t).Actions()
	frozen := time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return frozen }

	for i := 0; i < 5; i++ {
		createTestAction(t, s, "Ana", model.CategoryPrayed)
	}

	a, err := s.List(context.Background(), repository.ListOptions{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	b, err := s.List(context.Background(), repository.ListOptions{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	for i := range a {
		if a[i].ID != b[i].ID {
			t.Fatalf("order differs between calls at %d: %q vs %q", i, a[i].ID, b[i].ID)
		}
	}
}

func TestActionList_SubSecondNewestFirst(t *testing.T) {
	base := time.Date(2026, 10, 17, 12, 0, 5, 0, time.UTC)

	tests := []struct {
		name   string
		stamps []time.Duration // offsets from base, in creation order
	}{
		{"trailing zeros", []time.Duration{100 * time.Millisecond, 150 * time.Millisecond}},
		{"exact second then fraction", []time.Duration{0, 500 * time.Millisecond}},
		{"fraction then next exact second", []time.Duration{999 * time.Millisecond, time.Second}},
		{"nanoseconds apart", []time.Duration{10, 11, 100, 1000}},
		{"mixed widths", []time.Duration{time.Millisecond, 10 * time.Millisecond, 120 * time.Millisecond, 1200 * time.Millisecond}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestDB(t).Actions()
			i := 0
			s.now = func() time.Time {
				at := base.Add(tt.stamps[i])
				i++
				return at
			}

			var created []string
			for range tt.stamps {
				created = append(created, createTestAction(t, s, "Ana", model.CategoryPrayed).ID)
			}

			actions, err := s.List(context.Background(), repository.ListOptions{})
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if len(actions) != len(created) {
				t.Fatalf("List() returned %d actions, want %d", len(actions), len(created))
			}
			for j, a := range actions {
				want := created[len(created)-1-j]
				if a.ID != want {
					t.Errorf("actions[%d] = %s (%s), want %s", j, a.ID, a.CreatedAt, want)
				}
			}
		})
	}
}

func TestMigrate_WidensLegacyTimestamps(t *testing.T) {
	db := newTestDB(t)
	legacy := []struct{ id, at string }{
		{"old-a", "2026-10-17T12:00:05.1Z"},
		{"old-b", "2026-10-17T12:00:05.15Z"},
		{"old-c", "2026-10-17T12:00:05Z"},
	}
	for _, l := range legacy {
		_, err := db.conn.Exec(`INSERT INTO actions (id, author_name, category, created_at) VALUES (?, 'Ana', 'prayed', ?)`, l.id, l.at)
		if err != nil {
			t.Fatalf("insert legacy row: %v", err)
		}
	}

	if err := db.migrate(); err != nil {
		t.Fatalf("migrate() error = %v", err)
	}

	actions, err := db.Actions().List(context.Background(), repository.ListOptions{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	want := []string{"old-b", "old-a", "old-c"}
	if len(actions) != len(want) {
		t.Fatalf("List() returned %d actions, want %d", len(actions), len(want))
	}
	for i, a := range actions {
		if a.ID != want[i] {
			t.Errorf("actions[%d].ID = %q, want %q", i, a.ID, want[i])
		}
		if len(a.CreatedAt) != len(model.TimestampLayout) {
			t.Errorf("actions[%d].CreatedAt = %q, not widened", i, a.CreatedAt)
		}
	}
	if got := actions[0].CreatedAt; got != "2026-10-17T12:00:05.150000000Z" {
		t.Errorf("CreatedAt = %q, want 2026-10-17T12:00:05.150000000Z", got)
	}
}

func TestActionList_LimitAndOffset(t *testing.T) {
	s := newTestDB(t).Actions()
	s.now = steppingClock(time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC))

	for i := 0; i < 5; i++ {
		createTestAction(t, s, "Ana", model.CategoryPrayed)
	}

	page1, err := s.List(context.Background(), repository.ListOptions{Limit: 2})
	if err != nil {
		t.Fatalf("List() page 1 error = %v", err)
	}
	page3, err := s.List(context.Background(), repository.ListOptions{Limit: 2, Offset: 4})
	if err != nil {
		t.Fatalf("List() page 3 error = %v", err)
	}

	if len(page1) != 2 {
		t.Errorf("page 1: got %d items, want 2", len(page1))
	}
	if len(page3) != 1 {
		t.Errorf("page 3: got %d items, want 1", len(page3))
	}
}

func TestActionList_DefaultLimitIsFeedLimit(t *testing.T) {
	s := newTestDB(t).Actions()
	for i := 0; i < 205; i++ {
		createTestAction(t, s, "Ana", model.CategoryShared)
	}

	actions, err := s.List(context.Background(), repository.ListOptions{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(actions) != 200 {
		t.Errorf("List() default returned %d items, want 200", len(actions))
	}
}

func TestActionDelete(t *testing.T) {
	s := newTestDB(t).Actions()
	a := createTestAction(t, s, "Ana", model.CategoryPrayed)

	if err := s.Delete(context.Background(), a.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := s.GetByID(context.Background(), a.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetByID() after delete: error = %v, want ErrNotFound", err)
	}
	if err := s.Delete(context.Background(), a.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("second Delete() error = %v, want ErrNotFound", err)
	}
}

// TestActionsHaveAuthorIDColumn checks that the author_id migration ran and is
// idempotent.
func TestActionsHaveAuthorIDColumn(t *testing.T) {
	db := newTestDB(t)

	if err := db.migrate(); err != nil {
		t.Fatalf("second migrate() error = %v", err)
	}

	var count int
	err := db.conn.QueryRowContext(context.Background(),
		`SELECT COUNT(*) FROM pragma_table_info('actions') WHERE name = 'author_id'`,
	).Scan(&count)
	if err != nil {
		t.Fatalf("pragma_table_info: %v", err)
	}
	if count != 1 {
		t.Errorf("author_id columns = %d, want 1", count)
	}
}

func TestSettings(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if _, ok, err := db.GetSetting(ctx, "mission:2026-10-17"); err != nil || ok {
		t.Fatalf("GetSetting() on empty table = (ok=%v, err=%v), want (false, nil)", ok, err)
	}

	if err := db.SetSetting(ctx, "mission:2026-10-17", "Ore por um amigo"); err != nil {
		t.Fatalf("SetSetting() error = %v", err)
	}
	if err := db.SetSetting(ctx, "mission:2026-10-17", "Mande uma mensagem"); err != nil {
		t.Fatalf("SetSetting() overwrite error = %v", err)
	}

	v, ok, err := db.GetSetting(ctx, "mission:2026-10-17")
	if err != nil || !ok {
		t.Fatalf("GetSetting() = (ok=%v, err=%v)", ok, err)
	}
	if v != "Mande uma mensagem" {
		t.Errorf("GetSetting() = %q, want the overwritten value", v)
	}
}
