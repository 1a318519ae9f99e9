package service

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/vibeteen/vibe-teen/internal/apperror"
	"github.com/vibeteen/vibe-teen/internal/auth"
	"github.com/vibeteen/vibe-teen/internal/model"
)

// fakeMemberRepo is an in-memory repository.MemberRepository.
type fakeMemberRepo struct {
	mu      sync.Mutex
	byID    map[string]*model.Member
	nextID  int
	getErr  error // returned by GetByID when set
	created int
}

func newFakeMemberRepo() *fakeMemberRepo {
	return &fakeMemberRepo{byID: make(map[string]*model.Member)}
}

func (f *fakeMemberRepo) Create(_ context.Context, m *model.Member) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.byID {
		if existing.Email == m.Email {
			return apperror.Conflict("member", m.Email)
		}
	}
	f.nextID++
	m.ID = fmt.Sprintf("member-%d", f.nextID)
	m.CreatedAt = time.Now()
	m.UpdatedAt = m.CreatedAt
	stored := *m
	f.byID[m.ID] = &stored
	f.created++
	return nil
}

func (f *fakeMemberRepo) Upsert(ctx context.Context, m *model.Member) error {
	f.mu.Lock()
	for _, existing := range f.byID {
		if existing.Email == m.Email {
			existing.FirstName = m.FirstName
			existing.LastName = m.LastName
			if existing.Role != model.RoleAdmin && m.Role != "" {
				existing.Role = m.Role
			}
			*m = *existing
			f.mu.Unlock()
			return nil
		}
	}
	f.mu.Unlock()
	return f.Create(ctx, m)
}

func (f *fakeMemberRepo) GetByID(_ context.Context, id string) (*model.Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	m, ok := f.byID[id]
	if !ok {
		return nil, apperror.NotFound("member", id)
	}
	cp := *m
	return &cp, nil
}

func (f *fakeMemberRepo) GetByEmail(_ context.Context, email string) (*model.Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.byID {
		if m.Email == email {
			cp := *m
			return &cp, nil
		}
	}
	return nil, apperror.NotFound("member", email)
}

func (f *fakeMemberRepo) List(_ context.Context) ([]model.Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.Member, 0, len(f.byID))
	for _, m := range f.byID {
		out = append(out, *m)
	}
	return out, nil
}

func (f *fakeMemberRepo) UpdateStatus(_ context.Context, id string, st model.Status) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.byID[id]
	if !ok {
		return apperror.NotFound("member", id)
	}
	m.Status = st
	return nil
}

func (f *fakeMemberRepo) UpdateRole(_ context.Context, id string, r model.Role) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.byID[id]
	if !ok {
		return apperror.NotFound("member", id)
	}
	m.Role = r
	return nil
}

func (f *fakeMemberRepo) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[id]; !ok {
		return apperror.NotFound("member", id)
	}
	delete(f.byID, id)
	return nil
}

// fakeSource is a feedsource.Source whose snapshots are delivered only when
// the test calls flush, so tests control exactly when an entry "arrives".
type fakeSource struct {
	mu        sync.Mutex
	committed []model.Action
	createErr error
	deleteErr error
	subs      []func([]model.Action)
}

func (f *fakeSource) Subscribe(onSnapshot func([]model.Action), _ func(error)) func() {
	f.mu.Lock()
	f.subs = append(f.subs, onSnapshot)
	f.mu.Unlock()
	return func() {}
}

func (f *fakeSource) Create(_ context.Context, na model.NewAction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	a := model.Action{
		ID:              fmt.Sprintf("action-%d", len(f.committed)+1),
		AuthorName:      na.AuthorName,
		AuthorID:        na.AuthorID,
		BeneficiaryName: na.BeneficiaryName,
		Category:        na.Category,
		AuthorColor:     na.AuthorColor,
		CreatedAt:       time.Now().UTC().Format(model.TimestampLayout),
	}
	f.committed = append([]model.Action{a}, f.committed...)
	return nil
}

func (f *fakeSource) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	for i, a := range f.committed {
		if a.ID == id {
			f.committed = append(f.committed[:i], f.committed[i+1:]...)
			return nil
		}
	}
	return apperror.NotFound("action", id)
}

// flush delivers the committed state to every subscriber.
func (f *fakeSource) flush() {
	f.mu.Lock()
	snap := append([]model.Action(nil), f.committed...)
	subs := append([](func([]model.Action))(nil), f.subs...)
	f.mu.Unlock()
	for _, s := range subs {
		s(snap)
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestTokens(t *testing.T) *auth.TokenService {
	t.Helper()
	ts, err := auth.NewTokenService("test-secret-at-least-16-chars!!")
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	return ts
}
