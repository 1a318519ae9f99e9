// Package feed keeps a client's view of the mural in step with the feed source.
//
// SNAPSHOT REPLACE, NOT DIFF:
// The source always delivers the complete, newest-first list (capped at the
// fetch limit). The reconciler swaps its copy wholesale on every delivery.
// At this data size a diffing protocol would only add failure modes.
//
// POSITIONS:
// Entry i sits on spiral cell i+1; cell 0 belongs to the center marker.
// Positions are derived from the current length every time and never cached
// separately, so they cannot drift away from the snapshot.
package feed

import (
	"sync"
	"time"

	"github.com/vibeteen/vibe-teen/internal/model"
	"github.com/vibeteen/vibe-teen/internal/spiral"
)

// DefaultCellSize is the spiral pitch in pixels used by the mural.
const DefaultCellSize = 160

// Counts is the per-category summary shown on the stats cards.
type Counts struct {
	Total int `json:"total"`
	Today int `json:"today"`
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithClock replaces time.Now for the "today" counts.
func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) { r.now = now }
}

// WithLocation sets the calendar used for the "today" counts. Defaults to
// time.Local.
func WithLocation(loc *time.Location) Option {
	return func(r *Reconciler) { r.loc = loc }
}

// Reconciler holds the last snapshot delivered by the feed source.
//
// It is safe for concurrent use: the source delivers from its own goroutine
// while handlers read counts.
type Reconciler struct {
	cellSize int
	now      func() time.Time
	loc      *time.Location

	mu       sync.RWMutex
	entries  []model.Action
	hasData  bool
	syncing  bool
	lastErr  error
	revision uint64
}

// NewReconciler returns an empty reconciler. Until the first snapshot arrives
// it reports Syncing() == true and HasData() == false.
func NewReconciler(cellSize int, opts ...Option) *Reconciler {
	if cellSize <= 0 {
		cellSize = DefaultCellSize
	}
	r := &Reconciler{
		cellSize: cellSize,
		now:      time.Now,
		loc:      time.Local,
		syncing:  true,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// OnSnapshot replaces the held snapshot. The slice is copied, so the caller
// may reuse it.
func (r *Reconciler) OnSnapshot(entries []model.Action) {
	cp := make([]model.Action, len(entries))
	copy(cp, entries)

	r.mu.Lock()
	r.entries = cp
	r.hasData = true
	r.syncing = false
	r.lastErr = nil
	r.revision++
	r.mu.Unlock()
}

// OnError records a transient source failure. The last good snapshot stays in
// place; only the syncing flag goes up.
func (r *Reconciler) OnError(err error) {
	r.mu.Lock()
	r.syncing = true
	r.lastErr = err
	r.mu.Unlock()
}

// Syncing reports whether the view may be stale (no snapshot yet, or the last
// delivery was an error).
func (r *Reconciler) Syncing() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.syncing
}

// HasData reports whether at least one snapshot has been delivered.
func (r *Reconciler) HasData() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.hasData
}

// Err returns the error that raised the syncing flag, if any.
func (r *Reconciler) Err() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastErr
}

// Revision increases by one on every snapshot. Renderers use it to skip
// redundant frames.
func (r *Reconciler) Revision() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.revision
}

// Len is the number of entries in the snapshot.
func (r *Reconciler) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// CellSize is the spiral pitch this reconciler lays entries out with.
func (r *Reconciler) CellSize() int {
	return r.cellSize
}

// Snapshot returns a copy of the current entries, newest first.
func (r *Reconciler) Snapshot() []model.Action {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cp := make([]model.Action, len(r.entries))
	copy(cp, r.entries)
	return cp
}

// PositionOf returns the spiral cell for feed entry i. ok is false when i is
// outside the snapshot.
func (r *Reconciler) PositionOf(i int) (spiral.Cell, bool) {
	r.mu.RLock()
	n := len(r.entries)
	r.mu.RUnlock()

	if i < 0 || i >= n {
		return spiral.Cell{}, false
	}
	return spiral.Coords(n+1, r.cellSize)[i+1], true
}

// Cells returns every cell of the current layout, center first. len(Cells())
// is always Len()+1.
func (r *Reconciler) Cells() []spiral.Cell {
	return spiral.Coords(r.Len()+1, r.cellSize)
}

// CountBy counts entries of category c.
func (r *Reconciler) CountBy(c model.Category) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, e := range r.entries {
		if e.Category == c {
			n++
		}
	}
	return n
}

// CountByToday counts entries of category c created on the current local
// calendar date.
func (r *Reconciler) CountByToday(c model.Category) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	today := dateOf(r.now(), r.loc)
	n := 0
	for _, e := range r.entries {
		if e.Category == c && r.isOn(e, today) {
			n++
		}
	}
	return n
}

// CountByAuthor counts entries whose author display name equals name.
//
// Display names are not unique. Prefer CountByAuthorID; this exists for rows
// written before authorship carried a member ID.
func (r *Reconciler) CountByAuthor(name string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, e := range r.entries {
		if e.AuthorName == name {
			n++
		}
	}
	return n
}

// CountByAuthorID counts entries written by the member with the given ID.
// Legacy entries without an AuthorID fall back to matching fallbackName.
func (r *Reconciler) CountByAuthorID(id, fallbackName string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, e := range r.entries {
		switch {
		case e.AuthorID != "":
			if e.AuthorID == id {
				n++
			}
		case fallbackName != "" && e.AuthorName == fallbackName:
			n++
		}
	}
	return n
}

// Stats returns totals and today counts for every category in one pass.
func (r *Reconciler) Stats() map[model.Category]Counts {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.statsLocked()
}

func (r *Reconciler) statsLocked() map[model.Category]Counts {
	today := dateOf(r.now(), r.loc)
	out := make(map[model.Category]Counts, 3)
	for _, c := range model.Categories() {
		out[c] = Counts{}
	}
	for _, e := range r.entries {
		cnt, ok := out[e.Category]
		if !ok {
			continue
		}
		cnt.Total++
		if r.isOn(e, today) {
			cnt.Today++
		}
		out[e.Category] = cnt
	}
	return out
}

// View is everything a renderer needs, taken under one lock so the entries,
// cells and counts always agree with each other.
type View struct {
	Revision uint64
	Syncing  bool
	HasData  bool
	Err      error
	Entries  []model.Action
	Cells    []spiral.Cell // len(Entries)+1, center first
	Stats    map[model.Category]Counts
}

// View returns a consistent copy of the reconciler state.
func (r *Reconciler) View() View {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := make([]model.Action, len(r.entries))
	copy(entries, r.entries)
	return View{
		Revision: r.revision,
		Syncing:  r.syncing,
		HasData:  r.hasData,
		Err:      r.lastErr,
		Entries:  entries,
		Cells:    spiral.Coords(len(entries)+1, r.cellSize),
		Stats:    r.statsLocked(),
	}
}

func (r *Reconciler) isOn(e model.Action, day civilDate) bool {
	t := e.CreatedTime()
	if t.IsZero() {
		return false
	}
	return dateOf(t, r.loc) == day
}

type civilDate struct {
	year  int
	month time.Month
	day   int
}

func dateOf(t time.Time, loc *time.Location) civilDate {
	y, m, d := t.In(loc).Date()
	return civilDate{y, m, d}
}
