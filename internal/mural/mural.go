// Package mural turns the reconciler state into what a screen shows: one card
// per spiral cell, the stats cards, and the viewport transform.
//
// A Frame is plain data. The HTML page, the /live channel and the terminal
// renderer all start from the same Frame, so they never disagree about where
// a card sits.
package mural

import (
	"math"
	"time"

	"github.com/vibeteen/vibe-teen/internal/category"
	"github.com/vibeteen/vibe-teen/internal/feed"
	"github.com/vibeteen/vibe-teen/internal/model"
	"github.com/vibeteen/vibe-teen/internal/viewport"
)

// CenterLabel is written on the permanent card at index 0.
const CenterLabel = "JESUS"

// ProgressGoal is the number of actions that fills the collective progress bar.
const ProgressGoal = 100

// RecentCount is how many of the newest actions the projection screen lists.
const RecentCount = 5

// Card is one spiral cell. The center card has no Action.
type Card struct {
	Index  int           `json:"index"`
	X      int           `json:"x"`
	Y      int           `json:"y"`
	Center bool          `json:"center,omitempty"`
	Action *model.Action `json:"action,omitempty"`
	Meta   category.Meta `json:"meta"`
	Day    string        `json:"day,omitempty"` // dd/mm in the mural's location
}

// Stats feeds the stats cards and the projection screen.
type Stats struct {
	Categories map[model.Category]feed.Counts `json:"categories"`
	Total      int                            `json:"total"`
	Progress   int                            `json:"progress"` // percent of ProgressGoal, capped at 100
	Recent     []model.Action                 `json:"recent"`
	Mine       *int                           `json:"mine,omitempty"`
}

// Frame is a complete render of the mural.
type Frame struct {
	Revision  uint64         `json:"revision"`
	Syncing   bool           `json:"syncing"`
	HasData   bool           `json:"hasData"`
	CellSize  int            `json:"cellSize"`
	Cards     []Card         `json:"cards"`
	Stats     Stats          `json:"stats"`
	Viewport  viewport.State `json:"viewport"`
	Transform string         `json:"transform"`
	Mission   string         `json:"mission,omitempty"`
}

// Builder renders frames with a fixed category table and calendar.
type Builder struct {
	table *category.Table
	loc   *time.Location
}

// NewBuilder returns a builder. A nil loc means time.Local.
func NewBuilder(table *category.Table, loc *time.Location) *Builder {
	if loc == nil {
		loc = time.Local
	}
	return &Builder{table: table, loc: loc}
}

// Table is the category metadata the builder renders with.
func (b *Builder) Table() *category.Table { return b.table }

// Frame builds a frame from one consistent view of r.
func (b *Builder) Frame(r *feed.Reconciler, vs viewport.State) Frame {
	v := r.View()

	cards := make([]Card, len(v.Cells))
	cards[0] = Card{
		Index:  0,
		X:      v.Cells[0].X,
		Y:      v.Cells[0].Y,
		Center: true,
		Meta:   category.Meta{Label: CenterLabel},
	}
	for i := range v.Entries {
		cell := v.Cells[i+1]
		a := v.Entries[i]
		cards[i+1] = Card{
			Index:  cell.Index,
			X:      cell.X,
			Y:      cell.Y,
			Action: &a,
			Meta:   b.table.MustLookup(a.Category),
			Day:    b.day(a),
		}
	}

	return Frame{
		Revision:  v.Revision,
		Syncing:   v.Syncing,
		HasData:   v.HasData,
		CellSize:  r.CellSize(),
		Cards:     cards,
		Stats:     statsOf(v),
		Viewport:  vs,
		Transform: vs.Transform(),
	}
}

// Stats returns the stats cards without the layout. When memberID or name is
// non-empty, Mine counts that member's actions.
func (b *Builder) Stats(r *feed.Reconciler, memberID, name string) Stats {
	s := statsOf(r.View())
	if memberID != "" || name != "" {
		mine := r.CountByAuthorID(memberID, name)
		if memberID == "" {
			mine = r.CountByAuthor(name)
		}
		s.Mine = &mine
	}
	return s
}

func statsOf(v feed.View) Stats {
	n := min(RecentCount, len(v.Entries))
	recent := make([]model.Action, n)
	copy(recent, v.Entries[:n])

	return Stats{
		Categories: v.Stats,
		Total:      len(v.Entries),
		Progress:   Progress(len(v.Entries)),
		Recent:     recent,
	}
}

// Progress is the share of ProgressGoal reached, rounded and capped at 100.
func Progress(total int) int {
	p := int(math.Round(float64(total) / ProgressGoal * 100))
	return min(100, max(0, p))
}

func (b *Builder) day(a model.Action) string {
	t := a.CreatedTime()
	if t.IsZero() {
		return ""
	}
	return t.In(b.loc).Format("02/01")
}
