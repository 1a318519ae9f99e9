package mural

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/vibeteen/vibe-teen/internal/model"
)

// Glyphs used by the terminal view.
const (
	glyphCenter = '✝'
	glyphEmpty  = '·'
)

var glyphs = map[model.Category]rune{
	model.CategoryPrayed: 'O',
	model.CategoryCared:  'C',
	model.CategoryShared: 'S',
}

// Glyph is the single character the terminal view draws for c.
func Glyph(c model.Category) rune {
	if g, ok := glyphs[c]; ok {
		return g
	}
	return '?'
}

// TextOptions controls RenderText.
type TextOptions struct {
	// Radius limits the grid to this many rings around the center.
	// Zero means "large enough for every card".
	Radius int
	// Legend prints the per-category counts under the grid.
	Legend bool
}

// RenderText draws f as a character grid, one glyph per spiral cell, with
// the center in the middle. The viewport zoom shrinks or grows the visible
// radius the way it would on a screen.
func RenderText(w io.Writer, f Frame, opts TextOptions) error {
	cell := f.CellSize
	if cell <= 0 {
		cell = 1
	}

	grid := make(map[[2]int]rune, len(f.Cards))
	extent := 0
	for _, c := range f.Cards {
		gx, gy := c.X/cell, c.Y/cell
		g := glyphCenter
		if !c.Center && c.Action != nil {
			g = Glyph(c.Action.Category)
		}
		grid[[2]int{gx, gy}] = g
		extent = max(extent, abs(gx), abs(gy))
	}

	radius := opts.Radius
	if radius <= 0 {
		radius = extent
	}
	if z := f.Viewport.Zoom; z > 0 && opts.Radius > 0 {
		radius = max(0, int(float64(opts.Radius)/z+0.5))
	}

	var b strings.Builder
	status := "ao vivo"
	if f.Syncing {
		status = "sincronizando…"
	}
	fmt.Fprintf(&b, "mural · %d ações · zoom %.2f · %s\n", len(f.Cards)-1, f.Viewport.Zoom, status)
	if f.Mission != "" {
		fmt.Fprintf(&b, "missão: %s\n", f.Mission)
	}

	for y := -radius; y <= radius; y++ {
		for x := -radius; x <= radius; x++ {
			g, ok := grid[[2]int{x, y}]
			if !ok {
				g = glyphEmpty
			}
			b.WriteRune(g)
			if x < radius {
				b.WriteByte(' ')
			}
		}
		b.WriteByte('\n')
	}

	if opts.Legend {
		cats := model.Categories()
		sort.Slice(cats, func(i, j int) bool { return cats[i] < cats[j] })
		for _, c := range cats {
			counts := f.Stats.Categories[c]
			fmt.Fprintf(&b, "%c %-8s total %-4d hoje %d\n", Glyph(c), c, counts.Total, counts.Today)
		}
		fmt.Fprintf(&b, "progresso %d%%\n", f.Stats.Progress)
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
