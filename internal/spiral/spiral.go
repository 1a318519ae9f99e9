// Package spiral places mural cards on a square spiral around a fixed center.
//
// THE LAYOUT:
// Index 0 is the center (the permanent "JESUS" card). Every later index walks
// outward ring by ring, so the sequence for n cells is always a prefix of the
// sequence for n+1 cells. That prefix property is what keeps a card from
// jumping when a newer card is appended to the feed.
//
// For cellSize = 1 the first nine cells are:
//
//	(0,0) (1,0) (1,1) (0,1) (-1,1) (-1,0) (-1,-1) (0,-1) (1,-1)
package spiral

import (
	"fmt"
	"math"
)

// Cell is one slot of the spiral, already scaled by the cell size.
type Cell struct {
	Index int `json:"index"`
	X     int `json:"x"`
	Y     int `json:"y"`
}

// Coords returns exactly n cells of the spiral, scaled by cellSize.
//
// n must be >= 0 and cellSize must be > 0, and no scaled coordinate may
// overflow int. Anything else is a caller bug and panics rather than being
// silently clamped.
func Coords(n, cellSize int) []Cell {
	if n < 0 {
		panic(fmt.Sprintf("spiral: negative cell count %d", n))
	}
	if cellSize <= 0 {
		panic(fmt.Sprintf("spiral: cell size must be positive, got %d", cellSize))
	}
	// No coordinate of the first n cells is farther than n/2+1 from the center.
	if cellSize > math.MaxInt/(n/2+1) {
		panic(fmt.Sprintf("spiral: cell size %d overflows for %d cells", cellSize, n))
	}

	cells := make([]Cell, 0, n)
	x, y := 0, 0
	dx, dy := 0, -1

	for i := 0; i < n; i++ {
		cells = append(cells, Cell{Index: i, X: x * cellSize, Y: y * cellSize})

		// Turn the corner. The three cases are the diagonal, the left edge and
		// the "one past" bottom-right corner that starts the next ring.
		if x == y || (x < 0 && x == -y) || (x > 0 && x == 1-y) {
			dx, dy = -dy, dx
		}
		x += dx
		y += dy
	}

	return cells
}

// At returns the single cell at index i. It is equivalent to
// Coords(i+1, cellSize)[i].
func At(i, cellSize int) Cell {
	if i < 0 {
		panic(fmt.Sprintf("spiral: negative index %d", i))
	}
	return Coords(i+1, cellSize)[i]
}
