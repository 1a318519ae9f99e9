// Package category holds the display metadata for the three act categories.
//
// The table is built once and handed to whoever renders cards (the mural page,
// the live frames, the CLI). Nothing in here is a package-level mutable
// singleton, so tests can build their own table.
package category

import (
	"fmt"
	"strings"

	"github.com/vibeteen/vibe-teen/internal/apperror"
	"github.com/vibeteen/vibe-teen/internal/model"
)

// Meta is what a card shows for its category.
type Meta struct {
	Label       string `json:"label"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
	Verse       string `json:"verse"`
	Tint        string `json:"tint"`      // card background colour
	StatLabel   string `json:"statLabel"` // noun used on the stats card
}

// Table maps every category to its Meta. The zero value is unusable; build
// one with New or Default.
type Table struct {
	entries map[model.Category]Meta
}

// New builds a table from metas. It fails unless every category in
// model.Categories() is present and no unknown key is given.
func New(metas map[model.Category]Meta) (*Table, error) {
	entries := make(map[model.Category]Meta, len(metas))
	for c, m := range metas {
		if !c.Valid() {
			return nil, fmt.Errorf("category: unknown category %q in table", c)
		}
		entries[c] = m
	}
	for _, c := range model.Categories() {
		if _, ok := entries[c]; !ok {
			return nil, fmt.Errorf("category: table is missing %q", c)
		}
	}
	return &Table{entries: entries}, nil
}

// Default returns a fresh table with the product copy.
func Default() *Table {
	t, err := New(map[model.Category]Meta{
		model.CategoryPrayed: {
			Label:       "Orei",
			Description: "Intercessão poderosa.",
			Icon:        "volunteer_activism",
			Verse:       "Orai sem cessar. (1 Tes 5:17)",
			Tint:        "#0084FF",
			StatLabel:   "Orações",
		},
		model.CategoryCared: {
			Label:       "Cuidei",
			Description: "Amor em movimento.",
			Icon:        "spa",
			Verse:       "Ame o seu próximo como a si mesmo. (Mt 22:39)",
			Tint:        "#00F576",
			StatLabel:   "Vidas",
		},
		model.CategoryShared: {
			Label:       "Compartilhei",
			Description: "Falei da Verdade.",
			Icon:        "share",
			Verse:       "Ide e pregai o evangelho. (Mc 16:15)",
			Tint:        "#FF5E00",
			StatLabel:   "Partilhas",
		},
	})
	if err != nil {
		panic(err)
	}
	return t
}

// Lookup returns the metadata for c.
func (t *Table) Lookup(c model.Category) (Meta, bool) {
	m, ok := t.entries[c]
	return m, ok
}

// MustLookup is Lookup for values that already passed Parse. An unknown
// category here is a programming error, so it panics.
func (t *Table) MustLookup(c model.Category) Meta {
	m, ok := t.entries[c]
	if !ok {
		panic(fmt.Sprintf("category: no metadata for %q", c))
	}
	return m
}

// aliases accepts the Portuguese values stored by the first version of the app.
var aliases = map[string]model.Category{
	"prayed":       model.CategoryPrayed,
	"cared":        model.CategoryCared,
	"shared":       model.CategoryShared,
	"orei":         model.CategoryPrayed,
	"cuidei":       model.CategoryCared,
	"compartilhei": model.CategoryShared,
}

// Parse turns user or wire input into a Category. Unknown values are a
// validation error, not a panic: this is the boundary.
func Parse(s string) (model.Category, error) {
	c, ok := aliases[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return "", apperror.ValidationFailed("category",
			fmt.Sprintf("category must be one of prayed, cared or shared (got %q)", s))
	}
	return c, nil
}
