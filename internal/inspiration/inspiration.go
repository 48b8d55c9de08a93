// Package inspiration serves the curated gift ideas shown next to the registry.
package inspiration

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"strings"
)

// All selects every card in Filter.
const All = "all"

//go:embed inspiration.json
var defaultCards []byte

// Card is one inspiration idea. Groups are the filter tags it appears under.
type Card struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Tag         string   `json:"tag"`
	Price       float64  `json:"price"`
	Link        string   `json:"link"`
	Groups      []string `json:"groups"`
}

type Catalog struct {
	cards []Card
}

// Default returns the built-in catalog.
func Default() (*Catalog, error) {
	return Parse(defaultCards)
}

// Load reads a catalog from path, or returns the built-in one when path is empty.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read inspiration file: %w", err)
	}
	return Parse(b)
}

// Parse decodes a JSON array of cards.
func Parse(b []byte) (*Catalog, error) {
	var cards []Card
	if err := json.Unmarshal(b, &cards); err != nil {
		return nil, fmt.Errorf("decode inspiration cards: %w", err)
	}
	for i := range cards {
		if cards[i].Groups == nil {
			cards[i].Groups = []string{}
		}
	}
	return &Catalog{cards: cards}, nil
}

// Filter returns the cards tagged with group, or every card for "all" and "".
func (c *Catalog) Filter(group string) []Card {
	group = strings.ToLower(strings.TrimSpace(group))
	out := make([]Card, 0, len(c.cards))
	for _, card := range c.cards {
		if group == "" || group == All || slices.Contains(card.Groups, group) {
			out = append(out, card)
		}
	}
	return out
}

// Groups lists every filter tag once, in first-seen order.
func (c *Catalog) Groups() []string {
	var out []string
	for _, card := range c.cards {
		for _, g := range card.Groups {
			if !slices.Contains(out, g) {
				out = append(out, g)
			}
		}
	}
	return out
}
