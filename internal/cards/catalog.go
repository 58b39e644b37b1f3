package cards

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"slices"
)

var ErrUnknownCard = errors.New("unknown card")

// Catalog indexes the card definitions by type and by id.
type Catalog struct {
	byType map[Type][]*Card
	byID   map[int]*Card
	all    []*Card
}

// LoadCatalog reads a JSON array of cards from path.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading card catalog: %w", err)
	}
	var defs []Card
	if err := json.Unmarshal(data, &defs); err != nil {
		return nil, fmt.Errorf("decoding card catalog %s: %w", path, err)
	}
	return NewCatalog(defs)
}

// NewCatalog validates defs and builds the indexes. Catalog order within a
// type is the order of defs.
func NewCatalog(defs []Card) (*Catalog, error) {
	c := &Catalog{
		byType: make(map[Type][]*Card, len(DraftOrder)),
		byID:   make(map[int]*Card, len(defs)),
		all:    make([]*Card, 0, len(defs)),
	}
	for i := range defs {
		card := defs[i]
		if !card.Type.Valid() {
			return nil, fmt.Errorf("card %d: unknown type %q", card.ID, card.Type)
		}
		if _, dup := c.byID[card.ID]; dup {
			return nil, fmt.Errorf("card %d: duplicate id", card.ID)
		}
		p := &card
		c.byID[p.ID] = p
		c.byType[p.Type] = append(c.byType[p.Type], p)
		c.all = append(c.all, p)
	}
	if len(c.all) == 0 {
		return nil, errors.New("card catalog is empty")
	}
	return c, nil
}

func (c *Catalog) Card(id int) (*Card, error) {
	card, ok := c.byID[id]
	if !ok {
		return nil, fmt.Errorf("card %d: %w", id, ErrUnknownCard)
	}
	return card, nil
}

// ByType returns the catalog subset for t. The returned slice is a copy.
func (c *Catalog) ByType(t Type) []*Card {
	return slices.Clone(c.byType[t])
}

func (c *Catalog) All() []*Card {
	return slices.Clone(c.all)
}
