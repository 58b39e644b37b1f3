package cards

import (
	"errors"
	"fmt"
	"math/rand/v2"
)

var ErrInsufficientCatalog = errors.New("insufficient cards in catalog")

// Drafter draws the card sequence for a session.
type Drafter struct {
	catalog *Catalog
	rng     *rand.Rand
}

// NewDrafter returns a Drafter over catalog. A nil rng uses the global
// source.
func NewDrafter(catalog *Catalog, rng *rand.Rand) *Drafter {
	return &Drafter{catalog: catalog, rng: rng}
}

// Draft returns total cards: for each type in DraftOrder a uniform shuffle
// of that type's catalog subset, the first Needed(n) of each kept, the
// types concatenated and the result truncated to total. A type with too few
// cards fails the draft rather than silently drawing fewer.
func (d *Drafter) Draft(total int) ([]*Card, error) {
	return d.draw(total, d.shuffle)
}

// Ordered is the deterministic variant of Draft: each type contributes its
// first cards in catalog order.
func (c *Catalog) Ordered(total int) ([]*Card, error) {
	d := &Drafter{catalog: c}
	return d.draw(total, func([]*Card) {})
}

func (d *Drafter) draw(total int, permute func([]*Card)) ([]*Card, error) {
	if total <= 0 {
		return nil, nil
	}
	counts := countsForTotal(total)

	seq := make([]*Card, 0, counts.Total())
	for _, t := range DraftOrder {
		want := counts.of(t)
		pool := d.catalog.ByType(t)
		if len(pool) < want {
			return nil, fmt.Errorf("%s: have %d, need %d: %w", t, len(pool), want, ErrInsufficientCatalog)
		}
		permute(pool)
		seq = append(seq, pool[:want]...)
	}
	return seq[:total], nil
}

func (d *Drafter) shuffle(pool []*Card) {
	swap := func(i, j int) { pool[i], pool[j] = pool[j], pool[i] }
	if d.rng != nil {
		d.rng.Shuffle(len(pool), swap)
		return
	}
	rand.Shuffle(len(pool), swap)
}
