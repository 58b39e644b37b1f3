package cards

import (
	"slices"

	"github.com/shopspring/decimal"
)

// MinHand is the smallest hand that can be scored.
const MinHand = 5

const (
	attackWeight   = 0.35
	defenseWeight  = 0.35
	strategyWeight = 0.30
)

type Breakdown struct {
	Attack   float64 `json:"attack"`
	Defense  float64 `json:"defense"`
	Strategy float64 `json:"strategy"`
}

type Power struct {
	Power     float64   `json:"power"`
	Valid     bool      `json:"valid"`
	Breakdown Breakdown `json:"breakdown"`
}

// ComputePower scores a finished hand. The two highest-attack cards count
// as attackers, the two highest-defense of the rest as defenders, and the
// first card left after that as the strategist. Ties keep hand order.
func ComputePower(hand []*Card) Power {
	if len(hand) < MinHand {
		return Power{}
	}

	rest := slices.Clone(hand)
	attackers, rest := takeTop(rest, 2, func(c *Card) int { return c.Attack })
	defenders, rest := takeTop(rest, 2, func(c *Card) int { return c.Defense })

	var attack, defense, strategy int
	for _, c := range attackers {
		attack += c.Attack
	}
	for _, c := range defenders {
		defense += c.Defense
	}
	if len(rest) > 0 {
		strategy = rest[0].Strategy
	}

	b := Breakdown{
		Attack:   float64(attack) / 20 * 100,
		Defense:  float64(defense) / 20 * 100,
		Strategy: float64(strategy) / 10 * 100,
	}
	power := attackWeight*b.Attack + defenseWeight*b.Defense + strategyWeight*b.Strategy

	return Power{
		Power: round2(power),
		Valid: true,
		Breakdown: Breakdown{
			Attack:   round2(b.Attack),
			Defense:  round2(b.Defense),
			Strategy: round2(b.Strategy),
		},
	}
}

// takeTop removes the n cards with the highest stat from cards, keeping
// original order on ties, and returns them with what is left.
func takeTop(cards []*Card, n int, stat func(*Card) int) (top, rest []*Card) {
	idx := make([]int, len(cards))
	for i := range idx {
		idx[i] = i
	}
	slices.SortStableFunc(idx, func(a, b int) int {
		return stat(cards[b]) - stat(cards[a])
	})
	if n > len(idx) {
		n = len(idx)
	}

	picked := make(map[int]bool, n)
	for _, i := range idx[:n] {
		picked[i] = true
		top = append(top, cards[i])
	}
	for i, c := range cards {
		if !picked[i] {
			rest = append(rest, c)
		}
	}
	return top, rest
}

func round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}
