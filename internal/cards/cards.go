// Package cards holds the static card catalog, the per-session draft and
// the end-of-game power score. Nothing here touches the ledger.
package cards

import "fmt"

type Type string

const (
	Sentinel   Type = "sentinel"
	Attacker   Type = "attacker"
	Defender   Type = "defender"
	Strategist Type = "strategist"
)

// DraftOrder is the order card types appear in a session's sequence.
var DraftOrder = []Type{Sentinel, Attacker, Defender, Strategist}

func (t Type) Valid() bool {
	switch t {
	case Sentinel, Attacker, Defender, Strategist:
		return true
	}
	return false
}

// Card is immutable once loaded. Other packages hold *Card references
// into the catalog and never copy-and-modify them.
type Card struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Image    string `json:"image"`
	Type     Type   `json:"type"`
	Attack   int    `json:"attack"`
	Defense  int    `json:"defense"`
	Strategy int    `json:"strategy"`
}

func (c *Card) String() string {
	return fmt.Sprintf("%s#%d(%s)", c.Type, c.ID, c.Name)
}

// Counts is how many cards of each type a session needs.
type Counts struct {
	Sentinels   int `json:"sentinels"`
	Attackers   int `json:"attackers"`
	Defenders   int `json:"defenders"`
	Strategists int `json:"strategists"`
}

func (c Counts) Total() int {
	return c.Sentinels + c.Attackers + c.Defenders + c.Strategists
}

func (c Counts) of(t Type) int {
	switch t {
	case Sentinel:
		return c.Sentinels
	case Attacker:
		return c.Attackers
	case Defender:
		return c.Defenders
	case Strategist:
		return c.Strategists
	}
	return 0
}

// Needed returns the per-type card counts for a game with playerCount
// players: ceil(n/2) sentinels, 2n attackers, 2n defenders, n strategists.
func Needed(playerCount int) Counts {
	if playerCount <= 0 {
		return Counts{}
	}
	return Counts{
		Sentinels:   (playerCount + 1) / 2,
		Attackers:   playerCount * 2,
		Defenders:   playerCount * 2,
		Strategists: playerCount,
	}
}

// countsForTotal returns the counts of the smallest player count whose
// total covers total.
func countsForTotal(total int) Counts {
	if total <= 0 {
		return Counts{}
	}
	n := 1
	for Needed(n).Total() < total {
		n++
	}
	return Needed(n)
}
