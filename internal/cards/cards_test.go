package cards

import (
	"errors"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"
)

func testCatalog(t *testing.T, perType map[Type]int) *Catalog {
	t.Helper()
	var defs []Card
	id := 1
	for _, typ := range DraftOrder {
		for i := 0; i < perType[typ]; i++ {
			defs = append(defs, Card{ID: id, Name: string(typ), Type: typ, Attack: i, Defense: i, Strategy: i})
			id++
		}
	}
	c, err := NewCatalog(defs)
	if err != nil {
		t.Fatalf("building catalog: %v", err)
	}
	return c
}

func TestNeeded(t *testing.T) {
	tests := []struct {
		players int
		want    Counts
		total   int
	}{
		{1, Counts{1, 2, 2, 1}, 6},
		{2, Counts{1, 4, 4, 2}, 11},
		{3, Counts{2, 6, 6, 3}, 17},
		{4, Counts{2, 8, 8, 4}, 22},
		{5, Counts{3, 10, 10, 5}, 28},
	}
	for _, tt := range tests {
		got := Needed(tt.players)
		if got != tt.want {
			t.Errorf("Needed(%d) = %+v, want %+v", tt.players, got, tt.want)
		}
		if got.Total() != tt.total {
			t.Errorf("Needed(%d).Total() = %d, want %d", tt.players, got.Total(), tt.total)
		}
	}
	if got := Needed(0); got.Total() != 0 {
		t.Errorf("Needed(0).Total() = %d, want 0", got.Total())
	}
}

func TestLoadCatalog(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cards.json")
	body := `[
		{"id": 1, "name": "Warden", "type": "sentinel", "attack": 5, "defense": 6, "strategy": 7},
		{"id": 2, "name": "Lancer", "type": "attacker", "attack": 9, "defense": 2, "strategy": 1}
	]`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	c, err := LoadCatalog(path)
	if err != nil {
		t.Fatalf("LoadCatalog: %v", err)
	}
	card, err := c.Card(2)
	if err != nil {
		t.Fatalf("Card(2): %v", err)
	}
	if card.Name != "Lancer" || card.Type != Attacker {
		t.Errorf("Card(2) = %+v", card)
	}
	if got := len(c.ByType(Sentinel)); got != 1 {
		t.Errorf("sentinels = %d, want 1", got)
	}
	if _, err := c.Card(99); err == nil {
		t.Error("Card(99): expected error")
	}
}

func TestLoadCatalogErrors(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name string
		body string
	}{
		{"malformed", `{not json`},
		{"unknown type", `[{"id": 1, "type": "wizard"}]`},
		{"duplicate id", `[{"id": 1, "type": "sentinel"}, {"id": 1, "type": "attacker"}]`},
		{"empty", `[]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name+".json")
			os.WriteFile(path, []byte(tt.body), 0o600)
			if _, err := LoadCatalog(path); err == nil {
				t.Fatal("expected error")
			}
		})
	}

	if _, err := LoadCatalog(filepath.Join(dir, "missing.json")); err == nil {
		t.Error("missing file: expected error")
	}
}

func TestShippedCatalogSupportsSixPlayers(t *testing.T) {
	c, err := LoadCatalog("../../data/cards.json")
	if err != nil {
		t.Fatalf("LoadCatalog: %v", err)
	}
	if _, err := NewDrafter(c, nil).Draft(Needed(6).Total()); err != nil {
		t.Fatalf("Draft for 6 players: %v", err)
	}
}

func TestDraftTypeOrder(t *testing.T) {
	c := testCatalog(t, map[Type]int{Sentinel: 4, Attacker: 10, Defender: 10, Strategist: 5})
	d := NewDrafter(c, rand.New(rand.NewPCG(1, 2)))

	seq, err := d.Draft(17)
	if err != nil {
		t.Fatalf("Draft: %v", err)
	}
	if len(seq) != 17 {
		t.Fatalf("len = %d, want 17", len(seq))
	}

	want := Needed(3)
	got := map[Type]int{}
	seen := map[int]bool{}
	rank := map[Type]int{Sentinel: 0, Attacker: 1, Defender: 2, Strategist: 3}
	for i, card := range seq {
		got[card.Type]++
		if seen[card.ID] {
			t.Errorf("card %d drafted twice", card.ID)
		}
		seen[card.ID] = true
		if i > 0 && rank[seq[i-1].Type] > rank[card.Type] {
			t.Errorf("position %d: %s after %s", i, card.Type, seq[i-1].Type)
		}
	}
	if got[Sentinel] != want.Sentinels || got[Attacker] != want.Attackers ||
		got[Defender] != want.Defenders || got[Strategist] != want.Strategists {
		t.Errorf("type counts = %v, want %+v", got, want)
	}
}

func TestDraftTruncates(t *testing.T) {
	c := testCatalog(t, map[Type]int{Sentinel: 2, Attacker: 6, Defender: 6, Strategist: 3})
	seq, err := NewDrafter(c, nil).Draft(12)
	if err != nil {
		t.Fatalf("Draft: %v", err)
	}
	if len(seq) != 12 {
		t.Fatalf("len = %d, want 12", len(seq))
	}
	if seq[11].Type != Defender {
		t.Errorf("last card type = %s, want defender", seq[11].Type)
	}
}

func TestDraftInsufficientCatalog(t *testing.T) {
	c := testCatalog(t, map[Type]int{Sentinel: 2, Attacker: 3, Defender: 6, Strategist: 3})
	_, err := NewDrafter(c, nil).Draft(17)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, ErrInsufficientCatalog) {
		t.Errorf("err = %v, want ErrInsufficientCatalog", err)
	}
}

func TestOrderedIsDeterministic(t *testing.T) {
	c := testCatalog(t, map[Type]int{Sentinel: 3, Attacker: 8, Defender: 8, Strategist: 4})
	a, err := c.Ordered(17)
	if err != nil {
		t.Fatalf("Ordered: %v", err)
	}
	b, _ := c.Ordered(17)
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("position %d differs: %v vs %v", i, a[i], b[i])
		}
	}
	if a[0].ID != 1 {
		t.Errorf("first card = %d, want 1", a[0].ID)
	}
}
