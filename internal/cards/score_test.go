package cards

import "testing"

func hand(stats ...[3]int) []*Card {
	out := make([]*Card, len(stats))
	for i, s := range stats {
		out[i] = &Card{ID: i + 1, Attack: s[0], Defense: s[1], Strategy: s[2]}
	}
	return out
}

func TestComputePower(t *testing.T) {
	tests := []struct {
		name string
		hand []*Card
		want Power
	}{
		{
			name: "too few cards",
			hand: hand([3]int{10, 10, 10}, [3]int{10, 10, 10}, [3]int{10, 10, 10}, [3]int{10, 10, 10}),
			want: Power{},
		},
		{
			name: "distinct picks",
			hand: hand([3]int{10, 1, 1}, [3]int{8, 2, 2}, [3]int{1, 9, 3}, [3]int{2, 7, 4}, [3]int{3, 3, 5}),
			want: Power{Power: 74.5, Valid: true, Breakdown: Breakdown{Attack: 90, Defense: 80, Strategy: 50}},
		},
		{
			name: "ties keep hand order",
			hand: hand([3]int{5, 5, 1}, [3]int{5, 4, 2}, [3]int{5, 3, 3}, [3]int{1, 1, 9}, [3]int{1, 2, 4}),
			want: Power{Power: 53.25, Valid: true, Breakdown: Breakdown{Attack: 50, Defense: 25, Strategy: 90}},
		},
		{
			name: "extra cards ignored after strategist",
			hand: hand([3]int{7, 0, 0}, [3]int{6, 0, 0}, [3]int{0, 7, 0}, [3]int{0, 6, 0}, [3]int{0, 0, 3}, [3]int{0, 0, 10}),
			want: Power{Power: 54.5, Valid: true, Breakdown: Breakdown{Attack: 65, Defense: 65, Strategy: 30}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputePower(tt.hand)
			if got != tt.want {
				t.Errorf("ComputePower = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestComputePowerIsPure(t *testing.T) {
	h := hand([3]int{9, 3, 2}, [3]int{4, 8, 1}, [3]int{4, 8, 7}, [3]int{2, 2, 2}, [3]int{6, 1, 9}, [3]int{3, 5, 4})
	first := ComputePower(h)
	second := ComputePower(h)
	if first != second {
		t.Fatalf("results differ: %+v vs %+v", first, second)
	}
	if h[0].Attack != 9 || h[1].ID != 2 {
		t.Error("input hand was modified")
	}
}
