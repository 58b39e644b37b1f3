package server

import (
	"net/http"
	"testing"

	"github.com/cardbid/auctioneer/internal/cards"
)

func TestListCards(t *testing.T) {
	r := newTestRouter(t, &fakeAuction{})

	rec := doJSON(t, r, http.MethodGet, "/api/cards", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := decode[[]cards.Card](t, rec); len(got) != 3 {
		t.Errorf("got %d cards, want 3", len(got))
	}

	rec = doJSON(t, r, http.MethodGet, "/api/cards?type=attacker", nil)
	got := decode[[]cards.Card](t, rec)
	if len(got) != 1 || got[0].Name != "Raider" {
		t.Errorf("attackers = %+v", got)
	}

	rec = doJSON(t, r, http.MethodGet, "/api/cards?type=wizard", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown type: status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestGetCard(t *testing.T) {
	r := newTestRouter(t, &fakeAuction{})

	tests := []struct {
		path       string
		wantStatus int
	}{
		{"/api/cards/3", http.StatusOK},
		{"/api/cards/99", http.StatusNotFound},
		{"/api/cards/x", http.StatusBadRequest},
	}
	for _, tt := range tests {
		rec := doJSON(t, r, http.MethodGet, tt.path, nil)
		if rec.Code != tt.wantStatus {
			t.Errorf("%s: status = %d, want %d", tt.path, rec.Code, tt.wantStatus)
			continue
		}
		if tt.wantStatus == http.StatusOK {
			if got := decode[cards.Card](t, rec); got.Name != "Bulwark" {
				t.Errorf("card = %+v", got)
			}
		}
	}
}
