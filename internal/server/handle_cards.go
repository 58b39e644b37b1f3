package server

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/cardbid/auctioneer/internal/cards"
)

func handleListCards(catalog *cards.Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if t := cards.Type(r.URL.Query().Get("type")); t != "" {
			if !t.Valid() {
				writeError(w, http.StatusBadRequest, "unknown card type")
				return
			}
			writeJSON(w, http.StatusOK, catalog.ByType(t))
			return
		}
		writeJSON(w, http.StatusOK, catalog.All())
	}
}

func handleGetCard(catalog *cards.Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.Atoi(chi.URLParam(r, "cardID"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid card id")
			return
		}
		card, err := catalog.Card(id)
		if err != nil {
			writeError(w, http.StatusNotFound, "card not found")
			return
		}
		writeJSON(w, http.StatusOK, card)
	}
}
