package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/cardbid/auctioneer/internal/auction"
)

// Auction is the coordinator surface the HTTP layer serves.
type Auction interface {
	Status() auction.Status
	StartInfo() auction.StartInfo
	Players(ctx context.Context) ([]auction.PlayerRecord, error)
	Start(ctx context.Context) error
	SubmitBid(ctx context.Context, req auction.BidRequest) (auction.BidEntry, error)
	Bids(ctx context.Context, sessionID uint64, round int) ([]auction.BidEntry, error)
}

func handleStatus(a Auction) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, a.Status())
	}
}

func handleStartInfo(a Auction) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, a.StartInfo())
	}
}

func handlePlayers(logger *slog.Logger, a Auction) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		players, err := a.Players(r.Context())
		if errors.Is(err, auction.ErrNoSession) {
			writeError(w, http.StatusNotFound, "no game in progress")
			return
		}
		if err != nil {
			logger.Error("listing players", "error", err)
			writeError(w, http.StatusBadGateway, "ledger unavailable")
			return
		}
		writeJSON(w, http.StatusOK, players)
	}
}

// handleStart is the external start signal. The ledger transaction runs to
// completion even if the caller goes away.
func handleStart(logger *slog.Logger, a Auction) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := a.Start(context.WithoutCancel(r.Context()))
		switch {
		case errors.Is(err, auction.ErrAlreadyStarted):
			writeError(w, http.StatusConflict, "game already in progress")
		case errors.Is(err, auction.ErrNotEnoughPlayers):
			writeError(w, http.StatusConflict, err.Error())
		case err != nil:
			logger.Error("starting game", "error", err)
			writeError(w, http.StatusBadGateway, "could not start game")
		default:
			writeJSON(w, http.StatusOK, a.Status())
		}
	}
}
