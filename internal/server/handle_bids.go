package server

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/cardbid/auctioneer/internal/auction"
)

type BidResponse struct {
	OK    bool              `json:"ok"`
	Bid   *auction.BidEntry `json:"bid,omitempty"`
	Error string            `json:"error,omitempty"`
	Code  string            `json:"code,omitempty"`
}

type bidRejection struct {
	err    error
	status int
	code   string
}

var bidRejections = []bidRejection{
	{auction.ErrInvalidParameters, http.StatusBadRequest, "invalid_parameters"},
	{auction.ErrBadSignature, http.StatusBadRequest, "bad_signature"},
	{auction.ErrNotAccepting, http.StatusConflict, "not_accepting"},
	{auction.ErrWrongSession, http.StatusConflict, "wrong_session"},
	{auction.ErrWrongRound, http.StatusConflict, "wrong_round"},
	{auction.ErrWrongCard, http.StatusConflict, "wrong_card"},
	{auction.ErrBidTooLow, http.StatusConflict, "bid_too_low"},
	{auction.ErrDuplicateNonce, http.StatusConflict, "duplicate_nonce"},
	{auction.ErrInsufficientBalance, http.StatusUnprocessableEntity, "insufficient_balance"},
	{auction.ErrBalanceUnavailable, http.StatusServiceUnavailable, "balance_unavailable"},
}

func handleSubmitBid(logger *slog.Logger, a Auction) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req auction.BidRequest
		if err := readJSON(w, r, &req); err != nil {
			writeJSON(w, http.StatusBadRequest, BidResponse{Error: "invalid request body", Code: "invalid_parameters"})
			return
		}

		bid, err := a.SubmitBid(r.Context(), req)
		if err != nil {
			for _, rej := range bidRejections {
				if errors.Is(err, rej.err) {
					writeJSON(w, rej.status, BidResponse{Error: err.Error(), Code: rej.code})
					return
				}
			}
			logger.Error("submitting bid", "error", err)
			writeJSON(w, http.StatusInternalServerError, BidResponse{Error: "internal error", Code: "internal"})
			return
		}

		writeJSON(w, http.StatusOK, BidResponse{OK: true, Bid: &bid})
	}
}

func handleListBids(logger *slog.Logger, a Auction) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := sessionFrom(r)
		round, err := strconv.Atoi(chi.URLParam(r, "round"))
		if err != nil || round < 1 {
			writeError(w, http.StatusBadRequest, "invalid round")
			return
		}

		bids, err := a.Bids(r.Context(), sessionID, round)
		if err != nil {
			logger.Error("listing bids", "session", sessionID, "round", round, "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, bids)
	}
}
