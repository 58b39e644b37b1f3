package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"github.com/cardbid/auctioneer/internal/auction"
	"github.com/cardbid/auctioneer/internal/store"
)

// NotifyChatMessage is published to stream clients for each new chat line.
const NotifyChatMessage = "chat_message"

const (
	defaultChatLimit = 50
	maxChatLimit     = 200
)

type ChatStore interface {
	PostMessage(ctx context.Context, sessionID uint64, sender common.Address, body string) (store.ChatMessage, error)
	ListMessages(ctx context.Context, sessionID uint64, limit int) ([]store.ChatMessage, error)
}

type ChatRequest struct {
	Sender string `json:"sender"`
	Body   string `json:"body"`
}

func handleListChat(logger *slog.Logger, chat ChatStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := sessionFrom(r)
		limit := defaultChatLimit
		if s := r.URL.Query().Get("limit"); s != "" {
			var err error
			limit, err = strconv.Atoi(s)
			if err != nil || limit < 1 {
				writeError(w, http.StatusBadRequest, "invalid limit")
				return
			}
			limit = min(limit, maxChatLimit)
		}

		msgs, err := chat.ListMessages(r.Context(), sessionID, limit)
		if err != nil {
			logger.Error("listing chat", "session", sessionID, "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, msgs)
	}
}

func handlePostChat(logger *slog.Logger, chat ChatStore, notifier auction.Notifier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := sessionFrom(r)
		var req ChatRequest
		if err := readJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if !common.IsHexAddress(req.Sender) {
			writeError(w, http.StatusBadRequest, "invalid sender address")
			return
		}

		msg, err := chat.PostMessage(r.Context(), sessionID, common.HexToAddress(req.Sender), req.Body)
		if errors.Is(err, store.ErrInvalidMessage) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if err != nil {
			logger.Error("posting chat", "session", sessionID, "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		notifier.Notify(auction.Notification{Type: NotifyChatMessage, Data: msg})
		writeJSON(w, http.StatusCreated, msg)
	}
}
