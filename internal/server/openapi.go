package server

import (
	"encoding/json"
	"net/http"

	openapi "github.com/swaggest/openapi-go"
	"github.com/swaggest/openapi-go/openapi3"

	"github.com/cardbid/auctioneer/internal/auction"
	"github.com/cardbid/auctioneer/internal/cards"
	"github.com/cardbid/auctioneer/internal/store"
)

// ErrorResponse is returned for all error responses except bid rejections.
type ErrorResponse struct {
	Error string `json:"error"`
}

type healthResult struct {
	Status string `json:"status"`
}

type sessionPath struct {
	SessionID uint64 `path:"sessionID"`
}

type bidsPath struct {
	SessionID uint64 `path:"sessionID"`
	Round     int    `path:"round"`
}

type cardPath struct {
	CardID int `path:"cardID"`
}

type cardsQuery struct {
	Type cards.Type `query:"type" enum:"sentinel,attacker,defender,strategist"`
}

type chatListRequest struct {
	SessionID uint64 `path:"sessionID"`
	Limit     int    `query:"limit" minimum:"1" maximum:"200"`
}

type chatPostRequest struct {
	SessionID uint64 `path:"sessionID"`
	ChatRequest
}

func newOpenAPISpec() *openapi3.Spec {
	r := openapi3.NewReflector()
	r.Spec.Info.Title = "Auctioneer API"
	r.Spec.Info.Version = "0.1.0"
	r.Spec.Info.WithDescription("Coordinator for the on-chain card auction.")

	// GET /healthz
	getHealthz, _ := r.NewOperationContext(http.MethodGet, "/healthz")
	getHealthz.SetSummary("Health check")
	getHealthz.SetDescription("Reports sqlite, ledger and redis reachability.")
	getHealthz.AddRespStructure(map[string]healthResult{}, openapi.WithHTTPStatus(http.StatusOK))
	getHealthz.AddRespStructure(map[string]healthResult{}, openapi.WithHTTPStatus(http.StatusServiceUnavailable))
	_ = r.AddOperation(getHealthz)

	// GET /ws
	getWS, _ := r.NewOperationContext(http.MethodGet, "/ws")
	getWS.SetSummary("Notification stream (WebSocket)")
	getWS.SetDescription("Upgrades to a WebSocket that carries one JSON notification per text message.")
	getWS.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusSwitchingProtocols),
		openapi.WithContentType("text/plain"))
	_ = r.AddOperation(getWS)

	// GET /api/game/status
	getStatus, _ := r.NewOperationContext(http.MethodGet, "/api/game/status")
	getStatus.SetSummary("Auction status")
	getStatus.SetDescription("Current session, card, highest bid and countdowns.")
	getStatus.AddRespStructure(auction.Status{}, openapi.WithHTTPStatus(http.StatusOK))
	_ = r.AddOperation(getStatus)

	// GET /api/game/start-info
	getStartInfo, _ := r.NewOperationContext(http.MethodGet, "/api/game/start-info")
	getStartInfo.SetSummary("Lobby status")
	getStartInfo.SetDescription("Registered players and the automatic start countdown.")
	getStartInfo.AddRespStructure(auction.StartInfo{}, openapi.WithHTTPStatus(http.StatusOK))
	_ = r.AddOperation(getStartInfo)

	// GET /api/game/players
	getPlayers, _ := r.NewOperationContext(http.MethodGet, "/api/game/players")
	getPlayers.SetSummary("Player standings")
	getPlayers.SetDescription("Balances, won cards and power for every player of the current session.")
	getPlayers.AddRespStructure([]auction.PlayerRecord{}, openapi.WithHTTPStatus(http.StatusOK))
	getPlayers.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	getPlayers.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadGateway))
	_ = r.AddOperation(getPlayers)

	// POST /api/game/start
	postStart, _ := r.NewOperationContext(http.MethodPost, "/api/game/start")
	postStart.SetSummary("Start game")
	postStart.SetDescription("Starts a session on the ledger now instead of waiting for the countdown.")
	postStart.AddRespStructure(auction.Status{}, openapi.WithHTTPStatus(http.StatusOK))
	postStart.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusConflict))
	postStart.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadGateway))
	_ = r.AddOperation(postStart)

	// GET /api/game/events
	getEvents, _ := r.NewOperationContext(http.MethodGet, "/api/game/events")
	getEvents.SetSummary("SSE event stream")
	getEvents.SetDescription("Server-Sent Events stream of auction notifications.")
	getEvents.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusOK),
		openapi.WithContentType("text/event-stream"))
	_ = r.AddOperation(getEvents)

	// POST /api/bids
	postBid, _ := r.NewOperationContext(http.MethodPost, "/api/bids")
	postBid.SetSummary("Submit bid")
	postBid.SetDescription("Submits a signed bid for the current card.")
	postBid.AddReqStructure(auction.BidRequest{})
	postBid.AddRespStructure(BidResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	postBid.AddRespStructure(BidResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	postBid.AddRespStructure(BidResponse{}, openapi.WithHTTPStatus(http.StatusConflict))
	postBid.AddRespStructure(BidResponse{}, openapi.WithHTTPStatus(http.StatusUnprocessableEntity))
	postBid.AddRespStructure(BidResponse{}, openapi.WithHTTPStatus(http.StatusServiceUnavailable))
	_ = r.AddOperation(postBid)

	// GET /api/bids/{sessionID}/{round}
	getBids, _ := r.NewOperationContext(http.MethodGet, "/api/bids/{sessionID}/{round}")
	getBids.SetSummary("Bid history")
	getBids.SetDescription("Accepted bids for one round, oldest first.")
	getBids.AddReqStructure(bidsPath{})
	getBids.AddRespStructure([]auction.BidEntry{}, openapi.WithHTTPStatus(http.StatusOK))
	getBids.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	_ = r.AddOperation(getBids)

	// GET /api/cards
	listCards, _ := r.NewOperationContext(http.MethodGet, "/api/cards")
	listCards.SetSummary("Card catalog")
	listCards.AddReqStructure(cardsQuery{})
	listCards.AddRespStructure([]cards.Card{}, openapi.WithHTTPStatus(http.StatusOK))
	listCards.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	_ = r.AddOperation(listCards)

	// GET /api/cards/{cardID}
	getCard, _ := r.NewOperationContext(http.MethodGet, "/api/cards/{cardID}")
	getCard.SetSummary("Get card")
	getCard.AddReqStructure(cardPath{})
	getCard.AddRespStructure(cards.Card{}, openapi.WithHTTPStatus(http.StatusOK))
	getCard.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(getCard)

	// GET /api/chat/{sessionID}
	getChat, _ := r.NewOperationContext(http.MethodGet, "/api/chat/{sessionID}")
	getChat.SetSummary("Chat history")
	getChat.SetDescription("Latest chat lines of a session, oldest first.")
	getChat.AddReqStructure(chatListRequest{})
	getChat.AddRespStructure([]store.ChatMessage{}, openapi.WithHTTPStatus(http.StatusOK))
	getChat.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	_ = r.AddOperation(getChat)

	// POST /api/chat/{sessionID}
	postChat, _ := r.NewOperationContext(http.MethodPost, "/api/chat/{sessionID}")
	postChat.SetSummary("Post chat message")
	postChat.AddReqStructure(chatPostRequest{})
	postChat.AddRespStructure(store.ChatMessage{}, openapi.WithHTTPStatus(http.StatusCreated))
	postChat.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	_ = r.AddOperation(postChat)

	return r.Spec
}

func handleOpenAPI() http.HandlerFunc {
	spec := newOpenAPISpec()
	data, _ := json.MarshalIndent(spec, "", "  ")

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	}
}
