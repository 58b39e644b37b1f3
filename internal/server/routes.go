package server

import (
	"github.com/go-chi/chi/v5"
	"github.com/swaggest/swgui/v5emb"

	"github.com/cardbid/auctioneer/internal/handler/health"
)

func addRoutes(r chi.Router, deps Deps) {
	r.Get("/openapi.json", handleOpenAPI())
	r.Mount("/docs", v5emb.New("Auctioneer API", "/openapi.json", "/docs"))
	r.Mount("/healthz", health.NewHandler(deps.Logger, deps.Checks).Routes())
	r.Get("/ws", handleWS(deps.Logger, deps.Broker))

	r.Route("/api", func(r chi.Router) {
		r.Get("/game/status", handleStatus(deps.Auction))
		r.Get("/game/start-info", handleStartInfo(deps.Auction))
		r.Get("/game/players", handlePlayers(deps.Logger, deps.Auction))
		r.With(operatorAuthMiddleware(deps.OperatorToken)).
			Post("/game/start", handleStart(deps.Logger, deps.Auction))
		r.Get("/game/events", handleEvents(deps.Broker))

		r.Post("/bids", handleSubmitBid(deps.Logger, deps.Auction))
		r.With(sessionMiddleware).
			Get("/bids/{sessionID}/{round}", handleListBids(deps.Logger, deps.Auction))

		r.Get("/cards", handleListCards(deps.Catalog))
		r.Get("/cards/{cardID}", handleGetCard(deps.Catalog))

		r.Route("/chat/{sessionID}", func(r chi.Router) {
			r.Use(sessionMiddleware)
			r.Get("/", handleListChat(deps.Logger, deps.Chat))
			r.Post("/", handlePostChat(deps.Logger, deps.Chat, deps.notifier()))
		})
	})
	if deps.ClientDir != "" {
		r.Get("/*", handleClient(deps.ClientDir))
	}
}
