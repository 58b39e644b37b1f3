package auction

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/cardbid/auctioneer/internal/cards"
)

const (
	NotifyHighestBid   = "highest_bid_updated"
	NotifyGameStarted  = "game_started"
	NotifyRoundStarted = "round_started"
	NotifyGameFinished = "game_finished"
	NotifyPlayerJoined = "player_joined"
	NotifyPlayerLeft   = "player_left"
)

// Notification is broadcast to subscribers after a state transition.
type Notification struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Notifier delivers notifications at most once, best effort. Notify must
// not block.
type Notifier interface {
	Notify(n Notification)
}

type HighestBidData struct {
	Amount uint64         `json:"amount"`
	Bidder common.Address `json:"bidder"`
}

type GameStartedData struct {
	SessionID  uint64      `json:"sessionId"`
	TotalCards int         `json:"totalCards"`
	FirstCard  *cards.Card `json:"firstCard"`
}

type RoundStartedData struct {
	SessionID uint64      `json:"sessionId"`
	Round     int         `json:"round"`
	Card      *cards.Card `json:"card"`
}

type GameFinishedData struct {
	SessionID uint64 `json:"sessionId"`
}

type PlayerData struct {
	Player      common.Address `json:"player"`
	PlayerCount int            `json:"playerCount"`
}

// Notifiers fans a notification out to several notifiers.
type Notifiers []Notifier

func (ns Notifiers) Notify(n Notification) {
	for _, x := range ns {
		x.Notify(n)
	}
}
