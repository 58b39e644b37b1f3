package auction

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
)

// LedgerState mirrors the contract's game state enum.
type LedgerState uint8

const (
	LedgerNotStarted LedgerState = 0
	LedgerInProgress LedgerState = 1
	LedgerFinished   LedgerState = 2
)

func (s LedgerState) String() string {
	switch s {
	case LedgerNotStarted:
		return "not_started"
	case LedgerInProgress:
		return "in_progress"
	case LedgerFinished:
		return "finished"
	}
	return "unknown"
}

// Settlement is one CardSettled event.
type Settlement struct {
	GameID uint64
	CardID int
	Winner common.Address
	Price  uint64
}

type EventKind string

const (
	EventPlayerJoined  EventKind = "PlayerJoined"
	EventPlayerLeft    EventKind = "PlayerLeft"
	EventGameStarted   EventKind = "GameStarted"
	EventCardSettled   EventKind = "CardSettled"
	EventGameFinalized EventKind = "GameFinalized"
)

// LedgerEvent is a decoded contract event. Only the fields relevant to Kind
// are set.
type LedgerEvent struct {
	Kind       EventKind
	GameID     uint64
	Player     common.Address
	TotalCards int
	Settlement Settlement
	Winner     common.Address
	Block      uint64
}

// Ledger is the contract the auction settles against. Every call may be
// slow or fail; writes return once the transaction is confirmed.
type Ledger interface {
	GameState(ctx context.Context) (LedgerState, error)
	GameID(ctx context.Context) (uint64, error)
	Round(ctx context.Context) (int, error)
	TotalCards(ctx context.Context) (int, error)
	Players(ctx context.Context) ([]common.Address, error)
	Balance(ctx context.Context, player common.Address) (uint64, error)

	StartGame(ctx context.Context, totalCards int) error
	SettleCard(ctx context.Context, cardID int, winner common.Address, price uint64) error
	FinalizeGame(ctx context.Context, winner common.Address) error

	// Settlements returns the CardSettled events recorded for gameID in
	// ledger order.
	Settlements(ctx context.Context, gameID uint64) ([]Settlement, error)

	// Subscribe registers fn for contract events until the returned func
	// is called.
	Subscribe(fn func(LedgerEvent)) (unsubscribe func())

	// OnRotate registers fn to run after the client switches endpoints.
	OnRotate(fn func(ctx context.Context))
}

// Chat is the chat collaborator told to drop a finished session's history.
type Chat interface {
	ClearHistory(ctx context.Context, sessionID uint64) error
}

// BidLog persists accepted bids.
type BidLog interface {
	AppendBid(ctx context.Context, bid BidEntry) error
	ListBids(ctx context.Context, sessionID uint64, round int) ([]BidEntry, error)
}

// DraftStore persists the drafted card sequence per session so a restart
// resumes with the same cards.
type DraftStore interface {
	SaveDraft(ctx context.Context, sessionID uint64, cardIDs []int) error
	LoadDraft(ctx context.Context, sessionID uint64) ([]int, error)
}
