// Package auction coordinates the live card auction: session state, bid
// acceptance, round and game-start timers, settlement and finalization
// against the ledger contract, and reconciliation after restarts.
package auction

import (
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/cardbid/auctioneer/internal/cards"
)

type State string

const (
	StateNotStarted State = "not_started"
	StateInProgress State = "in_progress"
	StateFinished   State = "finished"
)

// NoWinner is reported to the ledger when no player holds a scorable hand.
var NoWinner = common.Address{}

type HighestBid struct {
	Amount uint64          `json:"amount"`
	Bidder *common.Address `json:"bidder"`
}

// session is the single live auction. It is only touched with
// Coordinator.mu held.
type session struct {
	id         uint64
	state      State
	round      int
	totalCards int
	cards      []*cards.Card
	cardIndex  int
	highest    HighestBid
	settling   bool

	won    map[common.Address][]*cards.Card
	prices map[int]uint64
	nonces map[common.Address]map[uint64]bool
	known  map[common.Address]bool
}

func newSession(id uint64, seq []*cards.Card) *session {
	return &session{
		id:         id,
		state:      StateInProgress,
		round:      1,
		totalCards: len(seq),
		cards:      seq,
		cardIndex:  0,
		won:        make(map[common.Address][]*cards.Card),
		prices:     make(map[int]uint64),
		nonces:     make(map[common.Address]map[uint64]bool),
		known:      make(map[common.Address]bool),
	}
}

func (s *session) currentCard() *cards.Card {
	if s == nil || s.state != StateInProgress || s.cardIndex >= len(s.cards) {
		return nil
	}
	return s.cards[s.cardIndex]
}

func (s *session) accepting() bool {
	return s != nil && s.state == StateInProgress && !s.settling && s.currentCard() != nil
}

// BidEntry is an accepted bid. Entries are append-only per session and round.
type BidEntry struct {
	ID        string         `json:"id"`
	SessionID uint64         `json:"sessionId"`
	Round     int            `json:"round"`
	CardID    int            `json:"cardId"`
	Bidder    common.Address `json:"bidder"`
	Amount    uint64         `json:"amount"`
	Nonce     uint64         `json:"nonce"`
	PlacedAt  time.Time      `json:"placedAt"`
}

type WonCard struct {
	Card  *cards.Card `json:"card"`
	Price uint64      `json:"price"`
}

// PlayerRecord is derived on demand from the won-cards map and the ledger.
type PlayerRecord struct {
	Address common.Address `json:"address"`
	Balance uint64         `json:"balance"`
	Won     []WonCard      `json:"won"`
	Power   cards.Power    `json:"power"`
}

// Status is a point-in-time copy of the session and both countdowns.
type Status struct {
	SessionID           uint64        `json:"sessionId"`
	State               State         `json:"state"`
	Round               int           `json:"round"`
	TotalCards          int           `json:"totalCards"`
	CardIndex           int           `json:"cardIndex"`
	CurrentCard         *cards.Card   `json:"currentCard"`
	Cards               []*cards.Card `json:"cards"`
	HighestBid          HighestBid    `json:"highestBid"`
	Settling            bool          `json:"settling"`
	RoundEndsInSeconds  *int          `json:"roundEndsInSeconds"`
	GameStartsInSeconds *int          `json:"gameStartsInSeconds"`
}

type StartStatus string

const (
	StartWaiting StartStatus = "waiting"
	StartReady   StartStatus = "ready"
	StartStarted StartStatus = "started"
)

// StartInfo describes the lobby before a game starts.
type StartInfo struct {
	Status              StartStatus      `json:"status"`
	Players             []common.Address `json:"players"`
	PlayerCount         int              `json:"playerCount"`
	MinPlayers          int              `json:"minPlayers"`
	GameStartsInSeconds *int             `json:"gameStartsInSeconds"`
}
