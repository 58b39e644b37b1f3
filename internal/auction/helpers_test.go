package auction

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/cardbid/auctioneer/internal/cards"
)

var errLedgerDown = errors.New("ledger unreachable")

type fakeLedger struct {
	mu          sync.Mutex
	state       LedgerState
	gameID      uint64
	round       int
	total       int
	players     []common.Address
	balances    map[common.Address]uint64
	settlements []Settlement

	stateErr     error
	balanceErr   error
	settleErr    error
	failFinalize int

	startCalls    []int
	finalizeCalls []common.Address
	started       chan int
	finalized     chan common.Address

	subs    map[int]func(LedgerEvent)
	nextSub int
	rotate  []func(context.Context)
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		balances:  make(map[common.Address]uint64),
		started:   make(chan int, 4),
		finalized: make(chan common.Address, 4),
		subs:      make(map[int]func(LedgerEvent)),
	}
}

func (f *fakeLedger) GameState(context.Context) (LedgerState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state, f.stateErr
}

func (f *fakeLedger) GameID(context.Context) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.gameID, nil
}

func (f *fakeLedger) Round(context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.round, nil
}

func (f *fakeLedger) TotalCards(context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.total, nil
}

func (f *fakeLedger) Players(context.Context) ([]common.Address, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]common.Address(nil), f.players...), nil
}

func (f *fakeLedger) Balance(_ context.Context, p common.Address) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.balanceErr != nil {
		return 0, f.balanceErr
	}
	return f.balances[p], nil
}

func (f *fakeLedger) StartGame(_ context.Context, total int) error {
	f.mu.Lock()
	f.gameID++
	f.state = LedgerInProgress
	f.total = total
	f.round = 1
	f.startCalls = append(f.startCalls, total)
	f.mu.Unlock()
	select {
	case f.started <- total:
	default:
	}
	return nil
}

func (f *fakeLedger) SettleCard(_ context.Context, cardID int, winner common.Address, price uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.settleErr != nil {
		return f.settleErr
	}
	f.settlements = append(f.settlements, Settlement{GameID: f.gameID, CardID: cardID, Winner: winner, Price: price})
	f.round++
	if f.round > f.total {
		f.state = LedgerFinished
	}
	return nil
}

func (f *fakeLedger) FinalizeGame(_ context.Context, winner common.Address) error {
	f.mu.Lock()
	if f.failFinalize > 0 {
		f.failFinalize--
		f.mu.Unlock()
		return errLedgerDown
	}
	f.finalizeCalls = append(f.finalizeCalls, winner)
	f.mu.Unlock()
	select {
	case f.finalized <- winner:
	default:
	}
	return nil
}

func (f *fakeLedger) Settlements(_ context.Context, gameID uint64) ([]Settlement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Settlement
	for _, s := range f.settlements {
		if s.GameID == gameID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeLedger) Subscribe(fn func(LedgerEvent)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextSub
	f.nextSub++
	f.subs[id] = fn
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.subs, id)
	}
}

func (f *fakeLedger) OnRotate(fn func(context.Context)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rotate = append(f.rotate, fn)
}

func (f *fakeLedger) subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

func (f *fakeLedger) settled() []Settlement {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Settlement(nil), f.settlements...)
}

type memBids struct {
	mu      sync.Mutex
	entries []BidEntry
}

func (m *memBids) AppendBid(_ context.Context, b BidEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, b)
	return nil
}

func (m *memBids) ListBids(_ context.Context, sessionID uint64, round int) ([]BidEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []BidEntry
	for _, b := range m.entries {
		if b.SessionID == sessionID && b.Round == round {
			out = append(out, b)
		}
	}
	return out, nil
}

type memDrafts struct {
	mu     sync.Mutex
	drafts map[uint64][]int
}

func (m *memDrafts) SaveDraft(_ context.Context, id uint64, ids []int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.drafts == nil {
		m.drafts = make(map[uint64][]int)
	}
	m.drafts[id] = append([]int(nil), ids...)
	return nil
}

func (m *memDrafts) LoadDraft(_ context.Context, id uint64) ([]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.drafts[id], nil
}

type memChat struct {
	cleared chan uint64
}

func (m *memChat) ClearHistory(_ context.Context, id uint64) error {
	m.cleared <- id
	return nil
}

type recorder struct {
	mu    sync.Mutex
	notes []Notification
}

func (r *recorder) Notify(n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = append(r.notes, n)
}

func (r *recorder) ofType(typ string) []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Notification
	for _, n := range r.notes {
		if n.Type == typ {
			out = append(out, n)
		}
	}
	return out
}

// testCatalog holds enough cards for up to four players. Attackers are
// strong at attack, defenders at defense, so hands are easy to reason about.
func testCatalog(t *testing.T) *cards.Catalog {
	t.Helper()
	perType := map[cards.Type]int{cards.Sentinel: 2, cards.Attacker: 8, cards.Defender: 8, cards.Strategist: 4}
	var defs []cards.Card
	id := 1
	for _, typ := range cards.DraftOrder {
		for i := 0; i < perType[typ]; i++ {
			c := cards.Card{ID: id, Name: string(typ), Type: typ, Attack: 3, Defense: 3, Strategy: 3}
			switch typ {
			case cards.Attacker:
				c.Attack = 8
			case cards.Defender:
				c.Defense = 8
			case cards.Strategist:
				c.Strategy = 8
			}
			defs = append(defs, c)
			id++
		}
	}
	cat, err := cards.NewCatalog(defs)
	if err != nil {
		t.Fatalf("building catalog: %v", err)
	}
	return cat
}

type harness struct {
	c      *Coordinator
	ledger *fakeLedger
	notes  *recorder
	bids   *memBids
	drafts *memDrafts
	chat   *memChat
}

func testConfig() Config {
	return Config{
		MinPlayers:         3,
		RoundWindow:        time.Hour,
		ExtensionWindow:    10 * time.Minute,
		StartCountdown:     time.Hour,
		FinalizeRetryDelay: 5 * time.Millisecond,
		LedgerTimeout:      5 * time.Second,
	}
}

func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()
	h := &harness{
		ledger: newFakeLedger(),
		notes:  &recorder{},
		bids:   &memBids{},
		drafts: &memDrafts{},
		chat:   &memChat{cleared: make(chan uint64, 4)},
	}
	h.c = New(cfg, Deps{
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		Ledger:   h.ledger,
		Catalog:  testCatalog(t),
		Notifier: h.notes,
		Bids:     h.bids,
		Drafts:   h.drafts,
		Chat:     h.chat,
	})
	t.Cleanup(h.c.Close)
	return h
}

type bidder struct {
	key  *ecdsa.PrivateKey
	addr common.Address
}

func newBidder(t *testing.T) bidder {
	t.Helper()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generating key: %v", err)
	}
	return bidder{key: key, addr: crypto.PubkeyToAddress(key.PublicKey)}
}

func (b bidder) request(t *testing.T, slot Slot, amount, nonce uint64) BidRequest {
	t.Helper()
	msg := BidMessage{
		SessionID: float64(slot.SessionID),
		Round:     float64(slot.Round),
		CardID:    float64(slot.CardID),
		Bidder:    b.addr.Hex(),
		Amount:    float64(amount),
		Timestamp: float64(time.Now().Unix()),
		Nonce:     float64(nonce),
	}
	sig, err := SignBid(b.key, msg)
	if err != nil {
		t.Fatalf("signing bid: %v", err)
	}
	return BidRequest{Message: msg, Signature: sig}
}

// startGame seats n funded bidders on the ledger and starts a session.
func (h *harness) startGame(t *testing.T, n int) []bidder {
	t.Helper()
	bidders := make([]bidder, n)
	for i := range bidders {
		bidders[i] = newBidder(t)
		h.ledger.players = append(h.ledger.players, bidders[i].addr)
		h.ledger.balances[bidders[i].addr] = 1000
	}
	if err := h.c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	return bidders
}

// restart builds a second coordinator over the same ledger and stores, as
// a process restart would.
func (h *harness) restart(t *testing.T) *harness {
	t.Helper()
	h2 := &harness{
		ledger: h.ledger,
		notes:  &recorder{},
		bids:   h.bids,
		drafts: h.drafts,
		chat:   h.chat,
	}
	h2.c = New(h.c.cfg, Deps{
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		Ledger:   h2.ledger,
		Catalog:  h.c.catalog,
		Notifier: h2.notes,
		Bids:     h2.bids,
		Drafts:   h2.drafts,
		Chat:     h2.chat,
	})
	t.Cleanup(h2.c.Close)
	return h2
}

// endRound ends the current round as if its countdown had fired.
func (h *harness) endRound() {
	st := h.c.Status()
	h.c.endRound(context.Background(), st.SessionID, st.Round)
}

func (h *harness) slot() Slot {
	h.c.mu.Lock()
	defer h.c.mu.Unlock()
	return h.c.slot()
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func waitFor[T any](t *testing.T, ch <-chan T, what string) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(3 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
	}
	var zero T
	return zero
}
