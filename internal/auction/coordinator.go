package auction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/cardbid/auctioneer/internal/cards"
)

var (
	ErrAlreadyStarted   = errors.New("a game is already in progress")
	ErrNotEnoughPlayers = errors.New("not enough players to start")
	ErrNoSession        = errors.New("no session")
)

type Config struct {
	MinPlayers         int
	RoundWindow        time.Duration
	ExtensionWindow    time.Duration
	StartCountdown     time.Duration
	FinalizeRetryDelay time.Duration
	LedgerTimeout      time.Duration
}

// Deps are the collaborators a Coordinator drives. Bids, Drafts and Chat
// may be nil.
type Deps struct {
	Logger   *slog.Logger
	Ledger   Ledger
	Catalog  *cards.Catalog
	Drafter  *cards.Drafter
	Notifier Notifier
	Bids     BidLog
	Drafts   DraftStore
	Chat     Chat
}

// Coordinator owns the live session. Session state is guarded by mu and
// only held for short sections; opMu serializes the transitions that wait
// on the ledger (start, round end, reconcile) so they never interleave.
type Coordinator struct {
	cfg       Config
	logger    *slog.Logger
	ledger    Ledger
	catalog   *cards.Catalog
	drafter   *cards.Drafter
	validator *Validator
	notifier  Notifier
	bids      BidLog
	drafts    DraftStore
	chat      Chat

	roundTimer *Countdown
	startTimer *Countdown

	opMu    sync.Mutex
	mu      sync.Mutex
	sess    *session
	players []common.Address

	subMu       sync.Mutex
	unsubscribe func()
	rotateOnce  sync.Once

	ctx    context.Context
	cancel context.CancelFunc
	bgMu   sync.Mutex
	closed bool
	bg     sync.WaitGroup
}

func New(cfg Config, deps Deps) *Coordinator {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Drafter == nil {
		deps.Drafter = cards.NewDrafter(deps.Catalog, nil)
	}
	if deps.Notifier == nil {
		deps.Notifier = Notifiers(nil)
	}
	if cfg.LedgerTimeout <= 0 {
		cfg.LedgerTimeout = 2 * time.Minute
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Coordinator{
		cfg:       cfg,
		logger:    deps.Logger,
		ledger:    deps.Ledger,
		catalog:   deps.Catalog,
		drafter:   deps.Drafter,
		validator: NewValidator(deps.Ledger),
		notifier:  deps.Notifier,
		bids:      deps.Bids,
		drafts:    deps.Drafts,
		chat:      deps.Chat,
		ctx:       ctx,
		cancel:    cancel,
	}
	c.roundTimer = NewCountdown(RearmPolicy{First: cfg.RoundWindow, Rearm: cfg.ExtensionWindow}, func() {
		c.goBackground(c.onRoundTimer)
	})
	c.startTimer = NewCountdown(RearmPolicy{First: cfg.StartCountdown, Rearm: cfg.StartCountdown}, func() {
		c.goBackground(c.onStartTimer)
	})
	return c
}

// Attach subscribes to ledger events and registers the rotation hook. On
// rotation the subscription is replaced and the session reconciled.
func (c *Coordinator) Attach() {
	c.subscribe()
	c.rotateOnce.Do(func() {
		c.ledger.OnRotate(func(ctx context.Context) {
			c.logger.Info("ledger client rotated, reconciling")
			c.subscribe()
			if err := c.Reconcile(ctx); err != nil {
				c.logger.Error("reconcile after rotation failed", "error", err)
			}
			c.refreshPlayers(ctx)
		})
	})
}

func (c *Coordinator) subscribe() {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	if c.unsubscribe != nil {
		c.unsubscribe()
	}
	c.unsubscribe = c.ledger.Subscribe(c.HandleEvent)
}

// Sync reconciles with the ledger and refreshes the roster. A failed
// reconcile leaves the local session as it was.
func (c *Coordinator) Sync(ctx context.Context) {
	if err := c.Reconcile(ctx); err != nil {
		c.logger.Error("reconcile failed, continuing with local state", "error", err)
	}
	c.refreshPlayers(ctx)
}

// Close stops both timers, drops the ledger subscription and waits for
// background work to finish.
func (c *Coordinator) Close() {
	c.bgMu.Lock()
	c.closed = true
	c.bgMu.Unlock()

	c.roundTimer.Stop()
	c.startTimer.Stop()
	c.subMu.Lock()
	if c.unsubscribe != nil {
		c.unsubscribe()
		c.unsubscribe = nil
	}
	c.subMu.Unlock()
	c.cancel()
	c.bg.Wait()
}

func (c *Coordinator) goBackground(fn func(context.Context)) {
	c.bgMu.Lock()
	defer c.bgMu.Unlock()
	if c.closed {
		return
	}
	c.bg.Add(1)
	go func() {
		defer c.bg.Done()
		fn(c.ctx)
	}()
}

// Start begins a new session: the card total comes from the roster size at
// call time, the ledger start is awaited, then the confirmed game id is
// read and the first round opens.
func (c *Coordinator) Start(ctx context.Context) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.mu.Lock()
	if c.sess != nil && c.sess.state == StateInProgress {
		c.mu.Unlock()
		return ErrAlreadyStarted
	}
	c.mu.Unlock()
	c.startTimer.Stop()

	players, err := c.ledger.Players(ctx)
	if err != nil {
		return fmt.Errorf("reading players: %w", err)
	}
	if len(players) < c.cfg.MinPlayers {
		return fmt.Errorf("%d of %d: %w", len(players), c.cfg.MinPlayers, ErrNotEnoughPlayers)
	}

	total := cards.Needed(len(players)).Total()
	seq, err := c.drafter.Draft(total)
	if err != nil {
		return fmt.Errorf("drafting %d cards: %w", total, err)
	}

	c.logger.Info("starting game on ledger", "players", len(players), "total_cards", total)
	if err := c.ledger.StartGame(ctx, total); err != nil {
		return fmt.Errorf("starting game: %w", err)
	}
	id, err := c.ledger.GameID(ctx)
	if err != nil {
		return fmt.Errorf("reading confirmed game id: %w", err)
	}

	if c.drafts != nil {
		if err := c.drafts.SaveDraft(ctx, id, cardIDs(seq)); err != nil {
			c.logger.Error("saving draft failed", "session", id, "error", err)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.sess = newSession(id, seq)
	c.players = players
	for _, p := range players {
		c.sess.known[p] = true
	}
	c.roundTimer.Begin(c.cfg.RoundWindow)
	c.notifier.Notify(Notification{Type: NotifyGameStarted, Data: GameStartedData{
		SessionID:  id,
		TotalCards: total,
		FirstCard:  seq[0],
	}})
	c.logger.Info("game started", "session", id, "total_cards", total, "first_card", seq[0].ID)
	return nil
}

// SubmitBid validates req and, if it still beats the highest bid once the
// state lock is held, records it and extends the round.
func (c *Coordinator) SubmitBid(ctx context.Context, req BidRequest) (BidEntry, error) {
	c.mu.Lock()
	slot := c.slot()
	c.mu.Unlock()

	bid, err := c.validator.Validate(ctx, req, slot)
	if err != nil {
		return BidEntry{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// The highest bid may have moved while the balance was being read.
	if err := checkSlot(bid, c.slot()); err != nil {
		return BidEntry{}, err
	}
	s := c.sess
	if s.nonces[bid.Bidder][bid.Nonce] {
		return BidEntry{}, ErrDuplicateNonce
	}

	entry := BidEntry{
		ID:        uuid.NewString(),
		SessionID: bid.SessionID,
		Round:     bid.Round,
		CardID:    bid.CardID,
		Bidder:    bid.Bidder,
		Amount:    bid.Amount,
		Nonce:     bid.Nonce,
		PlacedAt:  time.Now().UTC(),
	}
	if c.bids != nil {
		if err := c.bids.AppendBid(ctx, entry); err != nil {
			return BidEntry{}, fmt.Errorf("recording bid: %w", err)
		}
	}

	if s.nonces[bid.Bidder] == nil {
		s.nonces[bid.Bidder] = make(map[uint64]bool)
	}
	s.nonces[bid.Bidder][bid.Nonce] = true
	bidder := bid.Bidder
	s.highest = HighestBid{Amount: bid.Amount, Bidder: &bidder}
	s.known[bidder] = true

	window := c.roundTimer.Arm()
	c.notifier.Notify(Notification{Type: NotifyHighestBid, Data: HighestBidData{Amount: bid.Amount, Bidder: bidder}})
	c.logger.Info("bid accepted",
		"session", s.id,
		"round", s.round,
		"card", bid.CardID,
		"bidder", bidder.Hex(),
		"amount", bid.Amount,
		"window", window,
	)
	return entry, nil
}

// slot must be called with mu held.
func (c *Coordinator) slot() Slot {
	s := c.sess
	if !s.accepting() {
		return Slot{}
	}
	return Slot{
		SessionID: s.id,
		Round:     s.round,
		CardID:    s.currentCard().ID,
		Highest:   s.highest.Amount,
		Accepting: true,
	}
}

// onRoundTimer ends the round the timer fired for. A bid accepted between
// the fire and endRound re-arms the countdown, but the fire still wins: the
// round is settled with that bid included and the extension is dropped.
func (c *Coordinator) onRoundTimer(ctx context.Context) {
	c.mu.Lock()
	s := c.sess
	if s == nil {
		c.mu.Unlock()
		return
	}
	id, round := s.id, s.round
	c.mu.Unlock()

	c.endRound(ctx, id, round)
}

// endRound settles the current card and moves to the next round. Bids are
// refused while the settlement is in flight; the round advances whether or
// not the ledger call succeeded.
func (c *Coordinator) endRound(ctx context.Context, id uint64, round int) {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.mu.Lock()
	s := c.sess
	if s == nil || s.id != id || s.round != round || !s.accepting() {
		c.mu.Unlock()
		return
	}
	s.settling = true
	c.roundTimer.Stop()

	card := s.currentCard()
	winner, price := NoWinner, uint64(0)
	if s.highest.Bidder != nil {
		winner, price = *s.highest.Bidder, s.highest.Amount
		s.won[winner] = append(s.won[winner], card)
		s.prices[card.ID] = price
	}
	c.mu.Unlock()

	c.logger.Info("settling card", "session", id, "round", round, "card", card.ID, "winner", winner.Hex(), "price", price)
	lctx, cancel := context.WithTimeout(ctx, c.cfg.LedgerTimeout)
	err := c.ledger.SettleCard(lctx, card.ID, winner, price)
	cancel()
	if err != nil {
		c.logger.Error("settle card failed", "session", id, "card", card.ID, "error", err)
	}

	c.mu.Lock()
	if c.sess != s {
		c.mu.Unlock()
		return
	}
	s.settling = false
	s.round++
	s.cardIndex++
	s.highest = HighestBid{}

	if next := s.currentCard(); next != nil {
		nextRound := s.round
		c.roundTimer.Begin(c.cfg.RoundWindow)
		c.notifier.Notify(Notification{Type: NotifyRoundStarted, Data: RoundStartedData{
			SessionID: id,
			Round:     nextRound,
			Card:      next,
		}})
		c.mu.Unlock()
		c.logger.Info("round started", "session", id, "round", nextRound, "card", next.ID)
		return
	}

	s.state = StateFinished
	c.notifier.Notify(Notification{Type: NotifyGameFinished, Data: GameFinishedData{SessionID: id}})
	c.mu.Unlock()

	c.logger.Info("game finished", "session", id)
	c.goBackground(func(ctx context.Context) { c.finalize(ctx, id) })
}

func (c *Coordinator) onStartTimer(ctx context.Context) {
	lctx, cancel := context.WithTimeout(ctx, c.cfg.LedgerTimeout)
	defer cancel()
	if err := c.Start(lctx); err != nil {
		c.logger.Error("timed game start failed", "error", err)
		// Re-arm if the roster still qualifies so the start is retried.
		c.mu.Lock()
		c.evaluateStartTimer()
		c.mu.Unlock()
	}
}

// HandleEvent reacts to a ledger event.
func (c *Coordinator) HandleEvent(ev LedgerEvent) {
	switch ev.Kind {
	case EventPlayerJoined, EventPlayerLeft:
		ctx, cancel := context.WithTimeout(c.ctx, c.cfg.LedgerTimeout)
		defer cancel()
		n := c.refreshPlayers(ctx)
		typ := NotifyPlayerJoined
		if ev.Kind == EventPlayerLeft {
			typ = NotifyPlayerLeft
		}
		c.notifier.Notify(Notification{Type: typ, Data: PlayerData{Player: ev.Player, PlayerCount: n}})
	case EventGameStarted:
		c.goBackground(func(ctx context.Context) { c.adoptGame(ctx, ev.GameID) })
	case EventCardSettled:
		c.logger.Debug("card settled on ledger",
			"session", ev.Settlement.GameID,
			"card", ev.Settlement.CardID,
			"winner", ev.Settlement.Winner.Hex(),
			"price", ev.Settlement.Price,
		)
	case EventGameFinalized:
		c.logger.Info("game finalized on ledger", "session", ev.GameID, "winner", ev.Winner.Hex())
	}
}

// adoptGame reconciles when the ledger reports a game this coordinator did
// not start, e.g. one started by another operator.
func (c *Coordinator) adoptGame(ctx context.Context, gameID uint64) {
	c.mu.Lock()
	known := c.sess != nil && c.sess.id == gameID
	c.mu.Unlock()
	if known {
		return
	}

	// Start may still be waiting for its confirmation; Reconcile queues
	// behind it and then finds the session already in place.
	c.opMu.Lock()
	c.mu.Lock()
	known = c.sess != nil && c.sess.id == gameID
	c.mu.Unlock()
	c.opMu.Unlock()
	if known {
		return
	}

	lctx, cancel := context.WithTimeout(ctx, c.cfg.LedgerTimeout)
	defer cancel()
	if err := c.Reconcile(lctx); err != nil {
		c.logger.Error("adopting ledger game failed", "session", gameID, "error", err)
	}
}

// refreshPlayers reloads the roster and arms or cancels the game-start
// countdown. It returns the roster size.
func (c *Coordinator) refreshPlayers(ctx context.Context) int {
	players, err := c.ledger.Players(ctx)
	if err != nil {
		c.logger.Error("reading players failed", "error", err)
		c.mu.Lock()
		defer c.mu.Unlock()
		return len(c.players)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.players = players
	c.evaluateStartTimer()
	return len(players)
}

// evaluateStartTimer must be called with mu held.
func (c *Coordinator) evaluateStartTimer() {
	if c.sess != nil && c.sess.state == StateInProgress {
		c.startTimer.Stop()
		return
	}
	armed := c.startTimer.State() == TimerArmed
	switch {
	case len(c.players) >= c.cfg.MinPlayers && !armed:
		c.startTimer.Begin(c.cfg.StartCountdown)
		c.logger.Info("player threshold met, game start scheduled", "players", len(c.players), "in", c.cfg.StartCountdown)
	case len(c.players) < c.cfg.MinPlayers && armed:
		c.startTimer.Stop()
		c.logger.Info("player count fell below threshold, game start cancelled", "players", len(c.players))
	}
}

// Status returns a snapshot of the session and both countdowns.
func (c *Coordinator) Status() Status {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()

	st := Status{
		State:               StateNotStarted,
		GameStartsInSeconds: c.startTimer.SecondsLeft(now),
	}
	s := c.sess
	if s == nil {
		return st
	}
	st.SessionID = s.id
	st.State = s.state
	st.Round = s.round
	st.TotalCards = s.totalCards
	st.CardIndex = s.cardIndex
	st.CurrentCard = s.currentCard()
	st.Cards = slices.Clone(s.cards)
	st.HighestBid = s.highest
	if s.highest.Bidder != nil {
		b := *s.highest.Bidder
		st.HighestBid.Bidder = &b
	}
	st.Settling = s.settling
	if s.state == StateInProgress {
		st.RoundEndsInSeconds = c.roundTimer.SecondsLeft(now)
	}
	return st
}

// StartInfo describes the lobby: waiting for players, counting down, or
// already started.
func (c *Coordinator) StartInfo() StartInfo {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()

	info := StartInfo{
		Status:      StartWaiting,
		Players:     slices.Clone(c.players),
		PlayerCount: len(c.players),
		MinPlayers:  c.cfg.MinPlayers,
	}
	if info.Players == nil {
		info.Players = []common.Address{}
	}
	switch {
	case c.sess != nil && c.sess.state == StateInProgress:
		info.Status = StartStarted
	case c.startTimer.State() == TimerArmed:
		info.Status = StartReady
		info.GameStartsInSeconds = c.startTimer.SecondsLeft(now)
	}
	return info
}

// Bids returns the accepted bids for one round.
func (c *Coordinator) Bids(ctx context.Context, sessionID uint64, round int) ([]BidEntry, error) {
	if c.bids == nil {
		return []BidEntry{}, nil
	}
	return c.bids.ListBids(ctx, sessionID, round)
}

// Players derives a record for every known player of the current session.
func (c *Coordinator) Players(ctx context.Context) ([]PlayerRecord, error) {
	c.mu.Lock()
	s := c.sess
	if s == nil {
		c.mu.Unlock()
		return nil, ErrNoSession
	}
	addrs := make([]common.Address, 0, len(s.known))
	for a := range s.known {
		addrs = append(addrs, a)
	}
	for a := range s.won {
		if !s.known[a] {
			addrs = append(addrs, a)
		}
	}
	won := make(map[common.Address][]WonCard, len(s.won))
	hands := make(map[common.Address][]*cards.Card, len(s.won))
	for a, cs := range s.won {
		hands[a] = slices.Clone(cs)
		for _, card := range cs {
			won[a] = append(won[a], WonCard{Card: card, Price: s.prices[card.ID]})
		}
	}
	c.mu.Unlock()

	slices.SortFunc(addrs, func(a, b common.Address) int { return a.Cmp(b) })
	records := make([]PlayerRecord, 0, len(addrs))
	for _, a := range addrs {
		balance, err := c.ledger.Balance(ctx, a)
		if err != nil {
			return nil, fmt.Errorf("reading balance of %s: %w", a.Hex(), err)
		}
		records = append(records, PlayerRecord{
			Address: a,
			Balance: balance,
			Won:     won[a],
			Power:   cards.ComputePower(hands[a]),
		})
	}
	return records, nil
}

func cardIDs(seq []*cards.Card) []int {
	ids := make([]int, len(seq))
	for i, c := range seq {
		ids[i] = c.ID
	}
	return ids
}
