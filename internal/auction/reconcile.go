package auction

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"

	"github.com/cardbid/auctioneer/internal/cards"
)

// Reconcile rebuilds the session from the ledger. It is a no-op unless the
// ledger reports a game in progress. Bid history and nonces live only off
// the ledger and start empty again; won cards are replayed from the
// ledger's settlements.
func (c *Coordinator) Reconcile(ctx context.Context) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	state, err := c.ledger.GameState(ctx)
	if err != nil {
		return fmt.Errorf("reading ledger game state: %w", err)
	}
	if state != LedgerInProgress {
		c.logger.Debug("ledger has no game in progress, nothing to reconcile", "ledger_state", state)
		return nil
	}

	var (
		id      uint64
		round   int
		total   int
		players []common.Address
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		id, err = c.ledger.GameID(gctx)
		return err
	})
	g.Go(func() (err error) {
		round, err = c.ledger.Round(gctx)
		return err
	})
	g.Go(func() (err error) {
		total, err = c.ledger.TotalCards(gctx)
		return err
	})
	g.Go(func() (err error) {
		players, err = c.ledger.Players(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("reading ledger game: %w", err)
	}

	seq, err := c.recoverDraft(ctx, id, total)
	if err != nil {
		return err
	}
	settlements, err := c.ledger.Settlements(ctx, id)
	if err != nil {
		return fmt.Errorf("reading settlements of game %d: %w", id, err)
	}

	s := newSession(id, seq)
	if round < 1 {
		round = 1
	}
	s.round = round
	s.cardIndex = round - 1
	for _, p := range players {
		s.known[p] = true
	}
	for _, st := range settlements {
		if st.GameID != id || st.Winner == NoWinner {
			continue
		}
		card, err := c.catalog.Card(st.CardID)
		if err != nil {
			c.logger.Warn("settlement references unknown card", "session", id, "card", st.CardID)
			continue
		}
		s.won[st.Winner] = append(s.won[st.Winner], card)
		s.prices[card.ID] = st.Price
		s.known[st.Winner] = true
	}

	c.mu.Lock()
	prev := c.sess
	c.sess = s
	c.players = players
	c.startTimer.Stop()
	c.roundTimer.Stop()
	if s.accepting() {
		c.roundTimer.Begin(c.cfg.RoundWindow)
	} else {
		s.state = StateFinished
	}
	c.mu.Unlock()

	c.logger.Info("reconciled session from ledger",
		"session", id,
		"round", round,
		"total_cards", total,
		"settled", len(settlements),
		"state", s.state,
	)

	// Every card settled but the ledger never saw the finalize: finish it.
	if s.state == StateFinished && (prev == nil || prev.id != id || prev.state != StateFinished) {
		c.goBackground(func(ctx context.Context) { c.finalize(ctx, id) })
	}
	return nil
}

// recoverDraft prefers the sequence persisted when the session started and
// falls back to a deterministic type-ordered draft of the same length.
func (c *Coordinator) recoverDraft(ctx context.Context, id uint64, total int) ([]*cards.Card, error) {
	if c.drafts != nil {
		ids, err := c.drafts.LoadDraft(ctx, id)
		if err != nil {
			c.logger.Warn("loading persisted draft failed", "session", id, "error", err)
		}
		if err == nil && len(ids) == total && total > 0 {
			seq := make([]*cards.Card, 0, len(ids))
			for _, cid := range ids {
				card, err := c.catalog.Card(cid)
				if err != nil {
					break
				}
				seq = append(seq, card)
			}
			if len(seq) == total {
				return seq, nil
			}
		}
	}

	seq, err := c.catalog.Ordered(total)
	if err != nil {
		return nil, fmt.Errorf("redrafting %d cards: %w", total, err)
	}
	c.logger.Warn("no persisted draft, using type-ordered sequence", "session", id, "total_cards", total)
	return seq, nil
}
