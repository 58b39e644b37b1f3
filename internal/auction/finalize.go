package auction

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum/common"

	"github.com/cardbid/auctioneer/internal/cards"
)

// finalize reports the winner of a finished session. It never blocks the
// round transition and never rolls local state back.
func (c *Coordinator) finalize(ctx context.Context, sessionID uint64) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.LedgerTimeout+2*c.cfg.FinalizeRetryDelay)
	defer cancel()

	// The last settlement may not have been mined yet; give the ledger one
	// retry delay to flip its terminal flag. A failed check finalizes anyway.
	state, err := c.ledger.GameState(ctx)
	switch {
	case err != nil:
		c.logger.Warn("checking ledger state before finalize failed", "session", sessionID, "error", err)
	case state != LedgerFinished:
		c.logger.Info("ledger not finished yet, delaying finalize", "session", sessionID, "ledger_state", state)
		if !sleep(ctx, c.cfg.FinalizeRetryDelay) {
			return
		}
	}

	winner, power := c.pickWinner(sessionID)
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(c.cfg.FinalizeRetryDelay), 1),
		ctx,
	)
	err = backoff.RetryNotify(func() error {
		return c.ledger.FinalizeGame(ctx, winner)
	}, policy, func(err error, wait time.Duration) {
		c.logger.Warn("finalize failed, retrying", "session", sessionID, "in", wait, "error", err)
	})
	if err != nil {
		c.logger.Error("finalize game failed", "session", sessionID, "winner", winner.Hex(), "error", err)
	} else {
		c.logger.Info("game finalized", "session", sessionID, "winner", winner.Hex(), "power", power)
	}

	if c.chat != nil {
		if err := c.chat.ClearHistory(ctx, sessionID); err != nil {
			c.logger.Error("clearing chat history failed", "session", sessionID, "error", err)
		}
	}
}

// pickWinner returns the player with the highest valid power, NoWinner if
// nobody holds a scorable hand. Equal power goes to the lower address.
func (c *Coordinator) pickWinner(sessionID uint64) (common.Address, float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.sess
	if s == nil || s.id != sessionID {
		return NoWinner, 0
	}
	return bestHand(s.won)
}

func bestHand(won map[common.Address][]*cards.Card) (common.Address, float64) {
	winner, best := NoWinner, 0.0
	found := false
	for addr, hand := range won {
		p := cards.ComputePower(hand)
		if !p.Valid {
			continue
		}
		if !found || p.Power > best || (p.Power == best && addr.Cmp(winner) < 0) {
			winner, best, found = addr, p.Power, true
		}
	}
	return winner, best
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
