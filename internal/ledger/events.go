package ledger

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/cardbid/auctioneer/internal/auction"
)

type playerLog struct {
	Player common.Address
}

type gameStartedLog struct {
	GameId     *big.Int
	TotalCards *big.Int
}

type cardSettledLog struct {
	GameId *big.Int
	CardId *big.Int
	Winner common.Address
	Price  *big.Int
}

type gameFinalizedLog struct {
	GameId *big.Int
	Winner common.Address
}

// Subscribe registers fn for every decoded contract event. Handlers run on
// the polling goroutine, one event at a time.
func (c *Client) Subscribe(fn func(auction.LedgerEvent)) func() {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	return func() {
		c.subsMu.Lock()
		defer c.subsMu.Unlock()
		delete(c.subs, id)
	}
}

func (c *Client) dispatch(ev auction.LedgerEvent) {
	c.subsMu.Lock()
	handlers := make([]func(auction.LedgerEvent), 0, len(c.subs))
	for _, fn := range c.subs {
		handlers = append(handlers, fn)
	}
	c.subsMu.Unlock()

	for _, fn := range handlers {
		fn(ev)
	}
}

// Settlements returns every CardSettled event of a game, oldest first.
func (c *Client) Settlements(ctx context.Context, gameID uint64) ([]auction.Settlement, error) {
	cn, err := c.current()
	if err != nil {
		return nil, fmt.Errorf("filtering settlements of game %d: %w", gameID, err)
	}
	logs, err := cn.eth.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: big.NewInt(0),
		Addresses: []common.Address{c.cfg.Contract},
		Topics: [][]common.Hash{
			{c.abi.Events["CardSettled"].ID},
			{common.BigToHash(new(big.Int).SetUint64(gameID))},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("filtering settlements of game %d: %w", gameID, err)
	}

	out := make([]auction.Settlement, 0, len(logs))
	for _, l := range logs {
		ev, ok, err := c.decode(l)
		if err != nil {
			return nil, err
		}
		if ok && ev.Kind == auction.EventCardSettled {
			out = append(out, ev.Settlement)
		}
	}
	return out, nil
}

// decode turns a contract log into a ledger event. Logs of unknown events
// and removed logs are skipped.
func (c *Client) decode(l types.Log) (auction.LedgerEvent, bool, error) {
	if l.Removed || len(l.Topics) == 0 {
		return auction.LedgerEvent{}, false, nil
	}
	event, err := c.abi.EventByID(l.Topics[0])
	if err != nil {
		return auction.LedgerEvent{}, false, nil
	}

	contract := c.decoder
	ev := auction.LedgerEvent{Block: l.BlockNumber}
	switch event.Name {
	case "PlayerJoined", "PlayerLeft":
		var p playerLog
		if err := contract.UnpackLog(&p, event.Name, l); err != nil {
			return ev, false, fmt.Errorf("decoding %s: %w", event.Name, err)
		}
		ev.Kind = auction.EventPlayerJoined
		if event.Name == "PlayerLeft" {
			ev.Kind = auction.EventPlayerLeft
		}
		ev.Player = p.Player

	case "GameStarted":
		var g gameStartedLog
		if err := contract.UnpackLog(&g, event.Name, l); err != nil {
			return ev, false, fmt.Errorf("decoding %s: %w", event.Name, err)
		}
		id, err := toUint64("gameId", g.GameId)
		if err != nil {
			return ev, false, err
		}
		total, err := toUint64("totalCards", g.TotalCards)
		if err != nil {
			return ev, false, err
		}
		ev.Kind = auction.EventGameStarted
		ev.GameID = id
		ev.TotalCards = int(total)

	case "CardSettled":
		var s cardSettledLog
		if err := contract.UnpackLog(&s, event.Name, l); err != nil {
			return ev, false, fmt.Errorf("decoding %s: %w", event.Name, err)
		}
		id, err := toUint64("gameId", s.GameId)
		if err != nil {
			return ev, false, err
		}
		card, err := toUint64("cardId", s.CardId)
		if err != nil {
			return ev, false, err
		}
		price, err := toUint64("price", s.Price)
		if err != nil {
			return ev, false, err
		}
		ev.Kind = auction.EventCardSettled
		ev.GameID = id
		ev.Settlement = auction.Settlement{GameID: id, CardID: int(card), Winner: s.Winner, Price: price}

	case "GameFinalized":
		var f gameFinalizedLog
		if err := contract.UnpackLog(&f, event.Name, l); err != nil {
			return ev, false, fmt.Errorf("decoding %s: %w", event.Name, err)
		}
		id, err := toUint64("gameId", f.GameId)
		if err != nil {
			return ev, false, err
		}
		ev.Kind = auction.EventGameFinalized
		ev.GameID = id
		ev.Winner = f.Winner

	default:
		return ev, false, nil
	}
	return ev, true, nil
}

// poll delivers the contract events in blocks [from, head] and returns the
// next block to read.
func (c *Client) poll(ctx context.Context, from uint64) (uint64, error) {
	cn, err := c.current()
	if err != nil {
		return from, err
	}
	eth := cn.eth
	head, err := eth.BlockNumber(ctx)
	if err != nil {
		return from, fmt.Errorf("reading head: %w", err)
	}
	if head < from {
		return from, nil
	}

	logs, err := eth.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(from),
		ToBlock:   new(big.Int).SetUint64(head),
		Addresses: []common.Address{c.cfg.Contract},
	})
	if err != nil {
		return from, fmt.Errorf("filtering logs %d-%d: %w", from, head, err)
	}
	for _, l := range logs {
		ev, ok, err := c.decode(l)
		if err != nil {
			c.logger.Warn("skipping undecodable ledger log", "block", l.BlockNumber, "tx", l.TxHash.Hex(), "error", err)
			continue
		}
		if ok {
			c.dispatch(ev)
		}
	}
	return head + 1, nil
}

// Watch polls for contract events from the current head on and hands them
// to subscribers until ctx is done. While the starting head cannot be read
// it retries on every tick.
func (c *Client) Watch(ctx context.Context) error {
	from, started := uint64(0), false
	if head, err := c.head(ctx); err == nil {
		from, started = head+1, true
	} else {
		c.logger.Warn("reading starting block failed", "error", err)
	}

	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		if !started {
			head, err := c.head(ctx)
			if err != nil {
				c.logger.Warn("reading starting block failed", "error", err)
				continue
			}
			from, started = head+1, true
			c.logger.Info("watching ledger events", "from", from)
			continue
		}
		next, err := c.poll(ctx, from)
		if err != nil {
			c.logger.Warn("polling ledger events failed", "from", from, "error", err)
			continue
		}
		from = next
	}
}

func (c *Client) head(ctx context.Context) (uint64, error) {
	cn, err := c.current()
	if err != nil {
		return 0, err
	}
	return cn.eth.BlockNumber(ctx)
}

// Monitor checks the current endpoint and rotates to the next one when the
// check fails. It returns when ctx is done.
func (c *Client) Monitor(ctx context.Context) error {
	ticker := time.NewTicker(c.cfg.HealthInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		pctx, cancel := context.WithTimeout(ctx, c.cfg.HealthInterval)
		err := c.Check(pctx)
		cancel()
		if err == nil {
			continue
		}
		c.logger.Warn("ledger endpoint failed health check", "url", c.URL(), "error", err)
		if err := c.Rotate(ctx); err != nil {
			c.logger.Error("no healthy ledger endpoint", "error", err)
		}
	}
}
