// Package ledger talks to the auction ledger contract over JSON-RPC. It
// keeps one live endpoint out of a configured list and moves to the next
// one when the current endpoint stops answering.
package ledger

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/cardbid/auctioneer/internal/auction"
)

var (
	ErrNoEndpoint = errors.New("no ledger endpoint reachable")
	ErrReverted   = errors.New("ledger transaction reverted")
)

type Config struct {
	URLs           []string
	Contract       common.Address
	OperatorKey    *ecdsa.PrivateKey
	ChainID        *big.Int
	PollInterval   time.Duration
	HealthInterval time.Duration
}

type conn struct {
	url      string
	eth      *ethclient.Client
	contract *bind.BoundContract
}

// Client implements auction.Ledger. Reads go to the current endpoint;
// transactions are sent one at a time and awaited until mined.
type Client struct {
	cfg    Config
	logger *slog.Logger
	abi    abi.ABI
	// decoder unpacks logs without touching an endpoint.
	decoder *bind.BoundContract

	mu   sync.RWMutex
	cur  *conn
	next int

	txMu sync.Mutex

	hooksMu sync.Mutex
	hooks   []func(context.Context)

	subsMu  sync.Mutex
	subs    map[int]func(auction.LedgerEvent)
	nextSub int
}

// Dial connects to the first configured endpoint that answers. When none
// does, the client is still returned: calls fail with ErrNoEndpoint until
// Monitor or Rotate finds a live endpoint.
func Dial(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	if len(cfg.URLs) == 0 {
		return nil, fmt.Errorf("%w: no urls configured", ErrNoEndpoint)
	}
	parsed, err := abi.JSON(strings.NewReader(contractABI))
	if err != nil {
		return nil, fmt.Errorf("parsing contract abi: %w", err)
	}

	c := &Client{
		cfg:     cfg,
		logger:  logger,
		abi:     parsed,
		decoder: bind.NewBoundContract(cfg.Contract, parsed, nil, nil, nil),
		subs:    make(map[int]func(auction.LedgerEvent)),
	}
	if err := c.connect(ctx); err != nil {
		logger.Warn("starting without a ledger endpoint", "error", err)
	}
	return c, nil
}

// connect tries each endpoint once, starting after the current one, and
// installs the first that reports a block number.
func (c *Client) connect(ctx context.Context) error {
	var errs []error
	for range c.cfg.URLs {
		c.mu.Lock()
		url := c.cfg.URLs[c.next%len(c.cfg.URLs)]
		c.next++
		c.mu.Unlock()

		cn, err := c.dial(ctx, url)
		if err != nil {
			c.logger.Warn("ledger endpoint unreachable", "url", url, "error", err)
			errs = append(errs, err)
			continue
		}

		c.mu.Lock()
		old := c.cur
		c.cur = cn
		c.mu.Unlock()
		if old != nil {
			old.eth.Close()
		}
		c.logger.Info("connected to ledger", "url", url)
		return nil
	}
	return fmt.Errorf("%w: %w", ErrNoEndpoint, errors.Join(errs...))
}

func (c *Client) dial(ctx context.Context, url string) (*conn, error) {
	eth, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", url, err)
	}
	if _, err := eth.BlockNumber(ctx); err != nil {
		eth.Close()
		return nil, fmt.Errorf("probing %s: %w", url, err)
	}
	return &conn{
		url:      url,
		eth:      eth,
		contract: bind.NewBoundContract(c.cfg.Contract, c.abi, eth, eth, eth),
	}, nil
}

func (c *Client) current() (*conn, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.cur == nil {
		return nil, ErrNoEndpoint
	}
	return c.cur, nil
}

// URL returns the endpoint in use, or "" when there is none.
func (c *Client) URL() string {
	cn, err := c.current()
	if err != nil {
		return ""
	}
	return cn.url
}

// Rotate moves to the next reachable endpoint and runs the rotate hooks.
// Existing subscriptions are left to the hooks to renew.
func (c *Client) Rotate(ctx context.Context) error {
	from := c.URL()
	if err := c.connect(ctx); err != nil {
		return err
	}
	c.logger.Info("ledger endpoint rotated", "from", from, "to", c.URL())

	c.hooksMu.Lock()
	hooks := slices.Clone(c.hooks)
	c.hooksMu.Unlock()
	for _, fn := range hooks {
		fn(ctx)
	}
	return nil
}

func (c *Client) OnRotate(fn func(context.Context)) {
	c.hooksMu.Lock()
	defer c.hooksMu.Unlock()
	c.hooks = append(c.hooks, fn)
}

// Check reports whether the current endpoint answers.
func (c *Client) Check(ctx context.Context) error {
	cn, err := c.current()
	if err != nil {
		return err
	}
	_, err = cn.eth.BlockNumber(ctx)
	return err
}

// Close releases the current endpoint.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cur != nil {
		c.cur.eth.Close()
		c.cur = nil
	}
}

// Reads

func (c *Client) call(ctx context.Context, method string, args ...any) ([]any, error) {
	cn, err := c.current()
	if err != nil {
		return nil, fmt.Errorf("calling %s: %w", method, err)
	}
	var out []any
	if err := cn.contract.Call(&bind.CallOpts{Context: ctx}, &out, method, args...); err != nil {
		return nil, fmt.Errorf("calling %s: %w", method, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("calling %s: empty result", method)
	}
	return out, nil
}

func (c *Client) callUint(ctx context.Context, method string, args ...any) (uint64, error) {
	out, err := c.call(ctx, method, args...)
	if err != nil {
		return 0, err
	}
	v, ok := out[0].(*big.Int)
	if !ok {
		return 0, fmt.Errorf("calling %s: unexpected result %T", method, out[0])
	}
	return toUint64(method, v)
}

func (c *Client) GameState(ctx context.Context) (auction.LedgerState, error) {
	out, err := c.call(ctx, "gameState")
	if err != nil {
		return 0, err
	}
	v, ok := out[0].(uint8)
	if !ok {
		return 0, fmt.Errorf("calling gameState: unexpected result %T", out[0])
	}
	return auction.LedgerState(v), nil
}

func (c *Client) GameID(ctx context.Context) (uint64, error) {
	return c.callUint(ctx, "gameId")
}

func (c *Client) Round(ctx context.Context) (int, error) {
	v, err := c.callUint(ctx, "currentRound")
	return int(v), err
}

func (c *Client) TotalCards(ctx context.Context) (int, error) {
	v, err := c.callUint(ctx, "totalCards")
	return int(v), err
}

func (c *Client) Players(ctx context.Context) ([]common.Address, error) {
	out, err := c.call(ctx, "getPlayers")
	if err != nil {
		return nil, err
	}
	players, ok := out[0].([]common.Address)
	if !ok {
		return nil, fmt.Errorf("calling getPlayers: unexpected result %T", out[0])
	}
	return players, nil
}

func (c *Client) Balance(ctx context.Context, player common.Address) (uint64, error) {
	return c.callUint(ctx, "balanceOf", player)
}

// Writes

func (c *Client) transact(ctx context.Context, method string, args ...any) error {
	c.txMu.Lock()
	defer c.txMu.Unlock()

	opts, err := bind.NewKeyedTransactorWithChainID(c.cfg.OperatorKey, c.cfg.ChainID)
	if err != nil {
		return fmt.Errorf("building transactor: %w", err)
	}
	opts.Context = ctx

	cn, err := c.current()
	if err != nil {
		return fmt.Errorf("sending %s: %w", method, err)
	}
	tx, err := cn.contract.Transact(opts, method, args...)
	if err != nil {
		return fmt.Errorf("sending %s: %w", method, err)
	}
	c.logger.Debug("ledger transaction sent", "method", method, "tx", tx.Hash().Hex())

	receipt, err := bind.WaitMined(ctx, cn.eth, tx)
	if err != nil {
		return fmt.Errorf("waiting for %s %s: %w", method, tx.Hash().Hex(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return fmt.Errorf("%s %s: %w", method, tx.Hash().Hex(), ErrReverted)
	}
	c.logger.Debug("ledger transaction mined", "method", method, "tx", tx.Hash().Hex(), "block", receipt.BlockNumber)
	return nil
}

func (c *Client) StartGame(ctx context.Context, totalCards int) error {
	return c.transact(ctx, "startGame", big.NewInt(int64(totalCards)))
}

func (c *Client) SettleCard(ctx context.Context, cardID int, winner common.Address, price uint64) error {
	return c.transact(ctx, "settleCard", big.NewInt(int64(cardID)), winner, new(big.Int).SetUint64(price))
}

func (c *Client) FinalizeGame(ctx context.Context, winner common.Address) error {
	return c.transact(ctx, "finalizeGame", winner)
}

func toUint64(what string, v *big.Int) (uint64, error) {
	if v == nil || v.Sign() < 0 || !v.IsUint64() {
		return 0, fmt.Errorf("%s: value %v out of range", what, v)
	}
	return v.Uint64(), nil
}

var _ auction.Ledger = (*Client)(nil)
