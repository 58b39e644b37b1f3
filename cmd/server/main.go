package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/cardbid/auctioneer/internal/auction"
	"github.com/cardbid/auctioneer/internal/cards"
	"github.com/cardbid/auctioneer/internal/config"
	"github.com/cardbid/auctioneer/internal/database"
	"github.com/cardbid/auctioneer/internal/handler/health"
	"github.com/cardbid/auctioneer/internal/ledger"
	"github.com/cardbid/auctioneer/internal/migrations"
	"github.com/cardbid/auctioneer/internal/server"
	"github.com/cardbid/auctioneer/internal/store"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, stdout io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))

	// --- Cards ---
	catalog, err := cards.LoadCatalog(cfg.CardsFile)
	if err != nil {
		return fmt.Errorf("loading cards: %w", err)
	}
	logger.Info("loaded card catalog", "path", cfg.CardsFile, "cards", len(catalog.All()))

	// --- SQLite ---
	db, err := database.Open(ctx, cfg.DBPath)
	if err != nil {
		return fmt.Errorf("connecting to sqlite: %w", err)
	}
	defer db.Close()

	if err := migrations.Run(db); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	logger.Info("connected to sqlite", "path", cfg.DBPath)
	st := store.NewSQLiteStore(db)

	// --- Ledger ---
	key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.Ledger.OperatorKey, "0x"))
	if err != nil {
		return fmt.Errorf("parsing operator key: %w", err)
	}
	lc, err := ledger.Dial(ctx, ledger.Config{
		URLs:           cfg.Ledger.RPCURLs,
		Contract:       common.HexToAddress(cfg.Ledger.Contract),
		OperatorKey:    key,
		ChainID:        big.NewInt(cfg.Ledger.ChainID),
		PollInterval:   cfg.Ledger.PollInterval,
		HealthInterval: cfg.Ledger.HealthInterval,
	}, logger)
	if err != nil {
		return fmt.Errorf("creating ledger client: %w", err)
	}
	defer lc.Close()
	logger.Info("ledger client ready", "url", lc.URL(), "operator", crypto.PubkeyToAddress(key.PublicKey))

	checks := map[string]health.Checker{
		"sqlite": database.Checker{DB: db},
		"ledger": lc,
	}

	// --- Redis (optional) ---
	broker := server.NewBroker()
	var (
		notifier      auction.Notifier = broker
		rdb           *redis.Client
		redisNotifier *server.RedisNotifier
	)
	if cfg.RedisURL != "" {
		rdb, err = openRedis(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("connecting to redis: %w", err)
		}
		defer rdb.Close()
		redisNotifier = server.NewRedisNotifier(rdb, logger)
		notifier = redisNotifier
		checks["redis"] = health.CheckFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
		logger.Info("connected to redis")
	}

	// --- Auction ---
	coord := auction.New(cfg.Auction(), auction.Deps{
		Logger:   logger,
		Ledger:   lc,
		Catalog:  catalog,
		Notifier: notifier,
		Bids:     st,
		Drafts:   st,
		Chat:     st,
	})
	coord.Attach()
	coord.Sync(ctx)
	defer coord.Close()

	if cfg.OperatorToken == "" {
		logger.Warn("OPERATOR_TOKEN not set, POST /api/game/start is open")
	}

	// --- HTTP Server ---
	srv := server.New(cfg.HTTPAddr, server.Deps{
		Logger:        logger,
		Auction:       coord,
		Catalog:       catalog,
		Chat:          st,
		Broker:        broker,
		Checks:        checks,
		ClientDir:     cfg.ClientDir,
		OperatorToken: cfg.OperatorToken,
		Notifier:      notifier,
	})

	// --- Run ---
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting http server", "addr", cfg.HTTPAddr)
		return srv.Run(gctx)
	})

	g.Go(func() error {
		return lc.Watch(gctx)
	})

	g.Go(func() error {
		return lc.Monitor(gctx)
	})

	if rdb != nil {
		g.Go(func() error {
			return server.Relay(gctx, rdb, broker, logger)
		})
		g.Go(func() error {
			return redisNotifier.Run(gctx)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down http server")
		return srv.Shutdown(context.Background())
	})

	return g.Wait()
}

func openRedis(ctx context.Context, rawURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}
	return rdb, nil
}
