package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/cardbid/auctioneer/internal/auction"
)

type Config struct {
	HTTPAddr  string     `env:"HTTP_ADDR" envDefault:":8080"`
	DBPath    string     `env:"DB_PATH" envDefault:"data/auction.db"`
	LogLevel  slog.Level `env:"LOG_LEVEL" envDefault:"INFO"`
	CardsFile string     `env:"CARDS_FILE" envDefault:"data/cards.json"`
	RedisURL  string     `env:"REDIS_URL"`
	ClientDir string     `env:"CLIENT_DIR"`

	// OperatorToken guards POST /api/game/start when set.
	OperatorToken string `env:"OPERATOR_TOKEN,unset"`

	Ledger Ledger
	Game   Game
}

type Ledger struct {
	RPCURLs        []string      `env:"LEDGER_RPC_URLS,required,notEmpty" envSeparator:","`
	Contract       string        `env:"LEDGER_CONTRACT,required,notEmpty"`
	OperatorKey    string        `env:"LEDGER_OPERATOR_KEY,required,notEmpty,unset"`
	ChainID        int64         `env:"LEDGER_CHAIN_ID" envDefault:"31337"`
	PollInterval   time.Duration `env:"LEDGER_POLL_INTERVAL" envDefault:"2s"`
	HealthInterval time.Duration `env:"LEDGER_HEALTH_INTERVAL" envDefault:"15s"`
	Timeout        time.Duration `env:"LEDGER_TIMEOUT" envDefault:"2m"`
}

type Game struct {
	MinPlayers         int           `env:"MIN_PLAYERS" envDefault:"3"`
	RoundWindow        time.Duration `env:"ROUND_WINDOW" envDefault:"30s"`
	ExtensionWindow    time.Duration `env:"EXTENSION_WINDOW" envDefault:"10s"`
	StartCountdown     time.Duration `env:"START_COUNTDOWN" envDefault:"30s"`
	FinalizeRetryDelay time.Duration `env:"FINALIZE_RETRY_DELAY" envDefault:"2s"`
}

// Load reads the configuration from the environment. Variables from a .env
// file in the working directory fill in anything not already set.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch {
	case c.Game.MinPlayers < 1:
		return fmt.Errorf("MIN_PLAYERS must be positive, got %d", c.Game.MinPlayers)
	case c.Game.RoundWindow <= 0 || c.Game.ExtensionWindow <= 0 || c.Game.StartCountdown <= 0:
		return errors.New("ROUND_WINDOW, EXTENSION_WINDOW and START_COUNTDOWN must be positive")
	case c.Ledger.PollInterval <= 0 || c.Ledger.HealthInterval <= 0:
		return errors.New("LEDGER_POLL_INTERVAL and LEDGER_HEALTH_INTERVAL must be positive")
	}
	return nil
}

// Auction returns the coordinator settings.
func (c *Config) Auction() auction.Config {
	return auction.Config{
		MinPlayers:         c.Game.MinPlayers,
		RoundWindow:        c.Game.RoundWindow,
		ExtensionWindow:    c.Game.ExtensionWindow,
		StartCountdown:     c.Game.StartCountdown,
		FinalizeRetryDelay: c.Game.FinalizeRetryDelay,
		LedgerTimeout:      c.Ledger.Timeout,
	}
}
