package config

// Layered config: defaults -> config.yaml -> .env -> process env -> flags.
// Read once at startup, static for the process lifetime.

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	RPC      RPCConfig      `mapstructure:"rpc"`
	Watcher  WatcherConfig  `mapstructure:"watcher"`
	Payout   PayoutConfig   `mapstructure:"payout"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	BuyBurn  BuyBurnConfig  `mapstructure:"buyburn"`
}

type RPCConfig struct {
	Endpoint       string `mapstructure:"endpoint"`
	RequestTimeout int    `mapstructure:"request_timeout"` // seconds
	MaxRetries     int    `mapstructure:"max_retries"`
	BackoffBaseMS  int    `mapstructure:"backoff_base_ms"`
	BackoffMaxMS   int    `mapstructure:"backoff_max_ms"`
	RateLimit      int    `mapstructure:"rate_limit"` // requests per second
	RateBurst      int    `mapstructure:"rate_burst"`
}

type WatcherConfig struct {
	UsersFile         string  `mapstructure:"users_file"`
	StateFile         string  `mapstructure:"state_file"`
	MinPollSeconds    int     `mapstructure:"min_poll_seconds"`
	MaxPollSeconds    int     `mapstructure:"max_poll_seconds"`
	SignatureLookback int     `mapstructure:"signature_lookback"`
	TokenThreshold    float64 `mapstructure:"token_threshold"`
	MinTransferSOL    float64 `mapstructure:"min_transfer_sol"`
	// Fixed subject for the single-account clutch monitor.
	WatchedAccount string `mapstructure:"watched_account"`
	TokenMint      string `mapstructure:"token_mint"`
	DevPublicKey   string `mapstructure:"dev_public_key"`
	DevPrivateKey  string `mapstructure:"dev_private_key"`
}

type PayoutConfig struct {
	TradeEndpoint string  `mapstructure:"trade_endpoint"`
	PriorityFee   float64 `mapstructure:"priority_fee"`
	Slippage      int     `mapstructure:"slippage"`
	Pool          string  `mapstructure:"pool"`
	StepDelayMS   int     `mapstructure:"step_delay_ms"`
}

type TelegramConfig struct {
	BotToken       string `mapstructure:"bot_token"`
	PublicChannel  string `mapstructure:"public_channel"`  // registration announcements
	CallerChannel  string `mapstructure:"caller_channel"`  // winner notifications
	CallerWallet   string `mapstructure:"caller_wallet"`   // wallet the caller watches
	CallerExcluded string `mapstructure:"caller_excluded"` // receiver to ignore
	CallerInterval int    `mapstructure:"caller_interval"` // seconds
}

type BuyBurnConfig struct {
	Mint           string  `mapstructure:"mint"`
	BuyPercentage  float64 `mapstructure:"buy_percentage"`
	MinVolume5mUSD float64 `mapstructure:"min_volume_5m_usd"`
	MinWaitSeconds int     `mapstructure:"min_wait_seconds"`
	MaxWaitSeconds int     `mapstructure:"max_wait_seconds"`
}

func (c RPCConfig) BackoffBase() time.Duration {
	return time.Duration(c.BackoffBaseMS) * time.Millisecond
}

func (c RPCConfig) BackoffMax() time.Duration {
	return time.Duration(c.BackoffMaxMS) * time.Millisecond
}

func LoadConfig() (*Config, error) {
	godotenv.Load(".env")

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.ReadInConfig() // optional file

	v.AutomaticEnv()
	setupEnvAliases(v)
	setupFlags(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if config.Watcher.MinPollSeconds > config.Watcher.MaxPollSeconds {
		return nil, fmt.Errorf("min_poll_seconds (%d) exceeds max_poll_seconds (%d)",
			config.Watcher.MinPollSeconds, config.Watcher.MaxPollSeconds)
	}
	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("rpc.endpoint", "https://api.mainnet-beta.solana.com")
	v.SetDefault("rpc.request_timeout", 30)
	v.SetDefault("rpc.max_retries", 5)
	v.SetDefault("rpc.backoff_base_ms", 1000)
	v.SetDefault("rpc.backoff_max_ms", 60000)
	v.SetDefault("rpc.rate_limit", 10)
	v.SetDefault("rpc.rate_burst", 20)

	v.SetDefault("watcher.users_file", "users.json")
	v.SetDefault("watcher.state_file", "watch_state.json")
	v.SetDefault("watcher.min_poll_seconds", 60)
	v.SetDefault("watcher.max_poll_seconds", 180)
	v.SetDefault("watcher.signature_lookback", 15)
	v.SetDefault("watcher.token_threshold", 200000)
	v.SetDefault("watcher.min_transfer_sol", 0.01)

	v.SetDefault("payout.trade_endpoint", "https://pumpportal.fun/api/trade-local")
	v.SetDefault("payout.priority_fee", 0.000001)
	v.SetDefault("payout.slippage", 10)
	v.SetDefault("payout.pool", "auto")
	v.SetDefault("payout.step_delay_ms", 2000)

	v.SetDefault("telegram.caller_interval", 15)

	v.SetDefault("buyburn.buy_percentage", 0.02)
	v.SetDefault("buyburn.min_volume_5m_usd", 500)
	v.SetDefault("buyburn.min_wait_seconds", 150)
	v.SetDefault("buyburn.max_wait_seconds", 600)
}

func setupEnvAliases(v *viper.Viper) {
	aliases := map[string]string{
		"rpc.endpoint":              "SOLANA_RPC",
		"watcher.users_file":        "USERS_FILE",
		"watcher.token_threshold":   "TOKEN_THRESHOLD",
		"watcher.watched_account":   "WATCHED_ACCOUNT",
		"watcher.token_mint":        "TOKEN_MINT",
		"watcher.dev_public_key":    "DEV_PUB",
		"watcher.dev_private_key":   "DEV_PK",
		"telegram.bot_token":        "TELEGRAM_BOT_TOKEN",
		"telegram.public_channel":   "TELEGRAM_PUBLIC_CHANNEL",
		"telegram.caller_channel":   "TELEGRAM_CALLER_CHANNEL",
		"telegram.caller_wallet":    "CALLER_WALLET",
		"telegram.caller_excluded":  "CALLER_EXCLUDED",
		"buyburn.mint":              "BUYBURN_MINT",
		"buyburn.min_volume_5m_usd": "BUYBURN_MIN_VOLUME",
	}
	for key, env := range aliases {
		v.BindEnv(key, env)
	}
}

// setupFlags reparses os.Args with subcommand names and cobra's own flags
// whitelisted as unknowns. The same flags are declared on the root command
// so cobra accepts them.
func setupFlags(v *viper.Viper) {
	flags := pflag.NewFlagSet("clutch", pflag.ContinueOnError)
	flags.String("rpc-endpoint", "", "Solana RPC endpoint URL")
	flags.String("users-file", "", "path to the users.json registry")
	flags.Float64("token-threshold", 0, "minimum token balance to qualify")
	flags.ParseErrorsWhitelist.UnknownFlags = true
	flags.Usage = func() {}
	flags.Parse(os.Args[1:])

	if f := flags.Lookup("rpc-endpoint"); f.Changed {
		v.Set("rpc.endpoint", f.Value.String())
	}
	if f := flags.Lookup("users-file"); f.Changed {
		v.Set("watcher.users_file", f.Value.String())
	}
	if f := flags.Lookup("token-threshold"); f.Changed {
		if threshold, err := flags.GetFloat64("token-threshold"); err == nil {
			v.Set("watcher.token_threshold", threshold)
		}
	}
}
