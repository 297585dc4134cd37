package config

import (
	"fmt"
	"net"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Config is the resolved application configuration. It is loaded once at
// startup; nothing re-reads the file at runtime.
type Config struct {
	Server    ServerConfig
	Logging   LoggingConfig
	Database  DatabaseConfig
	Jupiter   JupiterConfig
	Solana    SolanaConfig
	Execution ExecutionConfig
	Vault     VaultConfig
	Tokens    map[string]TokenInfo // symbol -> token
	Accounts  []AccountConfig
}

type ServerConfig struct {
	Host string
	Port int
}

func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type LoggingConfig struct {
	Level      string
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
	Console    bool
}

type DatabaseConfig struct {
	Path string
}

type JupiterConfig struct {
	BaseURL  string
	PriceURL string
	APIKey   string
	Timeout  time.Duration
}

type SolanaConfig struct {
	RPCURL              string
	Commitment          string // processed | confirmed | finalized
	ConfirmTimeout      time.Duration
	ConfirmPollInterval time.Duration
	ComputeUnitPrice    uint64 // micro-lamports per CU, 0 = node default
}

// ExecutionConfig bounds the retry behavior for transient transport failures
// during swap execution. Non-transient failures are never retried.
type ExecutionConfig struct {
	MaxRetries     int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
}

// VaultConfig locates the encrypted key vault. Accounts reference vault
// entries as "vault:<name>" in wallet_key.
type VaultConfig struct {
	Path          string
	EncryptionKey string
}

type TokenInfo struct {
	Symbol   string
	Mint     string
	Decimals int
}

// StrategyConfig holds the per-account gating parameters, fully resolved
// (account overrides applied over the defaults section).
type StrategyConfig struct {
	DefaultSwapSize     decimal.Decimal // input-token units
	MaxSwapSize         decimal.Decimal
	MinBalanceReserve   decimal.Decimal // kept untouched in the spend token
	MaxSlippageBps      int
	MinTimeBetweenSwaps time.Duration
	RejectRepeatAction  bool
}

type AccountConfig struct {
	ID         string
	Label      string
	Enabled    bool
	WalletKey  string // base58 key material or "vault:<name>"
	Pair       string // e.g. "SOL/USDC"
	BaseToken  string // derived from Pair
	QuoteToken string
	Strategy   StrategyConfig
}

// configFile mirrors the YAML document. Pointer fields mark presence so the
// defaults cascade can tell "omitted" from "explicit zero".
type configFile struct {
	Server struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
	} `yaml:"server"`
	Logging struct {
		Level      string `yaml:"level"`
		File       string `yaml:"file"`
		MaxSizeMB  int    `yaml:"max_size_mb"`
		MaxBackups int    `yaml:"max_backups"`
		MaxAgeDays int    `yaml:"max_age_days"`
		Compress   bool   `yaml:"compress"`
		Console    *bool  `yaml:"console"`
	} `yaml:"logging"`
	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`
	Jupiter struct {
		BaseURL  string   `yaml:"base_url"`
		PriceURL string   `yaml:"price_url"`
		APIKey   string   `yaml:"api_key"`
		Timeout  Duration `yaml:"timeout"`
	} `yaml:"jupiter"`
	Solana struct {
		RPCURL              string   `yaml:"rpc_url"`
		Commitment          string   `yaml:"commitment"`
		ConfirmTimeout      Duration `yaml:"confirm_timeout"`
		ConfirmPollInterval Duration `yaml:"confirm_poll_interval"`
		ComputeUnitPrice    uint64   `yaml:"compute_unit_price"`
	} `yaml:"solana"`
	Execution struct {
		MaxRetries     *int     `yaml:"max_retries"`
		RetryBaseDelay Duration `yaml:"retry_base_delay"`
		RetryMaxDelay  Duration `yaml:"retry_max_delay"`
	} `yaml:"execution"`
	Vault struct {
		Path          string `yaml:"path"`
		EncryptionKey string `yaml:"encryption_key"`
	} `yaml:"vault"`
	Tokens map[string]struct {
		Mint     string `yaml:"mint"`
		Decimals int    `yaml:"decimals"`
	} `yaml:"tokens"`
	Defaults strategyFile  `yaml:"defaults"`
	Accounts []accountFile `yaml:"accounts"`
}

type strategyFile struct {
	DefaultSwapSize     *float64  `yaml:"default_swap_size"`
	MaxSwapSize         *float64  `yaml:"max_swap_size"`
	MinBalanceReserve   *float64  `yaml:"min_balance_reserve"`
	MaxSlippageBps      *int      `yaml:"max_slippage_bps"`
	MinTimeBetweenSwaps *Duration `yaml:"min_time_between_swaps"`
	RejectRepeatAction  *bool     `yaml:"reject_repeat_action"`
}

type accountFile struct {
	ID        string       `yaml:"id"`
	Label     string       `yaml:"label"`
	Enabled   *bool        `yaml:"enabled"`
	WalletKey string       `yaml:"wallet_key"`
	Pair      string       `yaml:"pair"`
	Strategy  strategyFile `yaml:"strategy"`
}

// envRef matches ${VAR} references inside YAML values.
var envRef = regexp.MustCompile(`\$\{(\w+)\}`)

// expandEnv substitutes ${VAR} with the environment value. Unset variables
// are left as-is so validation can report them instead of silently blanking
// key material.
func expandEnv(data []byte) []byte {
	return envRef.ReplaceAllFunc(data, func(m []byte) []byte {
		name := string(m[2 : len(m)-1])
		if v, ok := os.LookupEnv(name); ok {
			return []byte(v)
		}
		return m
	})
}

// Load reads, expands, resolves and validates the configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse builds a resolved Config from raw YAML bytes.
func Parse(data []byte) (*Config, error) {
	var cf configFile
	if err := yaml.Unmarshal(expandEnv(data), &cf); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}

	cfg := cf.resolve()
	cfg.applyEnvOverrides()
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (cf *configFile) resolve() *Config {
	cfg := &Config{
		Server: ServerConfig{Host: cf.Server.Host, Port: cf.Server.Port},
		Logging: LoggingConfig{
			Level:      cf.Logging.Level,
			File:       cf.Logging.File,
			MaxSizeMB:  cf.Logging.MaxSizeMB,
			MaxBackups: cf.Logging.MaxBackups,
			MaxAgeDays: cf.Logging.MaxAgeDays,
			Compress:   cf.Logging.Compress,
			Console:    cf.Logging.Console == nil || *cf.Logging.Console,
		},
		Database: DatabaseConfig{Path: cf.Database.Path},
		Jupiter: JupiterConfig{
			BaseURL:  cf.Jupiter.BaseURL,
			PriceURL: cf.Jupiter.PriceURL,
			APIKey:   cf.Jupiter.APIKey,
			Timeout:  cf.Jupiter.Timeout.Duration,
		},
		Solana: SolanaConfig{
			RPCURL:              cf.Solana.RPCURL,
			Commitment:          cf.Solana.Commitment,
			ConfirmTimeout:      cf.Solana.ConfirmTimeout.Duration,
			ConfirmPollInterval: cf.Solana.ConfirmPollInterval.Duration,
			ComputeUnitPrice:    cf.Solana.ComputeUnitPrice,
		},
		Execution: ExecutionConfig{
			RetryBaseDelay: cf.Execution.RetryBaseDelay.Duration,
			RetryMaxDelay:  cf.Execution.RetryMaxDelay.Duration,
		},
		Vault:  VaultConfig{Path: cf.Vault.Path, EncryptionKey: cf.Vault.EncryptionKey},
		Tokens: make(map[string]TokenInfo, len(cf.Tokens)),
	}
	if cf.Execution.MaxRetries != nil {
		cfg.Execution.MaxRetries = *cf.Execution.MaxRetries
	} else {
		cfg.Execution.MaxRetries = -1 // marks "use default"
	}

	for sym, t := range cf.Tokens {
		sym = strings.ToUpper(strings.TrimSpace(sym))
		cfg.Tokens[sym] = TokenInfo{Symbol: sym, Mint: t.Mint, Decimals: t.Decimals}
	}

	for _, af := range cf.Accounts {
		acct := AccountConfig{
			ID:        af.ID,
			Label:     af.Label,
			Enabled:   af.Enabled == nil || *af.Enabled,
			WalletKey: af.WalletKey,
			Pair:      strings.ToUpper(strings.TrimSpace(af.Pair)),
			Strategy:  mergeStrategy(cf.Defaults, af.Strategy),
		}
		if base, quote, ok := SplitPair(acct.Pair); ok {
			acct.BaseToken, acct.QuoteToken = base, quote
		}
		cfg.Accounts = append(cfg.Accounts, acct)
	}
	return cfg
}

// mergeStrategy layers an account's overrides on top of the defaults
// section, then fills anything still unset with the built-in defaults.
func mergeStrategy(defaults, override strategyFile) StrategyConfig {
	pickFloat := func(def, ovr *float64, fallback float64) decimal.Decimal {
		switch {
		case ovr != nil:
			return decimal.NewFromFloat(*ovr)
		case def != nil:
			return decimal.NewFromFloat(*def)
		default:
			return decimal.NewFromFloat(fallback)
		}
	}
	pickInt := func(def, ovr *int, fallback int) int {
		switch {
		case ovr != nil:
			return *ovr
		case def != nil:
			return *def
		default:
			return fallback
		}
	}
	pickDur := func(def, ovr *Duration, fallback time.Duration) time.Duration {
		switch {
		case ovr != nil:
			return ovr.Duration
		case def != nil:
			return def.Duration
		default:
			return fallback
		}
	}
	pickBool := func(def, ovr *bool, fallback bool) bool {
		switch {
		case ovr != nil:
			return *ovr
		case def != nil:
			return *def
		default:
			return fallback
		}
	}

	return StrategyConfig{
		DefaultSwapSize:     pickFloat(defaults.DefaultSwapSize, override.DefaultSwapSize, 0.1),
		MaxSwapSize:         pickFloat(defaults.MaxSwapSize, override.MaxSwapSize, 1.0),
		MinBalanceReserve:   pickFloat(defaults.MinBalanceReserve, override.MinBalanceReserve, 0.05),
		MaxSlippageBps:      pickInt(defaults.MaxSlippageBps, override.MaxSlippageBps, 100),
		MinTimeBetweenSwaps: pickDur(defaults.MinTimeBetweenSwaps, override.MinTimeBetweenSwaps, 60*time.Second),
		RejectRepeatAction:  pickBool(defaults.RejectRepeatAction, override.RejectRepeatAction, false),
	}
}

// applyEnvOverrides lets a few operational knobs come from the environment
// without editing the file.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("SOLANA_RPC_URL"); v != "" {
		c.Solana.RPCURL = v
	}
	if v := os.Getenv("JUPITER_API_URL"); v != "" {
		c.Jupiter.BaseURL = v
	}
	if v := os.Getenv("SKRSWAP_DB_PATH"); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv("SKRSWAP_LISTEN"); v != "" {
		if host, port, err := net.SplitHostPort(v); err == nil {
			if p, perr := strconv.Atoi(port); perr == nil {
				c.Server.Host = host
				c.Server.Port = p
			}
		}
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.MaxSizeMB == 0 {
		c.Logging.MaxSizeMB = 100
	}
	if c.Logging.MaxBackups == 0 {
		c.Logging.MaxBackups = 3
	}
	if c.Logging.MaxAgeDays == 0 {
		c.Logging.MaxAgeDays = 7
	}
	if c.Database.Path == "" {
		c.Database.Path = "data/skrswap.db"
	}
	if c.Jupiter.BaseURL == "" {
		c.Jupiter.BaseURL = "https://quote-api.jup.ag/v6"
	}
	if c.Jupiter.PriceURL == "" {
		c.Jupiter.PriceURL = "https://price.jup.ag/v6/price"
	}
	if c.Jupiter.Timeout == 0 {
		c.Jupiter.Timeout = 10 * time.Second
	}
	if c.Solana.Commitment == "" {
		c.Solana.Commitment = "confirmed"
	}
	if c.Solana.ConfirmTimeout == 0 {
		c.Solana.ConfirmTimeout = 60 * time.Second
	}
	if c.Solana.ConfirmPollInterval == 0 {
		c.Solana.ConfirmPollInterval = 2 * time.Second
	}
	if c.Execution.MaxRetries < 0 {
		c.Execution.MaxRetries = 3
	}
	if c.Execution.RetryBaseDelay == 0 {
		c.Execution.RetryBaseDelay = time.Second
	}
	if c.Execution.RetryMaxDelay == 0 {
		c.Execution.RetryMaxDelay = 10 * time.Second
	}
	if c.Vault.Path == "" {
		c.Vault.Path = "data/vault"
	}
}

// Validate rejects configurations that cannot run. It is called by Load;
// callers constructing a Config by hand (tests) should call it themselves.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Solana.RPCURL == "" {
		return fmt.Errorf("solana.rpc_url is required")
	}
	if len(c.Tokens) == 0 {
		return fmt.Errorf("tokens section is empty")
	}
	for sym, t := range c.Tokens {
		if t.Mint == "" {
			return fmt.Errorf("token %s: mint is required", sym)
		}
		if t.Decimals < 0 || t.Decimals > 18 {
			return fmt.Errorf("token %s: decimals %d out of range", sym, t.Decimals)
		}
	}
	if len(c.Accounts) == 0 {
		return fmt.Errorf("accounts section is empty")
	}

	seen := make(map[string]bool, len(c.Accounts))
	for i := range c.Accounts {
		a := &c.Accounts[i]
		if a.ID == "" {
			return fmt.Errorf("accounts[%d]: id is required", i)
		}
		if seen[a.ID] {
			return fmt.Errorf("duplicate account id %q", a.ID)
		}
		seen[a.ID] = true

		if a.BaseToken == "" || a.QuoteToken == "" {
			return fmt.Errorf("account %s: pair %q must be BASE/QUOTE", a.ID, a.Pair)
		}
		if _, ok := c.Tokens[a.BaseToken]; !ok {
			return fmt.Errorf("account %s: unknown base token %s", a.ID, a.BaseToken)
		}
		if _, ok := c.Tokens[a.QuoteToken]; !ok {
			return fmt.Errorf("account %s: unknown quote token %s", a.ID, a.QuoteToken)
		}
		if a.Enabled && a.WalletKey == "" {
			return fmt.Errorf("account %s: wallet_key is required", a.ID)
		}
		if strings.Contains(a.WalletKey, "${") {
			return fmt.Errorf("account %s: wallet_key has an unresolved ${VAR} reference", a.ID)
		}

		s := a.Strategy
		if !s.DefaultSwapSize.IsPositive() {
			return fmt.Errorf("account %s: default_swap_size must be > 0", a.ID)
		}
		if s.MaxSwapSize.LessThan(s.DefaultSwapSize) {
			return fmt.Errorf("account %s: max_swap_size below default_swap_size", a.ID)
		}
		if s.MinBalanceReserve.IsNegative() {
			return fmt.Errorf("account %s: min_balance_reserve must be >= 0", a.ID)
		}
		if s.MaxSlippageBps <= 0 || s.MaxSlippageBps > 10000 {
			return fmt.Errorf("account %s: max_slippage_bps %d out of range", a.ID, s.MaxSlippageBps)
		}
		if s.MinTimeBetweenSwaps < 0 {
			return fmt.Errorf("account %s: min_time_between_swaps must be >= 0", a.ID)
		}
	}

	switch c.Solana.Commitment {
	case "processed", "confirmed", "finalized":
	default:
		return fmt.Errorf("solana.commitment %q invalid", c.Solana.Commitment)
	}
	return nil
}

// SplitPair breaks "SOL/USDC" into ("SOL", "USDC").
func SplitPair(pair string) (base, quote string, ok bool) {
	parts := strings.Split(pair, "/")
	if len(parts) != 2 {
		return "", "", false
	}
	base = strings.TrimSpace(parts[0])
	quote = strings.TrimSpace(parts[1])
	if base == "" || quote == "" {
		return "", "", false
	}
	return base, quote, true
}
