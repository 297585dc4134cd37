package config

import (
	"strings"
	"testing"
	"time"
)

const baseYAML = `
server:
  host: 127.0.0.1
  port: 9090
solana:
  rpc_url: https://rpc.example.com
  commitment: confirmed
jupiter:
  base_url: https://quote.example.com/v6
  timeout: 5s
tokens:
  SOL:
    mint: So11111111111111111111111111111111111111112
    decimals: 9
  USDC:
    mint: EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v
    decimals: 6
defaults:
  default_swap_size: 0.1
  max_swap_size: 1.0
  min_balance_reserve: 0.05
  max_slippage_bps: 100
  min_time_between_swaps: 60s
accounts:
  - id: main
    wallet_key: 4wBq...notchecked
    pair: SOL/USDC
  - id: aggressive
    label: fast lane
    wallet_key: 5xCr...notchecked
    pair: SOL/USDC
    strategy:
      default_swap_size: 0.5
      min_time_between_swaps: 10
`

func TestParseResolvesDefaultsCascade(t *testing.T) {
	cfg, err := Parse([]byte(baseYAML))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if got := cfg.Server.Addr(); got != "127.0.0.1:9090" {
		t.Fatalf("addr = %s", got)
	}
	if len(cfg.Accounts) != 2 {
		t.Fatalf("accounts = %d", len(cfg.Accounts))
	}

	main := cfg.Accounts[0]
	if main.BaseToken != "SOL" || main.QuoteToken != "USDC" {
		t.Fatalf("pair split = %s/%s", main.BaseToken, main.QuoteToken)
	}
	if !main.Enabled {
		t.Fatalf("enabled should default to true")
	}
	if main.Strategy.DefaultSwapSize.String() != "0.1" {
		t.Fatalf("default size = %s", main.Strategy.DefaultSwapSize)
	}
	if main.Strategy.MinTimeBetweenSwaps != 60*time.Second {
		t.Fatalf("cooldown = %v", main.Strategy.MinTimeBetweenSwaps)
	}
	if main.Strategy.RejectRepeatAction {
		t.Fatalf("reject_repeat_action should default off")
	}

	// account override wins over defaults, untouched fields inherit
	agg := cfg.Accounts[1]
	if agg.Strategy.DefaultSwapSize.String() != "0.5" {
		t.Fatalf("override size = %s", agg.Strategy.DefaultSwapSize)
	}
	if agg.Strategy.MinTimeBetweenSwaps != 10*time.Second {
		t.Fatalf("override cooldown = %v", agg.Strategy.MinTimeBetweenSwaps)
	}
	if agg.Strategy.MaxSlippageBps != 100 {
		t.Fatalf("inherited slippage = %d", agg.Strategy.MaxSlippageBps)
	}
}

func TestParseExpandsEnvRefs(t *testing.T) {
	t.Setenv("TEST_WALLET_KEY", "decoded-by-env")
	yml := strings.Replace(baseYAML, "4wBq...notchecked", "${TEST_WALLET_KEY}", 1)

	cfg, err := Parse([]byte(yml))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Accounts[0].WalletKey != "decoded-by-env" {
		t.Fatalf("wallet key = %q", cfg.Accounts[0].WalletKey)
	}
}

func TestParseRejectsUnresolvedWalletRef(t *testing.T) {
	yml := strings.Replace(baseYAML, "4wBq...notchecked", "${DEFINITELY_NOT_SET_ANYWHERE}", 1)
	if _, err := Parse([]byte(yml)); err == nil {
		t.Fatalf("expected unresolved ${VAR} to fail validation")
	}
}

func TestEnvOverridesWinOverFile(t *testing.T) {
	t.Setenv("SOLANA_RPC_URL", "https://override.example.com")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("SKRSWAP_LISTEN", "10.0.0.5:9191")

	cfg, err := Parse([]byte(baseYAML))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Solana.RPCURL != "https://override.example.com" {
		t.Fatalf("rpc url = %s", cfg.Solana.RPCURL)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("log level = %s", cfg.Logging.Level)
	}
	if got := cfg.Server.Addr(); got != "10.0.0.5:9191" {
		t.Fatalf("listen override = %s", got)
	}
}

func TestValidateCatchesBadConfigs(t *testing.T) {
	cases := []struct {
		name string
		edit func(string) string
	}{
		{"unknown pair token", func(s string) string {
			return strings.Replace(s, "pair: SOL/USDC\n  - id: aggressive", "pair: SOL/BONK\n  - id: aggressive", 1)
		}},
		{"malformed pair", func(s string) string {
			return strings.Replace(s, "pair: SOL/USDC\n  - id: aggressive", "pair: SOLUSDC\n  - id: aggressive", 1)
		}},
		{"missing rpc url", func(s string) string {
			return strings.Replace(s, "rpc_url: https://rpc.example.com", "rpc_url: \"\"", 1)
		}},
		{"duplicate account id", func(s string) string {
			return strings.Replace(s, "id: aggressive", "id: main", 1)
		}},
		{"max below default", func(s string) string {
			return strings.Replace(s, "max_swap_size: 1.0", "max_swap_size: 0.01", 1)
		}},
		{"zero slippage", func(s string) string {
			return strings.Replace(s, "max_slippage_bps: 100", "max_slippage_bps: 0", 1)
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Parse([]byte(tc.edit(baseYAML))); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestDurationAcceptsStringAndSeconds(t *testing.T) {
	yml := strings.Replace(baseYAML, "min_time_between_swaps: 60s", "min_time_between_swaps: 90", 1)
	cfg, err := Parse([]byte(yml))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Accounts[0].Strategy.MinTimeBetweenSwaps != 90*time.Second {
		t.Fatalf("bare int seconds = %v", cfg.Accounts[0].Strategy.MinTimeBetweenSwaps)
	}
}
