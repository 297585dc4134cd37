package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/skrlabs/skrswap/internal/account"
	"github.com/skrlabs/skrswap/internal/config"
	"github.com/skrlabs/skrswap/internal/exchange"
	"github.com/skrlabs/skrswap/internal/execution"
	"github.com/skrlabs/skrswap/internal/ingest"
	"github.com/skrlabs/skrswap/internal/jobs"
	"github.com/skrlabs/skrswap/internal/router"
	"github.com/skrlabs/skrswap/internal/server"
	"github.com/skrlabs/skrswap/internal/store"
	"github.com/skrlabs/skrswap/pkg/keyvault"
	"github.com/skrlabs/skrswap/pkg/logger"
	"github.com/skrlabs/skrswap/pkg/retry"
)

func main() {
	// Load .env (best-effort). If missing, fall back to real env vars.
	_ = godotenv.Load()

	getenv := func(key, def string) string {
		if v := os.Getenv(key); v != "" {
			return v
		}
		return def
	}

	var (
		configPath = flag.String("config", getenv("SKRSWAP_CONFIG", "config.yaml"), "configuration file path")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	if err := logger.Init(logger.Config{
		Level:      cfg.Logging.Level,
		OutputFile: cfg.Logging.File,
		MaxSize:    cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAge:     cfg.Logging.MaxAgeDays,
		Compress:   cfg.Logging.Compress,
		Console:    cfg.Logging.Console,
	}); err != nil {
		log.Fatalf("init logger: %v", err)
	}

	st, err := store.Open(cfg.Database.Path)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	defer st.Close()

	// The vault only opens when some enabled account references it; inline
	// keys resolve through a nil vault unchanged.
	var vault *keyvault.Vault
	if vaultReferenced(cfg) {
		key, err := keyvault.ParseKey(cfg.Vault.EncryptionKey)
		if err != nil {
			log.Fatalf("vault encryption key: %v", err)
		}
		vault, err = keyvault.Open(keyvault.OpenOptions{
			Path:          cfg.Vault.Path,
			EncryptionKey: key,
			ReadOnly:      true,
		})
		if err != nil {
			log.Fatalf("open keyvault %s: %v", cfg.Vault.Path, err)
		}
		defer vault.Close()
	}

	jupiter := exchange.NewJupiter(cfg.Jupiter)
	chain := exchange.NewSolana(cfg.Solana)

	manager, err := account.NewManager(cfg, vault, st, chain)
	if err != nil {
		log.Fatalf("build accounts: %v", err)
	}

	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 60*time.Second)
	if err := manager.RestoreState(startupCtx); err != nil {
		cancelStartup()
		log.Fatalf("restore account state: %v", err)
	}
	updated, failed := manager.SyncBalances(startupCtx)
	cancelStartup()
	logger.Infof("startup balance sync: %d updated, %d failed", updated, failed)

	exec := execution.New(execution.Params{
		Store:      st,
		Aggregator: jupiter,
		Chain:      chain,
		Tokens:     cfg.Tokens,
		Retry: retry.Policy{
			// max_retries counts tries after the first attempt.
			MaxAttempts: cfg.Execution.MaxRetries + 1,
			BaseDelay:   cfg.Execution.RetryBaseDelay,
			MaxDelay:    cfg.Execution.RetryMaxDelay,
		},
		ConfirmTimeout:   cfg.Solana.ConfirmTimeout,
		ComputeUnitPrice: cfg.Solana.ComputeUnitPrice,
	})

	rt := router.New(manager, st, exec)
	normalizer := ingest.NewNormalizer(configuredPairs(cfg))
	srv := server.New(cfg.Server, normalizer, rt, manager, st)

	background := jobs.New(jupiter, st, manager, jobs.PairsFromConfig(cfg))
	if err := background.Start(); err != nil {
		log.Fatalf("start background jobs: %v", err)
	}

	httpSrv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Infof("skrswapd listening on %s", cfg.Server.Addr())
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Errorf("http server: %v", err)
		}
	}()

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	<-stopCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = httpSrv.Shutdown(shutdownCtx)
	background.Stop()

	fmt.Println("skrswapd stopped")
}

// vaultReferenced reports whether any enabled account resolves its key
// through the vault.
func vaultReferenced(cfg *config.Config) bool {
	for _, a := range cfg.Accounts {
		if a.Enabled && strings.HasPrefix(a.WalletKey, keyvault.RefPrefix) {
			return true
		}
	}
	return false
}

// configuredPairs collects the distinct pairs across all accounts, disabled
// included: a configured pair should never bounce as UNKNOWN_PAIR.
func configuredPairs(cfg *config.Config) []string {
	seen := make(map[string]bool)
	var out []string
	for _, a := range cfg.Accounts {
		if a.Pair != "" && !seen[a.Pair] {
			seen[a.Pair] = true
			out = append(out, a.Pair)
		}
	}
	return out
}
