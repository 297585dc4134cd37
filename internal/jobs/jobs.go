// Package jobs runs the background maintenance work: periodic price tick
// recording, price retention cleanup and wallet balance refresh.
package jobs

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"

	"github.com/skrlabs/skrswap/internal/config"
	"github.com/skrlabs/skrswap/internal/store"
	"github.com/skrlabs/skrswap/pkg/logger"
)

// Schedules and intervals come from the environment so operators can tune
// them without a config change.
const (
	defaultPriceSpec       = "@every 1m"
	defaultCleanupSpec     = "@hourly"
	defaultPriceRetention  = 7 * 24 * time.Hour
	defaultBalanceInterval = 60 * time.Second
	priceFetchTimeout      = 10 * time.Second
)

// PriceSource fetches the current price of one mint denominated in another;
// *exchange.Jupiter satisfies it.
type PriceSource interface {
	GetPrice(ctx context.Context, mint, vsMint string) (decimal.Decimal, error)
}

// BalanceSyncer refreshes on-chain balances for all accounts;
// *account.Manager satisfies it.
type BalanceSyncer interface {
	SyncBalances(ctx context.Context) (updated, failed int)
}

// Pair is one base/quote mint pairing whose price gets recorded.
type Pair struct {
	BaseSymbol  string
	BaseMint    string
	QuoteSymbol string
	QuoteMint   string
}

// PairsFromConfig collects the distinct traded pairs across all accounts,
// disabled ones included; their history is still worth charting.
func PairsFromConfig(cfg *config.Config) []Pair {
	seen := make(map[string]Pair)
	for _, a := range cfg.Accounts {
		base, okB := cfg.Tokens[a.BaseToken]
		quote, okQ := cfg.Tokens[a.QuoteToken]
		if !okB || !okQ {
			continue
		}
		seen[a.Pair] = Pair{
			BaseSymbol:  base.Symbol,
			BaseMint:    base.Mint,
			QuoteSymbol: quote.Symbol,
			QuoteMint:   quote.Mint,
		}
	}
	out := make([]Pair, 0, len(seen))
	for _, p := range seen {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BaseSymbol < out[j].BaseSymbol })
	return out
}

// Jobs owns the cron scheduler and the balance refresh loop.
type Jobs struct {
	cron      *cron.Cron
	prices    PriceSource
	store     *store.Store
	syncer    BalanceSyncer
	pairs     []Pair
	retention time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(prices PriceSource, st *store.Store, syncer BalanceSyncer, pairs []Pair) *Jobs {
	return &Jobs{
		cron:      cron.New(),
		prices:    prices,
		store:     st,
		syncer:    syncer,
		pairs:     pairs,
		retention: parseDurationEnv("SKRSWAP_PRICE_RETENTION", defaultPriceRetention),
	}
}

// Start registers the cron entries and launches the balance loop. The
// returned error only fires on an invalid cron spec.
func (j *Jobs) Start() error {
	priceSpec := envOr("SKRSWAP_PRICE_TICK_SPEC", defaultPriceSpec)
	cleanupSpec := envOr("SKRSWAP_PRICE_CLEANUP_SPEC", defaultCleanupSpec)

	if len(j.pairs) > 0 && j.prices != nil {
		if _, err := j.cron.AddFunc(priceSpec, j.recordPrices); err != nil {
			return fmt.Errorf("register price ticks (%q): %w", priceSpec, err)
		}
		if _, err := j.cron.AddFunc(cleanupSpec, j.cleanupPrices); err != nil {
			return fmt.Errorf("register price cleanup (%q): %w", cleanupSpec, err)
		}
	}
	j.cron.Start()

	ctx, cancel := context.WithCancel(context.Background())
	j.cancel = cancel

	balanceInterval := parseDurationEnv("SKRSWAP_BALANCE_SYNC_INTERVAL", defaultBalanceInterval)
	j.wg.Add(1)
	go func() {
		defer j.wg.Done()
		j.balanceSyncLoop(ctx, balanceInterval)
	}()

	logger.Infof("background jobs started: price=%s cleanup=%s balance_sync=%s retention=%s",
		priceSpec, cleanupSpec, balanceInterval, j.retention)
	return nil
}

// Stop halts the scheduler and waits for any running job to finish.
func (j *Jobs) Stop() {
	if j.cancel != nil {
		j.cancel()
	}
	<-j.cron.Stop().Done()
	j.wg.Wait()
	logger.Infof("background jobs stopped")
}

// recordPrices fetches one tick per traded pair. A failing pair is logged
// and skipped; the rest still record.
func (j *Jobs) recordPrices() {
	ctx, cancel := context.WithTimeout(context.Background(), priceFetchTimeout)
	defer cancel()

	now := time.Now().UTC()
	for _, p := range j.pairs {
		price, err := j.prices.GetPrice(ctx, p.BaseMint, p.QuoteMint)
		if err != nil {
			logger.Warnf("price tick %s/%s: %v", p.BaseSymbol, p.QuoteSymbol, err)
			continue
		}
		if err := j.store.InsertPriceTick(ctx, p.BaseSymbol, p.QuoteSymbol, price, now); err != nil {
			logger.Warnf("store price tick %s/%s: %v", p.BaseSymbol, p.QuoteSymbol, err)
		}
	}
}

func (j *Jobs) cleanupPrices() {
	ctx, cancel := context.WithTimeout(context.Background(), priceFetchTimeout)
	defer cancel()

	cutoff := time.Now().UTC().Add(-j.retention)
	removed, err := j.store.DeletePriceTicksBefore(ctx, cutoff)
	if err != nil {
		logger.Warnf("price cleanup: %v", err)
		return
	}
	if removed > 0 {
		logger.Infof("price cleanup: removed %d ticks older than %s", removed, cutoff.Format(time.RFC3339))
	}
}

func (j *Jobs) balanceSyncLoop(ctx context.Context, interval time.Duration) {
	if interval <= 0 || j.syncer == nil {
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			updated, failed := j.syncer.SyncBalances(ctx)
			if failed > 0 {
				logger.Warnf("balance sync: %d updated, %d failed", updated, failed)
			} else {
				logger.Debugf("balance sync: %d updated", updated)
			}
		}
	}
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func parseDurationEnv(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		if n, err2 := strconv.Atoi(v); err2 == nil && n >= 0 {
			return time.Duration(n) * time.Second
		}
		return def
	}
	return d
}
