package jobs

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/skrlabs/skrswap/internal/config"
	"github.com/skrlabs/skrswap/internal/store"
)

const (
	solMint  = "So11111111111111111111111111111111111111112"
	usdcMint = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
	bonkMint = "DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263"
)

type fakePrices struct {
	byMint map[string]decimal.Decimal
	errs   map[string]error
}

func (f *fakePrices) GetPrice(ctx context.Context, mint, vsMint string) (decimal.Decimal, error) {
	if err := f.errs[mint]; err != nil {
		return decimal.Zero, err
	}
	return f.byMint[mint], nil
}

type fakeSyncer struct {
	synced chan struct{}
}

func (f *fakeSyncer) SyncBalances(ctx context.Context) (int, int) {
	select {
	case f.synced <- struct{}{}:
	default:
	}
	return 1, 0
}

func jobsConfig() *config.Config {
	return &config.Config{
		Tokens: map[string]config.TokenInfo{
			"SOL":  {Symbol: "SOL", Mint: solMint, Decimals: 9},
			"USDC": {Symbol: "USDC", Mint: usdcMint, Decimals: 6},
			"BONK": {Symbol: "BONK", Mint: bonkMint, Decimals: 5},
		},
		Accounts: []config.AccountConfig{
			{ID: "a1", Enabled: true, Pair: "SOL/USDC", BaseToken: "SOL", QuoteToken: "USDC"},
			{ID: "a2", Enabled: true, Pair: "SOL/USDC", BaseToken: "SOL", QuoteToken: "USDC"},
			{ID: "a3", Enabled: false, Pair: "BONK/USDC", BaseToken: "BONK", QuoteToken: "USDC"},
		},
	}
}

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "jobs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func TestPairsFromConfigDedupes(t *testing.T) {
	pairs := PairsFromConfig(jobsConfig())
	require.Len(t, pairs, 2)

	// Sorted by base symbol: BONK before SOL.
	require.Equal(t, "BONK", pairs[0].BaseSymbol)
	require.Equal(t, bonkMint, pairs[0].BaseMint)
	require.Equal(t, "SOL", pairs[1].BaseSymbol)
	require.Equal(t, solMint, pairs[1].BaseMint)
	require.Equal(t, "USDC", pairs[1].QuoteSymbol)
	require.Equal(t, usdcMint, pairs[1].QuoteMint)
}

func TestRecordPricesStoresTickPerPair(t *testing.T) {
	st := openTestStore(t)
	prices := &fakePrices{byMint: map[string]decimal.Decimal{
		solMint:  decimal.NewFromFloat(152.34),
		bonkMint: decimal.NewFromFloat(0.0000215),
	}}
	j := New(prices, st, nil, PairsFromConfig(jobsConfig()))

	j.recordPrices()

	latest, err := st.LatestPrices(context.Background())
	require.NoError(t, err)
	require.Len(t, latest, 2)
	require.Equal(t, "BONK", latest[0].Token)
	require.Equal(t, "USDC", latest[0].VsToken)
	require.Equal(t, "SOL", latest[1].Token)
	require.True(t, decimal.NewFromFloat(152.34).Equal(latest[1].Price))
}

func TestRecordPricesSkipsFailingPair(t *testing.T) {
	st := openTestStore(t)
	prices := &fakePrices{
		byMint: map[string]decimal.Decimal{solMint: decimal.NewFromFloat(151)},
		errs:   map[string]error{bonkMint: context.DeadlineExceeded},
	}
	j := New(prices, st, nil, PairsFromConfig(jobsConfig()))

	j.recordPrices()

	latest, err := st.LatestPrices(context.Background())
	require.NoError(t, err)
	require.Len(t, latest, 1)
	require.Equal(t, "SOL", latest[0].Token)
}

func TestCleanupRemovesOnlyOldTicks(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, st.InsertPriceTick(ctx, "SOL", "USDC", decimal.NewFromFloat(140), now.Add(-8*24*time.Hour)))
	require.NoError(t, st.InsertPriceTick(ctx, "SOL", "USDC", decimal.NewFromFloat(150), now))

	j := New(nil, st, nil, nil)
	j.retention = 7 * 24 * time.Hour
	j.cleanupPrices()

	latest, err := st.LatestPrices(ctx)
	require.NoError(t, err)
	require.Len(t, latest, 1)
	require.True(t, decimal.NewFromFloat(150).Equal(latest[0].Price))

	// The old tick is already gone; a second sweep removes nothing.
	removed, err := st.DeletePriceTicksBefore(ctx, now.Add(-7*24*time.Hour))
	require.NoError(t, err)
	require.Zero(t, removed)
}

func TestBalanceSyncLoopRuns(t *testing.T) {
	t.Setenv("SKRSWAP_BALANCE_SYNC_INTERVAL", "10ms")
	st := openTestStore(t)
	syncer := &fakeSyncer{synced: make(chan struct{}, 1)}

	j := New(nil, st, syncer, nil)
	require.NoError(t, j.Start())
	defer j.Stop()

	select {
	case <-syncer.synced:
	case <-time.After(2 * time.Second):
		t.Fatal("balance sync never ran")
	}
}

func TestStartRejectsBadCronSpec(t *testing.T) {
	t.Setenv("SKRSWAP_PRICE_TICK_SPEC", "not a spec")
	st := openTestStore(t)
	prices := &fakePrices{byMint: map[string]decimal.Decimal{solMint: decimal.NewFromFloat(150)}}

	j := New(prices, st, nil, PairsFromConfig(jobsConfig()))
	require.Error(t, j.Start())
}

func TestParseDurationEnv(t *testing.T) {
	cases := []struct {
		name  string
		value string
		want  time.Duration
	}{
		{"unset", "", time.Minute},
		{"go duration", "30s", 30 * time.Second},
		{"bare seconds", "45", 45 * time.Second},
		{"zero disables", "0", 0},
		{"garbage", "soon", time.Minute},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if tc.value != "" {
				t.Setenv("TEST_JOBS_INTERVAL", tc.value)
			}
			require.Equal(t, tc.want, parseDurationEnv("TEST_JOBS_INTERVAL", time.Minute))
		})
	}
}
