// Package account builds the runtime view of configured accounts: resolved
// wallets, recovered state and balance synchronization against the chain.
package account

import (
	"context"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"

	"github.com/skrlabs/skrswap/internal/config"
	"github.com/skrlabs/skrswap/internal/domain"
	"github.com/skrlabs/skrswap/internal/execution"
	"github.com/skrlabs/skrswap/internal/store"
	"github.com/skrlabs/skrswap/internal/strategy"
	"github.com/skrlabs/skrswap/internal/wallet"
	"github.com/skrlabs/skrswap/pkg/logger"
)

const (
	balanceWorkers    = 4
	perAccountTimeout = 15 * time.Second
)

// Account is one configured trading account plus everything that moves at
// runtime: its wallet, mutable strategy state and the in-flight guard.
type Account struct {
	Cfg     config.AccountConfig
	Wallet  *wallet.Wallet
	Runtime *strategy.Runtime
	Limiter *execution.InFlightLimiter
}

// BalanceReader is the chain access the manager needs; *exchange.Solana
// satisfies it.
type BalanceReader interface {
	TokenBalance(ctx context.Context, owner solana.PublicKey, mint string, decimals int) (decimal.Decimal, error)
}

// KeyResolver turns a config wallet_key into key material;
// *keyvault.Vault satisfies it.
type KeyResolver interface {
	Resolve(walletKey string) (string, error)
}

// Manager owns all accounts for the lifetime of the process.
type Manager struct {
	accounts []*Account
	byID     map[string]*Account
	byPair   map[string][]*Account
	tokens   map[string]config.TokenInfo
	store    *store.Store
	chain    BalanceReader
}

// NewManager resolves wallets for enabled accounts and indexes them by id
// and pair. Disabled accounts are kept (the API lists them) but get no
// wallet and never route.
func NewManager(cfg *config.Config, keys KeyResolver, st *store.Store, chain BalanceReader) (*Manager, error) {
	m := &Manager{
		byID:   make(map[string]*Account, len(cfg.Accounts)),
		byPair: make(map[string][]*Account),
		tokens: cfg.Tokens,
		store:  st,
		chain:  chain,
	}
	for i := range cfg.Accounts {
		ac := cfg.Accounts[i]
		var w *wallet.Wallet
		if ac.Enabled {
			material, err := keys.Resolve(ac.WalletKey)
			if err != nil {
				return nil, fmt.Errorf("account %s: %w", ac.ID, err)
			}
			w, err = wallet.FromBase58(material)
			if err != nil {
				return nil, fmt.Errorf("account %s: %w", ac.ID, err)
			}
		}
		a := &Account{
			Cfg:     ac,
			Wallet:  w,
			Runtime: strategy.NewRuntime(),
			Limiter: execution.NewInFlightLimiter(1),
		}
		m.accounts = append(m.accounts, a)
		m.byID[ac.ID] = a
		if ac.Enabled {
			m.byPair[ac.Pair] = append(m.byPair[ac.Pair], a)
		}
	}
	return m, nil
}

// Accounts returns all accounts in config order.
func (m *Manager) Accounts() []*Account {
	return m.accounts
}

// ByID returns nil for unknown ids.
func (m *Manager) ByID(id string) *Account {
	return m.byID[id]
}

// ForPair returns the enabled accounts trading the canonical pair.
func (m *Manager) ForPair(pair string) []*Account {
	return m.byPair[pair]
}

// RestoreState seeds each account's runtime from the store so cooldowns,
// repeat-action tracking and cached balances survive a restart.
func (m *Manager) RestoreState(ctx context.Context) error {
	for _, a := range m.accounts {
		var lastSwapAt time.Time
		if v, ok, err := m.store.GetAccountState(ctx, a.Cfg.ID, store.StateLastSwapAt); err != nil {
			return fmt.Errorf("restore %s: %w", a.Cfg.ID, err)
		} else if ok {
			if t, perr := time.Parse(time.RFC3339Nano, v); perr == nil {
				lastSwapAt = t
			}
		}

		var lastAction domain.Side
		if v, ok, err := m.store.GetAccountState(ctx, a.Cfg.ID, store.StateLastAction); err != nil {
			return fmt.Errorf("restore %s: %w", a.Cfg.ID, err)
		} else if ok {
			if side := domain.Side(v); side.Valid() {
				lastAction = side
			}
		}

		rows, err := m.store.GetWalletBalances(ctx, a.Cfg.ID)
		if err != nil {
			return fmt.Errorf("restore %s balances: %w", a.Cfg.ID, err)
		}
		balances := make(map[string]decimal.Decimal, len(rows))
		for _, row := range rows {
			balances[row.Token] = row.Balance
		}

		a.Runtime.Restore(lastSwapAt, lastAction, balances)
	}
	return nil
}

// SyncBalances refreshes the base and quote balances of every enabled
// account from the chain, bounded by a small worker pool. Individual
// failures are logged and counted, not fatal.
func (m *Manager) SyncBalances(ctx context.Context) (updated, failed int) {
	sem := make(chan struct{}, balanceWorkers)
	out := make(chan bool, len(m.accounts))

	for _, a := range m.accounts {
		if a.Wallet == nil {
			continue
		}
		a := a
		sem <- struct{}{}
		go func() {
			defer func() { <-sem }()
			acctCtx, cancel := context.WithTimeout(ctx, perAccountTimeout)
			defer cancel()
			out <- m.syncAccount(acctCtx, a)
		}()
	}

	// drain the pool
	for i := 0; i < cap(sem); i++ {
		sem <- struct{}{}
	}
	close(out)

	for ok := range out {
		if ok {
			updated++
		} else {
			failed++
		}
	}
	return updated, failed
}

func (m *Manager) syncAccount(ctx context.Context, a *Account) bool {
	ok := true
	for _, sym := range []string{a.Cfg.BaseToken, a.Cfg.QuoteToken} {
		info, found := m.tokens[sym]
		if !found {
			ok = false
			continue
		}
		bal, err := m.chain.TokenBalance(ctx, a.Wallet.PublicKey(), info.Mint, info.Decimals)
		if err != nil {
			logger.Warnf("balance sync %s/%s: %v", a.Cfg.ID, sym, err)
			ok = false
			continue
		}
		a.Runtime.SetBalance(sym, bal)
		if err := m.store.UpsertWalletBalance(ctx, a.Cfg.ID, sym, bal); err != nil {
			logger.Warnf("balance persist %s/%s: %v", a.Cfg.ID, sym, err)
			ok = false
		}
	}
	return ok
}
