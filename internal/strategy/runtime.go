// Package strategy decides whether a signal may trade and what the trade
// looks like: per-account runtime state, the admission gate, and the planner.
package strategy

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/skrlabs/skrswap/internal/domain"
)

// Runtime is the mutable per-account state the gate and executor share. All
// access goes through its methods; the admission check-and-stamp runs under
// one lock so two racing signals cannot both clear the cooldown window.
type Runtime struct {
	mu         sync.Mutex
	lastSwapAt time.Time
	lastAction domain.Side
	balances   map[string]decimal.Decimal
}

func NewRuntime() *Runtime {
	return &Runtime{balances: make(map[string]decimal.Decimal)}
}

// Restore seeds the state from persistence at startup.
func (r *Runtime) Restore(lastSwapAt time.Time, lastAction domain.Side, balances map[string]decimal.Decimal) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastSwapAt = lastSwapAt
	r.lastAction = lastAction
	for tok, bal := range balances {
		r.balances[tok] = bal
	}
}

// SetBalance records a fresh on-chain observation for one token.
func (r *Runtime) SetBalance(token string, balance decimal.Decimal) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.balances[token] = balance
}

// Balance returns the last known balance, zero when never observed.
func (r *Runtime) Balance(token string) decimal.Decimal {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.balances[token]
}

// Balances returns a copy of all known balances.
func (r *Runtime) Balances() map[string]decimal.Decimal {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]decimal.Decimal, len(r.balances))
	for tok, bal := range r.balances {
		out[tok] = bal
	}
	return out
}

// LastSwapAt returns the admission timestamp of the most recent admitted
// signal (zero when none).
func (r *Runtime) LastSwapAt() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastSwapAt
}

// LastAction returns the side of the last completed swap.
func (r *Runtime) LastAction() domain.Side {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastAction
}

// MarkCompleted applies a successful swap: the spend token goes down, the
// receive token goes up, and the action is remembered for repeat suppression.
func (r *Runtime) MarkCompleted(side domain.Side, spendToken string, spent decimal.Decimal, receiveToken string, received decimal.Decimal) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastAction = side
	if bal, ok := r.balances[spendToken]; ok {
		r.balances[spendToken] = bal.Sub(spent)
	}
	if received.IsPositive() {
		r.balances[receiveToken] = r.balances[receiveToken].Add(received)
	}
}
