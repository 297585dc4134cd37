// Package router fans a normalized signal out to every enabled account
// trading its pair and collects per-account outcomes. Rejections are normal
// operation here; only infrastructure failures surface as errors.
package router

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/skrlabs/skrswap/internal/account"
	"github.com/skrlabs/skrswap/internal/domain"
	"github.com/skrlabs/skrswap/internal/execution"
	"github.com/skrlabs/skrswap/internal/store"
	"github.com/skrlabs/skrswap/internal/strategy"
	"github.com/skrlabs/skrswap/pkg/logger"
)

// Executor runs one admitted swap to a terminal state.
type Executor interface {
	Execute(ctx context.Context, task execution.Task) (*domain.SwapRecord, error)
}

// AccountOutcome is what one account did with a signal.
type AccountOutcome struct {
	AccountID   string              `json:"account_id"`
	Admitted    bool                `json:"admitted"`
	Reason      domain.RejectReason `json:"reject_reason,omitempty"`
	Detail      string              `json:"detail,omitempty"`
	SwapID      string              `json:"swap_id,omitempty"`
	Status      domain.SwapStatus   `json:"status,omitempty"`
	FailReason  domain.FailReason   `json:"fail_reason,omitempty"`
	TxSignature string              `json:"tx_signature,omitempty"`
}

// RouteResult summarizes one signal's fan-out. Matched zero means no enabled
// account trades the pair; the signal is stored as ignored and that is still
// a success at the webhook boundary.
type RouteResult struct {
	SignalID string           `json:"signal_id"`
	Pair     string           `json:"pair"`
	Side     domain.Side      `json:"side"`
	Amount   *decimal.Decimal `json:"amount,omitempty"`
	Matched  int              `json:"matched_accounts"`
	Outcomes []AccountOutcome `json:"outcomes,omitempty"`
}

type Router struct {
	manager  *account.Manager
	store    *store.Store
	gate     *strategy.Gate
	executor Executor
}

func New(manager *account.Manager, st *store.Store, executor Executor) *Router {
	return &Router{
		manager:  manager,
		store:    st,
		gate:     strategy.NewGate(),
		executor: executor,
	}
}

// Route stores the signal, dispatches it to each matching account in
// parallel and waits for all outcomes.
func (r *Router) Route(ctx context.Context, sig *domain.Signal) (*RouteResult, error) {
	matched := r.manager.ForPair(sig.Pair)
	status := domain.SignalProcessed
	if len(matched) == 0 {
		status = domain.SignalIgnored
	}
	if err := r.store.InsertSignal(ctx, sig, status); err != nil {
		return nil, fmt.Errorf("record signal: %w", err)
	}

	res := &RouteResult{SignalID: sig.ID, Pair: sig.Pair, Side: sig.Side, Amount: sig.Amount, Matched: len(matched)}
	if len(matched) == 0 {
		logger.Infof("signal %s ignored: no enabled account trades %s", sig.ID, sig.Pair)
		return res, nil
	}

	outcomes := make([]AccountOutcome, len(matched))
	var wg sync.WaitGroup
	wg.Add(len(matched))
	for i, a := range matched {
		i, a := i, a
		go func() {
			defer wg.Done()
			outcomes[i] = r.routeOne(ctx, a, sig)
		}()
	}
	wg.Wait()

	res.Outcomes = outcomes
	return res, nil
}

func (r *Router) routeOne(ctx context.Context, a *account.Account, sig *domain.Signal) AccountOutcome {
	out := AccountOutcome{AccountID: a.Cfg.ID}

	// One swap at a time per account; a busy account rejects, never queues.
	if !a.Limiter.TryAcquire() {
		out.Reason = domain.RejectAccountBusy
		out.Detail = "a swap is already in flight"
		logger.Infof("signal %s rejected for %s: %s", sig.ID, a.Cfg.ID, out.Reason)
		return out
	}
	defer a.Limiter.Release()

	amount, rejection := r.gate.Admit(&a.Cfg, a.Runtime, sig)
	if rejection != nil {
		out.Reason = rejection.Reason
		out.Detail = rejection.Detail
		logger.Infof("signal %s rejected for %s: %s", sig.ID, a.Cfg.ID, rejection)
		return out
	}
	out.Admitted = true

	// The admission stamp opened a new cooldown window; mirror it so a
	// restart cannot re-open the old one.
	if err := r.store.SetAccountState(ctx, a.Cfg.ID, store.StateLastSwapAt,
		a.Runtime.LastSwapAt().Format(time.RFC3339Nano)); err != nil {
		logger.Warnf("persist admission time for %s: %v", a.Cfg.ID, err)
	}

	req := strategy.Plan(&a.Cfg, sig, amount)
	rec, err := r.executor.Execute(ctx, execution.Task{
		Request:  req,
		Wallet:   a.Wallet,
		Runtime:  a.Runtime,
		Strategy: a.Cfg.Strategy,
	})
	if err != nil {
		out.Detail = err.Error()
		logger.Errorf("signal %s execution for %s: %v", sig.ID, a.Cfg.ID, err)
		return out
	}

	out.SwapID = rec.ID
	out.Status = rec.Status
	out.FailReason = rec.FailReason
	out.TxSignature = rec.TxSignature
	return out
}
