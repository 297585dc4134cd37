// Package execution runs admitted swaps through their lifecycle: quote,
// slippage check, balance re-check, submit, confirm. Every attempt leaves
// exactly one persisted record that ends COMPLETED or FAILED with a reason.
package execution

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/skrlabs/skrswap/internal/config"
	"github.com/skrlabs/skrswap/internal/domain"
	"github.com/skrlabs/skrswap/internal/exchange"
	"github.com/skrlabs/skrswap/internal/store"
	"github.com/skrlabs/skrswap/internal/strategy"
	"github.com/skrlabs/skrswap/internal/wallet"
	"github.com/skrlabs/skrswap/pkg/logger"
	"github.com/skrlabs/skrswap/pkg/retry"
)

// Terminal store writes must land even when the request context is gone.
const terminalWriteTimeout = 5 * time.Second

// Aggregator prices swaps and builds unsigned transactions.
type Aggregator interface {
	GetQuote(ctx context.Context, inputMint, outputMint string, amount uint64, slippageBps int) (*exchange.Quote, error)
	BuildSwapTransaction(ctx context.Context, quote *exchange.Quote, userPublicKey string, computeUnitPrice uint64) (string, error)
}

// Chain reads balances and moves transactions through the node.
type Chain interface {
	TokenBalance(ctx context.Context, owner solana.PublicKey, mint string, decimals int) (decimal.Decimal, error)
	SignAndSend(ctx context.Context, txBase64 string, w *wallet.Wallet) (solana.Signature, error)
	WaitForConfirmation(ctx context.Context, sig solana.Signature) error
}

// Task bundles everything one swap attempt needs. The request is already
// admitted; the executor re-checks only what can have changed since.
type Task struct {
	Request  domain.SwapRequest
	Wallet   *wallet.Wallet
	Runtime  *strategy.Runtime
	Strategy config.StrategyConfig
}

// Params configures an Executor.
type Params struct {
	Store            *store.Store
	Aggregator       Aggregator
	Chain            Chain
	Tokens           map[string]config.TokenInfo
	Retry            retry.Policy
	ConfirmTimeout   time.Duration
	ComputeUnitPrice uint64
}

type Executor struct {
	store            *store.Store
	agg              Aggregator
	chain            Chain
	tokens           map[string]config.TokenInfo
	policy           retry.Policy
	confirmTimeout   time.Duration
	computeUnitPrice uint64

	now   func() time.Time
	newID func() string
}

func New(p Params) *Executor {
	confirmTimeout := p.ConfirmTimeout
	if confirmTimeout <= 0 {
		confirmTimeout = 90 * time.Second
	}
	return &Executor{
		store:            p.Store,
		agg:              p.Aggregator,
		chain:            p.Chain,
		tokens:           p.Tokens,
		policy:           p.Retry,
		confirmTimeout:   confirmTimeout,
		computeUnitPrice: p.ComputeUnitPrice,
		now:              time.Now,
		newID:            uuid.NewString,
	}
}

// Execute drives one swap to a terminal state. Business failures come back as
// a FAILED record with nil error; a non-nil error means the attempt could not
// even be recorded.
func (e *Executor) Execute(ctx context.Context, task Task) (*domain.SwapRecord, error) {
	req := task.Request
	inputInfo, ok := e.tokens[req.InputToken]
	if !ok {
		return nil, fmt.Errorf("unknown input token %q", req.InputToken)
	}
	outputInfo, ok := e.tokens[req.OutputToken]
	if !ok {
		return nil, fmt.Errorf("unknown output token %q", req.OutputToken)
	}

	now := e.now()
	rec := &domain.SwapRecord{
		ID:          e.newID(),
		AccountID:   req.AccountID,
		SignalID:    req.SignalID,
		Pair:        req.Pair,
		Side:        req.Side,
		InputToken:  req.InputToken,
		OutputToken: req.OutputToken,
		InAmount:    req.Amount,
		Status:      domain.SwapPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := e.store.CreateSwap(ctx, rec); err != nil {
		return nil, fmt.Errorf("create swap record: %w", err)
	}

	log := logger.WithFields(logrus.Fields{
		"swap_id": rec.ID,
		"account": req.AccountID,
		"pair":    req.Pair,
		"side":    req.Side,
	})

	amountAtomic, err := exchange.ToAtomic(req.Amount, inputInfo.Decimals)
	if err != nil {
		return e.fail(rec, domain.FailQuoteUnavailable, domain.SwapPending, err, log)
	}

	// Quote. Transient transport failures are retried, a missing route is not.
	var quote *exchange.Quote
	err = retry.Do(ctx, e.policy, exchange.IsTransient, func(ctx context.Context) error {
		q, qerr := e.agg.GetQuote(ctx, inputInfo.Mint, outputInfo.Mint, amountAtomic, req.SlippageBps)
		if qerr != nil {
			return qerr
		}
		quote = q
		return nil
	})
	if err != nil {
		reason := domain.FailQuoteUnavailable
		if exchange.IsTransient(err) {
			reason = domain.FailTransportError
		}
		return e.fail(rec, reason, domain.SwapPending, err, log)
	}

	rec.Status = domain.SwapQuoted
	if err := e.store.MarkSwapStage(ctx, rec.ID, domain.SwapQuoted); err != nil {
		return nil, fmt.Errorf("mark quoted: %w", err)
	}

	expectedOut, err := quote.OutAmountDecimal(outputInfo.Decimals)
	if err != nil {
		return e.fail(rec, domain.FailQuoteUnavailable, domain.SwapQuoted, err, log)
	}
	rec.OutAmount = expectedOut

	// The quoted impact must fit inside the account's slippage budget before
	// anything is signed.
	impactBps := quote.PriceImpactBps()
	if impactBps.GreaterThan(decimal.NewFromInt(int64(req.SlippageBps))) {
		return e.fail(rec, domain.FailSlippageExceeded, domain.SwapQuoted,
			fmt.Errorf("price impact %s bps exceeds limit %d bps", impactBps.StringFixed(1), req.SlippageBps), log)
	}

	// Admission used the cached balance; read the chain again before spending.
	var balance decimal.Decimal
	err = retry.Do(ctx, e.policy, exchange.IsTransient, func(ctx context.Context) error {
		b, berr := e.chain.TokenBalance(ctx, task.Wallet.PublicKey(), inputInfo.Mint, inputInfo.Decimals)
		if berr != nil {
			return berr
		}
		balance = b
		return nil
	})
	if err != nil {
		return e.fail(rec, domain.FailTransportError, domain.SwapQuoted, err, log)
	}
	task.Runtime.SetBalance(req.InputToken, balance)
	if balance.Sub(req.Amount).LessThan(task.Strategy.MinBalanceReserve) {
		return e.fail(rec, domain.FailInsufficientBalance, domain.SwapQuoted,
			fmt.Errorf("balance %s minus %s breaches reserve %s",
				balance, req.Amount, task.Strategy.MinBalanceReserve), log)
	}

	var txB64 string
	err = retry.Do(ctx, e.policy, exchange.IsTransient, func(ctx context.Context) error {
		t, terr := e.agg.BuildSwapTransaction(ctx, quote, task.Wallet.Address(), e.computeUnitPrice)
		if terr != nil {
			return terr
		}
		txB64 = t
		return nil
	})
	if err != nil {
		reason := domain.FailSubmitRejected
		if exchange.IsTransient(err) {
			reason = domain.FailTransportError
		}
		return e.fail(rec, reason, domain.SwapQuoted, err, log)
	}

	// Re-broadcasting the same signed bytes is safe: the blockhash dedupes.
	var sig solana.Signature
	err = retry.Do(ctx, e.policy, exchange.IsTransient, func(ctx context.Context) error {
		s, serr := e.chain.SignAndSend(ctx, txB64, task.Wallet)
		if serr != nil {
			return serr
		}
		sig = s
		return nil
	})
	if err != nil {
		reason := domain.FailSubmitRejected
		if exchange.IsTransient(err) {
			reason = domain.FailTransportError
		}
		return e.fail(rec, reason, domain.SwapQuoted, err, log)
	}

	rec.Status = domain.SwapSubmitted
	rec.TxSignature = sig.String()
	if err := e.store.SetSwapSubmitted(ctx, rec.ID, sig.String()); err != nil {
		return nil, fmt.Errorf("mark submitted: %w", err)
	}
	log.Infof("submitted swap, signature %s", sig)

	confirmCtx, cancel := context.WithTimeout(ctx, e.confirmTimeout)
	defer cancel()
	err = e.chain.WaitForConfirmation(confirmCtx, sig)
	if err != nil {
		var onChain *exchange.OnChainError
		switch {
		case errors.As(err, &onChain):
			return e.fail(rec, domain.FailOnChainRejected, domain.SwapSubmitted, err, log)
		default:
			// Deadline or shutdown; either way the outcome is unknown.
			return e.fail(rec, domain.FailConfirmationTimeout, domain.SwapSubmitted, err, log)
		}
	}

	wctx, wcancel := context.WithTimeout(context.Background(), terminalWriteTimeout)
	defer wcancel()
	if err := e.store.CompleteSwap(wctx, rec.ID, expectedOut); err != nil {
		return nil, fmt.Errorf("mark completed: %w", err)
	}
	rec.Status = domain.SwapCompleted
	task.Runtime.MarkCompleted(req.Side, req.InputToken, req.Amount, req.OutputToken, expectedOut)
	e.persistRuntime(req.AccountID, task.Runtime, req.Side, log)

	log.Infof("swap completed: spent %s %s for %s %s",
		req.Amount, req.InputToken, expectedOut, req.OutputToken)
	return rec, nil
}

// fail records the terminal failure. It uses a fresh context so the record
// lands even when the request context is already canceled.
func (e *Executor) fail(rec *domain.SwapRecord, reason domain.FailReason, stage domain.SwapStatus, cause error, log *logrus.Entry) (*domain.SwapRecord, error) {
	detail := ""
	if cause != nil {
		detail = cause.Error()
	}
	ctx, cancel := context.WithTimeout(context.Background(), terminalWriteTimeout)
	defer cancel()
	if err := e.store.FailSwap(ctx, rec.ID, reason, stage, detail); err != nil {
		return nil, fmt.Errorf("record %s failure: %w", reason, err)
	}
	rec.Status = domain.SwapFailed
	rec.FailReason = reason
	rec.FailStage = stage
	rec.FailDetail = detail
	log.Warnf("swap failed at %s: %s (%s)", stage, reason, detail)
	return rec, nil
}

// persistRuntime mirrors post-swap state to the store so a restart can
// restore cooldown and repeat-action tracking. Best effort: the swap itself
// is already recorded.
func (e *Executor) persistRuntime(accountID string, rt *strategy.Runtime, side domain.Side, log *logrus.Entry) {
	ctx, cancel := context.WithTimeout(context.Background(), terminalWriteTimeout)
	defer cancel()
	if err := e.store.SetAccountState(ctx, accountID, store.StateLastAction, string(side)); err != nil {
		log.Warnf("persist last action: %v", err)
	}
	for token, bal := range rt.Balances() {
		if err := e.store.UpsertWalletBalance(ctx, accountID, token, bal); err != nil {
			log.Warnf("persist %s balance: %v", token, err)
		}
	}
}
