package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// SwapRequest is a fully specified swap ready for execution. It is produced
// by the planner from an admitted signal and carries everything the executor
// needs; the executor never consults strategy config.
type SwapRequest struct {
	AccountID   string
	SignalID    string
	Pair        string
	Side        Side
	InputToken  string          // symbol of the token being spent
	OutputToken string          // symbol of the token being acquired
	Amount      decimal.Decimal // input-token units
	SlippageBps int
}

// SwapStatus is the lifecycle state of a swap attempt.
type SwapStatus string

const (
	SwapPending   SwapStatus = "PENDING"   // recorded, nothing sent yet
	SwapQuoted    SwapStatus = "QUOTED"    // quote obtained, slippage checked
	SwapSubmitted SwapStatus = "SUBMITTED" // transaction sent, awaiting confirmation
	SwapCompleted SwapStatus = "COMPLETED"
	SwapFailed    SwapStatus = "FAILED"
)

// Terminal reports whether the status admits no further transitions.
func (s SwapStatus) Terminal() bool {
	return s == SwapCompleted || s == SwapFailed
}

// FailReason explains a terminal FAILED swap.
type FailReason string

const (
	FailQuoteUnavailable    FailReason = "QUOTE_UNAVAILABLE"    // no route / quote error
	FailSlippageExceeded    FailReason = "SLIPPAGE_EXCEEDED"    // quote impact above account limit
	FailInsufficientBalance FailReason = "INSUFFICIENT_BALANCE" // pre-submit balance re-check failed
	FailSubmitRejected      FailReason = "SUBMIT_REJECTED"      // node rejected the transaction
	FailOnChainRejected     FailReason = "ON_CHAIN_REJECTED"    // transaction landed but errored
	FailConfirmationTimeout FailReason = "CONFIRMATION_TIMEOUT" // not confirmed within deadline
	FailTransportError      FailReason = "TRANSPORT_ERROR"      // transient errors exhausted retries
)

// SwapRecord is the persisted outcome of one swap attempt. Exactly one record
// exists per executed SwapRequest and it reaches exactly one terminal status.
type SwapRecord struct {
	ID          string
	AccountID   string
	SignalID    string
	Pair        string
	Side        Side
	InputToken  string
	OutputToken string
	InAmount    decimal.Decimal
	OutAmount   decimal.Decimal // expected output from the accepted quote
	Status      SwapStatus
	FailReason  FailReason // set only when Status == FAILED
	FailStage   SwapStatus // last stage reached before the failure
	FailDetail  string
	TxSignature string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
