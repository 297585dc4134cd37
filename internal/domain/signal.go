package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Side is the direction of a trading signal.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Valid reports whether the side is one of the two known directions.
func (s Side) Valid() bool {
	return s == SideBuy || s == SideSell
}

// Signal is the canonical form of an inbound trading signal. Every supported
// webhook payload shape normalizes to this before routing; downstream code
// never sees the wire format.
type Signal struct {
	ID         string           // assigned at ingest
	Pair       string           // e.g. "SOL/USDC"
	Side       Side             // BUY or SELL
	Amount     *decimal.Decimal // optional size override, input-token units
	Source     string           // payload shape that produced the signal
	Raw        string           // original payload, kept for audit
	ReceivedAt time.Time
}

// SignalStatus records what became of a stored signal.
type SignalStatus string

const (
	SignalProcessed SignalStatus = "processed" // matched at least one account
	SignalIgnored   SignalStatus = "ignored"   // no account trades this pair
)

// ParseCode classifies why a payload could not become a Signal.
type ParseCode string

const (
	ParseMalformed     ParseCode = "MALFORMED"
	ParseUnknownPair   ParseCode = "UNKNOWN_PAIR"
	ParseUnknownAction ParseCode = "UNKNOWN_ACTION"
)

// ParseError reports a rejected payload. It maps to an HTTP 4xx at the
// webhook boundary.
type ParseError struct {
	Code   ParseCode
	Detail string
}

func (e *ParseError) Error() string {
	if e.Detail == "" {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Detail)
}

// RejectReason explains why the strategy gate refused an otherwise valid
// signal for one account. Rejections are normal operation, not errors.
type RejectReason string

const (
	RejectCooldownActive      RejectReason = "COOLDOWN_ACTIVE"
	RejectSizeOutOfBounds     RejectReason = "SIZE_OUT_OF_BOUNDS"
	RejectInsufficientBalance RejectReason = "INSUFFICIENT_BALANCE"
	RejectAccountBusy         RejectReason = "ACCOUNT_BUSY"
	RejectDuplicateAction     RejectReason = "DUPLICATE_ACTION"
)
