package server

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/skrlabs/skrswap/internal/account"
	"github.com/skrlabs/skrswap/internal/domain"
)

// swapView is the API shape of a swap record. Amounts marshal as strings,
// keeping decimal precision out of float territory.
type swapView struct {
	ID          string          `json:"id"`
	AccountID   string          `json:"account_id"`
	SignalID    string          `json:"signal_id"`
	Pair        string          `json:"pair"`
	Side        string          `json:"side"`
	InputToken  string          `json:"input_token"`
	OutputToken string          `json:"output_token"`
	InAmount    decimal.Decimal `json:"in_amount"`
	OutAmount   decimal.Decimal `json:"out_amount"`
	Status      string          `json:"status"`
	FailReason  string          `json:"fail_reason,omitempty"`
	FailStage   string          `json:"fail_stage,omitempty"`
	FailDetail  string          `json:"fail_detail,omitempty"`
	TxSignature string          `json:"tx_signature,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func toSwapView(rec domain.SwapRecord) swapView {
	return swapView{
		ID:          rec.ID,
		AccountID:   rec.AccountID,
		SignalID:    rec.SignalID,
		Pair:        rec.Pair,
		Side:        string(rec.Side),
		InputToken:  rec.InputToken,
		OutputToken: rec.OutputToken,
		InAmount:    rec.InAmount,
		OutAmount:   rec.OutAmount,
		Status:      string(rec.Status),
		FailReason:  string(rec.FailReason),
		FailStage:   string(rec.FailStage),
		FailDetail:  rec.FailDetail,
		TxSignature: rec.TxSignature,
		CreatedAt:   rec.CreatedAt,
		UpdatedAt:   rec.UpdatedAt,
	}
}

// accountView summarizes one configured account and its live state.
type accountView struct {
	ID          string     `json:"id"`
	Label       string     `json:"label,omitempty"`
	Enabled     bool       `json:"enabled"`
	Pair        string     `json:"pair"`
	Address     string     `json:"address,omitempty"`
	InFlight    int        `json:"in_flight"`
	LastSwapAt  *time.Time `json:"last_swap_at,omitempty"`
	LastAction  string     `json:"last_action,omitempty"`
	SwapSize    string     `json:"default_swap_size"`
	MaxSwapSize string     `json:"max_swap_size"`
	CooldownSec int        `json:"cooldown_seconds"`
	SlippageBps int        `json:"max_slippage_bps"`
}

func toAccountView(a *account.Account) accountView {
	v := accountView{
		ID:          a.Cfg.ID,
		Label:       a.Cfg.Label,
		Enabled:     a.Cfg.Enabled,
		Pair:        a.Cfg.Pair,
		InFlight:    a.Limiter.InFlight(),
		LastAction:  string(a.Runtime.LastAction()),
		SwapSize:    a.Cfg.Strategy.DefaultSwapSize.String(),
		MaxSwapSize: a.Cfg.Strategy.MaxSwapSize.String(),
		CooldownSec: int(a.Cfg.Strategy.MinTimeBetweenSwaps.Seconds()),
		SlippageBps: a.Cfg.Strategy.MaxSlippageBps,
	}
	if a.Wallet != nil {
		v.Address = a.Wallet.Address()
	}
	if at := a.Runtime.LastSwapAt(); !at.IsZero() {
		v.LastSwapAt = &at
	}
	return v
}
