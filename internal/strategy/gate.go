package strategy

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/skrlabs/skrswap/internal/config"
	"github.com/skrlabs/skrswap/internal/domain"
)

// Rejection is a gate refusal. It is an expected outcome, not an error; the
// signal is considered fully handled once it is recorded.
type Rejection struct {
	Reason domain.RejectReason
	Detail string
}

func (r *Rejection) String() string {
	if r.Detail == "" {
		return string(r.Reason)
	}
	return fmt.Sprintf("%s (%s)", r.Reason, r.Detail)
}

// Gate applies the per-account admission checks in a fixed order, short-
// circuiting on the first failure: cooldown, repeat action (opt-in), size
// bounds, balance reserve.
type Gate struct {
	now func() time.Time
}

func NewGate() *Gate {
	return &Gate{now: time.Now}
}

// Admit decides one signal for one account. On admission it returns the
// resolved amount and stamps the cooldown timestamp in the same locked step,
// so a second signal racing within the window sees the updated state and is
// rejected. Admission does not lock funds; the executor re-checks balance
// before submitting.
func (g *Gate) Admit(acct *config.AccountConfig, rt *Runtime, sig *domain.Signal) (decimal.Decimal, *Rejection) {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	now := g.now()
	cooldown := acct.Strategy.MinTimeBetweenSwaps
	if cooldown > 0 && !rt.lastSwapAt.IsZero() {
		if elapsed := now.Sub(rt.lastSwapAt); elapsed < cooldown {
			return decimal.Zero, &Rejection{
				Reason: domain.RejectCooldownActive,
				Detail: fmt.Sprintf("%s of %s elapsed", elapsed.Truncate(time.Millisecond), cooldown),
			}
		}
	}

	if acct.Strategy.RejectRepeatAction && rt.lastAction == sig.Side {
		return decimal.Zero, &Rejection{
			Reason: domain.RejectDuplicateAction,
			Detail: fmt.Sprintf("last completed action was already %s", sig.Side),
		}
	}

	amount := acct.Strategy.DefaultSwapSize
	if sig.Amount != nil {
		amount = *sig.Amount
	}
	if !amount.IsPositive() || amount.GreaterThan(acct.Strategy.MaxSwapSize) {
		return decimal.Zero, &Rejection{
			Reason: domain.RejectSizeOutOfBounds,
			Detail: fmt.Sprintf("amount %s outside (0, %s]", amount, acct.Strategy.MaxSwapSize),
		}
	}

	spend := SpendToken(acct, sig.Side)
	balance := rt.balances[spend]
	if balance.Sub(amount).LessThan(acct.Strategy.MinBalanceReserve) {
		return decimal.Zero, &Rejection{
			Reason: domain.RejectInsufficientBalance,
			Detail: fmt.Sprintf("%s balance %s cannot cover %s plus reserve %s",
				spend, balance, amount, acct.Strategy.MinBalanceReserve),
		}
	}

	// Admission closes the cooldown window immediately, not at completion.
	rt.lastSwapAt = now
	return amount, nil
}

// SpendToken is the side of the pair a swap reduces: BUY spends the base
// token to acquire quote, SELL spends quote to acquire base.
func SpendToken(acct *config.AccountConfig, side domain.Side) string {
	if side == domain.SideBuy {
		return acct.BaseToken
	}
	return acct.QuoteToken
}

// ReceiveToken is the opposite side of SpendToken.
func ReceiveToken(acct *config.AccountConfig, side domain.Side) string {
	if side == domain.SideBuy {
		return acct.QuoteToken
	}
	return acct.BaseToken
}
