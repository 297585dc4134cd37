package strategy

import (
	"github.com/shopspring/decimal"

	"github.com/skrlabs/skrswap/internal/config"
	"github.com/skrlabs/skrswap/internal/domain"
)

// Plan turns an admitted signal into a concrete swap request. Pure function:
// the admitted amount and the account config fully determine the result.
func Plan(acct *config.AccountConfig, sig *domain.Signal, amount decimal.Decimal) domain.SwapRequest {
	return domain.SwapRequest{
		AccountID:   acct.ID,
		SignalID:    sig.ID,
		Pair:        acct.Pair,
		Side:        sig.Side,
		InputToken:  SpendToken(acct, sig.Side),
		OutputToken: ReceiveToken(acct, sig.Side),
		Amount:      amount,
		SlippageBps: acct.Strategy.MaxSlippageBps,
	}
}
