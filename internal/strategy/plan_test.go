package strategy

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/skrlabs/skrswap/internal/domain"
)

func TestPlanBuySpendsBaseForQuote(t *testing.T) {
	acct := testAccount()
	sig := buySignal("3")

	req := Plan(acct, sig, decimal.NewFromInt(3))
	require.Equal(t, "main", req.AccountID)
	require.Equal(t, "sig", req.SignalID)
	require.Equal(t, "SOL", req.InputToken)
	require.Equal(t, "USDC", req.OutputToken)
	require.Equal(t, "3", req.Amount.String())
	require.Equal(t, 100, req.SlippageBps)
}

func TestPlanSellSpendsQuoteForBase(t *testing.T) {
	acct := testAccount()
	sig := sellSignal("")

	req := Plan(acct, sig, decimal.NewFromFloat(0.5))
	require.Equal(t, "USDC", req.InputToken)
	require.Equal(t, "SOL", req.OutputToken)
	require.Equal(t, domain.SideSell, req.Side)
}
