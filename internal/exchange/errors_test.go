package exchange

import (
	"errors"
	"net"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestClassifyRPC(t *testing.T) {
	cases := []struct {
		name      string
		err       error
		transient bool
	}{
		{"nil", nil, false},
		{"dns timeout", &net.DNSError{Err: "lookup timeout", IsTimeout: true}, true},
		{"connection refused text", errors.New("dial tcp 127.0.0.1:8899: connection refused"), true},
		{"throttled", errors.New("429 Too Many Requests"), true},
		{"io timeout text", errors.New("read tcp: i/o timeout"), true},
		{"rpc rejection", errors.New("Transaction simulation failed: Blockhash not found"), false},
		{"insufficient funds", errors.New("RPC error -32002: insufficient funds for fee"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := classifyRPC("send", tc.err)
			if tc.err == nil {
				require.NoError(t, got)
				return
			}
			require.Error(t, got)
			require.Equal(t, tc.transient, IsTransient(got))
		})
	}
}

func TestOnChainErrorNeverTransient(t *testing.T) {
	err := &OnChainError{Signature: "5j7s...", Detail: "InstructionError: [0, {Custom: 6001}]"}
	require.False(t, IsTransient(err))
	require.Contains(t, err.Error(), "failed on chain")
}

func TestAtomicConversions(t *testing.T) {
	atomic, err := ToAtomic(decimal.RequireFromString("1.5"), 9)
	require.NoError(t, err)
	require.Equal(t, uint64(1500000000), atomic)

	// Sub-unit dust truncates instead of rounding up.
	atomic, err = ToAtomic(decimal.RequireFromString("0.0000000019"), 9)
	require.NoError(t, err)
	require.Equal(t, uint64(1), atomic)

	_, err = ToAtomic(decimal.RequireFromString("-0.5"), 9)
	require.Error(t, err)

	d, err := FromAtomic("2500000", 6)
	require.NoError(t, err)
	require.True(t, d.Equal(decimal.RequireFromString("2.5")))

	_, err = FromAtomic("not-a-number", 6)
	require.Error(t, err)

	require.True(t, LamportsToSol(1250000000).Equal(decimal.RequireFromString("1.25")))
}
