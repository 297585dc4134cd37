package exchange

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/mr-tron/base58"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/skrlabs/skrswap/internal/config"
	"github.com/skrlabs/skrswap/internal/wallet"
)

type rpcCall struct {
	Method string
	Params []json.RawMessage
}

// newRPCServer fakes a Solana JSON-RPC node. The handler returns the result
// payload for one call; calls are recorded in order.
func newRPCServer(t *testing.T, handler func(call rpcCall) any) (*Solana, *[]rpcCall) {
	t.Helper()
	var mu sync.Mutex
	var calls []rpcCall

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     any               `json:"id"`
			Method string            `json:"method"`
			Params []json.RawMessage `json:"params"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		call := rpcCall{Method: req.Method, Params: req.Params}
		mu.Lock()
		calls = append(calls, call)
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  handler(call),
		})
	}))
	t.Cleanup(srv.Close)

	s := NewSolana(config.SolanaConfig{
		RPCURL:              srv.URL,
		Commitment:          "confirmed",
		ConfirmPollInterval: 10 * time.Millisecond,
	})
	return s, &calls
}

func testOwner() solana.PublicKey {
	return solana.PublicKeyFromBytes(bytes.Repeat([]byte{3}, 32))
}

func contextResult(value any) map[string]any {
	return map[string]any{
		"context": map[string]any{"slot": 1},
		"value":   value,
	}
}

func TestTokenBalanceNative(t *testing.T) {
	s, calls := newRPCServer(t, func(call rpcCall) any {
		require.Equal(t, "getBalance", call.Method)
		return contextResult(uint64(2_500_000_000))
	})

	bal, err := s.TokenBalance(context.Background(), testOwner(), NativeMint, 9)
	require.NoError(t, err)
	require.True(t, decimal.NewFromFloat(2.5).Equal(bal), "got %s", bal)

	require.Len(t, *calls, 1)
	var owner string
	require.NoError(t, json.Unmarshal((*calls)[0].Params[0], &owner))
	require.Equal(t, testOwner().String(), owner)
}

func TestTokenBalanceSumsTokenAccounts(t *testing.T) {
	mint := solana.PublicKeyFromBytes(bytes.Repeat([]byte{4}, 32))
	acct1 := solana.PublicKeyFromBytes(bytes.Repeat([]byte{5}, 32))
	acct2 := solana.PublicKeyFromBytes(bytes.Repeat([]byte{6}, 32))

	amounts := map[string]string{
		acct1.String(): "1500000",
		acct2.String(): "500000",
	}

	s, _ := newRPCServer(t, func(call rpcCall) any {
		switch call.Method {
		case "getTokenAccountsByOwner":
			tokenAccount := func(pk solana.PublicKey) map[string]any {
				return map[string]any{
					"pubkey": pk.String(),
					"account": map[string]any{
						"data":       []any{"", "base64"},
						"executable": false,
						"lamports":   2039280,
						"owner":      "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA",
						"rentEpoch":  0,
					},
				}
			}
			return contextResult([]any{tokenAccount(acct1), tokenAccount(acct2)})
		case "getTokenAccountBalance":
			var pk string
			require.NoError(t, json.Unmarshal(call.Params[0], &pk))
			return contextResult(map[string]any{
				"amount":         amounts[pk],
				"decimals":       6,
				"uiAmountString": "",
			})
		default:
			t.Fatalf("unexpected method %s", call.Method)
			return nil
		}
	})

	bal, err := s.TokenBalance(context.Background(), testOwner(), mint.String(), 6)
	require.NoError(t, err)
	require.True(t, decimal.NewFromInt(2).Equal(bal), "got %s", bal)
}

func TestTokenBalanceMissingAccountIsZero(t *testing.T) {
	mint := solana.PublicKeyFromBytes(bytes.Repeat([]byte{4}, 32))
	s, _ := newRPCServer(t, func(call rpcCall) any {
		require.Equal(t, "getTokenAccountsByOwner", call.Method)
		return contextResult([]any{})
	})

	bal, err := s.TokenBalance(context.Background(), testOwner(), mint.String(), 6)
	require.NoError(t, err)
	require.True(t, bal.IsZero())
}

// unsignedTransferB64 builds the kind of payload the aggregator returns: a
// serialized transaction awaiting the owner's signature.
func unsignedTransferB64(t *testing.T, payer solana.PublicKey) string {
	t.Helper()
	var blockhash solana.Hash
	copy(blockhash[:], bytes.Repeat([]byte{9}, 32))

	recipient := solana.PublicKeyFromBytes(bytes.Repeat([]byte{8}, 32))
	tx, err := solana.NewTransaction(
		[]solana.Instruction{
			system.NewTransferInstruction(1, payer, recipient).Build(),
		},
		blockhash,
		solana.TransactionPayer(payer),
	)
	require.NoError(t, err)

	raw, err := tx.MarshalBinary()
	require.NoError(t, err)
	return base64.StdEncoding.EncodeToString(raw)
}

func TestSignAndSendSignsBeforeBroadcast(t *testing.T) {
	w, err := wallet.FromBase58(base58.Encode(bytes.Repeat([]byte{7}, 32)))
	require.NoError(t, err)

	wantSig := base58.Encode(bytes.Repeat([]byte{2}, 64))
	s, calls := newRPCServer(t, func(call rpcCall) any {
		require.Equal(t, "sendTransaction", call.Method)
		return wantSig
	})

	sig, err := s.SignAndSend(context.Background(), unsignedTransferB64(t, w.PublicKey()), w)
	require.NoError(t, err)
	require.Equal(t, wantSig, sig.String())

	// The broadcast payload must carry the wallet's signature.
	require.Len(t, *calls, 1)
	var sentB64 string
	require.NoError(t, json.Unmarshal((*calls)[0].Params[0], &sentB64))
	raw, err := base64.StdEncoding.DecodeString(sentB64)
	require.NoError(t, err)
	sent, err := solana.TransactionFromDecoder(bin.NewBinDecoder(raw))
	require.NoError(t, err)
	require.Len(t, sent.Signatures, 1)

	msg, err := sent.Message.MarshalBinary()
	require.NoError(t, err)
	pub := ed25519.PublicKey(w.PublicKey().Bytes())
	require.True(t, ed25519.Verify(pub, msg, sent.Signatures[0][:]))
}

func TestSignAndSendRejectsBadPayload(t *testing.T) {
	w, err := wallet.FromBase58(base58.Encode(bytes.Repeat([]byte{7}, 32)))
	require.NoError(t, err)

	s, calls := newRPCServer(t, func(call rpcCall) any { return nil })
	_, err = s.SignAndSend(context.Background(), "not base64!!", w)
	require.Error(t, err)
	require.Empty(t, *calls, "nothing should reach the node")
}

func signatureStatus(status string, txErr any) map[string]any {
	return map[string]any{
		"context": map[string]any{"slot": 1},
		"value": []any{map[string]any{
			"slot":               100,
			"confirmations":      5,
			"err":                txErr,
			"confirmationStatus": status,
		}},
	}
}

func TestWaitForConfirmationPollsUntilReached(t *testing.T) {
	var polls int
	var mu sync.Mutex
	s, _ := newRPCServer(t, func(call rpcCall) any {
		require.Equal(t, "getSignatureStatuses", call.Method)
		mu.Lock()
		defer mu.Unlock()
		polls++
		if polls < 3 {
			return contextResult([]any{nil})
		}
		return signatureStatus("confirmed", nil)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.WaitForConfirmation(ctx, solana.Signature{}))
	mu.Lock()
	defer mu.Unlock()
	require.GreaterOrEqual(t, polls, 3)
}

func TestWaitForConfirmationOnChainFailure(t *testing.T) {
	s, _ := newRPCServer(t, func(call rpcCall) any {
		return signatureStatus("confirmed", map[string]any{
			"InstructionError": []any{0, map[string]any{"Custom": 6001}},
		})
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := s.WaitForConfirmation(ctx, solana.Signature{})

	var onChain *OnChainError
	require.ErrorAs(t, err, &onChain)
	require.Contains(t, onChain.Detail, "InstructionError")
	require.False(t, IsTransient(err))
}

func TestWaitForConfirmationDeadline(t *testing.T) {
	// Stuck at processed while the caller wants confirmed.
	s, _ := newRPCServer(t, func(call rpcCall) any {
		return signatureStatus("processed", nil)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	err := s.WaitForConfirmation(ctx, solana.Signature{})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
