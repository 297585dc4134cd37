package exchange

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	pkgerrors "github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/skrlabs/skrswap/internal/config"
	"github.com/skrlabs/skrswap/internal/wallet"
)

// NativeMint is the wrapped-SOL mint. Balances for it come from the native
// lamport balance, not a token account.
const NativeMint = "So11111111111111111111111111111111111111112"

const defaultConfirmPoll = 2 * time.Second

// Solana wraps the JSON-RPC node client with the few calls the swap path
// needs: balances, transaction submission and confirmation.
type Solana struct {
	rpc          *rpc.Client
	commitment   rpc.CommitmentType
	pollInterval time.Duration
}

func NewSolana(cfg config.SolanaConfig) *Solana {
	commitment := rpc.CommitmentType(cfg.Commitment)
	if commitment == "" {
		commitment = rpc.CommitmentConfirmed
	}
	poll := cfg.ConfirmPollInterval
	if poll <= 0 {
		poll = defaultConfirmPoll
	}
	return &Solana{
		rpc:          rpc.New(cfg.RPCURL),
		commitment:   commitment,
		pollInterval: poll,
	}
}

// TokenBalance returns the owner's balance of mint in token units. A missing
// token account means zero, not an error.
func (s *Solana) TokenBalance(ctx context.Context, owner solana.PublicKey, mint string, decimals int) (decimal.Decimal, error) {
	if mint == NativeMint {
		out, err := s.rpc.GetBalance(ctx, owner, s.commitment)
		if err != nil {
			return decimal.Zero, classifyRPC("get balance", err)
		}
		return LamportsToSol(out.Value), nil
	}

	mintKey, err := solana.PublicKeyFromBase58(mint)
	if err != nil {
		return decimal.Zero, pkgerrors.Wrapf(err, "mint %s", mint)
	}
	accounts, err := s.rpc.GetTokenAccountsByOwner(ctx, owner,
		&rpc.GetTokenAccountsConfig{Mint: &mintKey},
		&rpc.GetTokenAccountsOpts{Commitment: s.commitment, Encoding: solana.EncodingBase64},
	)
	if err != nil {
		return decimal.Zero, classifyRPC("get token accounts", err)
	}
	if len(accounts.Value) == 0 {
		return decimal.Zero, nil
	}

	total := decimal.Zero
	for _, acct := range accounts.Value {
		bal, err := s.rpc.GetTokenAccountBalance(ctx, acct.Pubkey, s.commitment)
		if err != nil {
			return decimal.Zero, classifyRPC("get token balance", err)
		}
		if bal.Value == nil {
			continue
		}
		amount, err := FromAtomic(bal.Value.Amount, decimals)
		if err != nil {
			return decimal.Zero, err
		}
		total = total.Add(amount)
	}
	return total, nil
}

// SignAndSend decodes the base64 transaction from the aggregator, signs it
// with the account wallet and broadcasts it. The same signed bytes can be
// re-broadcast safely: the blockhash dedupes duplicate submissions.
func (s *Solana) SignAndSend(ctx context.Context, txBase64 string, w *wallet.Wallet) (solana.Signature, error) {
	raw, err := base64.StdEncoding.DecodeString(txBase64)
	if err != nil {
		return solana.Signature{}, pkgerrors.Wrap(err, "decode transaction")
	}
	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(raw))
	if err != nil {
		return solana.Signature{}, pkgerrors.Wrap(err, "parse transaction")
	}
	if _, err := tx.Sign(w.Signer()); err != nil {
		return solana.Signature{}, pkgerrors.Wrap(err, "sign transaction")
	}
	sig, err := s.rpc.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		SkipPreflight:       false,
		PreflightCommitment: s.commitment,
	})
	if err != nil {
		return solana.Signature{}, classifyRPC("send transaction", err)
	}
	return sig, nil
}

// WaitForConfirmation polls signature status until the configured commitment
// is reached, the transaction fails on chain, or ctx expires. Status lookup
// errors are tolerated; the deadline is the backstop.
func (s *Solana) WaitForConfirmation(ctx context.Context, sig solana.Signature) error {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		out, err := s.rpc.GetSignatureStatuses(ctx, true, sig)
		if err == nil && len(out.Value) > 0 && out.Value[0] != nil {
			st := out.Value[0]
			if st.Err != nil {
				return &OnChainError{Signature: sig.String(), Detail: fmt.Sprintf("%v", st.Err)}
			}
			if s.reached(st.ConfirmationStatus) {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *Solana) reached(status rpc.ConfirmationStatusType) bool {
	if status == rpc.ConfirmationStatusFinalized {
		return true
	}
	switch s.commitment {
	case rpc.CommitmentFinalized:
		return false
	case rpc.CommitmentProcessed:
		return status == rpc.ConfirmationStatusProcessed || status == rpc.ConfirmationStatusConfirmed
	default:
		return status == rpc.ConfirmationStatusConfirmed
	}
}
