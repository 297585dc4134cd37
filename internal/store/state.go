package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Account state keys recovered at startup.
const (
	StateLastSwapAt = "last_swap_at"
	StateLastAction = "last_action"
)

// SetAccountState upserts one per-account KV entry.
func (s *Store) SetAccountState(ctx context.Context, accountID, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO account_state (account_id,key,value,updated_at) VALUES (?,?,?,?)
ON CONFLICT(account_id,key) DO UPDATE SET value=excluded.value, updated_at=excluded.updated_at
`, accountID, key, value, time.Now().Format(time.RFC3339Nano))
	return err
}

// GetAccountState returns found=false for missing keys.
func (s *Store) GetAccountState(ctx context.Context, accountID, key string) (string, bool, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT value FROM account_state WHERE account_id=? AND key=?
`, accountID, key)
	var v string
	if err := row.Scan(&v); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, err
	}
	return v, true, nil
}

// UpsertWalletBalance records the last observed balance of one token.
func (s *Store) UpsertWalletBalance(ctx context.Context, accountID, token string, balance decimal.Decimal) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO wallet_state (account_id,token,balance,updated_at) VALUES (?,?,?,?)
ON CONFLICT(account_id,token) DO UPDATE SET balance=excluded.balance, updated_at=excluded.updated_at
`, accountID, token, balance.InexactFloat64(), time.Now().Format(time.RFC3339Nano))
	return err
}

// WalletBalance is one row of wallet_state, as served by the API.
type WalletBalance struct {
	Token     string          `json:"token"`
	Balance   decimal.Decimal `json:"balance"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// GetWalletBalances returns all stored balances for an account.
func (s *Store) GetWalletBalances(ctx context.Context, accountID string) ([]WalletBalance, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT token,balance,updated_at FROM wallet_state WHERE account_id=? ORDER BY token
`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []WalletBalance
	for rows.Next() {
		var wb WalletBalance
		var bal float64
		var updated string
		if err := rows.Scan(&wb.Token, &bal, &updated); err != nil {
			return nil, err
		}
		wb.Balance = decimal.NewFromFloat(bal)
		wb.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updated)
		out = append(out, wb)
	}
	return out, rows.Err()
}
