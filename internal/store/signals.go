package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/shopspring/decimal"

	"github.com/skrlabs/skrswap/internal/domain"
)

// InsertSignal records one normalized signal together with what became of it.
func (s *Store) InsertSignal(ctx context.Context, sig *domain.Signal, status domain.SignalStatus) error {
	var amount any
	if sig.Amount != nil {
		amount = sig.Amount.InexactFloat64()
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO signals (id,pair,side,amount,source,status,raw,received_at)
VALUES (?,?,?,?,?,?,?,?)
`, sig.ID, sig.Pair, string(sig.Side), amount, sig.Source, string(status), sig.Raw, sig.ReceivedAt.Format(time.RFC3339Nano))
	return err
}

// StoredSignal is the persisted view served by the dashboard API.
type StoredSignal struct {
	ID         string           `json:"id"`
	Pair       string           `json:"pair"`
	Side       string           `json:"side"`
	Amount     *decimal.Decimal `json:"amount,omitempty"`
	Source     string           `json:"source"`
	Status     string           `json:"status"`
	ReceivedAt time.Time        `json:"received_at"`
}

// ListSignals returns the most recent signals, newest first.
func (s *Store) ListSignals(ctx context.Context, limit int) ([]StoredSignal, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT id,pair,side,amount,source,status,received_at
FROM signals ORDER BY received_at DESC LIMIT ?
`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StoredSignal
	for rows.Next() {
		var sig StoredSignal
		var amount sql.NullFloat64
		var received string
		if err := rows.Scan(&sig.ID, &sig.Pair, &sig.Side, &amount, &sig.Source, &sig.Status, &received); err != nil {
			return nil, err
		}
		if amount.Valid {
			d := decimal.NewFromFloat(amount.Float64)
			sig.Amount = &d
		}
		sig.ReceivedAt, _ = time.Parse(time.RFC3339Nano, received)
		out = append(out, sig)
	}
	return out, rows.Err()
}
