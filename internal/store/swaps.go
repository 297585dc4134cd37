package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/skrlabs/skrswap/internal/domain"
)

// CreateSwap inserts the initial PENDING record for a swap attempt.
func (s *Store) CreateSwap(ctx context.Context, rec *domain.SwapRecord) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO swaps (id,account_id,signal_id,pair,side,input_token,output_token,in_amount,status,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?)
`, rec.ID, rec.AccountID, rec.SignalID, rec.Pair, string(rec.Side), rec.InputToken, rec.OutputToken,
		rec.InAmount.InexactFloat64(), string(rec.Status),
		rec.CreatedAt.Format(time.RFC3339Nano), rec.UpdatedAt.Format(time.RFC3339Nano))
	return err
}

// MarkSwapStage advances a live swap to QUOTED or SUBMITTED.
func (s *Store) MarkSwapStage(ctx context.Context, id string, status domain.SwapStatus) error {
	_, err := s.db.ExecContext(ctx, `
UPDATE swaps SET status=?, updated_at=? WHERE id=?
`, string(status), time.Now().Format(time.RFC3339Nano), id)
	return err
}

// SetSwapSubmitted records the transaction signature at submission time.
func (s *Store) SetSwapSubmitted(ctx context.Context, id string, txSignature string) error {
	_, err := s.db.ExecContext(ctx, `
UPDATE swaps SET status=?, tx_signature=?, updated_at=? WHERE id=?
`, string(domain.SwapSubmitted), txSignature, time.Now().Format(time.RFC3339Nano), id)
	return err
}

// CompleteSwap is the success terminal transition.
func (s *Store) CompleteSwap(ctx context.Context, id string, outAmount decimal.Decimal) error {
	_, err := s.db.ExecContext(ctx, `
UPDATE swaps SET status=?, out_amount=?, updated_at=? WHERE id=?
`, string(domain.SwapCompleted), outAmount.InexactFloat64(), time.Now().Format(time.RFC3339Nano), id)
	return err
}

// FailSwap is the failure terminal transition; stage preserves how far the
// attempt got.
func (s *Store) FailSwap(ctx context.Context, id string, reason domain.FailReason, stage domain.SwapStatus, detail string) error {
	_, err := s.db.ExecContext(ctx, `
UPDATE swaps SET status=?, fail_reason=?, fail_stage=?, fail_detail=?, updated_at=? WHERE id=?
`, string(domain.SwapFailed), string(reason), string(stage), detail, time.Now().Format(time.RFC3339Nano), id)
	return err
}

// GetSwap returns nil, nil when the id is unknown.
func (s *Store) GetSwap(ctx context.Context, id string) (*domain.SwapRecord, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id,account_id,signal_id,pair,side,input_token,output_token,in_amount,out_amount,
       status,fail_reason,fail_stage,fail_detail,tx_signature,created_at,updated_at
FROM swaps WHERE id=?
`, id)
	rec, err := scanSwap(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return rec, nil
}

// SwapFilter narrows ListSwaps. Zero values mean "no filter".
type SwapFilter struct {
	AccountID string
	Status    domain.SwapStatus
	Limit     int
}

// ListSwaps returns matching swaps, newest first.
func (s *Store) ListSwaps(ctx context.Context, f SwapFilter) ([]domain.SwapRecord, error) {
	q := `
SELECT id,account_id,signal_id,pair,side,input_token,output_token,in_amount,out_amount,
       status,fail_reason,fail_stage,fail_detail,tx_signature,created_at,updated_at
FROM swaps WHERE 1=1`
	var args []any
	if f.AccountID != "" {
		q += ` AND account_id=?`
		args = append(args, f.AccountID)
	}
	if f.Status != "" {
		q += ` AND status=?`
		args = append(args, string(f.Status))
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	q += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.SwapRecord
	for rows.Next() {
		rec, err := scanSwap(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

func scanSwap(scan func(dest ...any) error) (*domain.SwapRecord, error) {
	var rec domain.SwapRecord
	var side, status string
	var inAmount float64
	var outAmount sql.NullFloat64
	var failReason, failStage, failDetail, txSig sql.NullString
	var created, updated string

	if err := scan(&rec.ID, &rec.AccountID, &rec.SignalID, &rec.Pair, &side,
		&rec.InputToken, &rec.OutputToken, &inAmount, &outAmount,
		&status, &failReason, &failStage, &failDetail, &txSig, &created, &updated); err != nil {
		return nil, err
	}
	rec.Side = domain.Side(side)
	rec.InAmount = decimal.NewFromFloat(inAmount)
	if outAmount.Valid {
		rec.OutAmount = decimal.NewFromFloat(outAmount.Float64)
	}
	rec.Status = domain.SwapStatus(status)
	rec.FailReason = domain.FailReason(failReason.String)
	rec.FailStage = domain.SwapStatus(failStage.String)
	rec.FailDetail = failDetail.String
	rec.TxSignature = txSig.String
	rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
	rec.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updated)
	return &rec, nil
}
