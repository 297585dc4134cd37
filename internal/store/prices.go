package store

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// InsertPriceTick appends one observed price.
func (s *Store) InsertPriceTick(ctx context.Context, token, vsToken string, price decimal.Decimal, ts time.Time) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO price_ticks (token,vs_token,price,ts) VALUES (?,?,?,?)
`, token, vsToken, price.InexactFloat64(), ts.Format(time.RFC3339Nano))
	return err
}

// DeletePriceTicksBefore trims old ticks and reports how many went away.
func (s *Store) DeletePriceTicksBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
DELETE FROM price_ticks WHERE ts < ?
`, cutoff.Format(time.RFC3339Nano))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// PriceTick is one stored observation.
type PriceTick struct {
	Token   string          `json:"token"`
	VsToken string          `json:"vs_token"`
	Price   decimal.Decimal `json:"price"`
	TS      time.Time       `json:"ts"`
}

// LatestPrices returns the newest tick per token.
func (s *Store) LatestPrices(ctx context.Context) ([]PriceTick, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT p.token, p.vs_token, p.price, p.ts
FROM price_ticks p
JOIN (SELECT token, MAX(ts) AS max_ts FROM price_ticks GROUP BY token) m
  ON p.token = m.token AND p.ts = m.max_ts
ORDER BY p.token
`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PriceTick
	for rows.Next() {
		var pt PriceTick
		var price float64
		var ts string
		if err := rows.Scan(&pt.Token, &pt.VsToken, &price, &ts); err != nil {
			return nil, err
		}
		pt.Price = decimal.NewFromFloat(price)
		pt.TS, _ = time.Parse(time.RFC3339Nano, ts)
		out = append(out, pt)
	}
	return out, rows.Err()
}
