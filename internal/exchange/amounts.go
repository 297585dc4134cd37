package exchange

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// ToAtomic converts a token-unit amount to atomic units (lamports for SOL).
// Fractions below one atomic unit are truncated.
func ToAtomic(amount decimal.Decimal, decimals int) (uint64, error) {
	shifted := amount.Shift(int32(decimals))
	if shifted.IsNegative() {
		return 0, fmt.Errorf("negative amount %s", amount)
	}
	return uint64(shifted.IntPart()), nil
}

// FromAtomic converts an atomic-unit amount string back to token units.
func FromAtomic(raw string, decimals int) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("atomic amount %q: %w", raw, err)
	}
	return d.Shift(int32(-decimals)), nil
}

// LamportsToSol converts a native balance to SOL units.
func LamportsToSol(lamports uint64) decimal.Decimal {
	return decimal.NewFromUint64(lamports).Shift(-9)
}
