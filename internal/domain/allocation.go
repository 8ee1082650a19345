package domain

import (
	"github.com/shopspring/decimal"
)

// DefaultWeightTolerance is the accepted distance between Σ weights and 1
var DefaultWeightTolerance = decimal.New(1, -6)

// SumWeights adds up the weight column of rows
func SumWeights(rows []Weight) decimal.Decimal {
	sum := decimal.Zero
	for _, w := range rows {
		sum = sum.Add(w.Weight)
	}
	return sum
}

// ValidateAllocation ensures a weight allocation is usable as a starting point.
// The weights must be non-negative and sum to 1 within tolerance; nothing is renormalized.
func ValidateAllocation(rows []Weight, tolerance decimal.Decimal) error {
	if len(rows) == 0 {
		return NotFound("portfolio has no weight allocation")
	}

	for _, w := range rows {
		if w.Weight.IsNegative() {
			return InvalidState("weight for asset %d is negative", w.AssetID)
		}
	}

	sum := SumWeights(rows)
	if sum.Sub(decimal.NewFromInt(1)).Abs().GreaterThan(tolerance) {
		return InvalidState("weights sum to %s, expected 1", sum.String())
	}

	return nil
}
