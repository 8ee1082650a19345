package allocator

import (
	"errors"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/simaogato/portfolio-valuation/internal/domain"
)

// Allocation is the implied starting position of one asset
type Allocation struct {
	AssetID  int64
	Weight   decimal.Decimal
	Price    decimal.Decimal
	Amount   decimal.Decimal // w_i · V0
	Quantity decimal.Decimal // (w_i · V0) / p_i
}

// DeriveInitialValue computes V0 = Σ w_i · p_{i,0} over the assets that have a starting price
func DeriveInitialValue(weights []domain.Weight, prices map[int64]decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, w := range weights {
		p, ok := prices[w.AssetID]
		if !ok {
			continue
		}
		total = total.Add(w.Weight.Mul(p))
	}
	return total
}

// CalculateAllocation spreads initialValue across weights and converts each share to units
// Logic:
//  1. Sort weights by asset ID so the result does not depend on row order
//  2. Skip assets without a positive starting price
//  3. amount_i = w_i · V0, quantity_i = amount_i / p_i
//
// The sum of allocated amounts equals V0 times the sum of priced weights.
func CalculateAllocation(initialValue decimal.Decimal, weights []domain.Weight, prices map[int64]decimal.Decimal) ([]Allocation, error) {
	if initialValue.LessThanOrEqual(decimal.Zero) {
		return nil, errors.New("initial value must be positive")
	}

	if len(weights) == 0 {
		return nil, errors.New("weights list cannot be empty")
	}

	sorted := make([]domain.Weight, len(weights))
	copy(sorted, weights)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].AssetID < sorted[j].AssetID
	})

	allocations := make([]Allocation, 0, len(sorted))
	for _, w := range sorted {
		price, ok := prices[w.AssetID]
		if !ok || !price.IsPositive() {
			continue
		}
		amount := w.Weight.Mul(initialValue)
		allocations = append(allocations, Allocation{
			AssetID:  w.AssetID,
			Weight:   w.Weight,
			Price:    price,
			Amount:   amount,
			Quantity: amount.Div(price),
		})
	}

	if len(allocations) == 0 {
		return nil, errors.New("no weighted asset has a starting price")
	}

	return allocations, nil
}
