package valuation

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/simaogato/portfolio-valuation/internal/domain"
	"github.com/simaogato/portfolio-valuation/internal/usecase/allocator"
	"github.com/simaogato/portfolio-valuation/internal/usecase/replay"
)

// InitialStateKind selects where the starting quantities c_{i,0} come from
type InitialStateKind string

const (
	InitialFromSnapshot InitialStateKind = "snapshot"
	InitialFromWeights  InitialStateKind = "weights"
)

// InitialState is chosen explicitly by the caller.
// InitialValue is only read in weights mode; when unset V0 is derived as Σ w_i · p_{i,0}.
type InitialState struct {
	Kind         InitialStateKind
	InitialValue decimal.NullDecimal
}

// FromSnapshot starts from the HoldingSnapshot rows dated exactly on the start date
func FromSnapshot() InitialState {
	return InitialState{Kind: InitialFromSnapshot}
}

// FromWeights starts from the weight allocation and the prices on the start date
func FromWeights(initialValue decimal.NullDecimal) InitialState {
	return InitialState{Kind: InitialFromWeights, InitialValue: initialValue}
}

// ParseInitialStateKind parses a transport-level mode string
func ParseInitialStateKind(s string) (InitialStateKind, error) {
	switch InitialStateKind(strings.ToLower(strings.TrimSpace(s))) {
	case InitialFromSnapshot:
		return InitialFromSnapshot, nil
	case InitialFromWeights:
		return InitialFromWeights, nil
	}
	return "", domain.InvalidInput("unknown initial state mode %q: use snapshot or weights", s)
}

// Starting is a resolved initial state. Events dated on or after ReplayFrom are not
// reflected in Holdings and are replayed by the event-aware path.
type Starting struct {
	Holdings   replay.Holdings
	ReplayFrom time.Time
}

// InitialStateResolver produces the starting holdings of a valuation
type InitialStateResolver interface {
	Resolve(ctx context.Context, portfolioID int64, start time.Time) (*Starting, error)
}

// SnapshotResolver reads authoritative holdings from snapshots
type SnapshotResolver struct {
	Snapshots domain.SnapshotRepository
}

// Resolve fails with NotFound when no snapshot exists for that exact date.
// Events dated on the start date are replayed on top of the snapshot.
func (r *SnapshotResolver) Resolve(ctx context.Context, portfolioID int64, start time.Time) (*Starting, error) {
	rows, err := r.Snapshots.ListOnDate(ctx, portfolioID, start)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, domain.NotFound("no snapshot data found for %s", domain.FormatDate(start))
	}

	holdings := make(replay.Holdings, len(rows))
	for _, s := range rows {
		holdings[s.AssetID] = s.Quantity
	}
	return &Starting{Holdings: holdings, ReplayFrom: start}, nil
}

// WeightsResolver derives implied quantities from the inception weight allocation
type WeightsResolver struct {
	Weights      domain.WeightRepository
	Prices       domain.PriceRepository
	InitialValue decimal.NullDecimal
	Tolerance    decimal.Decimal
}

// Resolve computes c_{i,0} = (w_i · V0) / p_{i,0}; assets without a start price are excluded.
// The allocation already reflects every event up to its own date, so replay starts the day after.
func (r *WeightsResolver) Resolve(ctx context.Context, portfolioID int64, start time.Time) (*Starting, error) {
	rows, err := r.Weights.Inception(ctx, portfolioID)
	if err != nil {
		return nil, err
	}
	if err := domain.ValidateAllocation(rows, r.Tolerance); err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(rows))
	for _, w := range rows {
		ids = append(ids, w.AssetID)
	}
	priceRows, err := r.Prices.ListOnDate(ctx, ids, start)
	if err != nil {
		return nil, err
	}
	prices := make(map[int64]decimal.Decimal, len(priceRows))
	for _, p := range priceRows {
		prices[p.AssetID] = p.Price
	}

	v0 := allocator.DeriveInitialValue(rows, prices)
	if r.InitialValue.Valid {
		v0 = r.InitialValue.Decimal
	}
	if !v0.IsPositive() {
		return nil, domain.InvalidState("could not compute V0: prices missing for %s", domain.FormatDate(start))
	}

	allocations, err := allocator.CalculateAllocation(v0, rows, prices)
	if err != nil {
		return nil, domain.InvalidState("could not derive initial quantities: %v", err)
	}

	holdings := make(replay.Holdings, len(allocations))
	for _, a := range allocations {
		holdings[a.AssetID] = a.Quantity
	}
	return &Starting{Holdings: holdings, ReplayFrom: domain.Day(rows[0].Date).AddDate(0, 0, 1)}, nil
}
