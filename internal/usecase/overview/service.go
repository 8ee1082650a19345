package overview

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/simaogato/portfolio-valuation/internal/domain"
)

// HoldingWeight is one asset's share of the portfolio on the overview date
type HoldingWeight struct {
	AssetID int64
	Name    string
	Symbol  string
	Amount  decimal.Decimal
	Weight  decimal.Decimal
}

// Result represents the latest materialized state of a portfolio
type Result struct {
	Portfolio domain.Portfolio
	Date      time.Time
	Value     decimal.Decimal
	Holdings  []HoldingWeight
}

// OverviewService reads the derived ledger without recomputing it
type OverviewService struct {
	PortfolioRepo domain.PortfolioRepository
	AssetRepo     domain.AssetRepository
	ValueRepo     domain.PortfolioValueRepository
	AmountRepo    domain.AmountRepository
	WeightRepo    domain.WeightRepository
	Tolerance     decimal.Decimal
}

// NewOverviewService creates a new OverviewService instance
func NewOverviewService(repos domain.Repositories) *OverviewService {
	return &OverviewService{
		PortfolioRepo: repos.Portfolios,
		AssetRepo:     repos.Assets,
		ValueRepo:     repos.Values,
		AmountRepo:    repos.Amounts,
		WeightRepo:    repos.Weights,
		Tolerance:     domain.DefaultWeightTolerance,
	}
}

// GetOverview returns the latest PortfolioValue and the Amount and Weight rows of that date
// Logic:
//   - Date: the most recent PortfolioValue row
//   - Holdings: Weight rows on that date joined with Amount rows and asset names
//   - Weights of a positive total must sum to 1
func (s *OverviewService) GetOverview(ctx context.Context, portfolioID int64) (*Result, error) {
	portfolio, err := s.PortfolioRepo.GetByID(ctx, portfolioID)
	if err != nil {
		return nil, err
	}

	latest, err := s.ValueRepo.Latest(ctx, portfolioID)
	if err != nil {
		return nil, err
	}

	weights, err := s.WeightRepo.ListOnDate(ctx, portfolioID, latest.Date)
	if err != nil {
		return nil, fmt.Errorf("failed to list weights: %w", err)
	}
	amounts, err := s.AmountRepo.ListOnDate(ctx, portfolioID, latest.Date)
	if err != nil {
		return nil, fmt.Errorf("failed to list amounts: %w", err)
	}

	if latest.Value.IsPositive() && len(weights) > 0 {
		sum := domain.SumWeights(weights)
		if sum.Sub(decimal.NewFromInt(1)).Abs().GreaterThan(s.Tolerance) {
			return nil, domain.InvalidState("weights on %s sum to %s, expected 1", domain.FormatDate(latest.Date), sum.String())
		}
	}

	byAsset := make(map[int64]decimal.Decimal, len(amounts))
	ids := make([]int64, 0, len(weights))
	for _, a := range amounts {
		byAsset[a.AssetID] = a.Amount
	}
	for _, w := range weights {
		ids = append(ids, w.AssetID)
	}

	assets, err := s.AssetRepo.ListByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to list assets: %w", err)
	}
	names := make(map[int64]*domain.Asset, len(assets))
	for _, a := range assets {
		names[a.ID] = a
	}

	result := &Result{
		Portfolio: *portfolio,
		Date:      latest.Date,
		Value:     latest.Value,
		Holdings:  make([]HoldingWeight, 0, len(weights)),
	}
	for _, w := range weights {
		h := HoldingWeight{
			AssetID: w.AssetID,
			Amount:  byAsset[w.AssetID],
			Weight:  w.Weight,
		}
		if a, ok := names[w.AssetID]; ok {
			h.Name = a.Name
			h.Symbol = a.Symbol
		}
		result.Holdings = append(result.Holdings, h)
	}

	return result, nil
}
