package rollup

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/simaogato/portfolio-valuation/internal/domain"
	"github.com/simaogato/portfolio-valuation/internal/platform/metrics"
)

// Day is the derived ledger of one portfolio on one date
type Day struct {
	Date    time.Time
	Total   decimal.Decimal
	Amounts []domain.Amount
	Weights []domain.Weight
}

// RecomputeDay re-derives Amount, Weight and PortfolioValue for date from the effective
// quantities and the latest prices on or before date.
// Logic:
//  1. quantity_i = latest Quantity row on or before date
//  2. amount_i = quantity_i × latest price on or before date (cash without a price is worth 1 per unit)
//  3. total = Σ amount_i; weight_i = amount_i / total, or 0 when total ≤ 0
//
// It must run inside a unit of work; a missing price fails the whole day.
func RecomputeDay(ctx context.Context, repos domain.Repositories, portfolioID int64, date time.Time, cashAssetID int64) (*Day, error) {
	date = domain.Day(date)

	quantities, err := repos.Quantities.EffectiveAt(ctx, portfolioID, date)
	if err != nil {
		return nil, err
	}

	day := &Day{Date: date, Total: decimal.Zero}
	for _, q := range quantities {
		price, err := PriceAtOrBefore(ctx, repos.Prices, q.AssetID, date, cashAssetID)
		if err != nil {
			return nil, err
		}

		amount := domain.Amount{
			PortfolioID: portfolioID,
			AssetID:     q.AssetID,
			Date:        date,
			Amount:      q.Quantity.Mul(price),
		}
		if err := repos.Amounts.Upsert(ctx, &amount); err != nil {
			return nil, err
		}
		day.Amounts = append(day.Amounts, amount)
		day.Total = day.Total.Add(amount.Amount)
	}

	for _, a := range day.Amounts {
		w := domain.Weight{
			PortfolioID: portfolioID,
			AssetID:     a.AssetID,
			Date:        date,
			Weight:      decimal.Zero,
		}
		if day.Total.IsPositive() {
			w.Weight = a.Amount.Div(day.Total)
		}
		if err := repos.Weights.Upsert(ctx, &w); err != nil {
			return nil, err
		}
		day.Weights = append(day.Weights, w)
	}

	if err := repos.Values.Upsert(ctx, &domain.PortfolioValue{
		PortfolioID: portfolioID,
		Date:        date,
		Value:       day.Total,
	}); err != nil {
		return nil, err
	}

	return day, nil
}

// PriceAtOrBefore is the latest price on or before date; cash without a price is worth 1
func PriceAtOrBefore(ctx context.Context, prices domain.PriceRepository, assetID int64, date time.Time, cashAssetID int64) (decimal.Decimal, error) {
	p, err := prices.LatestAtOrBefore(ctx, assetID, date)
	if err == nil {
		return p.Price, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return decimal.Zero, err
	}
	if assetID == cashAssetID && cashAssetID != 0 {
		return decimal.NewFromInt(1), nil
	}
	return decimal.Zero, domain.InvalidState("no historical price for asset %d on or before %s", assetID, domain.FormatDate(date))
}

// CarriedQuantity is the latest quantity row on or before date, else zero
func CarriedQuantity(ctx context.Context, quantities domain.QuantityRepository, portfolioID, assetID int64, date time.Time) (decimal.Decimal, error) {
	rows, err := quantities.EffectiveAt(ctx, portfolioID, date)
	if err != nil {
		return decimal.Zero, err
	}
	for _, row := range rows {
		if row.AssetID == assetID {
			return row.Quantity, nil
		}
	}
	return decimal.Zero, nil
}

// Service repairs derived ledger rows outside of a trade
type Service struct {
	UnitOfWork  domain.UnitOfWork
	Locker      domain.PortfolioLocker
	CashAssetID int64
	Logger      zerolog.Logger
}

// NewService creates a new rollup Service instance
func NewService(uow domain.UnitOfWork, locker domain.PortfolioLocker, cashAssetID int64, logger zerolog.Logger) *Service {
	return &Service{
		UnitOfWork:  uow,
		Locker:      locker,
		CashAssetID: cashAssetID,
		Logger:      logger,
	}
}

// Reconcile recomputes one date of a portfolio. Running it twice leaves the same rows.
func (s *Service) Reconcile(ctx context.Context, portfolioID int64, date time.Time) (day *Day, err error) {
	defer func() { metrics.RecordLedgerOperation("reconcile", err) }()

	if portfolioID <= 0 {
		return nil, domain.InvalidInput("portfolio id must be positive")
	}
	if date.IsZero() {
		return nil, domain.InvalidInput("date is required")
	}

	if s.Locker != nil {
		unlock, err := s.Locker.Lock(ctx, portfolioID)
		if err != nil {
			return nil, err
		}
		defer unlock()
	}

	err = s.UnitOfWork.Within(ctx, portfolioID, func(ctx context.Context, repos domain.Repositories) error {
		if _, err := repos.Portfolios.GetByID(ctx, portfolioID); err != nil {
			return err
		}
		var err error
		day, err = RecomputeDay(ctx, repos, portfolioID, date, s.CashAssetID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Info().
		Int64("portfolio_id", portfolioID).
		Str("date", domain.FormatDate(day.Date)).
		Str("total", day.Total.String()).
		Msg("portfolio day reconciled")

	return day, nil
}
