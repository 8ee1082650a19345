package pricing

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/simaogato/portfolio-valuation/internal/domain"
	"github.com/simaogato/portfolio-valuation/internal/platform/metrics"
)

// PricingService handles market data operations
type PricingService struct {
	AssetRepo domain.AssetRepository
	PriceRepo domain.PriceRepository
	Logger    zerolog.Logger
}

// NewPricingService creates a new PricingService instance
func NewPricingService(assetRepo domain.AssetRepository, priceRepo domain.PriceRepository, logger zerolog.Logger) *PricingService {
	return &PricingService{
		AssetRepo: assetRepo,
		PriceRepo: priceRepo,
		Logger:    logger,
	}
}

// RecordPrice appends the market price of an asset on a date
// Logic: prices are append-only, a second price for the same asset and date is rejected
// Returns the created price entry
func (s *PricingService) RecordPrice(ctx context.Context, symbol string, date time.Time, price decimal.Decimal) (p *domain.Price, err error) {
	defer func() { metrics.RecordLedgerOperation("record_price", err) }()

	if strings.TrimSpace(symbol) == "" {
		return nil, domain.InvalidInput("missing asset symbol")
	}
	if date.IsZero() {
		return nil, domain.InvalidInput("missing date")
	}
	if price.IsNegative() {
		return nil, domain.InvalidInput("price cannot be negative")
	}

	asset, err := s.AssetRepo.GetBySymbol(ctx, strings.TrimSpace(symbol))
	if err != nil {
		return nil, err
	}

	entry := &domain.Price{
		AssetID: asset.ID,
		Date:    domain.Day(date),
		Price:   price,
	}
	if err := s.PriceRepo.Add(ctx, entry); err != nil {
		return nil, err
	}

	s.Logger.Debug().
		Str("asset", asset.Label()).
		Str("date", domain.FormatDate(entry.Date)).
		Str("price", price.String()).
		Msg("price recorded")

	return entry, nil
}

// LatestPrice returns the most recent price of an asset on or before date
func (s *PricingService) LatestPrice(ctx context.Context, symbol string, date time.Time) (*domain.Price, error) {
	asset, err := s.AssetRepo.GetBySymbol(ctx, strings.TrimSpace(symbol))
	if err != nil {
		return nil, err
	}
	return s.PriceRepo.LatestAtOrBefore(ctx, asset.ID, domain.Day(date))
}
