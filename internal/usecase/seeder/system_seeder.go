package seeder

import (
	"context"
	"errors"
	"strings"

	"github.com/simaogato/portfolio-valuation/internal/domain"
)

// DefaultCashSymbol is the ticker of the designated cash asset
const DefaultCashSymbol = "CASH"

// SystemAsset defines an asset the ledger needs before serving requests
type SystemAsset struct {
	Name     string
	Symbol   string
	Currency domain.Currency
}

// CashAsset returns the designated cash asset definition for symbol
func CashAsset(symbol string) SystemAsset {
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		symbol = DefaultCashSymbol
	}
	return SystemAsset{
		Name:     "Cash (" + symbol + ")",
		Symbol:   symbol,
		Currency: domain.CurrencyUSD,
	}
}

// SystemSeeder handles seeding of required system assets
type SystemSeeder struct {
	repo domain.AssetRepository
}

// NewSystemSeeder creates a new SystemSeeder instance
func NewSystemSeeder(repo domain.AssetRepository) *SystemSeeder {
	return &SystemSeeder{
		repo: repo,
	}
}

// Seed ensures the asset exists and returns it.
// Assetless deposits land on this asset, so its ID is needed at startup.
func (s *SystemSeeder) Seed(ctx context.Context, sys SystemAsset) (*domain.Asset, error) {
	existing, err := s.repo.GetBySymbol(ctx, sys.Symbol)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	asset := &domain.Asset{
		Name:     sys.Name,
		Symbol:   sys.Symbol,
		Currency: sys.Currency,
	}

	// Validate before creating
	if err := asset.Validate(); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, asset); err != nil {
		return nil, err
	}
	return asset, nil
}
