package pricing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/simaogato/portfolio-valuation/internal/domain"
)

// MockAssetRepository is a mock implementation of AssetRepository
type MockAssetRepository struct {
	mock.Mock
}

func (m *MockAssetRepository) GetByID(ctx context.Context, id int64) (*domain.Asset, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Asset), args.Error(1)
}

func (m *MockAssetRepository) GetBySymbol(ctx context.Context, symbol string) (*domain.Asset, error) {
	args := m.Called(ctx, symbol)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Asset), args.Error(1)
}

func (m *MockAssetRepository) ListByIDs(ctx context.Context, ids []int64) ([]*domain.Asset, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Asset), args.Error(1)
}

func (m *MockAssetRepository) Create(ctx context.Context, asset *domain.Asset) error {
	args := m.Called(ctx, asset)
	return args.Error(0)
}

// MockPriceRepository is a mock implementation of PriceRepository
type MockPriceRepository struct {
	mock.Mock
}

func (m *MockPriceRepository) Add(ctx context.Context, price *domain.Price) error {
	args := m.Called(ctx, price)
	return args.Error(0)
}

func (m *MockPriceRepository) LatestAtOrBefore(ctx context.Context, assetID int64, date time.Time) (*domain.Price, error) {
	args := m.Called(ctx, assetID, date)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Price), args.Error(1)
}

func (m *MockPriceRepository) ListRange(ctx context.Context, assetIDs []int64, start, end time.Time) ([]domain.Price, error) {
	args := m.Called(ctx, assetIDs, start, end)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Price), args.Error(1)
}

func (m *MockPriceRepository) ListOnDate(ctx context.Context, assetIDs []int64, date time.Time) ([]domain.Price, error) {
	args := m.Called(ctx, assetIDs, date)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Price), args.Error(1)
}

func TestPricingService_RecordPrice_Success(t *testing.T) {
	ctx := context.Background()
	mockAssetRepo := new(MockAssetRepository)
	mockPriceRepo := new(MockPriceRepository)
	service := NewPricingService(mockAssetRepo, mockPriceRepo, zerolog.Nop())

	asset := &domain.Asset{ID: 5, Name: "Vanguard Total", Symbol: "VTI", Currency: domain.CurrencyUSD}
	date := time.Date(2024, 3, 4, 15, 30, 0, 0, time.UTC)
	price := decimal.RequireFromString("251.37")

	mockAssetRepo.On("GetBySymbol", ctx, "VTI").Return(asset, nil)
	mockPriceRepo.On("Add", ctx, mock.MatchedBy(func(p *domain.Price) bool {
		return p.AssetID == 5 &&
			p.Date.Equal(domain.NewDate(2024, 3, 4)) &&
			p.Price.Equal(price)
	})).Return(nil)

	result, err := service.RecordPrice(ctx, "VTI", date, price)

	require.NoError(t, err)
	assert.Equal(t, int64(5), result.AssetID)
	assert.Equal(t, domain.NewDate(2024, 3, 4), result.Date)
	mockAssetRepo.AssertExpectations(t)
	mockPriceRepo.AssertExpectations(t)
}

func TestPricingService_RecordPrice_NegativePrice(t *testing.T) {
	ctx := context.Background()
	mockAssetRepo := new(MockAssetRepository)
	mockPriceRepo := new(MockPriceRepository)
	service := NewPricingService(mockAssetRepo, mockPriceRepo, zerolog.Nop())

	result, err := service.RecordPrice(ctx, "VTI", domain.NewDate(2024, 3, 4), decimal.NewFromInt(-1))

	assert.Nil(t, result)
	assert.EqualError(t, err, "price cannot be negative")
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))
	mockAssetRepo.AssertNotCalled(t, "GetBySymbol", mock.Anything, mock.Anything)
	mockPriceRepo.AssertNotCalled(t, "Add", mock.Anything, mock.Anything)
}

func TestPricingService_RecordPrice_Duplicate(t *testing.T) {
	ctx := context.Background()
	mockAssetRepo := new(MockAssetRepository)
	mockPriceRepo := new(MockPriceRepository)
	service := NewPricingService(mockAssetRepo, mockPriceRepo, zerolog.Nop())

	asset := &domain.Asset{ID: 5, Name: "Vanguard Total", Symbol: "VTI", Currency: domain.CurrencyUSD}
	mockAssetRepo.On("GetBySymbol", ctx, "VTI").Return(asset, nil)
	mockPriceRepo.On("Add", ctx, mock.Anything).Return(domain.InvalidState("price for asset 5 on 2024-03-04 already exists"))

	_, err := service.RecordPrice(ctx, "VTI", domain.NewDate(2024, 3, 4), decimal.NewFromInt(250))

	assert.True(t, errors.Is(err, domain.ErrInvalidState))
}

func TestPricingService_RecordPrice_UnknownAsset(t *testing.T) {
	ctx := context.Background()
	mockAssetRepo := new(MockAssetRepository)
	mockPriceRepo := new(MockPriceRepository)
	service := NewPricingService(mockAssetRepo, mockPriceRepo, zerolog.Nop())

	mockAssetRepo.On("GetBySymbol", ctx, "NOPE").Return(nil, domain.NotFound("asset %q not found", "NOPE"))

	_, err := service.RecordPrice(ctx, "NOPE", domain.NewDate(2024, 3, 4), decimal.NewFromInt(1))

	assert.True(t, errors.Is(err, domain.ErrNotFound))
	mockPriceRepo.AssertNotCalled(t, "Add", mock.Anything, mock.Anything)
}

func TestPricingService_LatestPrice(t *testing.T) {
	ctx := context.Background()
	mockAssetRepo := new(MockAssetRepository)
	mockPriceRepo := new(MockPriceRepository)
	service := NewPricingService(mockAssetRepo, mockPriceRepo, zerolog.Nop())

	asset := &domain.Asset{ID: 5, Name: "Vanguard Total", Symbol: "VTI", Currency: domain.CurrencyUSD}
	latest := &domain.Price{AssetID: 5, Date: domain.NewDate(2024, 3, 1), Price: decimal.NewFromInt(249)}
	mockAssetRepo.On("GetBySymbol", ctx, "VTI").Return(asset, nil)
	mockPriceRepo.On("LatestAtOrBefore", ctx, int64(5), domain.NewDate(2024, 3, 4)).Return(latest, nil)

	result, err := service.LatestPrice(ctx, "VTI", domain.NewDate(2024, 3, 4))

	require.NoError(t, err)
	assert.Equal(t, latest, result)
}
