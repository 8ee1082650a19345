package trade

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

	"github.com/simaogato/portfolio-valuation/internal/adapter/lock"
	"github.com/simaogato/portfolio-valuation/internal/adapter/repository/memory"
	"github.com/simaogato/portfolio-valuation/internal/domain"
)

// MockPublisher is a mock implementation of domain.Publisher
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, n domain.Notification) error {
	args := m.Called(ctx, n)
	return args.Error(0)
}

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

var tradeDate = domain.NewDate(2024, 6, 3)

type book struct {
	ctx       context.Context
	store     *memory.Store
	repos     domain.Repositories
	portfolio int64
	assetA    int64
	assetB    int64
}

// newBook holds 10 units of A at 50 and none of B at 25
func newBook(t *testing.T) *book {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()
	repos := store.Repositories()

	p := &domain.Portfolio{UserID: 1, Name: "demo", Currency: domain.CurrencyUSD}
	require.NoError(t, repos.Portfolios.Create(ctx, p))

	a := &domain.Asset{Name: "Asset A", Symbol: "AAA", Currency: domain.CurrencyUSD}
	b := &domain.Asset{Name: "Asset B", Symbol: "BBB", Currency: domain.CurrencyUSD}
	require.NoError(t, repos.Assets.Create(ctx, a))
	require.NoError(t, repos.Assets.Create(ctx, b))

	opened := domain.NewDate(2024, 6, 1)
	require.NoError(t, repos.Prices.Add(ctx, &domain.Price{AssetID: a.ID, Date: opened, Price: dec("50")}))
	require.NoError(t, repos.Prices.Add(ctx, &domain.Price{AssetID: b.ID, Date: opened, Price: dec("25")}))
	require.NoError(t, repos.Quantities.Upsert(ctx, &domain.Quantity{PortfolioID: p.ID, AssetID: a.ID, Date: opened, Quantity: dec("10")}))
	require.NoError(t, repos.Quantities.Upsert(ctx, &domain.Quantity{PortfolioID: p.ID, AssetID: b.ID, Date: opened, Quantity: decimal.Zero}))

	return &book{ctx: ctx, store: store, repos: repos, portfolio: p.ID, assetA: a.ID, assetB: b.ID}
}

func (b *book) service(publisher domain.Publisher) *TradeService {
	return NewTradeService(b.store, lock.NewLocalLocker(), publisher, 0, zerolog.Nop())
}

func (b *book) quantity(t *testing.T, assetID int64) decimal.Decimal {
	t.Helper()
	q, err := b.repos.Quantities.Get(b.ctx, b.portfolio, assetID, tradeDate)
	require.NoError(t, err)
	return q.Quantity
}

func TestSimulateTrade_MovesValueBetweenAssets(t *testing.T) {
	b := newBook(t)
	publisher := new(MockPublisher)
	publisher.On("Publish", mock.Anything, mock.MatchedBy(func(n domain.Notification) bool {
		return n.Type == domain.NotificationTradeSimulated && n.PortfolioID == b.portfolio
	})).Return(nil)

	result, err := b.service(publisher).SimulateTrade(b.ctx, SimulateTradeInput{
		PortfolioID:     b.portfolio,
		Date:            tradeDate,
		SellAssetSymbol: "AAA",
		BuyAssetSymbol:  "BBB",
		Amount:          dec("100"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Trade simulated successfully", result.Message())

	assert.True(t, b.quantity(t, b.assetB).Equal(dec("4")))
	assert.True(t, b.quantity(t, b.assetA).Equal(dec("8")))
	assert.True(t, result.Sell.Applied)

	amounts, err := b.repos.Amounts.ListOnDate(b.ctx, b.portfolio, tradeDate)
	require.NoError(t, err)
	require.Len(t, amounts, 2)
	assert.True(t, amounts[0].Amount.Equal(dec("400")))
	assert.True(t, amounts[1].Amount.Equal(dec("100")))

	weights, err := b.repos.Weights.ListOnDate(b.ctx, b.portfolio, tradeDate)
	require.NoError(t, err)
	require.Len(t, weights, 2)
	assert.True(t, weights[0].Weight.Equal(dec("0.8")))
	assert.True(t, weights[1].Weight.Equal(dec("0.2")))

	value, err := b.repos.Values.Get(b.ctx, b.portfolio, tradeDate)
	require.NoError(t, err)
	assert.True(t, value.Value.Equal(dec("500")))

	events, err := b.repos.Events.ListBetween(b.ctx, b.portfolio, tradeDate, tradeDate)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, domain.EventTypeSell, events[0].Type)
	assert.Equal(t, domain.EventTypeBuy, events[1].Type)
	assert.True(t, events[1].Price.Decimal.Equal(dec("25")))
	assert.Equal(t, domain.CurrencyUSD, events[1].Currency)

	publisher.AssertExpectations(t)
}

func TestSimulateTrade_OverSellLeavesQuantityUnchanged(t *testing.T) {
	b := newBook(t)

	result, err := b.service(nil).SimulateTrade(b.ctx, SimulateTradeInput{
		PortfolioID:     b.portfolio,
		Date:            tradeDate,
		SellAssetSymbol: "AAA",
		BuyAssetSymbol:  "BBB",
		Amount:          dec("1000"), // 20 units of A, only 10 held
	})
	require.NoError(t, err)
	assert.False(t, result.Sell.Applied)
	assert.True(t, b.quantity(t, b.assetA).Equal(dec("10")))
	assert.True(t, b.quantity(t, b.assetB).Equal(dec("40")))

	events, err := b.repos.Events.ListBetween(b.ctx, b.portfolio, tradeDate, tradeDate)
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

func TestSimulateTrade_MissingPriceHistoryRollsBack(t *testing.T) {
	b := newBook(t)
	c := &domain.Asset{Name: "Asset C", Symbol: "CCC", Currency: domain.CurrencyUSD}
	require.NoError(t, b.repos.Assets.Create(b.ctx, c))

	_, err := b.service(nil).SimulateTrade(b.ctx, SimulateTradeInput{
		PortfolioID:     b.portfolio,
		Date:            tradeDate,
		SellAssetSymbol: "AAA",
		BuyAssetSymbol:  "CCC",
		Amount:          dec("100"),
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvalidState))
	assert.Contains(t, err.Error(), "no historical price")

	events, err := b.repos.Events.ListBetween(b.ctx, b.portfolio, tradeDate, tradeDate)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestSimulateTrade_UnknownSymbolOrPortfolio(t *testing.T) {
	b := newBook(t)
	svc := b.service(nil)

	_, err := svc.SimulateTrade(b.ctx, SimulateTradeInput{
		PortfolioID: b.portfolio, Date: tradeDate, SellAssetSymbol: "ZZZ", BuyAssetSymbol: "BBB", Amount: dec("1"),
	})
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	_, err = svc.SimulateTrade(b.ctx, SimulateTradeInput{
		PortfolioID: 999, Date: tradeDate, SellAssetSymbol: "AAA", BuyAssetSymbol: "BBB", Amount: dec("1"),
	})
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestSimulateTradeInput_Validate(t *testing.T) {
	valid := SimulateTradeInput{PortfolioID: 1, Date: tradeDate, SellAssetSymbol: "A", BuyAssetSymbol: "B", Amount: dec("1")}

	tests := []struct {
		name   string
		mutate func(in *SimulateTradeInput)
		msg    string
	}{
		{"zero amount", func(in *SimulateTradeInput) { in.Amount = decimal.Zero }, "amount must be positive"},
		{"negative amount", func(in *SimulateTradeInput) { in.Amount = dec("-5") }, "amount must be positive"},
		{"missing date", func(in *SimulateTradeInput) { in.Date = time.Time{} }, "missing date"},
		{"missing sell", func(in *SimulateTradeInput) { in.SellAssetSymbol = " " }, "missing sell_asset_symbol"},
		{"missing buy", func(in *SimulateTradeInput) { in.BuyAssetSymbol = "" }, "missing buy_asset_symbol"},
		{"same asset", func(in *SimulateTradeInput) { in.BuyAssetSymbol = "a" }, "sell and buy assets must differ"},
		{"no portfolio", func(in *SimulateTradeInput) { in.PortfolioID = 0 }, "portfolio id must be positive"},
	}

	require.NoError(t, valid.Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid
			tt.mutate(&in)
			err := in.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrInvalidInput))
			if tt.msg != "" {
				assert.Equal(t, tt.msg, err.Error())
			}
		})
	}
}

func TestSimulateTrade_ReportsLaterRows(t *testing.T) {
	b := newBook(t)
	later := tradeDate.AddDate(0, 0, 5)
	require.NoError(t, b.repos.Quantities.Upsert(b.ctx, &domain.Quantity{PortfolioID: b.portfolio, AssetID: b.assetA, Date: later, Quantity: dec("10")}))

	result, err := b.service(nil).SimulateTrade(b.ctx, SimulateTradeInput{
		PortfolioID: b.portfolio, Date: tradeDate, SellAssetSymbol: "AAA", BuyAssetSymbol: "BBB", Amount: dec("50"),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.LaterQuantityRows)

	// the later row is not re-derived
	q, err := b.repos.Quantities.Get(b.ctx, b.portfolio, b.assetA, later)
	require.NoError(t, err)
	assert.True(t, q.Quantity.Equal(dec("10")))
}

func TestSimulateTrade_PublishFailureDoesNotFailTrade(t *testing.T) {
	b := newBook(t)
	publisher := new(MockPublisher)
	publisher.On("Publish", mock.Anything, mock.Anything).Return(errors.New("broker down"))

	_, err := b.service(publisher).SimulateTrade(b.ctx, SimulateTradeInput{
		PortfolioID: b.portfolio, Date: tradeDate, SellAssetSymbol: "AAA", BuyAssetSymbol: "BBB", Amount: dec("100"),
	})
	require.NoError(t, err)
	publisher.AssertExpectations(t)
}
