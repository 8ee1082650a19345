package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simaogato/portfolio-valuation/internal/domain"
)

func seedAsset(t *testing.T, repos domain.Repositories, name string) int64 {
	t.Helper()
	a := &domain.Asset{Name: name, Symbol: name, Currency: domain.CurrencyUSD}
	require.NoError(t, repos.Assets.Create(context.Background(), a))
	return a.ID
}

func TestWithin_RollsBackOnError(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	repos := store.Repositories()
	assetID := seedAsset(t, repos, "A")
	day := domain.NewDate(2024, 1, 2)

	boom := errors.New("boom")
	err := store.Within(ctx, 1, func(ctx context.Context, tx domain.Repositories) error {
		require.NoError(t, tx.Quantities.Upsert(ctx, &domain.Quantity{PortfolioID: 1, AssetID: assetID, Date: day, Quantity: decimal.NewFromInt(5)}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = repos.Quantities.Get(ctx, 1, assetID, day)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestWithin_CommitsOnSuccess(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	repos := store.Repositories()
	assetID := seedAsset(t, repos, "A")
	day := domain.NewDate(2024, 1, 2)

	err := store.Within(ctx, 1, func(ctx context.Context, tx domain.Repositories) error {
		return tx.Quantities.Upsert(ctx, &domain.Quantity{PortfolioID: 1, AssetID: assetID, Date: day, Quantity: decimal.NewFromInt(5)})
	})
	require.NoError(t, err)

	q, err := repos.Quantities.Get(ctx, 1, assetID, day)
	require.NoError(t, err)
	assert.True(t, q.Quantity.Equal(decimal.NewFromInt(5)))
}

func TestPriceRepository_DuplicateIsInvalidState(t *testing.T) {
	ctx := context.Background()
	repos := NewStore().Repositories()
	assetID := seedAsset(t, repos, "A")
	day := domain.NewDate(2024, 1, 2)

	require.NoError(t, repos.Prices.Add(ctx, &domain.Price{AssetID: assetID, Date: day, Price: decimal.NewFromInt(10)}))
	err := repos.Prices.Add(ctx, &domain.Price{AssetID: assetID, Date: day, Price: decimal.NewFromInt(11)})
	assert.Equal(t, domain.KindInvalidState, domain.KindOf(err))
}

func TestPriceRepository_LatestAtOrBefore(t *testing.T) {
	ctx := context.Background()
	repos := NewStore().Repositories()
	assetID := seedAsset(t, repos, "A")

	require.NoError(t, repos.Prices.Add(ctx, &domain.Price{AssetID: assetID, Date: domain.NewDate(2024, 1, 2), Price: decimal.NewFromInt(10)}))
	require.NoError(t, repos.Prices.Add(ctx, &domain.Price{AssetID: assetID, Date: domain.NewDate(2024, 1, 5), Price: decimal.NewFromInt(12)}))

	p, err := repos.Prices.LatestAtOrBefore(ctx, assetID, domain.NewDate(2024, 1, 4))
	require.NoError(t, err)
	assert.True(t, p.Price.Equal(decimal.NewFromInt(10)))

	_, err = repos.Prices.LatestAtOrBefore(ctx, assetID, domain.NewDate(2024, 1, 1))
	assert.Equal(t, domain.KindNotFound, domain.KindOf(err))
}

func TestWeightRepository_InceptionIgnoresDerivedDates(t *testing.T) {
	ctx := context.Background()
	repos := NewStore().Repositories()

	weights := map[int][]string{10: {"0.5", "0.5"}, 20: {"0.8", "0.2"}}
	for d, ws := range weights {
		for i, w := range ws {
			require.NoError(t, repos.Weights.Upsert(ctx, &domain.Weight{PortfolioID: 1, AssetID: int64(i + 1), Date: domain.NewDate(2024, 1, d), Weight: decimal.RequireFromString(w)}))
		}
	}

	rows, err := repos.Weights.Inception(ctx, 1)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, domain.NewDate(2024, 1, 10), rows[0].Date)
	assert.Equal(t, "0.5", rows[0].Weight.String())
	assert.Equal(t, "0.5", rows[1].Weight.String())

	rows, err = repos.Weights.Inception(ctx, 2)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestQuantityRepository_EffectiveAtAndCountAfter(t *testing.T) {
	ctx := context.Background()
	repos := NewStore().Repositories()

	upsert := func(asset int64, day int, qty int64) {
		require.NoError(t, repos.Quantities.Upsert(ctx, &domain.Quantity{PortfolioID: 1, AssetID: asset, Date: domain.NewDate(2024, 1, day), Quantity: decimal.NewFromInt(qty)}))
	}
	upsert(1, 1, 10)
	upsert(1, 3, 12)
	upsert(2, 2, 7)
	upsert(1, 9, 20)

	rows, err := repos.Quantities.EffectiveAt(ctx, 1, domain.NewDate(2024, 1, 5))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.True(t, rows[0].Quantity.Equal(decimal.NewFromInt(12)))
	assert.True(t, rows[1].Quantity.Equal(decimal.NewFromInt(7)))

	n, err := repos.Quantities.CountAfter(ctx, 1, domain.NewDate(2024, 1, 5))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestEventRepository_AssignsSequence(t *testing.T) {
	ctx := context.Background()
	repos := NewStore().Repositories()
	p := &domain.Portfolio{UserID: 1, Name: "main", Currency: domain.CurrencyUSD}
	require.NoError(t, repos.Portfolios.Create(ctx, p))

	day := domain.NewDate(2024, 1, 2)
	first := &domain.PortfolioEvent{PortfolioID: p.ID, Type: domain.EventTypeDeposit, Amount: decimal.NewFromInt(1), Date: day, Currency: domain.CurrencyUSD}
	second := &domain.PortfolioEvent{PortfolioID: p.ID, Type: domain.EventTypeDeposit, Amount: decimal.NewFromInt(2), Date: day, Currency: domain.CurrencyUSD}
	require.NoError(t, repos.Events.Append(ctx, first))
	require.NoError(t, repos.Events.Append(ctx, second))

	events, err := repos.Events.ListBetween(ctx, p.ID, day, day)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, first.ID, events[0].ID)
	assert.Less(t, events[0].Seq, events[1].Seq)

	err = repos.Events.Append(ctx, &domain.PortfolioEvent{PortfolioID: 99, Type: domain.EventTypeDeposit, Amount: decimal.NewFromInt(1), Date: day})
	assert.Equal(t, domain.KindNotFound, domain.KindOf(err))
}
