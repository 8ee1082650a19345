package grpc

import (
	"context"
	"net"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/simaogato/portfolio-valuation/internal/adapter/events"
	"github.com/simaogato/portfolio-valuation/internal/adapter/lock"
	"github.com/simaogato/portfolio-valuation/internal/adapter/repository/memory"
	"github.com/simaogato/portfolio-valuation/internal/domain"
	"github.com/simaogato/portfolio-valuation/internal/usecase/deposit"
	"github.com/simaogato/portfolio-valuation/internal/usecase/overview"
	"github.com/simaogato/portfolio-valuation/internal/usecase/pricing"
	"github.com/simaogato/portfolio-valuation/internal/usecase/replay"
	"github.com/simaogato/portfolio-valuation/internal/usecase/rollup"
	"github.com/simaogato/portfolio-valuation/internal/usecase/trade"
	"github.com/simaogato/portfolio-valuation/internal/usecase/valuation"
)

const testToken = "secret"

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

// newTestClient serves a portfolio holding 10 A at 50 and 0 B at 25 with a 50/50 allocation on 2024-06-01
func newTestClient(t *testing.T) (*Client, int64) {
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
	require.NoError(t, repos.Weights.Upsert(ctx, &domain.Weight{PortfolioID: p.ID, AssetID: a.ID, Date: opened, Weight: dec("0.5")}))
	require.NoError(t, repos.Weights.Upsert(ctx, &domain.Weight{PortfolioID: p.ID, AssetID: b.ID, Date: opened, Weight: dec("0.5")}))

	logger := zerolog.Nop()
	locker := lock.NewLocalLocker()
	publisher := &events.LogPublisher{Logger: logger}

	server := NewServer(
		valuation.NewValuationService(repos, replay.NewReplayer(0, logger), logger),
		trade.NewTradeService(store, locker, publisher, 0, logger),
		deposit.NewDepositService(store, locker, publisher, 0, logger),
		pricing.NewPricingService(repos.Assets, repos.Prices, logger),
		overview.NewOverviewService(repos),
		rollup.NewService(store, locker, 0, logger),
		decimal.NewNullDecimal(dec("1000000000")),
	)

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(
		MetricsInterceptor(),
		AuthInterceptor(testToken),
	))
	RegisterValuationServer(srv, server)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return NewClient(conn), p.ID
}

func authed() context.Context {
	return metadata.AppendToOutgoingContext(context.Background(), "authorization", "Bearer "+testToken)
}

func request(t *testing.T, fields map[string]any) *structpb.Struct {
	t.Helper()
	req, err := structpb.NewStruct(fields)
	require.NoError(t, err)
	return req
}

func TestServer_GetPortfolioValueSeries(t *testing.T) {
	client, portfolioID := newTestClient(t)

	resp, err := client.Call(authed(), "GetPortfolioValueSeries", request(t, map[string]any{
		"portfolio_id":  portfolioID,
		"start":         "2024-06-01",
		"end":           "2024-06-01",
		"initial_value": "1000",
	}))
	require.NoError(t, err)

	series := resp.GetFields()["series"].GetListValue().GetValues()
	require.Len(t, series, 1)
	point := series[0].GetStructValue().GetFields()
	assert.Equal(t, "2024-06-01", point["date"].GetStringValue())
	assert.Equal(t, "1000.00", point["portfolio_value"].GetStringValue())

	weights := point["weights"].GetStructValue().GetFields()
	assert.Equal(t, "0.500000", weights["Asset A"].GetStringValue())
	assert.Equal(t, "0.500000", weights["Asset B"].GetStringValue())
}

func TestServer_GetWeightsFromInception_DerivesInitialValue(t *testing.T) {
	client, portfolioID := newTestClient(t)

	// V0 = 0.5·50 + 0.5·25
	resp, err := client.Call(authed(), "GetWeightsFromInception", request(t, map[string]any{
		"portfolio_id": portfolioID,
		"start":        "2024-06-01",
		"end":          "2024-06-01",
	}))
	require.NoError(t, err)

	series := resp.GetFields()["series"].GetListValue().GetValues()
	require.Len(t, series, 1)
	assert.Equal(t, "37.50", series[0].GetStructValue().GetFields()["V_t"].GetStringValue())
}

func TestServer_SimulateTradeThenOverview(t *testing.T) {
	client, portfolioID := newTestClient(t)

	resp, err := client.Call(authed(), "SimulateTrade", request(t, map[string]any{
		"portfolio_id":      portfolioID,
		"date":              "2024-06-03",
		"sell_asset_symbol": "AAA",
		"buy_asset_symbol":  "BBB",
		"amount":            "100",
	}))
	require.NoError(t, err)
	assert.Equal(t, "Trade simulated successfully", resp.GetFields()["message"].GetStringValue())
	assert.Equal(t, "8", resp.GetFields()["sell"].GetStructValue().GetFields()["quantity"].GetStringValue())
	assert.Equal(t, "4", resp.GetFields()["buy"].GetStructValue().GetFields()["quantity"].GetStringValue())

	resp, err = client.Call(authed(), "GetOverview", request(t, map[string]any{"portfolio_id": portfolioID}))
	require.NoError(t, err)
	assert.Equal(t, "2024-06-03", resp.GetFields()["date"].GetStringValue())
	assert.Equal(t, "500.00", resp.GetFields()["portfolio_value"].GetStringValue())
	assert.Len(t, resp.GetFields()["holdings"].GetListValue().GetValues(), 2)
}

func TestServer_RecordPriceAndReconcile(t *testing.T) {
	client, portfolioID := newTestClient(t)

	resp, err := client.Call(authed(), "RecordPrice", request(t, map[string]any{
		"symbol": "AAA",
		"date":   "2024-06-02",
		"price":  "60",
	}))
	require.NoError(t, err)
	assert.Equal(t, "60", resp.GetFields()["price"].GetStringValue())

	resp, err = client.Call(authed(), "Reconcile", request(t, map[string]any{
		"portfolio_id": portfolioID,
		"date":         "2024-06-02",
	}))
	require.NoError(t, err)
	assert.Equal(t, "600.00", resp.GetFields()["total_value"].GetStringValue())
}

func TestServer_ErrorCodes(t *testing.T) {
	client, portfolioID := newTestClient(t)

	tests := []struct {
		name   string
		method string
		fields map[string]any
		code   codes.Code
		msg    string
	}{
		{
			name:   "missing portfolio id",
			method: "GetPortfolioValueSeries",
			fields: map[string]any{"start": "2024-06-01", "end": "2024-06-02"},
			code:   codes.InvalidArgument,
			msg:    "invalid portfolio id",
		},
		{
			name:   "start after end",
			method: "GetPortfolioValueSeries",
			fields: map[string]any{"portfolio_id": portfolioID, "start": "2024-06-05", "end": "2024-06-01"},
			code:   codes.InvalidArgument,
			msg:    "cannot be after",
		},
		{
			name:   "unknown portfolio",
			method: "GetOverview",
			fields: map[string]any{"portfolio_id": 999},
			code:   codes.NotFound,
			msg:    "portfolio 999 not found",
		},
		{
			name:   "duplicate price",
			method: "RecordPrice",
			fields: map[string]any{"symbol": "AAA", "date": "2024-06-01", "price": "51"},
			code:   codes.FailedPrecondition,
			msg:    "already exists",
		},
		{
			name:   "unknown trade asset",
			method: "SimulateTrade",
			fields: map[string]any{
				"portfolio_id": portfolioID, "date": "2024-06-03",
				"sell_asset_symbol": "AAA", "buy_asset_symbol": "ZZZ", "amount": "10",
			},
			code: codes.NotFound,
			msg:  "ZZZ",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := client.Call(authed(), tt.method, request(t, tt.fields))
			require.Error(t, err)
			st, ok := status.FromError(err)
			require.True(t, ok)
			assert.Equal(t, tt.code, st.Code())
			assert.Contains(t, st.Message(), tt.msg)
		})
	}
}

func TestServer_RequiresToken(t *testing.T) {
	client, portfolioID := newTestClient(t)

	_, err := client.Call(context.Background(), "GetOverview", request(t, map[string]any{"portfolio_id": portfolioID}))
	require.Error(t, err)
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
}

func TestMapError(t *testing.T) {
	assert.Nil(t, mapError(nil))
	assert.Equal(t, codes.Canceled, status.Code(mapError(context.Canceled)))
	assert.Equal(t, codes.Internal, status.Code(mapError(domain.Internal(assert.AnError, "failed to read"))))
	assert.Equal(t, "failed to read", status.Convert(mapError(domain.Internal(assert.AnError, "failed to read"))).Message())
}
