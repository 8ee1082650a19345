package grpc

import (
	"context"
	"errors"
	"strconv"

	"github.com/shopspring/decimal"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/simaogato/portfolio-valuation/internal/adapter/dto"
	"github.com/simaogato/portfolio-valuation/internal/domain"
	"github.com/simaogato/portfolio-valuation/internal/usecase/deposit"
	"github.com/simaogato/portfolio-valuation/internal/usecase/overview"
	"github.com/simaogato/portfolio-valuation/internal/usecase/pricing"
	"github.com/simaogato/portfolio-valuation/internal/usecase/rollup"
	"github.com/simaogato/portfolio-valuation/internal/usecase/trade"
	"github.com/simaogato/portfolio-valuation/internal/usecase/valuation"
)

// Server implements the PortfolioValuationService gRPC server
type Server struct {
	ValuationService *valuation.ValuationService
	TradeService     *trade.TradeService
	DepositService   *deposit.DepositService
	PricingService   *pricing.PricingService
	OverviewService  *overview.OverviewService
	RollupService    *rollup.Service

	// InitialValue is V0 of GetPortfolioValueSeries when the request does not set one
	InitialValue decimal.NullDecimal
}

// NewServer creates a new gRPC server instance
func NewServer(
	valuationService *valuation.ValuationService,
	tradeService *trade.TradeService,
	depositService *deposit.DepositService,
	pricingService *pricing.PricingService,
	overviewService *overview.OverviewService,
	rollupService *rollup.Service,
	initialValue decimal.NullDecimal,
) *Server {
	return &Server{
		ValuationService: valuationService,
		TradeService:     tradeService,
		DepositService:   depositService,
		PricingService:   pricingService,
		OverviewService:  overviewService,
		RollupService:    rollupService,
		InitialValue:     initialValue,
	}
}

// GetPortfolioValueSeries handles the GetPortfolioValueSeries RPC
func (s *Server) GetPortfolioValueSeries(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	portfolioID, q, err := s.seriesQuery(req, s.InitialValue)
	if err != nil {
		return nil, mapError(err)
	}

	points, err := s.ValuationService.ValueSeries(ctx, q)
	if err != nil {
		return nil, mapError(err)
	}

	return toStruct(dto.Series(portfolioID, points, dto.ValueKeyPortfolio))
}

// GetWeightsFromInception handles the GetWeightsFromInception RPC
func (s *Server) GetWeightsFromInception(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	// V0 is derived from the start prices unless the request sets initial_value
	portfolioID, q, err := s.seriesQuery(req, decimal.NullDecimal{})
	if err != nil {
		return nil, mapError(err)
	}

	points, err := s.ValuationService.WeightsFromInception(ctx, q)
	if err != nil {
		return nil, mapError(err)
	}

	return toStruct(dto.Series(portfolioID, points, dto.ValueKeyInception))
}

func (s *Server) seriesQuery(req *structpb.Struct, defaultInitial decimal.NullDecimal) (int64, valuation.SeriesQuery, error) {
	portfolioID, err := dto.ParsePortfolioID(field(req, "portfolio_id"))
	if err != nil {
		return 0, valuation.SeriesQuery{}, err
	}

	params := dto.SeriesParams{
		Start:        field(req, "start"),
		End:          field(req, "end"),
		Mode:         field(req, "mode"),
		InitialValue: field(req, "initial_value"),
	}
	q, err := params.Query(portfolioID, defaultInitial)
	return portfolioID, q, err
}

// SimulateTrade handles the SimulateTrade RPC
func (s *Server) SimulateTrade(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	portfolioID, err := dto.ParsePortfolioID(field(req, "portfolio_id"))
	if err != nil {
		return nil, mapError(err)
	}

	params := dto.TradeParams{
		Date:            field(req, "date"),
		SellAssetSymbol: field(req, "sell_asset_symbol"),
		BuyAssetSymbol:  field(req, "buy_asset_symbol"),
		Amount:          field(req, "amount"),
	}
	input, err := params.Input(portfolioID)
	if err != nil {
		return nil, mapError(err)
	}

	result, err := s.TradeService.SimulateTrade(ctx, input)
	if err != nil {
		return nil, mapError(err)
	}

	return toStruct(dto.TradeResult(result))
}

// RecordDeposit handles the RecordDeposit RPC
func (s *Server) RecordDeposit(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	portfolioID, err := dto.ParsePortfolioID(field(req, "portfolio_id"))
	if err != nil {
		return nil, mapError(err)
	}

	params := dto.DepositParams{
		Date:        field(req, "date"),
		Amount:      field(req, "amount"),
		AssetSymbol: field(req, "asset_symbol"),
		Currency:    field(req, "currency"),
	}
	input, err := params.Input(portfolioID)
	if err != nil {
		return nil, mapError(err)
	}

	result, err := s.DepositService.RecordDeposit(ctx, input)
	if err != nil {
		return nil, mapError(err)
	}

	return toStruct(dto.DepositResult(result))
}

// RecordPrice handles the RecordPrice RPC
func (s *Server) RecordPrice(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	symbol := field(req, "symbol")

	date, err := domain.ParseDate("date", field(req, "date"))
	if err != nil {
		return nil, mapError(err)
	}

	price, err := dto.ParseDecimal("price", field(req, "price"))
	if err != nil {
		return nil, mapError(err)
	}

	p, err := s.PricingService.RecordPrice(ctx, symbol, date, price)
	if err != nil {
		return nil, mapError(err)
	}

	return toStruct(dto.Price(symbol, p))
}

// GetOverview handles the GetOverview RPC
func (s *Server) GetOverview(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	portfolioID, err := dto.ParsePortfolioID(field(req, "portfolio_id"))
	if err != nil {
		return nil, mapError(err)
	}

	result, err := s.OverviewService.GetOverview(ctx, portfolioID)
	if err != nil {
		return nil, mapError(err)
	}

	return toStruct(dto.Overview(result))
}

// Reconcile handles the Reconcile RPC
func (s *Server) Reconcile(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	portfolioID, err := dto.ParsePortfolioID(field(req, "portfolio_id"))
	if err != nil {
		return nil, mapError(err)
	}

	date, err := domain.ParseDate("date", field(req, "date"))
	if err != nil {
		return nil, mapError(err)
	}

	day, err := s.RollupService.Reconcile(ctx, portfolioID, date)
	if err != nil {
		return nil, mapError(err)
	}

	return toStruct(dto.Day(day))
}

// field reads a request field as text; numbers are accepted for ids and amounts
func field(req *structpb.Struct, name string) string {
	v, ok := req.GetFields()[name]
	if !ok {
		return ""
	}
	switch kind := v.GetKind().(type) {
	case *structpb.Value_StringValue:
		return kind.StringValue
	case *structpb.Value_NumberValue:
		return strconv.FormatFloat(kind.NumberValue, 'f', -1, 64)
	case *structpb.Value_BoolValue:
		return strconv.FormatBool(kind.BoolValue)
	default:
		return ""
	}
}

func toStruct(m map[string]any) (*structpb.Struct, error) {
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode response: %v", err)
	}
	return out, nil
}

// mapError converts domain errors to gRPC status errors
func mapError(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	}

	msg := dto.Message(err)
	switch domain.KindOf(err) {
	case domain.KindInvalidInput:
		return status.Error(codes.InvalidArgument, msg)
	case domain.KindNotFound:
		return status.Error(codes.NotFound, msg)
	case domain.KindInvalidState:
		return status.Error(codes.FailedPrecondition, msg)
	default:
		return status.Error(codes.Internal, msg)
	}
}

var _ ValuationServer = (*Server)(nil)
