package trade

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/simaogato/portfolio-valuation/internal/domain"
	"github.com/simaogato/portfolio-valuation/internal/platform/metrics"
	"github.com/simaogato/portfolio-valuation/internal/usecase/rollup"
)

// SimulateTradeInput describes a USD amount moved from one asset into another on a date
type SimulateTradeInput struct {
	PortfolioID     int64
	Date            time.Time
	SellAssetSymbol string
	BuyAssetSymbol  string
	Amount          decimal.Decimal
}

// Validate checks the input before anything is read or written
func (in *SimulateTradeInput) Validate() error {
	if in.PortfolioID <= 0 {
		return domain.InvalidInput("portfolio id must be positive")
	}
	if in.Date.IsZero() {
		return domain.InvalidInput("missing date")
	}
	if strings.TrimSpace(in.SellAssetSymbol) == "" {
		return domain.InvalidInput("missing sell_asset_symbol")
	}
	if strings.TrimSpace(in.BuyAssetSymbol) == "" {
		return domain.InvalidInput("missing buy_asset_symbol")
	}
	if strings.EqualFold(strings.TrimSpace(in.SellAssetSymbol), strings.TrimSpace(in.BuyAssetSymbol)) {
		return domain.InvalidInput("sell and buy assets must differ")
	}
	if in.Amount.LessThanOrEqual(decimal.Zero) {
		return domain.InvalidInput("amount must be positive")
	}
	return nil
}

// Leg is one side of a simulated trade
type Leg struct {
	Asset    domain.Asset
	Price    decimal.Decimal
	Units    decimal.Decimal // amount / price
	Quantity decimal.Decimal // quantity on the trade date after the leg
	Applied  bool
}

// Result is what a simulated trade wrote
type Result struct {
	PortfolioID int64
	Date        time.Time
	Amount      decimal.Decimal
	Sell        Leg
	Buy         Leg
	Events      []domain.PortfolioEvent
	Day         *rollup.Day
	// LaterQuantityRows counts ledger rows after the trade date that were left untouched
	LaterQuantityRows int
}

// Message is the human readable confirmation returned to callers
func (r *Result) Message() string {
	return "Trade simulated successfully"
}

// TradePayload is the body of the trade notification
type TradePayload struct {
	Date      string `json:"date"`
	SellAsset string `json:"sell_asset"`
	BuyAsset  string `json:"buy_asset"`
	Amount    string `json:"amount"`
	SellUnits string `json:"sell_units"`
	BuyUnits  string `json:"buy_units"`
	SellSkip  bool   `json:"sell_skipped"`
	Total     string `json:"total_value"`
}

// TradeService applies simulated trades to the holdings ledger
type TradeService struct {
	UnitOfWork  domain.UnitOfWork
	Locker      domain.PortfolioLocker
	Publisher   domain.Publisher
	CashAssetID int64
	Logger      zerolog.Logger
}

// NewTradeService creates a new TradeService instance
func NewTradeService(uow domain.UnitOfWork, locker domain.PortfolioLocker, publisher domain.Publisher, cashAssetID int64, logger zerolog.Logger) *TradeService {
	return &TradeService{
		UnitOfWork:  uow,
		Locker:      locker,
		Publisher:   publisher,
		CashAssetID: cashAssetID,
		Logger:      logger,
	}
}

// SimulateTrade records a sell and a buy event and re-derives the trade date
// Logic:
//  1. Resolve both assets by symbol and the portfolio (NotFound)
//  2. Resolve the latest price on or before the date for each asset (InvalidState)
//  3. Append the sell event, then the buy event, both in USD with the resolved prices
//  4. Sell leg: carried quantity minus amount / sell price, skipped when it would go negative
//  5. Buy leg: quantity on the date (or carried forward) plus amount / buy price
//  6. Recompute Amount, Weight and PortfolioValue for the date
//
// Steps 3 to 6 commit or roll back together under the portfolio lock.
// Rows dated after the trade date are not re-derived.
func (s *TradeService) SimulateTrade(ctx context.Context, in SimulateTradeInput) (result *Result, err error) {
	defer func() { metrics.RecordLedgerOperation("simulate_trade", err) }()

	if err := in.Validate(); err != nil {
		return nil, err
	}
	date := domain.Day(in.Date)

	if s.Locker != nil {
		unlock, err := s.Locker.Lock(ctx, in.PortfolioID)
		if err != nil {
			return nil, err
		}
		defer unlock()
	}

	err = s.UnitOfWork.Within(ctx, in.PortfolioID, func(ctx context.Context, repos domain.Repositories) error {
		var err error
		result, err = s.apply(ctx, repos, in, date)
		return err
	})
	if err != nil {
		return nil, err
	}

	if result.LaterQuantityRows > 0 {
		s.Logger.Warn().
			Int64("portfolio_id", in.PortfolioID).
			Str("date", domain.FormatDate(date)).
			Int("later_rows", result.LaterQuantityRows).
			Msg("trade not propagated to ledger rows after the trade date")
	}

	s.Logger.Info().
		Int64("portfolio_id", in.PortfolioID).
		Str("date", domain.FormatDate(date)).
		Str("sell", result.Sell.Asset.Label()).
		Str("buy", result.Buy.Asset.Label()).
		Str("amount", in.Amount.String()).
		Str("total", result.Day.Total.String()).
		Msg("trade simulated")

	s.publish(ctx, result)
	return result, nil
}

func (s *TradeService) apply(ctx context.Context, repos domain.Repositories, in SimulateTradeInput, date time.Time) (*Result, error) {
	sellAsset, err := repos.Assets.GetBySymbol(ctx, strings.TrimSpace(in.SellAssetSymbol))
	if err != nil {
		return nil, err
	}
	buyAsset, err := repos.Assets.GetBySymbol(ctx, strings.TrimSpace(in.BuyAssetSymbol))
	if err != nil {
		return nil, err
	}
	if _, err := repos.Portfolios.GetByID(ctx, in.PortfolioID); err != nil {
		return nil, err
	}

	sellPrice, err := historicalPrice(ctx, repos.Prices, sellAsset, date)
	if err != nil {
		return nil, err
	}
	buyPrice, err := historicalPrice(ctx, repos.Prices, buyAsset, date)
	if err != nil {
		return nil, err
	}

	result := &Result{
		PortfolioID: in.PortfolioID,
		Date:        date,
		Amount:      in.Amount,
		Sell:        Leg{Asset: *sellAsset, Price: sellPrice, Units: in.Amount.Div(sellPrice)},
		Buy:         Leg{Asset: *buyAsset, Price: buyPrice, Units: in.Amount.Div(buyPrice)},
	}

	for _, leg := range []struct {
		typ   domain.EventType
		asset domain.Asset
		price decimal.Decimal
	}{
		{domain.EventTypeSell, *sellAsset, sellPrice},
		{domain.EventTypeBuy, *buyAsset, buyPrice},
	} {
		assetID := leg.asset.ID
		ev := domain.PortfolioEvent{
			PortfolioID: in.PortfolioID,
			Type:        leg.typ,
			AssetID:     &assetID,
			Amount:      in.Amount,
			Price:       decimal.NewNullDecimal(leg.price),
			Date:        date,
			Currency:    domain.CurrencyUSD,
		}
		if err := ev.Validate(); err != nil {
			return nil, err
		}
		if err := repos.Events.Append(ctx, &ev); err != nil {
			return nil, err
		}
		result.Events = append(result.Events, ev)
	}

	// sell leg
	held, err := rollup.CarriedQuantity(ctx, repos.Quantities, in.PortfolioID, sellAsset.ID, date)
	if err != nil {
		return nil, err
	}
	result.Sell.Quantity = held
	if next := held.Sub(result.Sell.Units); !next.IsNegative() {
		result.Sell.Quantity = next
		result.Sell.Applied = true
	} else {
		s.Logger.Warn().
			Int64("portfolio_id", in.PortfolioID).
			Str("asset", sellAsset.Label()).
			Str("held", held.String()).
			Str("units", result.Sell.Units.String()).
			Msg("sell exceeds held quantity, quantity left unchanged")
	}
	if err := repos.Quantities.Upsert(ctx, &domain.Quantity{
		PortfolioID: in.PortfolioID,
		AssetID:     sellAsset.ID,
		Date:        date,
		Quantity:    result.Sell.Quantity,
	}); err != nil {
		return nil, err
	}

	// buy leg
	base, err := rollup.CarriedQuantity(ctx, repos.Quantities, in.PortfolioID, buyAsset.ID, date)
	if err != nil {
		return nil, err
	}
	result.Buy.Quantity = base.Add(result.Buy.Units)
	result.Buy.Applied = true
	if err := repos.Quantities.Upsert(ctx, &domain.Quantity{
		PortfolioID: in.PortfolioID,
		AssetID:     buyAsset.ID,
		Date:        date,
		Quantity:    result.Buy.Quantity,
	}); err != nil {
		return nil, err
	}

	day, err := rollup.RecomputeDay(ctx, repos, in.PortfolioID, date, s.CashAssetID)
	if err != nil {
		return nil, err
	}
	result.Day = day

	later, err := repos.Quantities.CountAfter(ctx, in.PortfolioID, date)
	if err != nil {
		return nil, err
	}
	result.LaterQuantityRows = later

	return result, nil
}

// historicalPrice maps a missing price history to InvalidState
func historicalPrice(ctx context.Context, prices domain.PriceRepository, asset *domain.Asset, date time.Time) (decimal.Decimal, error) {
	p, err := prices.LatestAtOrBefore(ctx, asset.ID, date)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return decimal.Zero, domain.InvalidState("no historical price for %s on or before %s", asset.Label(), domain.FormatDate(date))
		}
		return decimal.Zero, err
	}
	if !p.Price.IsPositive() {
		return decimal.Zero, domain.InvalidState("no historical price for %s on or before %s", asset.Label(), domain.FormatDate(date))
	}
	return p.Price, nil
}

// publish is best effort: the ledger is already committed
func (s *TradeService) publish(ctx context.Context, r *Result) {
	if s.Publisher == nil {
		return
	}
	n := domain.Notification{
		Type:        domain.NotificationTradeSimulated,
		PortfolioID: r.PortfolioID,
		OccurredAt:  time.Now().UTC(),
		Payload: TradePayload{
			Date:      domain.FormatDate(r.Date),
			SellAsset: r.Sell.Asset.Label(),
			BuyAsset:  r.Buy.Asset.Label(),
			Amount:    r.Amount.String(),
			SellUnits: r.Sell.Units.String(),
			BuyUnits:  r.Buy.Units.String(),
			SellSkip:  !r.Sell.Applied,
			Total:     r.Day.Total.String(),
		},
	}
	if err := s.Publisher.Publish(ctx, n); err != nil {
		s.Logger.Error().Err(err).Int64("portfolio_id", r.PortfolioID).Msg("failed to publish trade notification")
	}
}
