package deposit

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/simaogato/portfolio-valuation/internal/domain"
	"github.com/simaogato/portfolio-valuation/internal/platform/metrics"
	"github.com/simaogato/portfolio-valuation/internal/usecase/rollup"
)

// RecordDepositInput represents the input for recording a deposit
type RecordDepositInput struct {
	PortfolioID int64
	Date        time.Time
	Amount      decimal.Decimal
	AssetSymbol string // empty deposits into the cash asset
	Currency    domain.Currency
}

// Result is the deposit event and the re-derived day
type Result struct {
	Event    domain.PortfolioEvent
	Asset    domain.Asset
	Units    decimal.Decimal
	Quantity decimal.Decimal
	Day      *rollup.Day
}

// DepositPayload is the body of the deposit notification
type DepositPayload struct {
	EventID  string `json:"event_id"`
	Date     string `json:"date"`
	Asset    string `json:"asset"`
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
	Units    string `json:"units"`
	Total    string `json:"total_value"`
}

// DepositService handles deposit recording operations
type DepositService struct {
	UnitOfWork  domain.UnitOfWork
	Locker      domain.PortfolioLocker
	Publisher   domain.Publisher
	CashAssetID int64
	Logger      zerolog.Logger
}

// NewDepositService creates a new DepositService instance
func NewDepositService(
	uow domain.UnitOfWork,
	locker domain.PortfolioLocker,
	publisher domain.Publisher,
	cashAssetID int64,
	logger zerolog.Logger,
) *DepositService {
	return &DepositService{
		UnitOfWork:  uow,
		Locker:      locker,
		Publisher:   publisher,
		CashAssetID: cashAssetID,
		Logger:      logger,
	}
}

// RecordDeposit appends a deposit event and adds its units to the ledger
// Logic:
//  1. Resolve the target asset: the given symbol, else the designated cash asset
//  2. Resolve the latest price on or before the date (cash falls back to 1)
//  3. Append the deposit event, then add amount / price units to the quantity on the date
//  4. Recompute Amount, Weight and PortfolioValue for the date
func (s *DepositService) RecordDeposit(ctx context.Context, input RecordDepositInput) (result *Result, err error) {
	defer func() { metrics.RecordLedgerOperation("record_deposit", err) }()

	// Validate input
	if input.PortfolioID <= 0 {
		return nil, domain.InvalidInput("portfolio id must be positive")
	}
	if input.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, domain.InvalidInput("deposit amount must be positive")
	}
	if input.Date.IsZero() {
		return nil, domain.InvalidInput("missing date")
	}
	if input.Currency == "" {
		input.Currency = domain.CurrencyUSD
	}
	symbol := strings.TrimSpace(input.AssetSymbol)
	if symbol == "" && s.CashAssetID == 0 {
		return nil, domain.InvalidState("no cash asset is configured for assetless deposits")
	}
	date := domain.Day(input.Date)

	if s.Locker != nil {
		unlock, err := s.Locker.Lock(ctx, input.PortfolioID)
		if err != nil {
			return nil, err
		}
		defer unlock()
	}

	err = s.UnitOfWork.Within(ctx, input.PortfolioID, func(ctx context.Context, repos domain.Repositories) error {
		if _, err := repos.Portfolios.GetByID(ctx, input.PortfolioID); err != nil {
			return err
		}

		var asset *domain.Asset
		var err error
		if symbol != "" {
			asset, err = repos.Assets.GetBySymbol(ctx, symbol)
		} else {
			asset, err = repos.Assets.GetByID(ctx, s.CashAssetID)
		}
		if err != nil {
			return err
		}

		price, err := rollup.PriceAtOrBefore(ctx, repos.Prices, asset.ID, date, s.CashAssetID)
		if err != nil {
			return err
		}

		ev := domain.PortfolioEvent{
			PortfolioID: input.PortfolioID,
			Type:        domain.EventTypeDeposit,
			Amount:      input.Amount,
			Price:       decimal.NewNullDecimal(price),
			Date:        date,
			Currency:    input.Currency,
		}
		if symbol != "" {
			id := asset.ID
			ev.AssetID = &id
		}
		if err := ev.Validate(); err != nil {
			return err
		}
		if err := repos.Events.Append(ctx, &ev); err != nil {
			return err
		}

		held, err := rollup.CarriedQuantity(ctx, repos.Quantities, input.PortfolioID, asset.ID, date)
		if err != nil {
			return err
		}
		units := input.Amount.Div(price)
		q := domain.Quantity{
			PortfolioID: input.PortfolioID,
			AssetID:     asset.ID,
			Date:        date,
			Quantity:    held.Add(units),
		}
		if err := repos.Quantities.Upsert(ctx, &q); err != nil {
			return err
		}

		day, err := rollup.RecomputeDay(ctx, repos, input.PortfolioID, date, s.CashAssetID)
		if err != nil {
			return err
		}

		result = &Result{Event: ev, Asset: *asset, Units: units, Quantity: q.Quantity, Day: day}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Info().
		Int64("portfolio_id", input.PortfolioID).
		Str("date", domain.FormatDate(date)).
		Str("asset", result.Asset.Label()).
		Str("amount", input.Amount.String()).
		Msg("deposit recorded")

	s.publish(ctx, result)
	return result, nil
}

func (s *DepositService) publish(ctx context.Context, r *Result) {
	if s.Publisher == nil {
		return
	}
	n := domain.Notification{
		Type:        domain.NotificationDepositRecorded,
		PortfolioID: r.Event.PortfolioID,
		OccurredAt:  time.Now().UTC(),
		Payload: DepositPayload{
			EventID:  r.Event.ID.String(),
			Date:     domain.FormatDate(r.Event.Date),
			Asset:    r.Asset.Label(),
			Amount:   r.Event.Amount.String(),
			Currency: string(r.Event.Currency),
			Units:    r.Units.String(),
			Total:    r.Day.Total.String(),
		},
	}
	if err := s.Publisher.Publish(ctx, n); err != nil {
		s.Logger.Error().Err(err).Int64("portfolio_id", r.Event.PortfolioID).Msg("failed to publish deposit notification")
	}
}
