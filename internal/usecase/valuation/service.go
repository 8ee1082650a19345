package valuation

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/simaogato/portfolio-valuation/internal/domain"
	"github.com/simaogato/portfolio-valuation/internal/platform/metrics"
	"github.com/simaogato/portfolio-valuation/internal/usecase/replay"
)

const (
	valueScale  = 2
	weightScale = 6

	pathEventAware = "event_aware"
	pathConstant   = "weights_from_inception"
)

// SeriesQuery selects a portfolio, an inclusive date range and the starting state
type SeriesQuery struct {
	PortfolioID int64
	Start       time.Time
	End         time.Time
	Initial     InitialState
}

// ValuationService builds daily valuation series from prices, starting holdings and events
type ValuationService struct {
	Portfolios      domain.PortfolioRepository
	Assets          domain.AssetRepository
	Prices          domain.PriceRepository
	Weights         domain.WeightRepository
	Snapshots       domain.SnapshotRepository
	Events          domain.EventRepository
	Replayer        *replay.Replayer
	WeightTolerance decimal.Decimal
	Logger          zerolog.Logger
}

// NewValuationService creates a new ValuationService instance
func NewValuationService(repos domain.Repositories, replayer *replay.Replayer, logger zerolog.Logger) *ValuationService {
	return &ValuationService{
		Portfolios:      repos.Portfolios,
		Assets:          repos.Assets,
		Prices:          repos.Prices,
		Weights:         repos.Weights,
		Snapshots:       repos.Snapshots,
		Events:          repos.Events,
		Replayer:        replayer,
		WeightTolerance: domain.DefaultWeightTolerance,
		Logger:          logger,
	}
}

// Resolver returns the initial state resolver for the requested mode
func (s *ValuationService) Resolver(state InitialState) (InitialStateResolver, error) {
	switch state.Kind {
	case InitialFromSnapshot:
		return &SnapshotResolver{Snapshots: s.Snapshots}, nil
	case InitialFromWeights:
		return &WeightsResolver{
			Weights:      s.Weights,
			Prices:       s.Prices,
			InitialValue: state.InitialValue,
			Tolerance:    s.WeightTolerance,
		}, nil
	}
	return nil, domain.InvalidInput("initial state mode is required")
}

// ValueSeries computes V_t for every priced date in the range, replaying every buy, sell and
// deposit event dated on or before t that the starting state does not already reflect.
// A snapshot reflects events before Start; a weight allocation reflects events up to its own date.
func (s *ValuationService) ValueSeries(ctx context.Context, q SeriesQuery) ([]domain.SeriesPoint, error) {
	began := time.Now()
	points, omitted, err := s.series(ctx, q, true)
	metrics.RecordSeries(pathEventAware, err, omitted, time.Since(began))
	return points, err
}

// WeightsFromInception values constant quantities c_{i,0} across the range.
// No event is applied; weights drift only with relative prices.
func (s *ValuationService) WeightsFromInception(ctx context.Context, q SeriesQuery) ([]domain.SeriesPoint, error) {
	began := time.Now()
	points, omitted, err := s.series(ctx, q, false)
	metrics.RecordSeries(pathConstant, err, omitted, time.Since(began))
	return points, err
}

func (s *ValuationService) series(ctx context.Context, q SeriesQuery, withEvents bool) ([]domain.SeriesPoint, int, error) {
	if q.PortfolioID <= 0 {
		return nil, 0, domain.InvalidInput("portfolio id must be positive")
	}
	start, end := domain.Day(q.Start), domain.Day(q.End)
	if err := domain.ValidateRange(start, end); err != nil {
		return nil, 0, err
	}

	if _, err := s.Portfolios.GetByID(ctx, q.PortfolioID); err != nil {
		return nil, 0, err
	}

	resolver, err := s.Resolver(q.Initial)
	if err != nil {
		return nil, 0, err
	}
	starting, err := resolver.Resolve(ctx, q.PortfolioID, start)
	if err != nil {
		return nil, 0, err
	}
	initial := starting.Holdings

	// Prices before start are only needed to convert events replayed ahead of the range
	priceFrom := start
	var events []domain.PortfolioEvent
	if withEvents && !starting.ReplayFrom.After(end) {
		events, err = s.Events.ListBetween(ctx, q.PortfolioID, starting.ReplayFrom, end)
		if err != nil {
			return nil, 0, err
		}
		if len(events) > 0 && starting.ReplayFrom.Before(start) {
			priceFrom = starting.ReplayFrom
		}
	}

	assetIDs := s.universe(initial, events)
	prices, dates, err := s.loadPrices(ctx, assetIDs, priceFrom, end)
	if err != nil {
		return nil, 0, err
	}
	names, err := s.assetNames(ctx, assetIDs)
	if err != nil {
		return nil, 0, err
	}

	priceFn := func(assetID int64, date time.Time) (decimal.Decimal, bool) {
		p, ok := prices[domain.Day(date)][assetID]
		return p, ok
	}

	var cursor *replay.Cursor
	if withEvents {
		cursor = s.Replayer.NewCursor(initial, events, priceFn)
	}

	points := make([]domain.SeriesPoint, 0, len(dates))
	omitted := 0
	for _, t := range dates {
		if t.Before(start) {
			continue
		}
		holdings := initial
		if cursor != nil {
			holdings = cursor.AdvanceTo(t)
		}

		point, ok := s.valuePoint(t, holdings, prices[t], names)
		if !ok {
			omitted++
			continue
		}
		points = append(points, point)
	}

	if cursor != nil {
		for _, skip := range cursor.Result().Skipped {
			metrics.RecordReplaySkip(string(skip.Reason))
		}
	}

	s.Logger.Debug().
		Int64("portfolio_id", q.PortfolioID).
		Str("start", domain.FormatDate(start)).
		Str("end", domain.FormatDate(end)).
		Bool("events", withEvents).
		Int("points", len(points)).
		Int("omitted", omitted).
		Msg("valuation series computed")

	return points, omitted, nil
}

func (s *ValuationService) cashAssetID() int64 {
	if s.Replayer == nil {
		return 0
	}
	return s.Replayer.CashAssetID
}

// universe is every asset whose price can matter: initial holdings, event assets and cash
func (s *ValuationService) universe(initial replay.Holdings, events []domain.PortfolioEvent) []int64 {
	seen := make(map[int64]struct{}, len(initial))
	for id := range initial {
		seen[id] = struct{}{}
	}
	for _, ev := range events {
		if ev.AssetID != nil {
			seen[*ev.AssetID] = struct{}{}
		} else if ev.Type == domain.EventTypeDeposit && s.cashAssetID() != 0 {
			seen[s.cashAssetID()] = struct{}{}
		}
	}

	ids := make([]int64, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// loadPrices groups range prices by day; the candidate dates are the days with any price row
func (s *ValuationService) loadPrices(ctx context.Context, assetIDs []int64, start, end time.Time) (map[time.Time]map[int64]decimal.Decimal, []time.Time, error) {
	byDate := make(map[time.Time]map[int64]decimal.Decimal)
	if len(assetIDs) == 0 {
		return byDate, nil, nil
	}

	rows, err := s.Prices.ListRange(ctx, assetIDs, start, end)
	if err != nil {
		return nil, nil, err
	}
	for _, p := range rows {
		day := domain.Day(p.Date)
		if byDate[day] == nil {
			byDate[day] = make(map[int64]decimal.Decimal)
		}
		byDate[day][p.AssetID] = p.Price
	}

	dates := make([]time.Time, 0, len(byDate))
	for d := range byDate {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return byDate, dates, nil
}

func (s *ValuationService) assetNames(ctx context.Context, ids []int64) (map[int64]string, error) {
	names := make(map[int64]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}
	assets, err := s.Assets.ListByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, a := range assets {
		names[a.ID] = a.Name
	}
	return names, nil
}

// valuePoint values holdings at t. The date is omitted when a held asset has no price
// on t or when V_t is not positive. Cash is priced at 1 when it has no market price.
func (s *ValuationService) valuePoint(t time.Time, holdings replay.Holdings, prices map[int64]decimal.Decimal, names map[int64]string) (domain.SeriesPoint, bool) {
	held := holdings.Held()
	values := make(map[int64]decimal.Decimal, len(held))
	total := decimal.Zero

	for _, id := range held {
		p, ok := prices[id]
		if !ok {
			if cash := s.cashAssetID(); cash == 0 || id != cash {
				s.Logger.Debug().
					Str("date", domain.FormatDate(t)).
					Int64("asset_id", id).
					Msg("date omitted: held asset has no price")
				return domain.SeriesPoint{}, false
			}
			p = decimal.NewFromInt(1)
		}
		x := holdings[id].Mul(p)
		values[id] = x
		total = total.Add(x)
	}

	if !total.IsPositive() {
		return domain.SeriesPoint{}, false
	}

	weights := make(map[string]decimal.Decimal, len(values))
	for id, x := range values {
		name, ok := names[id]
		if !ok {
			name = "unknown"
		}
		weights[name] = weights[name].Add(x.Div(total))
	}
	for name, w := range weights {
		weights[name] = w.Round(weightScale)
	}

	return domain.SeriesPoint{
		Date:       t,
		TotalValue: total.Round(valueScale),
		Weights:    weights,
	}, true
}
