// Package dto converts transport parameters into use case inputs and use case
// results into plain maps that both the JSON and the gRPC Struct encoders accept.
package dto

import (
	"errors"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/simaogato/portfolio-valuation/internal/domain"
	"github.com/simaogato/portfolio-valuation/internal/usecase/deposit"
	"github.com/simaogato/portfolio-valuation/internal/usecase/overview"
	"github.com/simaogato/portfolio-valuation/internal/usecase/rollup"
	"github.com/simaogato/portfolio-valuation/internal/usecase/trade"
	"github.com/simaogato/portfolio-valuation/internal/usecase/valuation"
)

// ParsePortfolioID parses a positive portfolio identifier
func ParsePortfolioID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.InvalidInput("invalid portfolio id %q", s)
	}
	return id, nil
}

// ParseDecimal parses a decimal parameter. field names the parameter in the error message.
func ParseDecimal(field, s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, domain.InvalidInput("missing %s", field)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, domain.InvalidInput("invalid %s %q", field, s)
	}
	return d, nil
}

// SeriesParams are the raw parameters of a valuation series request
type SeriesParams struct {
	Start        string
	End          string
	Mode         string // snapshot or weights, empty means weights
	InitialValue string // optional V0 in weights mode
}

// Query builds the series query. defaultInitial is used in weights mode when InitialValue is empty;
// an invalid defaultInitial derives V0 from the start prices.
func (p SeriesParams) Query(portfolioID int64, defaultInitial decimal.NullDecimal) (valuation.SeriesQuery, error) {
	start, err := domain.ParseDate("start", p.Start)
	if err != nil {
		return valuation.SeriesQuery{}, err
	}
	end, err := domain.ParseDate("end", p.End)
	if err != nil {
		return valuation.SeriesQuery{}, err
	}

	q := valuation.SeriesQuery{PortfolioID: portfolioID, Start: start, End: end}

	kind := valuation.InitialFromWeights
	if strings.TrimSpace(p.Mode) != "" {
		if kind, err = valuation.ParseInitialStateKind(p.Mode); err != nil {
			return valuation.SeriesQuery{}, err
		}
	}

	switch kind {
	case valuation.InitialFromSnapshot:
		if strings.TrimSpace(p.InitialValue) != "" {
			return valuation.SeriesQuery{}, domain.InvalidInput("initial_value is only accepted in weights mode")
		}
		q.Initial = valuation.FromSnapshot()
	default:
		initial := defaultInitial
		if strings.TrimSpace(p.InitialValue) != "" {
			v, err := ParseDecimal("initial_value", p.InitialValue)
			if err != nil {
				return valuation.SeriesQuery{}, err
			}
			if !v.IsPositive() {
				return valuation.SeriesQuery{}, domain.InvalidInput("initial_value must be positive")
			}
			initial = decimal.NewNullDecimal(v)
		}
		q.Initial = valuation.FromWeights(initial)
	}

	return q, nil
}

// TradeParams are the raw parameters of a simulated trade
type TradeParams struct {
	Date            string
	SellAssetSymbol string
	BuyAssetSymbol  string
	Amount          string
}

// Input builds the trade input; field level rules are enforced by SimulateTradeInput.Validate
func (p TradeParams) Input(portfolioID int64) (trade.SimulateTradeInput, error) {
	date, err := domain.ParseDate("date", p.Date)
	if err != nil {
		return trade.SimulateTradeInput{}, err
	}
	amount, err := ParseDecimal("amount", p.Amount)
	if err != nil {
		return trade.SimulateTradeInput{}, err
	}
	return trade.SimulateTradeInput{
		PortfolioID:     portfolioID,
		Date:            date,
		SellAssetSymbol: p.SellAssetSymbol,
		BuyAssetSymbol:  p.BuyAssetSymbol,
		Amount:          amount,
	}, nil
}

// DepositParams are the raw parameters of a deposit
type DepositParams struct {
	Date        string
	Amount      string
	AssetSymbol string
	Currency    string
}

// Input builds the deposit input
func (p DepositParams) Input(portfolioID int64) (deposit.RecordDepositInput, error) {
	date, err := domain.ParseDate("date", p.Date)
	if err != nil {
		return deposit.RecordDepositInput{}, err
	}
	amount, err := ParseDecimal("amount", p.Amount)
	if err != nil {
		return deposit.RecordDepositInput{}, err
	}
	return deposit.RecordDepositInput{
		PortfolioID: portfolioID,
		Date:        date,
		Amount:      amount,
		AssetSymbol: strings.TrimSpace(p.AssetSymbol),
		Currency:    domain.Currency(strings.ToUpper(strings.TrimSpace(p.Currency))),
	}, nil
}

// Keys naming the total value of a series point
const (
	ValueKeyPortfolio = "portfolio_value"
	ValueKeyInception = "V_t"
)

// SeriesPoints renders [{date, <valueKey>, weights: {assetName: weight}}]
func SeriesPoints(points []domain.SeriesPoint, valueKey string) []any {
	out := make([]any, 0, len(points))
	for _, p := range points {
		weights := make(map[string]any, len(p.Weights))
		for name, w := range p.Weights {
			weights[name] = w.StringFixed(6)
		}
		out = append(out, map[string]any{
			"date":    domain.FormatDate(p.Date),
			valueKey:  p.TotalValue.StringFixed(2),
			"weights": weights,
		})
	}
	return out
}

// Series wraps SeriesPoints with the portfolio id
func Series(portfolioID int64, points []domain.SeriesPoint, valueKey string) map[string]any {
	return map[string]any{
		"portfolio_id": strconv.FormatInt(portfolioID, 10),
		"series":       SeriesPoints(points, valueKey),
	}
}

// Day renders a re-derived ledger day
func Day(d *rollup.Day) map[string]any {
	if d == nil {
		return nil
	}
	amounts := make(map[string]any, len(d.Amounts))
	for _, a := range d.Amounts {
		amounts[strconv.FormatInt(a.AssetID, 10)] = a.Amount.String()
	}
	weights := make(map[string]any, len(d.Weights))
	for _, w := range d.Weights {
		weights[strconv.FormatInt(w.AssetID, 10)] = w.Weight.StringFixed(6)
	}
	return map[string]any{
		"date":        domain.FormatDate(d.Date),
		"total_value": d.Total.StringFixed(2),
		"amounts":     amounts,
		"weights":     weights,
	}
}

func leg(l trade.Leg) map[string]any {
	return map[string]any{
		"asset":    l.Asset.Label(),
		"price":    l.Price.String(),
		"units":    l.Units.String(),
		"quantity": l.Quantity.String(),
		"applied":  l.Applied,
	}
}

// TradeResult renders {message, ...} for a simulated trade
func TradeResult(r *trade.Result) map[string]any {
	events := make([]any, 0, len(r.Events))
	for _, e := range r.Events {
		events = append(events, e.ID.String())
	}
	return map[string]any{
		"message":             r.Message(),
		"portfolio_id":        strconv.FormatInt(r.PortfolioID, 10),
		"date":                domain.FormatDate(r.Date),
		"amount":              r.Amount.String(),
		"sell":                leg(r.Sell),
		"buy":                 leg(r.Buy),
		"event_ids":           events,
		"day":                 Day(r.Day),
		"later_quantity_rows": int64(r.LaterQuantityRows),
	}
}

// DepositResult renders a recorded deposit
func DepositResult(r *deposit.Result) map[string]any {
	return map[string]any{
		"message":  "Deposit recorded successfully",
		"event_id": r.Event.ID.String(),
		"date":     domain.FormatDate(r.Event.Date),
		"asset":    r.Asset.Label(),
		"amount":   r.Event.Amount.String(),
		"currency": string(r.Event.Currency),
		"units":    r.Units.String(),
		"quantity": r.Quantity.String(),
		"day":      Day(r.Day),
	}
}

// Price renders a price row
func Price(symbol string, p *domain.Price) map[string]any {
	return map[string]any{
		"symbol":   symbol,
		"asset_id": strconv.FormatInt(p.AssetID, 10),
		"date":     domain.FormatDate(p.Date),
		"price":    p.Price.String(),
	}
}

// Overview renders the latest materialized state of a portfolio
func Overview(r *overview.Result) map[string]any {
	holdings := make([]any, 0, len(r.Holdings))
	for _, h := range r.Holdings {
		holdings = append(holdings, map[string]any{
			"asset_id": strconv.FormatInt(h.AssetID, 10),
			"name":     h.Name,
			"symbol":   h.Symbol,
			"amount":   h.Amount.StringFixed(2),
			"weight":   h.Weight.StringFixed(6),
		})
	}
	return map[string]any{
		"portfolio_id":    strconv.FormatInt(r.Portfolio.ID, 10),
		"name":            r.Portfolio.Name,
		"currency":        string(r.Portfolio.Currency),
		"date":            domain.FormatDate(r.Date),
		"portfolio_value": r.Value.StringFixed(2),
		"holdings":        holdings,
	}
}

// Error renders {error: message}
func Error(err error) map[string]any {
	return map[string]any{"error": Message(err)}
}

// Message returns the caller facing text of err; internal causes are not exposed
func Message(err error) string {
	var de *domain.Error
	if errors.As(err, &de) {
		return de.Message
	}
	return err.Error()
}
