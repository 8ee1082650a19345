package replay

import (
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/simaogato/portfolio-valuation/internal/domain"
)

// Holdings maps asset ID to units held
type Holdings map[int64]decimal.Decimal

// Clone returns an independent copy
func (h Holdings) Clone() Holdings {
	out := make(Holdings, len(h))
	for id, q := range h {
		out[id] = q
	}
	return out
}

// Held returns the IDs of assets with a positive quantity, ascending
func (h Holdings) Held() []int64 {
	ids := make([]int64, 0, len(h))
	for id, q := range h {
		if q.IsPositive() {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// PriceFunc returns the market price of an asset on exactly date
type PriceFunc func(assetID int64, date time.Time) (decimal.Decimal, bool)

// SkipReason explains why an event did not change holdings
type SkipReason string

const (
	SkipNone     SkipReason = ""
	SkipNoPrice  SkipReason = "no price on event date"
	SkipOverSell SkipReason = "sell exceeds held quantity"
	SkipNoAsset  SkipReason = "event has no asset and no cash asset is configured"
	SkipUnknown  SkipReason = "unknown event type"
)

// Skip records an event that was replayed without effect
type Skip struct {
	Event  domain.PortfolioEvent
	Reason SkipReason
}

// Result summarizes a replay
type Result struct {
	Applied int
	Skipped []Skip
}

// handler applies units of one event type to an asset's running quantity
type handler func(current, units decimal.Decimal) (decimal.Decimal, SkipReason)

var handlers = map[domain.EventType]handler{
	domain.EventTypeBuy:     applyBuy,
	domain.EventTypeSell:    applySell,
	domain.EventTypeDeposit: applyDeposit,
}

func applyBuy(current, units decimal.Decimal) (decimal.Decimal, SkipReason) {
	return current.Add(units), SkipNone
}

// applySell refuses to take the position below zero.
func applySell(current, units decimal.Decimal) (decimal.Decimal, SkipReason) {
	next := current.Sub(units)
	if next.IsNegative() {
		return current, SkipOverSell
	}
	return next, SkipNone
}

func applyDeposit(current, units decimal.Decimal) (decimal.Decimal, SkipReason) {
	return current.Add(units), SkipNone
}

// Replayer mutates holdings forward through the event log.
// Assetless deposits land on CashAssetID, which is priced at 1 when it has no market price.
type Replayer struct {
	CashAssetID int64
	Logger      zerolog.Logger
}

// NewReplayer creates a new Replayer instance
func NewReplayer(cashAssetID int64, logger zerolog.Logger) *Replayer {
	return &Replayer{CashAssetID: cashAssetID, Logger: logger}
}

// Replay applies every event dated on or before until to a copy of start.
// Callers must pass a fixed starting state; replaying onto already-replayed holdings double-applies.
func (r *Replayer) Replay(start Holdings, events []domain.PortfolioEvent, until time.Time, prices PriceFunc) (Holdings, Result) {
	holdings := start.Clone()
	var result Result

	for _, ev := range Sorted(events) {
		if ev.Date.After(until) {
			break
		}
		if reason := r.Apply(holdings, ev, prices); reason != SkipNone {
			result.Skipped = append(result.Skipped, Skip{Event: ev, Reason: reason})
			continue
		}
		result.Applied++
	}

	return holdings, result
}

// Apply mutates holdings with a single event
func (r *Replayer) Apply(holdings Holdings, ev domain.PortfolioEvent, prices PriceFunc) SkipReason {
	assetID, ok := r.targetAsset(ev)
	if !ok {
		r.logSkip(ev, SkipNoAsset)
		return SkipNoAsset
	}

	price, ok := r.unitPrice(assetID, ev, prices)
	if !ok {
		r.logSkip(ev, SkipNoPrice)
		return SkipNoPrice
	}

	apply, known := handlers[ev.Type]
	if !known {
		r.logSkip(ev, SkipUnknown)
		return SkipUnknown
	}

	units := ev.Amount.Div(price)
	next, reason := apply(holdings[assetID], units)
	if reason != SkipNone {
		r.logSkip(ev, reason)
		return reason
	}

	holdings[assetID] = next
	return SkipNone
}

func (r *Replayer) targetAsset(ev domain.PortfolioEvent) (int64, bool) {
	if ev.AssetID != nil {
		return *ev.AssetID, true
	}
	if ev.Type == domain.EventTypeDeposit && r.CashAssetID != 0 {
		return r.CashAssetID, true
	}
	return 0, false
}

// unitPrice converts with the market price on the event's own date, falling back to
// the price recorded on the event.
func (r *Replayer) unitPrice(assetID int64, ev domain.PortfolioEvent, prices PriceFunc) (decimal.Decimal, bool) {
	if prices != nil {
		if p, ok := prices(assetID, ev.Date); ok && p.IsPositive() {
			return p, true
		}
	}
	if ev.Price.Valid && ev.Price.Decimal.IsPositive() {
		return ev.Price.Decimal, true
	}
	if assetID == r.CashAssetID {
		return decimal.NewFromInt(1), true
	}
	return decimal.Zero, false
}

func (r *Replayer) logSkip(ev domain.PortfolioEvent, reason SkipReason) {
	r.Logger.Warn().
		Str("event_id", ev.ID.String()).
		Int64("portfolio_id", ev.PortfolioID).
		Str("type", string(ev.Type)).
		Str("date", domain.FormatDate(ev.Date)).
		Str("reason", string(reason)).
		Msg("event replayed without effect")
}

// Sorted returns a copy of events ordered by date, then insertion sequence
func Sorted(events []domain.PortfolioEvent) []domain.PortfolioEvent {
	out := make([]domain.PortfolioEvent, len(events))
	copy(out, events)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Before(&out[j])
	})
	return out
}

// Cursor replays a fixed event sequence forward one valuation date at a time.
// It is equivalent to calling Replay from the same start for every date, without re-applying history.
type Cursor struct {
	replayer *Replayer
	events   []domain.PortfolioEvent
	prices   PriceFunc
	next     int
	holdings Holdings
	result   Result
}

// NewCursor starts a cursor at a copy of start
func (r *Replayer) NewCursor(start Holdings, events []domain.PortfolioEvent, prices PriceFunc) *Cursor {
	return &Cursor{
		replayer: r,
		events:   Sorted(events),
		prices:   prices,
		holdings: start.Clone(),
	}
}

// AdvanceTo applies every pending event dated on or before t and returns the holdings.
// The returned map is owned by the cursor; callers must not mutate it.
func (c *Cursor) AdvanceTo(t time.Time) Holdings {
	for c.next < len(c.events) && !c.events[c.next].Date.After(t) {
		ev := c.events[c.next]
		if reason := c.replayer.Apply(c.holdings, ev, c.prices); reason != SkipNone {
			c.result.Skipped = append(c.result.Skipped, Skip{Event: ev, Reason: reason})
		} else {
			c.result.Applied++
		}
		c.next++
	}
	return c.holdings
}

// Result returns what has been replayed so far
func (c *Cursor) Result() Result {
	return c.result
}
