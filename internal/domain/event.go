package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EventType represents the kind of portfolio event
type EventType string

const (
	EventTypeBuy     EventType = "buy"
	EventTypeSell    EventType = "sell"
	EventTypeDeposit EventType = "deposit"
)

// Valid reports whether t is a known event type
func (t EventType) Valid() bool {
	switch t {
	case EventTypeBuy, EventTypeSell, EventTypeDeposit:
		return true
	}
	return false
}

// PortfolioEvent is an append-only entry of the event log.
// Amount is a notional in Currency for every type, including sell.
type PortfolioEvent struct {
	ID          uuid.UUID
	Seq         int64 // insertion order, assigned by the event log on append
	PortfolioID int64
	Type        EventType
	AssetID     *int64 // nil only for deposits into the cash asset
	Amount      decimal.Decimal
	Price       decimal.NullDecimal // price recorded when the event was written
	Date        time.Time
	Currency    Currency
}

// Validate ensures the event adheres to domain rules
func (e *PortfolioEvent) Validate() error {
	if !e.Type.Valid() {
		return InvalidInput("event type must be buy, sell or deposit")
	}
	if e.PortfolioID == 0 {
		return InvalidInput("event must reference a portfolio")
	}
	if e.AssetID == nil && e.Type != EventTypeDeposit {
		return InvalidInput("%s event must reference an asset", e.Type)
	}
	if e.Amount.LessThanOrEqual(decimal.Zero) {
		return InvalidInput("event amount must be positive")
	}
	if e.Price.Valid && e.Price.Decimal.IsNegative() {
		return InvalidInput("event price cannot be negative")
	}
	if e.Date.IsZero() {
		return InvalidInput("event date is required")
	}
	if !e.Currency.Valid() {
		return InvalidInput("unsupported event currency %q", e.Currency)
	}
	return nil
}

// Before orders events by date, then insertion sequence
func (e *PortfolioEvent) Before(other *PortfolioEvent) bool {
	if !e.Date.Equal(other.Date) {
		return e.Date.Before(other.Date)
	}
	return e.Seq < other.Seq
}
