package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Price is the market price of an asset on a date. Prices are append-only.
type Price struct {
	AssetID int64
	Date    time.Time
	Price   decimal.Decimal
}

// Quantity is the unit count a portfolio holds of an asset on a date
type Quantity struct {
	PortfolioID int64
	AssetID     int64
	Date        time.Time
	Quantity    decimal.Decimal
}

// Amount is the cached monetary value (quantity × price) of a holding on a date
type Amount struct {
	PortfolioID int64
	AssetID     int64
	Date        time.Time
	Amount      decimal.Decimal
}

// Weight is the normalized exposure of an asset within a portfolio on a date
type Weight struct {
	PortfolioID int64
	AssetID     int64
	Date        time.Time
	Weight      decimal.Decimal
}

// HoldingSnapshot is an authoritative point-in-time quantity
type HoldingSnapshot struct {
	PortfolioID int64
	AssetID     int64
	Date        time.Time
	Quantity    decimal.Decimal
}

// PortfolioValue is the daily rollup of a portfolio's Amount rows
type PortfolioValue struct {
	PortfolioID int64
	Date        time.Time
	Value       decimal.Decimal
}

// SeriesPoint is one day of a valuation series.
// TotalValue is rounded to 2 places and weights to 6 places, keyed by asset name.
type SeriesPoint struct {
	Date       time.Time
	TotalValue decimal.Decimal
	Weights    map[string]decimal.Decimal
}
