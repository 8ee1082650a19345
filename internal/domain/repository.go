package domain

import (
	"context"
	"time"
)

// AssetRepository defines the interface for asset persistence operations
type AssetRepository interface {
	// GetByID retrieves an asset by its ID
	GetByID(ctx context.Context, id int64) (*Asset, error)

	// GetBySymbol retrieves an asset by its ticker symbol
	GetBySymbol(ctx context.Context, symbol string) (*Asset, error)

	// ListByIDs retrieves the assets with the given IDs, in ID order
	ListByIDs(ctx context.Context, ids []int64) ([]*Asset, error)

	// Create creates a new asset and assigns its ID
	Create(ctx context.Context, asset *Asset) error
}

// PortfolioRepository defines the interface for portfolio persistence operations
type PortfolioRepository interface {
	GetByID(ctx context.Context, id int64) (*Portfolio, error)
	Create(ctx context.Context, portfolio *Portfolio) error
}

// PriceRepository is the market data store. It is never mutated by the valuation core.
type PriceRepository interface {
	// Add appends a price. A second price for the same (asset, date) is an InvalidState error.
	Add(ctx context.Context, price *Price) error

	// LatestAtOrBefore returns the most recent price dated on or before date
	LatestAtOrBefore(ctx context.Context, assetID int64, date time.Time) (*Price, error)

	// ListRange returns prices of the given assets between start and end inclusive, ordered by date then asset
	ListRange(ctx context.Context, assetIDs []int64, start, end time.Time) ([]Price, error)

	// ListOnDate returns the prices of the given assets on exactly date
	ListOnDate(ctx context.Context, assetIDs []int64, date time.Time) ([]Price, error)
}

// QuantityRepository stores point-in-time holdings
type QuantityRepository interface {
	Get(ctx context.Context, portfolioID, assetID int64, date time.Time) (*Quantity, error)
	Upsert(ctx context.Context, q *Quantity) error

	// EffectiveAt returns, per asset, the latest quantity row dated on or before date
	EffectiveAt(ctx context.Context, portfolioID int64, date time.Time) ([]Quantity, error)

	// CountAfter counts quantity rows dated strictly after date
	CountAfter(ctx context.Context, portfolioID int64, date time.Time) (int, error)
}

// AmountRepository stores cached monetary values per holding and date
type AmountRepository interface {
	Upsert(ctx context.Context, a *Amount) error
	ListOnDate(ctx context.Context, portfolioID int64, date time.Time) ([]Amount, error)
}

// WeightRepository stores normalized exposures per holding and date
type WeightRepository interface {
	Upsert(ctx context.Context, w *Weight) error
	ListOnDate(ctx context.Context, portfolioID int64, date time.Time) ([]Weight, error)

	// Inception returns the weight rows of the portfolio's earliest weight date: the configured allocation.
	// Later dates hold weights derived by the daily rollup and are never returned here.
	Inception(ctx context.Context, portfolioID int64) ([]Weight, error)
}

// PortfolioValueRepository stores the daily total value rollup
type PortfolioValueRepository interface {
	Upsert(ctx context.Context, v *PortfolioValue) error
	Get(ctx context.Context, portfolioID int64, date time.Time) (*PortfolioValue, error)
	Latest(ctx context.Context, portfolioID int64) (*PortfolioValue, error)
}

// SnapshotRepository stores authoritative holding snapshots
type SnapshotRepository interface {
	Upsert(ctx context.Context, s *HoldingSnapshot) error
	ListOnDate(ctx context.Context, portfolioID int64, date time.Time) ([]HoldingSnapshot, error)
}

// EventRepository is the append-only event log
type EventRepository interface {
	// Append writes the event and assigns its ID (when unset) and Seq
	Append(ctx context.Context, event *PortfolioEvent) error

	// ListBetween returns events dated between from and to inclusive, ordered by date then Seq
	ListBetween(ctx context.Context, portfolioID int64, from, to time.Time) ([]PortfolioEvent, error)
}

// Repositories bundles every repository bound to the same connection or transaction
type Repositories struct {
	Assets     AssetRepository
	Portfolios PortfolioRepository
	Prices     PriceRepository
	Quantities QuantityRepository
	Amounts    AmountRepository
	Weights    WeightRepository
	Values     PortfolioValueRepository
	Snapshots  SnapshotRepository
	Events     EventRepository
}

// UnitOfWork runs ledger writes for one portfolio atomically.
// Writers to the same portfolio are serialized; a returned error rolls every write back.
type UnitOfWork interface {
	Within(ctx context.Context, portfolioID int64, fn func(ctx context.Context, repos Repositories) error) error
}

// PortfolioLocker serializes writers of a portfolio across processes
type PortfolioLocker interface {
	Lock(ctx context.Context, portfolioID int64) (unlock func(), err error)
}

// Notification is published after a ledger change has been committed
type Notification struct {
	Type        string
	PortfolioID int64
	OccurredAt  time.Time
	Payload     any
}

const (
	NotificationTradeSimulated  = "portfolio.trade.simulated.v1"
	NotificationDepositRecorded = "portfolio.deposit.recorded.v1"
)

// Publisher delivers notifications to downstream consumers
type Publisher interface {
	Publish(ctx context.Context, n Notification) error
}
