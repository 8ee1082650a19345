package postgres

import (
	"context"
	"time"

	"github.com/simaogato/portfolio-valuation/internal/domain"
)

// quantityRepository implements domain.QuantityRepository
type quantityRepository struct {
	t ledgerTable
}

// NewQuantityRepository creates a new quantity repository
func NewQuantityRepository(db Querier) domain.QuantityRepository {
	return &quantityRepository{t: ledgerTable{db: db, table: "quantities", column: "quantity"}}
}

func (r *quantityRepository) Get(ctx context.Context, portfolioID, assetID int64, date time.Time) (*domain.Quantity, error) {
	query := `
		SELECT portfolio_id, asset_id, date, quantity
		FROM quantities
		WHERE portfolio_id = $1 AND asset_id = $2 AND date = $3
	`

	rows, err := r.t.query(ctx, query, portfolioID, assetID, domain.Day(date))
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, domain.NotFound("no quantity for asset %d on %s", assetID, domain.FormatDate(date))
	}
	q := toQuantity(rows[0])
	return &q, nil
}

func (r *quantityRepository) Upsert(ctx context.Context, q *domain.Quantity) error {
	return r.t.upsert(ctx, ledgerRow{PortfolioID: q.PortfolioID, AssetID: q.AssetID, Date: q.Date, Value: q.Quantity})
}

func (r *quantityRepository) EffectiveAt(ctx context.Context, portfolioID int64, date time.Time) ([]domain.Quantity, error) {
	query := `
		SELECT DISTINCT ON (asset_id) portfolio_id, asset_id, date, quantity
		FROM quantities
		WHERE portfolio_id = $1 AND date <= $2
		ORDER BY asset_id, date DESC
	`

	rows, err := r.t.query(ctx, query, portfolioID, domain.Day(date))
	if err != nil {
		return nil, err
	}

	out := make([]domain.Quantity, 0, len(rows))
	for _, row := range rows {
		out = append(out, toQuantity(row))
	}
	return out, nil
}

func (r *quantityRepository) CountAfter(ctx context.Context, portfolioID int64, date time.Time) (int, error) {
	query := `SELECT COUNT(*) FROM quantities WHERE portfolio_id = $1 AND date > $2`

	var count int
	if err := r.t.db.QueryRowContext(ctx, query, portfolioID, domain.Day(date)).Scan(&count); err != nil {
		return 0, mapError(err, "failed to count quantities after %s", domain.FormatDate(date))
	}
	return count, nil
}

func toQuantity(row ledgerRow) domain.Quantity {
	return domain.Quantity{PortfolioID: row.PortfolioID, AssetID: row.AssetID, Date: row.Date, Quantity: row.Value}
}

// snapshotRepository implements domain.SnapshotRepository
type snapshotRepository struct {
	t ledgerTable
}

// NewSnapshotRepository creates a new holding snapshot repository
func NewSnapshotRepository(db Querier) domain.SnapshotRepository {
	return &snapshotRepository{t: ledgerTable{db: db, table: "holding_snapshots", column: "quantity"}}
}

func (r *snapshotRepository) Upsert(ctx context.Context, s *domain.HoldingSnapshot) error {
	return r.t.upsert(ctx, ledgerRow{PortfolioID: s.PortfolioID, AssetID: s.AssetID, Date: s.Date, Value: s.Quantity})
}

func (r *snapshotRepository) ListOnDate(ctx context.Context, portfolioID int64, date time.Time) ([]domain.HoldingSnapshot, error) {
	rows, err := r.t.onDate(ctx, portfolioID, date)
	if err != nil {
		return nil, err
	}

	out := make([]domain.HoldingSnapshot, 0, len(rows))
	for _, row := range rows {
		out = append(out, domain.HoldingSnapshot{PortfolioID: row.PortfolioID, AssetID: row.AssetID, Date: row.Date, Quantity: row.Value})
	}
	return out, nil
}
