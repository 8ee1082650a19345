package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"

	"github.com/simaogato/portfolio-valuation/internal/domain"
)

// priceRepository implements domain.PriceRepository
type priceRepository struct {
	db Querier
}

// NewPriceRepository creates a new price repository
func NewPriceRepository(db Querier) domain.PriceRepository {
	return &priceRepository{db: db}
}

func (r *priceRepository) Add(ctx context.Context, price *domain.Price) error {
	query := `INSERT INTO prices (asset_id, date, price) VALUES ($1, $2, $3)`

	date := domain.Day(price.Date)
	_, err := r.db.ExecContext(ctx, query, price.AssetID, date, price.Price.String())
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) {
			switch pqErr.Code {
			case pqUniqueViolation:
				return domain.InvalidState("price for asset %d on %s already exists", price.AssetID, domain.FormatDate(date))
			case pqForeignKeyViolation:
				return domain.NotFound("asset %d not found", price.AssetID)
			}
		}
		return mapError(err, "failed to add price for asset %d", price.AssetID)
	}

	price.Date = date
	return nil
}

func (r *priceRepository) LatestAtOrBefore(ctx context.Context, assetID int64, date time.Time) (*domain.Price, error) {
	query := `
		SELECT asset_id, date, price
		FROM prices
		WHERE asset_id = $1 AND date <= $2
		ORDER BY date DESC
		LIMIT 1
	`

	price, err := scanPrice(r.db.QueryRowContext(ctx, query, assetID, domain.Day(date)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound("no price for asset %d on or before %s", assetID, domain.FormatDate(date))
		}
		return nil, mapError(err, "failed to get price for asset %d", assetID)
	}
	return price, nil
}

func (r *priceRepository) ListRange(ctx context.Context, assetIDs []int64, start, end time.Time) ([]domain.Price, error) {
	if len(assetIDs) == 0 {
		return nil, nil
	}

	query := `
		SELECT asset_id, date, price
		FROM prices
		WHERE asset_id = ANY($1) AND date BETWEEN $2 AND $3
		ORDER BY date, asset_id
	`

	return r.list(ctx, query, pq.Array(assetIDs), domain.Day(start), domain.Day(end))
}

func (r *priceRepository) ListOnDate(ctx context.Context, assetIDs []int64, date time.Time) ([]domain.Price, error) {
	if len(assetIDs) == 0 {
		return nil, nil
	}

	query := `
		SELECT asset_id, date, price
		FROM prices
		WHERE asset_id = ANY($1) AND date = $2
		ORDER BY asset_id
	`

	return r.list(ctx, query, pq.Array(assetIDs), domain.Day(date))
}

func (r *priceRepository) list(ctx context.Context, query string, args ...any) ([]domain.Price, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err, "failed to list prices")
	}
	defer rows.Close()

	var prices []domain.Price
	for rows.Next() {
		price, err := scanPrice(rows)
		if err != nil {
			return nil, mapError(err, "failed to scan price")
		}
		prices = append(prices, *price)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err, "failed to iterate prices")
	}
	return prices, nil
}

func scanPrice(row interface{ Scan(dest ...any) error }) (*domain.Price, error) {
	var (
		price    domain.Price
		priceStr string
	)
	if err := row.Scan(&price.AssetID, &price.Date, &priceStr); err != nil {
		return nil, err
	}

	value, err := parseDecimal(priceStr, "price")
	if err != nil {
		return nil, err
	}
	price.Price = value
	price.Date = domain.Day(price.Date)
	return &price, nil
}
