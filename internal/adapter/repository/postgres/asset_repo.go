package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"

	"github.com/simaogato/portfolio-valuation/internal/domain"
)

// assetRepository implements domain.AssetRepository
type assetRepository struct {
	db Querier
}

// NewAssetRepository creates a new asset repository
func NewAssetRepository(db Querier) domain.AssetRepository {
	return &assetRepository{db: db}
}

const assetColumns = `id, name, symbol, currency`

func scanAsset(row interface{ Scan(dest ...any) error }) (*domain.Asset, error) {
	var (
		asset    domain.Asset
		symbol   sql.NullString
		currency string
	)
	if err := row.Scan(&asset.ID, &asset.Name, &symbol, &currency); err != nil {
		return nil, err
	}
	asset.Symbol = symbol.String
	asset.Currency = domain.Currency(currency)
	return &asset, nil
}

func (r *assetRepository) GetByID(ctx context.Context, id int64) (*domain.Asset, error) {
	query := `SELECT ` + assetColumns + ` FROM assets WHERE id = $1`

	asset, err := scanAsset(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound("asset %d not found", id)
		}
		return nil, mapError(err, "failed to get asset %d", id)
	}
	return asset, nil
}

func (r *assetRepository) GetBySymbol(ctx context.Context, symbol string) (*domain.Asset, error) {
	query := `SELECT ` + assetColumns + ` FROM assets WHERE UPPER(symbol) = UPPER($1)`

	asset, err := scanAsset(r.db.QueryRowContext(ctx, query, symbol))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound("asset %q not found", symbol)
		}
		return nil, mapError(err, "failed to get asset %q", symbol)
	}
	return asset, nil
}

func (r *assetRepository) ListByIDs(ctx context.Context, ids []int64) ([]*domain.Asset, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := `SELECT ` + assetColumns + ` FROM assets WHERE id = ANY($1) ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, mapError(err, "failed to list assets")
	}
	defer rows.Close()

	var assets []*domain.Asset
	for rows.Next() {
		asset, err := scanAsset(rows)
		if err != nil {
			return nil, mapError(err, "failed to scan asset")
		}
		assets = append(assets, asset)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err, "failed to iterate assets")
	}
	return assets, nil
}

func (r *assetRepository) Create(ctx context.Context, asset *domain.Asset) error {
	query := `
		INSERT INTO assets (name, symbol, currency)
		VALUES ($1, $2, $3)
		RETURNING id
	`

	err := r.db.QueryRowContext(ctx, query, asset.Name, nullableString(asset.Symbol), string(asset.Currency)).Scan(&asset.ID)
	if err != nil {
		return mapError(err, "failed to create asset %q", asset.Name)
	}
	return nil
}
