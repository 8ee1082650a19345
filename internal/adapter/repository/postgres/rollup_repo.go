package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/simaogato/portfolio-valuation/internal/domain"
)

// amountRepository implements domain.AmountRepository
type amountRepository struct {
	t ledgerTable
}

// NewAmountRepository creates a new amount repository
func NewAmountRepository(db Querier) domain.AmountRepository {
	return &amountRepository{t: ledgerTable{db: db, table: "amounts", column: "amount"}}
}

func (r *amountRepository) Upsert(ctx context.Context, a *domain.Amount) error {
	return r.t.upsert(ctx, ledgerRow{PortfolioID: a.PortfolioID, AssetID: a.AssetID, Date: a.Date, Value: a.Amount})
}

func (r *amountRepository) ListOnDate(ctx context.Context, portfolioID int64, date time.Time) ([]domain.Amount, error) {
	rows, err := r.t.onDate(ctx, portfolioID, date)
	if err != nil {
		return nil, err
	}

	out := make([]domain.Amount, 0, len(rows))
	for _, row := range rows {
		out = append(out, domain.Amount{PortfolioID: row.PortfolioID, AssetID: row.AssetID, Date: row.Date, Amount: row.Value})
	}
	return out, nil
}

// weightRepository implements domain.WeightRepository
type weightRepository struct {
	t ledgerTable
}

// NewWeightRepository creates a new weight repository
func NewWeightRepository(db Querier) domain.WeightRepository {
	return &weightRepository{t: ledgerTable{db: db, table: "weights", column: "weight"}}
}

func (r *weightRepository) Upsert(ctx context.Context, w *domain.Weight) error {
	return r.t.upsert(ctx, ledgerRow{PortfolioID: w.PortfolioID, AssetID: w.AssetID, Date: w.Date, Value: w.Weight})
}

func (r *weightRepository) ListOnDate(ctx context.Context, portfolioID int64, date time.Time) ([]domain.Weight, error) {
	rows, err := r.t.onDate(ctx, portfolioID, date)
	if err != nil {
		return nil, err
	}
	return toWeights(rows), nil
}

// Inception reads the weights of the portfolio's earliest weight date
func (r *weightRepository) Inception(ctx context.Context, portfolioID int64) ([]domain.Weight, error) {
	query := `
		SELECT portfolio_id, asset_id, date, weight
		FROM weights
		WHERE portfolio_id = $1
		  AND date = (SELECT MIN(date) FROM weights WHERE portfolio_id = $1)
		ORDER BY asset_id
	`

	rows, err := r.t.query(ctx, query, portfolioID)
	if err != nil {
		return nil, err
	}
	return toWeights(rows), nil
}

func toWeights(rows []ledgerRow) []domain.Weight {
	out := make([]domain.Weight, 0, len(rows))
	for _, row := range rows {
		out = append(out, domain.Weight{PortfolioID: row.PortfolioID, AssetID: row.AssetID, Date: row.Date, Weight: row.Value})
	}
	return out
}

// portfolioValueRepository implements domain.PortfolioValueRepository
type portfolioValueRepository struct {
	db Querier
}

// NewPortfolioValueRepository creates a new portfolio value repository
func NewPortfolioValueRepository(db Querier) domain.PortfolioValueRepository {
	return &portfolioValueRepository{db: db}
}

func (r *portfolioValueRepository) Upsert(ctx context.Context, v *domain.PortfolioValue) error {
	query := `
		INSERT INTO portfolio_values (portfolio_id, date, value)
		VALUES ($1, $2, $3)
		ON CONFLICT (portfolio_id, date) DO UPDATE SET value = EXCLUDED.value
	`

	_, err := r.db.ExecContext(ctx, query, v.PortfolioID, domain.Day(v.Date), v.Value.String())
	if err != nil {
		return mapError(err, "failed to upsert portfolio value on %s", domain.FormatDate(v.Date))
	}
	return nil
}

func (r *portfolioValueRepository) Get(ctx context.Context, portfolioID int64, date time.Time) (*domain.PortfolioValue, error) {
	query := `SELECT portfolio_id, date, value FROM portfolio_values WHERE portfolio_id = $1 AND date = $2`

	v, err := scanPortfolioValue(r.db.QueryRowContext(ctx, query, portfolioID, domain.Day(date)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound("no portfolio value on %s", domain.FormatDate(date))
		}
		return nil, mapError(err, "failed to get portfolio value")
	}
	return v, nil
}

func (r *portfolioValueRepository) Latest(ctx context.Context, portfolioID int64) (*domain.PortfolioValue, error) {
	query := `
		SELECT portfolio_id, date, value
		FROM portfolio_values
		WHERE portfolio_id = $1
		ORDER BY date DESC
		LIMIT 1
	`

	v, err := scanPortfolioValue(r.db.QueryRowContext(ctx, query, portfolioID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound("portfolio %d has no recorded value", portfolioID)
		}
		return nil, mapError(err, "failed to get latest portfolio value")
	}
	return v, nil
}

func scanPortfolioValue(row *sql.Row) (*domain.PortfolioValue, error) {
	var (
		v     domain.PortfolioValue
		value string
	)
	if err := row.Scan(&v.PortfolioID, &v.Date, &value); err != nil {
		return nil, err
	}

	parsed, err := parseDecimal(value, "portfolio value")
	if err != nil {
		return nil, err
	}
	v.Value = parsed
	v.Date = domain.Day(v.Date)
	return &v, nil
}
