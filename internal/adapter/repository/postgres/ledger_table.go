package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/simaogato/portfolio-valuation/internal/domain"
)

// ledgerRow is the shape shared by quantities, amounts, weights and holding_snapshots
type ledgerRow struct {
	PortfolioID int64
	AssetID     int64
	Date        time.Time
	Value       decimal.Decimal
}

// ledgerTable reads and writes one of the (portfolio, asset, date) keyed tables.
// Table and column names are constants of this package, never user input.
type ledgerTable struct {
	db     Querier
	table  string
	column string
}

func (t ledgerTable) upsert(ctx context.Context, row ledgerRow) error {
	query := fmt.Sprintf(`
		INSERT INTO %[1]s (portfolio_id, asset_id, date, %[2]s)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (portfolio_id, asset_id, date) DO UPDATE SET %[2]s = EXCLUDED.%[2]s
	`, t.table, t.column)

	_, err := t.db.ExecContext(ctx, query, row.PortfolioID, row.AssetID, domain.Day(row.Date), row.Value.String())
	if err != nil {
		return mapError(err, "failed to upsert %s for asset %d on %s", t.column, row.AssetID, domain.FormatDate(row.Date))
	}
	return nil
}

func (t ledgerTable) onDate(ctx context.Context, portfolioID int64, date time.Time) ([]ledgerRow, error) {
	query := fmt.Sprintf(`
		SELECT portfolio_id, asset_id, date, %[2]s
		FROM %[1]s
		WHERE portfolio_id = $1 AND date = $2
		ORDER BY asset_id
	`, t.table, t.column)

	return t.query(ctx, query, portfolioID, domain.Day(date))
}

func (t ledgerTable) query(ctx context.Context, query string, args ...any) ([]ledgerRow, error) {
	rows, err := t.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err, "failed to query %s", t.table)
	}
	defer rows.Close()

	var out []ledgerRow
	for rows.Next() {
		var (
			row   ledgerRow
			value string
		)
		if err := rows.Scan(&row.PortfolioID, &row.AssetID, &row.Date, &value); err != nil {
			return nil, mapError(err, "failed to scan %s", t.table)
		}
		if row.Value, err = parseDecimal(value, t.column); err != nil {
			return nil, err
		}
		row.Date = domain.Day(row.Date)
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err, "failed to iterate %s", t.table)
	}
	return out, nil
}
