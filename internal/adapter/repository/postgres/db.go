package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq" // PostgreSQL driver
	"github.com/shopspring/decimal"

	"github.com/simaogato/portfolio-valuation/internal/domain"
)

//go:embed schema.sql
var schema string

// DB wraps the database connection
type DB struct {
	*sql.DB
}

// Querier is satisfied by both *DB and *sql.Tx so repositories run inside or outside a transaction
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// NewDB creates a new database connection
// connectionString should be in the format: "host=localhost port=5432 user=postgres password=postgres dbname=portfolio sslmode=disable"
func NewDB(connectionString string) (*DB, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{DB: db}, nil
}

// Migrate creates the tables when they do not exist
func (db *DB) Migrate(ctx context.Context) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.DB.Close()
}

// Repositories returns every repository bound to q
func Repositories(q Querier) domain.Repositories {
	return domain.Repositories{
		Assets:     NewAssetRepository(q),
		Portfolios: NewPortfolioRepository(q),
		Prices:     NewPriceRepository(q),
		Quantities: NewQuantityRepository(q),
		Amounts:    NewAmountRepository(q),
		Weights:    NewWeightRepository(q),
		Values:     NewPortfolioValueRepository(q),
		Snapshots:  NewSnapshotRepository(q),
		Events:     NewEventRepository(q),
	}
}

const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
	pqCheckViolation      = "23514"
)

// mapError turns driver errors into domain errors
func mapError(err error, format string, args ...any) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		msg := fmt.Sprintf(format, args...)
		switch pqErr.Code {
		case pqUniqueViolation:
			return domain.InvalidState("%s: already exists (%s)", msg, pqErr.Constraint)
		case pqForeignKeyViolation:
			return domain.NotFound("%s: referenced row does not exist (%s)", msg, pqErr.Constraint)
		case pqCheckViolation:
			return domain.InvalidInput("%s: value rejected (%s)", msg, pqErr.Constraint)
		}
	}
	return domain.Internal(err, format, args...)
}

func parseDecimal(s, field string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, domain.Internal(err, "failed to parse %s", field)
	}
	return d, nil
}

func nullableString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
