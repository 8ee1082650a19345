package postgres

import (
	"context"

	"github.com/simaogato/portfolio-valuation/internal/domain"
)

// UnitOfWork implements domain.UnitOfWork with one database transaction per call
type UnitOfWork struct {
	db *DB
}

// NewUnitOfWork creates a new unit of work
func NewUnitOfWork(db *DB) *UnitOfWork {
	return &UnitOfWork{db: db}
}

// Within takes a transaction-scoped advisory lock on the portfolio before running fn.
// The lock is released on commit or rollback.
func (u *UnitOfWork) Within(ctx context.Context, portfolioID int64, fn func(ctx context.Context, repos domain.Repositories) error) error {
	dbTx, err := u.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Internal(err, "failed to begin transaction")
	}
	defer dbTx.Rollback()

	if _, err := dbTx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, portfolioID); err != nil {
		return domain.Internal(err, "failed to lock portfolio %d", portfolioID)
	}

	if err := fn(ctx, Repositories(dbTx)); err != nil {
		return err
	}

	// Commit the transaction
	if err := dbTx.Commit(); err != nil {
		return domain.Internal(err, "failed to commit transaction")
	}

	return nil
}

var _ domain.UnitOfWork = (*UnitOfWork)(nil)
