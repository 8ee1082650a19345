package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/simaogato/portfolio-valuation/internal/domain"
)

// portfolioRepository implements domain.PortfolioRepository
type portfolioRepository struct {
	db Querier
}

// NewPortfolioRepository creates a new portfolio repository
func NewPortfolioRepository(db Querier) domain.PortfolioRepository {
	return &portfolioRepository{db: db}
}

func (r *portfolioRepository) GetByID(ctx context.Context, id int64) (*domain.Portfolio, error) {
	query := `SELECT id, user_id, name, created_at, currency FROM portfolios WHERE id = $1`

	var (
		p        domain.Portfolio
		currency string
	)
	err := r.db.QueryRowContext(ctx, query, id).Scan(&p.ID, &p.UserID, &p.Name, &p.CreatedAt, &currency)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound("portfolio %d not found", id)
		}
		return nil, mapError(err, "failed to get portfolio %d", id)
	}

	p.CreatedAt = domain.Day(p.CreatedAt)
	p.Currency = domain.Currency(currency)
	return &p, nil
}

func (r *portfolioRepository) Create(ctx context.Context, p *domain.Portfolio) error {
	query := `
		INSERT INTO portfolios (user_id, name, created_at, currency)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`

	createdAt := p.CreatedAt
	if createdAt.IsZero() {
		createdAt = domain.Day(time.Now())
	}

	err := r.db.QueryRowContext(ctx, query, p.UserID, p.Name, domain.Day(createdAt), string(p.Currency)).Scan(&p.ID)
	if err != nil {
		return mapError(err, "failed to create portfolio %q", p.Name)
	}
	p.CreatedAt = domain.Day(createdAt)
	return nil
}
