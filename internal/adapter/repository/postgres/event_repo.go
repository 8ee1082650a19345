package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/simaogato/portfolio-valuation/internal/domain"
)

// eventRepository implements domain.EventRepository
type eventRepository struct {
	db Querier
}

// NewEventRepository creates a new event log repository
func NewEventRepository(db Querier) domain.EventRepository {
	return &eventRepository{db: db}
}

func (r *eventRepository) Append(ctx context.Context, event *domain.PortfolioEvent) error {
	query := `
		INSERT INTO portfolio_events (id, portfolio_id, type, asset_id, amount, price, date, currency)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING seq
	`

	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	event.Date = domain.Day(event.Date)

	var assetID sql.NullInt64
	if event.AssetID != nil {
		assetID = sql.NullInt64{Int64: *event.AssetID, Valid: true}
	}
	var price sql.NullString
	if event.Price.Valid {
		price = sql.NullString{String: event.Price.Decimal.String(), Valid: true}
	}

	err := r.db.QueryRowContext(ctx, query,
		event.ID,
		event.PortfolioID,
		string(event.Type),
		assetID,
		event.Amount.String(),
		price,
		event.Date,
		string(event.Currency),
	).Scan(&event.Seq)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqForeignKeyViolation && pqErr.Constraint == "portfolio_events_portfolio_id_fkey" {
			return domain.NotFound("portfolio %d not found", event.PortfolioID)
		}
		return mapError(err, "failed to append %s event", event.Type)
	}
	return nil
}

func (r *eventRepository) ListBetween(ctx context.Context, portfolioID int64, from, to time.Time) ([]domain.PortfolioEvent, error) {
	query := `
		SELECT id, seq, portfolio_id, type, asset_id, amount, price, date, currency
		FROM portfolio_events
		WHERE portfolio_id = $1 AND date BETWEEN $2 AND $3
		ORDER BY date, seq
	`

	rows, err := r.db.QueryContext(ctx, query, portfolioID, domain.Day(from), domain.Day(to))
	if err != nil {
		return nil, mapError(err, "failed to list events")
	}
	defer rows.Close()

	var events []domain.PortfolioEvent
	for rows.Next() {
		var (
			ev        domain.PortfolioEvent
			eventType string
			currency  string
			assetID   sql.NullInt64
			amount    string
			price     sql.NullString
		)
		if err := rows.Scan(&ev.ID, &ev.Seq, &ev.PortfolioID, &eventType, &assetID, &amount, &price, &ev.Date, &currency); err != nil {
			return nil, mapError(err, "failed to scan event")
		}

		ev.Type = domain.EventType(eventType)
		ev.Currency = domain.Currency(currency)
		ev.Date = domain.Day(ev.Date)
		if assetID.Valid {
			id := assetID.Int64
			ev.AssetID = &id
		}
		if ev.Amount, err = parseDecimal(amount, "event amount"); err != nil {
			return nil, err
		}
		if price.Valid {
			p, err := parseDecimal(price.String, "event price")
			if err != nil {
				return nil, err
			}
			ev.Price = decimal.NullDecimal{Decimal: p, Valid: true}
		}

		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err, "failed to iterate events")
	}
	return events, nil
}

var (
	_ domain.AssetRepository          = (*assetRepository)(nil)
	_ domain.PortfolioRepository      = (*portfolioRepository)(nil)
	_ domain.PriceRepository          = (*priceRepository)(nil)
	_ domain.QuantityRepository       = (*quantityRepository)(nil)
	_ domain.AmountRepository         = (*amountRepository)(nil)
	_ domain.WeightRepository         = (*weightRepository)(nil)
	_ domain.PortfolioValueRepository = (*portfolioValueRepository)(nil)
	_ domain.SnapshotRepository       = (*snapshotRepository)(nil)
	_ domain.EventRepository          = (*eventRepository)(nil)
)
