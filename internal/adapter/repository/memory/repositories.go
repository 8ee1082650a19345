package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/simaogato/portfolio-valuation/internal/domain"
)

// AssetRepository implements domain.AssetRepository
type AssetRepository struct{ b *binding }

func (r *AssetRepository) GetByID(ctx context.Context, id int64) (*domain.Asset, error) {
	var out *domain.Asset
	err := r.b.read(func(st *state) error {
		a, ok := st.assets[id]
		if !ok {
			return domain.NotFound("asset %d not found", id)
		}
		out = &a
		return nil
	})
	return out, err
}

func (r *AssetRepository) GetBySymbol(ctx context.Context, symbol string) (*domain.Asset, error) {
	var out *domain.Asset
	err := r.b.read(func(st *state) error {
		for _, a := range st.assets {
			if strings.EqualFold(a.Symbol, symbol) && a.Symbol != "" {
				a := a
				out = &a
				return nil
			}
		}
		return domain.NotFound("asset %q not found", symbol)
	})
	return out, err
}

func (r *AssetRepository) ListByIDs(ctx context.Context, ids []int64) ([]*domain.Asset, error) {
	var out []*domain.Asset
	err := r.b.read(func(st *state) error {
		for _, id := range ids {
			if a, ok := st.assets[id]; ok {
				a := a
				out = append(out, &a)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, err
}

func (r *AssetRepository) Create(ctx context.Context, asset *domain.Asset) error {
	return r.b.write(func(st *state) error {
		for _, a := range st.assets {
			if a.Name == asset.Name {
				return domain.InvalidState("asset named %q already exists", asset.Name)
			}
			if asset.Symbol != "" && strings.EqualFold(a.Symbol, asset.Symbol) {
				return domain.InvalidState("asset with symbol %q already exists", asset.Symbol)
			}
		}
		st.nextAssetID++
		asset.ID = st.nextAssetID
		st.assets[asset.ID] = *asset
		return nil
	})
}

// PortfolioRepository implements domain.PortfolioRepository
type PortfolioRepository struct{ b *binding }

func (r *PortfolioRepository) GetByID(ctx context.Context, id int64) (*domain.Portfolio, error) {
	var out *domain.Portfolio
	err := r.b.read(func(st *state) error {
		p, ok := st.portfolios[id]
		if !ok {
			return domain.NotFound("portfolio %d not found", id)
		}
		out = &p
		return nil
	})
	return out, err
}

func (r *PortfolioRepository) Create(ctx context.Context, portfolio *domain.Portfolio) error {
	return r.b.write(func(st *state) error {
		st.nextPortfolioID++
		portfolio.ID = st.nextPortfolioID
		portfolio.CreatedAt = domain.Day(portfolio.CreatedAt)
		st.portfolios[portfolio.ID] = *portfolio
		return nil
	})
}

// PriceRepository implements domain.PriceRepository
type PriceRepository struct{ b *binding }

func (r *PriceRepository) Add(ctx context.Context, price *domain.Price) error {
	return r.b.write(func(st *state) error {
		if _, ok := st.assets[price.AssetID]; !ok {
			return domain.NotFound("asset %d not found", price.AssetID)
		}
		key := priceKey{price.AssetID, domain.Day(price.Date)}
		if _, exists := st.prices[key]; exists {
			return domain.InvalidState("price for asset %d on %s already exists", price.AssetID, domain.FormatDate(key.date))
		}
		price.Date = key.date
		st.prices[key] = *price
		return nil
	})
}

func (r *PriceRepository) LatestAtOrBefore(ctx context.Context, assetID int64, date time.Time) (*domain.Price, error) {
	day := domain.Day(date)
	var out *domain.Price
	err := r.b.read(func(st *state) error {
		for k, p := range st.prices {
			if k.assetID != assetID || k.date.After(day) {
				continue
			}
			if out == nil || k.date.After(out.Date) {
				p := p
				out = &p
			}
		}
		if out == nil {
			return domain.NotFound("no price for asset %d on or before %s", assetID, domain.FormatDate(day))
		}
		return nil
	})
	return out, err
}

func (r *PriceRepository) ListRange(ctx context.Context, assetIDs []int64, start, end time.Time) ([]domain.Price, error) {
	start, end = domain.Day(start), domain.Day(end)
	wanted := idSet(assetIDs)
	var out []domain.Price
	err := r.b.read(func(st *state) error {
		for k, p := range st.prices {
			if _, ok := wanted[k.assetID]; !ok {
				continue
			}
			if k.date.Before(start) || k.date.After(end) {
				continue
			}
			out = append(out, p)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].AssetID < out[j].AssetID
	})
	return out, err
}

func (r *PriceRepository) ListOnDate(ctx context.Context, assetIDs []int64, date time.Time) ([]domain.Price, error) {
	return r.ListRange(ctx, assetIDs, date, date)
}

// QuantityRepository implements domain.QuantityRepository
type QuantityRepository struct{ b *binding }

func (r *QuantityRepository) Get(ctx context.Context, portfolioID, assetID int64, date time.Time) (*domain.Quantity, error) {
	key := ledgerKey{portfolioID, assetID, domain.Day(date)}
	var out *domain.Quantity
	err := r.b.read(func(st *state) error {
		q, ok := st.quantities[key]
		if !ok {
			return domain.NotFound("no quantity for asset %d on %s", assetID, domain.FormatDate(key.date))
		}
		out = &q
		return nil
	})
	return out, err
}

func (r *QuantityRepository) Upsert(ctx context.Context, q *domain.Quantity) error {
	return r.b.write(func(st *state) error {
		q.Date = domain.Day(q.Date)
		st.quantities[ledgerKey{q.PortfolioID, q.AssetID, q.Date}] = *q
		return nil
	})
}

func (r *QuantityRepository) EffectiveAt(ctx context.Context, portfolioID int64, date time.Time) ([]domain.Quantity, error) {
	day := domain.Day(date)
	latest := make(map[int64]domain.Quantity)
	err := r.b.read(func(st *state) error {
		for k, q := range st.quantities {
			if k.portfolioID != portfolioID || k.date.After(day) {
				continue
			}
			if cur, ok := latest[k.assetID]; !ok || k.date.After(cur.Date) {
				latest[k.assetID] = q
			}
		}
		return nil
	})
	out := make([]domain.Quantity, 0, len(latest))
	for _, q := range latest {
		out = append(out, q)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AssetID < out[j].AssetID })
	return out, err
}

func (r *QuantityRepository) CountAfter(ctx context.Context, portfolioID int64, date time.Time) (int, error) {
	day := domain.Day(date)
	count := 0
	err := r.b.read(func(st *state) error {
		for k := range st.quantities {
			if k.portfolioID == portfolioID && k.date.After(day) {
				count++
			}
		}
		return nil
	})
	return count, err
}

// AmountRepository implements domain.AmountRepository
type AmountRepository struct{ b *binding }

func (r *AmountRepository) Upsert(ctx context.Context, a *domain.Amount) error {
	return r.b.write(func(st *state) error {
		a.Date = domain.Day(a.Date)
		st.amounts[ledgerKey{a.PortfolioID, a.AssetID, a.Date}] = *a
		return nil
	})
}

func (r *AmountRepository) ListOnDate(ctx context.Context, portfolioID int64, date time.Time) ([]domain.Amount, error) {
	day := domain.Day(date)
	var out []domain.Amount
	err := r.b.read(func(st *state) error {
		for k, a := range st.amounts {
			if k.portfolioID == portfolioID && k.date.Equal(day) {
				out = append(out, a)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].AssetID < out[j].AssetID })
	return out, err
}

// WeightRepository implements domain.WeightRepository
type WeightRepository struct{ b *binding }

func (r *WeightRepository) Upsert(ctx context.Context, w *domain.Weight) error {
	return r.b.write(func(st *state) error {
		w.Date = domain.Day(w.Date)
		st.weights[ledgerKey{w.PortfolioID, w.AssetID, w.Date}] = *w
		return nil
	})
}

func (r *WeightRepository) ListOnDate(ctx context.Context, portfolioID int64, date time.Time) ([]domain.Weight, error) {
	day := domain.Day(date)
	var out []domain.Weight
	err := r.b.read(func(st *state) error {
		out = weightsOn(st, portfolioID, day)
		return nil
	})
	return out, err
}

func (r *WeightRepository) Inception(ctx context.Context, portfolioID int64) ([]domain.Weight, error) {
	var out []domain.Weight
	err := r.b.read(func(st *state) error {
		var earliest time.Time
		for k := range st.weights {
			if k.portfolioID != portfolioID {
				continue
			}
			if earliest.IsZero() || k.date.Before(earliest) {
				earliest = k.date
			}
		}
		if earliest.IsZero() {
			return nil
		}
		out = weightsOn(st, portfolioID, earliest)
		return nil
	})
	return out, err
}

func weightsOn(st *state, portfolioID int64, day time.Time) []domain.Weight {
	var out []domain.Weight
	for k, w := range st.weights {
		if k.portfolioID == portfolioID && k.date.Equal(day) {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AssetID < out[j].AssetID })
	return out
}

// PortfolioValueRepository implements domain.PortfolioValueRepository
type PortfolioValueRepository struct{ b *binding }

func (r *PortfolioValueRepository) Upsert(ctx context.Context, v *domain.PortfolioValue) error {
	return r.b.write(func(st *state) error {
		v.Date = domain.Day(v.Date)
		st.values[valueKey{v.PortfolioID, v.Date}] = *v
		return nil
	})
}

func (r *PortfolioValueRepository) Get(ctx context.Context, portfolioID int64, date time.Time) (*domain.PortfolioValue, error) {
	key := valueKey{portfolioID, domain.Day(date)}
	var out *domain.PortfolioValue
	err := r.b.read(func(st *state) error {
		v, ok := st.values[key]
		if !ok {
			return domain.NotFound("no portfolio value on %s", domain.FormatDate(key.date))
		}
		out = &v
		return nil
	})
	return out, err
}

func (r *PortfolioValueRepository) Latest(ctx context.Context, portfolioID int64) (*domain.PortfolioValue, error) {
	var out *domain.PortfolioValue
	err := r.b.read(func(st *state) error {
		for k, v := range st.values {
			if k.portfolioID != portfolioID {
				continue
			}
			if out == nil || k.date.After(out.Date) {
				v := v
				out = &v
			}
		}
		if out == nil {
			return domain.NotFound("portfolio %d has no recorded value", portfolioID)
		}
		return nil
	})
	return out, err
}

// SnapshotRepository implements domain.SnapshotRepository
type SnapshotRepository struct{ b *binding }

func (r *SnapshotRepository) Upsert(ctx context.Context, s *domain.HoldingSnapshot) error {
	return r.b.write(func(st *state) error {
		s.Date = domain.Day(s.Date)
		st.snapshots[ledgerKey{s.PortfolioID, s.AssetID, s.Date}] = *s
		return nil
	})
}

func (r *SnapshotRepository) ListOnDate(ctx context.Context, portfolioID int64, date time.Time) ([]domain.HoldingSnapshot, error) {
	day := domain.Day(date)
	var out []domain.HoldingSnapshot
	err := r.b.read(func(st *state) error {
		for k, s := range st.snapshots {
			if k.portfolioID == portfolioID && k.date.Equal(day) {
				out = append(out, s)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].AssetID < out[j].AssetID })
	return out, err
}

// EventRepository implements domain.EventRepository
type EventRepository struct{ b *binding }

func (r *EventRepository) Append(ctx context.Context, event *domain.PortfolioEvent) error {
	return r.b.write(func(st *state) error {
		if _, ok := st.portfolios[event.PortfolioID]; !ok {
			return domain.NotFound("portfolio %d not found", event.PortfolioID)
		}
		if event.ID == uuid.Nil {
			event.ID = uuid.New()
		}
		st.nextSeq++
		event.Seq = st.nextSeq
		event.Date = domain.Day(event.Date)
		st.events = append(st.events, *event)
		return nil
	})
}

func (r *EventRepository) ListBetween(ctx context.Context, portfolioID int64, from, to time.Time) ([]domain.PortfolioEvent, error) {
	from, to = domain.Day(from), domain.Day(to)
	var out []domain.PortfolioEvent
	err := r.b.read(func(st *state) error {
		for _, ev := range st.events {
			if ev.PortfolioID != portfolioID || ev.Date.Before(from) || ev.Date.After(to) {
				continue
			}
			out = append(out, ev)
		}
		return nil
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].Before(&out[j]) })
	return out, err
}

func idSet(ids []int64) map[int64]struct{} {
	set := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

var (
	_ domain.AssetRepository          = (*AssetRepository)(nil)
	_ domain.PortfolioRepository      = (*PortfolioRepository)(nil)
	_ domain.PriceRepository          = (*PriceRepository)(nil)
	_ domain.QuantityRepository       = (*QuantityRepository)(nil)
	_ domain.AmountRepository         = (*AmountRepository)(nil)
	_ domain.WeightRepository         = (*WeightRepository)(nil)
	_ domain.PortfolioValueRepository = (*PortfolioValueRepository)(nil)
	_ domain.SnapshotRepository       = (*SnapshotRepository)(nil)
	_ domain.EventRepository          = (*EventRepository)(nil)
	_ domain.UnitOfWork               = (*Store)(nil)
)
