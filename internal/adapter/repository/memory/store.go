// Package memory is an in-process ledger used by tests and the memory storage driver.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/simaogato/portfolio-valuation/internal/domain"
)

type ledgerKey struct {
	portfolioID int64
	assetID     int64
	date        time.Time
}

type priceKey struct {
	assetID int64
	date    time.Time
}

type valueKey struct {
	portfolioID int64
	date        time.Time
}

type state struct {
	assets          map[int64]domain.Asset
	nextAssetID     int64
	portfolios      map[int64]domain.Portfolio
	nextPortfolioID int64
	prices          map[priceKey]domain.Price
	quantities      map[ledgerKey]domain.Quantity
	amounts         map[ledgerKey]domain.Amount
	weights         map[ledgerKey]domain.Weight
	snapshots       map[ledgerKey]domain.HoldingSnapshot
	values          map[valueKey]domain.PortfolioValue
	events          []domain.PortfolioEvent
	nextSeq         int64
}

func newState() *state {
	return &state{
		assets:     make(map[int64]domain.Asset),
		portfolios: make(map[int64]domain.Portfolio),
		prices:     make(map[priceKey]domain.Price),
		quantities: make(map[ledgerKey]domain.Quantity),
		amounts:    make(map[ledgerKey]domain.Amount),
		weights:    make(map[ledgerKey]domain.Weight),
		snapshots:  make(map[ledgerKey]domain.HoldingSnapshot),
		values:     make(map[valueKey]domain.PortfolioValue),
	}
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (st *state) clone() *state {
	events := make([]domain.PortfolioEvent, len(st.events))
	copy(events, st.events)
	return &state{
		assets:          cloneMap(st.assets),
		nextAssetID:     st.nextAssetID,
		portfolios:      cloneMap(st.portfolios),
		nextPortfolioID: st.nextPortfolioID,
		prices:          cloneMap(st.prices),
		quantities:      cloneMap(st.quantities),
		amounts:         cloneMap(st.amounts),
		weights:         cloneMap(st.weights),
		snapshots:       cloneMap(st.snapshots),
		values:          cloneMap(st.values),
		events:          events,
		nextSeq:         st.nextSeq,
	}
}

// Store holds every table in memory. It implements domain.UnitOfWork.
type Store struct {
	mu sync.RWMutex
	st *state
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{st: newState()}
}

// Repositories returns repositories that lock the store per call
func (s *Store) Repositories() domain.Repositories {
	return s.bind(false)
}

// Within runs fn while holding the store's write lock. Every write made by fn is
// discarded when fn returns an error.
func (s *Store) Within(ctx context.Context, portfolioID int64, fn func(ctx context.Context, repos domain.Repositories) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	backup := s.st.clone()
	if err := fn(ctx, s.bind(true)); err != nil {
		s.st = backup
		return err
	}
	return nil
}

func (s *Store) bind(inTx bool) domain.Repositories {
	b := &binding{store: s, inTx: inTx}
	return domain.Repositories{
		Assets:     &AssetRepository{b},
		Portfolios: &PortfolioRepository{b},
		Prices:     &PriceRepository{b},
		Quantities: &QuantityRepository{b},
		Amounts:    &AmountRepository{b},
		Weights:    &WeightRepository{b},
		Values:     &PortfolioValueRepository{b},
		Snapshots:  &SnapshotRepository{b},
		Events:     &EventRepository{b},
	}
}

// binding skips locking when the caller already holds the write lock inside Within
type binding struct {
	store *Store
	inTx  bool
}

func (b *binding) read(fn func(st *state) error) error {
	if !b.inTx {
		b.store.mu.RLock()
		defer b.store.mu.RUnlock()
	}
	return fn(b.store.st)
}

func (b *binding) write(fn func(st *state) error) error {
	if !b.inTx {
		b.store.mu.Lock()
		defer b.store.mu.Unlock()
	}
	return fn(b.store.st)
}
