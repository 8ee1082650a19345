package lock

import (
	"context"
	"sync"

	"github.com/simaogato/portfolio-valuation/internal/domain"
)

// LocalLocker serializes portfolio writers inside one process
type LocalLocker struct {
	mu    sync.Mutex
	slots map[int64]chan struct{}
}

// NewLocalLocker creates a new LocalLocker instance
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{slots: make(map[int64]chan struct{})}
}

func (l *LocalLocker) slot(portfolioID int64) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()

	ch, ok := l.slots[portfolioID]
	if !ok {
		ch = make(chan struct{}, 1)
		l.slots[portfolioID] = ch
	}
	return ch
}

// Lock blocks until the portfolio is free or ctx is done
func (l *LocalLocker) Lock(ctx context.Context, portfolioID int64) (func(), error) {
	ch := l.slot(portfolioID)
	select {
	case ch <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() { <-ch })
	}, nil
}

var _ domain.PortfolioLocker = (*LocalLocker)(nil)
