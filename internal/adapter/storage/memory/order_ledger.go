package memory

import (
	"context"
	"errors"
	"sync"

	"payment-bridge/internal/core/domain"
	"payment-bridge/internal/core/ports"
)

var _ ports.OrderRepository = (*OrderLedger)(nil)

// OrderLedger is a process-local order store. Each id has its own lock, so
// writers of different orders never wait on each other. Orders are copied on
// the way in and out; callers never share memory with the store.
type OrderLedger struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

type entry struct {
	mu    sync.Mutex
	order *domain.Order
}

// NewOrderLedger creates an empty ledger.
func NewOrderLedger() *OrderLedger {
	return &OrderLedger{entries: make(map[string]*entry)}
}

func (l *OrderLedger) lookup(id string) *entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.entries[id]
}

// Get returns a copy of the order, or nil if the id is unknown.
func (l *OrderLedger) Get(ctx context.Context, merchantTransactionID string) (*domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e := l.lookup(merchantTransactionID)
	if e == nil {
		return nil, nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.order.Clone(), nil
}

// Insert stores a new order, failing with domain.ErrOrderExists if the id is taken.
func (l *OrderLedger) Insert(ctx context.Context, order *domain.Order) error {
	if err := validate(ctx, order); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.entries[order.MerchantTransactionID]; ok {
		return domain.ErrOrderExists
	}
	l.entries[order.MerchantTransactionID] = &entry{order: order.Clone()}
	return nil
}

// Upsert replaces whatever is stored under the order's id.
func (l *OrderLedger) Upsert(ctx context.Context, order *domain.Order) error {
	if err := validate(ctx, order); err != nil {
		return err
	}

	l.mu.Lock()
	e, ok := l.entries[order.MerchantTransactionID]
	if !ok {
		l.entries[order.MerchantTransactionID] = &entry{order: order.Clone()}
		l.mu.Unlock()
		return nil
	}
	l.mu.Unlock()

	e.mu.Lock()
	e.order = order.Clone()
	e.mu.Unlock()
	return nil
}

// Update applies fn to a working copy of the order under the order's lock and
// stores the copy only if fn reports a change.
func (l *OrderLedger) Update(ctx context.Context, merchantTransactionID string, fn func(order *domain.Order) (bool, error)) (*domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e := l.lookup(merchantTransactionID)
	if e == nil {
		return nil, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	work := e.order.Clone()
	changed, err := fn(work)
	if err != nil {
		return nil, err
	}
	if changed {
		work.MerchantTransactionID = merchantTransactionID
		e.order = work
	}
	return e.order.Clone(), nil
}

// Len returns the number of stored orders.
func (l *OrderLedger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

func validate(ctx context.Context, order *domain.Order) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if order == nil || order.MerchantTransactionID == "" {
		return errors.New("order must carry a merchant transaction id")
	}
	return nil
}
