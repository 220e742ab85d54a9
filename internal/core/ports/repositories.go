package ports

import (
	"context"

	"payment-bridge/internal/core/domain"
)

//go:generate mockgen -source=repositories.go -destination=mocks/mock_repositories.go -package=mocks

// OrderRepository is the order ledger. Get returns (nil, nil) when the id is unknown.
type OrderRepository interface {
	Get(ctx context.Context, merchantTransactionID string) (*domain.Order, error)
	// Insert records a new order and fails with domain.ErrOrderExists if the id is taken.
	Insert(ctx context.Context, order *domain.Order) error
	// Upsert overwrites the order stored under the same id, or creates it.
	Upsert(ctx context.Context, order *domain.Order) error
	// Update runs fn against the current order while holding that order's lock.
	// fn returns false to leave the stored order unchanged. Update returns the
	// order as stored afterwards, or (nil, nil) if the id is unknown.
	Update(ctx context.Context, merchantTransactionID string, fn func(order *domain.Order) (bool, error)) (*domain.Order, error)
}

// AuditRepository defines persistence for audit logs.
type AuditRepository interface {
	Create(ctx context.Context, log *domain.AuditLog) error
}
