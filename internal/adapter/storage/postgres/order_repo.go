package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"payment-bridge/internal/core/domain"
	"payment-bridge/internal/core/ports"

	"github.com/jackc/pgx/v5"
)

var _ ports.OrderRepository = (*OrderRepo)(nil)

const orderColumns = `merchant_transaction_id, amount_minor_units, status, last_gateway_payload, created_at, updated_at`

// OrderRepo implements ports.OrderRepository. The last gateway payload is
// stored encrypted when an EncryptionService is supplied.
type OrderRepo struct {
	pool   Pool
	encSvc ports.EncryptionService
}

// NewOrderRepo creates a new OrderRepo. encSvc may be nil to store payloads in clear.
func NewOrderRepo(pool Pool, encSvc ports.EncryptionService) *OrderRepo {
	return &OrderRepo{pool: pool, encSvc: encSvc}
}

// Get fetches an order by merchant transaction id.
func (r *OrderRepo) Get(ctx context.Context, merchantTransactionID string) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE merchant_transaction_id = $1`
	return r.scanOrder(r.pool.QueryRow(ctx, query, merchantTransactionID))
}

// Insert records a new order; an existing id yields domain.ErrOrderExists.
func (r *OrderRepo) Insert(ctx context.Context, o *domain.Order) error {
	payload, err := r.sealPayload(o.LastGatewayPayload)
	if err != nil {
		return err
	}

	query := `INSERT INTO orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (merchant_transaction_id) DO NOTHING`

	tag, err := r.pool.Exec(ctx, query,
		o.MerchantTransactionID, o.AmountMinorUnits, string(o.Status),
		payload, o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrOrderExists
	}
	return nil
}

// Upsert stores the order, replacing any row with the same id.
func (r *OrderRepo) Upsert(ctx context.Context, o *domain.Order) error {
	payload, err := r.sealPayload(o.LastGatewayPayload)
	if err != nil {
		return err
	}

	query := `INSERT INTO orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (merchant_transaction_id) DO UPDATE SET
			amount_minor_units = EXCLUDED.amount_minor_units,
			status = EXCLUDED.status,
			last_gateway_payload = EXCLUDED.last_gateway_payload,
			created_at = EXCLUDED.created_at,
			updated_at = EXCLUDED.updated_at`

	if _, err := r.pool.Exec(ctx, query,
		o.MerchantTransactionID, o.AmountMinorUnits, string(o.Status),
		payload, o.CreatedAt, o.UpdatedAt,
	); err != nil {
		return fmt.Errorf("upsert order: %w", err)
	}
	return nil
}

// Update locks the order row for the duration of fn and writes it back only
// if fn reports a change.
func (r *OrderRepo) Update(ctx context.Context, merchantTransactionID string, fn func(*domain.Order) (bool, error)) (*domain.Order, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback(ctx)
		}
	}()

	query := `SELECT ` + orderColumns + ` FROM orders WHERE merchant_transaction_id = $1 FOR UPDATE`
	current, err := r.scanOrder(tx.QueryRow(ctx, query, merchantTransactionID))
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, nil
	}

	work := current.Clone()
	changed, err := fn(work)
	if err != nil {
		return nil, err
	}
	if !changed {
		if err := tx.Commit(ctx); err != nil {
			return nil, fmt.Errorf("commit tx: %w", err)
		}
		committed = true
		return current, nil
	}

	payload, err := r.sealPayload(work.LastGatewayPayload)
	if err != nil {
		return nil, err
	}
	if _, err := tx.Exec(ctx,
		`UPDATE orders SET status = $1, last_gateway_payload = $2, updated_at = $3 WHERE merchant_transaction_id = $4`,
		string(work.Status), payload, work.UpdatedAt, merchantTransactionID,
	); err != nil {
		return nil, fmt.Errorf("update order: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	committed = true
	work.MerchantTransactionID = merchantTransactionID
	return work, nil
}

func (r *OrderRepo) scanOrder(row pgx.Row) (*domain.Order, error) {
	var (
		o       domain.Order
		status  string
		payload *string
	)
	err := row.Scan(&o.MerchantTransactionID, &o.AmountMinorUnits, &status, &payload, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan order: %w", err)
	}
	o.Status = domain.OrderStatus(status)

	if o.LastGatewayPayload, err = r.openPayload(payload); err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *OrderRepo) sealPayload(raw json.RawMessage) (*string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	s := string(raw)
	if r.encSvc == nil {
		return &s, nil
	}
	enc, err := r.encSvc.Encrypt(s)
	if err != nil {
		return nil, fmt.Errorf("encrypt gateway payload: %w", err)
	}
	return &enc, nil
}

func (r *OrderRepo) openPayload(stored *string) (json.RawMessage, error) {
	if stored == nil || *stored == "" {
		return nil, nil
	}
	if r.encSvc == nil {
		return json.RawMessage(*stored), nil
	}
	plain, err := r.encSvc.Decrypt(*stored)
	if err != nil {
		return nil, fmt.Errorf("decrypt gateway payload: %w", err)
	}
	return json.RawMessage(plain), nil
}
