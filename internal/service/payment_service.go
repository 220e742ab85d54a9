package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"payment-bridge/internal/core/domain"
	"payment-bridge/internal/core/ports"
	"payment-bridge/pkg/apperror"
	"payment-bridge/pkg/logger"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

const (
	idempotencyTTL = 24 * time.Hour
	createScope    = "create"

	// DefaultCreateReservationTTL bounds how long an interrupted creation keeps
	// its merchant transaction id reserved.
	DefaultCreateReservationTTL = 10 * time.Minute
)

// PaymentServiceImpl implements ports.PaymentService.
type PaymentServiceImpl struct {
	ledger     ports.OrderRepository
	gateway    ports.GatewayClient
	reconciler ports.Reconciler
	idempCache ports.IdempotencyCache
	log        zerolog.Logger

	// creating collapses concurrent creations of one id within this process;
	// reservations does the same across instances.
	creating       singleflight.Group
	reservations   ports.NonceStore
	reservationTTL time.Duration

	now         func() time.Time
	newRefundID func() string
}

// PaymentOption configures optional PaymentServiceImpl behaviour.
type PaymentOption func(*PaymentServiceImpl)

// WithCreateReservation reserves each merchant transaction id in store before
// the gateway is asked to create it, so only one instance creates a given id.
func WithCreateReservation(store ports.NonceStore, ttl time.Duration) PaymentOption {
	return func(s *PaymentServiceImpl) {
		s.reservations = store
		s.reservationTTL = ttl
	}
}

// NewPaymentService creates a new PaymentServiceImpl. idempCache may be nil.
func NewPaymentService(
	ledger ports.OrderRepository,
	gateway ports.GatewayClient,
	reconciler ports.Reconciler,
	idempCache ports.IdempotencyCache,
	log zerolog.Logger,
	opts ...PaymentOption,
) *PaymentServiceImpl {
	s := &PaymentServiceImpl{
		ledger:         ledger,
		gateway:        gateway,
		reconciler:     reconciler,
		idempCache:     idempCache,
		log:            logger.Component(log, "payments"),
		reservationTTL: DefaultCreateReservationTTL,
		now:            time.Now,
		newRefundID:    newRefundID,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreatePayment asks the gateway to start a payment and records the order as
// PENDING once the gateway accepts it. Nothing is recorded on failure.
func (s *PaymentServiceImpl) CreatePayment(ctx context.Context, req ports.CreatePaymentRequest) (*ports.CreatePaymentResult, error) {
	id := strings.TrimSpace(req.MerchantTransactionID)
	if err := validateTransactionID(id); err != nil {
		return nil, err
	}
	amount := domain.ToMinorUnits(req.Amount)
	if req.Amount <= 0 || amount <= 0 {
		return nil, apperror.ErrInvalidAmount()
	}

	idempKey := domain.BuildCreateIdempotencyKey(id)
	if cached := s.cachedResult(ctx, idempKey); cached != nil {
		return replayFor(cached, amount)
	}

	// Callers joining an in-flight creation of the same id share its outcome
	// and see it as a replay.
	leader := false
	v, err, _ := s.creating.Do(id, func() (any, error) {
		leader = true
		return s.create(ctx, id, amount, req, idempKey)
	})
	if err != nil {
		return nil, err
	}
	result := v.(*ports.CreatePaymentResult)
	if leader && !result.Replayed {
		return result, nil
	}
	return replayFor(result, amount)
}

func (s *PaymentServiceImpl) create(ctx context.Context, id string, amount int64, req ports.CreatePaymentRequest, idempKey string) (*ports.CreatePaymentResult, error) {
	existing, err := s.ledger.Get(ctx, id)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("load order: %w", err))
	}
	if existing != nil {
		return nil, apperror.ErrDuplicateOrder()
	}

	if !s.reserve(ctx, id) {
		// Another instance holds the id. It may have finished meanwhile.
		if cached := s.cachedResult(ctx, idempKey); cached != nil {
			return cached, nil
		}
		return nil, apperror.ErrDuplicateOrder()
	}

	resp, err := s.gateway.CreatePayment(ctx, domain.PaymentIntent{
		MerchantTransactionID: id,
		MerchantUserID:        req.MerchantUserID,
		AmountMinorUnits:      amount,
		RedirectURL:           req.RedirectURL,
		CallbackURL:           req.CallbackURL,
	})
	if err != nil {
		s.release(ctx, id)
		s.log.Error().Err(err).Str("order_id", id).Msg("gateway rejected payment creation")
		return nil, toAppError(err)
	}

	now := s.now().UTC()
	order := &domain.Order{
		MerchantTransactionID: id,
		AmountMinorUnits:      amount,
		Status:                domain.OrderStatusPending,
		CreatedAt:             now,
		UpdatedAt:             now,
		LastGatewayPayload:    resp.Raw,
	}
	if err := s.ledger.Insert(ctx, order); err != nil {
		if errors.Is(err, domain.ErrOrderExists) {
			return nil, apperror.ErrDuplicateOrder()
		}
		s.release(ctx, id)
		s.log.Error().Err(err).Str("order_id", id).Msg("gateway accepted payment but order could not be recorded")
		return nil, apperror.ErrDatabaseError(fmt.Errorf("record order: %w", err))
	}

	result := &ports.CreatePaymentResult{
		Order:       order,
		RedirectURL: resp.RedirectURL,
		Gateway:     resp,
	}
	s.cacheResult(ctx, idempKey, result)

	s.log.Info().
		Str("order_id", id).
		Int64("amount", amount).
		Bool("has_redirect", resp.RedirectURL != nil).
		Msg("payment created")

	return result, nil
}

// CheckStatus queries the gateway and reconciles the ledger. An order unknown
// to the ledger yields a NOT_FOUND outcome rather than an error.
func (s *PaymentServiceImpl) CheckStatus(ctx context.Context, merchantTransactionID string) (*domain.ReconcileResult, error) {
	if err := validateTransactionID(merchantTransactionID); err != nil {
		return nil, err
	}
	res, err := s.reconciler.Reconcile(ctx, merchantTransactionID)
	if err != nil {
		return nil, toAppError(err)
	}
	return res, nil
}

// Refund asks the gateway to refund a settled order. A nil amount refunds in full.
func (s *PaymentServiceImpl) Refund(ctx context.Context, req ports.RefundRequest) (*ports.RefundResult, error) {
	order, err := s.ledger.Get(ctx, req.MerchantTransactionID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("load order: %w", err))
	}
	if order == nil {
		return nil, toAppError(&domain.NotFoundError{MerchantTransactionID: req.MerchantTransactionID})
	}
	if !order.IsRefundable() {
		return nil, apperror.ErrInvalidRefund()
	}

	amount := order.AmountMinorUnits
	if req.Amount != nil {
		amount = domain.ToMinorUnits(*req.Amount)
		if *req.Amount <= 0 || amount <= 0 {
			return nil, apperror.ErrInvalidAmount()
		}
		if amount > order.AmountMinorUnits {
			return nil, apperror.ErrRefundAmountExceedsOriginal()
		}
	}

	refundID := s.newRefundID()
	resp, err := s.gateway.InitiateRefund(ctx, domain.RefundIntent{
		RefundID:                      refundID,
		OriginalMerchantTransactionID: order.MerchantTransactionID,
		AmountMinorUnits:              amount,
	})
	if err != nil {
		s.log.Error().Err(err).Str("order_id", order.MerchantTransactionID).Str("refund_id", refundID).Msg("gateway rejected refund")
		return nil, toAppError(err)
	}

	s.log.Info().
		Str("order_id", order.MerchantTransactionID).
		Str("refund_id", refundID).
		Int64("amount", amount).
		Str("requested_by", req.RequestedBy).
		Str("reason", req.Reason).
		Msg("refund initiated")

	return &ports.RefundResult{
		RefundID:              refundID,
		MerchantTransactionID: order.MerchantTransactionID,
		AmountMinorUnits:      amount,
		Gateway:               resp,
	}, nil
}

// GetOrder returns the ledger view of an order.
func (s *PaymentServiceImpl) GetOrder(ctx context.Context, merchantTransactionID string) (*domain.Order, error) {
	order, err := s.ledger.Get(ctx, merchantTransactionID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("load order: %w", err))
	}
	if order == nil {
		return nil, apperror.ErrNotFound("order")
	}
	return order, nil
}

// cachedResult returns a previously recorded creation result. Cache failures
// fall through to the ledger check.
func (s *PaymentServiceImpl) cachedResult(ctx context.Context, key string) *ports.CreatePaymentResult {
	if s.idempCache == nil {
		return nil
	}
	cached, err := s.idempCache.Get(ctx, key)
	if err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("redis idempotency check failed, falling through to ledger")
		return nil
	}
	if cached == nil {
		return nil
	}

	var result ports.CreatePaymentResult
	if err := json.Unmarshal(cached, &result); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("discarding unreadable idempotency entry")
		return nil
	}
	result.Replayed = true
	return &result
}

// reserve claims id for creation. Store failures are logged and the creation
// proceeds, leaving the ledger's unique id as the last guard.
func (s *PaymentServiceImpl) reserve(ctx context.Context, id string) bool {
	if s.reservations == nil {
		return true
	}
	ok, err := s.reservations.CheckAndSet(ctx, createScope, id, s.reservationTTL)
	if err != nil {
		s.log.Warn().Err(err).Str("order_id", id).Msg("create reservation failed, proceeding without it")
		return true
	}
	return ok
}

func (s *PaymentServiceImpl) release(ctx context.Context, id string) {
	if s.reservations == nil {
		return
	}
	if err := s.reservations.Release(ctx, createScope, id); err != nil {
		s.log.Warn().Err(err).Str("order_id", id).Msg("failed to release create reservation")
	}
}

// replayFor returns a replayed copy of an earlier creation, or PAY_003 when the
// amount differs from the one originally created.
func replayFor(prev *ports.CreatePaymentResult, amount int64) (*ports.CreatePaymentResult, error) {
	if prev.Order == nil || prev.Order.AmountMinorUnits != amount {
		return nil, apperror.ErrDuplicateOrder()
	}
	cp := *prev
	cp.Order = prev.Order.Clone()
	cp.Replayed = true
	return &cp, nil
}

func (s *PaymentServiceImpl) cacheResult(ctx context.Context, key string, result *ports.CreatePaymentResult) {
	if s.idempCache == nil {
		return
	}
	respJSON, err := json.Marshal(result)
	if err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("failed to encode idempotency entry")
		return
	}
	if err := s.idempCache.Set(ctx, key, respJSON, idempotencyTTL); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("failed to cache idempotency in redis")
	}
}

func validateTransactionID(id string) *apperror.AppError {
	if id == "" {
		return apperror.Validation("merchant_transaction_id is required")
	}
	if len(id) > domain.MaxMerchantTransactionIDLen {
		return apperror.Validation(fmt.Sprintf("merchant_transaction_id must be at most %d characters", domain.MaxMerchantTransactionIDLen))
	}
	return nil
}

// newRefundID returns a gateway-safe refund id: "R" followed by 32 hex digits.
func newRefundID() string {
	return "R" + strings.ReplaceAll(uuid.NewString(), "-", "")
}
