package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"payment-bridge/internal/core/domain"
	"payment-bridge/internal/core/ports"
	"payment-bridge/pkg/logger"

	"github.com/rs/zerolog"
)

const webhookNonceScope = "webhook"

// ReconciliationEngine implements ports.Reconciler. It is the only component
// that moves an order's status after creation, and it never moves a terminal
// order to a different status.
type ReconciliationEngine struct {
	ledger        ports.OrderRepository
	gateway       ports.GatewayClient
	sigSvc        ports.SignatureService
	webhookSecret string

	nonces    ports.NonceStore
	replayTTL time.Duration
	audit     ports.AuditService
	notifier  ports.StatusNotifier

	now func() time.Time
	log zerolog.Logger
}

// ReconcilerOption customises a ReconciliationEngine.
type ReconcilerOption func(*ReconciliationEngine)

// WithReplayProtection drops webhook bodies already processed within ttl.
func WithReplayProtection(store ports.NonceStore, ttl time.Duration) ReconcilerOption {
	return func(e *ReconciliationEngine) {
		e.nonces = store
		e.replayTTL = ttl
	}
}

// WithConflictAudit records terminal-status conflicts in the audit log.
func WithConflictAudit(audit ports.AuditService) ReconcilerOption {
	return func(e *ReconciliationEngine) { e.audit = audit }
}

// WithStatusNotifier is told whenever an order first reaches a terminal status.
func WithStatusNotifier(n ports.StatusNotifier) ReconcilerOption {
	return func(e *ReconciliationEngine) { e.notifier = n }
}

// NewReconciliationEngine creates the reconciliation engine.
func NewReconciliationEngine(
	ledger ports.OrderRepository,
	gateway ports.GatewayClient,
	sigSvc ports.SignatureService,
	webhookSecret string,
	log zerolog.Logger,
	opts ...ReconcilerOption,
) *ReconciliationEngine {
	e := &ReconciliationEngine{
		ledger:        ledger,
		gateway:       gateway,
		sigSvc:        sigSvc,
		webhookSecret: webhookSecret,
		now:           time.Now,
		log:           logger.Component(log, "reconciler"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Reconcile queries the gateway for an order and applies the answer.
// Orders unknown to the ledger are reported as NOT_FOUND without a gateway call.
func (e *ReconciliationEngine) Reconcile(ctx context.Context, merchantTransactionID string) (*domain.ReconcileResult, error) {
	order, err := e.ledger.Get(ctx, merchantTransactionID)
	if err != nil {
		return nil, fmt.Errorf("loading order %s: %w", merchantTransactionID, err)
	}
	if order == nil {
		return notFound(merchantTransactionID, domain.OrderStatusUnknown), nil
	}

	resp, err := e.gateway.QueryStatus(ctx, merchantTransactionID)
	if err != nil {
		return nil, err
	}
	return e.ApplyStatusResponse(ctx, merchantTransactionID, resp)
}

// ApplyStatusResponse applies a status query result to the ledger.
func (e *ReconciliationEngine) ApplyStatusResponse(ctx context.Context, merchantTransactionID string, resp *domain.GatewayResponse) (*domain.ReconcileResult, error) {
	if resp == nil {
		return nil, errors.New("nil gateway response")
	}
	return e.apply(ctx, merchantTransactionID, resp.Status, resp.Raw, "status_query")
}

// ApplyWebhook authenticates and applies an inbound gateway notification.
// Nothing is read from or written to the ledger unless the signature matches.
func (e *ReconciliationEngine) ApplyWebhook(ctx context.Context, rawBody []byte, signature string) (*domain.ReconcileResult, error) {
	if signature == "" {
		return nil, &domain.SignatureError{Reason: "missing signature"}
	}
	if !e.sigSvc.Verify(e.webhookSecret, rawBody, signature) {
		e.log.Warn().Int("body_bytes", len(rawBody)).Msg("webhook signature mismatch")
		return nil, &domain.SignatureError{Reason: "signature mismatch"}
	}

	event, err := parseWebhookEvent(rawBody)
	if err != nil {
		return nil, err
	}

	reserved := false
	if e.nonces != nil {
		key := domain.BuildWebhookReplayKey(rawBody)
		fresh, err := e.nonces.CheckAndSet(ctx, webhookNonceScope, key, e.replayTTL)
		switch {
		case err != nil:
			e.log.Warn().Err(err).Msg("webhook replay check failed, processing anyway (degraded mode)")
		case !fresh:
			e.log.Info().Str("order_id", event.MerchantTransactionID).Msg("duplicate webhook ignored")
			return e.duplicate(ctx, event)
		default:
			reserved = true
		}
	}

	result, err := e.apply(ctx, event.MerchantTransactionID, event.Status, event.Payload, "webhook")
	if err != nil && reserved {
		// Let the gateway's redelivery of this body be processed.
		if relErr := e.nonces.Release(context.WithoutCancel(ctx), webhookNonceScope, domain.BuildWebhookReplayKey(rawBody)); relErr != nil {
			e.log.Warn().Err(relErr).Msg("failed to release webhook replay key")
		}
	}
	return result, err
}

func (e *ReconciliationEngine) apply(ctx context.Context, id string, reported domain.OrderStatus, payload json.RawMessage, source string) (*domain.ReconcileResult, error) {
	var (
		previous domain.OrderStatus
		outcome  domain.TransitionOutcome
	)

	order, err := e.ledger.Update(ctx, id, func(o *domain.Order) (bool, error) {
		previous = o.Status
		var next domain.OrderStatus
		next, outcome = domain.ResolveTransition(o.Status, reported)
		if outcome != domain.TransitionApplied {
			return false, nil
		}
		o.Status = next
		o.UpdatedAt = e.now().UTC()
		if len(payload) > 0 {
			o.LastGatewayPayload = payload
		}
		return true, nil
	})
	if err != nil {
		return nil, fmt.Errorf("updating order %s: %w", id, err)
	}
	if order == nil {
		e.log.Warn().Str("order_id", id).Str("source", source).Str("reported", string(reported)).
			Msg("status report for unknown order")
		return notFound(id, reported), nil
	}

	result := &domain.ReconcileResult{
		MerchantTransactionID: id,
		Status:                order.Status,
		ReportedStatus:        reported,
	}

	switch outcome {
	case domain.TransitionConflict:
		result.Outcome = domain.ReconcileConflict
		e.log.Error().
			Str("order_id", id).
			Str("source", source).
			Str("stored", string(order.Status)).
			Str("reported", string(reported)).
			Msg("inconsistent terminal status reported; keeping stored status")
		e.auditConflict(ctx, order, reported, source)
	case domain.TransitionIgnored:
		result.Outcome = domain.ReconcileIgnored
		e.log.Info().Str("order_id", id).Str("source", source).
			Str("stored", string(order.Status)).Str("reported", string(reported)).
			Msg("status report does not move order")
	default:
		result.Outcome = domain.ReconcileApplied
		e.log.Info().Str("order_id", id).Str("source", source).
			Str("from", string(previous)).Str("to", string(order.Status)).
			Msg("order status reconciled")
		if !previous.IsTerminal() && order.IsTerminal() {
			e.notify(ctx, order)
		}
	}
	return result, nil
}

func (e *ReconciliationEngine) duplicate(ctx context.Context, event *domain.WebhookEvent) (*domain.ReconcileResult, error) {
	result := &domain.ReconcileResult{
		MerchantTransactionID: event.MerchantTransactionID,
		Status:                domain.OrderStatusUnknown,
		ReportedStatus:        event.Status,
		Outcome:               domain.ReconcileDuplicate,
	}
	order, err := e.ledger.Get(ctx, event.MerchantTransactionID)
	if err != nil {
		return nil, fmt.Errorf("loading order %s: %w", event.MerchantTransactionID, err)
	}
	if order != nil {
		result.Status = order.Status
	}
	return result, nil
}

func (e *ReconciliationEngine) auditConflict(ctx context.Context, order *domain.Order, reported domain.OrderStatus, source string) {
	if e.audit == nil {
		return
	}
	details, _ := json.Marshal(map[string]string{
		"stored":   string(order.Status),
		"reported": string(reported),
		"source":   source,
	})
	e.audit.Log(ctx, &domain.AuditLog{
		Actor:        "gateway",
		Action:       domain.AuditActionReconcileConflict,
		ResourceType: "order",
		ResourceID:   order.MerchantTransactionID,
		Details:      string(details),
	})
}

func (e *ReconciliationEngine) notify(ctx context.Context, order *domain.Order) {
	if e.notifier == nil {
		return
	}
	if err := e.notifier.Notify(ctx, order); err != nil {
		e.log.Warn().Err(err).Str("order_id", order.MerchantTransactionID).Msg("failed to enqueue merchant notification")
	}
}

func notFound(id string, reported domain.OrderStatus) *domain.ReconcileResult {
	return &domain.ReconcileResult{
		MerchantTransactionID: id,
		Status:                domain.OrderStatusUnknown,
		ReportedStatus:        reported,
		Outcome:               domain.ReconcileNotFound,
	}
}

// parseWebhookEvent accepts either a plain JSON notification or the
// {"response": base64(JSON)} envelope used by checksum-era integrations.
func parseWebhookEvent(raw []byte) (*domain.WebhookEvent, error) {
	doc := parseJSONDoc(raw)
	if doc == nil {
		return nil, fmt.Errorf("%w: body is not a JSON object", domain.ErrMalformedWebhook)
	}

	payload := raw
	if encoded := doc.firstString("response"); encoded != "" {
		decoded, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, fmt.Errorf("%w: response envelope is not base64: %v", domain.ErrMalformedWebhook, err)
		}
		if doc = parseJSONDoc(decoded); doc == nil {
			return nil, fmt.Errorf("%w: response envelope is not a JSON object", domain.ErrMalformedWebhook)
		}
		payload = decoded
	}

	id := doc.firstString(transactionIDPaths...)
	if id == "" {
		return nil, domain.ErrMalformedWebhook
	}

	gatewayStatus := doc.firstString(statusPaths...)
	return &domain.WebhookEvent{
		MerchantTransactionID: id,
		GatewayStatus:         gatewayStatus,
		Status:                domain.ParseGatewayStatus(gatewayStatus),
		Payload:               domain.NormalizePayload(payload),
	}, nil
}
