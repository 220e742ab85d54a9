package service

import (
	"context"

	"payment-bridge/internal/core/domain"
	"payment-bridge/internal/core/ports"
	"payment-bridge/pkg/logger"

	"github.com/rs/zerolog"
)

// webhookService implements ports.WebhookService on top of the reconciler.
type webhookService struct {
	reconciler ports.Reconciler
	log        zerolog.Logger
}

// NewWebhookService creates a new webhook service.
func NewWebhookService(reconciler ports.Reconciler, log zerolog.Logger) ports.WebhookService {
	return &webhookService{
		reconciler: reconciler,
		log:        logger.Component(log, "webhooks"),
	}
}

// HandleGatewayWebhook applies an inbound notification. Failures come back as
// *apperror.AppError; an unknown order is reported through the result.
func (s *webhookService) HandleGatewayWebhook(ctx context.Context, rawBody []byte, signature string) (*domain.ReconcileResult, error) {
	res, err := s.reconciler.ApplyWebhook(ctx, rawBody, signature)
	if err != nil {
		s.log.Warn().Err(err).Int("body_bytes", len(rawBody)).Msg("webhook rejected")
		return nil, toAppError(err)
	}

	s.log.Info().
		Str("order_id", res.MerchantTransactionID).
		Str("outcome", string(res.Outcome)).
		Str("status", string(res.Status)).
		Msg("webhook processed")
	return res, nil
}
