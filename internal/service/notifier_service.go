package service

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"payment-bridge/internal/core/domain"
	"payment-bridge/internal/core/ports"
	"payment-bridge/pkg/logger"

	"github.com/rs/zerolog"
)

// DefaultNotifyRetryIntervals are the waits between delivery attempts.
var DefaultNotifyRetryIntervals = []time.Duration{
	15 * time.Second,
	60 * time.Second,
	2 * time.Minute,
	5 * time.Minute,
	10 * time.Minute,
}

const (
	EventOrderStatus = "ORDER_STATUS"

	notifyAttemptTimeout  = 10 * time.Second
	notifySignatureHeader = "X-Signature"
)

// NotificationPayload is the JSON body posted to the merchant notify URL.
type NotificationPayload struct {
	EventType string                  `json:"event_type"`
	Data      NotificationPayloadData `json:"data"`
	Signature string                  `json:"signature"`
}

// NotificationPayloadData describes the order that reached a final status.
type NotificationPayloadData struct {
	MerchantTransactionID string `json:"merchant_transaction_id"`
	Status                string `json:"status"`
	AmountMinorUnits      int64  `json:"amount_minor_units"`
	Timestamp             int64  `json:"timestamp"`
}

// statusNotifier implements ports.StatusNotifier.
type statusNotifier struct {
	url        string
	secret     string
	sigSvc     ports.SignatureService
	httpClient HTTPClient
	intervals  []time.Duration
	log        zerolog.Logger
}

// NewStatusNotifier creates a notifier posting signed order updates to url.
// A nil intervals slice uses DefaultNotifyRetryIntervals.
func NewStatusNotifier(
	url, secret string,
	sigSvc ports.SignatureService,
	httpClient HTTPClient,
	intervals []time.Duration,
	log zerolog.Logger,
) ports.StatusNotifier {
	if intervals == nil {
		intervals = DefaultNotifyRetryIntervals
	}
	return &statusNotifier{
		url:        url,
		secret:     secret,
		sigSvc:     sigSvc,
		httpClient: httpClient,
		intervals:  intervals,
		log:        logger.Component(log, "notifier"),
	}
}

// Notify schedules asynchronous delivery for order. Delivery outlives ctx.
func (s *statusNotifier) Notify(ctx context.Context, order *domain.Order) error {
	if s.url == "" {
		s.log.Debug().Str("order_id", order.MerchantTransactionID).Msg("no notify URL configured, skipping")
		return nil
	}

	data := NotificationPayloadData{
		MerchantTransactionID: order.MerchantTransactionID,
		Status:                string(order.Status),
		AmountMinorUnits:      order.AmountMinorUnits,
		Timestamp:             time.Now().Unix(),
	}
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return err
	}
	signature := s.sigSvc.Sign(s.secret, dataBytes)

	body, err := json.Marshal(NotificationPayload{
		EventType: EventOrderStatus,
		Data:      data,
		Signature: signature,
	})
	if err != nil {
		return err
	}

	go s.deliverWithRetries(context.WithoutCancel(ctx), body, signature, order.MerchantTransactionID)
	return nil
}

func (s *statusNotifier) deliverWithRetries(ctx context.Context, body []byte, signature, orderID string) {
	for attempt := 0; attempt <= len(s.intervals); attempt++ {
		if attempt > 0 {
			time.Sleep(s.intervals[attempt-1])
		}

		status, err := s.post(ctx, body, signature)
		if err != nil {
			s.log.Warn().Err(err).Str("order_id", orderID).Int("attempt", attempt+1).Msg("notification delivery failed")
			continue
		}
		if isSuccess(status) {
			s.log.Info().Str("order_id", orderID).Int("attempt", attempt+1).Int("status", status).Msg("notification delivered")
			return
		}
		s.log.Warn().Str("order_id", orderID).Int("attempt", attempt+1).Int("status", status).Msg("notification rejected, retrying")
	}

	s.log.Error().Str("order_id", orderID).Msg("notification retries exhausted")
}

func (s *statusNotifier) post(ctx context.Context, body []byte, signature string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, notifyAttemptTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(notifySignatureHeader, signature)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	if _, err := readBody(resp); err != nil {
		return 0, err
	}
	return resp.StatusCode, nil
}
