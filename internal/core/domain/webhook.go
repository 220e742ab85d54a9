package domain

import "encoding/json"

// WebhookEvent is the normalised content of an inbound gateway notification.
type WebhookEvent struct {
	MerchantTransactionID string
	GatewayStatus         string
	Status                OrderStatus
	Payload               json.RawMessage
}

// ReconcileOutcome summarises how a status report was handled.
type ReconcileOutcome string

const (
	ReconcileApplied   ReconcileOutcome = "APPLIED"
	ReconcileIgnored   ReconcileOutcome = "IGNORED"
	ReconcileConflict  ReconcileOutcome = "CONFLICT"
	ReconcileNotFound  ReconcileOutcome = "NOT_FOUND"
	ReconcileDuplicate ReconcileOutcome = "DUPLICATE"
)

// ReconcileResult is returned by every reconciliation entry point.
// Status is the stored status after the report was considered.
type ReconcileResult struct {
	MerchantTransactionID string           `json:"merchant_transaction_id"`
	Status                OrderStatus      `json:"status"`
	ReportedStatus        OrderStatus      `json:"reported_status"`
	Outcome               ReconcileOutcome `json:"outcome"`
}
