package dto

import (
	"encoding/json"
	"time"
)

// LoginRequest is the request body for operator login.
type LoginRequest struct {
	Username string `json:"username" binding:"required,max=64"`
	Password string `json:"password" binding:"required,max=128"`
}

// LoginResponse is the response body for successful login.
type LoginResponse struct {
	Token  string `json:"token"`
	Expiry int64  `json:"expiry"` // Unix timestamp
}

// CreatePaymentRequest is the request body for payment creation. Amount is in
// major units, e.g. 150.00.
type CreatePaymentRequest struct {
	MerchantTransactionID string  `json:"merchant_transaction_id" binding:"required,max=63,safe_id"`
	MerchantUserID        string  `json:"merchant_user_id,omitempty" binding:"omitempty,max=64,safe_id"`
	Amount                float64 `json:"amount" binding:"required,gt=0"`
	RedirectURL           string  `json:"redirect_url,omitempty" binding:"omitempty,max=2048,safe_url"`
	CallbackURL           string  `json:"callback_url,omitempty" binding:"omitempty,max=2048,safe_url"`
}

// CreatePaymentResponse is returned after the gateway accepted a payment.
type CreatePaymentResponse struct {
	MerchantTransactionID string          `json:"merchant_transaction_id"`
	AmountMinorUnits      int64           `json:"amount_minor_units"`
	Status                string          `json:"status"`
	RedirectURL           *string         `json:"redirect_url"`
	GatewayStatus         string          `json:"gateway_status,omitempty"`
	GatewayResponse       json.RawMessage `json:"gateway_response,omitempty"`
	Replayed              bool            `json:"replayed"`
	CreatedAt             time.Time       `json:"created_at"`
}

// RefundRequest is the request body for a refund. A missing amount refunds in full.
type RefundRequest struct {
	Amount *float64 `json:"amount,omitempty" binding:"omitempty,gt=0"`
	Reason string   `json:"reason,omitempty" binding:"max=255"`
}

// RefundResponse is returned after the gateway accepted a refund.
type RefundResponse struct {
	RefundID              string          `json:"refund_id"`
	MerchantTransactionID string          `json:"merchant_transaction_id"`
	AmountMinorUnits      int64           `json:"amount_minor_units"`
	GatewayStatus         string          `json:"gateway_status,omitempty"`
	GatewayResponse       json.RawMessage `json:"gateway_response,omitempty"`
}

// ReconcileResponse reports the ledger state after a status check or webhook.
type ReconcileResponse struct {
	MerchantTransactionID string `json:"merchant_transaction_id"`
	Status                string `json:"status"`
	ReportedStatus        string `json:"reported_status"`
	Outcome               string `json:"outcome"`
}

// OrderResponse is the ledger view of an order.
type OrderResponse struct {
	MerchantTransactionID string          `json:"merchant_transaction_id"`
	AmountMinorUnits      int64           `json:"amount_minor_units"`
	Status                string          `json:"status"`
	CreatedAt             time.Time       `json:"created_at"`
	UpdatedAt             time.Time       `json:"updated_at"`
	LastGatewayPayload    json.RawMessage `json:"last_gateway_payload,omitempty"`
}
