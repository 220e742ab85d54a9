package domain

import (
	"bytes"
	"encoding/json"
	"math"
	"time"
)

// OrderStatus represents the locally tracked lifecycle state of a payment order.
type OrderStatus string

const (
	OrderStatusPending OrderStatus = "PENDING"
	OrderStatusSuccess OrderStatus = "SUCCESS"
	OrderStatusFailed  OrderStatus = "FAILED"
	OrderStatusUnknown OrderStatus = "UNKNOWN"
)

// IsTerminal reports whether no further transition is allowed out of s.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusSuccess || s == OrderStatusFailed
}

// Valid reports whether s is one of the known order statuses.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusSuccess, OrderStatusFailed, OrderStatusUnknown:
		return true
	}
	return false
}

// MaxMerchantTransactionIDLen is the longest merchant transaction id the gateway accepts.
const MaxMerchantTransactionIDLen = 63

// Order is the merchant-side record of a payment attempt.
type Order struct {
	MerchantTransactionID string          `json:"merchant_transaction_id"`
	AmountMinorUnits      int64           `json:"amount_minor_units"`
	Status                OrderStatus     `json:"status"`
	CreatedAt             time.Time       `json:"created_at"`
	UpdatedAt             time.Time       `json:"updated_at"`
	LastGatewayPayload    json.RawMessage `json:"last_gateway_payload,omitempty"`
}

// IsTerminal returns true if the order has reached SUCCESS or FAILED.
func (o *Order) IsTerminal() bool {
	return o.Status.IsTerminal()
}

// IsRefundable returns true if the order settled successfully.
func (o *Order) IsRefundable() bool {
	return o.Status == OrderStatusSuccess
}

// Clone returns a deep copy so callers never share the payload buffer.
func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	cp := *o
	if o.LastGatewayPayload != nil {
		cp.LastGatewayPayload = append(json.RawMessage(nil), o.LastGatewayPayload...)
	}
	return &cp
}

// MaxAmountMinorUnits bounds any single order or refund amount.
const MaxAmountMinorUnits int64 = 1_000_000_000_000

// ToMinorUnits converts a major-unit amount (e.g. rupees) to minor units (paise),
// rounding half away from zero. Amounts that are not finite or exceed
// MaxAmountMinorUnits in either direction yield 0, which callers reject.
func ToMinorUnits(amount float64) int64 {
	minor := math.Round(amount * 100)
	if math.IsNaN(minor) || math.Abs(minor) > float64(MaxAmountMinorUnits) {
		return 0
	}
	return int64(minor)
}

// NormalizePayload returns raw unchanged when it is valid JSON and otherwise
// wraps it as a JSON string so it can always be stored as a JSON document.
func NormalizePayload(raw []byte) json.RawMessage {
	if len(raw) == 0 {
		return nil
	}
	if json.Valid(raw) {
		return append(json.RawMessage(nil), raw...)
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(string(raw))
	return json.RawMessage(bytes.TrimSuffix(buf.Bytes(), []byte("\n")))
}
