package domain

import (
	"errors"
	"fmt"
)

// ErrOrderExists is returned when inserting an order whose id is already recorded.
var ErrOrderExists = errors.New("order already exists")

// ConfigError reports missing or invalid configuration detected at startup.
type ConfigError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %s", e.Field, e.Reason)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// AuthError reports a failure to obtain a gateway access token.
type AuthError struct {
	Reason string
	Err    error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("gateway auth: %s: %v", e.Reason, e.Err)
	}
	return "gateway auth: " + e.Reason
}

func (e *AuthError) Unwrap() error { return e.Err }

// GatewayError reports a failed gateway call. Either StatusCode/Body are set
// (the gateway answered non-2xx) or Cause is set (network error or timeout).
type GatewayError struct {
	Operation  string
	StatusCode int
	Body       string
	Cause      error
}

func (e *GatewayError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("gateway %s: %v", e.Operation, e.Cause)
	}
	return fmt.Sprintf("gateway %s: status %d: %s", e.Operation, e.StatusCode, e.Body)
}

func (e *GatewayError) Unwrap() error { return e.Cause }

// Transport reports whether the call never produced an HTTP response.
func (e *GatewayError) Transport() bool {
	return e.Cause != nil
}

// SignatureError reports a webhook whose signature is missing or does not match.
type SignatureError struct {
	Reason string
}

func (e *SignatureError) Error() string {
	return "webhook signature: " + e.Reason
}

// NotFoundError reports an order id unknown to the ledger.
type NotFoundError struct {
	MerchantTransactionID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("order %q not found", e.MerchantTransactionID)
}

// ErrMalformedWebhook is returned for an authenticated webhook body that names no order.
var ErrMalformedWebhook = errors.New("webhook payload carries no merchant transaction id")
