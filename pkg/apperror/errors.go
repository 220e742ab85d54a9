package apperror

import (
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string         `json:"error_code"`
	Message    string         `json:"message"`
	HTTPStatus int            `json:"-"`
	Details    map[string]any `json:"details,omitempty"`
	Err        error          `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetails attaches client-visible diagnostic fields.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	e.Details = details
	return e
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// ---- Security (SEC) ----

func ErrInvalidSignature() *AppError {
	return New("SEC_002", "Invalid signature", http.StatusUnauthorized)
}

func ErrReplayedWebhook() *AppError {
	return New("SEC_004", "Webhook has already been processed", http.StatusConflict)
}

// ---- Payment Business Logic (PAY) ----

func ErrInvalidAmount() *AppError {
	return New("PAY_002", "Invalid amount", http.StatusBadRequest)
}

func ErrDuplicateOrder() *AppError {
	return New("PAY_003", "Duplicate merchant transaction id", http.StatusConflict)
}

func ErrNotFound(entity string) *AppError {
	return New("PAY_004", fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

func ErrInvalidRefund() *AppError {
	return New("PAY_006", "Original order not eligible for refund", http.StatusBadRequest)
}

func ErrRefundAmountExceedsOriginal() *AppError {
	return New("PAY_007", "Refund amount exceeds original order amount", http.StatusBadRequest)
}

// ---- Authentication (AUTH) ----

func ErrInvalidCredentials() *AppError {
	return New("AUTH_001", "Invalid credentials", http.StatusUnauthorized)
}

func ErrInvalidToken() *AppError {
	return New("AUTH_003", "Invalid or expired token", http.StatusUnauthorized)
}

// ErrGatewayAuth reports a failure to obtain an access token from the gateway.
func ErrGatewayAuth(err error) *AppError {
	return Wrap("AUTH_005", "Gateway authentication failed", http.StatusBadGateway, err)
}

// ---- Gateway (GW) ----

// ErrGatewayRejected carries the upstream status and body back to the caller.
func ErrGatewayRejected(upstreamStatus int, upstreamBody string, err error) *AppError {
	return Wrap("GW_001", "Gateway rejected the request", http.StatusBadGateway, err).
		WithDetails(map[string]any{
			"upstream_status": upstreamStatus,
			"upstream_body":   upstreamBody,
		})
}

func ErrGatewayUnavailable(err error) *AppError {
	return Wrap("GW_002", "Gateway unreachable or timed out", http.StatusGatewayTimeout, err)
}

// ---- Request (REQ) ----

func ErrPayloadTooLarge() *AppError {
	return New("REQ_001", "Request body too large", http.StatusRequestEntityTooLarge)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New("RATE_001", "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- Configuration (CFG) ----

func ErrConfig(err error) *AppError {
	return Wrap("CFG_001", "Invalid configuration", http.StatusInternalServerError, err)
}

// ---- System & Infrastructure (SYS) ----

func ErrDatabaseError(err error) *AppError {
	return Wrap("SYS_001", "Internal database error", http.StatusInternalServerError, err)
}

func ErrEncryptionFailure(err error) *AppError {
	return Wrap("SYS_003", "Encryption service failure", http.StatusInternalServerError, err)
}

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap("SYS_001", "Internal server error", http.StatusInternalServerError, err)
}

// Validation returns a PAY_002-style validation error.
func Validation(message string) *AppError {
	return New("PAY_002", message, http.StatusBadRequest)
}
