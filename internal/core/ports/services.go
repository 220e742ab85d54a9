package ports

import (
	"context"
	"time"

	"payment-bridge/internal/core/domain"
)

//go:generate mockgen -source=services.go -destination=mocks/mock_services.go -package=mocks

// --- Gateway integration ---

// AccessTokenProvider hands out gateway access tokens that remain valid for
// at least the configured safety margin.
type AccessTokenProvider interface {
	GetValidToken(ctx context.Context) (string, error)
}

// RequestSigner produces the verification value for an outbound payload.
type RequestSigner interface {
	Sign(payload any, apiPath string) (*domain.SignedRequest, error)
}

// GatewayClient performs the three outbound gateway operations.
type GatewayClient interface {
	CreatePayment(ctx context.Context, intent domain.PaymentIntent) (*domain.GatewayResponse, error)
	QueryStatus(ctx context.Context, merchantTransactionID string) (*domain.GatewayResponse, error)
	InitiateRefund(ctx context.Context, intent domain.RefundIntent) (*domain.GatewayResponse, error)
}

// Reconciler is the only writer of order status after creation.
type Reconciler interface {
	ApplyStatusResponse(ctx context.Context, merchantTransactionID string, resp *domain.GatewayResponse) (*domain.ReconcileResult, error)
	ApplyWebhook(ctx context.Context, rawBody []byte, signature string) (*domain.ReconcileResult, error)
	Reconcile(ctx context.Context, merchantTransactionID string) (*domain.ReconcileResult, error)
}

// WebhookService authenticates and applies inbound gateway notifications.
type WebhookService interface {
	HandleGatewayWebhook(ctx context.Context, rawBody []byte, signature string) (*domain.ReconcileResult, error)
}

// --- Crypto & security ---

// EncryptionService handles AES-256-GCM encryption/decryption.
type EncryptionService interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// SignatureService handles HMAC-SHA256 signing and verification.
type SignatureService interface {
	Sign(secretKey string, payload []byte) string
	Verify(secretKey string, payload []byte, signature string) bool
}

// HashService handles password hashing (Argon2id).
type HashService interface {
	Hash(password string) (string, error)
	Verify(password string, hash string) (bool, error)
}

// TokenService issues and validates operator session tokens (JWT).
type TokenService interface {
	Generate(username string) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	Username string
}

// --- Caches ---

// IdempotencyCache remembers successful creation results (Redis).
type IdempotencyCache interface {
	Get(ctx context.Context, key string) ([]byte, error) // Returns cached response JSON or nil
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// NonceStore records one-time keys for replay protection.
type NonceStore interface {
	// CheckAndSet atomically checks if nonce exists, sets it if not.
	// Returns true if nonce is new (valid), false if already used.
	CheckAndSet(ctx context.Context, scope string, nonce string, ttl time.Duration) (bool, error)
	// Release forgets a nonce so the same key may be processed again.
	Release(ctx context.Context, scope string, nonce string) error
}

// RateLimitStore keeps fixed-window request counters for inbound rate limiting.
type RateLimitStore interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (*RateLimitResult, error)
}

// RateLimitResult holds the outcome of a rate limit check.
type RateLimitResult struct {
	Allowed   bool
	Limit     int64
	Remaining int64
	ResetAt   int64 // Unix timestamp
}

// StatusNotifier tells the merchant backend that an order reached a terminal status.
type StatusNotifier interface {
	Notify(ctx context.Context, order *domain.Order) error
}

// --- Service Ports (Business Logic) ---

// PaymentService is the merchant-facing payment API.
type PaymentService interface {
	CreatePayment(ctx context.Context, req CreatePaymentRequest) (*CreatePaymentResult, error)
	CheckStatus(ctx context.Context, merchantTransactionID string) (*domain.ReconcileResult, error)
	Refund(ctx context.Context, req RefundRequest) (*RefundResult, error)
	GetOrder(ctx context.Context, merchantTransactionID string) (*domain.Order, error)
}

// CreatePaymentRequest holds validated input for payment creation.
// Amount is in major units.
type CreatePaymentRequest struct {
	MerchantTransactionID string
	MerchantUserID        string
	Amount                float64
	RedirectURL           string
	CallbackURL           string
}

// CreatePaymentResult is returned to the caller and cached for idempotent replays.
type CreatePaymentResult struct {
	Order       *domain.Order           `json:"order"`
	RedirectURL *string                 `json:"redirect_url,omitempty"`
	Gateway     *domain.GatewayResponse `json:"gateway"`
	Replayed    bool                    `json:"replayed"`
}

// RefundRequest holds validated input for refund processing.
// A nil Amount refunds the full order amount.
type RefundRequest struct {
	MerchantTransactionID string
	Amount                *float64
	Reason                string
	RequestedBy           string
}

// RefundResult is the outcome of a refund call.
type RefundResult struct {
	RefundID              string                  `json:"refund_id"`
	MerchantTransactionID string                  `json:"merchant_transaction_id"`
	AmountMinorUnits      int64                   `json:"amount_minor_units"`
	Gateway               *domain.GatewayResponse `json:"gateway"`
}

// OperatorAuthService authenticates the operator console.
type OperatorAuthService interface {
	Login(ctx context.Context, username, password string) (string, time.Time, error) // token, expiry, error
}

// AuditService records audited actions.
type AuditService interface {
	Log(ctx context.Context, entry *domain.AuditLog)
}
