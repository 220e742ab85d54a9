package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"payment-bridge/internal/core/domain"
	"payment-bridge/internal/core/ports"
	"payment-bridge/pkg/logger"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	opCreatePayment = "create_payment"
	opQueryStatus   = "query_status"
	opRefund        = "refund"

	DefaultCreateTimeout = 15 * time.Second
	DefaultStatusTimeout = 10 * time.Second
	DefaultRefundTimeout = 15 * time.Second
)

// GatewayOptions configures request layout and limits for GatewayClientImpl.
type GatewayOptions struct {
	APIVersion domain.APIVersion
	AuthMode   domain.AuthMode

	// Paths are appended to the base URL. StatusPath may contain the
	// {merchantId} and {transactionId} placeholders.
	PayPath    string
	StatusPath string
	RefundPath string

	InstrumentType     string
	RedirectMode       string
	DefaultRedirectURL string
	DefaultCallbackURL string

	CreateTimeout time.Duration
	StatusTimeout time.Duration
	RefundTimeout time.Duration

	// RateLimit caps outbound requests per second; zero disables limiting.
	RateLimit float64
	Burst     int
}

// DefaultGatewayOptions returns the endpoint layout for an API version.
func DefaultGatewayOptions(version domain.APIVersion) GatewayOptions {
	opts := GatewayOptions{
		APIVersion:    version,
		AuthMode:      domain.AuthModeOAuth,
		CreateTimeout: DefaultCreateTimeout,
		StatusTimeout: DefaultStatusTimeout,
		RefundTimeout: DefaultRefundTimeout,
	}
	if version == domain.APIVersionV1 {
		opts.AuthMode = domain.AuthModeNone
		opts.PayPath = "/pg/v1/pay"
		opts.StatusPath = "/pg/v1/status/{merchantId}/{transactionId}"
		opts.RefundPath = "/pg/v1/refund"
		opts.InstrumentType = "PAY_PAGE"
		opts.RedirectMode = "REDIRECT"
		return opts
	}
	opts.PayPath = "/pay"
	opts.StatusPath = "/order/{transactionId}/status"
	opts.RefundPath = "/refund"
	opts.InstrumentType = "PG_CHECKOUT"
	return opts
}

// GatewayClientImpl implements ports.GatewayClient over HTTP. Every call builds
// fresh credentials, so a token refreshed between calls is always picked up.
// Calls are never retried.
type GatewayClientImpl struct {
	creds      domain.Credentials
	opts       GatewayOptions
	tokens     ports.AccessTokenProvider
	signer     ports.RequestSigner
	httpClient HTTPClient
	limiter    *rate.Limiter
	log        zerolog.Logger
}

// NewGatewayClient creates a gateway client. tokens may be nil unless
// opts.AuthMode is oauth.
func NewGatewayClient(
	creds domain.Credentials,
	opts GatewayOptions,
	tokens ports.AccessTokenProvider,
	signer ports.RequestSigner,
	httpClient HTTPClient,
	log zerolog.Logger,
) *GatewayClientImpl {
	c := &GatewayClientImpl{
		creds:      creds,
		opts:       opts,
		tokens:     tokens,
		signer:     signer,
		httpClient: httpClient,
		log:        logger.Component(log, "gateway_client"),
	}
	if opts.RateLimit > 0 {
		burst := opts.Burst
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}
	return c
}

type paymentInstrument struct {
	Type string `json:"type"`
}

type v1PayPayload struct {
	MerchantID            string            `json:"merchantId"`
	MerchantTransactionID string            `json:"merchantTransactionId"`
	MerchantUserID        string            `json:"merchantUserId,omitempty"`
	Amount                int64             `json:"amount"`
	RedirectURL           string            `json:"redirectUrl,omitempty"`
	RedirectMode          string            `json:"redirectMode,omitempty"`
	CallbackURL           string            `json:"callbackUrl,omitempty"`
	PaymentInstrument     paymentInstrument `json:"paymentInstrument"`
}

type merchantURLs struct {
	RedirectURL string `json:"redirectUrl"`
}

type paymentFlow struct {
	Type         string       `json:"type"`
	MerchantURLs merchantURLs `json:"merchantUrls"`
}

type v2PayPayload struct {
	MerchantOrderID string      `json:"merchantOrderId"`
	Amount          int64       `json:"amount"`
	PaymentFlow     paymentFlow `json:"paymentFlow"`
}

type v1RefundPayload struct {
	MerchantID            string `json:"merchantId"`
	MerchantTransactionID string `json:"merchantTransactionId"`
	OriginalTransactionID string `json:"originalTransactionId"`
	Amount                int64  `json:"amount"`
	CallbackURL           string `json:"callbackUrl,omitempty"`
}

type v2RefundPayload struct {
	MerchantRefundID        string `json:"merchantRefundId"`
	OriginalMerchantOrderID string `json:"originalMerchantOrderId"`
	Amount                  int64  `json:"amount"`
}

// v1Envelope wraps the base64 payload for checksum-era endpoints.
type v1Envelope struct {
	Request string `json:"request"`
}

// CreatePayment submits a payment intent. A nil RedirectURL in the result means
// no known response layout carried one; the raw body is still returned.
func (c *GatewayClientImpl) CreatePayment(ctx context.Context, intent domain.PaymentIntent) (*domain.GatewayResponse, error) {
	redirectURL := firstNonEmpty(intent.RedirectURL, c.opts.DefaultRedirectURL)
	callbackURL := firstNonEmpty(intent.CallbackURL, c.opts.DefaultCallbackURL)

	var payload any
	if c.opts.APIVersion == domain.APIVersionV1 {
		payload = v1PayPayload{
			MerchantID:            c.creds.MerchantID,
			MerchantTransactionID: intent.MerchantTransactionID,
			MerchantUserID:        intent.MerchantUserID,
			Amount:                intent.AmountMinorUnits,
			RedirectURL:           redirectURL,
			RedirectMode:          c.opts.RedirectMode,
			CallbackURL:           callbackURL,
			PaymentInstrument:     paymentInstrument{Type: c.opts.InstrumentType},
		}
	} else {
		payload = v2PayPayload{
			MerchantOrderID: intent.MerchantTransactionID,
			Amount:          intent.AmountMinorUnits,
			PaymentFlow: paymentFlow{
				Type:         c.opts.InstrumentType,
				MerchantURLs: merchantURLs{RedirectURL: redirectURL},
			},
		}
	}

	resp, err := c.do(ctx, opCreatePayment, http.MethodPost, c.opts.PayPath, payload, c.opts.CreateTimeout)
	if err != nil {
		return nil, err
	}
	if resp.RedirectURL == nil {
		c.log.Warn().
			Str("order_id", intent.MerchantTransactionID).
			Msg("gateway accepted payment but no redirect url was found in response")
	}
	return resp, nil
}

// QueryStatus asks the gateway for the authoritative status of an order.
func (c *GatewayClientImpl) QueryStatus(ctx context.Context, merchantTransactionID string) (*domain.GatewayResponse, error) {
	path := strings.NewReplacer(
		"{merchantId}", url.PathEscape(c.creds.MerchantID),
		"{transactionId}", url.PathEscape(merchantTransactionID),
	).Replace(c.opts.StatusPath)

	return c.do(ctx, opQueryStatus, http.MethodGet, path, nil, c.opts.StatusTimeout)
}

// InitiateRefund requests a refund of a settled order.
func (c *GatewayClientImpl) InitiateRefund(ctx context.Context, intent domain.RefundIntent) (*domain.GatewayResponse, error) {
	var payload any
	if c.opts.APIVersion == domain.APIVersionV1 {
		payload = v1RefundPayload{
			MerchantID:            c.creds.MerchantID,
			MerchantTransactionID: intent.RefundID,
			OriginalTransactionID: intent.OriginalMerchantTransactionID,
			Amount:                intent.AmountMinorUnits,
			CallbackURL:           firstNonEmpty(intent.CallbackURL, c.opts.DefaultCallbackURL),
		}
	} else {
		payload = v2RefundPayload{
			MerchantRefundID:        intent.RefundID,
			OriginalMerchantOrderID: intent.OriginalMerchantTransactionID,
			Amount:                  intent.AmountMinorUnits,
		}
	}

	return c.do(ctx, opRefund, http.MethodPost, c.opts.RefundPath, payload, c.opts.RefundTimeout)
}

func (c *GatewayClientImpl) do(ctx context.Context, op, method, path string, payload any, timeout time.Duration) (*domain.GatewayResponse, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &domain.GatewayError{Operation: op, Cause: fmt.Errorf("rate limiter: %w", err)}
		}
	}

	signed, err := c.signer.Sign(payload, path)
	if err != nil {
		return nil, fmt.Errorf("signing %s request: %w", op, err)
	}

	var body io.Reader
	if payload != nil {
		raw := signed.Payload
		if c.opts.APIVersion == domain.APIVersionV1 {
			if raw, err = json.Marshal(v1Envelope{Request: signed.EncodedPayload}); err != nil {
				return nil, fmt.Errorf("encoding %s envelope: %w", op, err)
			}
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(c.creds.BaseURL, "/")+path, body)
	if err != nil {
		return nil, fmt.Errorf("building %s request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if signed.VerificationValue != "" {
		req.Header.Set("X-VERIFY", signed.VerificationValue)
		if c.creds.MerchantID != "" {
			req.Header.Set("X-MERCHANT-ID", c.creds.MerchantID)
		}
	}
	if err := c.authorize(ctx, req); err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Error().Err(err).Str("op", op).Bool("timeout", isTimeout(err)).Msg("gateway call failed")
		return nil, &domain.GatewayError{Operation: op, Cause: err}
	}
	respBody, err := readBody(resp)
	if err != nil {
		return nil, &domain.GatewayError{Operation: op, Cause: err}
	}

	c.log.Debug().
		Str("op", op).
		Int("upstream_status", resp.StatusCode).
		Dur("latency", time.Since(start)).
		Msg("gateway call completed")

	if !isSuccess(resp.StatusCode) {
		c.log.Warn().Str("op", op).Int("upstream_status", resp.StatusCode).Msg("gateway returned non-success status")
		return nil, &domain.GatewayError{Operation: op, StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	return parseGatewayResponse(resp.StatusCode, respBody), nil
}

// authorize attaches credentials for the configured auth mode. In oauth mode a
// token is requested on every call; the cache decides whether that costs a refresh.
func (c *GatewayClientImpl) authorize(ctx context.Context, req *http.Request) error {
	switch c.opts.AuthMode {
	case domain.AuthModeOAuth:
		if c.tokens == nil {
			return &domain.AuthError{Reason: "no token provider configured"}
		}
		token, err := c.tokens.GetValidToken(ctx)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "O-Bearer "+token)
	case domain.AuthModeBasic:
		creds := base64.StdEncoding.EncodeToString([]byte(c.creds.ClientID + ":" + c.creds.ClientSecret))
		req.Header.Set("Authorization", "Basic "+creds)
	case domain.AuthModeClientHeaders:
		req.Header.Set("X-Client-Id", c.creds.ClientID)
		req.Header.Set("X-Client-Secret", c.creds.ClientSecret)
	}
	return nil
}

func parseGatewayResponse(status int, body []byte) *domain.GatewayResponse {
	out := &domain.GatewayResponse{
		HTTPStatus: status,
		Raw:        domain.NormalizePayload(body),
		Status:     domain.OrderStatusUnknown,
	}

	doc := parseJSONDoc(body)
	if doc == nil {
		return out
	}
	if u := doc.firstString(redirectURLPaths...); u != "" {
		out.RedirectURL = &u
	}
	out.GatewayStatus = doc.firstString(statusPaths...)
	out.Status = domain.ParseGatewayStatus(out.GatewayStatus)
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
