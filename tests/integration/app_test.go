package integration

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	httpHandler "payment-bridge/internal/adapter/http/handler"
	memStorage "payment-bridge/internal/adapter/storage/memory"
	redisStorage "payment-bridge/internal/adapter/storage/redis"
	"payment-bridge/internal/core/domain"
	"payment-bridge/internal/core/ports"
	"payment-bridge/internal/service"
	"payment-bridge/pkg/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

const (
	webhookSecret    = "whsec-integration"
	operatorName     = "ops"
	operatorPassword = "correct horse battery staple"
)

// fakeGateway is a PhonePe-style checkout gateway: an OAuth token endpoint,
// pay, order status and refund.
type fakeGateway struct {
	server *httptest.Server

	tokenCalls atomic.Int64
	payCalls   atomic.Int64

	mu       sync.Mutex
	states   map[string]string
	payBody  map[string]json.RawMessage
	headers  map[string]http.Header
	tokenTTL int
}

func newFakeGateway(t *testing.T) *fakeGateway {
	t.Helper()
	g := &fakeGateway{
		states:   make(map[string]string),
		payBody:  make(map[string]json.RawMessage),
		headers:  make(map[string]http.Header),
		tokenTTL: 3600,
	}

	r := gin.New()
	r.POST("/v1/oauth/token", func(c *gin.Context) {
		g.tokenCalls.Add(1)
		if c.PostForm("client_id") != "TEST-CLIENT" || c.PostForm("grant_type") != "client_credentials" {
			c.JSON(http.StatusUnauthorized, gin.H{"code": "INVALID_CLIENT"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"access_token": fmt.Sprintf("tok-%d", g.tokenCalls.Load()),
			"token_type":   "O-Bearer",
			"expires_in":   g.tokenTTL,
		})
	})

	authorized := r.Group("", func(c *gin.Context) {
		if c.GetHeader("Authorization") == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": "UNAUTHORIZED"})
			return
		}
		c.Next()
	})
	authorized.POST("/pay", func(c *gin.Context) {
		g.payCalls.Add(1)
		body, _ := io.ReadAll(c.Request.Body)
		var req struct {
			MerchantOrderID string `json:"merchantOrderId"`
		}
		if err := json.Unmarshal(body, &req); err != nil || req.MerchantOrderID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"code": "BAD_REQUEST", "message": "merchantOrderId missing"})
			return
		}
		g.mu.Lock()
		g.payBody[req.MerchantOrderID] = body
		g.headers[req.MerchantOrderID] = c.Request.Header.Clone()
		if _, ok := g.states[req.MerchantOrderID]; !ok {
			g.states[req.MerchantOrderID] = "PENDING"
		}
		g.mu.Unlock()

		c.JSON(http.StatusOK, gin.H{
			"orderId":     "OMO" + req.MerchantOrderID,
			"state":       "PENDING",
			"expireAt":    time.Now().Add(20 * time.Minute).UnixMilli(),
			"redirectUrl": "https://mercury.example.com/checkout?token=" + req.MerchantOrderID,
		})
	})
	authorized.GET("/order/:id/status", func(c *gin.Context) {
		g.mu.Lock()
		state, ok := g.states[c.Param("id")]
		g.mu.Unlock()
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"code": "ORDER_NOT_FOUND"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"orderId": "OMO" + c.Param("id"),
			"state":   state,
		})
	})
	authorized.POST("/refund", func(c *gin.Context) {
		var req struct {
			MerchantRefundID string `json:"merchantRefundId"`
			Amount           int64  `json:"amount"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"code": "BAD_REQUEST"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"refundId": "OMR" + req.MerchantRefundID,
			"amount":   req.Amount,
			"state":    "PENDING",
		})
	})

	g.server = httptest.NewServer(r)
	t.Cleanup(g.server.Close)
	return g
}

func (g *fakeGateway) setState(id, state string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.states[id] = state
}

func (g *fakeGateway) lastPayHeaders(id string) http.Header {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.headers[id]
}

func (g *fakeGateway) lastPayBody(id string) json.RawMessage {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.payBody[id]
}

// testApp wires the real HTTP layer, services, in-memory ledger and Redis
// stores (miniredis) against the fake gateway.
type testApp struct {
	server  *httptest.Server
	gateway *fakeGateway
	redis   *miniredis.Miniredis
	ledger  ports.OrderRepository
	sigSvc  ports.SignatureService
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	gw := newFakeGateway(t)
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	log := logger.NewWithWriter("error", io.Discard)

	creds := domain.Credentials{
		ClientID:      "TEST-CLIENT",
		ClientSecret:  "client-secret",
		ClientVersion: "1",
		MerchantID:    "PGTESTPAYUAT",
		BaseURL:       gw.server.URL,
		TokenURL:      gw.server.URL + "/v1/oauth/token",
	}
	httpClient := &http.Client{Timeout: 5 * time.Second}

	ledger := memStorage.NewOrderLedger()
	sigSvc := service.NewHMACSignatureService()
	hashSvc := service.NewArgon2HashService()
	tokenSvc := service.NewJWTTokenService("integration-jwt-secret", time.Hour, "payment-bridge")

	tokens := service.NewTokenCache(creds, httpClient, log)
	signer := service.NewChecksumSigner(domain.SignatureModeNone, creds)
	gatewayClient := service.NewGatewayClient(creds, service.DefaultGatewayOptions(domain.APIVersionV2), tokens, signer, httpClient, log)

	nonces := redisStorage.NewNonceStore(rdb)
	reconciler := service.NewReconciliationEngine(ledger, gatewayClient, sigSvc, webhookSecret, log,
		service.WithReplayProtection(nonces, time.Hour),
	)
	paymentSvc := service.NewPaymentService(ledger, gatewayClient, reconciler, redisStorage.NewIdempotencyCache(rdb), log,
		service.WithCreateReservation(nonces, service.DefaultCreateReservationTTL),
	)

	passwordHash, err := hashSvc.Hash(operatorPassword)
	require.NoError(t, err)

	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		PaymentSvc:       paymentSvc,
		WebhookSvc:       service.NewWebhookService(reconciler, log),
		AuthSvc:          service.NewOperatorAuthService(operatorName, passwordHash, hashSvc, tokenSvc),
		TokenSvc:         tokenSvc,
		SignatureHeaders: []string{"X-Webhook-Signature", "X-Verify"},
		RateLimitStore:   redisStorage.NewRateLimitStore(rdb),
		HealthCheckers:   []ports.HealthChecker{redisStorage.NewHealthCheck(rdb)},
		Mode:             gin.TestMode,
		Logger:           log,
	})

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &testApp{
		server:  server,
		gateway: gw,
		redis:   mr,
		ledger:  ledger,
		sigSvc:  sigSvc,
	}
}

type apiResponse struct {
	Status    int
	Data      map[string]any
	ErrorCode string
	Raw       []byte
}

func (a *testApp) do(t *testing.T, method, path string, body any, headers map[string]string) apiResponse {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case []byte:
		reader = bytes.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, a.server.URL+path, reader)
	require.NoError(t, err)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	out := apiResponse{Status: resp.StatusCode, Raw: raw}
	var envelope struct {
		Data      map[string]any `json:"data"`
		ErrorCode string         `json:"error_code"`
	}
	if json.Unmarshal(raw, &envelope) == nil {
		out.Data = envelope.Data
		out.ErrorCode = envelope.ErrorCode
	}
	return out
}

func (a *testApp) createPayment(t *testing.T, id string, amount float64) apiResponse {
	t.Helper()
	return a.do(t, http.MethodPost, "/api/v1/payments", map[string]any{
		"merchant_transaction_id": id,
		"amount":                  amount,
		"redirect_url":            "https://shop.example.com/orders/" + id,
	}, nil)
}

func (a *testApp) checkStatus(t *testing.T, id string) apiResponse {
	t.Helper()
	return a.do(t, http.MethodGet, "/api/v1/payments/"+id+"/status", nil, nil)
}

// webhook posts body signed with secret under the X-Verify header.
func (a *testApp) webhook(t *testing.T, body []byte, secret string) apiResponse {
	t.Helper()
	return a.do(t, http.MethodPost, "/api/v1/webhooks/gateway", body, map[string]string{
		"X-Verify": a.sigSvc.Sign(secret, body),
	})
}

func (a *testApp) login(t *testing.T) string {
	t.Helper()
	resp := a.do(t, http.MethodPost, "/api/v1/operator/login", map[string]string{
		"username": operatorName,
		"password": operatorPassword,
	}, nil)
	require.Equal(t, http.StatusOK, resp.Status, string(resp.Raw))
	token, _ := resp.Data["token"].(string)
	require.NotEmpty(t, token)
	return token
}

func webhookBody(id, state string) []byte {
	body, _ := json.Marshal(map[string]any{
		"event": "checkout.order.completed",
		"payload": map[string]any{
			"merchantOrderId": id,
			"orderId":         "OMO" + id,
			"state":           state,
		},
	})
	return body
}

// envelopedWebhookBody wraps the notification in the {"response": base64}
// envelope used by checksum-era integrations.
func envelopedWebhookBody(id, code string) []byte {
	inner, _ := json.Marshal(map[string]any{
		"success": true,
		"code":    code,
		"data": map[string]any{
			"merchantTransactionId": id,
		},
	})
	body, _ := json.Marshal(map[string]string{
		"response": base64.StdEncoding.EncodeToString(inner),
	})
	return body
}
