package domain

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrder_IsTerminal(t *testing.T) {
	tests := []struct {
		name   string
		status OrderStatus
		want   bool
	}{
		{"pending", OrderStatusPending, false},
		{"unknown", OrderStatusUnknown, false},
		{"success", OrderStatusSuccess, true},
		{"failed", OrderStatusFailed, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := &Order{Status: tt.status}
			assert.Equal(t, tt.want, o.IsTerminal())
		})
	}
}

func TestOrder_IsRefundable(t *testing.T) {
	assert.True(t, (&Order{Status: OrderStatusSuccess}).IsRefundable())
	assert.False(t, (&Order{Status: OrderStatusPending}).IsRefundable())
	assert.False(t, (&Order{Status: OrderStatusFailed}).IsRefundable())
}

func TestOrder_Clone(t *testing.T) {
	o := &Order{MerchantTransactionID: "ORDER1", LastGatewayPayload: json.RawMessage(`{"a":1}`)}
	cp := o.Clone()

	cp.LastGatewayPayload[2] = 'b'
	cp.Status = OrderStatusSuccess

	assert.Equal(t, `{"a":1}`, string(o.LastGatewayPayload))
	assert.Empty(t, o.Status)
	assert.Nil(t, (*Order)(nil).Clone())
}

func TestToMinorUnits(t *testing.T) {
	tests := []struct {
		amount float64
		want   int64
	}{
		{150.00, 15000},
		{1, 100},
		{0.01, 1},
		{10.555, 1056},
		{99.999, 10000},
		{0.004, 0},
		{19.99, 1999},
		{0.29, 29},
		{10_000_000_000, 1_000_000_000_000},
		{10_000_000_000.01, 0},
		{-10_000_000_000.01, 0},
		{1e300, 0},
		{math.Inf(1), 0},
		{math.NaN(), 0},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ToMinorUnits(tt.amount), "amount %v", tt.amount)
	}
}

func TestNormalizePayload(t *testing.T) {
	assert.Nil(t, NormalizePayload(nil))
	assert.Equal(t, `{"ok":true}`, string(NormalizePayload([]byte(`{"ok":true}`))))
	assert.Equal(t, `"<html>oops</html>"`, string(NormalizePayload([]byte(`<html>oops</html>`))))
	assert.Equal(t, `"a & b\nc"`, string(NormalizePayload([]byte("a & b\nc"))))
	assert.True(t, json.Valid(NormalizePayload([]byte(`upstream <error>`))))
}

func TestResolveTransition(t *testing.T) {
	tests := []struct {
		name     string
		current  OrderStatus
		reported OrderStatus
		next     OrderStatus
		outcome  TransitionOutcome
	}{
		{"pending to success", OrderStatusPending, OrderStatusSuccess, OrderStatusSuccess, TransitionApplied},
		{"pending to failed", OrderStatusPending, OrderStatusFailed, OrderStatusFailed, TransitionApplied},
		{"pending to unknown", OrderStatusPending, OrderStatusUnknown, OrderStatusUnknown, TransitionApplied},
		{"pending stays pending", OrderStatusPending, OrderStatusPending, OrderStatusPending, TransitionApplied},
		{"unknown to success", OrderStatusUnknown, OrderStatusSuccess, OrderStatusSuccess, TransitionApplied},
		{"unknown to failed", OrderStatusUnknown, OrderStatusFailed, OrderStatusFailed, TransitionApplied},
		{"unknown stays unknown", OrderStatusUnknown, OrderStatusUnknown, OrderStatusUnknown, TransitionApplied},
		{"unknown ignores pending", OrderStatusUnknown, OrderStatusPending, OrderStatusUnknown, TransitionIgnored},
		{"success ignores unknown", OrderStatusSuccess, OrderStatusUnknown, OrderStatusSuccess, TransitionIgnored},
		{"success ignores pending", OrderStatusSuccess, OrderStatusPending, OrderStatusSuccess, TransitionIgnored},
		{"success agrees", OrderStatusSuccess, OrderStatusSuccess, OrderStatusSuccess, TransitionApplied},
		{"success conflicts with failed", OrderStatusSuccess, OrderStatusFailed, OrderStatusSuccess, TransitionConflict},
		{"failed conflicts with success", OrderStatusFailed, OrderStatusSuccess, OrderStatusFailed, TransitionConflict},
		{"garbage ignored", OrderStatusPending, OrderStatus("BOGUS"), OrderStatusPending, TransitionIgnored},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, outcome := ResolveTransition(tt.current, tt.reported)
			assert.Equal(t, tt.next, next)
			assert.Equal(t, tt.outcome, outcome)
		})
	}
}

func TestParseGatewayStatus(t *testing.T) {
	tests := map[string]OrderStatus{
		"COMPLETED":        OrderStatusSuccess,
		"payment_success":  OrderStatusSuccess,
		"FAILED":           OrderStatusFailed,
		"PAYMENT_DECLINED": OrderStatusFailed,
		"PENDING":          OrderStatusPending,
		" PAYMENT_PENDING": OrderStatusPending,
		"":                 OrderStatusUnknown,
		"INTERNAL_ERROR":   OrderStatusUnknown,
	}

	for raw, want := range tests {
		assert.Equal(t, want, ParseGatewayStatus(raw), "raw %q", raw)
	}
}

func TestParseModes(t *testing.T) {
	auth, err := ParseAuthMode("OAuth")
	require.NoError(t, err)
	assert.Equal(t, AuthModeOAuth, auth)

	sig, err := ParseSignatureMode("checksum_merchant")
	require.NoError(t, err)
	assert.Equal(t, SignatureModeChecksumMerchant, sig)

	ver, err := ParseAPIVersion("V2")
	require.NoError(t, err)
	assert.Equal(t, APIVersionV2, ver)

	_, err = ParseAuthMode("kerberos")
	var cfgErr *ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "gateway.auth_mode", cfgErr.Field)

	_, err = ParseSignatureMode("md5")
	assert.Error(t, err)
	_, err = ParseAPIVersion("v9")
	assert.Error(t, err)
}

func TestCredentials_Validate(t *testing.T) {
	valid := Credentials{
		ClientID:     "client",
		ClientSecret: "secret",
		MerchantID:   "M1",
		BaseURL:      "https://api-preprod.phonepe.com/apis/pg-sandbox",
		SaltKey:      "salt",
		SaltIndex:    "1",
	}

	tests := []struct {
		name   string
		mutate func(c *Credentials)
		auth   AuthMode
		sig    SignatureMode
		field  string
	}{
		{"valid oauth", func(c *Credentials) {}, AuthModeOAuth, SignatureModeNone, ""},
		{"valid checksum merchant", func(c *Credentials) {}, AuthModeNone, SignatureModeChecksumMerchant, ""},
		{"missing base url", func(c *Credentials) { c.BaseURL = "" }, AuthModeOAuth, SignatureModeNone, "gateway.base_url"},
		{"bad base url", func(c *Credentials) { c.BaseURL = "not a url" }, AuthModeOAuth, SignatureModeNone, "gateway.base_url"},
		{"missing client id", func(c *Credentials) { c.ClientID = "" }, AuthModeBasic, SignatureModeNone, "gateway.client_id"},
		{"missing secret", func(c *Credentials) { c.ClientSecret = "" }, AuthModeClientHeaders, SignatureModeNone, "gateway.client_secret"},
		{"no client needed", func(c *Credentials) { c.ClientID = "" }, AuthModeNone, SignatureModeChecksum, ""},
		{"missing salt", func(c *Credentials) { c.SaltKey = "" }, AuthModeNone, SignatureModeChecksum, "gateway.salt_key"},
		{"missing salt index", func(c *Credentials) { c.SaltIndex = "" }, AuthModeNone, SignatureModeChecksum, "gateway.salt_index"},
		{"missing merchant", func(c *Credentials) { c.MerchantID = "" }, AuthModeNone, SignatureModeChecksumMerchant, "gateway.merchant_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid
			tt.mutate(&c)
			err := c.Validate(tt.auth, tt.sig)
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			var cfgErr *ConfigError
			require.True(t, errors.As(err, &cfgErr))
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}
}

func TestCachedToken_FreshFor(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	margin := 30 * time.Second

	assert.True(t, (&CachedToken{Value: "t", ExpiresAt: now.Add(31 * time.Second)}).FreshFor(now, margin))
	assert.False(t, (&CachedToken{Value: "t", ExpiresAt: now.Add(30 * time.Second)}).FreshFor(now, margin))
	assert.False(t, (&CachedToken{Value: "", ExpiresAt: now.Add(time.Hour)}).FreshFor(now, margin))
	assert.False(t, (*CachedToken)(nil).FreshFor(now, margin))
}

func TestGatewayError(t *testing.T) {
	rejected := &GatewayError{Operation: "create_payment", StatusCode: 400, Body: "bad"}
	assert.False(t, rejected.Transport())
	assert.Equal(t, "gateway create_payment: status 400: bad", rejected.Error())

	cause := errors.New("dial tcp: refused")
	transport := &GatewayError{Operation: "query_status", Cause: cause}
	assert.True(t, transport.Transport())
	assert.ErrorIs(t, transport, cause)
}

func TestIdempotencyKeys(t *testing.T) {
	assert.Equal(t, "create:ORDER1", BuildCreateIdempotencyKey("ORDER1"))

	a := BuildWebhookReplayKey([]byte(`{"a":1}`))
	b := BuildWebhookReplayKey([]byte(`{"a":2}`))
	assert.Len(t, a, 64)
	assert.NotEqual(t, a, b)
	assert.Equal(t, a, BuildWebhookReplayKey([]byte(`{"a":1}`)))
}
