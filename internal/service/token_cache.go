package service

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync/atomic"
	"time"

	"payment-bridge/internal/core/domain"
	"payment-bridge/pkg/logger"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultTokenSafetyMargin = 30 * time.Second
	DefaultTokenTTL          = 600 * time.Second
	DefaultAuthTimeout       = 10 * time.Second

	preprodTokenURL    = "https://api-preprod.phonepe.com/apis/identity-manager/v1/oauth/token"
	productionTokenURL = "https://api.phonepe.com/apis/identity-manager/v1/oauth/token"

	// expires_at values above this are epoch milliseconds.
	epochMillisThreshold = 1e12
)

var sandboxHostPattern = regexp.MustCompile(`(?i)preprod|pg-sandbox|pre-prod|sandbox`)

// ResolveTokenURL returns the identity endpoint matching the environment of baseURL.
func ResolveTokenURL(baseURL string) string {
	if sandboxHostPattern.MatchString(baseURL) {
		return preprodTokenURL
	}
	return productionTokenURL
}

// TokenCache implements ports.AccessTokenProvider. Reads are lock-free; at most
// one refresh is in flight and concurrent callers share its result.
type TokenCache struct {
	creds      domain.Credentials
	tokenURL   string
	httpClient HTTPClient
	margin     time.Duration
	defaultTTL time.Duration
	timeout    time.Duration
	now        func() time.Time

	current atomic.Pointer[domain.CachedToken]
	flight  singleflight.Group
	log     zerolog.Logger
}

// TokenCacheOption customises a TokenCache.
type TokenCacheOption func(*TokenCache)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) TokenCacheOption {
	return func(c *TokenCache) { c.now = now }
}

func WithSafetyMargin(d time.Duration) TokenCacheOption {
	return func(c *TokenCache) { c.margin = d }
}

func WithDefaultTokenTTL(d time.Duration) TokenCacheOption {
	return func(c *TokenCache) { c.defaultTTL = d }
}

func WithAuthTimeout(d time.Duration) TokenCacheOption {
	return func(c *TokenCache) { c.timeout = d }
}

// NewTokenCache creates a token cache for creds. The token URL is creds.TokenURL,
// or derived from creds.BaseURL when empty.
func NewTokenCache(creds domain.Credentials, httpClient HTTPClient, log zerolog.Logger, opts ...TokenCacheOption) *TokenCache {
	c := &TokenCache{
		creds:      creds,
		tokenURL:   creds.TokenURL,
		httpClient: httpClient,
		margin:     DefaultTokenSafetyMargin,
		defaultTTL: DefaultTokenTTL,
		timeout:    DefaultAuthTimeout,
		now:        time.Now,
		log:        logger.Component(log, "token_cache"),
	}
	if c.tokenURL == "" {
		c.tokenURL = ResolveTokenURL(creds.BaseURL)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetValidToken returns a token valid for longer than the safety margin,
// refreshing it first if needed. A failed refresh never yields the stale token.
func (c *TokenCache) GetValidToken(ctx context.Context) (string, error) {
	if tok := c.current.Load(); tok.FreshFor(c.now(), c.margin) {
		return tok.Value, nil
	}

	ch := c.flight.DoChan("token", func() (any, error) {
		// A caller that loaded the stale pointer just before the previous
		// flight stored a new token must not start another refresh.
		if tok := c.current.Load(); tok.FreshFor(c.now(), c.margin) {
			return tok, nil
		}
		tok, err := c.refresh(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		c.current.Store(tok)
		return tok, nil
	})

	select {
	case <-ctx.Done():
		return "", &domain.AuthError{Reason: "waiting for token refresh", Err: ctx.Err()}
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(*domain.CachedToken).Value, nil
	}
}

// Invalidate drops the cached token so the next call refreshes.
func (c *TokenCache) Invalidate() {
	c.current.Store(nil)
}

func (c *TokenCache) refresh(ctx context.Context) (*domain.CachedToken, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	form := url.Values{}
	form.Set("client_id", c.creds.ClientID)
	form.Set("client_secret", c.creds.ClientSecret)
	form.Set("grant_type", "client_credentials")
	form.Set("client_version", c.clientVersion())

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, &domain.AuthError{Reason: "building token request", Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Error().Err(err).Str("token_url", c.tokenURL).Msg("token request failed")
		return nil, &domain.AuthError{Reason: "token endpoint unreachable", Err: err}
	}
	body, err := readBody(resp)
	if err != nil {
		return nil, &domain.AuthError{Reason: "reading token response", Err: err}
	}
	if !isSuccess(resp.StatusCode) {
		c.log.Error().
			Int("upstream_status", resp.StatusCode).
			Str("client_id", logger.Mask(c.creds.ClientID)).
			Msg("token endpoint rejected credentials")
		return nil, &domain.AuthError{
			Reason: fmt.Sprintf("token endpoint returned %d", resp.StatusCode),
			Err:    &domain.GatewayError{Operation: "fetch_token", StatusCode: resp.StatusCode, Body: string(body)},
		}
	}

	tok, err := c.parseToken(body)
	if err != nil {
		return nil, err
	}

	c.log.Info().Time("expires_at", tok.ExpiresAt).Msg("gateway access token refreshed")
	return tok, nil
}

func (c *TokenCache) parseToken(body []byte) (*domain.CachedToken, error) {
	doc := parseJSONDoc(body)
	if doc == nil {
		return nil, &domain.AuthError{Reason: "token response is not a JSON object"}
	}

	value := doc.firstString("access_token", "token", "data.access_token", "data.token")
	if value == "" {
		return nil, &domain.AuthError{Reason: "token missing"}
	}

	now := c.now()
	expiresAt := c.expiry(doc, now)
	if expiresAt.Sub(now) <= c.margin {
		return nil, &domain.AuthError{Reason: "token expires within safety margin"}
	}

	return &domain.CachedToken{Value: value, ExpiresAt: expiresAt}, nil
}

// expiry prefers an absolute expires_at, then a relative expires_in, first at
// the top level and then under "data".
func (c *TokenCache) expiry(doc jsonDoc, now time.Time) time.Time {
	for _, prefix := range []string{"", "data."} {
		if at, ok := doc.number(prefix + "expires_at"); ok && at > 0 {
			if at > epochMillisThreshold {
				return time.UnixMilli(int64(at))
			}
			return time.Unix(int64(at), 0)
		}
		if in, ok := doc.number(prefix + "expires_in"); ok && in > 0 {
			return now.Add(time.Duration(in * float64(time.Second)))
		}
	}
	return now.Add(c.defaultTTL)
}

func (c *TokenCache) clientVersion() string {
	if c.creds.ClientVersion == "" {
		return "1"
	}
	return c.creds.ClientVersion
}
