package domain

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// AuthMode selects how outbound gateway calls are authenticated.
type AuthMode string

const (
	AuthModeNone          AuthMode = "none"
	AuthModeOAuth         AuthMode = "oauth"          // Authorization: O-Bearer <token>
	AuthModeBasic         AuthMode = "basic"          // Authorization: Basic base64(id:secret)
	AuthModeClientHeaders AuthMode = "client_headers" // X-Client-Id / X-Client-Secret
)

// ParseAuthMode validates a configured auth mode.
func ParseAuthMode(s string) (AuthMode, error) {
	switch m := AuthMode(strings.ToLower(strings.TrimSpace(s))); m {
	case AuthModeNone, AuthModeOAuth, AuthModeBasic, AuthModeClientHeaders:
		return m, nil
	}
	return "", &ConfigError{Field: "gateway.auth_mode", Reason: fmt.Sprintf("unsupported value %q", s)}
}

// SignatureMode selects how outbound payloads are signed.
type SignatureMode string

const (
	SignatureModeNone             SignatureMode = "none"
	SignatureModeChecksum         SignatureMode = "checksum"
	SignatureModeChecksumMerchant SignatureMode = "checksum_merchant"
)

// ParseSignatureMode validates a configured signature mode.
func ParseSignatureMode(s string) (SignatureMode, error) {
	switch m := SignatureMode(strings.ToLower(strings.TrimSpace(s))); m {
	case SignatureModeNone, SignatureModeChecksum, SignatureModeChecksumMerchant:
		return m, nil
	}
	return "", &ConfigError{Field: "gateway.signature_mode", Reason: fmt.Sprintf("unsupported value %q", s)}
}

// APIVersion selects the request body layout and default endpoint paths.
type APIVersion string

const (
	APIVersionV1 APIVersion = "v1" // base64 "request" envelope, checksum era
	APIVersionV2 APIVersion = "v2" // plain JSON checkout API
)

// ParseAPIVersion validates a configured API version.
func ParseAPIVersion(s string) (APIVersion, error) {
	switch v := APIVersion(strings.ToLower(strings.TrimSpace(s))); v {
	case APIVersionV1, APIVersionV2:
		return v, nil
	}
	return "", &ConfigError{Field: "gateway.api_version", Reason: fmt.Sprintf("unsupported value %q", s)}
}

// Credentials is the gateway client identity. It is built once at startup and
// passed by value; nothing mutates it afterwards.
type Credentials struct {
	ClientID      string
	ClientSecret  string
	ClientVersion string
	MerchantID    string
	BaseURL       string
	TokenURL      string
	SaltKey       string
	SaltIndex     string
}

// Validate checks that the fields required by the selected modes are present.
func (c Credentials) Validate(auth AuthMode, sig SignatureMode) error {
	if c.BaseURL == "" {
		return &ConfigError{Field: "gateway.base_url", Reason: "required"}
	}
	if _, err := url.ParseRequestURI(c.BaseURL); err != nil {
		return &ConfigError{Field: "gateway.base_url", Reason: "not a valid URL", Err: err}
	}

	switch auth {
	case AuthModeOAuth, AuthModeBasic, AuthModeClientHeaders:
		if c.ClientID == "" {
			return &ConfigError{Field: "gateway.client_id", Reason: "required for auth mode " + string(auth)}
		}
		if c.ClientSecret == "" {
			return &ConfigError{Field: "gateway.client_secret", Reason: "required for auth mode " + string(auth)}
		}
	}

	switch sig {
	case SignatureModeChecksum, SignatureModeChecksumMerchant:
		if c.SaltKey == "" {
			return &ConfigError{Field: "gateway.salt_key", Reason: "required for signature mode " + string(sig)}
		}
		if c.SaltIndex == "" {
			return &ConfigError{Field: "gateway.salt_index", Reason: "required for signature mode " + string(sig)}
		}
	}
	if sig == SignatureModeChecksumMerchant && c.MerchantID == "" {
		return &ConfigError{Field: "gateway.merchant_id", Reason: "required for signature mode " + string(sig)}
	}
	return nil
}

// CachedToken is an access token together with its absolute expiry.
type CachedToken struct {
	Value     string
	ExpiresAt time.Time
}

// FreshFor reports whether the token remains valid for more than margin after now.
func (t *CachedToken) FreshFor(now time.Time, margin time.Duration) bool {
	return t != nil && t.Value != "" && t.ExpiresAt.Sub(now) > margin
}
