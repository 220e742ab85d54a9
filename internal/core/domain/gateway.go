package domain

import "encoding/json"

// PaymentIntent is the input to a gateway payment creation call.
type PaymentIntent struct {
	MerchantTransactionID string
	MerchantUserID        string
	AmountMinorUnits      int64
	RedirectURL           string
	CallbackURL           string
}

// RefundIntent is the input to a gateway refund call.
type RefundIntent struct {
	RefundID                      string
	OriginalMerchantTransactionID string
	AmountMinorUnits              int64
	CallbackURL                   string
}

// SignedRequest is a canonical payload ready to send.
type SignedRequest struct {
	Payload           []byte
	EncodedPayload    string
	APIPath           string
	VerificationValue string
}

// GatewayResponse is the parsed result of a successful (2xx) gateway call.
// RedirectURL is nil when no known response shape carried one.
type GatewayResponse struct {
	HTTPStatus    int             `json:"http_status"`
	Raw           json.RawMessage `json:"raw,omitempty"`
	RedirectURL   *string         `json:"redirect_url,omitempty"`
	GatewayStatus string          `json:"gateway_status,omitempty"`
	Status        OrderStatus     `json:"status"`
}
