package handler

import (
	"io"
	"net/http"

	"payment-bridge/internal/adapter/http/middleware"
	"payment-bridge/internal/core/domain"
	"payment-bridge/internal/core/ports"
	"payment-bridge/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// WebhookHandler receives gateway notifications. The body is passed on
// untouched because the signature covers the exact bytes sent.
type WebhookHandler struct {
	webhookSvc       ports.WebhookService
	signatureHeaders []string
	log              zerolog.Logger
}

// NewWebhookHandler creates a WebhookHandler. signatureHeaders are tried in
// order and the first non-empty value is used.
func NewWebhookHandler(webhookSvc ports.WebhookService, signatureHeaders []string, log zerolog.Logger) *WebhookHandler {
	return &WebhookHandler{webhookSvc: webhookSvc, signatureHeaders: signatureHeaders, log: log}
}

// Gateway handles POST /api/v1/webhooks/gateway.
func (h *WebhookHandler) Gateway(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		response.Error(c, bindError(err))
		return
	}

	result, err := h.webhookSvc.HandleGatewayWebhook(c.Request.Context(), body, h.signature(c.Request.Header))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Set(middleware.CtxResourceID, result.MerchantTransactionID)

	if result.Outcome == domain.ReconcileNotFound {
		h.log.Warn().Str("order_id", result.MerchantTransactionID).Msg("webhook for unknown order acknowledged")
	}
	response.OK(c, toReconcileResponse(result))
}

func (h *WebhookHandler) signature(header http.Header) string {
	for _, name := range h.signatureHeaders {
		if v := header.Get(name); v != "" {
			return v
		}
	}
	return ""
}
