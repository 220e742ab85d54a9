package handler

import (
	"fmt"
	"net/http"

	"payment-bridge/internal/adapter/http/dto"
	"payment-bridge/internal/adapter/http/middleware"
	"payment-bridge/internal/core/domain"
	"payment-bridge/internal/core/ports"
	"payment-bridge/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// callbackIDKeys are the parameter names the gateway uses for the order id on
// the browser redirect.
var callbackIDKeys = []string{"merchantTransactionId", "merchantOrderId", "transactionId", "orderId"}

// CallbackHandler serves the page the customer's browser lands on after
// checkout. It confirms the outcome with the gateway before answering.
type CallbackHandler struct {
	paymentSvc ports.PaymentService
	log        zerolog.Logger
}

// NewCallbackHandler creates a new CallbackHandler.
func NewCallbackHandler(paymentSvc ports.PaymentService, log zerolog.Logger) *CallbackHandler {
	return &CallbackHandler{paymentSvc: paymentSvc, log: log}
}

// Redirect handles GET and POST /api/v1/callbacks/redirect.
func (h *CallbackHandler) Redirect(c *gin.Context) {
	id := callbackOrderID(c)
	if id == "" || len(id) > domain.MaxMerchantTransactionIDLen || !dto.IsSafeID(id) {
		response.Text(c, http.StatusBadRequest, "Missing or invalid order reference.")
		return
	}
	c.Set(middleware.CtxResourceID, id)

	result, err := h.paymentSvc.CheckStatus(c.Request.Context(), id)
	if err != nil {
		h.log.Error().Err(err).Str("order_id", id).Msg("redirect callback status check failed")
		response.Text(c, http.StatusBadGateway,
			fmt.Sprintf("We could not confirm payment %s right now. Please check again shortly.", id))
		return
	}
	if result.Outcome == domain.ReconcileNotFound {
		response.Text(c, http.StatusNotFound, fmt.Sprintf("Payment %s was not found.", id))
		return
	}

	response.Text(c, http.StatusOK, fmt.Sprintf("Payment %s: %s", id, statusMessage(result.Status)))
}

func callbackOrderID(c *gin.Context) string {
	for _, key := range callbackIDKeys {
		if v := c.Query(key); v != "" {
			return v
		}
		if v := c.PostForm(key); v != "" {
			return v
		}
	}
	return ""
}

func statusMessage(s domain.OrderStatus) string {
	switch s {
	case domain.OrderStatusSuccess:
		return "payment successful."
	case domain.OrderStatusFailed:
		return "payment failed."
	case domain.OrderStatusPending:
		return "payment is still being processed."
	}
	return "payment status is not yet known."
}
