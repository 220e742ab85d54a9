package handler

import (
	"payment-bridge/internal/adapter/http/dto"
	"payment-bridge/internal/adapter/http/middleware"
	"payment-bridge/internal/core/domain"
	"payment-bridge/internal/core/ports"
	"payment-bridge/pkg/apperror"
	"payment-bridge/pkg/response"

	"github.com/gin-gonic/gin"
)

// PaymentHandler handles the merchant payment endpoints.
type PaymentHandler struct {
	paymentSvc ports.PaymentService
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(paymentSvc ports.PaymentService) *PaymentHandler {
	return &PaymentHandler{paymentSvc: paymentSvc}
}

// CreatePayment handles POST /api/v1/payments.
func (h *PaymentHandler) CreatePayment(c *gin.Context) {
	var req dto.CreatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}
	c.Set(middleware.CtxResourceID, req.MerchantTransactionID)

	result, err := h.paymentSvc.CreatePayment(c.Request.Context(), ports.CreatePaymentRequest{
		MerchantTransactionID: req.MerchantTransactionID,
		MerchantUserID:        req.MerchantUserID,
		Amount:                req.Amount,
		RedirectURL:           req.RedirectURL,
		CallbackURL:           req.CallbackURL,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	resp := dto.CreatePaymentResponse{
		MerchantTransactionID: result.Order.MerchantTransactionID,
		AmountMinorUnits:      result.Order.AmountMinorUnits,
		Status:                string(result.Order.Status),
		RedirectURL:           result.RedirectURL,
		Replayed:              result.Replayed,
		CreatedAt:             result.Order.CreatedAt,
	}
	if result.Gateway != nil {
		resp.GatewayStatus = result.Gateway.GatewayStatus
		resp.GatewayResponse = result.Gateway.Raw
	}
	if result.Replayed {
		response.OK(c, resp)
		return
	}
	response.Created(c, resp)
}

// CheckStatus handles GET /api/v1/payments/:id/status.
func (h *PaymentHandler) CheckStatus(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	result, err := h.paymentSvc.CheckStatus(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	if result.Outcome == domain.ReconcileNotFound {
		response.Error(c, apperror.ErrNotFound("order"))
		return
	}
	response.OK(c, toReconcileResponse(result))
}

// GetOrder handles GET /api/v1/payments/:id.
func (h *PaymentHandler) GetOrder(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	order, err := h.paymentSvc.GetOrder(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.OrderResponse{
		MerchantTransactionID: order.MerchantTransactionID,
		AmountMinorUnits:      order.AmountMinorUnits,
		Status:                string(order.Status),
		CreatedAt:             order.CreatedAt,
		UpdatedAt:             order.UpdatedAt,
		LastGatewayPayload:    order.LastGatewayPayload,
	})
}

// Refund handles POST /api/v1/payments/:id/refund.
func (h *PaymentHandler) Refund(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req dto.RefundRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, bindError(err))
			return
		}
	}
	dto.SanitizeStruct(&req)

	result, err := h.paymentSvc.Refund(c.Request.Context(), ports.RefundRequest{
		MerchantTransactionID: id,
		Amount:                req.Amount,
		Reason:                req.Reason,
		RequestedBy:           c.GetString(middleware.CtxOperator),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	resp := dto.RefundResponse{
		RefundID:              result.RefundID,
		MerchantTransactionID: result.MerchantTransactionID,
		AmountMinorUnits:      result.AmountMinorUnits,
	}
	if result.Gateway != nil {
		resp.GatewayStatus = result.Gateway.GatewayStatus
		resp.GatewayResponse = result.Gateway.Raw
	}
	response.Created(c, resp)
}

func toReconcileResponse(r *domain.ReconcileResult) dto.ReconcileResponse {
	return dto.ReconcileResponse{
		MerchantTransactionID: r.MerchantTransactionID,
		Status:                string(r.Status),
		ReportedStatus:        string(r.ReportedStatus),
		Outcome:               string(r.Outcome),
	}
}

// pathID reads and checks the :id path parameter, writing the error response
// itself when the id is unusable.
func pathID(c *gin.Context) (string, bool) {
	id := c.Param("id")
	if len(id) > domain.MaxMerchantTransactionIDLen || !dto.IsSafeID(id) {
		response.Error(c, apperror.Validation("invalid merchant transaction id"))
		return "", false
	}
	return id, true
}
