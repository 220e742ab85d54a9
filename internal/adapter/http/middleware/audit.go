package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	"payment-bridge/internal/core/domain"
	"payment-bridge/internal/core/ports"

	"github.com/gin-gonic/gin"
)

// ActorGateway is recorded for calls that arrive from the payment gateway.
const ActorGateway = "gateway"

type auditRoute struct {
	action       domain.AuditAction
	resourceType string
	actor        string // fixed actor, empty = operator from context
}

// auditRoutes is keyed by method plus the registered route pattern.
var auditRoutes = map[string]auditRoute{
	"POST /api/v1/payments":            {domain.AuditActionCreatePayment, "order", ""},
	"GET /api/v1/payments/:id/status":  {domain.AuditActionReconcile, "order", ""},
	"POST /api/v1/payments/:id/refund": {domain.AuditActionRefund, "order", ""},
	"POST /api/v1/webhooks/gateway":    {domain.AuditActionWebhook, "order", ActorGateway},
	"GET /api/v1/callbacks/redirect":   {domain.AuditActionRedirectCallback, "order", ActorGateway},
	"POST /api/v1/callbacks/redirect":  {domain.AuditActionRedirectCallback, "order", ActorGateway},
	"POST /api/v1/operator/login":      {domain.AuditActionLogin, "session", ""},
}

// AuditLog records every successful call to a state-changing route. Handlers
// that learn the resource id from the body put it under CtxResourceID.
func AuditLog(auditSvc ports.AuditService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		status := c.Writer.Status()
		if status < http.StatusOK || status >= http.StatusMultipleChoices {
			return
		}
		route, ok := auditRoutes[c.Request.Method+" "+c.FullPath()]
		if !ok {
			return
		}

		resourceID := c.Param("id")
		if resourceID == "" {
			resourceID = c.GetString(CtxResourceID)
		}
		actor := route.actor
		if actor == "" {
			actor = c.GetString(CtxOperator)
		}

		details, _ := json.Marshal(map[string]any{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     status,
			"request_id": c.GetString(CtxRequestID),
		})

		auditSvc.Log(c.Request.Context(), &domain.AuditLog{
			Actor:        actor,
			Action:       route.action,
			ResourceType: route.resourceType,
			ResourceID:   resourceID,
			IPAddress:    c.ClientIP(),
			Details:      string(details),
			CreatedAt:    time.Now().UTC(),
		})
	}
}
