package handler

import (
	"payment-bridge/internal/adapter/http/middleware"
	"payment-bridge/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const maxRequestBody = 1 << 20

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	PaymentSvc       ports.PaymentService
	WebhookSvc       ports.WebhookService
	AuthSvc          ports.OperatorAuthService
	TokenSvc         ports.TokenService
	SignatureHeaders []string
	RateLimitStore   ports.RateLimitStore // nil = rate limiting disabled
	AuditSvc         ports.AuditService   // nil = audit logging disabled
	HealthCheckers   []ports.HealthChecker
	Mode             string // gin mode, defaults to release
	Logger           zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	mode := deps.Mode
	if mode == "" {
		mode = gin.ReleaseMode
	}
	gin.SetMode(mode)
	r := gin.New()

	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(maxRequestBody))
	if deps.AuditSvc != nil {
		r.Use(middleware.AuditLog(deps.AuditSvc))
	}

	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	swagger := r.Group("/swagger")
	{
		swagger.GET("", SwaggerUI)
		swagger.GET("/spec", SwaggerSpec)
	}

	rules := middleware.DefaultRateLimitRules()
	rl := func(group string) gin.HandlerFunc {
		rule, ok := rules[group]
		if deps.RateLimitStore == nil || !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rule, deps.Logger)
	}

	v1 := r.Group("/api/v1")

	// Merchant backend and gateway facing routes.
	paymentHandler := NewPaymentHandler(deps.PaymentSvc)
	v1.POST("/payments", rl("payments_create"), paymentHandler.CreatePayment)
	v1.GET("/payments/:id/status", rl("payments_status"), paymentHandler.CheckStatus)

	webhookHandler := NewWebhookHandler(deps.WebhookSvc, deps.SignatureHeaders, deps.Logger)
	v1.POST("/webhooks/gateway", rl("webhook"), webhookHandler.Gateway)

	callbackHandler := NewCallbackHandler(deps.PaymentSvc, deps.Logger)
	v1.GET("/callbacks/redirect", rl("callback"), callbackHandler.Redirect)
	v1.POST("/callbacks/redirect", rl("callback"), callbackHandler.Redirect)

	// Operator console.
	authHandler := NewAuthHandler(deps.AuthSvc)
	v1.POST("/operator/login", rl("operator_login"), authHandler.Login)

	jwtAuth := middleware.JWTAuth(deps.TokenSvc, deps.Logger)
	operator := v1.Group("/payments", jwtAuth, rl("operator"))
	{
		operator.GET("/:id", paymentHandler.GetOrder)
		operator.POST("/:id/refund", rl("payments_refund"), paymentHandler.Refund)
	}

	return r
}
