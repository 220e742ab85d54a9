package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditAction represents the type of audited action.
type AuditAction string

const (
	AuditActionCreatePayment     AuditAction = "CREATE_PAYMENT"
	AuditActionRefund            AuditAction = "REFUND"
	AuditActionWebhook           AuditAction = "WEBHOOK"
	AuditActionRedirectCallback  AuditAction = "REDIRECT_CALLBACK"
	AuditActionReconcile         AuditAction = "RECONCILE"
	AuditActionReconcileConflict AuditAction = "RECONCILE_CONFLICT"
	AuditActionLogin             AuditAction = "LOGIN"
)

// AuditLog records a single audited action in the system.
type AuditLog struct {
	ID           uuid.UUID   `json:"id"`
	Actor        string      `json:"actor"` // operator username, "gateway" or "anonymous"
	Action       AuditAction `json:"action"`
	ResourceType string      `json:"resource_type"`
	ResourceID   string      `json:"resource_id,omitempty"`
	Details      string      `json:"details,omitempty"` // JSON string
	IPAddress    string      `json:"ip_address"`
	CreatedAt    time.Time   `json:"created_at"`
}
