package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"payment-bridge/internal/core/domain"
	"payment-bridge/internal/core/ports/mocks"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"
)

func TestAuditService_Log_PersistsToRepo(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockRepo := mocks.NewMockAuditRepository(ctrl)
	svc := NewAuditService(mockRepo, newTestLogger())

	done := make(chan *domain.AuditLog, 1)
	mockRepo.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, log *domain.AuditLog) error {
			done <- log
			return nil
		},
	)

	svc.Log(context.Background(), &domain.AuditLog{
		Action:       domain.AuditActionCreatePayment,
		ResourceType: "order",
		ResourceID:   "ORDER1",
		IPAddress:    "127.0.0.1",
	})

	select {
	case got := <-done:
		assert.Equal(t, domain.AuditActionCreatePayment, got.Action)
		assert.NotEqual(t, uuid.Nil, got.ID)
		assert.False(t, got.CreatedAt.IsZero())
		assert.Equal(t, "anonymous", got.Actor)
	case <-time.After(2 * time.Second):
		t.Fatal("audit log not persisted in time")
	}
}

func TestAuditService_Log_SurvivesCancelledRequest(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockRepo := mocks.NewMockAuditRepository(ctrl)
	svc := NewAuditService(mockRepo, newTestLogger())

	done := make(chan error, 1)
	mockRepo.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, log *domain.AuditLog) error {
			done <- ctx.Err()
			return errors.New("db down")
		},
	)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	svc.Log(ctx, &domain.AuditLog{Actor: "ops", Action: domain.AuditActionRefund, ResourceType: "order"})

	select {
	case err := <-done:
		assert.NoError(t, err, "persist context must not inherit request cancellation")
	case <-time.After(2 * time.Second):
		t.Fatal("audit log not persisted in time")
	}
}

func TestAuditService_Log_NilRepo(t *testing.T) {
	svc := NewAuditService(nil, newTestLogger())

	assert.NotPanics(t, func() {
		svc.Log(context.Background(), &domain.AuditLog{
			Actor:        "ops",
			Action:       domain.AuditActionLogin,
			ResourceType: "session",
			IPAddress:    "127.0.0.1",
		})
	})
	time.Sleep(20 * time.Millisecond) // let goroutine run
}
