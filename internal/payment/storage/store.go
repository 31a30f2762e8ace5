package storage

import (
	"context"
	"time"

	"ms-lunch/internal/models"
)

type Store interface {
	InitializePayments(ctx context.Context, groupID string, now time.Time) (int, error)
	ListPayments(ctx context.Context, groupID string) ([]models.Payment, error)
	GetPayment(ctx context.Context, groupID, userID string) (*models.Payment, error)
	UpdatePayment(ctx context.Context, p *models.Payment) error
	MarkPending(ctx context.Context, groupID, userID string, now time.Time) (bool, error)

	HealthCheck(ctx context.Context) error
}
