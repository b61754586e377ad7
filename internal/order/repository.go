package order

import (
	"context"

	"github.com/fekuna/omnipos-stock-service/internal/model"
)

type Repository interface {
	// Create inserts the order together with its lines.
	Create(ctx context.Context, o *model.Order) error
	GetByID(ctx context.Context, id string) (*model.Order, error)
	LockByID(ctx context.Context, id string) (*model.Order, error)
	Update(ctx context.Context, o *model.Order) error
	UpdateLine(ctx context.Context, l *model.OrderLine) error
	// ListByStatus orders by priority (highest first) then creation time.
	ListByStatus(ctx context.Context, statuses []model.OrderStatus, technicianID string) ([]model.Order, error)
}
