package pin

import (
	"context"
	"time"

	"github.com/fekuna/omnipos-stock-service/internal/model"
)

type Repository interface {
	Create(ctx context.Context, p *model.PINCode) error
	// FindUnused returns the unused PIN of an order matching pinHash, expired or not.
	FindUnused(ctx context.Context, orderID, technicianID, pinHash string) (*model.PINCode, error)
	MarkUsed(ctx context.Context, id string, at time.Time) error
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}
