package pin

import (
	"context"

	"github.com/fekuna/omnipos-stock-service/internal/model"
)

type UseCase interface {
	// Issue creates a PIN for the order and returns it in clear text once.
	Issue(ctx context.Context, orderID, technicianID string) (string, *model.PINCode, error)
	// Verify fails with apperror.ErrInvalidPin or apperror.ErrExpiredPin.
	Verify(ctx context.Context, orderID, technicianID, pin string) (*model.PINCode, error)
	MarkUsed(ctx context.Context, p *model.PINCode) error
	CleanupExpired(ctx context.Context) (int64, error)
}
