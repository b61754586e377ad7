package order

import (
	"context"

	"github.com/fekuna/omnipos-stock-service/internal/auth"
	"github.com/fekuna/omnipos-stock-service/internal/model"
	"github.com/fekuna/omnipos-stock-service/internal/order/dto"
)

// UseCase drives SUBMITTED → {APPROVED, PARTIAL, REFUSED} → PREPARED →
// HANDED_OVER → CLOSED. Each transition is one atomic unit.
type UseCase interface {
	CreateFromCart(ctx context.Context, cart *model.Cart, priority model.OrderPriority) (*model.Order, error)

	Get(ctx context.Context, orderID string) (*model.Order, error)
	GetForUser(ctx context.Context, user auth.UserContext, orderID string) (*model.Order, error)
	GetDemandsQueue(ctx context.Context, filters *dto.QueueFilters) ([]model.Order, error)

	ApproveFull(ctx context.Context, orderID, approverID, notes string) (*model.Order, error)
	ApprovePartial(ctx context.Context, input *dto.ApprovePartialInput) (*model.Order, error)
	Refuse(ctx context.Context, orderID, actorID, reason string) (*model.Order, error)
	Prepare(ctx context.Context, orderID, preparerID string) (*dto.PrepareResult, error)
	IssuePIN(ctx context.Context, orderID, actorID string) (*dto.IssuedPIN, error)
	Handover(ctx context.Context, input *dto.HandoverInput) (*model.Order, error)
	Close(ctx context.Context, orderID, actorID, reason string) (*model.Order, error)
}
