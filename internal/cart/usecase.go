package cart

import (
	"context"

	"github.com/fekuna/omnipos-stock-service/internal/cart/dto"
	"github.com/fekuna/omnipos-stock-service/internal/model"
)

// UseCase manages the single draft cart a technician composes before
// submitting it as an order.
type UseCase interface {
	GetOrCreateDraft(ctx context.Context, technicianID string) (*model.Cart, error)
	AddLine(ctx context.Context, input *dto.AddLineInput) (*model.CartLine, error)
	SetLineQuantity(ctx context.Context, input *dto.SetLineQuantityInput) (*model.CartLine, error)
	RemoveLine(ctx context.Context, technicianID, lineID string) error
	Clear(ctx context.Context, technicianID string) error
	GetSummary(ctx context.Context, technicianID string) (*dto.CartSummary, error)
	Submit(ctx context.Context, input *dto.SubmitInput) (*model.Order, error)
}
