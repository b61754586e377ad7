package reservation

import (
	"context"

	"github.com/fekuna/omnipos-stock-service/internal/model"
	"github.com/fekuna/omnipos-stock-service/internal/reservation/dto"
)

// UseCase books stock ahead of a scheduled job. Only an APPROVED
// reservation holds quantity on the stock level.
type UseCase interface {
	Create(ctx context.Context, input *dto.CreateInput) (*model.Reservation, error)
	Approve(ctx context.Context, reservationID, approverID string) (*model.Reservation, error)
	Cancel(ctx context.Context, reservationID, actorID string) (*model.Reservation, error)
	Get(ctx context.Context, reservationID string) (*model.Reservation, error)
	List(ctx context.Context, filters *dto.Filters) ([]model.Reservation, error)
}
