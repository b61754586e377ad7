package reservation

import (
	"context"

	"github.com/fekuna/omnipos-stock-service/internal/model"
	"github.com/fekuna/omnipos-stock-service/internal/reservation/dto"
)

type Repository interface {
	Create(ctx context.Context, r *model.Reservation) error
	GetByID(ctx context.Context, id string) (*model.Reservation, error)
	LockByID(ctx context.Context, id string) (*model.Reservation, error)
	Update(ctx context.Context, r *model.Reservation) error
	List(ctx context.Context, filters *dto.Filters) ([]model.Reservation, error)
}
