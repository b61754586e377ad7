package article

import (
	"context"

	"github.com/fekuna/omnipos-stock-service/internal/model"
)

// Repository reads the article catalog, which is owned by another service.
type Repository interface {
	GetByID(ctx context.Context, id string) (*model.Article, error)
	GetByIDs(ctx context.Context, ids []string) ([]model.Article, error)
}
