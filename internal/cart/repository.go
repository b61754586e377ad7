package cart

import (
	"context"

	"github.com/fekuna/omnipos-stock-service/internal/model"
)

type Repository interface {
	// CreateDraft inserts c unless the technician already holds a draft and
	// reports whether a row was written.
	CreateDraft(ctx context.Context, c *model.Cart) (bool, error)
	GetDraft(ctx context.Context, technicianID string) (*model.Cart, error)
	LockDraft(ctx context.Context, technicianID string) (*model.Cart, error)
	LockByID(ctx context.Context, id string) (*model.Cart, error)
	UpdateCart(ctx context.Context, c *model.Cart) error

	ListLines(ctx context.Context, cartID string) ([]model.CartLine, error)
	GetLine(ctx context.Context, id string) (*model.CartLine, error)
	GetLineByArticle(ctx context.Context, cartID, articleID string) (*model.CartLine, error)
	InsertLine(ctx context.Context, l *model.CartLine) error
	UpdateLine(ctx context.Context, l *model.CartLine) error
	DeleteLine(ctx context.Context, id string) error
	DeleteLines(ctx context.Context, cartID string) (int64, error)
}
