package stock

import (
	"context"

	"github.com/fekuna/omnipos-stock-service/internal/model"
	"github.com/fekuna/omnipos-stock-service/internal/stock/dto"
	"github.com/shopspring/decimal"
)

// UseCase is the only way stock levels change. Every mutation runs in one
// atomic unit with its movement and audit event.
type UseCase interface {
	Issue(ctx context.Context, input *dto.IssueInput) (*model.StockMovement, error)
	Receive(ctx context.Context, input *dto.ReceiveInput) (*model.StockMovement, error)
	Adjust(ctx context.Context, input *dto.AdjustInput) (*model.StockMovement, error)
	Transfer(ctx context.Context, input *dto.TransferInput) (*dto.TransferResult, error)
	Reserve(ctx context.Context, input *dto.ReserveInput) (*model.StockLevel, error)
	Release(ctx context.Context, input *dto.ReserveInput) (*model.StockLevel, error)

	// LockLevels locks the given rows in (technician, article) order. Callers
	// touching several rows use it before any other write.
	LockLevels(ctx context.Context, keys []model.StockKey) error
	// Available locks one row and returns quantity - reserved.
	Available(ctx context.Context, key model.StockKey) (decimal.Decimal, error)
	// Level locks one row and returns it, creating an empty row if needed.
	Level(ctx context.Context, key model.StockKey) (*model.StockLevel, error)

	GetStock(ctx context.Context, technicianID string, includeZero bool) ([]dto.StockItem, error)
	ListMovements(ctx context.Context, filters *dto.MovementFilters) ([]model.StockMovement, int, error)
	VerifyMovement(ctx context.Context, movementID string) (bool, error)

	SetThreshold(ctx context.Context, input *dto.SetThresholdInput) (*model.Threshold, error)
	ListAlerts(ctx context.Context, filters *dto.AlertFilters) ([]model.ThresholdAlert, error)
	AcknowledgeAlert(ctx context.Context, alertID, actorID string) (*model.ThresholdAlert, error)
}
