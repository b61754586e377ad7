package stock

import (
	"context"
	"time"

	"github.com/fekuna/omnipos-stock-service/internal/model"
	"github.com/fekuna/omnipos-stock-service/internal/stock/dto"
)

type Repository interface {
	// Stock levels
	// LockLevel creates the row when missing and locks it until the transaction ends.
	LockLevel(ctx context.Context, key model.StockKey, now time.Time) (*model.StockLevel, error)
	ListLevels(ctx context.Context, technicianID string, includeZero bool) ([]model.StockLevel, error)
	UpdateLevel(ctx context.Context, level *model.StockLevel) error

	// Movements
	InsertMovement(ctx context.Context, m *model.StockMovement) error
	GetMovement(ctx context.Context, id string) (*model.StockMovement, error)
	ListMovements(ctx context.Context, filters *dto.MovementFilters) ([]model.StockMovement, int, error)
	// ClaimEvent records an applied event key and reports false when it was already there.
	ClaimEvent(ctx context.Context, key string, now time.Time) (bool, error)

	// Thresholds and alerts
	LockThreshold(ctx context.Context, key model.StockKey) (*model.Threshold, error)
	InsertThreshold(ctx context.Context, th *model.Threshold) error
	UpdateThreshold(ctx context.Context, th *model.Threshold) error
	InsertAlert(ctx context.Context, a *model.ThresholdAlert) error
	LockAlert(ctx context.Context, id string) (*model.ThresholdAlert, error)
	UpdateAlert(ctx context.Context, a *model.ThresholdAlert) error
	ListAlerts(ctx context.Context, filters *dto.AlertFilters) ([]model.ThresholdAlert, error)
}
