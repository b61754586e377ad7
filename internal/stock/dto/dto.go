package dto

import (
	"time"

	"github.com/fekuna/omnipos-stock-service/internal/model"
	"github.com/shopspring/decimal"
)

type MovementFilters struct {
	TechnicianID  string
	ArticleID     string
	Reason        model.MovementReason
	LinkedOrderID string
	StartDate     *time.Time
	EndDate       *time.Time
	Page          int
	PageSize      int
}

type AlertFilters struct {
	TechnicianID string
	Acknowledged *bool
	Limit        int
}

// StockItem is the cached read view of one StockLevel.
type StockItem struct {
	TechnicianID string          `json:"technician_id"`
	ArticleID    string          `json:"article_id"`
	Quantity     decimal.Decimal `json:"quantity"`
	ReservedQty  decimal.Decimal `json:"reserved_qty"`
	Available    decimal.Decimal `json:"available"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

func NewStockItem(l *model.StockLevel) StockItem {
	return StockItem{
		TechnicianID: l.TechnicianID,
		ArticleID:    l.ArticleID,
		Quantity:     l.Quantity,
		ReservedQty:  l.ReservedQty,
		Available:    l.Available(),
		UpdatedAt:    l.UpdatedAt,
	}
}

type TransferResult struct {
	Out *model.StockMovement `json:"out"`
	In  *model.StockMovement `json:"in"`
}

// AlertEvent is published on the events topic when a threshold is breached.
type AlertEvent struct {
	EventID   string                `json:"event_id"`
	EventType string                `json:"event_type"`
	Payload   *model.ThresholdAlert `json:"payload"`
	Timestamp time.Time             `json:"timestamp"`
}
