package dto

import (
	"time"

	"github.com/fekuna/omnipos-stock-service/internal/model"
	"github.com/shopspring/decimal"
)

type QueueFilters struct {
	// Statuses defaults to model.ActiveOrderStatuses when empty.
	Statuses     []model.OrderStatus
	TechnicianID string
}

// PreparedLine reports how much of an approved line could be reserved.
type PreparedLine struct {
	LineID      string          `json:"line_id"`
	ArticleID   string          `json:"article_id"`
	QtyApproved decimal.Decimal `json:"qty_approved"`
	QtyPrepared decimal.Decimal `json:"qty_prepared"`
	Shortfall   decimal.Decimal `json:"shortfall"`
}

type PrepareResult struct {
	Order *model.Order   `json:"order"`
	Lines []PreparedLine `json:"lines"`
}

// Complete reports whether every approved quantity was reserved.
func (r *PrepareResult) Complete() bool {
	for _, l := range r.Lines {
		if l.Shortfall.IsPositive() {
			return false
		}
	}
	return true
}

type IssuedPIN struct {
	OrderID   string    `json:"order_id"`
	PIN       string    `json:"pin"`
	ExpiresAt time.Time `json:"expires_at"`
}

type StatusChangedEvent struct {
	EventID   string             `json:"event_id"`
	EventType string             `json:"event_type"`
	Payload   StatusChangedEntry `json:"payload"`
	Timestamp time.Time          `json:"timestamp"`
}

type StatusChangedEntry struct {
	OrderID      string            `json:"order_id"`
	TechnicianID string            `json:"technician_id"`
	From         model.OrderStatus `json:"from"`
	To           model.OrderStatus `json:"to"`
}
