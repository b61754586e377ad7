package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// StockKey identifies one StockLevel row.
type StockKey struct {
	TechnicianID string
	ArticleID    string
}

// Less orders keys by (technician, article). Rows are always locked in this order.
func (k StockKey) Less(o StockKey) bool {
	if k.TechnicianID != o.TechnicianID {
		return k.TechnicianID < o.TechnicianID
	}
	return k.ArticleID < o.ArticleID
}

type StockLevel struct {
	BaseModel
	TechnicianID string          `db:"technician_id" json:"technician_id"`
	ArticleID    string          `db:"article_id" json:"article_id"`
	Quantity     decimal.Decimal `db:"quantity" json:"quantity"`
	ReservedQty  decimal.Decimal `db:"reserved_qty" json:"reserved_qty"`
}

func (s *StockLevel) Key() StockKey {
	return StockKey{TechnicianID: s.TechnicianID, ArticleID: s.ArticleID}
}

func (s *StockLevel) Available() decimal.Decimal {
	return s.Quantity.Sub(s.ReservedQty)
}

func (s *StockLevel) OwnerID() string { return s.TechnicianID }

type MovementReason string

const (
	MovementIssue    MovementReason = "ISSUE"
	MovementReceipt  MovementReason = "RECEIPT"
	MovementAdjust   MovementReason = "ADJUST"
	MovementTransfer MovementReason = "TRANSFER"
	MovementInitial  MovementReason = "INITIAL"
)

// StockMovement is append-only; IntegrityHash covers every other field.
type StockMovement struct {
	ID            string          `db:"id" json:"id"`
	TechnicianID  string          `db:"technician_id" json:"technician_id"`
	ArticleID     string          `db:"article_id" json:"article_id"`
	Delta         decimal.Decimal `db:"delta" json:"delta"`
	Reason        MovementReason  `db:"reason" json:"reason"`
	LinkedOrderID *string         `db:"linked_order_id" json:"linked_order_id"`
	BalanceAfter  decimal.Decimal `db:"balance_after" json:"balance_after"`
	LocationText  string          `db:"location_text" json:"location_text"`
	Notes         string          `db:"notes" json:"notes"`
	PerformedBy   string          `db:"performed_by" json:"performed_by"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
	IntegrityHash string          `db:"integrity_hash" json:"integrity_hash"`
}

func (m *StockMovement) OwnerID() string { return m.TechnicianID }

type Threshold struct {
	BaseModel
	TechnicianID  string          `db:"technician_id" json:"technician_id"`
	ArticleID     string          `db:"article_id" json:"article_id"`
	MinQty        decimal.Decimal `db:"min_qty" json:"min_qty"`
	IsActive      bool            `db:"is_active" json:"is_active"`
	LastAlertSent *time.Time      `db:"last_alert_sent" json:"last_alert_sent"`
}

func (t *Threshold) OwnerID() string { return t.TechnicianID }

// Breached reports whether available stock is at or below the threshold.
func (t *Threshold) Breached(available decimal.Decimal) bool {
	return t.IsActive && available.LessThanOrEqual(t.MinQty)
}

const AlertMethodEvent = "EVENT"

type ThresholdAlert struct {
	ID             string          `db:"id" json:"id"`
	TechnicianID   string          `db:"technician_id" json:"technician_id"`
	ArticleID      string          `db:"article_id" json:"article_id"`
	CurrentStock   decimal.Decimal `db:"current_stock" json:"current_stock"`
	ThresholdLevel decimal.Decimal `db:"threshold_level" json:"threshold_level"`
	AlertMethod    string          `db:"alert_method" json:"alert_method"`
	AlertSentAt    time.Time       `db:"alert_sent_at" json:"alert_sent_at"`
	Acknowledged   bool            `db:"acknowledged" json:"acknowledged"`
	AcknowledgedBy *string         `db:"acknowledged_by" json:"acknowledged_by"`
	AcknowledgedAt *time.Time      `db:"acknowledged_at" json:"acknowledged_at"`
}

func (a *ThresholdAlert) OwnerID() string { return a.TechnicianID }
