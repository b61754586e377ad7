package model

import (
	"time"

	"github.com/jmoiron/sqlx/types"
	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderSubmitted  OrderStatus = "SUBMITTED"
	OrderApproved   OrderStatus = "APPROVED"
	OrderPartial    OrderStatus = "PARTIAL"
	OrderRefused    OrderStatus = "REFUSED"
	OrderPrepared   OrderStatus = "PREPARED"
	OrderHandedOver OrderStatus = "HANDED_OVER"
	OrderClosed     OrderStatus = "CLOSED"
)

// ActiveOrderStatuses is the default filter of the demands queue.
var ActiveOrderStatuses = []OrderStatus{OrderSubmitted, OrderApproved, OrderPartial, OrderPrepared}

// OrderPriority ranks the demands queue; higher is served first. The zero
// value means unset.
type OrderPriority int

const (
	PriorityLow OrderPriority = iota + 1
	PriorityNormal
	PriorityHigh
	PriorityUrgent
)

func (p OrderPriority) Valid() bool {
	return p >= PriorityLow && p <= PriorityUrgent
}

type HandoverMethod string

const (
	HandoverPIN       HandoverMethod = "PIN"
	HandoverSignature HandoverMethod = "SIGNATURE"
)

type Order struct {
	BaseModel
	TechnicianID   string             `db:"technician_id" json:"technician_id"`
	CartID         string             `db:"cart_id" json:"cart_id"`
	Status         OrderStatus        `db:"status" json:"status"`
	Priority       OrderPriority      `db:"priority" json:"priority"`
	Notes          string             `db:"notes" json:"notes"`
	RefusalReason  string             `db:"refusal_reason" json:"refusal_reason"`
	ApprovedBy     *string            `db:"approved_by" json:"approved_by"`
	ApprovedAt     *time.Time         `db:"approved_at" json:"approved_at"`
	PreparedBy     *string            `db:"prepared_by" json:"prepared_by"`
	PreparedAt     *time.Time         `db:"prepared_at" json:"prepared_at"`
	HandoverMethod *HandoverMethod    `db:"handover_method" json:"handover_method"`
	HandoverData   types.NullJSONText `db:"handover_data" json:"handover_data"`
	HandedOverAt   *time.Time         `db:"handed_over_at" json:"handed_over_at"`
	ClosedAt       *time.Time         `db:"closed_at" json:"closed_at"`
	Lines          []OrderLine        `db:"-" json:"lines"`
}

func (o *Order) OwnerID() string { return o.TechnicianID }

func (o *Order) Line(id string) *OrderLine {
	for i := range o.Lines {
		if o.Lines[i].ID == id {
			return &o.Lines[i]
		}
	}
	return nil
}

func (o *Order) TotalRequested() decimal.Decimal {
	total := decimal.Zero
	for _, l := range o.Lines {
		total = total.Add(l.QtyRequested)
	}
	return total
}

func (o *Order) TotalApproved() decimal.Decimal {
	total := decimal.Zero
	for _, l := range o.Lines {
		total = total.Add(l.QtyApproved)
	}
	return total
}

func (o *Order) CanBePrepared() bool {
	return o.Status == OrderApproved || o.Status == OrderPartial
}

func (o *Order) CanBeHandedOver() bool {
	return o.Status == OrderPrepared
}

type OrderLine struct {
	BaseModel
	OrderID      string          `db:"order_id" json:"order_id"`
	Position     int             `db:"position" json:"position"`
	ArticleID    string          `db:"article_id" json:"article_id"`
	QtyRequested decimal.Decimal `db:"qty_requested" json:"qty_requested"`
	QtyApproved  decimal.Decimal `db:"qty_approved" json:"qty_approved"`
	QtyPrepared  decimal.Decimal `db:"qty_prepared" json:"qty_prepared"`
}
