package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type ReservationStatus string

const (
	ReservationPending   ReservationStatus = "PENDING"
	ReservationApproved  ReservationStatus = "APPROVED"
	ReservationCancelled ReservationStatus = "CANCELLED"
)

type Reservation struct {
	BaseModel
	TechnicianID string            `db:"technician_id" json:"technician_id"`
	ArticleID    string            `db:"article_id" json:"article_id"`
	QtyReserved  decimal.Decimal   `db:"qty_reserved" json:"qty_reserved"`
	ScheduledFor *time.Time        `db:"scheduled_for" json:"scheduled_for"`
	Status       ReservationStatus `db:"status" json:"status"`
	Notes        string            `db:"notes" json:"notes"`
	CreatedBy    string            `db:"created_by" json:"created_by"`
	ApprovedBy   *string           `db:"approved_by" json:"approved_by"`
	ApprovedAt   *time.Time        `db:"approved_at" json:"approved_at"`
}

func (r *Reservation) OwnerID() string { return r.TechnicianID }

func (r *Reservation) Key() StockKey {
	return StockKey{TechnicianID: r.TechnicianID, ArticleID: r.ArticleID}
}
