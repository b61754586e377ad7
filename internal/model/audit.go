package model

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

const (
	EntityStockLevel     = "StockLevel"
	EntityStockMovement  = "StockMovement"
	EntityThreshold      = "Threshold"
	EntityThresholdAlert = "ThresholdAlert"
	EntityCart           = "Cart"
	EntityCartLine       = "CartLine"
	EntityOrder          = "Order"
	EntityReservation    = "Reservation"
)

// AuditEvent is one link of the hash chain. Seq is assigned when the event
// is appended and orders the chain.
type AuditEvent struct {
	ID            string             `db:"id" json:"id"`
	Seq           int64              `db:"seq" json:"seq"`
	ActorID       string             `db:"actor_id" json:"actor_id"`
	EntityType    string             `db:"entity_type" json:"entity_type"`
	EntityID      string             `db:"entity_id" json:"entity_id"`
	Action        string             `db:"action" json:"action"`
	BeforeData    types.NullJSONText `db:"before_data" json:"before_data"`
	AfterData     types.NullJSONText `db:"after_data" json:"after_data"`
	RequestID     string             `db:"request_id" json:"request_id"`
	CreatedAt     time.Time          `db:"created_at" json:"created_at"`
	PrevHash      string             `db:"prev_hash" json:"prev_hash"`
	IntegrityHash string             `db:"integrity_hash" json:"integrity_hash"`
}
