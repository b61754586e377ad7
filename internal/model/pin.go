package model

import "time"

type PINCode struct {
	ID           string     `db:"id" json:"id"`
	TechnicianID string     `db:"technician_id" json:"technician_id"`
	OrderID      string     `db:"order_id" json:"order_id"`
	PinHash      string     `db:"pin_hash" json:"-"`
	ExpiresAt    time.Time  `db:"expires_at" json:"expires_at"`
	IsUsed       bool       `db:"is_used" json:"is_used"`
	UsedAt       *time.Time `db:"used_at" json:"used_at"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
}

func (p *PINCode) OwnerID() string { return p.TechnicianID }

func (p *PINCode) Expired(now time.Time) bool {
	return !now.Before(p.ExpiresAt)
}
