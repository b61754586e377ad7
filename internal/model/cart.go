package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type CartStatus string

const (
	CartDraft     CartStatus = "DRAFT"
	CartSubmitted CartStatus = "SUBMITTED"
)

type Cart struct {
	BaseModel
	TechnicianID string     `db:"technician_id" json:"technician_id"`
	Status       CartStatus `db:"status" json:"status"`
	Notes        string     `db:"notes" json:"notes"`
	SubmittedAt  *time.Time `db:"submitted_at" json:"submitted_at"`
	Lines        []CartLine `db:"-" json:"lines"`
}

func (c *Cart) OwnerID() string { return c.TechnicianID }

func (c *Cart) IsDraft() bool { return c.Status == CartDraft }

func (c *Cart) TotalQuantity() decimal.Decimal {
	total := decimal.Zero
	for _, l := range c.Lines {
		total = total.Add(l.Quantity)
	}
	return total
}

type CartLine struct {
	BaseModel
	CartID    string          `db:"cart_id" json:"cart_id"`
	ArticleID string          `db:"article_id" json:"article_id"`
	Quantity  decimal.Decimal `db:"quantity" json:"quantity"`
	Notes     string          `db:"notes" json:"notes"`
}
