package dto

import (
	"time"

	"github.com/fekuna/omnipos-stock-service/internal/model"
	"github.com/shopspring/decimal"
)

type CreateInput struct {
	TechnicianID string
	ArticleID    string
	Quantity     decimal.Decimal
	ScheduledFor *time.Time
	Notes        string
	ActorID      string
}

type Filters struct {
	TechnicianID string
	Status       model.ReservationStatus
	Limit        int
}
