package dto

import "github.com/shopspring/decimal"

type IssueInput struct {
	TechnicianID  string
	ArticleID     string
	Quantity      decimal.Decimal
	Location      string
	LinkedOrderID *string
	Notes         string
	ActorID       string
	// SourceEventKey makes the issue idempotent for redelivered events.
	SourceEventKey string
}

type ReceiveInput struct {
	TechnicianID  string
	ArticleID     string
	Quantity      decimal.Decimal
	LinkedOrderID *string
	Notes         string
	ActorID       string
}

type AdjustInput struct {
	TechnicianID string
	ArticleID    string
	NewQuantity  decimal.Decimal
	Reason       string
	ActorID      string
}

type TransferInput struct {
	FromTechnicianID string
	ToTechnicianID   string
	ArticleID        string
	Quantity         decimal.Decimal
	Notes            string
	ActorID          string
}

type ReserveInput struct {
	TechnicianID string
	ArticleID    string
	Quantity     decimal.Decimal
	Reference    string
	ActorID      string
}

type SetThresholdInput struct {
	TechnicianID string
	ArticleID    string
	MinQty       decimal.Decimal
	IsActive     bool
	ActorID      string
}
