package dto

import (
	"github.com/fekuna/omnipos-stock-service/internal/model"
	"github.com/shopspring/decimal"
)

type LineApproval struct {
	LineID      string
	QtyApproved decimal.Decimal
}

type ApprovePartialInput struct {
	OrderID    string
	ApproverID string
	Lines      []LineApproval
	Notes      string
}

type HandoverInput struct {
	OrderID       string
	ActorID       string
	Method        model.HandoverMethod
	PIN           string
	SignatureData string
	DeviceInfo    map[string]any
}
