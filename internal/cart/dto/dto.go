package dto

import (
	"github.com/fekuna/omnipos-stock-service/internal/model"
	"github.com/shopspring/decimal"
)

type AddLineInput struct {
	TechnicianID string
	ArticleID    string
	Quantity     decimal.Decimal
	Notes        string
}

type SetLineQuantityInput struct {
	TechnicianID string
	LineID       string
	// Zero removes the line; negative quantities are rejected.
	Quantity decimal.Decimal
}

type SubmitInput struct {
	TechnicianID string
	Notes        string
	Priority     model.OrderPriority
}

type CartSummary struct {
	CartID        string          `json:"cart_id"`
	Status        string          `json:"status"`
	TotalItems    int             `json:"total_items"`
	TotalQuantity decimal.Decimal `json:"total_quantity"`
	Lines         []SummaryLine   `json:"lines"`
}

type SummaryLine struct {
	LineID    string          `json:"line_id"`
	ArticleID string          `json:"article_id"`
	Reference string          `json:"reference"`
	Name      string          `json:"name"`
	Unit      string          `json:"unit"`
	Quantity  decimal.Decimal `json:"quantity"`
	Notes     string          `json:"notes"`
}
