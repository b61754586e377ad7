package model

import "github.com/shopspring/decimal"

// QuantityPlaces is the scale of every stored quantity.
const QuantityPlaces = 2

// HasQuantityScale reports whether d fits a stored quantity without rounding.
func HasQuantityScale(d decimal.Decimal) bool {
	return d.Equal(d.Round(QuantityPlaces))
}
