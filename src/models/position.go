// backend/src/models/position.go
package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/username/nestegg/backend/src/institutions"
)

// PositionRecord is a statement row normalized into canonical fields.
// Optional numbers are NullDecimal so that a missing cell is never read as zero.
type PositionRecord struct {
	Line          int                    `json:"line"` // source line in the uploaded file
	Symbol        string                 `json:"symbol"`
	Description   string                 `json:"description,omitempty"`
	Quantity      decimal.NullDecimal    `json:"quantity"`
	PurchasePrice decimal.NullDecimal    `json:"purchasePrice"`
	CurrentValue  decimal.NullDecimal    `json:"currentValue"`
	CostBasis     decimal.NullDecimal    `json:"costBasis"`
	PurchaseDate  *time.Time             `json:"purchaseDate,omitempty"`
	AssetType     institutions.AssetType `json:"assetType"`
	Institution   string                 `json:"institution,omitempty"`
	HashID        string                 `json:"hashId"`
}

// RowError explains why a row could not be turned into a PositionRecord.
type RowError struct {
	Line    int    `json:"line"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

func (e RowError) Error() string {
	return e.Message
}
