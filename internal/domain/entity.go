package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderRecord is the persisted state of one order, keyed by the
// locally assigned order id. Records are created at submission time,
// mutated only through the store's merge policy, and never deleted.
type OrderRecord struct {
	OrderID       int64               `gorm:"primaryKey;column:order_id" json:"order_id"`
	Status        string              `gorm:"index" json:"status"`
	Filled        decimal.Decimal     `gorm:"type:numeric" json:"filled"`
	AvgFillPrice  decimal.NullDecimal `gorm:"type:numeric" json:"avg_fill_price"`
	LastFillPrice decimal.NullDecimal `gorm:"type:numeric" json:"last_fill_price"`

	// Echo of the submitted intent for readback without re-joining the
	// original request.
	Symbol     string              `json:"symbol"`
	Action     string              `json:"action"`
	OrderType  string              `json:"order_type"`
	Quantity   decimal.Decimal     `gorm:"type:numeric" json:"quantity"`
	LimitPrice decimal.NullDecimal `gorm:"type:numeric" json:"limit_price"`
	TIF        string              `gorm:"column:tif" json:"tif"`
	Transmit   bool                `json:"transmit"`
	OrderRef   *string             `json:"order_ref"`

	LastErrorCode *int64  `json:"last_error_code"`
	LastError     *string `json:"last_error"`
	PermID        *int64  `gorm:"column:perm_id" json:"perm_id"`

	LastUpdate time.Time `json:"last_update"`
	RawState   string    `json:"raw_state"` // JSON snapshot of the most recent merge
}

// TableName keeps the layout stable across restarts; watchers resume
// against the same table the submitter wrote.
func (OrderRecord) TableName() string {
	return "orders"
}

// IsTerminal reports whether the record reached a terminal status.
func (r *OrderRecord) IsTerminal() bool {
	return IsTerminalStatus(r.Status)
}

// OrderUpdate is a partial mutation applied to an OrderRecord. Nil
// fields are left untouched by the merge.
type OrderUpdate struct {
	Status        *string
	Symbol        *string
	Action        *string
	OrderType     *string
	Quantity      *decimal.Decimal
	LimitPrice    *decimal.Decimal
	TIF           *string
	Transmit      *bool
	OrderRef      *string
	Filled        *decimal.Decimal
	AvgFillPrice  *decimal.Decimal
	LastFillPrice *decimal.Decimal
	PermID        *int64
	LastErrorCode *int64
	LastError     *string
}
