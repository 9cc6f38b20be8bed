package event

import (
	"github.com/shopspring/decimal"
)

// Type defines the kind of gateway event.
type Type uint16

const (
	EvOpenOrder Type = iota + 1
	EvOrderStatus
	EvError
)

// Event is the interface for everything crossing the session's event
// channel. RefID is the order id the event correlates to; 0 means the
// event is session-scoped.
type Event interface {
	GetType() Type
	RefID() int64
}

// OpenOrderEvent mirrors the gateway's open-order callback: the order
// as the gateway knows it, including the echoed intent fields.
type OpenOrderEvent struct {
	OrderID    int64               `json:"order_id"`
	Status     string              `json:"status"`
	Symbol     string              `json:"symbol"`
	Action     string              `json:"action"`
	OrderType  string              `json:"order_type"`
	Quantity   decimal.Decimal     `json:"quantity"`
	LimitPrice decimal.NullDecimal `json:"limit_price"`
	TIF        string              `json:"tif"`
	Transmit   bool                `json:"transmit"`
	OrderRef   string              `json:"order_ref"`
	PermID     int64               `json:"perm_id"`
}

func (e OpenOrderEvent) GetType() Type { return EvOpenOrder }
func (e OpenOrderEvent) RefID() int64  { return e.OrderID }

// OrderStatusEvent mirrors the gateway's order-status callback.
type OrderStatusEvent struct {
	OrderID       int64           `json:"order_id"`
	Status        string          `json:"status"`
	Filled        decimal.Decimal `json:"filled"`
	Remaining     decimal.Decimal `json:"remaining"`
	AvgFillPrice  decimal.Decimal `json:"avg_fill_price"`
	LastFillPrice decimal.Decimal `json:"last_fill_price"`
	PermID        int64           `json:"perm_id"`
}

func (e OrderStatusEvent) GetType() Type { return EvOrderStatus }
func (e OrderStatusEvent) RefID() int64  { return e.OrderID }

// ErrorEvent carries a gateway error. OrderID 0 means the error is not
// tied to a specific order.
type ErrorEvent struct {
	OrderID int64  `json:"order_id"`
	Code    int64  `json:"code"`
	Message string `json:"message"`
}

func (e ErrorEvent) GetType() Type { return EvError }
func (e ErrorEvent) RefID() int64  { return e.OrderID }
