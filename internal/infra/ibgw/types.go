package ibgw

import (
	"github.com/shopspring/decimal"
)

// Message types on the gateway socket.
const (
	msgStartAPI      = "start_api"
	msgPlaceOrder    = "place_order"
	msgReqOpenOrders = "req_open_orders"

	msgNextValidID = "next_valid_id"
	msgOpenOrder   = "open_order"
	msgOrderStatus = "order_status"
	msgError       = "error"
)

// ContractPayload is the wire-level instrument description.
type ContractPayload struct {
	Symbol      string `json:"symbol"`
	SecType     string `json:"sec_type"`
	Exchange    string `json:"exchange"`
	Currency    string `json:"currency"`
	PrimaryExch string `json:"primary_exch,omitempty"`
}

// OrderPayload is the wire-level order description. LimitPrice is
// present only for LMT orders.
type OrderPayload struct {
	Action     string               `json:"action"`
	Quantity   decimal.Decimal      `json:"quantity"`
	OrderType  string               `json:"order_type"`
	TIF        string               `json:"tif"`
	Transmit   bool                 `json:"transmit"`
	OrderRef   string               `json:"order_ref,omitempty"`
	LimitPrice *decimal.NullDecimal `json:"limit_price,omitempty"`
}

// startAPIRequest opens the API conversation; the gateway answers with
// a next_valid_id frame.
type startAPIRequest struct {
	Type     string `json:"type"`
	ClientID int    `json:"client_id"`
}

type placeOrderRequest struct {
	Type     string          `json:"type"`
	OrderID  int64           `json:"order_id"`
	Contract ContractPayload `json:"contract"`
	Order    OrderPayload    `json:"order"`
}

type openOrdersRequest struct {
	Type string `json:"type"`
}

// inboundFrame is the union of everything the gateway pushes. Type
// selects which fields are meaningful.
type inboundFrame struct {
	Type string `json:"type"`

	OrderID int64  `json:"order_id"`
	Status  string `json:"status"`

	Filled        decimal.Decimal `json:"filled"`
	Remaining     decimal.Decimal `json:"remaining"`
	AvgFillPrice  decimal.Decimal `json:"avg_fill_price"`
	LastFillPrice decimal.Decimal `json:"last_fill_price"`
	PermID        int64           `json:"perm_id"`

	Contract *ContractPayload `json:"contract"`
	Order    *OrderPayload    `json:"order"`

	Code    int64  `json:"code"`
	Message string `json:"message"`
}
