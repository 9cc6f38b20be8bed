package ibgw

import (
	"ibtrade_go/internal/domain"
)

// BuildContract maps a validated intent to the gateway's contract
// representation. Pure, no I/O.
func BuildContract(intent *domain.OrderIntent) ContractPayload {
	return ContractPayload{
		Symbol:      intent.Symbol,
		SecType:     intent.SecType,
		Exchange:    intent.Exchange,
		Currency:    intent.Currency,
		PrimaryExch: intent.PrimaryExch,
	}
}

// BuildOrder maps a validated intent to the gateway's order
// representation. LimitPrice is carried only for LMT orders.
func BuildOrder(intent *domain.OrderIntent) OrderPayload {
	order := OrderPayload{
		Action:    intent.Action,
		Quantity:  intent.Quantity,
		OrderType: intent.OrderType,
		TIF:       intent.TIF,
		Transmit:  intent.Transmit,
		OrderRef:  intent.EffectiveOrderRef(),
	}

	if intent.OrderType == domain.OrderTypeLimit && intent.LimitPrice.Valid {
		lp := intent.LimitPrice
		order.LimitPrice = &lp
	}

	return order
}
