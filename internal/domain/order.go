package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	ActionBuy  = "BUY"
	ActionSell = "SELL"

	OrderTypeMarket = "MKT"
	OrderTypeLimit  = "LMT"

	SecTypeStock = "STK"

	TIFDay = "DAY"
	TIFGtc = "GTC"

	DefaultExchange = "SMART"
	DefaultCurrency = "USD"
)

// OrderIntent is the validated description of a desired equity trade.
// It is normalized once at the boundary; core components never see a
// raw payload.
type OrderIntent struct {
	Action     string              `json:"action"`
	Symbol     string              `json:"symbol"`
	SecType    string              `json:"sec_type"`
	Exchange   string              `json:"exchange"`
	Currency   string              `json:"currency"`
	Quantity   decimal.Decimal     `json:"quantity"`
	OrderType  string              `json:"order_type"`
	TIF        string              `json:"tif"`
	LimitPrice decimal.NullDecimal `json:"limit_price,omitempty"`

	PrimaryExch string `json:"primary_exch,omitempty"`
	Transmit    bool   `json:"transmit"`
	ClientTag   string `json:"client_tag,omitempty"`
	OrderRef    string `json:"order_ref,omitempty"`
}

// FieldError is one entry of a structured validation failure.
type FieldError struct {
	Type  string `json:"type"`
	Field string `json:"field,omitempty"`
	Msg   string `json:"msg"`
}

// RuntimeError wraps an unexpected failure into the validation error shape.
func RuntimeError(err error) FieldError {
	return FieldError{Type: "runtime", Msg: err.Error()}
}

// ParseOrderIntent normalizes the accepted input shapes (OrderIntent,
// map, JSON string/bytes) into one canonical intent and validates it.
// Unknown fields are rejected.
func ParseOrderIntent(input any) (*OrderIntent, []FieldError) {
	var intent OrderIntent

	switch v := input.(type) {
	case OrderIntent:
		intent = v
	case *OrderIntent:
		if v == nil {
			return nil, []FieldError{{Type: "type_error", Msg: "order input is nil"}}
		}
		intent = *v
	case string:
		if errs := decodeStrict([]byte(v), &intent); errs != nil {
			return nil, errs
		}
	case []byte:
		if errs := decodeStrict(v, &intent); errs != nil {
			return nil, errs
		}
	case map[string]any:
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, []FieldError{RuntimeError(err)}
		}
		if errs := decodeStrict(raw, &intent); errs != nil {
			return nil, errs
		}
	default:
		return nil, []FieldError{{
			Type: "type_error",
			Msg:  fmt.Sprintf("order input must be OrderIntent, map, or JSON string, got %T", input),
		}}
	}

	intent.normalize()
	if errs := intent.validate(); len(errs) > 0 {
		return nil, errs
	}
	return &intent, nil
}

func decodeStrict(raw []byte, intent *OrderIntent) []FieldError {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(intent); err != nil {
		return []FieldError{{Type: "json_invalid", Msg: err.Error()}}
	}
	return nil
}

// normalize applies defaults and canonical casing before validation.
func (o *OrderIntent) normalize() {
	o.Action = strings.ToUpper(strings.TrimSpace(o.Action))
	o.Symbol = strings.ToUpper(strings.TrimSpace(o.Symbol))
	o.SecType = strings.ToUpper(strings.TrimSpace(o.SecType))
	o.Exchange = strings.ToUpper(strings.TrimSpace(o.Exchange))
	o.Currency = strings.ToUpper(strings.TrimSpace(o.Currency))
	o.OrderType = strings.ToUpper(strings.TrimSpace(o.OrderType))
	o.TIF = strings.ToUpper(strings.TrimSpace(o.TIF))
	o.PrimaryExch = strings.TrimSpace(o.PrimaryExch)
	o.ClientTag = strings.TrimSpace(o.ClientTag)
	o.OrderRef = strings.TrimSpace(o.OrderRef)

	if o.SecType == "" {
		o.SecType = SecTypeStock
	}
	if o.Exchange == "" {
		o.Exchange = DefaultExchange
	}
	if o.Currency == "" {
		o.Currency = DefaultCurrency
	}
	if o.TIF == "" {
		o.TIF = TIFDay
	}
	if o.LimitPrice.Valid {
		// Guard against accidental huge decimals in manual input.
		o.LimitPrice.Decimal = o.LimitPrice.Decimal.Round(8)
	}
}

func (o *OrderIntent) validate() []FieldError {
	var errs []FieldError
	add := func(field, msg string) {
		errs = append(errs, FieldError{Type: "value_error", Field: field, Msg: msg})
	}

	if o.Action != ActionBuy && o.Action != ActionSell {
		add("action", "action must be BUY or SELL")
	}
	if o.Symbol == "" {
		add("symbol", "symbol is required")
	}
	if o.SecType != SecTypeStock {
		add("sec_type", "sec_type must be STK")
	}
	if !o.Quantity.IsPositive() {
		add("quantity", "quantity must be positive")
	}
	if o.OrderType != OrderTypeMarket && o.OrderType != OrderTypeLimit {
		add("order_type", "order_type must be MKT or LMT")
	}
	if o.TIF != TIFDay && o.TIF != TIFGtc {
		add("tif", "tif must be DAY or GTC")
	}

	switch o.OrderType {
	case OrderTypeLimit:
		if !o.LimitPrice.Valid {
			add("limit_price", "limit_price is required when order_type=LMT")
		} else if !o.LimitPrice.Decimal.IsPositive() {
			add("limit_price", "limit_price must be positive")
		}
	case OrderTypeMarket:
		if o.LimitPrice.Valid {
			add("limit_price", "limit_price must be omitted when order_type=MKT")
		}
	}

	if o.ClientTag != "" && o.OrderRef != "" && o.ClientTag != o.OrderRef {
		add("order_ref", "client_tag and order_ref must match when both are provided")
	}

	return errs
}

// EffectiveOrderRef is the reference actually sent to the gateway:
// order_ref wins over client_tag.
func (o *OrderIntent) EffectiveOrderRef() string {
	if o.OrderRef != "" {
		return o.OrderRef
	}
	return o.ClientTag
}
