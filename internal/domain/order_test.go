package domain

import (
	"testing"

	"github.com/shopspring/decimal"
)

func validIntent() OrderIntent {
	return OrderIntent{
		Action:    "BUY",
		Symbol:    "AAPL",
		Quantity:  decimal.NewFromInt(1),
		OrderType: "MKT",
	}
}

func TestParseOrderIntent_Defaults(t *testing.T) {
	intent, errs := ParseOrderIntent(validIntent())
	if errs != nil {
		t.Fatalf("unexpected errors: %v", errs)
	}

	if intent.SecType != SecTypeStock {
		t.Errorf("sec_type = %q, want STK", intent.SecType)
	}
	if intent.Exchange != DefaultExchange {
		t.Errorf("exchange = %q, want SMART", intent.Exchange)
	}
	if intent.Currency != DefaultCurrency {
		t.Errorf("currency = %q, want USD", intent.Currency)
	}
	if intent.TIF != TIFDay {
		t.Errorf("tif = %q, want DAY", intent.TIF)
	}
	if intent.Transmit {
		t.Error("transmit should default to false")
	}
}

func TestParseOrderIntent_Normalization(t *testing.T) {
	in := validIntent()
	in.Action = "  buy "
	in.Symbol = "aapl"
	in.OrderType = "mkt"
	in.ClientTag = "  tag-1  "

	intent, errs := ParseOrderIntent(in)
	if errs != nil {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if intent.Action != "BUY" || intent.Symbol != "AAPL" || intent.OrderType != "MKT" {
		t.Errorf("normalization failed: %+v", intent)
	}
	if intent.ClientTag != "tag-1" {
		t.Errorf("client_tag = %q, want trimmed", intent.ClientTag)
	}
}

func TestParseOrderIntent_Shapes(t *testing.T) {
	t.Run("json string", func(t *testing.T) {
		intent, errs := ParseOrderIntent(`{"action":"BUY","symbol":"AAPL","quantity":1,"order_type":"MKT"}`)
		if errs != nil {
			t.Fatalf("unexpected errors: %v", errs)
		}
		if intent.Symbol != "AAPL" {
			t.Errorf("symbol = %q", intent.Symbol)
		}
	})

	t.Run("map", func(t *testing.T) {
		intent, errs := ParseOrderIntent(map[string]any{
			"action": "SELL", "symbol": "MSFT", "quantity": 2, "order_type": "LMT", "limit_price": 100.5,
		})
		if errs != nil {
			t.Fatalf("unexpected errors: %v", errs)
		}
		if !intent.LimitPrice.Valid || !intent.LimitPrice.Decimal.Equal(decimal.NewFromFloat(100.5)) {
			t.Errorf("limit_price = %+v", intent.LimitPrice)
		}
	})

	t.Run("unknown field rejected", func(t *testing.T) {
		_, errs := ParseOrderIntent(`{"action":"BUY","symbol":"AAPL","quantity":1,"order_type":"MKT","bogus":1}`)
		if errs == nil {
			t.Fatal("expected errors for unknown field")
		}
	})

	t.Run("unsupported type", func(t *testing.T) {
		_, errs := ParseOrderIntent(42)
		if errs == nil {
			t.Fatal("expected errors for unsupported input type")
		}
	})
}

func TestParseOrderIntent_Validation(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*OrderIntent)
		field  string
	}{
		{"bad action", func(o *OrderIntent) { o.Action = "HOLD" }, "action"},
		{"missing symbol", func(o *OrderIntent) { o.Symbol = "" }, "symbol"},
		{"zero quantity", func(o *OrderIntent) { o.Quantity = decimal.Zero }, "quantity"},
		{"negative quantity", func(o *OrderIntent) { o.Quantity = decimal.NewFromInt(-1) }, "quantity"},
		{"bad order type", func(o *OrderIntent) { o.OrderType = "STOP" }, "order_type"},
		{"bad tif", func(o *OrderIntent) { o.TIF = "IOC" }, "tif"},
		{"lmt without price", func(o *OrderIntent) { o.OrderType = "LMT" }, "limit_price"},
		{"mkt with price", func(o *OrderIntent) {
			o.LimitPrice = decimal.NewNullDecimal(decimal.NewFromInt(10))
		}, "limit_price"},
		{"tag mismatch", func(o *OrderIntent) {
			o.ClientTag = "a"
			o.OrderRef = "b"
		}, "order_ref"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := validIntent()
			tc.mutate(&in)

			_, errs := ParseOrderIntent(in)
			if errs == nil {
				t.Fatal("expected validation errors")
			}
			found := false
			for _, e := range errs {
				if e.Field == tc.field {
					found = true
				}
			}
			if !found {
				t.Errorf("expected error on field %q, got %v", tc.field, errs)
			}
		})
	}
}

func TestEffectiveOrderRef(t *testing.T) {
	in := validIntent()
	in.ClientTag = "tag"
	intent, errs := ParseOrderIntent(in)
	if errs != nil {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if got := intent.EffectiveOrderRef(); got != "tag" {
		t.Errorf("effective ref = %q, want client_tag", got)
	}

	in.OrderRef = "tag" // equal tags are allowed
	intent, errs = ParseOrderIntent(in)
	if errs != nil {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if got := intent.EffectiveOrderRef(); got != "tag" {
		t.Errorf("effective ref = %q, want order_ref", got)
	}
}
