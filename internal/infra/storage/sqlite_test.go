package storage

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"ibtrade_go/internal/domain"

	"github.com/shopspring/decimal"
)

func setupTestStore(t *testing.T) (*OrderStore, string) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "orders.db")
	store, err := NewOrderStore(dbPath)
	if err != nil {
		t.Fatalf("failed to open test store: %v", err)
	}
	return store, dbPath
}

func strPtr(s string) *string                   { return &s }
func decPtr(d decimal.Decimal) *decimal.Decimal { return &d }
func int64Ptr(v int64) *int64                   { return &v }

func TestUpsert_CreatesWithDefaults(t *testing.T) {
	store, _ := setupTestStore(t)

	rec, err := store.Upsert(1, domain.OrderUpdate{})
	if err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if rec.Status != domain.StatusUnknown {
		t.Errorf("status = %q, want UNKNOWN", rec.Status)
	}
	if !rec.Filled.IsZero() {
		t.Errorf("filled = %s, want 0", rec.Filled)
	}
	if rec.LastUpdate.IsZero() {
		t.Error("last_update should be set")
	}
	if rec.RawState == "" {
		t.Error("raw_state should be populated")
	}
}

func TestUpsert_MergesAndEchoes(t *testing.T) {
	store, _ := setupTestStore(t)

	_, err := store.Upsert(1, domain.OrderUpdate{
		Status:    strPtr("Submitting"),
		Symbol:    strPtr("AAPL"),
		Action:    strPtr("BUY"),
		OrderType: strPtr("MKT"),
		Quantity:  decPtr(decimal.NewFromInt(5)),
		TIF:       strPtr("DAY"),
		Filled:    decPtr(decimal.Zero),
	})
	if err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	// Partial update must not erase echoed intent fields.
	rec, err := store.Upsert(1, domain.OrderUpdate{Status: strPtr("Submitted")})
	if err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if rec.Status != "SUBMITTED" {
		t.Errorf("status = %q, want SUBMITTED (normalized)", rec.Status)
	}
	if rec.Symbol != "AAPL" || rec.Action != "BUY" || rec.OrderType != "MKT" {
		t.Errorf("echo fields lost: %+v", rec)
	}
}

func TestUpsert_NeverDowngradesTerminal(t *testing.T) {
	store, _ := setupTestStore(t)

	store.Upsert(1, domain.OrderUpdate{Status: strPtr("FILLED")})

	// A late non-terminal event must not reopen the order.
	rec, err := store.Upsert(1, domain.OrderUpdate{Status: strPtr("SUBMITTED")})
	if err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if rec.Status != domain.StatusFilled {
		t.Errorf("status = %q, want FILLED preserved", rec.Status)
	}
}

func TestUpsert_FilledNeverDecreases(t *testing.T) {
	store, _ := setupTestStore(t)

	store.Upsert(1, domain.OrderUpdate{Filled: decPtr(decimal.NewFromInt(3))})
	rec, err := store.Upsert(1, domain.OrderUpdate{Filled: decPtr(decimal.NewFromInt(1))})
	if err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if !rec.Filled.Equal(decimal.NewFromInt(3)) {
		t.Errorf("filled = %s, want 3", rec.Filled)
	}

	rec, _ = store.Upsert(1, domain.OrderUpdate{Filled: decPtr(decimal.NewFromInt(5))})
	if !rec.Filled.Equal(decimal.NewFromInt(5)) {
		t.Errorf("filled = %s, want 5", rec.Filled)
	}
}

func TestUpsert_FillPricesSetWhenPositive(t *testing.T) {
	store, _ := setupTestStore(t)

	// Zero prices mean "no fill yet" on the wire and must not mark the
	// columns as set.
	rec, err := store.Upsert(12, domain.OrderUpdate{
		AvgFillPrice:  decPtr(decimal.Zero),
		LastFillPrice: decPtr(decimal.Zero),
	})
	if err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if rec.AvgFillPrice.Valid || rec.LastFillPrice.Valid {
		t.Errorf("zero prices marked valid: avg=%+v last=%+v", rec.AvgFillPrice, rec.LastFillPrice)
	}

	rec, err = store.Upsert(12, domain.OrderUpdate{
		AvgFillPrice:  decPtr(decimal.NewFromFloat(101.25)),
		LastFillPrice: decPtr(decimal.NewFromFloat(101.30)),
	})
	if err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if !rec.AvgFillPrice.Valid || !rec.AvgFillPrice.Decimal.Equal(decimal.NewFromFloat(101.25)) {
		t.Errorf("avg_fill_price = %+v", rec.AvgFillPrice)
	}
	if !rec.LastFillPrice.Valid || !rec.LastFillPrice.Decimal.Equal(decimal.NewFromFloat(101.30)) {
		t.Errorf("last_fill_price = %+v", rec.LastFillPrice)
	}
	if !strings.Contains(rec.RawState, `"last_fill_price"`) {
		t.Errorf("raw_state missing last_fill_price: %s", rec.RawState)
	}
}

func TestUpsert_PermIDSetOnce(t *testing.T) {
	store, _ := setupTestStore(t)

	store.Upsert(1, domain.OrderUpdate{PermID: int64Ptr(1001)})
	rec, err := store.Upsert(1, domain.OrderUpdate{PermID: int64Ptr(2002)})
	if err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if rec.PermID == nil || *rec.PermID != 1001 {
		t.Errorf("perm_id = %v, want 1001 unchanged", rec.PermID)
	}
}

func TestUpsert_LastUpdateAdvances(t *testing.T) {
	store, _ := setupTestStore(t)

	first, _ := store.Upsert(1, domain.OrderUpdate{Status: strPtr("SUBMITTING")})
	time.Sleep(5 * time.Millisecond)
	second, _ := store.Upsert(1, domain.OrderUpdate{Status: strPtr("SUBMITTED")})

	if !second.LastUpdate.After(first.LastUpdate) {
		t.Errorf("last_update did not advance: %v -> %v", first.LastUpdate, second.LastUpdate)
	}
}

func TestGet_NotFound(t *testing.T) {
	store, _ := setupTestStore(t)

	rec, err := store.Get(999999)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if rec != nil {
		t.Errorf("expected nil for unknown order, got %+v", rec)
	}
}

func TestList_OrderedByOrderID(t *testing.T) {
	store, _ := setupTestStore(t)

	for _, id := range []int64{3, 1, 2} {
		if _, err := store.Upsert(id, domain.OrderUpdate{Status: strPtr("SUBMITTED")}); err != nil {
			t.Fatalf("Upsert(%d) failed: %v", id, err)
		}
	}

	recs, err := store.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("expected 3 records, got %d", len(recs))
	}
	for i, want := range []int64{1, 2, 3} {
		if recs[i].OrderID != want {
			t.Errorf("recs[%d].OrderID = %d, want %d", i, recs[i].OrderID, want)
		}
	}
}

func TestReopen_RoundTrip(t *testing.T) {
	store, dbPath := setupTestStore(t)

	avg := decimal.NewFromFloat(187.53)
	written, err := store.Upsert(7, domain.OrderUpdate{
		Status:       strPtr("FILLED"),
		Symbol:       strPtr("AAPL"),
		Action:       strPtr("BUY"),
		OrderType:    strPtr("LMT"),
		Quantity:     decPtr(decimal.NewFromInt(10)),
		LimitPrice:   decPtr(decimal.NewFromFloat(188.00)),
		TIF:          strPtr("DAY"),
		Filled:       decPtr(decimal.NewFromInt(10)),
		AvgFillPrice: &avg,
		PermID:       int64Ptr(555001),
	})
	if err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	// A fresh store instance over the same file must see everything.
	reopened, err := NewOrderStore(dbPath)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}

	rec, err := reopened.Get(7)
	if err != nil {
		t.Fatalf("Get after reopen failed: %v", err)
	}
	if rec == nil {
		t.Fatal("record lost across reopen")
	}
	if rec.Status != written.Status {
		t.Errorf("status = %q, want %q", rec.Status, written.Status)
	}
	if !rec.Filled.Equal(written.Filled) {
		t.Errorf("filled = %s, want %s", rec.Filled, written.Filled)
	}
	if !rec.AvgFillPrice.Valid || !rec.AvgFillPrice.Decimal.Equal(avg) {
		t.Errorf("avg_fill_price = %+v, want %s", rec.AvgFillPrice, avg)
	}
	if rec.RawState != written.RawState {
		t.Errorf("raw_state changed across reopen:\n%s\nvs\n%s", rec.RawState, written.RawState)
	}
	if rec.PermID == nil || *rec.PermID != 555001 {
		t.Errorf("perm_id = %v, want 555001", rec.PermID)
	}
}
