package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"ibtrade_go/internal/domain"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// OrderStore is the durable, keyed record of each order's latest known
// state. Writes are write-through: a successful Upsert is visible to a
// Get from another process after restart.
//
// One OrderStore instance per database file. Two processes must not
// both reconcile into the same file.
type OrderStore struct {
	db *gorm.DB

	// Serializes read-merge-write cycles. The reconciler is the only
	// steady-state writer, but submission writes the provisional record
	// on the caller's goroutine.
	mu sync.Mutex
}

// NewOrderStore opens (creating if needed) the SQLite database at dbPath.
func NewOrderStore(dbPath string) (*OrderStore, error) {
	dbDir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create DB directory: %w", err)
	}

	// Connect to SQLite (Pure Go)
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Auto Migration
	if err := db.AutoMigrate(&domain.OrderRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &OrderStore{db: db}, nil
}

// Upsert merges the partial update into the record for orderID,
// creating it with safe defaults when absent. Merge policy: nil update
// fields are skipped; a terminal status is never overwritten by a
// non-terminal one; filled never decreases; perm_id is set once;
// last_update never regresses.
func (s *OrderStore) Upsert(orderID int64, update domain.OrderUpdate) (*domain.OrderRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.get(orderID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		rec = &domain.OrderRecord{
			OrderID: orderID,
			Status:  domain.StatusUnknown,
			Filled:  decimal.Zero,
		}
	}

	mergeUpdate(rec, update)

	if now := time.Now().UTC(); now.After(rec.LastUpdate) {
		rec.LastUpdate = now
	}

	// Snapshot excludes the previous snapshot itself.
	rec.RawState = ""
	raw, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot record: %w", err)
	}
	rec.RawState = string(raw)

	if err := s.db.Save(rec).Error; err != nil {
		return nil, fmt.Errorf("failed to persist order %d: %w", orderID, err)
	}
	return rec, nil
}

func mergeUpdate(rec *domain.OrderRecord, update domain.OrderUpdate) {
	if update.Status != nil {
		next := domain.NormalizeStatus(*update.Status)
		if !rec.IsTerminal() || domain.IsTerminalStatus(next) {
			rec.Status = next
		}
	}
	if update.Symbol != nil && *update.Symbol != "" {
		rec.Symbol = *update.Symbol
	}
	if update.Action != nil && *update.Action != "" {
		rec.Action = *update.Action
	}
	if update.OrderType != nil && *update.OrderType != "" {
		rec.OrderType = *update.OrderType
	}
	if update.Quantity != nil && update.Quantity.IsPositive() {
		rec.Quantity = *update.Quantity
	}
	if update.LimitPrice != nil {
		rec.LimitPrice = decimal.NullDecimal{Decimal: *update.LimitPrice, Valid: true}
	}
	if update.TIF != nil && *update.TIF != "" {
		rec.TIF = *update.TIF
	}
	if update.Transmit != nil {
		rec.Transmit = *update.Transmit
	}
	if update.OrderRef != nil && *update.OrderRef != "" {
		rec.OrderRef = update.OrderRef
	}
	if update.Filled != nil && update.Filled.GreaterThan(rec.Filled) {
		rec.Filled = *update.Filled
	}
	if update.AvgFillPrice != nil && update.AvgFillPrice.IsPositive() {
		rec.AvgFillPrice = decimal.NullDecimal{Decimal: *update.AvgFillPrice, Valid: true}
	}
	if update.LastFillPrice != nil && update.LastFillPrice.IsPositive() {
		rec.LastFillPrice = decimal.NullDecimal{Decimal: *update.LastFillPrice, Valid: true}
	}
	if update.PermID != nil && *update.PermID != 0 && rec.PermID == nil {
		rec.PermID = update.PermID
	}
	if update.LastErrorCode != nil {
		rec.LastErrorCode = update.LastErrorCode
	}
	if update.LastError != nil && *update.LastError != "" {
		rec.LastError = update.LastError
	}
}

// Get retrieves a record by order id. Not found is not an error.
func (s *OrderStore) Get(orderID int64) (*domain.OrderRecord, error) {
	return s.get(orderID)
}

func (s *OrderStore) get(orderID int64) (*domain.OrderRecord, error) {
	var rec domain.OrderRecord
	err := s.db.First(&rec, "order_id = ?", orderID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// List retrieves all records in order-id order. Readback tooling only;
// the watch hot path uses Get.
func (s *OrderStore) List() ([]domain.OrderRecord, error) {
	var recs []domain.OrderRecord
	err := s.db.Order("order_id").Find(&recs).Error
	return recs, err
}
