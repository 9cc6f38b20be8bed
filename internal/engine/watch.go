package engine

import (
	"context"
	"log/slog"
	"time"

	"ibtrade_go/internal/domain"
)

// Update is one observed state change, in the shape delivered to the
// caller's sink and collected in the result.
type Update struct {
	Event   string              `json:"event"`
	OrderID int64               `json:"order_id"`
	State   *domain.OrderRecord `json:"state"`
}

// WatchParams bounds one watch. MaxWait is the total budget; a zero
// MaxWait means a single read with no sleeping. OnUpdate, when set, is
// invoked for every observed state change. Early cancellation beyond
// the deadline goes through ctx.
type WatchParams struct {
	OrderID      int64
	PollInterval time.Duration
	MaxWait      time.Duration
	OnUpdate     func(Update)
}

// WatchResult reports the outcome of a bounded wait. A deadline expiry
// is a normal outcome (Err = "max_wait_exceeded"), not a failure.
type WatchResult struct {
	OrderID  int64    `json:"order_id"`
	Terminal bool     `json:"terminal"`
	Status   string   `json:"status,omitempty"`
	Updates  []Update `json:"updates,omitempty"`
	Err      string   `json:"error,omitempty"`
}

// stateSignature is the change-detection key: a record is re-emitted
// only when one of these moved.
type stateSignature struct {
	lastUpdate   time.Time
	status       string
	filled       string
	avgFillPrice string
}

func signatureOf(rec *domain.OrderRecord) stateSignature {
	sig := stateSignature{
		lastUpdate: rec.LastUpdate,
		status:     rec.Status,
		filled:     rec.Filled.String(),
	}
	if rec.AvgFillPrice.Valid {
		sig.avgFillPrice = rec.AvgFillPrice.Decimal.String()
	}
	return sig
}

// Watcher turns the asynchronous store into a synchronous, bounded
// wait. It polls; it never subscribes, so it tolerates restarts.
type Watcher struct {
	store  domain.OrderRepository
	logger *slog.Logger
}

// NewWatcher creates a watcher over the given store.
func NewWatcher(store domain.OrderRepository) *Watcher {
	return &Watcher{
		store:  store,
		logger: slog.Default().With("module", "watcher"),
	}
}

// Watch polls until the order reaches a terminal status or the
// deadline expires. A record that never appears is reported the same
// way as one that never turns terminal, since submission writes the
// record before the gateway confirms anything. The returned error is
// non-nil only for contract violations and store failures.
func (w *Watcher) Watch(ctx context.Context, params WatchParams) (WatchResult, error) {
	if params.PollInterval <= 0 {
		return WatchResult{}, domain.ErrInvalidPollInterval
	}

	result := WatchResult{OrderID: params.OrderID}
	deadline := time.Now().Add(params.MaxWait)
	var lastSig stateSignature
	seen := false

	for {
		rec, err := w.store.Get(params.OrderID)
		if err != nil {
			return WatchResult{}, err
		}

		if rec != nil {
			if sig := signatureOf(rec); !seen || sig != lastSig {
				seen = true
				lastSig = sig
				update := Update{Event: "order_update", OrderID: params.OrderID, State: rec}
				result.Updates = append(result.Updates, update)
				if params.OnUpdate != nil {
					params.OnUpdate(update)
				}
			}
			result.Status = rec.Status

			if rec.IsTerminal() {
				result.Terminal = true
				w.logger.Info("order terminal",
					slog.Int64("order_id", params.OrderID),
					slog.String("status", rec.Status),
				)
				return result, nil
			}
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			result.Err = domain.ErrMsgMaxWait
			return result, nil
		}

		sleep := params.PollInterval
		if sleep > remaining {
			sleep = remaining
		}
		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			result.Err = domain.ErrMsgInterrupted
			return result, nil
		case <-timer.C:
		}
	}
}
