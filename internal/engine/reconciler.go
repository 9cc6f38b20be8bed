package engine

import (
	"context"
	"log/slog"

	"ibtrade_go/internal/domain"
	"ibtrade_go/internal/event"
	"ibtrade_go/internal/infra"
)

// Reconciler drains the session's event stream into the order store.
// It is the sole consumer of the stream and the only steady-state
// writer into the store, so all merges are serialized.
type Reconciler struct {
	events <-chan event.Event
	store  domain.OrderRepository
	logger *slog.Logger
}

// NewReconciler creates a reconciler over the given stream and store.
func NewReconciler(events <-chan event.Event, store domain.OrderRepository) *Reconciler {
	return &Reconciler{
		events: events,
		store:  store,
		logger: slog.Default().With("module", "reconciler"),
	}
}

// Run consumes events until the stream closes or ctx is done. Stream
// termination marks no records specially; a stalled session surfaces
// to callers as a watch timeout.
func (r *Reconciler) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("reconciler stopping")
			return
		case ev, ok := <-r.events:
			if !ok {
				r.logger.Info("event stream ended")
				return
			}
			r.apply(ev)
			infra.GlobalMetrics.RecordEvent()
		}
	}
}

func (r *Reconciler) apply(ev event.Event) {
	switch e := ev.(type) {
	case event.OpenOrderEvent:
		r.applyOpenOrder(e)
	case event.OrderStatusEvent:
		r.applyOrderStatus(e)
	case event.ErrorEvent:
		r.applyError(e)
	default:
		r.logger.Warn("unknown event type", slog.Any("type", ev.GetType()))
	}
}

func (r *Reconciler) applyOpenOrder(e event.OpenOrderEvent) {
	status := e.Status
	if status == "" {
		status = "OPEN"
	}

	update := domain.OrderUpdate{
		Status:    &status,
		Symbol:    &e.Symbol,
		Action:    &e.Action,
		OrderType: &e.OrderType,
		Quantity:  &e.Quantity,
		TIF:       &e.TIF,
		Transmit:  &e.Transmit,
		OrderRef:  &e.OrderRef,
	}
	if e.LimitPrice.Valid {
		update.LimitPrice = &e.LimitPrice.Decimal
	}
	if e.PermID != 0 {
		update.PermID = &e.PermID
	}

	rec, err := r.store.Upsert(e.OrderID, update)
	if err != nil {
		r.logger.Error("open_order upsert failed", slog.Int64("order_id", e.OrderID), slog.Any("error", err))
		return
	}
	r.logger.Info("open_order",
		slog.Int64("order_id", e.OrderID),
		slog.String("status", rec.Status),
		slog.String("symbol", rec.Symbol),
	)
}

func (r *Reconciler) applyOrderStatus(e event.OrderStatusEvent) {
	update := domain.OrderUpdate{
		Status:        &e.Status,
		Filled:        &e.Filled,
		AvgFillPrice:  &e.AvgFillPrice,
		LastFillPrice: &e.LastFillPrice,
	}
	if e.PermID != 0 {
		update.PermID = &e.PermID
	}

	rec, err := r.store.Upsert(e.OrderID, update)
	if err != nil {
		r.logger.Error("order_status upsert failed", slog.Int64("order_id", e.OrderID), slog.Any("error", err))
		return
	}
	if domain.NormalizeStatus(e.Status) == domain.StatusFilled {
		infra.GlobalMetrics.RecordOrderFilled()
	}
	r.logger.Info("order_status",
		slog.Int64("order_id", e.OrderID),
		slog.String("status", rec.Status),
		slog.String("filled", rec.Filled.String()),
	)
}

func (r *Reconciler) applyError(e event.ErrorEvent) {
	infra.GlobalMetrics.RecordGatewayError()

	// Errors not tied to an order are informational only.
	if e.OrderID <= 0 {
		r.logger.Warn("gateway error",
			slog.Int64("code", e.Code),
			slog.String("message", e.Message),
		)
		return
	}

	if _, err := r.store.Upsert(e.OrderID, domain.OrderUpdate{
		LastErrorCode: &e.Code,
		LastError:     &e.Message,
	}); err != nil {
		r.logger.Error("error upsert failed", slog.Int64("order_id", e.OrderID), slog.Any("error", err))
		return
	}
	r.logger.Warn("order error",
		slog.Int64("order_id", e.OrderID),
		slog.Int64("code", e.Code),
		slog.String("message", e.Message),
	)
}
