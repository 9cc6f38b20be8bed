package engine

import (
	"log/slog"

	"ibtrade_go/internal/domain"
	"ibtrade_go/internal/infra"
	"ibtrade_go/internal/infra/ibgw"

	"github.com/shopspring/decimal"
)

// GatewayPort is what the submission engine needs from a session.
type GatewayPort interface {
	Ready() bool
	NextOrderID() int64
	PlaceOrder(orderID int64, contract ibgw.ContractPayload, order ibgw.OrderPayload) error
}

// Submitter turns a validated intent into a submitted order with an
// assigned id.
type Submitter struct {
	session GatewayPort
	store   domain.OrderRepository
	logger  *slog.Logger
}

// NewSubmitter creates a submitter over a connected session and store.
func NewSubmitter(session GatewayPort, store domain.OrderRepository) *Submitter {
	return &Submitter{
		session: session,
		store:   store,
		logger:  slog.Default().With("module", "submitter"),
	}
}

// Submit assigns an order id, records the provisional state, and hands
// the encoded order to the gateway. The provisional record is written
// before the wire call so a watcher never observes "not found" for an
// id already handed to a caller. Gateway acceptance happens later via
// events; a successful return only means the order left the process.
func (s *Submitter) Submit(intent *domain.OrderIntent) (int64, *domain.OrderRecord, error) {
	if !s.session.Ready() {
		return 0, nil, domain.ErrNotConnected
	}

	orderID := s.session.NextOrderID()
	contract := ibgw.BuildContract(intent)
	order := ibgw.BuildOrder(intent)

	rec, err := s.store.Upsert(orderID, provisionalUpdate(intent))
	if err != nil {
		return 0, nil, err
	}

	if err := s.session.PlaceOrder(orderID, contract, order); err != nil {
		status := domain.StatusError
		msg := err.Error()
		s.store.Upsert(orderID, domain.OrderUpdate{Status: &status, LastError: &msg})
		return orderID, nil, err
	}

	// The record stays SUBMITTING until the gateway reports otherwise;
	// acceptance is asynchronous.
	infra.GlobalMetrics.RecordOrderSubmitted()
	s.logger.Info("order submitted",
		slog.Int64("order_id", orderID),
		slog.String("symbol", intent.Symbol),
		slog.String("action", intent.Action),
		slog.Bool("transmit", intent.Transmit),
	)
	return orderID, rec, nil
}

func provisionalUpdate(intent *domain.OrderIntent) domain.OrderUpdate {
	status := domain.StatusSubmitting
	filled := decimal.Zero
	orderRef := intent.EffectiveOrderRef()

	update := domain.OrderUpdate{
		Status:    &status,
		Symbol:    &intent.Symbol,
		Action:    &intent.Action,
		OrderType: &intent.OrderType,
		Quantity:  &intent.Quantity,
		TIF:       &intent.TIF,
		Transmit:  &intent.Transmit,
		Filled:    &filled,
	}
	if orderRef != "" {
		update.OrderRef = &orderRef
	}
	if intent.LimitPrice.Valid {
		update.LimitPrice = &intent.LimitPrice.Decimal
	}
	return update
}
