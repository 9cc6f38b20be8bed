package ibgw

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"ibtrade_go/internal/domain"
	"ibtrade_go/internal/event"
	"ibtrade_go/internal/infra"

	"github.com/gorilla/websocket"
)

const (
	// Bounded hand-off between the read loop and the reconciler. The
	// reconciler is the single consumer and drains continuously; a full
	// buffer blocks the producer rather than dropping events.
	eventBufferSize = 256
)

// ReadyInfo is returned once the gateway handed out its first
// assignable order id.
type ReadyInfo struct {
	NextOrderID int64
}

// Session is the single authoritative connection to the trading
// gateway. It runs exactly one background read loop, which is the
// exclusive producer on Events(). Disconnection is modeled as the
// event channel closing; there is no auto-reconnect.
type Session struct {
	url      string
	clientID int
	logger   *slog.Logger

	mu      sync.RWMutex
	conn    *websocket.Conn
	writeMu sync.Mutex

	events  chan event.Event
	nextID  atomic.Int64
	ready   atomic.Bool
	readyCh chan struct{}
	wg      sync.WaitGroup
}

// NewSession creates a session for the given gateway URL. Connect must
// be called before use.
func NewSession(url string, clientID int) *Session {
	return &Session{
		url:      url,
		clientID: clientID,
		logger:   slog.Default().With("module", "gateway_session"),
		events:   make(chan event.Event, eventBufferSize),
		readyCh:  make(chan struct{}),
	}
}

// Connect dials the gateway, starts the read loop, and blocks until
// the initial order id arrives or timeout elapses. The returned error
// is a retriable NetworkError for refused/unreachable/timeout.
func (s *Session) Connect(ctx context.Context, timeout time.Duration) (ReadyInfo, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: timeout,
	}

	conn, _, err := dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return ReadyInfo{}, domain.NewNetworkError("connect", err)
	}

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()

	if err := s.writeJSON(startAPIRequest{Type: msgStartAPI, ClientID: s.clientID}); err != nil {
		conn.Close()
		return ReadyInfo{}, domain.NewNetworkError("start_api", err)
	}

	infra.GlobalMetrics.IncrementSessions()
	s.wg.Add(1)
	go s.readLoop(conn)

	select {
	case <-s.readyCh:
		id := s.nextID.Load()
		s.logger.Info("session ready", slog.Int64("next_order_id", id))
		return ReadyInfo{NextOrderID: id}, nil
	case <-time.After(timeout):
		s.Close()
		return ReadyInfo{}, domain.NewNetworkError("connect", domain.ErrConnectTimeout)
	case <-ctx.Done():
		s.Close()
		return ReadyInfo{}, domain.NewNetworkError("connect", ctx.Err())
	}
}

// Ready reports whether the gateway delivered the initial order id.
func (s *Session) Ready() bool {
	return s.ready.Load()
}

// NextOrderID atomically returns and advances the session's order id
// counter. Never blocks; never repeats a value.
func (s *Session) NextOrderID() int64 {
	return s.nextID.Add(1) - 1
}

// Events is the single ordered event stream. Consumed by exactly one
// reader; closed when the read loop exits.
func (s *Session) Events() <-chan event.Event {
	return s.events
}

// PlaceOrder hands an encoded order to the transport. Fire-and-forget:
// acceptance is observed later via events, not this call's return.
func (s *Session) PlaceOrder(orderID int64, contract ContractPayload, order OrderPayload) error {
	return s.writeJSON(placeOrderRequest{
		Type:     msgPlaceOrder,
		OrderID:  orderID,
		Contract: contract,
		Order:    order,
	})
}

// RequestOpenOrders asks the gateway to replay open-order state. Used
// by watchers resuming after a restart.
func (s *Session) RequestOpenOrders() error {
	return s.writeJSON(openOrdersRequest{Type: msgReqOpenOrders})
}

// Close tears down the connection and waits for the read loop to exit.
func (s *Session) Close() {
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	s.wg.Wait()
}

func (s *Session) writeJSON(v any) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.RLock()
	conn := s.conn
	s.mu.RUnlock()

	if conn == nil {
		return domain.ErrSessionClosed
	}
	if err := conn.WriteJSON(v); err != nil {
		return domain.NewNetworkError("write", err)
	}
	return nil
}

// readLoop is the exclusive producer of gateway events. It never
// processes events in-line; they are handed off through the channel.
func (s *Session) readLoop(conn *websocket.Conn) {
	defer s.wg.Done()
	defer close(s.events)
	defer infra.GlobalMetrics.DecrementSessions()

	for {
		var frame inboundFrame
		if err := conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Warn("gateway read failed", slog.Any("error", err))
			} else {
				s.logger.Info("gateway stream ended")
			}
			return
		}

		switch frame.Type {
		case msgNextValidID:
			s.handleNextValidID(frame.OrderID)
		case msgOpenOrder:
			s.events <- openOrderEvent(frame)
		case msgOrderStatus:
			s.events <- event.OrderStatusEvent{
				OrderID:       frame.OrderID,
				Status:        frame.Status,
				Filled:        frame.Filled,
				Remaining:     frame.Remaining,
				AvgFillPrice:  frame.AvgFillPrice,
				LastFillPrice: frame.LastFillPrice,
				PermID:        frame.PermID,
			}
		case msgError:
			s.events <- event.ErrorEvent{
				OrderID: frame.OrderID,
				Code:    frame.Code,
				Message: frame.Message,
			}
		default:
			s.logger.Warn("unknown gateway frame", slog.String("type", frame.Type))
		}
	}
}

// handleNextValidID seeds the order id counter on first receipt.
// Gateways may re-announce a higher id later; the counter only ever
// moves forward and never below an already issued value. Only the read
// loop calls this; the counter must be seeded before readiness is
// published, or a Ready() poller could mint an id the seed then
// clobbers.
func (s *Session) handleNextValidID(orderID int64) {
	if !s.ready.Load() {
		s.nextID.Store(orderID)
		s.ready.Store(true)
		close(s.readyCh)
		return
	}

	for {
		cur := s.nextID.Load()
		if orderID <= cur || s.nextID.CompareAndSwap(cur, orderID) {
			return
		}
	}
}

func openOrderEvent(frame inboundFrame) event.OpenOrderEvent {
	ev := event.OpenOrderEvent{
		OrderID: frame.OrderID,
		Status:  frame.Status,
		PermID:  frame.PermID,
	}
	if frame.Contract != nil {
		ev.Symbol = frame.Contract.Symbol
	}
	if frame.Order != nil {
		ev.Action = frame.Order.Action
		ev.OrderType = frame.Order.OrderType
		ev.Quantity = frame.Order.Quantity
		ev.TIF = frame.Order.TIF
		ev.Transmit = frame.Order.Transmit
		ev.OrderRef = frame.Order.OrderRef
		if frame.Order.OrderType == domain.OrderTypeLimit && frame.Order.LimitPrice != nil {
			ev.LimitPrice = *frame.Order.LimitPrice
		}
	}
	return ev
}
