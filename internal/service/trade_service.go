package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"ibtrade_go/internal/domain"
	"ibtrade_go/internal/engine"
	"ibtrade_go/internal/infra"
	"ibtrade_go/internal/infra/ibgw"
)

const defaultConnectTimeout = 5 * time.Second

// UpdateHandler receives each observed state change during a watch.
type UpdateHandler func(engine.Update)

// TradeService composes validation, submission and watching into one
// boundary. Each operation opens its own short-lived gateway session;
// the store is shared and long-lived.
type TradeService struct {
	cfg    *infra.Config
	store  domain.OrderRepository
	logger *slog.Logger
}

// NewTradeService creates the facade over config and store.
func NewTradeService(cfg *infra.Config, store domain.OrderRepository) *TradeService {
	return &TradeService{
		cfg:    cfg,
		store:  store,
		logger: slog.Default().With("module", "trade_service"),
	}
}

// ---- operation payloads -------------------------------------------------

type HealthIn struct {
	Timeout float64 `json:"timeout"` // seconds
}

type HealthOut struct {
	Connected   bool   `json:"connected"`
	NextValidID *int64 `json:"next_valid_id"`
	Error       string `json:"error,omitempty"`
}

type ValidateIn struct {
	Order    any  `json:"order"`
	Transmit bool `json:"transmit"`
}

type ValidateOut struct {
	Valid             bool                `json:"valid"`
	OrderRequest      *domain.OrderIntent `json:"order_request,omitempty"`
	EffectiveOrderRef string              `json:"effective_order_ref,omitempty"`
	Errors            []domain.FieldError `json:"errors,omitempty"`
}

type SubmitIn struct {
	Order    any     `json:"order"`
	Transmit bool    `json:"transmit"`
	DryRun   bool    `json:"dry_run"`
	Timeout  float64 `json:"timeout"` // seconds
}

type SubmitOut struct {
	Submitted         bool                  `json:"submitted"`
	DryRun            bool                  `json:"dry_run"`
	OrderID           *int64                `json:"order_id,omitempty"`
	State             *domain.OrderRecord   `json:"state,omitempty"`
	Contract          *ibgw.ContractPayload `json:"contract,omitempty"`
	OrderPayload      *ibgw.OrderPayload    `json:"order_payload,omitempty"`
	OrderRequest      *domain.OrderIntent   `json:"order_request,omitempty"`
	EffectiveOrderRef string                `json:"effective_order_ref,omitempty"`
	Errors            []domain.FieldError   `json:"errors,omitempty"`
	Error             string                `json:"error,omitempty"`
}

type WatchIn struct {
	OrderID      int64    `json:"order_id"`
	PollInterval *float64 `json:"poll_interval"` // seconds; nil = configured default
	Timeout      float64  `json:"timeout"`       // connect timeout, seconds
	MaxWait      *float64 `json:"max_wait"`      // seconds; nil = configured default
}

type WatchOut struct {
	OrderID  int64           `json:"order_id"`
	Terminal bool            `json:"terminal"`
	Status   string          `json:"status,omitempty"`
	Updates  []engine.Update `json:"updates,omitempty"`
	Error    string          `json:"error,omitempty"`
}

type ExecuteIn struct {
	Order           any      `json:"order"`
	Transmit        bool     `json:"transmit"`
	DryRun          bool     `json:"dry_run"`
	WaitForTerminal bool     `json:"wait_for_terminal"`
	Timeout         float64  `json:"timeout"`
	PollInterval    *float64 `json:"poll_interval"`
	MaxWait         *float64 `json:"max_wait"`
}

type ExecuteOut struct {
	Ok                bool                  `json:"ok"`
	Submitted         bool                  `json:"submitted"`
	DryRun            bool                  `json:"dry_run"`
	OrderID           *int64                `json:"order_id,omitempty"`
	Status            string                `json:"status,omitempty"`
	Terminal          bool                  `json:"terminal"`
	State             *domain.OrderRecord   `json:"state,omitempty"`
	Updates           []engine.Update       `json:"updates,omitempty"`
	Contract          *ibgw.ContractPayload `json:"contract,omitempty"`
	OrderPayload      *ibgw.OrderPayload    `json:"order_payload,omitempty"`
	OrderRequest      *domain.OrderIntent   `json:"order_request,omitempty"`
	EffectiveOrderRef string                `json:"effective_order_ref,omitempty"`
	Errors            []domain.FieldError   `json:"errors,omitempty"`
	Error             string                `json:"error,omitempty"`
}

// ---- operations ---------------------------------------------------------

// Health connects, reports the first assignable order id, disconnects.
func (t *TradeService) Health(in HealthIn) HealthOut {
	_, ready, closeSession, err := t.connect(in.Timeout)
	if err != nil {
		return HealthOut{Connected: false, Error: domain.ErrMsgConnect}
	}
	defer closeSession()

	id := ready.NextOrderID
	return HealthOut{Connected: true, NextValidID: &id}
}

// Validate coerces and validates the order input without touching the
// gateway or the store.
func (t *TradeService) Validate(in ValidateIn) ValidateOut {
	intent, errs := coerceIntent(in.Order, in.Transmit)
	if errs != nil {
		return ValidateOut{Valid: false, Errors: errs}
	}
	return ValidateOut{
		Valid:             true,
		OrderRequest:      intent,
		EffectiveOrderRef: intent.EffectiveOrderRef(),
	}
}

// Submit validates, encodes, and (unless dry_run) submits the order.
// Dry run never touches the gateway and creates no record. A connect
// failure creates no record either.
func (t *TradeService) Submit(in SubmitIn) SubmitOut {
	intent, errs := coerceIntent(in.Order, in.Transmit)
	if errs != nil {
		return SubmitOut{Submitted: false, Errors: errs}
	}

	contract := ibgw.BuildContract(intent)
	orderPayload := ibgw.BuildOrder(intent)

	if in.DryRun {
		return SubmitOut{
			Submitted:         false,
			DryRun:            true,
			Contract:          &contract,
			OrderPayload:      &orderPayload,
			OrderRequest:      intent,
			EffectiveOrderRef: intent.EffectiveOrderRef(),
		}
	}

	session, _, closeSession, err := t.connect(in.Timeout)
	if err != nil {
		return SubmitOut{Submitted: false, Error: domain.ErrMsgConnect}
	}
	defer closeSession()

	submitter := engine.NewSubmitter(session, t.store)
	orderID, state, err := submitter.Submit(intent)
	if err != nil {
		return SubmitOut{
			Submitted:    false,
			Error:        err.Error(),
			Contract:     &contract,
			OrderPayload: &orderPayload,
		}
	}

	return SubmitOut{
		Submitted:    true,
		OrderID:      &orderID,
		State:        state,
		Contract:     &contract,
		OrderPayload: &orderPayload,
	}
}

// Watch polls the persisted record until terminal or deadline. An
// already-terminal record returns without connecting; otherwise the
// gateway session feeds the reconciler while the watcher polls.
func (t *TradeService) Watch(in WatchIn, onUpdate UpdateHandler) WatchOut {
	pollInterval, maxWait, err := t.resolveWatchBounds(in.PollInterval, in.MaxWait)
	if err != nil {
		return WatchOut{OrderID: in.OrderID, Error: err.Error()}
	}

	out := WatchOut{OrderID: in.OrderID}

	persisted, err := t.store.Get(in.OrderID)
	if err != nil {
		return WatchOut{OrderID: in.OrderID, Error: err.Error()}
	}
	if persisted != nil && persisted.IsTerminal() {
		update := engine.Update{Event: "order_update", OrderID: in.OrderID, State: persisted}
		if onUpdate != nil {
			onUpdate(update)
		}
		out.Terminal = true
		out.Status = persisted.Status
		out.Updates = []engine.Update{update}
		return out
	}

	session, _, closeSession, err := t.connect(in.Timeout)
	if err != nil {
		if persisted != nil {
			out.Status = persisted.Status
		}
		out.Error = domain.ErrMsgConnect
		return out
	}
	defer closeSession()

	if err := session.RequestOpenOrders(); err != nil {
		t.logger.Warn("open orders request failed", slog.Any("error", err))
	}

	watcher := engine.NewWatcher(t.store)
	result, err := watcher.Watch(context.Background(), engine.WatchParams{
		OrderID:      in.OrderID,
		PollInterval: pollInterval,
		MaxWait:      maxWait,
		OnUpdate:     onUpdate,
	})
	if err != nil {
		out.Error = err.Error()
		return out
	}

	out.Terminal = result.Terminal
	out.Status = result.Status
	out.Updates = result.Updates
	out.Error = result.Err
	return out
}

// Execute is the composed workflow: validate, submit, optionally wait
// for terminal. The whole workflow shares one gateway session so the
// status events for the submitted order reach the reconciler while the
// watcher polls. Unexpected panics below are reported as a runtime
// error entry, never propagated.
func (t *TradeService) Execute(in ExecuteIn, onUpdate UpdateHandler) (out ExecuteOut) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("panic: %v", r)
			t.logger.Error("execute panicked", slog.Any("error", err))
			out = ExecuteOut{
				Ok:     false,
				Errors: []domain.FieldError{domain.RuntimeError(err)},
				Error:  err.Error(),
			}
		}
	}()

	intent, fieldErrs := coerceIntent(in.Order, in.Transmit)
	if fieldErrs != nil {
		return ExecuteOut{Ok: false, Errors: fieldErrs}
	}

	contract := ibgw.BuildContract(intent)
	orderPayload := ibgw.BuildOrder(intent)

	if in.DryRun {
		return ExecuteOut{
			Ok:                true,
			DryRun:            true,
			Contract:          &contract,
			OrderPayload:      &orderPayload,
			OrderRequest:      intent,
			EffectiveOrderRef: intent.EffectiveOrderRef(),
		}
	}

	var pollInterval, maxWait time.Duration
	if in.WaitForTerminal {
		var err error
		pollInterval, maxWait, err = t.resolveWatchBounds(in.PollInterval, in.MaxWait)
		if err != nil {
			return ExecuteOut{Ok: false, Error: err.Error()}
		}
	}

	// One session for the whole workflow: it must outlive the wait so
	// the reconciler keeps receiving status events for the order just
	// placed.
	session, _, closeSession, err := t.connect(in.Timeout)
	if err != nil {
		return ExecuteOut{
			Ok:           false,
			Error:        domain.ErrMsgConnect,
			Contract:     &contract,
			OrderPayload: &orderPayload,
		}
	}
	defer closeSession()

	submitter := engine.NewSubmitter(session, t.store)
	orderID, state, err := submitter.Submit(intent)
	if err != nil {
		return ExecuteOut{
			Ok:           false,
			Error:        err.Error(),
			Contract:     &contract,
			OrderPayload: &orderPayload,
		}
	}

	if !in.WaitForTerminal {
		out := ExecuteOut{
			Ok:           true,
			Submitted:    true,
			OrderID:      &orderID,
			State:        state,
			Contract:     &contract,
			OrderPayload: &orderPayload,
		}
		if state != nil {
			out.Status = state.Status
		}
		return out
	}

	watcher := engine.NewWatcher(t.store)
	result, err := watcher.Watch(context.Background(), engine.WatchParams{
		OrderID:      orderID,
		PollInterval: pollInterval,
		MaxWait:      maxWait,
		OnUpdate:     onUpdate,
	})
	if err != nil {
		return ExecuteOut{
			Ok:           false,
			Submitted:    true,
			OrderID:      &orderID,
			Error:        err.Error(),
			Contract:     &contract,
			OrderPayload: &orderPayload,
		}
	}

	finalState := state
	if n := len(result.Updates); n > 0 {
		finalState = result.Updates[n-1].State
	}

	return ExecuteOut{
		Ok:           result.Err == "",
		Submitted:    true,
		OrderID:      &orderID,
		Status:       result.Status,
		Terminal:     result.Terminal,
		State:        finalState,
		Updates:      result.Updates,
		Contract:     &contract,
		OrderPayload: &orderPayload,
		Error:        result.Err,
	}
}

// ---- helpers ------------------------------------------------------------

func coerceIntent(order any, transmit bool) (*domain.OrderIntent, []domain.FieldError) {
	intent, errs := domain.ParseOrderIntent(order)
	if errs != nil {
		return nil, errs
	}
	if transmit {
		intent.Transmit = true
	}
	return intent, nil
}

// connect opens a session and starts the reconciler draining its
// events into the store. The returned closer tears both down in order.
func (t *TradeService) connect(timeoutSec float64) (*ibgw.Session, ibgw.ReadyInfo, func(), error) {
	timeout := defaultConnectTimeout
	if timeoutSec > 0 {
		timeout = time.Duration(timeoutSec * float64(time.Second))
	}

	session := ibgw.NewSession(t.cfg.GatewayURL(), t.cfg.Gateway.ClientID)
	ready, err := session.Connect(context.Background(), timeout)
	if err != nil {
		t.logger.Error("gateway connect failed", slog.Any("error", err))
		return nil, ibgw.ReadyInfo{}, nil, err
	}

	reconciler := engine.NewReconciler(session.Events(), t.store)
	done := make(chan struct{})
	go func() {
		defer close(done)
		reconciler.Run(context.Background())
	}()

	closeSession := func() {
		session.Close()
		<-done
	}
	return session, ready, closeSession, nil
}

func (t *TradeService) resolveWatchBounds(pollInterval, maxWait *float64) (time.Duration, time.Duration, error) {
	poll := time.Duration(t.cfg.Watch.PollIntervalMS) * time.Millisecond
	if pollInterval != nil {
		if *pollInterval <= 0 {
			return 0, 0, domain.ErrInvalidPollInterval
		}
		poll = time.Duration(*pollInterval * float64(time.Second))
	}

	wait := time.Duration(t.cfg.Watch.DefaultMaxWaitSec) * time.Second
	if maxWait != nil {
		if *maxWait < 0 {
			return 0, 0, fmt.Errorf("max_wait must not be negative")
		}
		wait = time.Duration(*maxWait * float64(time.Second))
	}

	return poll, wait, nil
}
