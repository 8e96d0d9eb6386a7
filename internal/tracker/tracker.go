// Package tracker keeps local orders in sync with the broker and
// places the paired SELL of every filled BUY exactly once.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"bond-reversion-lab/internal/cronrunner"
	"bond-reversion-lab/internal/domain"
	"bond-reversion-lab/internal/idhash"
	"bond-reversion-lab/internal/observability"
	"bond-reversion-lab/internal/storage"
)

// DefaultSchedule is the poll cadence used when Start receives an empty spec.
const DefaultSchedule = "@every 5s"

// DefaultCallTimeout bounds every gateway call.
const DefaultCallTimeout = 10 * time.Second

// ErrOrderTerminal is returned when cancelling an order that can no longer change.
var ErrOrderTerminal = errors.New("order is in a terminal status")

// errUnchanged aborts an OrderStore.Update without writing.
var errUnchanged = errors.New("order unchanged")

// Options configures a Tracker.
type Options struct {
	Orders      storage.OrderStore
	Targets     storage.SellTargetStore
	Gateway     Gateway
	Metrics     *observability.Metrics
	Logger      *zap.Logger
	CallTimeout time.Duration
	Now         func() time.Time
}

// Tracker polls active orders and reacts to fills.
type Tracker struct {
	orders      storage.OrderStore
	targets     storage.SellTargetStore
	gateway     Gateway
	metrics     *observability.Metrics
	logger      *zap.Logger
	callTimeout time.Duration
	now         func() time.Time

	// cycle serializes poll cycles, placements and cancellations.
	cycle sync.Mutex
}

// New creates a tracker. Orders, Targets and Gateway are required.
func New(opts Options) *Tracker {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = DefaultCallTimeout
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	return &Tracker{
		orders:      opts.Orders,
		targets:     opts.Targets,
		gateway:     opts.Gateway,
		metrics:     opts.Metrics,
		logger:      opts.Logger,
		callTimeout: opts.CallTimeout,
		now:         opts.Now,
	}
}

// PlaceRequest asks for a new limit order.
// Requests with the same ClientKey map to the same order; an empty key is replaced by a random one.
type PlaceRequest struct {
	ClientKey    string
	AccountID    string
	InstrumentID string
	Direction    domain.Direction
	Lots         int64
	Price        decimal.Decimal
}

func (r PlaceRequest) validate() error {
	switch {
	case strings.TrimSpace(r.AccountID) == "":
		return fmt.Errorf("%w: account id is required", domain.ErrInvalidParameter)
	case strings.TrimSpace(r.InstrumentID) == "":
		return fmt.Errorf("%w: instrument id is required", domain.ErrInvalidParameter)
	case r.Direction != domain.DirectionBuy && r.Direction != domain.DirectionSell:
		return fmt.Errorf("%w: unknown direction %q", domain.ErrInvalidParameter, r.Direction)
	case r.Lots <= 0:
		return fmt.Errorf("%w: lots must be > 0, got %d", domain.ErrInvalidParameter, r.Lots)
	case !r.Price.IsPositive():
		return fmt.Errorf("%w: price must be > 0, got %s", domain.ErrInvalidParameter, r.Price)
	}
	return nil
}

// PlaceOrder persists a PENDING order and submits it.
// A repeated request returns the existing order without resubmitting.
// On gateway failure the order is kept in ERROR and the error is returned with it.
func (t *Tracker) PlaceOrder(ctx context.Context, req PlaceRequest) (*domain.Order, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	if req.ClientKey == "" {
		req.ClientKey = uuid.NewString()
	}

	id := idhash.ComputeOrderID(req.ClientKey)
	existing, err := t.orders.GetByID(ctx, id)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: load order %s: %w", domain.ErrPersistence, id, err)
	}

	// Poll and Cancel wait until the order carries the broker's answer.
	t.cycle.Lock()
	defer t.cycle.Unlock()

	now := t.now()
	order := &domain.Order{
		ID:            id,
		AccountID:     req.AccountID,
		InstrumentID:  req.InstrumentID,
		Direction:     req.Direction,
		RequestedLots: req.Lots,
		Price:         req.Price,
		Status:        domain.OrderStatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := t.orders.Insert(ctx, order); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			return t.orders.GetByID(ctx, id)
		}
		return nil, fmt.Errorf("%w: insert order %s: %w", domain.ErrPersistence, id, err)
	}
	t.metrics.RecordTransition(string(order.Direction), string(order.Status))

	t.logger.Info("order placed",
		zap.String("order_id", id),
		zap.String("instrument_id", order.InstrumentID),
		zap.String("direction", string(order.Direction)),
		zap.Int64("lots", order.RequestedLots),
		zap.String("price", order.Price.String()),
	)

	submitted, err := t.submit(ctx, order)
	if err != nil {
		return submitted, err
	}
	if submitted.Direction == domain.DirectionBuy && submitted.Status == domain.OrderStatusFilled {
		var stats CycleStats
		t.afterChange(ctx, submitted, &stats)
	}
	return submitted, nil
}

// submit sends a persisted order to the gateway and records the outcome.
func (t *Tracker) submit(ctx context.Context, o *domain.Order) (*domain.Order, error) {
	callCtx, cancel := context.WithTimeout(ctx, t.callTimeout)
	state, err := t.gateway.Submit(callCtx, SubmitRequest{
		OrderID:      o.ID,
		AccountID:    o.AccountID,
		InstrumentID: o.InstrumentID,
		Direction:    o.Direction,
		Lots:         o.RequestedLots,
		Price:        o.Price,
	})
	cancel()

	if err != nil {
		t.metrics.RecordGatewayError("submit")
		t.logger.Error("order submission failed", zap.String("order_id", o.ID), zap.Error(err))
		failed, uerr := t.orders.Update(ctx, o.ID, func(cur *domain.Order) error {
			if cur.Status != domain.OrderStatusPending {
				return errUnchanged
			}
			cur.Status = domain.OrderStatusError
			cur.ErrorMessage = err.Error()
			cur.UpdatedAt = t.now()
			return nil
		})
		if uerr == nil {
			t.metrics.RecordTransition(string(failed.Direction), string(failed.Status))
			return failed, fmt.Errorf("%w: submit order %s: %w", domain.ErrExternalService, o.ID, err)
		}
		if !errors.Is(uerr, errUnchanged) {
			return o, errors.Join(fmt.Errorf("%w: submit order %s: %w", domain.ErrExternalService, o.ID, err),
				fmt.Errorf("%w: mark order %s failed: %w", domain.ErrPersistence, o.ID, uerr))
		}
		current, _ := t.orders.GetByID(ctx, o.ID)
		return current, fmt.Errorf("%w: submit order %s: %w", domain.ErrExternalService, o.ID, err)
	}

	if state.Status == "" {
		state.Status = domain.OrderStatusNew
	}
	updated, changed, err := t.apply(ctx, o.ID, state, true)
	if err != nil {
		return o, err
	}
	if !changed {
		return t.orders.GetByID(ctx, o.ID)
	}
	return updated, nil
}

// apply overwrites local fields with an authoritative broker state.
// It reports whether the stored status changed.
func (t *Tracker) apply(ctx context.Context, id string, state domain.OrderState, submitted bool) (*domain.Order, bool, error) {
	var before domain.OrderStatus
	updated, err := t.orders.Update(ctx, id, func(o *domain.Order) error {
		before = o.Status
		if o.Status.IsTerminal() {
			return errUnchanged
		}
		now := t.now()
		if state.ExchangeID != "" {
			o.ExchangeID = state.ExchangeID
		}
		if submitted && o.SubmittedAt == nil {
			o.SubmittedAt = &now
		}
		o.Status = state.Status
		o.ExecutedLots = state.ExecutedLots
		o.AvgExecPrice = state.AvgExecPrice
		switch state.Status {
		case domain.OrderStatusFilled:
			if o.ExecutedAt == nil {
				o.ExecutedAt = &now
			}
		case domain.OrderStatusCancelled:
			if o.CancelledAt == nil {
				o.CancelledAt = &now
			}
		case domain.OrderStatusError:
			o.ErrorMessage = state.Message
		}
		o.UpdatedAt = now
		return nil
	})
	if errors.Is(err, errUnchanged) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("%w: update order %s: %w", domain.ErrPersistence, id, err)
	}

	changed := before != updated.Status
	if changed {
		t.metrics.RecordTransition(string(updated.Direction), string(updated.Status))
		t.logger.Info("order status changed",
			zap.String("order_id", id),
			zap.String("from", string(before)),
			zap.String("to", string(updated.Status)),
			zap.Int64("executed_lots", updated.ExecutedLots),
		)
	}
	return updated, changed, nil
}

// CycleStats summarizes one poll cycle.
type CycleStats struct {
	Skipped     bool
	Active      int
	Queried     int
	Changed     int
	PairedSells int
	Errors      int
}

// Poll runs one tracking cycle. If a cycle, placement or cancellation is in progress the
// call returns immediately with Skipped set.
// Gateway and persistence failures are logged and retried on the next cycle;
// only a failure to list active orders is returned.
func (t *Tracker) Poll(ctx context.Context) (CycleStats, error) {
	if !t.cycle.TryLock() {
		t.metrics.RecordPollCycle("skipped", 0, 0)
		t.logger.Debug("poll cycle skipped, previous cycle still running")
		return CycleStats{Skipped: true}, nil
	}
	defer t.cycle.Unlock()

	start := time.Now()
	var stats CycleStats

	active, err := t.orders.ListActive(ctx)
	if err != nil {
		t.metrics.RecordPollCycle("failed", time.Since(start), 0)
		return stats, fmt.Errorf("%w: list active orders: %w", domain.ErrPersistence, err)
	}
	stats.Active = len(active)

	for _, o := range active {
		if ctx.Err() != nil {
			break
		}
		t.track(ctx, o, &stats)
	}

	t.sweepUnpaired(ctx, &stats)

	t.metrics.RecordPollCycle("completed", time.Since(start), stats.Active)
	if stats.Changed > 0 || stats.Errors > 0 || stats.PairedSells > 0 {
		t.logger.Info("poll cycle finished",
			zap.Int("active", stats.Active),
			zap.Int("changed", stats.Changed),
			zap.Int("paired_sells", stats.PairedSells),
			zap.Int("errors", stats.Errors),
			zap.Duration("elapsed", time.Since(start)),
		)
	}
	return stats, ctx.Err()
}

func (t *Tracker) track(ctx context.Context, o *domain.Order, stats *CycleStats) {
	// Persisted but never acknowledged: resubmit under the same local id
	// once any in-flight submission has timed out.
	if o.ExchangeID == "" {
		if t.now().Sub(o.CreatedAt) < t.callTimeout {
			return
		}
		updated, err := t.submit(ctx, o)
		if err != nil {
			stats.Errors++
			return
		}
		if updated.Status != o.Status {
			stats.Changed++
		}
		t.afterChange(ctx, updated, stats)
		return
	}

	callCtx, cancel := context.WithTimeout(ctx, t.callTimeout)
	state, err := t.gateway.Status(callCtx, o.AccountID, o.ExchangeID)
	cancel()
	t.metrics.RecordStatusQuery()
	stats.Queried++
	if err != nil {
		stats.Errors++
		t.metrics.RecordGatewayError("status")
		t.logger.Warn("order status query failed",
			zap.String("order_id", o.ID),
			zap.String("exchange_id", o.ExchangeID),
			zap.Error(err),
		)
		return
	}

	updated, changed, err := t.apply(ctx, o.ID, state, false)
	if err != nil {
		stats.Errors++
		t.logger.Error("order update failed", zap.String("order_id", o.ID), zap.Error(err))
		return
	}
	if !changed {
		return
	}
	stats.Changed++
	t.afterChange(ctx, updated, stats)
}

func (t *Tracker) afterChange(ctx context.Context, o *domain.Order, stats *CycleStats) {
	if o.Direction != domain.DirectionBuy || o.Status != domain.OrderStatusFilled {
		return
	}
	created, err := t.ensurePairedSell(ctx, o)
	if created {
		stats.PairedSells++
	}
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrDuplicateSubmission):
		t.logger.Debug("paired sell already exists", zap.String("buy_order_id", o.ID))
	case created:
		stats.Errors++
		t.logger.Warn("paired sell left in error", zap.String("buy_order_id", o.ID), zap.Error(err))
	default:
		stats.Errors++
		t.logger.Warn("paired sell deferred", zap.String("buy_order_id", o.ID), zap.Error(err))
	}
}

// sweepUnpaired retries paired SELL creation for filled BUYs left without one.
func (t *Tracker) sweepUnpaired(ctx context.Context, stats *CycleStats) {
	buys, err := t.orders.ListUnpairedFilledBuys(ctx)
	if err != nil {
		stats.Errors++
		t.logger.Error("list unpaired buys failed", zap.Error(err))
		return
	}
	for _, b := range buys {
		if ctx.Err() != nil {
			return
		}
		t.afterChange(ctx, b, stats)
	}
}

// ensurePairedSell creates and submits the SELL paired with a filled BUY.
// It returns false without error when the SELL already exists, and true with
// the submission error when the SELL was persisted but the broker rejected it.
// The SELL price is the persisted sell target of the instrument.
func (t *Tracker) ensurePairedSell(ctx context.Context, buy *domain.Order) (bool, error) {
	_, err := t.orders.FindByParentID(ctx, buy.ID)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return false, fmt.Errorf("%w: find paired sell of %s: %w", domain.ErrPersistence, buy.ID, err)
	}

	target, err := t.targets.Get(ctx, buy.InstrumentID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return false, fmt.Errorf("%w: no sell target for %s", domain.ErrDataUnavailable, buy.InstrumentID)
		}
		return false, fmt.Errorf("%w: load sell target %s: %w", domain.ErrPersistence, buy.InstrumentID, err)
	}

	lots := buy.ExecutedLots
	if lots <= 0 {
		lots = buy.RequestedLots
	}

	now := t.now()
	sell := &domain.Order{
		ID:            idhash.ComputePairedSellID(buy.ID),
		AccountID:     buy.AccountID,
		InstrumentID:  buy.InstrumentID,
		Direction:     domain.DirectionSell,
		RequestedLots: lots,
		Price:         target.SellPrice,
		Status:        domain.OrderStatusPending,
		ParentOrderID: buy.ID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := t.orders.Insert(ctx, sell); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			return false, fmt.Errorf("%w: paired sell of %s", domain.ErrDuplicateSubmission, buy.ID)
		}
		return false, fmt.Errorf("%w: insert paired sell of %s: %w", domain.ErrPersistence, buy.ID, err)
	}
	t.metrics.RecordPairedSell()
	t.metrics.RecordTransition(string(sell.Direction), string(sell.Status))
	t.logger.Info("paired sell created",
		zap.String("buy_order_id", buy.ID),
		zap.String("sell_order_id", sell.ID),
		zap.Int64("lots", lots),
		zap.String("price", sell.Price.String()),
	)

	// The SELL exists from here on; a failed submission leaves it in ERROR.
	if _, err := t.submit(ctx, sell); err != nil {
		return true, err
	}
	return true, nil
}

// Cancel asks the broker to cancel an order and waits for any running cycle or placement first.
// The local status follows the broker's answer, which may be FILLED if the order
// executed before the cancel arrived. An order without an exchange id is first
// resubmitted under its local id so the cancel reaches the broker's copy of it.
func (t *Tracker) Cancel(ctx context.Context, id string) (*domain.Order, error) {
	t.cycle.Lock()
	defer t.cycle.Unlock()

	o, err := t.orders.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: load order %s: %w", domain.ErrPersistence, id, err)
	}
	if o.Status.IsTerminal() {
		return o, fmt.Errorf("%w: %s is %s", ErrOrderTerminal, id, o.Status)
	}

	if o.ExchangeID == "" {
		resolved, err := t.submit(ctx, o)
		if err != nil {
			if resolved == nil {
				resolved = o
			}
			return resolved, err
		}
		var stats CycleStats
		t.afterChange(ctx, resolved, &stats)
		if resolved.Status.IsTerminal() {
			return resolved, nil
		}
		if resolved.ExchangeID == "" {
			return resolved, fmt.Errorf("%w: broker returned no exchange id for %s", domain.ErrExternalService, id)
		}
		o = resolved
	}

	callCtx, cancel := context.WithTimeout(ctx, t.callTimeout)
	state, err := t.gateway.Cancel(callCtx, o.AccountID, o.ExchangeID)
	cancel()
	if err != nil {
		t.metrics.RecordGatewayError("cancel")
		return o, fmt.Errorf("%w: cancel order %s: %w", domain.ErrExternalService, id, err)
	}

	updated, changed, err := t.apply(ctx, id, state, false)
	if err != nil {
		return o, err
	}
	if !changed {
		return t.orders.GetByID(ctx, id)
	}
	var stats CycleStats
	t.afterChange(ctx, updated, &stats)
	return updated, nil
}

// Start schedules Poll on spec and starts the scheduler. The caller stops the returned runner.
func (t *Tracker) Start(ctx context.Context, spec string) (*cronrunner.Runner, error) {
	if spec == "" {
		spec = DefaultSchedule
	}
	runner := cronrunner.New(t.logger, ctx)
	if _, err := runner.Add("order-poll", spec, func(ctx context.Context) {
		if _, err := t.Poll(ctx); err != nil && ctx.Err() == nil {
			t.logger.Error("poll cycle failed", zap.Error(err))
		}
	}); err != nil {
		return nil, fmt.Errorf("schedule poll %q: %w", spec, err)
	}
	runner.Start()
	return runner, nil
}
