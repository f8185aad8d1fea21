// Package book orchestrates the matching core for one instrument: queueing,
// matching, trigger cascades, OCO coordination and time-in-force rules. All
// mutation for one symbol is serialized behind the book's mutex; admission
// runs to completion synchronously and performs no I/O.
package book

import (
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/nexfin/exchange-core/internal/engine/match"
	"github.com/nexfin/exchange-core/internal/engine/model"
	"github.com/nexfin/exchange-core/internal/engine/oco"
	"github.com/nexfin/exchange-core/internal/engine/queue"
	"github.com/nexfin/exchange-core/internal/engine/stop"
	"github.com/nexfin/exchange-core/internal/engine/tif"
)

// Option configures an order book.
type Option func(*OrderBook)

// WithClock replaces the wall clock, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(b *OrderBook) { b.now = now }
}

// WithDayEnd sets the instant at which DAY orders expire.
func WithDayEnd(cutoff time.Time) Option {
	return func(b *OrderBook) { b.dayEnd = &cutoff }
}

// OrderBook is the per-symbol matching core.
type OrderBook struct {
	symbol string
	logger *zap.SugaredLogger

	mu       sync.Mutex
	queue    *queue.Queue
	stops    *stop.Manager
	trailing *stop.TrailingManager
	oco      *oco.Manager
	tif      *tif.Handler
	executor *match.Executor

	lastTraded decimal.Decimal
	arrivalSeq uint64
	now        func() time.Time
	dayEnd     *time.Time

	// triggerQueue holds converted stop orders awaiting processing. Cascades
	// are drained iteratively from here so chain-triggering never grows the
	// stack.
	triggerQueue []*model.Order
}

// New creates an order book for one symbol.
func New(symbol string, logger *zap.Logger, opts ...Option) *OrderBook {
	sugar := logger.Sugar().With("symbol", symbol)
	b := &OrderBook{
		symbol: symbol,
		logger: sugar,
		queue:  queue.New(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	b.trailing = stop.NewTrailingManager(sugar)
	b.stops = stop.NewManager(sugar, b.trailing)
	b.oco = oco.NewManager(sugar)
	b.tif = tif.NewHandler(sugar, b.now)
	b.executor = match.NewExecutor(sugar, b.now, func(price decimal.Decimal) {
		b.lastTraded = price
		b.stops.RatchetTrailing(price)
	})
	return b
}

// Symbol returns the instrument this book matches.
func (b *OrderBook) Symbol() string { return b.symbol }

// LastTradedPrice returns the price of the most recent execution, or zero
// if the book has never traded.
func (b *OrderBook) LastTradedPrice() decimal.Decimal {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastTraded
}

// Admit runs a non-OCO order through the book: TIF validation, trailing
// seed, stop parking or matching, the resulting trigger cascade, the
// waiting-market drain and the expiry sweep. It returns every trade and
// cancellation produced, in order. A non-nil error means an upstream
// contract breach; the call is aborted.
func (b *OrderBook) Admit(o *model.Order) ([]*model.TradeResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.prepare(o)
	b.logger.Infow("admitting order",
		"order_id", o.ID, "type", o.Type, "side", o.Side,
		"quantity", o.Quantity, "tif", o.TimeInForce,
	)

	if reason, ok := b.tif.ValidateAdmission(o); !ok {
		return []*model.TradeResult{model.NewCancellation(o, reason)}, nil
	}
	if o.Type == model.OrderTypeTrailingStop {
		b.trailing.Initialize(o, b.lastTraded)
	}
	if o.IsStop() {
		b.stops.Add(o)
		return nil, nil
	}

	results, err := b.runOrder(o)
	if err != nil {
		return results, err
	}
	return append(results, b.sweepExpired()...), nil
}

// AdmitOCO admits a linked order pair. The group is registered first; each
// non-stop leg is then run through matching. Any fill on one leg cancels
// the other and retires the group before the second leg is placed.
func (b *OrderBook) AdmitOCO(group *model.OCOOrder) ([]*model.TradeResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if group.Primary == nil || group.Secondary == nil {
		return nil, fmt.Errorf("oco group %s: %w", group.GroupID, model.ErrMissingOCOLeg)
	}
	legs := []*model.Order{group.Primary, group.Secondary}
	for _, leg := range legs {
		b.prepare(leg)
	}
	b.logger.Infow("admitting oco group",
		"group_id", group.GroupID,
		"primary", group.Primary.ID,
		"secondary", group.Secondary.ID,
	)

	// Both legs must pass their TIF precondition; the pair is admitted or
	// rejected as a unit.
	for _, leg := range legs {
		if reason, ok := b.tif.ValidateAdmission(leg); !ok {
			return []*model.TradeResult{
				model.NewCancellation(group.Primary, reason),
				model.NewCancellation(group.Secondary, reason),
			}, nil
		}
	}

	b.oco.Add(group)

	var results []*model.TradeResult
	for _, leg := range legs {
		if b.oco.FindGroupContaining(leg.ID) == nil {
			// The other leg already traded and this one was cancelled.
			continue
		}
		if leg.Type == model.OrderTypeTrailingStop {
			b.trailing.Initialize(leg, b.lastTraded)
		}
		if leg.IsStop() {
			b.stops.Add(leg)
			continue
		}
		res, err := b.runOrder(leg)
		results = append(results, res...)
		if err != nil {
			return results, err
		}
	}
	return append(results, b.sweepExpired()...), nil
}

// Cancel removes the order from whichever structure holds it. Cancelling an
// OCO leg retires its group; the counterpart stays live as a plain order.
func (b *OrderBook) Cancel(orderID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	removed := b.removeEverywhere(orderID)
	if group := b.oco.FindGroupContaining(orderID); group != nil {
		b.oco.Remove(group.GroupID)
		removed = true
	}
	if removed {
		b.logger.Infow("order cancelled", "order_id", orderID)
	}
	return removed
}

// prepare stamps admission state on an incoming order: the monotonic
// arrival sequence used for time priority, an arrival timestamp if the
// collaborator supplied none, and the DAY expiry cutoff.
func (b *OrderBook) prepare(o *model.Order) {
	b.arrivalSeq++
	o.ArrivalSeq = b.arrivalSeq
	if o.Timestamp.IsZero() {
		o.Timestamp = b.now()
	}
	if o.TimeInForce == model.TimeInForceDAY && o.ExpiryTime == nil && b.dayEnd != nil {
		cutoff := *b.dayEnd
		o.ExpiryTime = &cutoff
	}
}

// runOrder matches one live order and settles everything it sets off: the
// stop-trigger cascade and the waiting-market drain.
func (b *OrderBook) runOrder(o *model.Order) ([]*model.TradeResult, error) {
	results, err := b.processOrder(o)
	if err != nil {
		return results, err
	}
	casc, err := b.drainTriggers()
	results = append(results, casc...)
	if err != nil {
		return results, err
	}
	wm, err := b.drainWaitingMarket()
	return append(results, wm...), err
}

// processOrder runs the matching loop for one live order against the
// opposite side. Triggered stops are queued, not processed, so the
// admission-level drain keeps cascade depth bounded.
func (b *OrderBook) processOrder(o *model.Order) ([]*model.TradeResult, error) {
	var results []*model.TradeResult

	// FOK is all-or-nothing: checked against available liquidity before any
	// fill happens.
	if o.TimeInForce == model.TimeInForceFOK {
		if !b.tif.ValidateFOK(o, b.queue.AvailableLiquidity(o)) {
			return append(results, model.NewCancellation(o, "fill or kill: insufficient liquidity")), nil
		}
	}

	opposite := o.Side.Opposite()
	for !o.IsFullyFilled() {
		counter := b.queue.PeekBest(opposite)
		if counter == nil {
			break
		}

		decision, err := match.Decide(o, counter, b.lastTraded)
		if err != nil {
			return results, err
		}
		if decision.Defer {
			b.queue.AddWaitingMarket(o)
			b.logger.Infow("parked market order awaiting reference price", "order_id", o.ID)
			return results, nil
		}
		if !decision.Match {
			// Queue ordering guarantees no better candidate remains.
			break
		}

		qty := min(o.RemainingQuantity(), counter.RemainingQuantity())
		exec := b.executor.Execute(o, counter, qty, decision.Price)
		results = append(results, &model.TradeResult{
			Execution: exec,
			Orders:    []*model.Order{o, counter},
			Reason:    decision.Reason,
		})
		if counter.IsFullyFilled() {
			b.queue.Remove(counter.ID)
		}

		// Any fill on an OCO leg, including a first partial fill, cancels
		// the counterpart.
		results = append(results, b.activateOCO(o)...)
		results = append(results, b.activateOCO(counter)...)

		// The trade moved the last traded price; collect newly eligible
		// stops into the work queue.
		if err := b.enqueueTriggered(); err != nil {
			return results, err
		}
	}

	if b.tif.ShouldCancelAfterMatch(o) {
		reason := fmt.Sprintf("time in force %s: unfilled remainder cancelled", o.TimeInForce)
		return append(results, model.NewCancellation(o, reason)), nil
	}

	if !o.IsFullyFilled() {
		if _, priced := o.Price(); priced {
			b.queue.Add(o)
		} else if o.IsMarket() {
			b.queue.AddWaitingMarket(o)
		}
	}
	return results, nil
}

// enqueueTriggered moves newly eligible stop orders, converted to their
// live forms, onto the trigger work queue.
func (b *OrderBook) enqueueTriggered() error {
	converted, err := b.stops.CollectTriggered(b.lastTraded)
	b.triggerQueue = append(b.triggerQueue, converted...)
	return err
}

// drainTriggers processes the trigger work queue iteratively. After each
// converted order settles, the dormant list is re-scanned: its fills may
// have moved the price into further stops' trigger range.
func (b *OrderBook) drainTriggers() ([]*model.TradeResult, error) {
	var results []*model.TradeResult
	for len(b.triggerQueue) > 0 {
		next := b.triggerQueue[0]
		b.triggerQueue = b.triggerQueue[1:]

		// A triggering stop leg of an OCO group cancels its counterpart.
		results = append(results, b.activateOCO(next)...)

		res, err := b.processOrder(next)
		results = append(results, res...)
		if err != nil {
			return results, err
		}
		if err := b.enqueueTriggered(); err != nil {
			return results, err
		}
	}
	return results, nil
}

// drainWaitingMarket re-admits parked market orders after trades; a new
// execution may have supplied the reference price they were waiting for.
func (b *OrderBook) drainWaitingMarket() ([]*model.TradeResult, error) {
	parked := b.queue.DrainWaitingMarket()
	if len(parked) == 0 {
		return nil, nil
	}
	b.logger.Infow("processing waiting market orders", "count", len(parked))

	var results []*model.TradeResult
	for _, o := range parked {
		if o.IsFullyFilled() {
			continue
		}
		res, err := b.processOrder(o)
		results = append(results, res...)
		if err != nil {
			return results, err
		}
		casc, err := b.drainTriggers()
		results = append(results, casc...)
		if err != nil {
			return results, err
		}
	}
	return results, nil
}

// activateOCO handles a fill or trigger on an order that belongs to an OCO
// group: the leg is marked, the counterpart is removed from whichever
// structure holds it, and the group is retired.
func (b *OrderBook) activateOCO(o *model.Order) []*model.TradeResult {
	group := b.oco.FindGroupContaining(o.ID)
	if group == nil {
		return nil
	}
	b.oco.MarkTriggered(group, o.ID)
	counterpart := group.Counterpart(o.ID)
	b.removeEverywhere(counterpart.ID)
	b.oco.Remove(group.GroupID)

	b.logger.Infow("oco counterpart cancelled",
		"group_id", group.GroupID,
		"activated", o.ID,
		"cancelled", counterpart.ID,
	)
	return []*model.TradeResult{model.NewCancellation(counterpart, "OCO counterpart executed")}
}

// sweepExpired removes GTD/DAY orders past their cutoff from every
// structure and reports them as cancellations, together with any OCO
// counterpart they drag along.
func (b *OrderBook) sweepExpired() []*model.TradeResult {
	all := append(b.queue.AllOrders(), b.stops.Orders()...)
	expired := b.tif.ExpiredOrders(all)
	if len(expired) == 0 {
		return nil
	}

	var results []*model.TradeResult
	for _, o := range expired {
		if !b.removeEverywhere(o.ID) {
			// Already removed as an earlier expiry's OCO counterpart.
			continue
		}
		b.logger.Infow("order expired", "order_id", o.ID, "tif", o.TimeInForce)
		results = append(results, model.NewCancellation(o, fmt.Sprintf("time in force %s expired", o.TimeInForce)))

		if group := b.oco.FindGroupContaining(o.ID); group != nil {
			counterpart := group.Counterpart(o.ID)
			b.removeEverywhere(counterpart.ID)
			b.oco.Remove(group.GroupID)
			results = append(results, model.NewCancellation(counterpart, "OCO counterpart expired"))
		}
	}
	return results
}

// removeEverywhere deletes an order from the priced queues, the waiting
// market list and the dormant stop list.
func (b *OrderBook) removeEverywhere(orderID string) bool {
	removed := b.queue.Remove(orderID)
	if b.stops.Remove(orderID) {
		removed = true
	}
	return removed
}
