// Package queue holds the resting liquidity of one order book side by side:
// price-time ordered buy and sell containers plus an unordered holding list
// for market orders that arrived without a usable reference price.
package queue

import (
	"github.com/tidwall/btree"

	"github.com/nexfin/exchange-core/internal/engine/model"
)

// entryLess orders resting orders by price priority then arrival sequence.
// Buy side: higher price first. Sell side: lower price first. Orders stored
// here always carry a price; the accessor's ok flag is ignored.
func entryLess(side model.Side) func(a, b *model.Order) bool {
	return func(a, b *model.Order) bool {
		pa, _ := a.Price()
		pb, _ := b.Price()
		cmp := pa.Cmp(pb)
		if cmp != 0 {
			if side == model.SideBuy {
				return cmp > 0
			}
			return cmp < 0
		}
		return a.ArrivalSeq < b.ArrivalSeq
	}
}

// Queue owns the resting orders of a single book.
type Queue struct {
	bids *btree.BTreeG[*model.Order]
	asks *btree.BTreeG[*model.Order]

	waitingMarket []*model.Order
}

// New creates an empty queue.
func New() *Queue {
	return &Queue{
		bids: btree.NewBTreeG(entryLess(model.SideBuy)),
		asks: btree.NewBTreeG(entryLess(model.SideSell)),
	}
}

func (q *Queue) side(s model.Side) *btree.BTreeG[*model.Order] {
	if s == model.SideBuy {
		return q.bids
	}
	return q.asks
}

// Add inserts a priced order into its side's container.
func (q *Queue) Add(o *model.Order) {
	q.side(o.Side).Set(o)
}

// AddWaitingMarket parks a market order until a reference price exists.
func (q *Queue) AddWaitingMarket(o *model.Order) {
	q.waitingMarket = append(q.waitingMarket, o)
}

// DrainWaitingMarket removes and returns all parked market orders. The
// caller re-admits each one; unfilled remainders come back via
// AddWaitingMarket.
func (q *Queue) DrainWaitingMarket() []*model.Order {
	out := q.waitingMarket
	q.waitingMarket = nil
	return out
}

// WaitingMarket returns the parked market orders without draining them.
func (q *Queue) WaitingMarket() []*model.Order {
	out := make([]*model.Order, len(q.waitingMarket))
	copy(out, q.waitingMarket)
	return out
}

// PeekBest returns the highest-priority resting order on the given side, or
// nil if the side is empty.
func (q *Queue) PeekBest(s model.Side) *model.Order {
	if o, ok := q.side(s).Min(); ok {
		return o
	}
	return nil
}

// Remove deletes the order with the given id from whichever structure holds
// it. Cancellation is not latency-critical, so a linear scan is fine here.
func (q *Queue) Remove(orderID string) bool {
	if q.removeFromTree(q.bids, orderID) || q.removeFromTree(q.asks, orderID) {
		return true
	}
	for i, o := range q.waitingMarket {
		if o.ID == orderID {
			q.waitingMarket = append(q.waitingMarket[:i], q.waitingMarket[i+1:]...)
			return true
		}
	}
	return false
}

func (q *Queue) removeFromTree(tr *btree.BTreeG[*model.Order], orderID string) bool {
	var found *model.Order
	tr.Scan(func(o *model.Order) bool {
		if o.ID == orderID {
			found = o
			return false
		}
		return true
	})
	if found == nil {
		return false
	}
	tr.Delete(found)
	return true
}

// Len returns the number of resting priced orders on a side.
func (q *Queue) Len(s model.Side) int {
	return q.side(s).Len()
}

// Orders returns the resting priced orders of a side in priority order.
func (q *Queue) Orders(s model.Side) []*model.Order {
	out := make([]*model.Order, 0, q.side(s).Len())
	q.side(s).Scan(func(o *model.Order) bool {
		out = append(out, o)
		return true
	})
	return out
}

// AllOrders returns every order held by the queue, including parked market
// orders. Used by the expiry sweep and diagnostics.
func (q *Queue) AllOrders() []*model.Order {
	out := q.Orders(model.SideBuy)
	out = append(out, q.Orders(model.SideSell)...)
	out = append(out, q.waitingMarket...)
	return out
}

// AvailableLiquidity sums the remaining quantity of resting counter-orders
// that are price-compatible with the given aggressor, walking the opposite
// side in priority order and stopping at the first incompatible order
// (everything past it is priced worse). An unpriced resting order is always
// compatible, and a market aggressor is compatible with everything.
func (q *Queue) AvailableLiquidity(o *model.Order) int64 {
	var total int64
	aggressorPrice, aggressorPriced := o.Price()
	q.side(o.Side.Opposite()).Scan(func(resting *model.Order) bool {
		restingPrice, restingPriced := resting.Price()

		compatible := false
		switch {
		case o.IsMarket(), !restingPriced:
			compatible = true
		case aggressorPriced:
			if o.Side == model.SideBuy {
				compatible = aggressorPrice.Cmp(restingPrice) >= 0
			} else {
				compatible = aggressorPrice.Cmp(restingPrice) <= 0
			}
		}
		if !compatible {
			return false
		}
		total += resting.RemainingQuantity()
		return true
	})
	return total
}
