package book

import (
	"github.com/nexfin/exchange-core/internal/engine/model"
)

// RestingOrderView is a read-only copy of one resting order for
// diagnostics. Callers never see the live mutable instance.
type RestingOrderView struct {
	OrderID     string            `json:"order_id"`
	UserID      string            `json:"user_id"`
	Type        model.OrderType   `json:"type"`
	Side        model.Side        `json:"side"`
	Price       string            `json:"price,omitempty"`
	StopPrice   string            `json:"stop_price,omitempty"`
	Quantity    int64             `json:"quantity"`
	Remaining   int64             `json:"remaining"`
	TimeInForce model.TimeInForce `json:"time_in_force"`
}

// Snapshot is a point-in-time view of one book's state.
type Snapshot struct {
	Symbol          string             `json:"symbol"`
	LastTradedPrice string             `json:"last_traded_price"`
	Bids            []RestingOrderView `json:"bids"`
	Asks            []RestingOrderView `json:"asks"`
	StopOrders      []RestingOrderView `json:"stop_orders"`
	WaitingMarket   []RestingOrderView `json:"waiting_market"`
	OCOGroups       int                `json:"oco_groups"`
}

func viewOf(o *model.Order) RestingOrderView {
	v := RestingOrderView{
		OrderID:     o.ID,
		UserID:      o.UserID,
		Type:        o.Type,
		Side:        o.Side,
		Quantity:    o.Quantity,
		Remaining:   o.RemainingQuantity(),
		TimeInForce: o.TimeInForce,
	}
	if price, ok := o.Price(); ok {
		v.Price = price.String()
	}
	if !o.StopPrice.IsZero() {
		v.StopPrice = o.StopPrice.String()
	}
	return v
}

// Snapshot returns a consistent view of the book in priority order.
func (b *OrderBook) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	snap := Snapshot{
		Symbol:          b.symbol,
		LastTradedPrice: b.lastTraded.String(),
		OCOGroups:       b.oco.Len(),
	}
	for _, o := range b.queue.Orders(model.SideBuy) {
		snap.Bids = append(snap.Bids, viewOf(o))
	}
	for _, o := range b.queue.Orders(model.SideSell) {
		snap.Asks = append(snap.Asks, viewOf(o))
	}
	for _, o := range b.stops.Orders() {
		snap.StopOrders = append(snap.StopOrders, viewOf(o))
	}
	for _, o := range b.queue.WaitingMarket() {
		snap.WaitingMarket = append(snap.WaitingMarket, viewOf(o))
	}
	return snap
}
