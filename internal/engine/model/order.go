package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side is the direction of an order.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Opposite returns the other side of the book.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// OrderType is the closed set of order variants the engine understands.
// Anything else reaching the matching path is an upstream contract breach
// and aborts the admitting call.
type OrderType string

const (
	OrderTypeMarket       OrderType = "MARKET"
	OrderTypeLimit        OrderType = "LIMIT"
	OrderTypeStopMarket   OrderType = "STOP_MARKET"
	OrderTypeStopLimit    OrderType = "STOP_LIMIT"
	OrderTypeTrailingStop OrderType = "TRAILING_STOP"
	OrderTypeIceberg      OrderType = "ICEBERG"
	OrderTypeOCO          OrderType = "OCO"
)

// TimeInForce controls how long an order stays live.
type TimeInForce string

const (
	TimeInForceGTC TimeInForce = "GTC"
	TimeInForceDAY TimeInForce = "DAY"
	TimeInForceIOC TimeInForce = "IOC"
	TimeInForceFOK TimeInForce = "FOK"
	TimeInForceGTD TimeInForce = "GTD"
)

// Order is a single tradable instruction. One struct carries every variant;
// the Type tag decides which price fields are meaningful. The owning order
// book is the only mutator of FilledQuantity (via the trade executor) and of
// the trailing-stop water marks.
type Order struct {
	ID             string
	UserID         string
	Symbol         string
	Side           Side
	Type           OrderType
	Quantity       int64
	FilledQuantity int64
	TimeInForce    TimeInForce
	Timestamp      time.Time

	// ArrivalSeq is assigned by the book at admission and breaks price ties.
	// It is strictly monotonic per book.
	ArrivalSeq uint64

	GoodTillDate *time.Time // GTD only
	ExpiryTime   *time.Time // DAY cutoff, stamped at admission

	LimitPrice decimal.Decimal // LIMIT, STOP_LIMIT, ICEBERG
	StopPrice  decimal.Decimal // STOP_MARKET, STOP_LIMIT; dynamic for TRAILING_STOP

	DisplayQuantity int64 // ICEBERG

	// Trailing-stop state. Exactly one of TrailAmount/TrailPercent is
	// positive. Water marks and the initial stop are seeded by the trailing
	// manager from the last traded price.
	TrailAmount      decimal.Decimal
	TrailPercent     decimal.Decimal
	HighWaterMark    decimal.Decimal // SELL: highest price seen
	LowWaterMark     decimal.Decimal // BUY: lowest price seen
	InitialStopPrice decimal.Decimal
}

// RemainingQuantity returns the unfilled portion.
func (o *Order) RemainingQuantity() int64 { return o.Quantity - o.FilledQuantity }

// IsFullyFilled reports whether the order has no unfilled quantity left.
func (o *Order) IsFullyFilled() bool { return o.FilledQuantity >= o.Quantity }

// IsMarket reports whether the order matches at the counterparty's price.
func (o *Order) IsMarket() bool { return o.Type == OrderTypeMarket }

// IsStop reports whether the order belongs in the dormant stop list rather
// than the priced queues.
func (o *Order) IsStop() bool {
	switch o.Type {
	case OrderTypeStopMarket, OrderTypeStopLimit, OrderTypeTrailingStop:
		return true
	}
	return false
}

// Price returns the resting/limit price for price-bearing variants. The
// second return is false for market orders and for stop variants, which
// carry no live limit price until converted.
func (o *Order) Price() (decimal.Decimal, bool) {
	switch o.Type {
	case OrderTypeLimit, OrderTypeIceberg:
		return o.LimitPrice, true
	case OrderTypeStopLimit:
		// A resting stop-limit never sits in the priced queues, but its
		// converted limit order reuses this accessor.
		return o.LimitPrice, true
	}
	return decimal.Zero, false
}

// OCOOrder links two orders so that a fill or trigger on one cancels the
// other. It is a composite, never matched itself; derived quantities
// delegate to whichever leg has been activated.
type OCOOrder struct {
	GroupID   string
	Primary   *Order
	Secondary *Order

	PrimaryTriggered   bool
	SecondaryTriggered bool
}

// ActiveLeg returns the leg that has been activated, or nil if neither.
func (oco *OCOOrder) ActiveLeg() *Order {
	if oco.PrimaryTriggered {
		return oco.Primary
	}
	if oco.SecondaryTriggered {
		return oco.Secondary
	}
	return nil
}

// Contains reports whether the given order id is one of the legs.
func (oco *OCOOrder) Contains(orderID string) bool {
	return oco.Primary.ID == orderID || oco.Secondary.ID == orderID
}

// Counterpart returns the other leg, or nil if the id is not part of the
// group.
func (oco *OCOOrder) Counterpart(orderID string) *Order {
	switch orderID {
	case oco.Primary.ID:
		return oco.Secondary
	case oco.Secondary.ID:
		return oco.Primary
	}
	return nil
}

// FilledQuantity delegates to the active leg.
func (oco *OCOOrder) FilledQuantity() int64 {
	if leg := oco.ActiveLeg(); leg != nil {
		return leg.FilledQuantity
	}
	return 0
}

// IsFullyFilled delegates to the active leg.
func (oco *OCOOrder) IsFullyFilled() bool {
	leg := oco.ActiveLeg()
	return leg != nil && leg.IsFullyFilled()
}
