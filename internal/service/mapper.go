package service

import (
	"github.com/shopspring/decimal"

	"github.com/nexfin/exchange-core/internal/engine/model"
	"github.com/nexfin/exchange-core/internal/messaging"
)

// Wire name of the OCO variant; the engine's tag is shorter.
const eventTypeOCO = "ONE_CANCELS_OTHER"

func deref(d *decimal.Decimal) decimal.Decimal {
	if d == nil {
		return decimal.Zero
	}
	return *d
}

// MapOrder builds the engine order for a validated non-OCO event.
func MapOrder(e *messaging.OrderPlacedEvent) *model.Order {
	o := &model.Order{
		ID:           e.OrderID,
		UserID:       e.UserID,
		Symbol:       e.Symbol,
		Side:         model.Side(e.Side),
		Type:         model.OrderType(e.OrderType),
		Quantity:     e.Quantity,
		TimeInForce:  model.TimeInForce(e.TimeInForce),
		GoodTillDate: e.GoodTillDate,
	}
	switch o.Type {
	case model.OrderTypeLimit:
		o.LimitPrice = deref(e.LimitPrice)
	case model.OrderTypeStopMarket:
		o.StopPrice = deref(e.StopPrice)
	case model.OrderTypeStopLimit:
		o.StopPrice = deref(e.StopPrice)
		o.LimitPrice = deref(e.LimitPrice)
	case model.OrderTypeTrailingStop:
		o.StopPrice = deref(e.StopPrice)
		o.InitialStopPrice = deref(e.StopPrice)
		o.TrailAmount = deref(e.TrailAmount)
		o.TrailPercent = deref(e.TrailPercent)
	case model.OrderTypeIceberg:
		o.LimitPrice = deref(e.LimitPrice)
		o.DisplayQuantity = e.DisplayQuantity
	}
	return o
}

// MapOCO builds the engine order pair for a validated OCO event. Both legs
// share the event's side, quantity and time in force; leg ids derive from
// the group id.
func MapOCO(e *messaging.OrderPlacedEvent) *model.OCOOrder {
	primary := mapLeg(e, e.PrimaryOrderType, e.PrimaryPrice, e.PrimaryStopPrice, nil, e.OrderID+"-primary")
	secondary := mapLeg(e, e.SecondaryOrderType, e.SecondaryPrice, e.SecondaryStopPrice, e.SecondaryTrail, e.OrderID+"-secondary")
	return &model.OCOOrder{
		GroupID:   e.OCOGroupID,
		Primary:   primary,
		Secondary: secondary,
	}
}

func mapLeg(e *messaging.OrderPlacedEvent, typ string, price, stopPrice, trail *decimal.Decimal, id string) *model.Order {
	o := &model.Order{
		ID:           id,
		UserID:       e.UserID,
		Symbol:       e.Symbol,
		Side:         model.Side(e.Side),
		Type:         model.OrderType(typ),
		Quantity:     e.Quantity,
		TimeInForce:  model.TimeInForce(e.TimeInForce),
		GoodTillDate: e.GoodTillDate,
	}
	switch o.Type {
	case model.OrderTypeLimit:
		o.LimitPrice = deref(price)
	case model.OrderTypeStopMarket:
		o.StopPrice = deref(stopPrice)
	case model.OrderTypeStopLimit:
		o.StopPrice = deref(stopPrice)
		o.LimitPrice = deref(price)
	case model.OrderTypeTrailingStop:
		o.StopPrice = deref(stopPrice)
		o.InitialStopPrice = deref(stopPrice)
		o.TrailAmount = deref(trail)
	}
	return o
}
