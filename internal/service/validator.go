// Package service wires the Kafka order flow into the matching engine:
// validation, mapping, idempotency, persistence and event publishing.
package service

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/nexfin/exchange-core/internal/engine/model"
	"github.com/nexfin/exchange-core/internal/messaging"
)

// ErrValidation marks rejections of malformed order events. These are
// published as cancellations, never retried.
var ErrValidation = errors.New("order event validation failed")

func validationErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func positive(d *decimal.Decimal) bool {
	return d != nil && d.IsPositive()
}

// ValidateOrderEvent checks an inbound order event before mapping. Common
// fields first, then per-type price requirements.
func ValidateOrderEvent(e *messaging.OrderPlacedEvent) error {
	if e.OrderID == "" {
		return validationErr("order id is required")
	}
	if e.UserID == "" {
		return validationErr("user id is required")
	}
	if e.Symbol == "" {
		return validationErr("symbol is required")
	}
	if e.Side != string(model.SideBuy) && e.Side != string(model.SideSell) {
		return validationErr("invalid side %q", e.Side)
	}
	if e.Quantity <= 0 {
		return validationErr("quantity must be positive")
	}

	switch e.OrderType {
	case string(model.OrderTypeMarket):
		return nil
	case string(model.OrderTypeLimit):
		if !positive(e.LimitPrice) {
			return validationErr("limit order must have a valid price")
		}
	case string(model.OrderTypeStopMarket):
		if !positive(e.StopPrice) {
			return validationErr("stop order must have a valid stop price")
		}
	case string(model.OrderTypeStopLimit):
		return validateStopLimit(e)
	case string(model.OrderTypeTrailingStop):
		return validateTrailingStop(e)
	case string(model.OrderTypeIceberg):
		return validateIceberg(e)
	case eventTypeOCO:
		return validateOCO(e)
	default:
		return validationErr("unknown order type %q", e.OrderType)
	}
	return nil
}

func validateStopLimit(e *messaging.OrderPlacedEvent) error {
	if !positive(e.StopPrice) {
		return validationErr("stop-limit order must have a valid stop price")
	}
	if !positive(e.LimitPrice) {
		return validationErr("stop-limit order must have a valid limit price")
	}
	// Sell stops trigger on the way down, so the stop must not exceed the
	// limit; buy stops mirror that.
	if e.Side == string(model.SideSell) && e.StopPrice.Cmp(*e.LimitPrice) > 0 {
		return validationErr("for sell stop-limit: stop price must be <= limit price")
	}
	if e.Side == string(model.SideBuy) && e.StopPrice.Cmp(*e.LimitPrice) < 0 {
		return validationErr("for buy stop-limit: stop price must be >= limit price")
	}
	return nil
}

func validateTrailingStop(e *messaging.OrderPlacedEvent) error {
	hasAmount := positive(e.TrailAmount)
	hasPercent := positive(e.TrailPercent)
	if hasAmount == hasPercent {
		return validationErr("trailing stop must have exactly one of trailAmount or trailPercent")
	}
	return nil
}

func validateIceberg(e *messaging.OrderPlacedEvent) error {
	if !positive(e.LimitPrice) {
		return validationErr("iceberg order must have a valid price")
	}
	if e.DisplayQuantity <= 0 {
		return validationErr("iceberg order must have a valid display quantity")
	}
	if e.DisplayQuantity > e.Quantity {
		return validationErr("display quantity cannot exceed total quantity")
	}
	return nil
}

func validateOCO(e *messaging.OrderPlacedEvent) error {
	if e.OCOGroupID == "" {
		return validationErr("oco order must have a group id")
	}
	if e.PrimaryOrderType == "" || e.SecondaryOrderType == "" {
		return validationErr("oco order must name both leg types")
	}
	for _, leg := range []struct {
		typ       string
		price     *decimal.Decimal
		stopPrice *decimal.Decimal
		trail     *decimal.Decimal
		name      string
	}{
		{e.PrimaryOrderType, e.PrimaryPrice, e.PrimaryStopPrice, nil, "primary"},
		{e.SecondaryOrderType, e.SecondaryPrice, e.SecondaryStopPrice, e.SecondaryTrail, "secondary"},
	} {
		switch leg.typ {
		case string(model.OrderTypeLimit):
			if !positive(leg.price) {
				return validationErr("oco %s limit leg must have a valid price", leg.name)
			}
		case string(model.OrderTypeStopMarket):
			if !positive(leg.stopPrice) {
				return validationErr("oco %s stop leg must have a valid stop price", leg.name)
			}
		case string(model.OrderTypeStopLimit):
			if !positive(leg.stopPrice) || !positive(leg.price) {
				return validationErr("oco %s stop-limit leg must have stop and limit prices", leg.name)
			}
		case string(model.OrderTypeTrailingStop):
			if !positive(leg.trail) {
				return validationErr("oco %s trailing leg must have a trail amount", leg.name)
			}
		default:
			return validationErr("oco %s leg has unsupported type %q", leg.name, leg.typ)
		}
	}
	return nil
}
