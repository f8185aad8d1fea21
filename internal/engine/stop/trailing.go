package stop

import (
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/nexfin/exchange-core/internal/engine/model"
)

var hundred = decimal.NewFromInt(100)

// TrailingManager owns the ratchet logic of trailing stops: water marks
// that only move with the market and a stop price that only moves in the
// order's favor.
type TrailingManager struct {
	logger *zap.SugaredLogger
}

// NewTrailingManager creates a trailing stop manager.
func NewTrailingManager(logger *zap.SugaredLogger) *TrailingManager {
	return &TrailingManager{logger: logger}
}

// Initialize seeds the water mark and initial stop price from the last
// traded price at admission. With no reference price yet, the order stays
// unseeded until the first ratchet.
func (tm *TrailingManager) Initialize(o *model.Order, lastTraded decimal.Decimal) {
	if !lastTraded.IsPositive() {
		return
	}
	if o.Side == model.SideSell {
		o.HighWaterMark = lastTraded
	} else {
		o.LowWaterMark = lastTraded
	}
	if o.StopPrice.IsZero() {
		tm.UpdateStopPrice(o, lastTraded)
	}
	o.InitialStopPrice = o.StopPrice

	tm.logger.Infow("initialized trailing stop",
		"order_id", o.ID,
		"stop_price", o.StopPrice.String(),
		"high_water", o.HighWaterMark.String(),
		"low_water", o.LowWaterMark.String(),
	)
}

// UpdateStopPrice ratchets the water mark and stop price toward the current
// price. A SELL stop trails below the peak and only rises; a BUY stop
// trails above the trough and only falls. Returns true when the stop moved.
func (tm *TrailingManager) UpdateStopPrice(o *model.Order, current decimal.Decimal) bool {
	if !current.IsPositive() {
		return false
	}
	if o.Side == model.SideSell {
		if o.HighWaterMark.IsZero() || current.Cmp(o.HighWaterMark) > 0 {
			o.HighWaterMark = current
			next := tm.stopFrom(o, o.HighWaterMark)
			if o.StopPrice.IsZero() || next.Cmp(o.StopPrice) > 0 {
				o.StopPrice = next
				return true
			}
		}
		return false
	}
	if o.LowWaterMark.IsZero() || current.Cmp(o.LowWaterMark) < 0 {
		o.LowWaterMark = current
		next := tm.stopFrom(o, o.LowWaterMark)
		if o.StopPrice.IsZero() || next.Cmp(o.StopPrice) < 0 {
			o.StopPrice = next
			return true
		}
	}
	return false
}

// stopFrom computes the stop level for a given water mark. Percent trails
// are rounded half-up to two decimal places.
func (tm *TrailingManager) stopFrom(o *model.Order, mark decimal.Decimal) decimal.Decimal {
	var trail decimal.Decimal
	switch {
	case o.TrailAmount.IsPositive():
		trail = o.TrailAmount
	case o.TrailPercent.IsPositive():
		trail = mark.Mul(o.TrailPercent).DivRound(hundred, 2)
	default:
		return o.StopPrice
	}
	if o.Side == model.SideSell {
		return mark.Sub(trail)
	}
	return mark.Add(trail)
}

// ShouldTrigger reports whether the trailing stop fires at the current
// price: SELL when price falls to or below the stop, BUY when it rises to
// or above it.
func (tm *TrailingManager) ShouldTrigger(o *model.Order, current decimal.Decimal) bool {
	if o.StopPrice.IsZero() || !current.IsPositive() {
		return false
	}
	if o.Side == model.SideSell {
		return current.Cmp(o.StopPrice) <= 0
	}
	return current.Cmp(o.StopPrice) >= 0
}
