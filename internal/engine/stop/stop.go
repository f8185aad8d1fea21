// Package stop holds dormant stop-type orders, evaluates trigger conditions
// against the last traded price, and converts triggered orders into live
// market or limit orders.
package stop

import (
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/nexfin/exchange-core/internal/engine/model"
)

// Manager is the dormant list of one order book. Stop orders never enter
// the priced queues; they sit here until a trade moves the last traded
// price through their trigger level.
type Manager struct {
	logger   *zap.SugaredLogger
	trailing *TrailingManager
	orders   []*model.Order
}

// NewManager creates a stop order manager.
func NewManager(logger *zap.SugaredLogger, trailing *TrailingManager) *Manager {
	return &Manager{logger: logger, trailing: trailing}
}

// Add parks a stop order in the dormant list.
func (m *Manager) Add(o *model.Order) {
	m.orders = append(m.orders, o)
	m.logger.Debugw("added stop order", "order_id", o.ID, "type", o.Type)
}

// Remove deletes a dormant order by id.
func (m *Manager) Remove(orderID string) bool {
	for i, o := range m.orders {
		if o.ID == orderID {
			m.orders = append(m.orders[:i], m.orders[i+1:]...)
			return true
		}
	}
	return false
}

// Orders returns a copy of the dormant list.
func (m *Manager) Orders() []*model.Order {
	out := make([]*model.Order, len(m.orders))
	copy(out, m.orders)
	return out
}

// RatchetTrailing updates every trailing stop's water mark and stop price
// for a new traded price.
func (m *Manager) RatchetTrailing(current decimal.Decimal) {
	if !current.IsPositive() {
		return
	}
	for _, o := range m.orders {
		if o.Type != model.OrderTypeTrailingStop {
			continue
		}
		if m.trailing.UpdateStopPrice(o, current) {
			m.logger.Infow("ratcheted trailing stop",
				"order_id", o.ID,
				"stop_price", o.StopPrice.String(),
				"high_water", o.HighWaterMark.String(),
				"low_water", o.LowWaterMark.String(),
			)
		}
	}
}

// CollectTriggered removes every dormant order whose trigger condition
// holds at the last traded price and returns their converted live forms.
// A BUY stop fires when the price rises to or above its stop level, a SELL
// stop when it falls to or below it.
func (m *Manager) CollectTriggered(lastTraded decimal.Decimal) ([]*model.Order, error) {
	if !lastTraded.IsPositive() {
		return nil, nil
	}
	var converted []*model.Order
	var remaining []*model.Order
	for i, o := range m.orders {
		if !m.shouldTrigger(o, lastTraded) {
			remaining = append(remaining, o)
			continue
		}
		m.logger.Infow("stop order triggered",
			"order_id", o.ID,
			"type", o.Type,
			"stop_price", o.StopPrice.String(),
			"last_traded", lastTraded.String(),
		)
		live, err := Convert(o)
		if err != nil {
			// Restore the unvisited tail before bailing out.
			m.orders = append(remaining, m.orders[i:]...)
			return converted, err
		}
		converted = append(converted, live)
	}
	m.orders = remaining
	return converted, nil
}

func (m *Manager) shouldTrigger(o *model.Order, lastTraded decimal.Decimal) bool {
	if o.Type == model.OrderTypeTrailingStop {
		return m.trailing.ShouldTrigger(o, lastTraded)
	}
	if o.StopPrice.IsZero() {
		return false
	}
	if o.Side == model.SideBuy {
		return lastTraded.Cmp(o.StopPrice) >= 0
	}
	return lastTraded.Cmp(o.StopPrice) <= 0
}

// Convert builds the live order a triggered stop becomes: stop-market and
// trailing stops become market orders, a stop-limit becomes a limit order
// at its stored limit price. The original instance is discarded; the live
// order is a fresh instance carrying over identity and fill state.
func Convert(o *model.Order) (*model.Order, error) {
	live := &model.Order{
		ID:             o.ID,
		UserID:         o.UserID,
		Symbol:         o.Symbol,
		Side:           o.Side,
		Quantity:       o.Quantity,
		FilledQuantity: o.FilledQuantity,
		TimeInForce:    o.TimeInForce,
		Timestamp:      o.Timestamp,
		ArrivalSeq:     o.ArrivalSeq,
		GoodTillDate:   o.GoodTillDate,
		ExpiryTime:     o.ExpiryTime,
	}
	switch o.Type {
	case model.OrderTypeStopMarket, model.OrderTypeTrailingStop:
		live.Type = model.OrderTypeMarket
	case model.OrderTypeStopLimit:
		live.Type = model.OrderTypeLimit
		live.LimitPrice = o.LimitPrice
	default:
		return nil, fmt.Errorf("convert %s: %w: %s", o.ID, model.ErrUnknownOrderType, o.Type)
	}
	return live, nil
}
