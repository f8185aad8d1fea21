package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Execution is the immutable record of one matched slice. It is created
// only by the trade executor, exactly once per slice.
type Execution struct {
	ID           uuid.UUID
	TakerOrderID string
	MakerOrderID string
	UserID       string
	Symbol       string
	Side         Side
	Quantity     int64
	Price        decimal.Decimal
	Notional     decimal.Decimal
	ExecutedAt   time.Time
}

// TradeResult is one outcome of an admission call: either a trade
// (Execution set, both involved orders listed) or a cancellation
// (Execution nil, the cancelled order listed, Reason set).
type TradeResult struct {
	Execution *Execution
	Orders    []*Order
	Reason    string
}

// IsCancellation reports whether the result describes a cancellation
// rather than a trade.
func (tr *TradeResult) IsCancellation() bool { return tr.Execution == nil }

// NewCancellation builds a cancellation result for a single order.
func NewCancellation(order *Order, reason string) *TradeResult {
	return &TradeResult{Orders: []*Order{order}, Reason: reason}
}

// OrderStatus is the derived lifecycle state reported to collaborators.
type OrderStatus string

const (
	OrderStatusPending         OrderStatus = "PENDING"
	OrderStatusPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	OrderStatusFilled          OrderStatus = "FILLED"
	OrderStatusCancelled       OrderStatus = "CANCELLED"
)

// StatusOf derives the reportable status from fill state.
func StatusOf(o *Order) OrderStatus {
	switch {
	case o.FilledQuantity == 0:
		return OrderStatusPending
	case o.FilledQuantity < o.Quantity:
		return OrderStatusPartiallyFilled
	default:
		return OrderStatusFilled
	}
}
