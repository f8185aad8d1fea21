// Package tif is the time-in-force rule engine: admission preconditions,
// post-match cancellation for IOC/FOK, and the GTD/DAY expiry sweep.
package tif

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/nexfin/exchange-core/internal/engine/model"
)

// Handler evaluates time-in-force rules. It is stateless beyond its clock.
type Handler struct {
	logger *zap.SugaredLogger
	now    func() time.Time
}

// NewHandler creates a handler. now may be nil for the wall clock.
func NewHandler(logger *zap.SugaredLogger, now func() time.Time) *Handler {
	if now == nil {
		now = time.Now
	}
	return &Handler{logger: logger, now: now}
}

// ValidateAdmission checks the TIF precondition of an incoming order. An
// unset TIF defaults to GTC. On rejection the reason describes the breach
// for the cancellation result.
func (h *Handler) ValidateAdmission(o *model.Order) (string, bool) {
	if o.TimeInForce == "" {
		o.TimeInForce = model.TimeInForceGTC
	}
	switch o.TimeInForce {
	case model.TimeInForceGTD:
		if o.GoodTillDate == nil {
			h.logger.Warnw("gtd order without good-till-date", "order_id", o.ID)
			return "GTD order has no good-till-date", false
		}
		if h.now().After(*o.GoodTillDate) {
			h.logger.Infow("gtd order expired before admission", "order_id", o.ID)
			return "GTD order already expired", false
		}
	case model.TimeInForceGTC, model.TimeInForceDAY, model.TimeInForceIOC, model.TimeInForceFOK:
	default:
		return fmt.Sprintf("unsupported time in force %s", o.TimeInForce), false
	}
	return "", true
}

// ValidateFOK reports whether a fill-or-kill order can fully fill against
// the available counter-side liquidity. Checked before matching so an FOK
// order produces either a complete fill or no fill at all.
func (h *Handler) ValidateFOK(o *model.Order, availableLiquidity int64) bool {
	if o.TimeInForce != model.TimeInForceFOK {
		return true
	}
	if availableLiquidity < o.RemainingQuantity() {
		h.logger.Infow("fok order cannot be fully filled",
			"order_id", o.ID,
			"required", o.RemainingQuantity(),
			"available", availableLiquidity,
		)
		return false
	}
	return true
}

// ShouldCancelAfterMatch reports whether the unfilled remainder must be
// cancelled after the matching pass. True for IOC with any remainder, and
// for FOK as a backstop (the pre-check normally keeps FOK from getting
// here unfilled).
func (h *Handler) ShouldCancelAfterMatch(o *model.Order) bool {
	switch o.TimeInForce {
	case model.TimeInForceIOC, model.TimeInForceFOK:
		return !o.IsFullyFilled()
	}
	return false
}

// IsExpired reports whether an order has passed its GTD date or DAY cutoff.
// GTC, IOC and FOK never expire through the sweep.
func (h *Handler) IsExpired(o *model.Order, now time.Time) bool {
	switch o.TimeInForce {
	case model.TimeInForceGTD:
		return o.GoodTillDate != nil && now.After(*o.GoodTillDate)
	case model.TimeInForceDAY:
		return o.ExpiryTime != nil && now.After(*o.ExpiryTime)
	}
	return false
}

// ExpiredOrders filters the given orders down to those that have expired.
func (h *Handler) ExpiredOrders(orders []*model.Order) []*model.Order {
	now := h.now()
	var expired []*model.Order
	for _, o := range orders {
		if h.IsExpired(o, now) {
			expired = append(expired, o)
		}
	}
	return expired
}
