package tif

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/nexfin/exchange-core/internal/engine/model"
)

var testNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newHandler() *Handler {
	return NewHandler(zap.NewNop().Sugar(), func() time.Time { return testNow })
}

func TestValidateAdmissionDefaultsToGTC(t *testing.T) {
	h := newHandler()
	o := &model.Order{ID: "o1", Type: model.OrderTypeLimit, Quantity: 10}

	reason, ok := h.ValidateAdmission(o)
	assert.True(t, ok)
	assert.Empty(t, reason)
	assert.Equal(t, model.TimeInForceGTC, o.TimeInForce)
}

func TestValidateAdmissionGTD(t *testing.T) {
	h := newHandler()

	o := &model.Order{ID: "o1", TimeInForce: model.TimeInForceGTD}
	reason, ok := h.ValidateAdmission(o)
	assert.False(t, ok)
	assert.Contains(t, reason, "no good-till-date")

	past := testNow.Add(-time.Hour)
	o.GoodTillDate = &past
	reason, ok = h.ValidateAdmission(o)
	assert.False(t, ok)
	assert.Contains(t, reason, "expired")

	future := testNow.Add(time.Hour)
	o.GoodTillDate = &future
	_, ok = h.ValidateAdmission(o)
	assert.True(t, ok)
}

func TestValidateAdmissionUnknownTIF(t *testing.T) {
	h := newHandler()
	o := &model.Order{ID: "o1", TimeInForce: "GFD"}

	reason, ok := h.ValidateAdmission(o)
	assert.False(t, ok)
	assert.Contains(t, reason, "unsupported time in force")
}

func TestValidateFOK(t *testing.T) {
	h := newHandler()
	o := &model.Order{ID: "o1", TimeInForce: model.TimeInForceFOK, Quantity: 100}

	assert.False(t, h.ValidateFOK(o, 99))
	assert.True(t, h.ValidateFOK(o, 100))

	// Non-FOK orders always pass regardless of liquidity.
	o.TimeInForce = model.TimeInForceGTC
	assert.True(t, h.ValidateFOK(o, 0))
}

func TestShouldCancelAfterMatch(t *testing.T) {
	h := newHandler()

	ioc := &model.Order{ID: "o1", TimeInForce: model.TimeInForceIOC, Quantity: 100, FilledQuantity: 40}
	assert.True(t, h.ShouldCancelAfterMatch(ioc))
	ioc.FilledQuantity = 100
	assert.False(t, h.ShouldCancelAfterMatch(ioc))

	gtc := &model.Order{ID: "o2", TimeInForce: model.TimeInForceGTC, Quantity: 100}
	assert.False(t, h.ShouldCancelAfterMatch(gtc))
}

func TestExpiredOrders(t *testing.T) {
	h := newHandler()
	past := testNow.Add(-time.Minute)
	future := testNow.Add(time.Minute)

	orders := []*model.Order{
		{ID: "gtd-past", TimeInForce: model.TimeInForceGTD, GoodTillDate: &past},
		{ID: "gtd-future", TimeInForce: model.TimeInForceGTD, GoodTillDate: &future},
		{ID: "day-past", TimeInForce: model.TimeInForceDAY, ExpiryTime: &past},
		{ID: "day-future", TimeInForce: model.TimeInForceDAY, ExpiryTime: &future},
		{ID: "gtc", TimeInForce: model.TimeInForceGTC},
	}

	expired := h.ExpiredOrders(orders)
	ids := make([]string, 0, len(expired))
	for _, o := range expired {
		ids = append(ids, o.ID)
	}
	assert.ElementsMatch(t, []string{"gtd-past", "day-past"}, ids)
}
