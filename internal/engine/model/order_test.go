package model

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestOrderPrice(t *testing.T) {
	limit := &Order{Type: OrderTypeLimit, LimitPrice: decimal.NewFromFloat(10.50)}
	price, ok := limit.Price()
	assert.True(t, ok)
	assert.True(t, price.Equal(decimal.NewFromFloat(10.50)))

	iceberg := &Order{Type: OrderTypeIceberg, LimitPrice: decimal.NewFromInt(9)}
	_, ok = iceberg.Price()
	assert.True(t, ok)

	market := &Order{Type: OrderTypeMarket}
	_, ok = market.Price()
	assert.False(t, ok)

	stopMarket := &Order{Type: OrderTypeStopMarket, StopPrice: decimal.NewFromInt(11)}
	_, ok = stopMarket.Price()
	assert.False(t, ok)
}

func TestOrderFillState(t *testing.T) {
	o := &Order{Quantity: 100}
	assert.Equal(t, int64(100), o.RemainingQuantity())
	assert.False(t, o.IsFullyFilled())

	o.FilledQuantity = 40
	assert.Equal(t, int64(60), o.RemainingQuantity())
	assert.Equal(t, OrderStatusPartiallyFilled, StatusOf(o))

	o.FilledQuantity = 100
	assert.True(t, o.IsFullyFilled())
	assert.Equal(t, OrderStatusFilled, StatusOf(o))
}

func TestOrderIsStop(t *testing.T) {
	for _, typ := range []OrderType{OrderTypeStopMarket, OrderTypeStopLimit, OrderTypeTrailingStop} {
		assert.True(t, (&Order{Type: typ}).IsStop(), "type %s", typ)
	}
	for _, typ := range []OrderType{OrderTypeMarket, OrderTypeLimit, OrderTypeIceberg} {
		assert.False(t, (&Order{Type: typ}).IsStop(), "type %s", typ)
	}
}

func TestOCODelegation(t *testing.T) {
	primary := &Order{ID: "p1", Quantity: 100}
	secondary := &Order{ID: "s1", Quantity: 50}
	group := &OCOOrder{GroupID: "g1", Primary: primary, Secondary: secondary}

	assert.Nil(t, group.ActiveLeg())
	assert.Equal(t, int64(0), group.FilledQuantity())
	assert.False(t, group.IsFullyFilled())

	group.PrimaryTriggered = true
	primary.FilledQuantity = 100
	assert.Equal(t, primary, group.ActiveLeg())
	assert.Equal(t, int64(100), group.FilledQuantity())
	assert.True(t, group.IsFullyFilled())

	assert.Equal(t, secondary, group.Counterpart("p1"))
	assert.Equal(t, primary, group.Counterpart("s1"))
	assert.Nil(t, group.Counterpart("other"))
	assert.True(t, group.Contains("s1"))
	assert.False(t, group.Contains("other"))
}
