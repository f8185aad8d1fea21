package queue

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexfin/exchange-core/internal/engine/model"
)

var nextSeq uint64

func limitOrder(id string, side model.Side, price string, qty int64) *model.Order {
	nextSeq++
	p, _ := decimal.NewFromString(price)
	return &model.Order{
		ID:         id,
		Side:       side,
		Type:       model.OrderTypeLimit,
		LimitPrice: p,
		Quantity:   qty,
		ArrivalSeq: nextSeq,
	}
}

func TestPeekBestBuySide(t *testing.T) {
	q := New()
	q.Add(limitOrder("b1", model.SideBuy, "10.00", 100))
	q.Add(limitOrder("b2", model.SideBuy, "10.50", 100))
	q.Add(limitOrder("b3", model.SideBuy, "9.75", 100))

	best := q.PeekBest(model.SideBuy)
	require.NotNil(t, best)
	assert.Equal(t, "b2", best.ID)
}

func TestPeekBestSellSide(t *testing.T) {
	q := New()
	q.Add(limitOrder("s1", model.SideSell, "10.00", 100))
	q.Add(limitOrder("s2", model.SideSell, "9.50", 100))
	q.Add(limitOrder("s3", model.SideSell, "11.00", 100))

	best := q.PeekBest(model.SideSell)
	require.NotNil(t, best)
	assert.Equal(t, "s2", best.ID)
}

func TestTimePriorityAtSamePrice(t *testing.T) {
	q := New()
	first := limitOrder("first", model.SideBuy, "10.00", 100)
	second := limitOrder("second", model.SideBuy, "10.00", 100)
	q.Add(second)
	q.Add(first)

	// Equal price: the earlier arrival must come out first.
	best := q.PeekBest(model.SideBuy)
	require.NotNil(t, best)
	assert.Equal(t, "first", best.ID)
}

func TestRemove(t *testing.T) {
	q := New()
	q.Add(limitOrder("b1", model.SideBuy, "10.00", 100))
	q.Add(limitOrder("s1", model.SideSell, "11.00", 100))

	assert.True(t, q.Remove("b1"))
	assert.False(t, q.Remove("b1"))
	assert.Equal(t, 0, q.Len(model.SideBuy))
	assert.True(t, q.Remove("s1"))

	market := &model.Order{ID: "m1", Side: model.SideBuy, Type: model.OrderTypeMarket, Quantity: 10}
	q.AddWaitingMarket(market)
	assert.True(t, q.Remove("m1"))
	assert.Empty(t, q.WaitingMarket())
}

func TestAvailableLiquidityStopsAtFirstIncompatible(t *testing.T) {
	q := New()
	q.Add(limitOrder("s1", model.SideSell, "10.00", 100))
	q.Add(limitOrder("s2", model.SideSell, "10.50", 50))
	q.Add(limitOrder("s3", model.SideSell, "12.00", 500))

	buyer := limitOrder("b1", model.SideBuy, "10.50", 200)
	assert.Equal(t, int64(150), q.AvailableLiquidity(buyer))

	// A market aggressor is compatible with the whole side.
	market := &model.Order{ID: "m1", Side: model.SideBuy, Type: model.OrderTypeMarket, Quantity: 1000}
	assert.Equal(t, int64(650), q.AvailableLiquidity(market))
}

func TestAvailableLiquidityCountsRemainingOnly(t *testing.T) {
	q := New()
	partial := limitOrder("s1", model.SideSell, "10.00", 100)
	partial.FilledQuantity = 60
	q.Add(partial)

	buyer := limitOrder("b1", model.SideBuy, "10.00", 100)
	assert.Equal(t, int64(40), q.AvailableLiquidity(buyer))
}

func TestDrainWaitingMarket(t *testing.T) {
	q := New()
	q.AddWaitingMarket(&model.Order{ID: "m1", Type: model.OrderTypeMarket})
	q.AddWaitingMarket(&model.Order{ID: "m2", Type: model.OrderTypeMarket})

	drained := q.DrainWaitingMarket()
	assert.Len(t, drained, 2)
	assert.Empty(t, q.WaitingMarket())
	assert.Empty(t, q.DrainWaitingMarket())
}
