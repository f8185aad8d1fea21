package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nexfin/exchange-core/internal/engine/book"
	"github.com/nexfin/exchange-core/internal/engine/model"
	"github.com/nexfin/exchange-core/internal/messaging"
	"github.com/nexfin/exchange-core/internal/store"
)

type published struct {
	topic    string
	key      string
	envelope *messaging.Envelope
}

type fakePublisher struct {
	events []published
}

func (p *fakePublisher) Publish(_ context.Context, topic, key string, event any) error {
	p.events = append(p.events, published{topic: topic, key: key, envelope: event.(*messaging.Envelope)})
	return nil
}

func (p *fakePublisher) onTopic(topic string) []published {
	var out []published
	for _, e := range p.events {
		if e.topic == topic {
			out = append(out, e)
		}
	}
	return out
}

func newTestService(t *testing.T) (*MatchingService, *fakePublisher, *store.Store) {
	t.Helper()
	st, err := store.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	pub := &fakePublisher{}
	topics := messaging.Config{
		OrdersTopic:    "orders.v1",
		ExecutionTopic: "execution.v1",
		FailedTopic:    "failed.v1",
	}
	now := func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) }
	svc := NewMatchingService(zap.NewNop(), book.NewManager(zap.NewNop()), st, pub, topics, now)
	return svc, pub, st
}

func placeEvent(id, orderID, side, orderType string, qty int64) *messaging.OrderPlacedEvent {
	return &messaging.OrderPlacedEvent{
		OrderID:   orderID,
		UserID:    "u-1",
		Symbol:    "AAPL",
		Side:      side,
		OrderType: orderType,
		Quantity:  qty,
	}
}

func TestProcessMatchPublishesExecutions(t *testing.T) {
	svc, pub, st := newTestService(t)
	ctx := context.Background()

	sell := placeEvent("e1", "sell-1", "SELL", "LIMIT", 100)
	sell.LimitPrice = price("10.00")
	require.NoError(t, svc.Process(ctx, "e1", sell))
	assert.Empty(t, pub.events)

	buy := placeEvent("e2", "buy-1", "BUY", "LIMIT", 100)
	buy.LimitPrice = price("10.00")
	require.NoError(t, svc.Process(ctx, "e2", buy))

	// One executed event per involved order.
	execs := pub.onTopic("execution.v1")
	require.Len(t, execs, 2)
	for _, e := range execs {
		assert.Equal(t, messaging.EventTypeOrderExecuted, e.envelope.EventType)
		var payload messaging.OrderExecutedEvent
		require.NoError(t, json.Unmarshal(e.envelope.Payload, &payload))
		assert.Equal(t, "FILLED", payload.Status)
		assert.True(t, payload.Price.Equal(*price("10.00")))
		assert.True(t, payload.NotionalValue.Equal(*price("1000")))
	}

	// Both persisted statuses are FILLED and the execution is recorded.
	status, err := st.OrderStatus("buy-1")
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusFilled, status.Status)
	assert.Equal(t, int64(100), status.FilledQuantity)

	records, err := st.Executions()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, int64(100), records[0].Quantity)
}

func TestProcessIsIdempotent(t *testing.T) {
	svc, pub, _ := newTestService(t)
	ctx := context.Background()

	sell := placeEvent("e1", "sell-1", "SELL", "LIMIT", 100)
	sell.LimitPrice = price("10.00")
	require.NoError(t, svc.Process(ctx, "e1", sell))

	// Redelivery of the same event id must not rest a second order.
	dup := placeEvent("e1", "sell-1", "SELL", "LIMIT", 100)
	dup.LimitPrice = price("10.00")
	require.NoError(t, svc.Process(ctx, "e1", dup))

	buy := placeEvent("e2", "buy-1", "BUY", "LIMIT", 200)
	buy.LimitPrice = price("10.00")
	require.NoError(t, svc.Process(ctx, "e2", buy))

	// Only the first sell was admitted: one trade, the buy is left partial.
	execs := pub.onTopic("execution.v1")
	require.Len(t, execs, 2)
	byOrder := map[string]messaging.OrderExecutedEvent{}
	for _, e := range execs {
		var payload messaging.OrderExecutedEvent
		require.NoError(t, json.Unmarshal(e.envelope.Payload, &payload))
		byOrder[payload.OrderID] = payload
	}
	assert.Equal(t, "FILLED", byOrder["sell-1"].Status)
	assert.Equal(t, "PARTIALLY_FILLED", byOrder["buy-1"].Status)
}

func TestProcessRejectsInvalidEvent(t *testing.T) {
	svc, pub, st := newTestService(t)
	ctx := context.Background()

	bad := placeEvent("e1", "bad-1", "BUY", "LIMIT", 100) // no limit price
	require.NoError(t, svc.Process(ctx, "e1", bad))

	failed := pub.onTopic("failed.v1")
	require.Len(t, failed, 1)
	assert.Equal(t, messaging.EventTypeOrderCancelled, failed[0].envelope.EventType)
	var payload messaging.OrderCancelledEvent
	require.NoError(t, json.Unmarshal(failed[0].envelope.Payload, &payload))
	assert.Equal(t, "bad-1", payload.OrderID)
	assert.Contains(t, payload.Reason, "valid price")

	// The rejection is terminal: the event is marked processed.
	processed, err := st.IsProcessed("e1")
	require.NoError(t, err)
	assert.True(t, processed)
}

func TestProcessPublishesCancellations(t *testing.T) {
	svc, pub, st := newTestService(t)
	ctx := context.Background()

	sell := placeEvent("e1", "sell-1", "SELL", "LIMIT", 50)
	sell.LimitPrice = price("10.00")
	require.NoError(t, svc.Process(ctx, "e1", sell))

	ioc := placeEvent("e2", "ioc-1", "BUY", "LIMIT", 100)
	ioc.LimitPrice = price("10.00")
	ioc.TimeInForce = "IOC"
	require.NoError(t, svc.Process(ctx, "e2", ioc))

	require.Len(t, pub.onTopic("execution.v1"), 2)
	failed := pub.onTopic("failed.v1")
	require.Len(t, failed, 1)
	var payload messaging.OrderCancelledEvent
	require.NoError(t, json.Unmarshal(failed[0].envelope.Payload, &payload))
	assert.Equal(t, "ioc-1", payload.OrderID)
	assert.Contains(t, payload.Reason, "IOC")

	status, err := st.OrderStatus("ioc-1")
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusCancelled, status.Status)
}

func TestProcessOCO(t *testing.T) {
	svc, pub, _ := newTestService(t)
	ctx := context.Background()

	bid := placeEvent("e1", "bid-1", "BUY", "LIMIT", 100)
	bid.LimitPrice = price("12.00")
	require.NoError(t, svc.Process(ctx, "e1", bid))

	oco := placeEvent("e2", "oco-1", "SELL", "ONE_CANCELS_OTHER", 100)
	oco.OCOGroupID = "g1"
	oco.PrimaryOrderType = "LIMIT"
	oco.PrimaryPrice = price("12.00")
	oco.SecondaryOrderType = "STOP_MARKET"
	oco.SecondaryStopPrice = price("9.00")
	require.NoError(t, svc.Process(ctx, "e2", oco))

	// The limit leg fills; the stop leg goes out as an OCO cancellation.
	require.Len(t, pub.onTopic("execution.v1"), 2)
	failed := pub.onTopic("failed.v1")
	require.Len(t, failed, 1)
	var payload messaging.OrderCancelledEvent
	require.NoError(t, json.Unmarshal(failed[0].envelope.Payload, &payload))
	assert.Equal(t, "oco-1-secondary", payload.OrderID)
	assert.Contains(t, payload.Reason, "OCO")
}

func TestHandleEnvelopeDecodesPayload(t *testing.T) {
	svc, pub, _ := newTestService(t)
	ctx := context.Background()

	event := placeEvent("", "mkt-1", "BUY", "MARKET", 10)
	envelope, err := messaging.NewEnvelope(messaging.EventTypeOrderPlaced, event)
	require.NoError(t, err)

	require.NoError(t, svc.HandleEnvelope(ctx, envelope))
	// Market order on an empty book: admitted, nothing published.
	assert.Empty(t, pub.events)
}
