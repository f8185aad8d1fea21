package messaging

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEnvelopeWrapsPayload(t *testing.T) {
	payload := OrderCancelledEvent{OrderID: "o1", Reason: "test"}
	envelope, err := NewEnvelope(EventTypeOrderCancelled, payload)
	require.NoError(t, err)

	assert.Equal(t, EventTypeOrderCancelled, envelope.EventType)
	assert.Equal(t, "v1", envelope.SchemaVersion)
	assert.Equal(t, "exchange-core", envelope.Producer)
	assert.NotEmpty(t, envelope.CorrelationID)

	var decoded OrderCancelledEvent
	require.NoError(t, json.Unmarshal(envelope.Payload, &decoded))
	assert.Equal(t, "o1", decoded.OrderID)
}

func TestOrderPlacedEventRoundTrip(t *testing.T) {
	raw := []byte(`{
		"eventType": "ORDER_PLACED",
		"schemaVersion": "v1",
		"correlationId": "c-1",
		"producer": "order-service",
		"payload": {
			"orderId": "o-1",
			"userId": "u-1",
			"symbol": "AAPL",
			"side": "SELL",
			"orderType": "STOP_LIMIT",
			"quantity": 100,
			"timeInForce": "GTC",
			"stopPrice": 9.5,
			"limitPrice": 10
		}
	}`)

	var envelope Envelope
	require.NoError(t, json.Unmarshal(raw, &envelope))
	assert.Equal(t, EventTypeOrderPlaced, envelope.EventType)

	var event OrderPlacedEvent
	require.NoError(t, json.Unmarshal(envelope.Payload, &event))
	assert.Equal(t, "o-1", event.OrderID)
	assert.Equal(t, "STOP_LIMIT", event.OrderType)
	require.NotNil(t, event.StopPrice)
	assert.Equal(t, "9.5", event.StopPrice.String())
	require.NotNil(t, event.LimitPrice)
	assert.Equal(t, "10", event.LimitPrice.String())
}
