// Package messaging defines the wire events of the order flow and the Kafka
// client that carries them.
package messaging

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Event types carried in the envelope.
const (
	EventTypeOrderPlaced    = "ORDER_PLACED"
	EventTypeOrderExecuted  = "OrderStatusUpdated"
	EventTypeOrderCancelled = "OrderCancelled"
)

// Producer name stamped on outbound envelopes.
const producerName = "exchange-core"

// Envelope wraps every event on the wire. The payload stays raw until the
// event type has been inspected.
type Envelope struct {
	EventType     string          `json:"eventType"`
	SchemaVersion string          `json:"schemaVersion"`
	CorrelationID string          `json:"correlationId"`
	Producer      string          `json:"producer"`
	Timestamp     time.Time       `json:"timeStamp"`
	Payload       json.RawMessage `json:"payload"`
}

// NewEnvelope wraps a payload for publishing.
func NewEnvelope(eventType string, payload any) (*Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Envelope{
		EventType:     eventType,
		SchemaVersion: "v1",
		CorrelationID: uuid.New().String(),
		Producer:      producerName,
		Timestamp:     time.Now().UTC(),
		Payload:       raw,
	}, nil
}

// OrderPlacedEvent is the inbound order payload. It is flat: the orderType
// tag decides which optional fields are meaningful, including the leg fields
// of an ONE_CANCELS_OTHER pair.
type OrderPlacedEvent struct {
	OrderID     string `json:"orderId"`
	UserID      string `json:"userId"`
	Symbol      string `json:"symbol"`
	Side        string `json:"side"`
	OrderType   string `json:"orderType"`
	Quantity    int64  `json:"quantity"`
	TimeInForce string `json:"timeInForce,omitempty"`

	GoodTillDate *time.Time `json:"goodTillDate,omitempty"`

	LimitPrice      *decimal.Decimal `json:"limitPrice,omitempty"`
	StopPrice       *decimal.Decimal `json:"stopPrice,omitempty"`
	TrailAmount     *decimal.Decimal `json:"trailAmount,omitempty"`
	TrailPercent    *decimal.Decimal `json:"trailPercent,omitempty"`
	DisplayQuantity int64            `json:"displayQuantity,omitempty"`

	// ONE_CANCELS_OTHER legs.
	OCOGroupID         string           `json:"ocoGroupId,omitempty"`
	PrimaryOrderType   string           `json:"primaryOrderType,omitempty"`
	PrimaryPrice       *decimal.Decimal `json:"primaryPrice,omitempty"`
	PrimaryStopPrice   *decimal.Decimal `json:"primaryStopPrice,omitempty"`
	SecondaryOrderType string           `json:"secondaryOrderType,omitempty"`
	SecondaryPrice     *decimal.Decimal `json:"secondaryPrice,omitempty"`
	SecondaryStopPrice *decimal.Decimal `json:"secondaryStopPrice,omitempty"`
	SecondaryTrail     *decimal.Decimal `json:"secondaryTrailAmount,omitempty"`
}

// OrderExecutedEvent is the outbound execution payload, one per involved
// order per trade.
type OrderExecutedEvent struct {
	OrderID        string          `json:"orderId"`
	CounterOrderID string          `json:"counterOrderId"`
	UserID         string          `json:"userId"`
	Symbol         string          `json:"symbol"`
	Side           string          `json:"side"`
	Type           string          `json:"type"`
	Quantity       int64           `json:"quantity"`
	Price          decimal.Decimal `json:"price"`
	NotionalValue  decimal.Decimal `json:"notionalValue"`
	Status         string          `json:"status"`
	ExecutedAt     time.Time       `json:"executedAt"`
}

// OrderCancelledEvent is the outbound cancellation payload.
type OrderCancelledEvent struct {
	OrderID     string    `json:"orderId"`
	UserID      string    `json:"userId"`
	Symbol      string    `json:"symbol"`
	Side        string    `json:"side"`
	Type        string    `json:"type"`
	Quantity    int64     `json:"quantity"`
	Status      string    `json:"status"`
	Reason      string    `json:"reason"`
	CancelledAt time.Time `json:"cancelledAt"`
}
