package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nexfin/exchange-core/internal/engine/book"
	"github.com/nexfin/exchange-core/internal/engine/model"
	"github.com/nexfin/exchange-core/internal/messaging"
	"github.com/nexfin/exchange-core/internal/metrics"
	"github.com/nexfin/exchange-core/internal/store"
)

// MatchingService drives one order event through the pipeline: idempotency
// check, validation, mapping, matching, persistence, publishing.
type MatchingService struct {
	logger    *zap.Logger
	books     *book.Manager
	store     *store.Store
	publisher messaging.Publisher
	topics    messaging.Config
	now       func() time.Time
}

// NewMatchingService creates the service. now may be nil for the wall clock.
func NewMatchingService(
	logger *zap.Logger,
	books *book.Manager,
	st *store.Store,
	publisher messaging.Publisher,
	topics messaging.Config,
	now func() time.Time,
) *MatchingService {
	if now == nil {
		now = time.Now
	}
	return &MatchingService{
		logger:    logger,
		books:     books,
		store:     st,
		publisher: publisher,
		topics:    topics,
		now:       now,
	}
}

// HandleEnvelope is the consumer entry point. Unknown event types are
// treated as order placements, matching the upstream producer's behavior.
func (s *MatchingService) HandleEnvelope(ctx context.Context, envelope *messaging.Envelope) error {
	if envelope.EventType != messaging.EventTypeOrderPlaced {
		s.logger.Warn("unknown event type, treating as order placement",
			zap.String("event_type", envelope.EventType))
	}

	var event messaging.OrderPlacedEvent
	if err := json.Unmarshal(envelope.Payload, &event); err != nil {
		s.logger.Error("failed to decode order payload", zap.Error(err))
		return nil // poison payload, never retriable
	}
	return s.Process(ctx, envelope.CorrelationID, &event)
}

// Process runs one order event end to end. Errors from the store or the
// publisher are returned so the offset stays uncommitted and the event is
// redelivered; the idempotency check makes the redelivery safe.
func (s *MatchingService) Process(ctx context.Context, eventID string, event *messaging.OrderPlacedEvent) error {
	processed, err := s.store.IsProcessed(eventID)
	if err != nil {
		return fmt.Errorf("idempotency check for %s: %w", eventID, err)
	}
	if processed {
		s.logger.Warn("duplicate event skipped", zap.String("event_id", eventID))
		metrics.DuplicateEvents.Inc()
		return nil
	}

	if err := ValidateOrderEvent(event); err != nil {
		s.logger.Error("order event rejected",
			zap.String("event_id", eventID),
			zap.String("order_id", event.OrderID),
			zap.Error(err),
		)
		if pubErr := s.publishValidationFailure(ctx, event, err); pubErr != nil {
			return pubErr
		}
		return s.store.MarkProcessed(eventID, s.now())
	}

	metrics.OrdersConsumed.WithLabelValues(event.OrderType).Inc()

	results, err := s.admit(event)
	if err != nil {
		// Contract breach inside the engine; reject the order, keep consuming.
		s.logger.Error("admission aborted",
			zap.String("order_id", event.OrderID),
			zap.Error(err),
		)
		if pubErr := s.publishValidationFailure(ctx, event, err); pubErr != nil {
			return pubErr
		}
		return s.store.MarkProcessed(eventID, s.now())
	}

	if err := s.settle(ctx, results); err != nil {
		return err
	}
	return s.store.MarkProcessed(eventID, s.now())
}

func (s *MatchingService) admit(event *messaging.OrderPlacedEvent) ([]*model.TradeResult, error) {
	b := s.books.Book(event.Symbol)

	start := s.now()
	defer func() {
		metrics.AdmissionLatency.Observe(time.Since(start).Seconds())
	}()

	if event.OrderType == eventTypeOCO {
		return b.AdmitOCO(MapOCO(event))
	}
	return b.Admit(MapOrder(event))
}

// settle persists and publishes every trade result in order.
func (s *MatchingService) settle(ctx context.Context, results []*model.TradeResult) error {
	for _, result := range results {
		if result.IsCancellation() {
			if err := s.settleCancellation(ctx, result); err != nil {
				return err
			}
			continue
		}
		if err := s.settleTrade(ctx, result); err != nil {
			return err
		}
	}
	return nil
}

func (s *MatchingService) settleTrade(ctx context.Context, result *model.TradeResult) error {
	exec := result.Execution
	if err := s.store.SaveExecution(exec); err != nil {
		return fmt.Errorf("saving execution %s: %w", exec.ID, err)
	}
	metrics.TradesExecuted.Inc()

	for _, o := range result.Orders {
		status := model.StatusOf(o)
		if err := s.store.SaveOrderStatus(o, status, s.now()); err != nil {
			return fmt.Errorf("saving status of %s: %w", o.ID, err)
		}

		counterID := exec.MakerOrderID
		if o.ID == exec.MakerOrderID {
			counterID = exec.TakerOrderID
		}
		payload := messaging.OrderExecutedEvent{
			OrderID:        o.ID,
			CounterOrderID: counterID,
			UserID:         o.UserID,
			Symbol:         o.Symbol,
			Side:           string(o.Side),
			Type:           string(o.Type),
			Quantity:       o.Quantity,
			Price:          exec.Price,
			NotionalValue:  exec.Notional,
			Status:         string(status),
			ExecutedAt:     exec.ExecutedAt,
		}
		if err := s.publishEnvelope(ctx, s.topics.ExecutionTopic, o.ID, messaging.EventTypeOrderExecuted, payload); err != nil {
			return err
		}
		s.logger.Info("order status updated",
			zap.String("order_id", o.ID),
			zap.String("status", string(status)),
			zap.Int64("filled", o.FilledQuantity),
			zap.Int64("quantity", o.Quantity),
		)
	}
	return nil
}

func (s *MatchingService) settleCancellation(ctx context.Context, result *model.TradeResult) error {
	metrics.OrdersCancelled.WithLabelValues(reasonClass(result.Reason)).Inc()
	for _, o := range result.Orders {
		if err := s.store.SaveOrderStatus(o, model.OrderStatusCancelled, s.now()); err != nil {
			return fmt.Errorf("saving status of %s: %w", o.ID, err)
		}
		payload := messaging.OrderCancelledEvent{
			OrderID:     o.ID,
			UserID:      o.UserID,
			Symbol:      o.Symbol,
			Side:        string(o.Side),
			Type:        string(o.Type),
			Quantity:    o.Quantity,
			Status:      string(model.OrderStatusCancelled),
			Reason:      result.Reason,
			CancelledAt: s.now(),
		}
		if err := s.publishEnvelope(ctx, s.topics.FailedTopic, o.ID, messaging.EventTypeOrderCancelled, payload); err != nil {
			return err
		}
	}
	return nil
}

func (s *MatchingService) publishValidationFailure(ctx context.Context, event *messaging.OrderPlacedEvent, cause error) error {
	metrics.OrdersCancelled.WithLabelValues("rejected").Inc()
	payload := messaging.OrderCancelledEvent{
		OrderID:     event.OrderID,
		UserID:      event.UserID,
		Symbol:      event.Symbol,
		Side:        event.Side,
		Type:        event.OrderType,
		Quantity:    event.Quantity,
		Status:      string(model.OrderStatusCancelled),
		Reason:      cause.Error(),
		CancelledAt: s.now(),
	}
	return s.publishEnvelope(ctx, s.topics.FailedTopic, event.OrderID, messaging.EventTypeOrderCancelled, payload)
}

func (s *MatchingService) publishEnvelope(ctx context.Context, topic, key, eventType string, payload any) error {
	envelope, err := messaging.NewEnvelope(eventType, payload)
	if err != nil {
		return fmt.Errorf("building %s envelope: %w", eventType, err)
	}
	if err := s.publisher.Publish(ctx, topic, key, envelope); err != nil {
		return fmt.Errorf("publishing %s: %w", eventType, err)
	}
	return nil
}

// reasonClass folds free-form cancellation reasons into a small label set so
// the cancellation counter stays low-cardinality.
func reasonClass(reason string) string {
	switch {
	case strings.Contains(reason, "OCO"):
		return "oco"
	case strings.Contains(reason, "expired"):
		return "expired"
	case strings.Contains(reason, "fill or kill"), strings.Contains(reason, "time in force"):
		return "tif"
	default:
		return "rejected"
	}
}
