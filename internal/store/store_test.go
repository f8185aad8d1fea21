package store

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexfin/exchange-core/internal/engine/model"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestProcessedEvents(t *testing.T) {
	s := newStore(t)

	found, err := s.IsProcessed("e1")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, s.MarkProcessed("e1", time.Now()))

	found, err = s.IsProcessed("e1")
	require.NoError(t, err)
	assert.True(t, found)
}

func TestExecutionsReplayInOrder(t *testing.T) {
	s := newStore(t)
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	for i, id := range []string{"first", "second", "third"} {
		exec := &model.Execution{
			ID:           uuid.New(),
			TakerOrderID: id,
			MakerOrderID: "maker",
			Symbol:       "AAPL",
			Quantity:     10,
			Price:        decimal.NewFromInt(100),
			Notional:     decimal.NewFromInt(1000),
			ExecutedAt:   base.Add(time.Duration(i) * time.Second),
		}
		require.NoError(t, s.SaveExecution(exec))
	}

	records, err := s.Executions()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "first", records[0].TakerOrderID)
	assert.Equal(t, "second", records[1].TakerOrderID)
	assert.Equal(t, "third", records[2].TakerOrderID)
}

func TestOrderStatusUpsert(t *testing.T) {
	s := newStore(t)
	o := &model.Order{ID: "o1", Quantity: 100, FilledQuantity: 40}
	now := time.Now()

	_, err := s.OrderStatus("o1")
	assert.ErrorIs(t, err, model.ErrOrderNotFound)

	require.NoError(t, s.SaveOrderStatus(o, model.OrderStatusPartiallyFilled, now))
	record, err := s.OrderStatus("o1")
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusPartiallyFilled, record.Status)
	assert.Equal(t, int64(40), record.FilledQuantity)

	o.FilledQuantity = 100
	require.NoError(t, s.SaveOrderStatus(o, model.OrderStatusFilled, now))
	record, err = s.OrderStatus("o1")
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusFilled, record.Status)
}
