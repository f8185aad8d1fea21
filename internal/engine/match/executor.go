package match

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/nexfin/exchange-core/internal/engine/model"
)

// Executor applies a decided match. It is the only code that increments
// filled quantities, and it must be called exactly once per matched slice.
type Executor struct {
	logger *zap.SugaredLogger
	now    func() time.Time

	// onPrice is invoked with the execution price after fill state is
	// updated. The owning book uses it to move its last traded price and
	// ratchet trailing stops.
	onPrice func(decimal.Decimal)
}

// NewExecutor creates an executor. onPrice may be nil.
func NewExecutor(logger *zap.SugaredLogger, now func() time.Time, onPrice func(decimal.Decimal)) *Executor {
	if now == nil {
		now = time.Now
	}
	return &Executor{logger: logger, now: now, onPrice: onPrice}
}

// Execute fills both orders by quantity at price and returns the execution
// record. The caller guarantees quantity <= min(remaining of both).
func (e *Executor) Execute(taker, maker *model.Order, quantity int64, price decimal.Decimal) *model.Execution {
	taker.FilledQuantity += quantity
	maker.FilledQuantity += quantity

	if e.onPrice != nil {
		e.onPrice(price)
	}

	exec := &model.Execution{
		ID:           uuid.New(),
		TakerOrderID: taker.ID,
		MakerOrderID: maker.ID,
		UserID:       taker.UserID,
		Symbol:       taker.Symbol,
		Side:         taker.Side,
		Quantity:     quantity,
		Price:        price,
		Notional:     price.Mul(decimal.NewFromInt(quantity)),
		ExecutedAt:   e.now(),
	}

	e.logger.Infow("trade executed",
		"symbol", exec.Symbol,
		"taker", taker.ID,
		"maker", maker.ID,
		"quantity", quantity,
		"price", price.String(),
	)
	return exec
}
