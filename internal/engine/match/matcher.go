// Package match contains the stateless crossing decision and the trade
// executor, the single writer of fill state.
package match

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/nexfin/exchange-core/internal/engine/model"
)

// Match reasons, carried into logs and results for observability.
const (
	ReasonMarketMarket = "market x market"
	ReasonMarketPriced = "market x priced"
	ReasonPricedMarket = "priced x market"
	ReasonPricedPriced = "priced x priced"
)

// Decision is the outcome of evaluating one aggressor against the best
// resting counter-order.
type Decision struct {
	// Match means the pair crosses at Price.
	Match bool
	// Defer means a market aggressor met a market counter with no reference
	// price; the caller must park the aggressor and retry after a priced
	// trade.
	Defer  bool
	Price  decimal.Decimal
	Reason string
}

func knownType(t model.OrderType) bool {
	switch t {
	case model.OrderTypeMarket, model.OrderTypeLimit, model.OrderTypeStopMarket,
		model.OrderTypeStopLimit, model.OrderTypeTrailingStop, model.OrderTypeIceberg:
		return true
	}
	return false
}

// Decide evaluates the crossing table for one aggressor/counter pair.
//
//	market x market -> lastTraded, only when a last traded price exists
//	market x priced -> counter's price
//	priced x market -> aggressor's price
//	priced x priced -> counter's price, iff the aggressor's price crosses it
//
// Executing at the counter's price when the aggressor is more aggressive is
// price improvement in the aggressor's favor. An unknown order type on
// either side is an upstream contract breach and returns an error.
func Decide(aggressor, counter *model.Order, lastTraded decimal.Decimal) (Decision, error) {
	if !knownType(aggressor.Type) {
		return Decision{}, fmt.Errorf("aggressor %s: %w: %s", aggressor.ID, model.ErrUnknownOrderType, aggressor.Type)
	}
	if !knownType(counter.Type) {
		return Decision{}, fmt.Errorf("counter %s: %w: %s", counter.ID, model.ErrUnknownOrderType, counter.Type)
	}

	aggressorPrice, aggressorPriced := aggressor.Price()
	counterPrice, counterPriced := counter.Price()

	switch {
	case !aggressorPriced && !counterPriced:
		if lastTraded.IsPositive() {
			return Decision{Match: true, Price: lastTraded, Reason: ReasonMarketMarket}, nil
		}
		return Decision{Defer: true}, nil

	case !aggressorPriced:
		return Decision{Match: true, Price: counterPrice, Reason: ReasonMarketPriced}, nil

	case !counterPriced:
		return Decision{Match: true, Price: aggressorPrice, Reason: ReasonPricedMarket}, nil

	default:
		crosses := false
		if aggressor.Side == model.SideBuy {
			crosses = aggressorPrice.Cmp(counterPrice) >= 0
		} else {
			crosses = aggressorPrice.Cmp(counterPrice) <= 0
		}
		if !crosses {
			return Decision{}, nil
		}
		return Decision{Match: true, Price: counterPrice, Reason: ReasonPricedPriced}, nil
	}
}
