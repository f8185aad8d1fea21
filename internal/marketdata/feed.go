// Package marketdata streams live trades from the Finnhub websocket API and
// fans them out to in-process subscribers.
package marketdata

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Quote is one observed trade on an external venue.
type Quote struct {
	Symbol    string          `json:"symbol"`
	Price     decimal.Decimal `json:"price"`
	Volume    decimal.Decimal `json:"volume"`
	Timestamp time.Time       `json:"timestamp"`
}

// Finnhub wire messages.
type subscribeMessage struct {
	Type   string `json:"type"`
	Symbol string `json:"symbol"`
}

type tradeMessage struct {
	Type string `json:"type"`
	Data []struct {
		Symbol string          `json:"s"`
		Price  decimal.Decimal `json:"p"`
		Volume decimal.Decimal `json:"v"`
		Time   int64           `json:"t"` // unix millis
	} `json:"data"`
}

// Feed maintains the websocket connection with auto-reconnect and delivers
// quotes to subscribers. Slow subscribers drop quotes rather than stall the
// read loop.
type Feed struct {
	url               string
	token             string
	symbols           []string
	reconnectInterval time.Duration
	logger            *zap.Logger

	mu          sync.Mutex
	subscribers map[chan Quote]struct{}
}

// NewFeed creates a feed for the given symbols.
func NewFeed(rawURL, token string, symbols []string, logger *zap.Logger) *Feed {
	return &Feed{
		url:               rawURL,
		token:             token,
		symbols:           symbols,
		reconnectInterval: 5 * time.Second,
		logger:            logger,
		subscribers:       make(map[chan Quote]struct{}),
	}
}

// Subscribe returns a channel of quotes and an unsubscribe function.
func (f *Feed) Subscribe() (<-chan Quote, func()) {
	ch := make(chan Quote, 256)
	f.mu.Lock()
	f.subscribers[ch] = struct{}{}
	f.mu.Unlock()

	cancel := func() {
		f.mu.Lock()
		if _, ok := f.subscribers[ch]; ok {
			delete(f.subscribers, ch)
			close(ch)
		}
		f.mu.Unlock()
	}
	return ch, cancel
}

// Run connects and consumes until the context is cancelled, reconnecting on
// any read failure.
func (f *Feed) Run(ctx context.Context) error {
	for {
		if err := f.connectAndRead(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			f.logger.Warn("feed connection lost, reconnecting",
				zap.Error(err),
				zap.Duration("after", f.reconnectInterval),
			)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(f.reconnectInterval):
		}
	}
}

func (f *Feed) connectAndRead(ctx context.Context) error {
	u, err := url.Parse(f.url)
	if err != nil {
		return fmt.Errorf("parsing feed url: %w", err)
	}
	q := u.Query()
	q.Set("token", f.token)
	u.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("dialing feed: %w", err)
	}
	defer conn.Close()

	for _, symbol := range f.symbols {
		if err := conn.WriteJSON(subscribeMessage{Type: "subscribe", Symbol: symbol}); err != nil {
			return fmt.Errorf("subscribing to %s: %w", symbol, err)
		}
	}
	f.logger.Info("market data feed connected", zap.Strings("symbols", f.symbols))

	// Unblock the read loop when the context ends.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		var msg tradeMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return fmt.Errorf("reading feed: %w", err)
		}
		if msg.Type != "trade" {
			continue
		}
		for _, trade := range msg.Data {
			f.publish(Quote{
				Symbol:    trade.Symbol,
				Price:     trade.Price,
				Volume:    trade.Volume,
				Timestamp: time.UnixMilli(trade.Time).UTC(),
			})
		}
	}
}

func (f *Feed) publish(quote Quote) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for ch := range f.subscribers {
		select {
		case ch <- quote:
		default:
		}
	}
}
