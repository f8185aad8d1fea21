package book

import (
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Manager owns one order book per instrument symbol. Books are created
// lazily and are fully isolated: lookups never block matching on other
// symbols, and each book serializes its own mutation.
type Manager struct {
	logger *zap.Logger
	opts   []Option

	mu    sync.RWMutex
	books map[string]*OrderBook
}

// NewManager creates a book registry. The options are applied to every
// book it creates.
func NewManager(logger *zap.Logger, opts ...Option) *Manager {
	return &Manager{
		logger: logger,
		opts:   opts,
		books:  make(map[string]*OrderBook),
	}
}

// Book returns the order book for a symbol, creating it on first use.
func (m *Manager) Book(symbol string) *OrderBook {
	m.mu.RLock()
	b, ok := m.books[symbol]
	m.mu.RUnlock()
	if ok {
		return b
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok = m.books[symbol]; ok {
		return b
	}
	b = New(symbol, m.logger, m.opts...)
	m.books[symbol] = b
	m.logger.Info("created order book", zap.String("symbol", symbol))
	return b
}

// Lookup returns the book for a symbol without creating one.
func (m *Manager) Lookup(symbol string) (*OrderBook, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.books[symbol]
	return b, ok
}

// Symbols returns the symbols with live books, sorted for stable output.
func (m *Manager) Symbols() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.books))
	for s := range m.books {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
