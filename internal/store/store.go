// Package store persists processed-event ids, execution records and order
// statuses in BadgerDB.
package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/shopspring/decimal"

	"github.com/nexfin/exchange-core/internal/engine/model"
)

// Key prefixes. Executions are keyed by timestamp so iteration replays them
// in order.
const (
	prefixProcessed = "processed:"
	prefixExecution = "execution:"
	prefixStatus    = "status:"
)

// ExecutionRecord is the persisted form of one execution.
type ExecutionRecord struct {
	ID           string          `json:"id"`
	TakerOrderID string          `json:"taker_order_id"`
	MakerOrderID string          `json:"maker_order_id"`
	Symbol       string          `json:"symbol"`
	Quantity     int64           `json:"quantity"`
	Price        decimal.Decimal `json:"price"`
	Notional     decimal.Decimal `json:"notional"`
	ExecutedAt   time.Time       `json:"executed_at"`
}

// OrderStatusRecord is the latest reported state of one order.
type OrderStatusRecord struct {
	OrderID        string            `json:"order_id"`
	Status         model.OrderStatus `json:"status"`
	FilledQuantity int64             `json:"filled_quantity"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// Store is a badger-backed persistence layer.
type Store struct {
	db *badger.DB
}

// Open opens the store at dir.
func Open(dir string) (*Store, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening badger db: %w", err)
	}
	return &Store{db: db}, nil
}

// OpenInMemory opens an ephemeral store, used in tests and dev mode.
func OpenInMemory() (*Store, error) {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening in-memory badger db: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// IsProcessed reports whether the event id has been handled before.
func (s *Store) IsProcessed(eventID string) (bool, error) {
	var found bool
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(prefixProcessed + eventID))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return nil
	})
	return found, err
}

// MarkProcessed records the event id with its processing time.
func (s *Store) MarkProcessed(eventID string, at time.Time) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(prefixProcessed+eventID), []byte(at.UTC().Format(time.RFC3339Nano)))
	})
}

// SaveExecution persists one execution record.
func (s *Store) SaveExecution(exec *model.Execution) error {
	record := ExecutionRecord{
		ID:           exec.ID.String(),
		TakerOrderID: exec.TakerOrderID,
		MakerOrderID: exec.MakerOrderID,
		Symbol:       exec.Symbol,
		Quantity:     exec.Quantity,
		Price:        exec.Price,
		Notional:     exec.Notional,
		ExecutedAt:   exec.ExecutedAt,
	}
	val, err := json.Marshal(record)
	if err != nil {
		return err
	}
	key := fmt.Sprintf("%s%020d:%s", prefixExecution, exec.ExecutedAt.UnixNano(), record.ID)
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), val)
	})
}

// Executions returns all persisted executions in execution order.
func (s *Store) Executions() ([]ExecutionRecord, error) {
	var out []ExecutionRecord
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte(prefixExecution)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(v []byte) error {
				var record ExecutionRecord
				if err := json.Unmarshal(v, &record); err != nil {
					return err
				}
				out = append(out, record)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return out, err
}

// SaveOrderStatus upserts the latest status of an order.
func (s *Store) SaveOrderStatus(o *model.Order, status model.OrderStatus, at time.Time) error {
	record := OrderStatusRecord{
		OrderID:        o.ID,
		Status:         status,
		FilledQuantity: o.FilledQuantity,
		UpdatedAt:      at,
	}
	val, err := json.Marshal(record)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(prefixStatus+o.ID), val)
	})
}

// OrderStatus returns the latest status of an order.
func (s *Store) OrderStatus(orderID string) (*OrderStatusRecord, error) {
	var record OrderStatusRecord
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(prefixStatus + orderID))
		if err == badger.ErrKeyNotFound {
			return model.ErrOrderNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(v []byte) error {
			return json.Unmarshal(v, &record)
		})
	})
	if err != nil {
		return nil, err
	}
	return &record, nil
}
