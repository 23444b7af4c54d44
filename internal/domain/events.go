package domain

import "time"

type EventKind string

const (
	EventProductAdded         EventKind = "product_added"
	EventProductUpdated       EventKind = "product_updated"
	EventStockInsufficient    EventKind = "stock_insufficient"
	EventCartEmpty            EventKind = "cart_empty"
	EventTransactionCommitted EventKind = "transaction_committed"
	EventInvalidDiscount      EventKind = "invalid_discount"
	EventCheckoutFailed       EventKind = "checkout_failed"
)

// Event is an observational notification. Nothing in the engine depends on
// an event being delivered.
type Event struct {
	Kind        EventKind `json:"kind"`
	ProductID   string    `json:"product_id,omitempty"`
	ProductName string    `json:"product_name,omitempty"`
	Available   int       `json:"available,omitempty"`
	Requested   int       `json:"requested,omitempty"`
	ReceiptID   string    `json:"receipt_id,omitempty"`
	Total       int64     `json:"total,omitempty"`
	Profit      int64     `json:"profit,omitempty"`
	Message     string    `json:"message,omitempty"`
	At          time.Time `json:"at"`
}

func StockEvent(err *StockError, at time.Time) Event {
	return Event{
		Kind:        EventStockInsufficient,
		ProductID:   err.ProductID,
		ProductName: err.ProductName,
		Available:   err.Available,
		Requested:   err.Requested,
		Message:     err.Error(),
		At:          at,
	}
}
