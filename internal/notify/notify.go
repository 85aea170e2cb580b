// Package notify mirrors quote-response toasts to external channels: chat
// webhooks, push gateways, email and message brokers.
package notify

import (
	"context"
	"time"
)

// Event is one synchronized quote response as announced to people.
type Event struct {
	Title        string    `json:"title"`
	Message      string    `json:"message"`
	SupplierName string    `json:"supplier_name"`
	SupplierID   string    `json:"supplier_id"`
	QuoteID      string    `json:"quote_id"`
	ToastID      string    `json:"toast_id,omitempty"`
	At           time.Time `json:"at"`
}

// Key identifies the response an event is about; repeated events with the same
// key inside the cooldown are suppressed.
func (e Event) Key() string {
	return e.QuoteID + "/" + e.SupplierID
}

// Service is the interface all notifiers must implement
type Service interface {
	Send(ctx context.Context, ev Event) error
	Name() string
}

// Sender is what the poller needs from a notifier.
type Sender interface {
	Send(ctx context.Context, ev Event)
}
