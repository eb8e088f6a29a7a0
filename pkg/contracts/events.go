// Package contracts fixes the event schema shared by the order engine (writer
// side, via the outbox) and the notifier (consumer side).
package contracts

import "time"

type Event struct {
	EventID    string         `json:"event_id"`
	OrderID    int64          `json:"order_id"`
	CustomerID int64          `json:"customer_id"`
	CreatedAt  time.Time      `json:"created_at"`
	Type       string         `json:"type"`
	Payload    map[string]any `json:"payload"`
}

const (
	EventOrderPlaced    = "order.placed"
	EventOrderCancelled = "order.cancelled"
)

// Payload keys for EventOrderPlaced / EventOrderCancelled.
const (
	PayloadTotalPrice      = "total_price"
	PayloadItemCount       = "item_count"
	PayloadShippingAddress = "shipping_address"
	PayloadRestockedLines  = "restocked_lines"
)
