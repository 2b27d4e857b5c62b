// Package events publishes order and stock lifecycle events for downstream
// consumers (notifications, reporting). Publishing is best-effort: the ledger
// never fails an operation because the broker is down.
package events

import "context"

const (
	TopicOrderCreated   = "order.created"
	TopicOrderStatus    = "order.status_changed"
	TopicOrderCancelled = "order.cancelled"
	TopicOrderDeleted   = "order.deleted"
	TopicStockLow       = "stock.low"
)

type Event struct {
	Topic      string  `json:"topic"`
	OrderID    string  `json:"order_id,omitempty"`
	ProductID  string  `json:"product_id,omitempty"`
	LocationID string  `json:"location_id,omitempty"`
	Status     string  `json:"status,omitempty"`
	StockQty   int     `json:"stock_qty,omitempty"`
	MinStock   int     `json:"min_stock,omitempty"`
	Total      float64 `json:"total,omitempty"`
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

type NoopPublisher struct{}

func (NoopPublisher) Publish(_ context.Context, _ Event) error {
	return nil
}
