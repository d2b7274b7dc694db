package jobs

import (
	"context"

	"github.com/groweasy/groweasy/internal/orders"
)

// Notifier adapts the queue client to the order processor's notification
// port. Dispatch happens after the order transaction committed; delivery
// is best effort.
type Notifier struct {
	client *Client
}

// NewNotifier constructs a Notifier.
func NewNotifier(client *Client) *Notifier {
	return &Notifier{client: client}
}

// NotifyStockAlert enqueues a stock alert task.
func (n *Notifier) NotifyStockAlert(ctx context.Context, note orders.StockAlertNote) error {
	if n == nil || n.client == nil {
		return nil
	}
	_, err := n.client.EnqueueStockAlert(ctx, StockAlertPayload{
		EventID:       note.EventID,
		TenantID:      note.TenantID,
		ProductID:     note.ProductID,
		ProductName:   note.ProductName,
		CurrentStock:  note.CurrentStock,
		MinStockLevel: note.MinStockLevel,
		AlertType:     note.AlertType,
	})
	return err
}
