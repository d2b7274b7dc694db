package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/groweasy/groweasy/internal/inventory"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskStockAlert is the task type for stock threshold notifications.
	TaskStockAlert = "inventory:stock_alert"
)

// StockAlertPayload describes a product that crossed its reorder
// threshold during order processing.
type StockAlertPayload struct {
	EventID       string              `json:"event_id"`
	TenantID      int64               `json:"tenant_id"`
	ProductID     int64               `json:"product_id"`
	ProductName   string              `json:"product_name"`
	CurrentStock  int64               `json:"current_stock"`
	MinStockLevel int64               `json:"min_stock_level"`
	AlertType     inventory.AlertType `json:"alert_type"`
}

// NewStockAlertTask constructs an Asynq task. The event id doubles as the
// task id so a redelivered note cannot enqueue twice.
func NewStockAlertTask(payload StockAlertPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	var opts []asynq.Option
	if payload.EventID != "" {
		opts = append(opts, asynq.TaskID(payload.EventID))
	}
	return asynq.NewTask(TaskStockAlert, data, opts...), nil
}

// HandleStockAlertTask processes TaskStockAlert tasks.
func HandleStockAlertTask(ctx context.Context, t *asynq.Task) error {
	var payload StockAlertPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	// Placeholder: wire to SMTP/webhook delivery in a later phase.
	slog.Default().Info("stock alert",
		slog.String("event_id", payload.EventID),
		slog.Int64("tenant_id", payload.TenantID),
		slog.String("product", payload.ProductName),
		slog.Int64("current_stock", payload.CurrentStock),
		slog.String("alert_type", string(payload.AlertType)),
	)
	return nil
}
