package jobs

import (
	"context"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/groweasy/groweasy/internal/inventory"
)

func TestStockAlertTaskCarriesEventID(t *testing.T) {
	task, err := NewStockAlertTask(StockAlertPayload{
		EventID:     "f3c1",
		TenantID:    1,
		ProductID:   7,
		ProductName: "Fertiliser 5kg",
		AlertType:   inventory.AlertOutOfStock,
	})
	require.NoError(t, err)
	require.Equal(t, TaskStockAlert, task.Type())
	require.Contains(t, string(task.Payload()), `"event_id":"f3c1"`)
}

func TestHandleStockAlertTaskSkipsMalformedPayload(t *testing.T) {
	task := asynq.NewTask(TaskStockAlert, []byte("not-json"))
	err := HandleStockAlertTask(context.Background(), task)
	require.ErrorIs(t, err, asynq.SkipRetry)
}
