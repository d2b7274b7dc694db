package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	jobmetrics "github.com/groweasy/groweasy/internal/jobs"
)

// TaskAlertDigest triggers the nightly unresolved-alert digest.
const TaskAlertDigest = "inventory:alert_digest"

// AlertDigestPayload carries scheduling metadata.
type AlertDigestPayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewAlertDigestTask constructs an Asynq task for the digest run.
func NewAlertDigestTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(AlertDigestPayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAlertDigest, body, asynq.Queue(QueueDefault)), nil
}

// AlertDigestJob summarises unresolved stock alerts per tenant.
type AlertDigestJob struct {
	pool    *pgxpool.Pool
	logger  *slog.Logger
	metrics *jobmetrics.Metrics
}

// NewAlertDigestJob constructs the job.
func NewAlertDigestJob(pool *pgxpool.Pool, logger *slog.Logger, metrics *jobmetrics.Metrics) *AlertDigestJob {
	return &AlertDigestJob{pool: pool, logger: logger, metrics: metrics}
}

// Handle processes TaskAlertDigest tasks.
func (j *AlertDigestJob) Handle(ctx context.Context, t *asynq.Task) error {
	tracker := j.metrics.Track("alert_digest")
	return tracker.End(j.run(ctx, t))
}

func (j *AlertDigestJob) run(ctx context.Context, t *asynq.Task) error {
	var payload AlertDigestPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	const query = `
		SELECT tenant_id,
		       COUNT(*) FILTER (WHERE alert_type = 'low_stock') AS low,
		       COUNT(*) FILTER (WHERE alert_type = 'out_of_stock') AS out
		FROM stock_alerts
		WHERE is_resolved = FALSE
		GROUP BY tenant_id`
	rows, err := j.pool.Query(ctx, query)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var tenantID, low, out int64
		if err := rows.Scan(&tenantID, &low, &out); err != nil {
			return err
		}
		j.metrics.AddUnresolvedAlerts("low_stock", tenantID, int(low))
		j.metrics.AddUnresolvedAlerts("out_of_stock", tenantID, int(out))
		// Placeholder: deliver per-tenant digest emails in a later phase.
		j.logger.Info("alert digest",
			slog.Int64("tenant_id", tenantID),
			slog.Int64("low_stock", low),
			slog.Int64("out_of_stock", out),
		)
	}
	return rows.Err()
}
