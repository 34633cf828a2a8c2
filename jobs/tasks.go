package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskBalanceReconcile recomputes customer balances from the ledgers and
	// reports drift against the incrementally maintained columns.
	TaskBalanceReconcile = "ledger:reconcile_balances"
	// TaskIdempotencyCleanup prunes idempotency keys past their retention.
	TaskIdempotencyCleanup = "maintenance:cleanup_idempotency"
)

// BalanceReconcilePayload tunes a reconciliation run.
type BalanceReconcilePayload struct {
	// ToleranceRupees is the absolute per-customer drift below which a
	// mismatch is not reported. Zero means a strict paisa-level comparison.
	ToleranceRupees float64 `json:"tolerance_rupees"`
}

// NewBalanceReconcileTask constructs an Asynq task for a reconciliation run.
func NewBalanceReconcileTask(payload BalanceReconcilePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskBalanceReconcile, data), nil
}

// IdempotencyCleanupPayload overrides the retention window for one run.
type IdempotencyCleanupPayload struct {
	RetentionHours int `json:"retention_hours"`
}

// NewIdempotencyCleanupTask constructs an Asynq task for key cleanup.
func NewIdempotencyCleanupTask(payload IdempotencyCleanupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, data), nil
}
